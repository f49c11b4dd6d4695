package domain

import "time"

// Position tracks one open trade owned by a strategy configuration.
type Position struct {
	Ticket     int64     // Broker ticket of the filled entry order
	ConfigName string    // Owning strategy configuration
	Symbol     string    // Trading symbol (e.g., "EURUSDT")
	Direction  Direction // Only LONG is opened
	EntryPrice float64
	StopLoss   float64
	TakeProfit float64
	Volume     float64
	OpenTime   time.Time
	Tag        int64 // Unique tag of the owning configuration
	Status     PositionStatus
}

// IsOpen checks if the position status is open.
func (p *Position) IsOpen() bool {
	return p.Status == StatusOpen
}

// ClosedTrade is a reconciled position together with its closing deal.
type ClosedTrade struct {
	ID         int64 // Assigned by the repository
	Ticket     int64
	ConfigName string
	Symbol     string
	Direction  Direction
	EntryPrice float64
	ClosePrice float64
	StopLoss   float64
	TakeProfit float64
	Volume     float64
	OpenTime   time.Time
	CloseTime  time.Time
	Reason     CloseReason
	GrossPnL   float64
	Commission float64
	NetPnL     float64
}

// Duration returns how long the trade was held.
func (t *ClosedTrade) Duration() time.Duration {
	return t.CloseTime.Sub(t.OpenTime)
}

// BrokerPosition is an open position as reported by the terminal.
type BrokerPosition struct {
	Ticket     int64
	Symbol     string
	Tag        int64 // Zero when the position was not opened by this bot
	Volume     float64
	EntryPrice float64
	StopLoss   float64
	TakeProfit float64
	OpenTime   time.Time
}

// Deal is the aggregated closing fill of a position.
type Deal struct {
	Ticket     int64
	Price      float64
	Volume     float64
	Profit     float64 // Realized profit reported by the broker, zero if unknown
	Commission float64
	Time       time.Time
}
