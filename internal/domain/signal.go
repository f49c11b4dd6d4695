package domain

import "time"

// Signal is the outcome of one checker invocation. Values are never mutated after construction.
type Signal struct {
	Valid          bool
	Direction      Direction
	EntryPrice     float64
	StopLoss       float64
	TakeProfit     float64
	ReferenceValue float64 // Volatility (ATR) at signal time
	Reason         string
	Timestamp      time.Time
	Strategy       string
}

// NoSignal builds an invalid signal carrying the reason it was not produced.
func NoSignal(strategy, reason string, at time.Time) Signal {
	return Signal{
		Direction: NoTrade,
		Reason:    reason,
		Timestamp: at,
		Strategy:  strategy,
	}
}

// LongSignal builds a valid LONG signal.
func LongSignal(strategy string, entry, stopLoss, takeProfit, atr float64, reason string, at time.Time) Signal {
	return Signal{
		Valid:          true,
		Direction:      Long,
		EntryPrice:     entry,
		StopLoss:       stopLoss,
		TakeProfit:     takeProfit,
		ReferenceValue: atr,
		Reason:         reason,
		Timestamp:      at,
		Strategy:       strategy,
	}
}

// CheckerState is a read-only snapshot of a checker's phase machine.
type CheckerState struct {
	Strategy      string             `json:"strategy"`
	Configuration string             `json:"configuration"`
	Phase         string             `json:"phase"`
	BarsProcessed int                `json:"bars_processed"`
	BarsInPhase   int                `json:"bars_in_phase"`
	Temporaries   map[string]float64 `json:"temporaries,omitempty"`
}
