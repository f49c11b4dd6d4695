package ports

import (
	"context"
	"time"
)

// EventType names a record in the structured event stream.
type EventType string

const (
	EventMonitorStart      EventType = "MONITOR_START"
	EventMonitorStop       EventType = "MONITOR_STOP"
	EventSignal            EventType = "SIGNAL"
	EventTradeOpened       EventType = "TRADE_OPENED"
	EventTradeClosed       EventType = "TRADE_CLOSED"
	EventExecutionFailed   EventType = "EXECUTION_FAILED"
	EventPositionRecovered EventType = "POSITION_RECOVERED"
	EventConnection        EventType = "CONNECTION"
	EventHeartbeat         EventType = "HEARTBEAT"
	EventError             EventType = "ERROR"
	EventIterationError    EventType = "ITERATION_ERROR"
	EventFatalError        EventType = "FATAL_ERROR"
)

// Event is one record of the audit trail.
type Event struct {
	Timestamp     time.Time
	Type          EventType
	Configuration string
	Symbol        string
	Fields        map[string]interface{}
}

// EventSink persists or forwards events.
type EventSink interface {
	Emit(ctx context.Context, ev Event) error
	Close() error
}
