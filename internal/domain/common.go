package domain

// OrderSide represents the side of an order (BUY or SELL).
type OrderSide string

const (
	Buy  OrderSide = "BUY"
	Sell OrderSide = "SELL"
)

// Direction is the trade direction carried by a Signal or Position.
type Direction string

const (
	Long    Direction = "LONG"
	Short   Direction = "SHORT"
	NoTrade Direction = "NONE"
)

// PositionStatus represents the status of a tracked position.
type PositionStatus string

const (
	StatusOpen   PositionStatus = "open"
	StatusClosed PositionStatus = "closed"
)

// CloseReason indicates why a position was closed.
type CloseReason string

const (
	CloseReasonStopLoss   CloseReason = "STOP_LOSS"
	CloseReasonTakeProfit CloseReason = "TAKE_PROFIT"
	CloseReasonManual     CloseReason = "MANUAL"
)

// FillMode is a bit flag describing how the broker fills an order.
type FillMode int

const (
	FillFOK    FillMode = 1 // Fill or kill
	FillIOC    FillMode = 2 // Immediate or cancel
	FillReturn FillMode = 4 // Remaining volume stays on the book
)

// String returns the broker-facing name of the fill mode.
func (f FillMode) String() string {
	switch f {
	case FillFOK:
		return "FOK"
	case FillIOC:
		return "IOC"
	case FillReturn:
		return "RETURN"
	default:
		return "UNKNOWN"
	}
}

// TimePolicy is the order lifetime.
type TimePolicy string

const (
	TimePolicyGTC TimePolicy = "GTC" // Good till cancelled
	TimePolicyDay TimePolicy = "DAY"
)
