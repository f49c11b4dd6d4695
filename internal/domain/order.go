package domain

// OrderRequest is what the executor sends to the terminal.
type OrderRequest struct {
	Symbol            string
	Volume            float64
	Side              OrderSide
	Price             float64
	StopLoss          float64
	TakeProfit        float64
	MaxSlippagePoints int
	Tag               int64
	TimePolicy        TimePolicy
	FillMode          FillMode
	Comment           string
}

// OrderResult is the terminal's answer to an OrderRequest.
type OrderResult struct {
	Accepted    bool
	Ticket      int64
	Price       float64 // Fill price
	Volume      float64 // Fill volume
	Code        int     // Broker return code, zero for a clean fill
	Message     string
	Unprotected bool // Filled, but the stop-loss or take-profit is not on the broker
}
