// Package executor turns signals into broker orders for one strategy configuration.
package executor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"liveSignalBot/internal/domain"
	"liveSignalBot/internal/ports"
	"liveSignalBot/internal/risk"

	"github.com/shopspring/decimal"
)

// ResultKind classifies the outcome of an execution attempt.
type ResultKind string

const (
	ResultSuccess        ResultKind = "SUCCESS"
	ResultRejected       ResultKind = "REJECTED"
	ResultFailed         ResultKind = "FAILED"
	ResultNoConnection   ResultKind = "NO_CONNECTION"
	ResultPositionExists ResultKind = "POSITION_EXISTS"
)

// Result is what ExecuteLong reports back to the orchestrator.
type Result struct {
	Kind        ResultKind
	Ticket      int64
	Price       float64 // Fill price
	Volume      float64 // Fill volume
	StopLoss    float64 // Levels as sent, rounded to the symbol's digits
	TakeProfit  float64
	Code        int
	Message     string
	Unprotected bool // Filled without the protective orders on the broker
	Timestamp   time.Time
}

// Success reports whether the order was filled.
func (r Result) Success() bool {
	return r.Kind == ResultSuccess
}

// SessionState exposes the connection flag and cached account of the shared session.
type SessionState interface {
	Connected() bool
	Account() *domain.AccountInfo
}

// Options tune order construction.
type Options struct {
	MaxSlippagePoints int
	TimePolicy        domain.TimePolicy
	CommentPrefix     string
	// Netting is set for brokers that keep one net position per symbol. Any open position
	// on the symbol then blocks a new entry, whoever owns it.
	Netting bool
}

// DefaultOptions returns 20 points of slippage and GTC orders.
func DefaultOptions() Options {
	return Options{
		MaxSlippagePoints: 20,
		TimePolicy:        domain.TimePolicyGTC,
		CommentPrefix:     "liveSignalBot",
	}
}

// Executor owns the orders of one configuration, identified on the broker by its tag.
type Executor struct {
	configName string
	tag        int64
	terminal   ports.Terminal
	session    SessionState
	sizer      *risk.Sizer
	opts       Options
	logger     ports.Logger
	now        func() time.Time
}

// New creates the executor of a configuration.
func New(configName string, terminal ports.Terminal, session SessionState, sizer *risk.Sizer, opts Options, logger ports.Logger) *Executor {
	if opts.TimePolicy == "" {
		opts.TimePolicy = domain.TimePolicyGTC
	}
	return &Executor{
		configName: configName,
		tag:        Tag(configName),
		terminal:   terminal,
		session:    session,
		sizer:      sizer,
		opts:       opts,
		logger:     logger,
		now:        time.Now,
	}
}

// ConfigName returns the owning configuration.
func (e *Executor) ConfigName() string { return e.configName }

// Tag returns the broker tag carried by this executor's orders.
func (e *Executor) Tag() int64 { return e.tag }

// CanOpen reports whether no open position on symbol carries this executor's tag.
// With Netting, a position of another owner on symbol also blocks. It returns false when
// the position list cannot be read.
func (e *Executor) CanOpen(ctx context.Context, symbol string) bool {
	all, err := e.terminal.OpenPositions(ctx)
	if err != nil {
		e.logger.Warn(ctx, "Cannot verify open positions", map[string]interface{}{
			"config": e.configName,
			"symbol": symbol,
			"error":  err.Error(),
		})
		return false
	}
	for _, p := range all {
		if p.Symbol != symbol {
			continue
		}
		if p.Tag == e.tag {
			e.logger.Debug(ctx, "Position already exists", map[string]interface{}{
				"config": e.configName,
				"symbol": symbol,
				"ticket": p.Ticket,
			})
			return false
		}
		if e.opts.Netting {
			e.logger.Info(ctx, "Symbol held by another position", map[string]interface{}{
				"config": e.configName,
				"symbol": symbol,
				"ticket": p.Ticket,
				"tag":    p.Tag,
			})
			return false
		}
	}
	return true
}

// ExecuteLong sends a market buy with the given protective levels.
// entry is the signal price used for sizing; the order itself is priced at the ask.
func (e *Executor) ExecuteLong(ctx context.Context, symbol string, entry, stopLoss, takeProfit float64) Result {
	now := e.now().UTC()

	if !e.session.Connected() {
		return Result{Kind: ResultNoConnection, Message: "terminal session is not connected", Timestamp: now}
	}
	if !e.CanOpen(ctx, symbol) {
		return Result{Kind: ResultPositionExists, Message: fmt.Sprintf("position already exists for %s", symbol), Timestamp: now}
	}

	info, err := e.terminal.SymbolInfo(ctx, symbol)
	if err != nil {
		return e.failure(ctx, now, fmt.Errorf("symbol info %s: %w", symbol, err))
	}
	tick, err := e.terminal.Tick(ctx, symbol)
	if err != nil {
		return e.failure(ctx, now, fmt.Errorf("tick %s: %w", symbol, err))
	}

	equity := e.equity(ctx)
	volume, err := e.sizer.Volume(info, equity, entry, stopLoss)
	if err != nil {
		return e.failure(ctx, now, err)
	}

	req := domain.OrderRequest{
		Symbol:            symbol,
		Volume:            volume,
		Side:              domain.Buy,
		Price:             roundPrice(tick.Ask+float64(e.opts.MaxSlippagePoints)*info.Point, info.Digits),
		StopLoss:          roundPrice(stopLoss, info.Digits),
		TakeProfit:        roundPrice(takeProfit, info.Digits),
		MaxSlippagePoints: e.opts.MaxSlippagePoints,
		Tag:               e.tag,
		TimePolicy:        e.opts.TimePolicy,
		FillMode:          SelectFillMode(info),
		Comment:           fmt.Sprintf("%s %s", e.opts.CommentPrefix, e.configName),
	}

	e.logger.Info(ctx, "Sending BUY order", map[string]interface{}{
		"config":      e.configName,
		"symbol":      symbol,
		"volume":      req.Volume,
		"price":       req.Price,
		"stop_loss":   req.StopLoss,
		"take_profit": req.TakeProfit,
		"fill_mode":   req.FillMode.String(),
	})

	res, err := e.terminal.SendOrder(ctx, req)
	if err != nil {
		return e.failure(ctx, now, fmt.Errorf("send order: %w", err))
	}
	if res == nil {
		return e.failure(ctx, now, fmt.Errorf("send order: empty result: %w", ports.ErrUnknown))
	}
	if !res.Accepted {
		e.logger.Warn(ctx, "Order rejected", map[string]interface{}{
			"config":  e.configName,
			"symbol":  symbol,
			"code":    res.Code,
			"message": res.Message,
		})
		return Result{
			Kind:      ResultRejected,
			Code:      res.Code,
			Message:   fmt.Sprintf("order rejected: %d - %s", res.Code, res.Message),
			Timestamp: now,
		}
	}

	e.logger.Info(ctx, "BUY executed", map[string]interface{}{
		"config": e.configName,
		"symbol": symbol,
		"ticket": res.Ticket,
		"price":  res.Price,
		"volume": res.Volume,
	})
	message := "order executed"
	if res.Unprotected {
		message = res.Message
		e.logger.Warn(ctx, "Position open without protective orders", map[string]interface{}{
			"config":  e.configName,
			"symbol":  symbol,
			"ticket":  res.Ticket,
			"message": res.Message,
		})
	}
	return Result{
		Kind:        ResultSuccess,
		Ticket:      res.Ticket,
		Price:       res.Price,
		Volume:      res.Volume,
		StopLoss:    req.StopLoss,
		TakeProfit:  req.TakeProfit,
		Code:        res.Code,
		Message:     message,
		Unprotected: res.Unprotected,
		Timestamp:   now,
	}
}

// SelectFillMode picks the broker-supported fill mode, preferring IOC, then FOK, then RETURN.
// Symbols that advertise none fall back to FOK.
func SelectFillMode(info *domain.SymbolInfo) domain.FillMode {
	for _, mode := range []domain.FillMode{domain.FillIOC, domain.FillFOK, domain.FillReturn} {
		if info.Supports(mode) {
			return mode
		}
	}
	return domain.FillFOK
}

// equity prefers a fresh account read and falls back to the session's cached account.
func (e *Executor) equity(ctx context.Context) float64 {
	account, err := e.terminal.AccountInfo(ctx)
	if err != nil || account == nil {
		account = e.session.Account()
	}
	if account == nil {
		return 0
	}
	if account.Equity > 0 {
		return account.Equity
	}
	return account.Balance
}

func (e *Executor) failure(ctx context.Context, now time.Time, err error) Result {
	kind := ResultFailed
	if errors.Is(err, ports.ErrOrderPlacementFailed) ||
		errors.Is(err, ports.ErrInsufficientFunds) ||
		errors.Is(err, ports.ErrInvalidRequest) {
		kind = ResultRejected
	}
	e.logger.Error(ctx, err, "Order execution failed", map[string]interface{}{
		"config": e.configName,
		"result": string(kind),
	})
	return Result{Kind: kind, Message: err.Error(), Timestamp: now}
}

func roundPrice(price float64, digits int) float64 {
	if digits <= 0 {
		return price
	}
	f, _ := decimal.NewFromFloat(price).Round(int32(digits)).Float64()
	return f
}
