package ports

import (
	"context"
	"time"

	"liveSignalBot/internal/domain"
)

// Terminal defines the broker session used by the bot.
// A single implementation instance is shared by the connection manager, the bar source
// and every executor; it is only ever driven from the orchestrator's goroutine.
type Terminal interface {
	// Initialize opens an authenticated session.
	Initialize(ctx context.Context, creds domain.Credentials) error
	// Shutdown tears the session down. Safe to call on a closed session.
	Shutdown(ctx context.Context) error
	// Ping is the lightweight liveness probe.
	Ping(ctx context.Context) error

	// AccountInfo returns identity, balance and account mode.
	AccountInfo(ctx context.Context) (*domain.AccountInfo, error)
	// SymbolInfo returns trading constraints for a symbol.
	SymbolInfo(ctx context.Context, symbol string) (*domain.SymbolInfo, error)
	// Tick returns the latest bid/ask.
	Tick(ctx context.Context, symbol string) (*domain.Tick, error)
	// Bars returns the most recent count bars in ascending time, including the forming one.
	Bars(ctx context.Context, symbol string, timeframe time.Duration, count int) ([]domain.Bar, error)

	// OpenPositions lists every open position on the account.
	OpenPositions(ctx context.Context) ([]domain.BrokerPosition, error)
	// SendOrder submits an order. Broker-side rejections come back as a non-accepted result.
	SendOrder(ctx context.Context, req domain.OrderRequest) (*domain.OrderResult, error)
	// ClosingDeal finds the fill(s) that closed the given position.
	// Returns an error wrapping ErrDealNotFound when the history has no closing fill yet.
	ClosingDeal(ctx context.Context, pos domain.Position) (*domain.Deal, error)
}
