package ports

import (
	"context"

	"liveSignalBot/internal/domain"
)

// PositionRepository defines the interface for storing and retrieving tracked positions.
type PositionRepository interface {
	// Save stores a newly opened position keyed by its ticket.
	Save(ctx context.Context, pos *domain.Position) error
	// MarkClosed flags the position with the given ticket as closed.
	MarkClosed(ctx context.Context, ticket int64) error
	// FindByTicket retrieves a position by broker ticket.
	// Returns nil, nil if not found.
	FindByTicket(ctx context.Context, ticket int64) (*domain.Position, error)
	// FindOpen retrieves every position still flagged open, ordered by open time.
	FindOpen(ctx context.Context) ([]*domain.Position, error)
}

// TradeRepository defines the interface for storing and retrieving closed trades.
type TradeRepository interface {
	// CreateTrade saves a closed trade and returns its assigned ID.
	CreateTrade(ctx context.Context, trade *domain.ClosedTrade) (int64, error)
	// FindByConfig retrieves the most recent trades of a configuration, up to a limit.
	FindByConfig(ctx context.Context, configName string, limit int) ([]*domain.ClosedTrade, error)
	// FindAll retrieves every closed trade ordered by close time.
	FindAll(ctx context.Context) ([]*domain.ClosedTrade, error)
	// CountTodayByConfig counts the trades a configuration opened today (UTC).
	CountTodayByConfig(ctx context.Context, configName string) (int, error)
}
