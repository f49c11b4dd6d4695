package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"liveSignalBot/internal/domain"
	"liveSignalBot/internal/ports"

	"github.com/mattn/go-sqlite3" // SQLite driver
)

// Repository implements the ports.PositionRepository and ports.TradeRepository interfaces using SQLite.
type Repository struct {
	db     *sql.DB
	logger ports.Logger
	now    func() time.Time
}

// Config holds configuration for the SQLite repository.
type Config struct {
	DBPath string
	Logger ports.Logger
}

// NewRepository creates a new SQLite repository instance.
func NewRepository(cfg Config) (*Repository, error) {
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger is required for SQLite repository")
	}
	dbPath := cfg.DBPath
	if dbPath == "" {
		dbPath = "./data/live_trades.db" // Default path
	}

	// Create data directory if it doesn't exist
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		err = fmt.Errorf("failed to create data directory '%s': %w", filepath.Dir(dbPath), err)
		cfg.Logger.Error(context.Background(), err, "SQLite repository initialization failed")
		return nil, err
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		err = fmt.Errorf("failed to open database at '%s': %w: %w", dbPath, ports.ErrDBConnection, err)
		cfg.Logger.Error(context.Background(), err, "SQLite repository initialization failed")
		return nil, err
	}

	// Test the connection
	if err := db.Ping(); err != nil {
		db.Close()
		err = fmt.Errorf("failed to ping database at '%s': %w: %w", dbPath, ports.ErrDBConnection, err)
		cfg.Logger.Error(context.Background(), err, "SQLite repository initialization failed")
		return nil, err
	}

	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	repo := &Repository{db: db, logger: cfg.Logger, now: time.Now}

	if err := repo.initializeSchema(context.Background()); err != nil {
		db.Close()
		err = fmt.Errorf("failed to initialize database schema: %w", err)
		cfg.Logger.Error(context.Background(), err, "SQLite repository initialization failed")
		return nil, err
	}
	cfg.Logger.Info(context.Background(), "SQLite trade store ready", map[string]interface{}{"path": dbPath})

	return repo, nil
}

// initializeSchema creates tables if they don't exist.
func (r *Repository) initializeSchema(ctx context.Context) error {
	const schema = `
	CREATE TABLE IF NOT EXISTS positions (
		ticket INTEGER PRIMARY KEY,
		config_name TEXT NOT NULL,
		symbol TEXT NOT NULL,
		direction TEXT NOT NULL,
		entry_price REAL NOT NULL,
		stop_loss REAL NOT NULL,
		take_profit REAL NOT NULL,
		volume REAL NOT NULL,
		open_time TIMESTAMP NOT NULL,
		tag INTEGER NOT NULL,
		status TEXT NOT NULL,
		closed_at TIMESTAMP DEFAULT NULL
	);

	CREATE TABLE IF NOT EXISTS closed_trades (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		ticket INTEGER NOT NULL UNIQUE,
		config_name TEXT NOT NULL,
		symbol TEXT NOT NULL,
		direction TEXT NOT NULL,
		entry_price REAL NOT NULL,
		close_price REAL NOT NULL,
		stop_loss REAL NOT NULL,
		take_profit REAL NOT NULL,
		volume REAL NOT NULL,
		open_time TIMESTAMP NOT NULL,
		close_time TIMESTAMP NOT NULL,
		reason TEXT NOT NULL,
		gross_pnl REAL NOT NULL,
		commission REAL NOT NULL,
		net_pnl REAL NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_positions_config_open_time ON positions (config_name, open_time);
	CREATE INDEX IF NOT EXISTS idx_positions_status ON positions (status);
	CREATE INDEX IF NOT EXISTS idx_closed_trades_config_close_time ON closed_trades (config_name, close_time);
	`
	_, err := r.db.ExecContext(ctx, schema)
	if err != nil {
		return fmt.Errorf("failed to execute schema initialization: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (r *Repository) Close() error {
	if r.db != nil {
		r.logger.Info(context.Background(), "Closing SQLite database connection")
		return r.db.Close()
	}
	return nil
}

// --- PositionRepository Implementation ---

// Save stores a newly opened position keyed by its ticket.
func (r *Repository) Save(ctx context.Context, pos *domain.Position) error {
	const query = `
	INSERT INTO positions (ticket, config_name, symbol, direction, entry_price, stop_loss,
	                       take_profit, volume, open_time, tag, status)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	status := pos.Status
	if status == "" {
		status = domain.StatusOpen
	}
	_, err := r.db.ExecContext(ctx, query,
		pos.Ticket, pos.ConfigName, pos.Symbol, pos.Direction, pos.EntryPrice, pos.StopLoss,
		pos.TakeProfit, pos.Volume, pos.OpenTime.UTC(), pos.Tag, status)
	if err != nil {
		return fmt.Errorf("failed to insert position %d for %s: %w", pos.Ticket, pos.ConfigName, classify(err))
	}
	r.logger.Debug(ctx, "Position saved", map[string]interface{}{"ticket": pos.Ticket, "config": pos.ConfigName})
	return nil
}

// MarkClosed flags the position with the given ticket as closed.
func (r *Repository) MarkClosed(ctx context.Context, ticket int64) error {
	const query = `UPDATE positions SET status = ?, closed_at = ? WHERE ticket = ?`

	result, err := r.db.ExecContext(ctx, query, domain.StatusClosed, r.now().UTC(), ticket)
	if err != nil {
		return fmt.Errorf("failed to close position %d: %w: %w", ticket, ports.ErrUpdateFailed, err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected for position %d: %w", ticket, err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("position %d not found for update: %w", ticket, ports.ErrNotFound)
	}
	return nil
}

// FindByTicket retrieves a position by broker ticket.
func (r *Repository) FindByTicket(ctx context.Context, ticket int64) (*domain.Position, error) {
	const query = `
	SELECT ticket, config_name, symbol, direction, entry_price, stop_loss, take_profit,
	       volume, open_time, tag, status
	FROM positions
	WHERE ticket = ?`

	pos, err := scanPosition(r.db.QueryRowContext(ctx, query, ticket))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil // Not an error, just not found
		}
		return nil, fmt.Errorf("failed to query position %d: %w: %w", ticket, ports.ErrQueryFailed, err)
	}
	return pos, nil
}

// FindOpen retrieves every position still flagged open, ordered by open time.
func (r *Repository) FindOpen(ctx context.Context) ([]*domain.Position, error) {
	const query = `
	SELECT ticket, config_name, symbol, direction, entry_price, stop_loss, take_profit,
	       volume, open_time, tag, status
	FROM positions
	WHERE status = ?
	ORDER BY open_time ASC`

	rows, err := r.db.QueryContext(ctx, query, domain.StatusOpen)
	if err != nil {
		return nil, fmt.Errorf("failed to query open positions: %w: %w", ports.ErrQueryFailed, err)
	}
	defer rows.Close()

	positions := make([]*domain.Position, 0)
	for rows.Next() {
		pos, err := scanPosition(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan position during FindOpen: %w", err)
		}
		positions = append(positions, pos)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating position rows: %w", err)
	}
	return positions, nil
}

// --- TradeRepository Implementation ---

// CreateTrade saves a closed trade and returns its assigned ID.
// A second trade for the same ticket fails with ErrDuplicateEntry.
func (r *Repository) CreateTrade(ctx context.Context, trade *domain.ClosedTrade) (int64, error) {
	const query = `
	INSERT INTO closed_trades (ticket, config_name, symbol, direction, entry_price, close_price,
	                           stop_loss, take_profit, volume, open_time, close_time, reason,
	                           gross_pnl, commission, net_pnl)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	result, err := r.db.ExecContext(ctx, query,
		trade.Ticket, trade.ConfigName, trade.Symbol, trade.Direction, trade.EntryPrice, trade.ClosePrice,
		trade.StopLoss, trade.TakeProfit, trade.Volume, trade.OpenTime.UTC(), trade.CloseTime.UTC(), trade.Reason,
		trade.GrossPnL, trade.Commission, trade.NetPnL)
	if err != nil {
		return 0, fmt.Errorf("failed to insert closed trade %d for %s: %w", trade.Ticket, trade.ConfigName, classify(err))
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get last insert ID for closed trade %d: %w", trade.Ticket, err)
	}
	trade.ID = id // Update domain object
	r.logger.Debug(ctx, "Closed trade recorded", map[string]interface{}{"tradeID": id, "ticket": trade.Ticket, "netPnL": trade.NetPnL})
	return id, nil
}

// FindByConfig retrieves the most recent trades of a configuration, up to a limit.
func (r *Repository) FindByConfig(ctx context.Context, configName string, limit int) ([]*domain.ClosedTrade, error) {
	const query = `
	SELECT id, ticket, config_name, symbol, direction, entry_price, close_price, stop_loss,
	       take_profit, volume, open_time, close_time, reason, gross_pnl, commission, net_pnl
	FROM closed_trades
	WHERE config_name = ? ORDER BY close_time DESC LIMIT ?`

	rows, err := r.db.QueryContext(ctx, query, configName, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query trades for %s: %w: %w", configName, ports.ErrQueryFailed, err)
	}
	return collectTrades(rows)
}

// FindAll retrieves every closed trade ordered by close time.
func (r *Repository) FindAll(ctx context.Context) ([]*domain.ClosedTrade, error) {
	const query = `
	SELECT id, ticket, config_name, symbol, direction, entry_price, close_price, stop_loss,
	       take_profit, volume, open_time, close_time, reason, gross_pnl, commission, net_pnl
	FROM closed_trades
	ORDER BY close_time ASC, id ASC`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query closed trades: %w: %w", ports.ErrQueryFailed, err)
	}
	return collectTrades(rows)
}

// CountTodayByConfig counts the positions a configuration opened since UTC midnight.
func (r *Repository) CountTodayByConfig(ctx context.Context, configName string) (int, error) {
	const query = `SELECT COUNT(*) FROM positions WHERE config_name = ? AND open_time >= ?`

	now := r.now().UTC()
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	var count int
	if err := r.db.QueryRowContext(ctx, query, configName, midnight).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count trades today for %s: %w: %w", configName, ports.ErrQueryFailed, err)
	}
	return count, nil
}

// --- Helper Scan Functions ---

// scanner defines an interface compatible with *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...interface{}) error
}

// scanPosition scans a row into a domain.Position struct.
func scanPosition(s scanner) (*domain.Position, error) {
	p := &domain.Position{}
	var direction, status string
	err := s.Scan(
		&p.Ticket, &p.ConfigName, &p.Symbol, &direction, &p.EntryPrice, &p.StopLoss, &p.TakeProfit,
		&p.Volume, &p.OpenTime, &p.Tag, &status)
	if err != nil {
		return nil, err // Handle sql.ErrNoRows in the caller
	}
	p.Direction = domain.Direction(direction)
	p.Status = domain.PositionStatus(status)
	p.OpenTime = p.OpenTime.UTC()
	return p, nil
}

// scanTrade scans a row into a domain.ClosedTrade struct.
func scanTrade(s scanner) (*domain.ClosedTrade, error) {
	t := &domain.ClosedTrade{}
	var direction, reason string
	err := s.Scan(
		&t.ID, &t.Ticket, &t.ConfigName, &t.Symbol, &direction, &t.EntryPrice, &t.ClosePrice, &t.StopLoss,
		&t.TakeProfit, &t.Volume, &t.OpenTime, &t.CloseTime, &reason, &t.GrossPnL, &t.Commission, &t.NetPnL)
	if err != nil {
		return nil, err
	}
	t.Direction = domain.Direction(direction)
	t.Reason = domain.CloseReason(reason)
	t.OpenTime = t.OpenTime.UTC()
	t.CloseTime = t.CloseTime.UTC()
	return t, nil
}

func collectTrades(rows *sql.Rows) ([]*domain.ClosedTrade, error) {
	defer rows.Close()
	trades := make([]*domain.ClosedTrade, 0)
	for rows.Next() {
		trade, err := scanTrade(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan closed trade: %w", err)
		}
		trades = append(trades, trade)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating closed trade rows: %w", err)
	}
	return trades, nil
}

// classify wraps constraint violations with ErrDuplicateEntry.
func classify(err error) error {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) && sqliteErr.Code == sqlite3.ErrConstraint {
		return fmt.Errorf("%w: %w", ports.ErrDuplicateEntry, err)
	}
	return fmt.Errorf("%w: %w", ports.ErrQueryFailed, err)
}
