// Package connection owns the terminal session lifecycle: login, the demo-only gate,
// liveness probing and reconnection.
package connection

import (
	"context"
	"fmt"
	"sync"
	"time"

	"liveSignalBot/internal/domain"
	"liveSignalBot/internal/ports"
)

// Options tune the probe and timeout behaviour of a Manager.
type Options struct {
	AllowLive      bool          // Permit non-demo accounts
	ProbeAttempts  int           // Ping attempts before the session is declared down
	ProbePause     time.Duration // Pause between failed probes
	ProbeTimeout   time.Duration // Deadline of a single ping
	ConnectTimeout time.Duration // Deadline of Initialize + AccountInfo
}

// DefaultOptions returns demo-only settings with three probes.
func DefaultOptions() Options {
	return Options{
		AllowLive:      false,
		ProbeAttempts:  3,
		ProbePause:     500 * time.Millisecond,
		ProbeTimeout:   5 * time.Second,
		ConnectTimeout: 30 * time.Second,
	}
}

// Manager wraps a terminal session.
type Manager struct {
	terminal ports.Terminal
	creds    domain.Credentials
	opts     Options
	logger   ports.Logger
	sleep    func(ctx context.Context, d time.Duration)

	mu        sync.RWMutex
	session   bool // Initialize succeeded and no teardown since
	connected bool // Result of the last probe or connect
	account   *domain.AccountInfo
}

// NewManager creates a manager. Zero option fields fall back to DefaultOptions.
func NewManager(terminal ports.Terminal, creds domain.Credentials, opts Options, logger ports.Logger) *Manager {
	def := DefaultOptions()
	if opts.ProbeAttempts <= 0 {
		opts.ProbeAttempts = def.ProbeAttempts
	}
	if opts.ProbePause < 0 {
		opts.ProbePause = def.ProbePause
	}
	if opts.ProbeTimeout <= 0 {
		opts.ProbeTimeout = def.ProbeTimeout
	}
	if opts.ConnectTimeout <= 0 {
		opts.ConnectTimeout = def.ConnectTimeout
	}
	return &Manager{
		terminal: terminal,
		creds:    creds,
		opts:     opts,
		logger:   logger,
		sleep:    sleepCtx,
	}
}

// Connect opens the session and caches the account.
// Template credentials fail with ErrConfigurationError before the terminal is touched.
// A non-demo account is refused unless live trading is allowed.
func (m *Manager) Connect(ctx context.Context) error {
	if m.creds.IsTemplate() {
		return fmt.Errorf("credentials are missing or still hold template values: %w", ports.ErrConfigurationError)
	}

	cctx, cancel := context.WithTimeout(ctx, m.opts.ConnectTimeout)
	defer cancel()

	if err := m.terminal.Initialize(cctx, m.creds); err != nil {
		m.setState(false, nil)
		return fmt.Errorf("initialize terminal session: %w", err)
	}
	m.mu.Lock()
	m.session = true
	m.mu.Unlock()

	account, err := m.terminal.AccountInfo(cctx)
	if err != nil {
		m.shutdown(ctx)
		m.setState(false, nil)
		return fmt.Errorf("read account info: %w", err)
	}

	if !account.IsDemo() && !m.opts.AllowLive {
		m.shutdown(ctx)
		m.setState(false, nil)
		m.logger.Warn(ctx, "Refusing non-demo account", map[string]interface{}{
			"login":  account.Login,
			"server": account.Server,
			"mode":   account.Mode,
		})
		return fmt.Errorf("account %s on %s is %s: %w", account.Login, account.Server, account.Mode, ports.ErrLiveAccountRefused)
	}

	m.setState(true, account)
	m.logger.Info(ctx, "Terminal session connected", map[string]interface{}{
		"login":    account.Login,
		"server":   account.Server,
		"mode":     account.Mode,
		"balance":  account.Balance,
		"currency": account.Currency,
	})
	return nil
}

// IsConnected probes the session. It returns false only after every attempt has failed,
// and probes afresh on each call.
func (m *Manager) IsConnected(ctx context.Context) bool {
	m.mu.RLock()
	session := m.session
	m.mu.RUnlock()
	if !session {
		return false
	}

	var lastErr error
	for attempt := 1; attempt <= m.opts.ProbeAttempts; attempt++ {
		pctx, cancel := context.WithTimeout(ctx, m.opts.ProbeTimeout)
		lastErr = m.terminal.Ping(pctx)
		cancel()
		if lastErr == nil {
			m.mu.Lock()
			m.connected = true
			m.mu.Unlock()
			return true
		}
		m.logger.Debug(ctx, "Connection probe failed", map[string]interface{}{
			"attempt": attempt,
			"error":   lastErr.Error(),
		})
		if ctx.Err() != nil {
			break
		}
		if attempt < m.opts.ProbeAttempts {
			m.sleep(ctx, m.opts.ProbePause)
		}
	}

	m.logger.Warn(ctx, "Terminal session lost", map[string]interface{}{
		"attempts": m.opts.ProbeAttempts,
		"error":    fmt.Sprint(lastErr),
	})
	m.mu.Lock()
	m.connected = false
	m.mu.Unlock()
	return false
}

// Reconnect tears the session down and connects again.
func (m *Manager) Reconnect(ctx context.Context) error {
	m.shutdown(ctx)
	m.setState(false, nil)
	return m.Connect(ctx)
}

// Disconnect closes the session.
func (m *Manager) Disconnect(ctx context.Context) {
	m.shutdown(ctx)
	m.setState(false, nil)
	m.logger.Info(ctx, "Terminal session closed")
}

// Connected returns the cached flag without probing.
func (m *Manager) Connected() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.connected
}

// Account returns the cached account, nil before the first successful connect.
func (m *Manager) Account() *domain.AccountInfo {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.account
}

// State returns the connection flag together with the cached account.
func (m *Manager) State() domain.ConnectionState {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return domain.ConnectionState{Connected: m.connected, Account: m.account}
}

// RefreshAccount re-reads balance and equity for the open session.
func (m *Manager) RefreshAccount(ctx context.Context) (*domain.AccountInfo, error) {
	cctx, cancel := context.WithTimeout(ctx, m.opts.ProbeTimeout)
	defer cancel()
	account, err := m.terminal.AccountInfo(cctx)
	if err != nil {
		return nil, fmt.Errorf("refresh account info: %w", err)
	}
	m.mu.Lock()
	m.account = account
	m.mu.Unlock()
	return account, nil
}

func (m *Manager) shutdown(ctx context.Context) {
	m.mu.Lock()
	m.session = false
	m.mu.Unlock()
	sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), m.opts.ProbeTimeout)
	defer cancel()
	if err := m.terminal.Shutdown(sctx); err != nil {
		m.logger.Warn(ctx, "Terminal shutdown reported an error", map[string]interface{}{"error": err.Error()})
	}
}

func (m *Manager) setState(connected bool, account *domain.AccountInfo) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.connected = connected
	m.account = account
}

func sleepCtx(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
