package executor

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"liveSignalBot/internal/domain"
	"liveSignalBot/internal/ports"
	"liveSignalBot/internal/risk"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockLogger struct{}

func (m *mockLogger) Debug(ctx context.Context, msg string, fields ...map[string]interface{}) {}
func (m *mockLogger) Info(ctx context.Context, msg string, fields ...map[string]interface{})  {}
func (m *mockLogger) Warn(ctx context.Context, msg string, fields ...map[string]interface{})  {}
func (m *mockLogger) Error(ctx context.Context, err error, msg string, fields ...map[string]interface{}) {
}

type mockSession struct {
	connected bool
	account   *domain.AccountInfo
}

func (m *mockSession) Connected() bool              { return m.connected }
func (m *mockSession) Account() *domain.AccountInfo { return m.account }

// mockTerminal fills accepted orders into its position list.
type mockTerminal struct {
	info         *domain.SymbolInfo
	tick         *domain.Tick
	account      *domain.AccountInfo
	positions    []domain.BrokerPosition
	positionsErr error
	sendResult   *domain.OrderResult
	sendErr      error
	sent         []domain.OrderRequest
	nextTicket   int64
}

func (m *mockTerminal) Initialize(ctx context.Context, creds domain.Credentials) error { return nil }
func (m *mockTerminal) Shutdown(ctx context.Context) error                             { return nil }
func (m *mockTerminal) Ping(ctx context.Context) error                                 { return nil }

func (m *mockTerminal) AccountInfo(ctx context.Context) (*domain.AccountInfo, error) {
	if m.account == nil {
		return nil, ports.ErrNotConnected
	}
	return m.account, nil
}

func (m *mockTerminal) SymbolInfo(ctx context.Context, symbol string) (*domain.SymbolInfo, error) {
	if m.info == nil {
		return nil, fmt.Errorf("symbol %s: %w", symbol, ports.ErrNotFound)
	}
	return m.info, nil
}

func (m *mockTerminal) Tick(ctx context.Context, symbol string) (*domain.Tick, error) {
	return m.tick, nil
}

func (m *mockTerminal) Bars(ctx context.Context, symbol string, timeframe time.Duration, count int) ([]domain.Bar, error) {
	return nil, nil
}

func (m *mockTerminal) OpenPositions(ctx context.Context) ([]domain.BrokerPosition, error) {
	return m.positions, m.positionsErr
}

func (m *mockTerminal) SendOrder(ctx context.Context, req domain.OrderRequest) (*domain.OrderResult, error) {
	m.sent = append(m.sent, req)
	if m.sendErr != nil {
		return nil, m.sendErr
	}
	if m.sendResult != nil {
		return m.sendResult, nil
	}
	m.nextTicket++
	m.positions = append(m.positions, domain.BrokerPosition{
		Ticket:     m.nextTicket,
		Symbol:     req.Symbol,
		Tag:        req.Tag,
		Volume:     req.Volume,
		EntryPrice: req.Price,
		StopLoss:   req.StopLoss,
		TakeProfit: req.TakeProfit,
	})
	return &domain.OrderResult{Accepted: true, Ticket: m.nextTicket, Price: req.Price, Volume: req.Volume}, nil
}

func (m *mockTerminal) ClosingDeal(ctx context.Context, pos domain.Position) (*domain.Deal, error) {
	return nil, ports.ErrDealNotFound
}

func newTestTerminal() *mockTerminal {
	return &mockTerminal{
		info: &domain.SymbolInfo{
			Name:         "EURUSD",
			Digits:       5,
			Point:        0.00001,
			VolumeMin:    0.01,
			VolumeMax:    100,
			VolumeStep:   0.01,
			ContractSize: 100000,
			FillModes:    domain.FillFOK | domain.FillIOC,
		},
		tick:    &domain.Tick{Bid: 1.09990, Ask: 1.10000},
		account: &domain.AccountInfo{Login: "1001", Balance: 10000, Equity: 10000, Mode: domain.AccountDemo},
	}
}

func newTestExecutor(term *mockTerminal, connected bool) *Executor {
	session := &mockSession{connected: connected, account: term.account}
	return New("EURUSD_KOI", term, session, risk.NewSizer(risk.SizingConfig{RiskPercent: 0.01}), DefaultOptions(), &mockLogger{})
}

func TestTag(t *testing.T) {
	assert.Equal(t, Tag("EURUSD_KOI"), Tag("EURUSD_KOI"))
	assert.NotEqual(t, Tag("EURUSD_KOI"), Tag("EURUSD_IOK"), "anagrams must not collide")
	assert.NotZero(t, Tag(""))

	seen := make(map[int64]string, 20000)
	for i := 0; i < 20000; i++ {
		name := fmt.Sprintf("CONFIG_%05d", i)
		tag := Tag(name)
		require.Positive(t, tag)
		require.LessOrEqual(t, tag, int64(tagMask))
		prev, dup := seen[tag]
		require.False(t, dup, "%s collides with %s", name, prev)
		seen[tag] = name
	}
}

func TestSelectFillMode(t *testing.T) {
	tests := []struct {
		name  string
		modes domain.FillMode
		want  domain.FillMode
	}{
		{"ioc preferred", domain.FillFOK | domain.FillIOC | domain.FillReturn, domain.FillIOC},
		{"fok next", domain.FillFOK | domain.FillReturn, domain.FillFOK},
		{"return only", domain.FillReturn, domain.FillReturn},
		{"nothing advertised", 0, domain.FillFOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SelectFillMode(&domain.SymbolInfo{FillModes: tt.modes}))
		})
	}
}

func TestExecuteLong_Success(t *testing.T) {
	term := newTestTerminal()
	exec := newTestExecutor(term, true)
	ctx := context.Background()

	require.True(t, exec.CanOpen(ctx, "EURUSD"))

	res := exec.ExecuteLong(ctx, "EURUSD", 1.1000, 1.0950, 1.1100)
	require.Equal(t, ResultSuccess, res.Kind, res.Message)
	assert.True(t, res.Success())
	assert.Equal(t, int64(1), res.Ticket)
	assert.InDelta(t, 0.2, res.Volume, 1e-9)

	require.Len(t, term.sent, 1)
	req := term.sent[0]
	assert.Equal(t, domain.Buy, req.Side)
	assert.Equal(t, exec.Tag(), req.Tag)
	assert.Equal(t, domain.FillIOC, req.FillMode)
	assert.Equal(t, domain.TimePolicyGTC, req.TimePolicy)
	assert.InDelta(t, 1.10020, req.Price, 1e-9)
	assert.InDelta(t, 1.0950, req.StopLoss, 1e-9)
	assert.InDelta(t, 1.1100, req.TakeProfit, 1e-9)

	// Filled position blocks a second entry on the same symbol.
	assert.False(t, exec.CanOpen(ctx, "EURUSD"))
	res = exec.ExecuteLong(ctx, "EURUSD", 1.1000, 1.0950, 1.1100)
	assert.Equal(t, ResultPositionExists, res.Kind)
	assert.Len(t, term.sent, 1)

	// Position closed on the broker side.
	term.positions = nil
	assert.True(t, exec.CanOpen(ctx, "EURUSD"))
}

func TestCanOpen(t *testing.T) {
	term := newTestTerminal()
	exec := newTestExecutor(term, true)
	ctx := context.Background()

	term.positions = []domain.BrokerPosition{
		{Ticket: 7, Symbol: "EURUSD", Tag: Tag("EURUSD_SEDNA")},
		{Ticket: 8, Symbol: "EURUSD", Tag: 0},
		{Ticket: 9, Symbol: "GBPUSD", Tag: exec.Tag()},
	}
	assert.True(t, exec.CanOpen(ctx, "EURUSD"), "foreign tags do not block")
	assert.False(t, exec.CanOpen(ctx, "GBPUSD"))
	assert.True(t, exec.CanOpen(ctx, "USDJPY"))

	term.positionsErr = ports.ErrExchangeUnavailable
	assert.False(t, exec.CanOpen(ctx, "EURUSD"))
}

func TestCanOpen_Netting(t *testing.T) {
	other := Tag("EURUSD_PRO")
	tests := []struct {
		name      string
		positions []domain.BrokerPosition
		want      bool
	}{
		{name: "flat symbol", want: true},
		{
			name:      "another configuration holds the symbol",
			positions: []domain.BrokerPosition{{Ticket: 7, Symbol: "EURUSD", Tag: other, Volume: 0.1}},
		},
		{
			name:      "untagged position on the symbol",
			positions: []domain.BrokerPosition{{Ticket: 0, Symbol: "EURUSD", Volume: 0.1}},
		},
		{
			name:      "other symbol only",
			positions: []domain.BrokerPosition{{Ticket: 7, Symbol: "GBPUSD", Tag: other, Volume: 0.1}},
			want:      true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			term := newTestTerminal()
			term.positions = tt.positions
			opts := DefaultOptions()
			opts.Netting = true
			session := &mockSession{connected: true, account: term.account}
			exec := New("EURUSD_KOI", term, session, risk.NewSizer(risk.SizingConfig{RiskPercent: 0.01}), opts, &mockLogger{})

			assert.Equal(t, tt.want, exec.CanOpen(context.Background(), "EURUSD"))

			res := exec.ExecuteLong(context.Background(), "EURUSD", 1.1000, 1.0950, 1.1100)
			if tt.want {
				assert.Equal(t, ResultSuccess, res.Kind)
			} else {
				assert.Equal(t, ResultPositionExists, res.Kind)
				assert.Empty(t, term.sent)
			}
		})
	}
}

func TestExecuteLong_Unprotected(t *testing.T) {
	term := newTestTerminal()
	term.sendResult = &domain.OrderResult{
		Accepted:    true,
		Ticket:      55,
		Price:       1.10002,
		Volume:      0.2,
		Code:        -2,
		Message:     "protective orders failed",
		Unprotected: true,
	}
	exec := newTestExecutor(term, true)

	res := exec.ExecuteLong(context.Background(), "EURUSD", 1.1000, 1.0950, 1.1100)
	assert.True(t, res.Success())
	assert.True(t, res.Unprotected)
	assert.Equal(t, int64(55), res.Ticket)
	assert.Equal(t, "protective orders failed", res.Message)
}

func TestExecuteLong_Failures(t *testing.T) {
	tests := []struct {
		name      string
		connected bool
		setup     func(m *mockTerminal)
		stopLoss  float64
		want      ResultKind
		wantCode  int
	}{
		{
			name:      "no connection",
			connected: false,
			setup:     func(m *mockTerminal) {},
			stopLoss:  1.0950,
			want:      ResultNoConnection,
		},
		{
			name:      "terminal rejection",
			connected: true,
			setup: func(m *mockTerminal) {
				m.sendResult = &domain.OrderResult{Accepted: false, Code: 10030, Message: "invalid fill"}
			},
			stopLoss: 1.0950,
			want:     ResultRejected,
			wantCode: 10030,
		},
		{
			name:      "insufficient margin",
			connected: true,
			setup: func(m *mockTerminal) {
				m.sendErr = fmt.Errorf("create order failed: %w: margin is insufficient", ports.ErrInsufficientFunds)
			},
			stopLoss: 1.0950,
			want:     ResultRejected,
		},
		{
			name:      "network error",
			connected: true,
			setup: func(m *mockTerminal) {
				m.sendErr = errors.New("connection reset by peer")
			},
			stopLoss: 1.0950,
			want:     ResultFailed,
		},
		{
			name:      "unknown symbol",
			connected: true,
			setup:     func(m *mockTerminal) { m.info = nil },
			stopLoss:  1.0950,
			want:      ResultFailed,
		},
		{
			name:      "stop above entry",
			connected: true,
			setup:     func(m *mockTerminal) {},
			stopLoss:  1.1050,
			want:      ResultRejected,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			term := newTestTerminal()
			tt.setup(term)
			exec := newTestExecutor(term, tt.connected)

			res := exec.ExecuteLong(context.Background(), "EURUSD", 1.1000, tt.stopLoss, 1.1100)
			assert.Equal(t, tt.want, res.Kind, res.Message)
			assert.False(t, res.Success())
			assert.Equal(t, tt.wantCode, res.Code)
			assert.NotEmpty(t, res.Message)
			assert.True(t, exec.CanOpen(context.Background(), "EURUSD"))
		})
	}
}

func TestExecuteLong_FallsBackToCachedEquity(t *testing.T) {
	term := newTestTerminal()
	cached := term.account
	term.account = nil
	exec := New("EURUSD_KOI", term, &mockSession{connected: true, account: cached},
		risk.NewSizer(risk.SizingConfig{RiskPercent: 0.02}), DefaultOptions(), &mockLogger{})

	res := exec.ExecuteLong(context.Background(), "EURUSD", 1.1000, 1.0950, 1.1100)
	require.Equal(t, ResultSuccess, res.Kind, res.Message)
	assert.InDelta(t, 0.4, res.Volume, 1e-9)
}
