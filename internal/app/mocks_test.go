package app

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"liveSignalBot/internal/checkers"
	"liveSignalBot/internal/domain"
	"liveSignalBot/internal/ports"
	"liveSignalBot/internal/risk"

	"github.com/moznion/go-optional"
	"github.com/stretchr/testify/require"
)

// Mock implementations
type mockLogger struct {
	mu        sync.Mutex
	warnMsgs  []string
	errorMsgs []string
}

func (m *mockLogger) Debug(ctx context.Context, msg string, fields ...map[string]interface{}) {}
func (m *mockLogger) Info(ctx context.Context, msg string, fields ...map[string]interface{})  {}

func (m *mockLogger) Warn(ctx context.Context, msg string, fields ...map[string]interface{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.warnMsgs = append(m.warnMsgs, msg)
}

func (m *mockLogger) Error(ctx context.Context, err error, msg string, fields ...map[string]interface{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errorMsgs = append(m.errorMsgs, msg)
}

var errNoDeal = fmt.Errorf("history empty: %w", ports.ErrDealNotFound)

// mockTerminal fills every order at its limit price and lists the filled positions as open.
type mockTerminal struct {
	positions    []domain.BrokerPosition
	deals        map[int64]*domain.Deal
	nextTicket   int64
	positionsErr error
	sent         []domain.OrderRequest
	dealCalls    int
	unprotected  string // Non-empty fills orders without protective legs
}

func newMockTerminal() *mockTerminal {
	return &mockTerminal{deals: make(map[int64]*domain.Deal), nextTicket: 1000}
}

func (m *mockTerminal) Initialize(ctx context.Context, creds domain.Credentials) error { return nil }
func (m *mockTerminal) Shutdown(ctx context.Context) error                             { return nil }
func (m *mockTerminal) Ping(ctx context.Context) error                                 { return nil }

func (m *mockTerminal) AccountInfo(ctx context.Context) (*domain.AccountInfo, error) {
	return &domain.AccountInfo{Login: "demo", Balance: 10000, Equity: 10000, Mode: domain.AccountDemo}, nil
}

func (m *mockTerminal) SymbolInfo(ctx context.Context, symbol string) (*domain.SymbolInfo, error) {
	return &domain.SymbolInfo{
		Name:         symbol,
		Digits:       5,
		Point:        0.00001,
		VolumeMin:    0.01,
		VolumeMax:    100,
		VolumeStep:   0.01,
		ContractSize: 100000,
		FillModes:    domain.FillIOC,
	}, nil
}

func (m *mockTerminal) Tick(ctx context.Context, symbol string) (*domain.Tick, error) {
	return &domain.Tick{Bid: 1.1000, Ask: 1.1001}, nil
}

func (m *mockTerminal) Bars(ctx context.Context, symbol string, timeframe time.Duration, count int) ([]domain.Bar, error) {
	return nil, errors.New("not used")
}

func (m *mockTerminal) OpenPositions(ctx context.Context) ([]domain.BrokerPosition, error) {
	if m.positionsErr != nil {
		return nil, m.positionsErr
	}
	return append([]domain.BrokerPosition(nil), m.positions...), nil
}

func (m *mockTerminal) SendOrder(ctx context.Context, req domain.OrderRequest) (*domain.OrderResult, error) {
	m.sent = append(m.sent, req)
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
	return &domain.OrderResult{
		Accepted:    true,
		Ticket:      m.nextTicket,
		Price:       req.Price,
		Volume:      req.Volume,
		Message:     m.unprotected,
		Unprotected: m.unprotected != "",
	}, nil
}

func (m *mockTerminal) ClosingDeal(ctx context.Context, pos domain.Position) (*domain.Deal, error) {
	m.dealCalls++
	if d, ok := m.deals[pos.Ticket]; ok {
		return d, nil
	}
	return nil, errNoDeal
}

// closeAll removes every open position, as if the broker hit the protective orders.
func (m *mockTerminal) closeAll() {
	m.positions = nil
}

type mockSession struct {
	connected     bool
	connectErr    error
	connectCalls  int
	probes        []bool // Consumed by IsConnected; empty means connected
	reconnectErrs []error
	reconnects    int
	disconnected  bool
}

func (m *mockSession) Connect(ctx context.Context) error {
	m.connectCalls++
	if m.connectErr != nil {
		return m.connectErr
	}
	m.connected = true
	return nil
}

func (m *mockSession) IsConnected(ctx context.Context) bool {
	if len(m.probes) == 0 {
		return m.connected
	}
	ok := m.probes[0]
	m.probes = m.probes[1:]
	m.connected = ok
	return ok
}

func (m *mockSession) Reconnect(ctx context.Context) error {
	m.reconnects++
	if len(m.reconnectErrs) > 0 {
		err := m.reconnectErrs[0]
		m.reconnectErrs = m.reconnectErrs[1:]
		if err != nil {
			m.connected = false
			return err
		}
	}
	m.connected = true
	return nil
}

func (m *mockSession) Disconnect(ctx context.Context) {
	m.disconnected = true
	m.connected = false
}

func (m *mockSession) Connected() bool { return m.connected }

func (m *mockSession) Account() *domain.AccountInfo {
	return &domain.AccountInfo{Login: "demo", Server: "testnet", Balance: 10000, Equity: 10000, Mode: domain.AccountDemo}
}

type mockBars struct {
	windows map[string][]domain.Bar
	fail    map[string]error
	calls   []string
}

func (m *mockBars) Fetch(ctx context.Context, symbol string, count int) ([]domain.Bar, error) {
	m.calls = append(m.calls, symbol)
	if err := m.fail[symbol]; err != nil {
		return nil, err
	}
	bars, ok := m.windows[symbol]
	if !ok {
		return nil, fmt.Errorf("no history for %s: %w", symbol, ports.ErrNotFound)
	}
	return bars, nil
}

func (m *mockBars) Timeframe() time.Duration { return 5 * time.Minute }

// stubChecker replays queued signals, one per Check call.
type stubChecker struct {
	signals   []domain.Signal
	calls     int
	reference []domain.Bar
}

func (s *stubChecker) Strategy() string { return "stub" }
func (s *stubChecker) MinBars() int     { return 10 }
func (s *stubChecker) Reset()           {}

func (s *stubChecker) Check(window, reference []domain.Bar) domain.Signal {
	s.calls++
	s.reference = reference
	if len(s.signals) == 0 {
		return domain.NoSignal("stub", "nothing", lastBarTime(window))
	}
	sig := s.signals[0]
	s.signals = s.signals[1:]
	return sig
}

func (s *stubChecker) DescribeState() domain.CheckerState {
	return domain.CheckerState{Strategy: "stub", Phase: "SCANNING", BarsProcessed: s.calls}
}

func lastBarTime(window []domain.Bar) time.Time {
	if len(window) == 0 {
		return time.Time{}
	}
	return window[len(window)-1].Time
}

type memorySink struct {
	events []ports.Event
	closed bool
}

func (m *memorySink) Emit(ctx context.Context, ev ports.Event) error {
	m.events = append(m.events, ev)
	return nil
}

func (m *memorySink) Close() error {
	m.closed = true
	return nil
}

func (m *memorySink) ofType(t ports.EventType) []ports.Event {
	var out []ports.Event
	for _, ev := range m.events {
		if ev.Type == t {
			out = append(out, ev)
		}
	}
	return out
}

type mockPositionRepo struct {
	positions map[int64]*domain.Position
}

func newMockPositionRepo() *mockPositionRepo {
	return &mockPositionRepo{positions: make(map[int64]*domain.Position)}
}

func (m *mockPositionRepo) Save(ctx context.Context, pos *domain.Position) error {
	if _, ok := m.positions[pos.Ticket]; ok {
		return ports.ErrDuplicateEntry
	}
	p := *pos
	m.positions[pos.Ticket] = &p
	return nil
}

func (m *mockPositionRepo) MarkClosed(ctx context.Context, ticket int64) error {
	p, ok := m.positions[ticket]
	if !ok {
		return ports.ErrNotFound
	}
	p.Status = domain.StatusClosed
	return nil
}

func (m *mockPositionRepo) FindByTicket(ctx context.Context, ticket int64) (*domain.Position, error) {
	p, ok := m.positions[ticket]
	if !ok {
		return nil, nil
	}
	out := *p
	return &out, nil
}

func (m *mockPositionRepo) FindOpen(ctx context.Context) ([]*domain.Position, error) {
	var out []*domain.Position
	for _, p := range m.positions {
		if p.Status == domain.StatusOpen {
			c := *p
			out = append(out, &c)
		}
	}
	return out, nil
}

type mockTradeRepo struct {
	trades []*domain.ClosedTrade
}

func (m *mockTradeRepo) CreateTrade(ctx context.Context, trade *domain.ClosedTrade) (int64, error) {
	for _, t := range m.trades {
		if t.Ticket == trade.Ticket {
			return 0, ports.ErrDuplicateEntry
		}
	}
	m.trades = append(m.trades, trade)
	trade.ID = int64(len(m.trades))
	return trade.ID, nil
}

func (m *mockTradeRepo) FindByConfig(ctx context.Context, configName string, limit int) ([]*domain.ClosedTrade, error) {
	return nil, nil
}

func (m *mockTradeRepo) FindAll(ctx context.Context) ([]*domain.ClosedTrade, error) {
	return m.trades, nil
}

func (m *mockTradeRepo) CountTodayByConfig(ctx context.Context, configName string) (int, error) {
	return 0, nil
}

type fakeClock struct {
	t time.Time
}

func (c *fakeClock) Now() time.Time { return c.t }

// fixture wires an orchestrator around the mocks with a fake clock.
type fixture struct {
	orch      *Orchestrator
	terminal  *mockTerminal
	session   *mockSession
	bars      *mockBars
	sink      *memorySink
	positions *mockPositionRepo
	trades    *mockTradeRepo
	checkers  map[string]*stubChecker
	clock     *fakeClock
	logger    *mockLogger
	sleeps    []time.Duration
}

var testNow = time.Date(2024, 3, 4, 10, 2, 30, 0, time.UTC)

func testBars(n int) []domain.Bar {
	bars := make([]domain.Bar, n)
	start := testNow.Truncate(5 * time.Minute).Add(-time.Duration(n) * 5 * time.Minute)
	for i := range bars {
		c := 1.1000 + 0.0001*float64(i)
		bars[i] = domain.Bar{Time: start.Add(time.Duration(i) * 5 * time.Minute), Open: c - 0.0001, High: c + 0.0002, Low: c - 0.0002, Close: c}
	}
	return bars
}

func stubConfig(name, symbol string) domain.StrategyConfig {
	return domain.StrategyConfig{Name: name, Symbol: symbol, ReferenceSymbol: optional.None[string](), StrategyType: "stub", Enabled: true}
}

func newFixture(t *testing.T, settings Settings, riskCfg risk.RiskConfig, configs ...domain.StrategyConfig) *fixture {
	f := &fixture{
		terminal:  newMockTerminal(),
		session:   &mockSession{connected: true},
		bars:      &mockBars{windows: map[string][]domain.Bar{"EURUSD": testBars(30), "USDCHF": testBars(30), "USDJPY": testBars(30)}},
		sink:      &memorySink{},
		positions: newMockPositionRepo(),
		trades:    &mockTradeRepo{},
		checkers:  make(map[string]*stubChecker),
		clock:     &fakeClock{t: testNow},
		logger:    &mockLogger{},
	}

	registry := checkers.NewRegistry(f.logger)
	registry.Register("stub", func(name string, params domain.Params, logger ports.Logger) (ports.Checker, error) {
		c := &stubChecker{}
		f.checkers[name] = c
		return c, nil
	})

	orch, err := New(settings, configs, Deps{
		Terminal:  f.terminal,
		Session:   f.session,
		Bars:      f.bars,
		Registry:  registry,
		Sizer:     risk.NewSizer(risk.DefaultSizingConfig()),
		Risk:      risk.NewRiskManager(riskCfg, f.trades),
		Positions: f.positions,
		Trades:    f.trades,
		Events:    f.sink,
		Logger:    f.logger,
	})
	require.NoError(t, err)
	orch.now = f.clock.Now
	orch.sleep = func(ctx context.Context, d time.Duration) error {
		f.sleeps = append(f.sleeps, d)
		f.clock.t = f.clock.t.Add(d)
		return ctx.Err()
	}
	f.orch = orch
	return f
}

func testSettings() Settings {
	s := DefaultSettings()
	s.BarCount = 20
	s.HeartbeatEvery = 0
	return s
}

func longSignal(entry, sl, tp float64) domain.Signal {
	return domain.LongSignal("stub", entry, sl, tp, 0.0008, "breakout", testNow)
}
