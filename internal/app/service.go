package app

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"liveSignalBot/internal/checkers"
	"liveSignalBot/internal/domain"
	"liveSignalBot/internal/executor"
	"liveSignalBot/internal/ports"
	"liveSignalBot/internal/risk"

	"github.com/robfig/cron/v3"
)

// ErrTooManyErrors stops the loop once the consecutive-failure threshold is reached.
var ErrTooManyErrors = errors.New("too many consecutive iteration errors")

// State is the run-lifecycle state of the orchestrator.
type State string

const (
	StateInitializing    State = "INITIALIZING"
	StateRunning         State = "RUNNING"
	StateWaitingCandle   State = "WAITING_CANDLE"
	StateCheckingSignals State = "CHECKING_SIGNALS"
	StateExecuting       State = "EXECUTING"
	StateError           State = "ERROR"
	StateStopped         State = "STOPPED"
)

// Session is the connection the orchestrator keeps alive.
type Session interface {
	executor.SessionState
	Connect(ctx context.Context) error
	IsConnected(ctx context.Context) bool
	Reconnect(ctx context.Context) error
	Disconnect(ctx context.Context)
}

// BarFetcher returns closed bar windows.
type BarFetcher interface {
	Fetch(ctx context.Context, symbol string, count int) ([]domain.Bar, error)
	Timeframe() time.Duration
}

// Settings holds the loop tuning knobs.
type Settings struct {
	BarCount             int           // Bars fetched per symbol, raised to the largest checker minimum
	CloseBuffer          time.Duration // Delay after the bar boundary before fetching
	ConnectionCheckEvery time.Duration // Connection probe period while waiting for a bar
	StartupAttempts      int
	MaxReconnectAttempts int
	ReconnectDelay       time.Duration // First reconnect delay, doubled per attempt
	ReconnectMaxDelay    time.Duration
	MaxConsecutiveErrors int
	HeartbeatEvery       int     // Cycles between heartbeats, zero disables them
	TolerancePips        float64 // SL/TP proximity used to classify closes
	DealMissLimit        int     // Closing deal lookups before a trade is closed without one
	CommissionPerLot     float64
	DemoOnly             bool
	Execution            executor.Options
}

// DefaultSettings returns the settings of the live monitor.
func DefaultSettings() Settings {
	return Settings{
		BarCount:             200,
		CloseBuffer:          2 * time.Second,
		ConnectionCheckEvery: 10 * time.Second,
		StartupAttempts:      5,
		MaxReconnectAttempts: 5,
		ReconnectDelay:       30 * time.Second,
		ReconnectMaxDelay:    5 * time.Minute,
		MaxConsecutiveErrors: 5,
		HeartbeatEvery:       12,
		TolerancePips:        2,
		DealMissLimit:        3,
		CommissionPerLot:     risk.DefaultCommissionPerLot,
		DemoOnly:             true,
		Execution:            executor.DefaultOptions(),
	}
}

// Deps are the collaborators of the orchestrator.
type Deps struct {
	Terminal  ports.Terminal
	Session   Session
	Bars      BarFetcher
	Registry  *checkers.Registry
	Sizer     *risk.Sizer
	Risk      *risk.RiskManager
	Positions ports.PositionRepository
	Trades    ports.TradeRepository
	Events    ports.EventSink
	Logger    ports.Logger
}

// strategySlot binds one enabled configuration to its checker and executor.
type strategySlot struct {
	config   domain.StrategyConfig
	checker  ports.Checker
	executor *executor.Executor
}

// tracked is an open position followed until its ticket leaves the broker.
type tracked struct {
	position        domain.Position
	entryCommission float64
	dealMisses      int
}

// Orchestrator runs every enabled configuration on a single thread of control.
type Orchestrator struct {
	settings Settings
	deps     Deps
	logger   ports.Logger
	slots    []*strategySlot // Sorted by configuration name
	byTag    map[int64]*strategySlot
	symbols  []string // Distinct symbols, sorted
	barCount int
	schedule cron.Schedule

	mu         sync.Mutex
	state      State
	positions  map[int64]*tracked
	commission risk.Commission
	stats      *statsBox
	errStreak  int

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

// New wires the orchestrator and builds one checker and one executor per enabled configuration.
// Unknown strategy types and missing parameters fail here.
func New(settings Settings, configs []domain.StrategyConfig, deps Deps) (*Orchestrator, error) {
	if deps.Terminal == nil || deps.Session == nil || deps.Bars == nil || deps.Registry == nil ||
		deps.Sizer == nil || deps.Risk == nil || deps.Events == nil || deps.Logger == nil {
		return nil, fmt.Errorf("missing required dependencies for Orchestrator: %w", ports.ErrConfigurationError)
	}
	if settings.BarCount <= 0 {
		return nil, fmt.Errorf("bar count must be positive: %w", ports.ErrConfigurationError)
	}

	o := &Orchestrator{
		settings:   settings,
		deps:       deps,
		logger:     deps.Logger,
		byTag:      make(map[int64]*strategySlot),
		barCount:   settings.BarCount,
		schedule:   barSchedule(deps.Bars.Timeframe()),
		state:      StateInitializing,
		positions:  make(map[int64]*tracked),
		commission: risk.NewCommission(settings.CommissionPerLot),
		now:        time.Now,
		sleep:      sleepCtx,
	}
	o.stats = newStats(o.now())

	sorted := append([]domain.StrategyConfig(nil), configs...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Name < sorted[j].Name })

	seen := make(map[string]bool)
	for _, cfg := range sorted {
		if !cfg.Enabled {
			continue
		}
		checker, err := deps.Registry.New(cfg)
		if err != nil {
			return nil, fmt.Errorf("configuration %s: %w", cfg.Name, err)
		}
		ex := executor.New(cfg.Name, deps.Terminal, deps.Session, deps.Sizer, settings.Execution, deps.Logger)
		if other, clash := o.byTag[ex.Tag()]; clash {
			return nil, fmt.Errorf("configurations %s and %s share tag %d: %w", other.config.Name, cfg.Name, ex.Tag(), ports.ErrConfigurationError)
		}
		slot := &strategySlot{config: cfg, checker: checker, executor: ex}
		o.slots = append(o.slots, slot)
		o.byTag[ex.Tag()] = slot
		o.barCount = max(o.barCount, checker.MinBars())

		for _, s := range cfg.Symbols() {
			if !seen[s] {
				seen[s] = true
				o.symbols = append(o.symbols, s)
			}
		}
	}
	if len(o.slots) == 0 {
		return nil, fmt.Errorf("no enabled strategy configurations: %w", ports.ErrConfigurationError)
	}
	sort.Strings(o.symbols)
	return o, nil
}

// State returns the current run-lifecycle state.
func (o *Orchestrator) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

func (o *Orchestrator) setState(s State) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.state = s
}

// Configurations returns the names of the active configurations in processing order.
func (o *Orchestrator) Configurations() []string {
	names := make([]string, 0, len(o.slots))
	for _, s := range o.slots {
		names = append(names, s.config.Name)
	}
	return names
}

// Stats returns a copy of the runtime counters.
func (o *Orchestrator) Stats() Stats {
	return o.stats.snapshot()
}

// Tracked returns the positions currently followed, ordered by ticket.
func (o *Orchestrator) Tracked() []domain.Position {
	tickets := o.trackedTickets()
	out := make([]domain.Position, 0, len(tickets))
	for _, t := range tickets {
		out = append(out, o.positions[t].position)
	}
	return out
}

// Start connects, recovers open positions and announces the run.
func (o *Orchestrator) Start(ctx context.Context) error {
	op := "Start"
	o.setState(StateInitializing)
	o.logger.Info(ctx, op+": Starting live signal monitor", map[string]interface{}{
		"configurations": o.Configurations(),
		"symbols":        o.symbols,
		"demoOnly":       o.settings.DemoOnly,
	})

	if err := o.connectWithRetry(ctx); err != nil {
		o.setState(StateError)
		o.emit(ctx, ports.EventError, "", "", map[string]interface{}{"error": err.Error(), "phase": "initialization"})
		return err
	}
	if err := o.Recover(ctx); err != nil {
		o.logger.Error(ctx, err, op+": Position recovery failed")
		o.emit(ctx, ports.EventError, "", "", map[string]interface{}{"error": err.Error(), "phase": "recovery"})
	}

	fields := map[string]interface{}{
		"demo_only":       o.settings.DemoOnly,
		"enabled_configs": o.Configurations(),
		"symbols":         o.symbols,
		"bar_count":       o.barCount,
		"timeframe":       o.deps.Bars.Timeframe().String(),
	}
	if acct := o.deps.Session.Account(); acct != nil {
		fields["account"] = acct.Login
		fields["server"] = acct.Server
		fields["account_mode"] = string(acct.Mode)
		fields["balance"] = acct.Balance
	}
	o.emit(ctx, ports.EventMonitorStart, "", "", fields)
	o.setState(StateRunning)
	return nil
}

// Run starts the monitor and processes one cycle per closed bar until ctx is cancelled
// or the consecutive-error threshold is reached.
func (o *Orchestrator) Run(ctx context.Context) error {
	if err := o.Start(ctx); err != nil {
		o.teardown(ctx)
		return err
	}
	o.logger.Info(ctx, "Entering main trading loop")

	var runErr error
	for ctx.Err() == nil {
		err := o.waitForBarClose(ctx)
		if err == nil {
			err = o.RunCycle(ctx)
		}
		if ctx.Err() != nil {
			break
		}
		if err != nil {
			if o.recordFailure(ctx, err) {
				runErr = fmt.Errorf("%w (%d): %w", ErrTooManyErrors, o.errStreak, err)
				break
			}
			continue
		}
		o.errStreak = 0
	}

	if ctx.Err() != nil {
		o.logger.Info(ctx, "Shutdown requested", map[string]interface{}{"reason": context.Cause(ctx).Error()})
	}
	o.teardown(ctx)
	return runErr
}

// RunOnce starts the monitor, runs a single cycle without waiting for a bar close and stops.
func (o *Orchestrator) RunOnce(ctx context.Context) error {
	if err := o.Start(ctx); err != nil {
		o.teardown(ctx)
		return err
	}
	err := o.RunCycle(ctx)
	if err != nil {
		o.recordFailure(ctx, err)
	}
	o.teardown(ctx)
	return err
}

// recordFailure counts a failed iteration and reports whether the loop must stop.
func (o *Orchestrator) recordFailure(ctx context.Context, err error) bool {
	o.errStreak++
	o.stats.addError()
	o.logger.Error(ctx, err, "Error in main loop iteration", map[string]interface{}{"consecutiveErrors": o.errStreak})
	o.emit(ctx, ports.EventIterationError, "", "", map[string]interface{}{
		"error":              err.Error(),
		"consecutive_errors": o.errStreak,
	})

	if o.settings.MaxConsecutiveErrors > 0 && o.errStreak >= o.settings.MaxConsecutiveErrors {
		o.logger.Error(ctx, err, "Too many consecutive errors, stopping", map[string]interface{}{"consecutiveErrors": o.errStreak})
		o.emit(ctx, ports.EventFatalError, "", "", map[string]interface{}{
			"error":              err.Error(),
			"consecutive_errors": o.errStreak,
		})
		o.setState(StateError)
		return true
	}
	// Wait before retry
	_ = o.sleep(ctx, o.settings.ReconnectDelay)
	return false
}

// teardown emits the final statistics, disconnects and closes the event sink.
func (o *Orchestrator) teardown(ctx context.Context) {
	ctx = context.WithoutCancel(ctx)
	if o.State() != StateError {
		o.setState(StateStopped)
	}
	fields := o.stats.fields(o.now())
	fields["open_positions"] = len(o.positions)
	fields["final_state"] = string(o.State())
	o.emit(ctx, ports.EventMonitorStop, "", "", fields)

	o.deps.Session.Disconnect(ctx)
	if err := o.deps.Events.Close(); err != nil {
		o.logger.Error(ctx, err, "Failed to close event sink")
	}
	o.logger.Info(ctx, "Monitor stopped", fields)
}

// emit writes one event; failures are logged and never interrupt the loop.
func (o *Orchestrator) emit(ctx context.Context, typ ports.EventType, config, symbol string, fields map[string]interface{}) {
	ev := ports.Event{
		Timestamp:     o.now().UTC(),
		Type:          typ,
		Configuration: config,
		Symbol:        symbol,
		Fields:        fields,
	}
	if err := o.deps.Events.Emit(ctx, ev); err != nil {
		o.logger.Error(ctx, err, "Failed to write event", map[string]interface{}{"eventType": string(typ)})
	}
}

func (o *Orchestrator) trackedTickets() []int64 {
	tickets := make([]int64, 0, len(o.positions))
	for t := range o.positions {
		tickets = append(tickets, t)
	}
	sort.Slice(tickets, func(i, j int) bool { return tickets[i] < tickets[j] })
	return tickets
}
