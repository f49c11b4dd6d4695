package app

import (
	"context"
	"errors"
	"fmt"

	"liveSignalBot/internal/domain"
	"liveSignalBot/internal/executor"
	"liveSignalBot/internal/ports"
	"liveSignalBot/internal/risk"
)

// RunCycle processes the latest closed bar for every configuration: connection check, one fetch
// per symbol, every checker in name order, execution of valid LONG signals, reconciliation and
// the periodic heartbeat.
func (o *Orchestrator) RunCycle(ctx context.Context) error {
	if err := o.ensureConnection(ctx); err != nil {
		return err
	}

	o.setState(StateCheckingSignals)
	windows, err := o.fetchWindows(ctx)
	if err != nil {
		return err
	}

	for _, slot := range o.slots {
		if err := ctx.Err(); err != nil {
			return err
		}
		o.checkAndExecute(ctx, slot, windows)
	}

	if err := o.reconcile(ctx); err != nil {
		o.setState(StateRunning)
		return fmt.Errorf("reconcile: %w", err)
	}

	o.setState(StateRunning)
	o.heartbeat(ctx)
	return nil
}

// fetchWindows fetches one window per distinct symbol. A failed symbol is skipped for this
// cycle; the cycle fails only when no symbol could be fetched.
func (o *Orchestrator) fetchWindows(ctx context.Context) (map[string][]domain.Bar, error) {
	windows := make(map[string][]domain.Bar, len(o.symbols))
	var lastErr error
	for _, symbol := range o.symbols {
		bars, err := o.deps.Bars.Fetch(ctx, symbol, o.barCount)
		if err != nil {
			lastErr = err
			o.logger.Warn(ctx, "Failed to fetch bars", map[string]interface{}{
				"symbol": symbol,
				"error":  err.Error(),
			})
			continue
		}
		if len(bars) == 0 {
			o.logger.Warn(ctx, "No data for symbol", map[string]interface{}{"symbol": symbol})
			continue
		}
		windows[symbol] = bars
	}
	if len(windows) == 0 {
		if lastErr == nil {
			lastErr = ports.ErrInsufficientData
		}
		return nil, fmt.Errorf("no bars fetched for any symbol: %w", lastErr)
	}

	var latest domain.Bar
	for _, bars := range windows {
		if last := bars[len(bars)-1]; last.Time.After(latest.Time) {
			latest = last
		}
	}
	o.stats.cycle(latest.Time)
	return windows, nil
}

// checkAndExecute runs the checker of one configuration and executes its signal.
func (o *Orchestrator) checkAndExecute(ctx context.Context, slot *strategySlot, windows map[string][]domain.Bar) {
	cfg := slot.config
	window, ok := windows[cfg.Symbol]
	if !ok {
		o.logger.Debug(ctx, "Skipping configuration without data", map[string]interface{}{"config": cfg.Name, "symbol": cfg.Symbol})
		return
	}
	var reference []domain.Bar
	if cfg.ReferenceSymbol.IsSome() {
		ref := cfg.ReferenceSymbol.Unwrap()
		if reference, ok = windows[ref]; !ok {
			o.logger.Debug(ctx, "Skipping configuration without reference data", map[string]interface{}{"config": cfg.Name, "reference": ref})
			return
		}
	}

	signal := slot.checker.Check(window, reference)
	if !signal.Valid {
		o.logger.Debug(ctx, "No signal", map[string]interface{}{"config": cfg.Name, "reason": signal.Reason})
		return
	}

	o.stats.signal(cfg.Name)
	o.logger.Info(ctx, "Signal detected", map[string]interface{}{
		"config":    cfg.Name,
		"direction": string(signal.Direction),
		"entry":     signal.EntryPrice,
	})
	o.emit(ctx, ports.EventSignal, cfg.Name, cfg.Symbol, signalFields(slot, signal))

	if signal.Direction != domain.Long {
		o.logger.Debug(ctx, "Non-LONG signal ignored", map[string]interface{}{"config": cfg.Name})
		return
	}
	if err := o.deps.Risk.ValidateEntry(ctx, cfg.Name); err != nil {
		o.logger.Warn(ctx, "Entry blocked by risk limits", map[string]interface{}{"config": cfg.Name, "error": err.Error()})
		o.emit(ctx, ports.EventExecutionFailed, cfg.Name, cfg.Symbol, map[string]interface{}{
			"kind":   blockedKind(err),
			"reason": err.Error(),
		})
		return
	}

	o.setState(StateExecuting)
	defer o.setState(StateCheckingSignals)

	result := slot.executor.ExecuteLong(ctx, cfg.Symbol, signal.EntryPrice, signal.StopLoss, signal.TakeProfit)
	if !result.Success() {
		o.logger.Warn(ctx, "Execution failed", map[string]interface{}{
			"config":  cfg.Name,
			"kind":    string(result.Kind),
			"message": result.Message,
		})
		o.emit(ctx, ports.EventExecutionFailed, cfg.Name, cfg.Symbol, map[string]interface{}{
			"kind":        string(result.Kind),
			"code":        result.Code,
			"reason":      result.Message,
			"entry_price": signal.EntryPrice,
			"stop_loss":   signal.StopLoss,
			"take_profit": signal.TakeProfit,
		})
		return
	}
	o.opened(ctx, slot, result)
}

// opened tracks and persists a filled entry.
func (o *Orchestrator) opened(ctx context.Context, slot *strategySlot, result executor.Result) {
	cfg := slot.config
	pos := domain.Position{
		Ticket:     result.Ticket,
		ConfigName: cfg.Name,
		Symbol:     cfg.Symbol,
		Direction:  domain.Long,
		EntryPrice: result.Price,
		StopLoss:   result.StopLoss,
		TakeProfit: result.TakeProfit,
		Volume:     result.Volume,
		OpenTime:   result.Timestamp,
		Tag:        slot.executor.Tag(),
		Status:     domain.StatusOpen,
	}

	var charge float64
	o.commission, charge = o.commission.Add(pos.Volume)
	o.positions[pos.Ticket] = &tracked{position: pos, entryCommission: charge}
	o.deps.Risk.RecordEntry(cfg.Name)
	o.stats.opened(cfg.Name)

	if o.deps.Positions != nil {
		if err := o.deps.Positions.Save(ctx, &pos); err != nil {
			o.logger.Error(ctx, err, "Failed to persist opened position", map[string]interface{}{"ticket": pos.Ticket})
		}
	}

	o.logger.Info(ctx, "Trade executed", map[string]interface{}{
		"config": cfg.Name,
		"ticket": pos.Ticket,
		"price":  pos.EntryPrice,
		"volume": pos.Volume,
	})
	o.emit(ctx, ports.EventTradeOpened, cfg.Name, cfg.Symbol, map[string]interface{}{
		"strategy":    slot.checker.Strategy(),
		"direction":   string(domain.Long),
		"ticket":      pos.Ticket,
		"entry_price": pos.EntryPrice,
		"volume":      pos.Volume,
		"stop_loss":   pos.StopLoss,
		"take_profit": pos.TakeProfit,
		"commission":  charge,
	})
	if result.Unprotected {
		o.logger.Error(ctx, errors.New(result.Message), "Position is open without stop-loss or take-profit", map[string]interface{}{
			"config": cfg.Name,
			"ticket": pos.Ticket,
		})
		o.emit(ctx, ports.EventError, cfg.Name, cfg.Symbol, map[string]interface{}{
			"ticket": pos.Ticket,
			"kind":   "UNPROTECTED_POSITION",
			"reason": result.Message,
		})
	}
}

// heartbeat emits the cumulative counters every HeartbeatEvery cycles.
func (o *Orchestrator) heartbeat(ctx context.Context) {
	every := o.settings.HeartbeatEvery
	cycles := o.stats.snapshot().Cycles
	if every <= 0 || cycles == 0 || cycles%every != 0 {
		return
	}
	fields := o.stats.fields(o.now())
	fields["open_positions"] = len(o.positions)
	fields["connected"] = o.deps.Session.Connected()
	o.emit(ctx, ports.EventHeartbeat, "", "", fields)
}

func signalFields(slot *strategySlot, s domain.Signal) map[string]interface{} {
	fields := map[string]interface{}{
		"strategy":    slot.checker.Strategy(),
		"direction":   string(s.Direction),
		"entry_price": s.EntryPrice,
		"stop_loss":   s.StopLoss,
		"take_profit": s.TakeProfit,
		"atr":         s.ReferenceValue,
		"reason":      s.Reason,
	}
	if !s.Timestamp.IsZero() {
		fields["signal_time"] = s.Timestamp.UTC().Format("2006-01-02T15:04:05Z")
	}
	if slot.config.ReferenceSymbol.IsSome() {
		fields["reference_symbol"] = slot.config.ReferenceSymbol.Unwrap()
	}
	return fields
}

func blockedKind(err error) string {
	switch {
	case errors.Is(err, risk.ErrEmergencyStop):
		return "EMERGENCY_STOP"
	case errors.Is(err, risk.ErrDailyTradeLimit):
		return "DAILY_LIMIT"
	default:
		return "RISK_CHECK_FAILED"
	}
}
