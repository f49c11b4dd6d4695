package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"liveSignalBot/internal/ports"

	"github.com/jpillora/backoff"
	"github.com/robfig/cron/v3"
)

// barSchedule returns the cron schedule of bar boundaries for timeframes that divide an hour
// or a day evenly, and nil otherwise.
func barSchedule(timeframe time.Duration) cron.Schedule {
	var spec string
	switch {
	case timeframe <= 0 || timeframe%time.Minute != 0:
		return nil
	case timeframe < time.Hour && time.Hour%timeframe == 0:
		spec = fmt.Sprintf("*/%d * * * *", int(timeframe/time.Minute))
	case timeframe == time.Hour:
		spec = "0 * * * *"
	case timeframe < 24*time.Hour && timeframe%time.Hour == 0 && (24*time.Hour)%timeframe == 0:
		spec = fmt.Sprintf("0 */%d * * *", int(timeframe/time.Hour))
	case timeframe == 24*time.Hour:
		spec = "0 0 * * *"
	default:
		return nil
	}
	sched, err := cron.ParseStandard(spec)
	if err != nil {
		return nil
	}
	return sched
}

// nextBarClose returns the first bar boundary strictly after now, in UTC.
func (o *Orchestrator) nextBarClose(now time.Time) time.Time {
	now = now.UTC()
	if o.schedule != nil {
		return o.schedule.Next(now)
	}
	tf := o.deps.Bars.Timeframe()
	return now.Truncate(tf).Add(tf)
}

// waitForBarClose sleeps until the next bar boundary plus the close buffer. The sleep is split
// into connection-check periods so a dead session is repaired while waiting; ctx cancellation
// ends the wait immediately.
func (o *Orchestrator) waitForBarClose(ctx context.Context) error {
	o.setState(StateWaitingCandle)
	deadline := o.nextBarClose(o.now()).Add(o.settings.CloseBuffer)
	o.logger.Info(ctx, "Waiting for candle close", map[string]interface{}{
		"until":   deadline.Format(time.RFC3339),
		"seconds": int(deadline.Sub(o.now()).Seconds()),
	})

	step := o.settings.ConnectionCheckEvery
	if step <= 0 {
		step = 10 * time.Second
	}
	for {
		remaining := deadline.Sub(o.now())
		if remaining <= 0 {
			return nil
		}
		if err := o.sleep(ctx, min(remaining, step)); err != nil {
			return err
		}
		if deadline.Sub(o.now()) <= 0 {
			return nil
		}
		if err := o.ensureConnection(ctx); err != nil {
			return fmt.Errorf("connection lost during candle wait: %w", err)
		}
	}
}

// ensureConnection probes the session and reconnects with exponential backoff when it is down.
func (o *Orchestrator) ensureConnection(ctx context.Context) error {
	op := "ensureConnection"
	if o.deps.Session.IsConnected(ctx) {
		return nil
	}

	o.logger.Warn(ctx, op+": Connection lost, attempting reconnect...")
	o.emit(ctx, ports.EventConnection, "", "", map[string]interface{}{"status": "lost"})

	b := &backoff.Backoff{
		Min:    o.settings.ReconnectDelay,
		Max:    max(o.settings.ReconnectMaxDelay, o.settings.ReconnectDelay),
		Factor: 2,
	}
	attempts := max(o.settings.MaxReconnectAttempts, 1)
	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		lastErr = o.deps.Session.Reconnect(ctx)
		if lastErr == nil {
			o.logger.Info(ctx, op+": Reconnected", map[string]interface{}{"attempt": attempt})
			o.emit(ctx, ports.EventConnection, "", "", map[string]interface{}{"status": "reconnected", "attempt": attempt})
			return nil
		}
		if isFatal(lastErr) {
			break
		}
		o.logger.Warn(ctx, op+": Reconnect attempt failed", map[string]interface{}{
			"attempt": attempt,
			"error":   lastErr.Error(),
		})
		if attempt < attempts {
			if err := o.sleep(ctx, b.Duration()); err != nil {
				return err
			}
		}
	}

	o.logger.Error(ctx, lastErr, op+": Failed to reconnect after max attempts", map[string]interface{}{"attempts": attempts})
	o.emit(ctx, ports.EventError, "", "", map[string]interface{}{"error": "reconnection_failed", "detail": lastErr.Error()})
	return fmt.Errorf("reconnect failed: %w: %w", ports.ErrConnectionFailed, lastErr)
}

// connectWithRetry opens the first session, waiting delay*attempt between attempts.
// Configuration errors and a refused live account end the retries at once.
func (o *Orchestrator) connectWithRetry(ctx context.Context) error {
	attempts := max(o.settings.StartupAttempts, 1)
	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err = o.deps.Session.Connect(ctx); err == nil {
			return nil
		}
		if isFatal(err) {
			return err
		}
		if attempt == attempts {
			break
		}
		wait := o.settings.ReconnectDelay * time.Duration(attempt)
		o.logger.Warn(ctx, "Initialization failed, retrying", map[string]interface{}{
			"attempt":  attempt,
			"attempts": attempts,
			"wait":     wait.String(),
			"error":    err.Error(),
		})
		if serr := o.sleep(ctx, wait); serr != nil {
			return serr
		}
	}
	return fmt.Errorf("failed to initialize after %d attempts: %w", attempts, err)
}

func isFatal(err error) bool {
	return errors.Is(err, ports.ErrConfigurationError) ||
		errors.Is(err, ports.ErrLiveAccountRefused) ||
		errors.Is(err, ports.ErrAuthenticationFailed) ||
		errors.Is(err, ports.ErrInvalidAPIKeys)
}

// sleepCtx waits for d or until ctx is done.
func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
