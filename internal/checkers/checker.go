// Package checkers implements the per-configuration strategy phase machines.
// A checker consumes one closed-bar window per call and returns at most one signal.
package checkers

import (
	"context"
	"fmt"
	"time"

	"liveSignalBot/internal/domain"
	"liveSignalBot/internal/ports"
)

const (
	reasonInsufficientData = "insufficient data"
	reasonNoReference      = "No reference data available"
	phaseScanning          = "SCANNING"
)

// base holds identity, bar counters and logging shared by every checker.
type base struct {
	strategy      string
	configName    string
	minBars       int
	barsProcessed int
	barsInPhase   int
	logger        ports.Logger
}

func newBase(strategy, configName string, minBars int, logger ports.Logger) base {
	return base{
		strategy:   strategy,
		configName: configName,
		minBars:    minBars,
		logger:     logger,
	}
}

// Strategy returns the registry name of the checker.
func (b *base) Strategy() string { return b.strategy }

// MinBars returns the shortest window the checker accepts.
func (b *base) MinBars() int { return b.minBars }

// advance counts one consumed bar. It is called only after every input has been validated.
func (b *base) advance() {
	b.barsProcessed++
	b.barsInPhase++
}

func (b *base) transition(from, to, reason string) {
	b.barsInPhase = 0
	b.logger.Debug(context.Background(), "Checker phase transition", map[string]interface{}{
		"configuration": b.configName,
		"strategy":      b.strategy,
		"from":          from,
		"to":            to,
		"reason":        reason,
	})
}

func (b *base) noSignal(reason string, at time.Time) domain.Signal {
	return domain.NoSignal(b.strategy, reason, at)
}

func (b *base) noSignalf(at time.Time, format string, args ...interface{}) domain.Signal {
	return domain.NoSignal(b.strategy, fmt.Sprintf(format, args...), at)
}

func (b *base) long(entry, stopLoss, takeProfit, atr float64, reason string, at time.Time) domain.Signal {
	b.logger.Info(context.Background(), "Checker produced LONG signal", map[string]interface{}{
		"configuration": b.configName,
		"strategy":      b.strategy,
		"entry":         entry,
		"stop_loss":     stopLoss,
		"take_profit":   takeProfit,
		"atr":           atr,
	})
	return domain.LongSignal(b.strategy, entry, stopLoss, takeProfit, atr, reason, at)
}

func (b *base) snapshot(phase string, temporaries map[string]float64) domain.CheckerState {
	return domain.CheckerState{
		Strategy:      b.strategy,
		Configuration: b.configName,
		Phase:         phase,
		BarsProcessed: b.barsProcessed,
		BarsInPhase:   b.barsInPhase,
		Temporaries:   temporaries,
	}
}

// lastTime returns the open time of the newest bar, or the zero time for an empty window.
func lastTime(window []domain.Bar) time.Time {
	if len(window) == 0 {
		return time.Time{}
	}
	return window[len(window)-1].Time
}
