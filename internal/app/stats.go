package app

import (
	"sync"
	"time"
)

// Stats are the cumulative runtime counters reported by heartbeats and at shutdown.
type Stats struct {
	StartTime           time.Time
	Cycles              int
	Signals             int
	TradesOpened        int
	TradesClosed        int
	Errors              int
	LastBarTime         time.Time
	SignalsByConfig     map[string]int
	TradesByConfig      map[string]int
	NetPnLByConfig      map[string]float64
	EstimatedCommission float64
}

type statsBox struct {
	mu sync.Mutex
	s  Stats
}

func newStats(start time.Time) *statsBox {
	return &statsBox{s: Stats{
		StartTime:       start,
		SignalsByConfig: make(map[string]int),
		TradesByConfig:  make(map[string]int),
		NetPnLByConfig:  make(map[string]float64),
	}}
}

func (b *statsBox) cycle(lastBar time.Time) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.s.Cycles++
	if lastBar.After(b.s.LastBarTime) {
		b.s.LastBarTime = lastBar
	}
}

func (b *statsBox) signal(config string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.s.Signals++
	b.s.SignalsByConfig[config]++
}

func (b *statsBox) opened(config string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.s.TradesOpened++
	b.s.TradesByConfig[config]++
}

func (b *statsBox) closed(config string, net, estimatedCommission float64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.s.TradesClosed++
	b.s.NetPnLByConfig[config] += net
	b.s.EstimatedCommission += estimatedCommission
}

func (b *statsBox) addError() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.s.Errors++
}

func (b *statsBox) snapshot() Stats {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := b.s
	out.SignalsByConfig = copyCounts(b.s.SignalsByConfig)
	out.TradesByConfig = copyCounts(b.s.TradesByConfig)
	out.NetPnLByConfig = make(map[string]float64, len(b.s.NetPnLByConfig))
	for k, v := range b.s.NetPnLByConfig {
		out.NetPnLByConfig[k] = v
	}
	return out
}

// fields renders the counters for HEARTBEAT and MONITOR_STOP events.
func (b *statsBox) fields(now time.Time) map[string]interface{} {
	s := b.snapshot()
	f := map[string]interface{}{
		"start_time":          s.StartTime.UTC().Format(time.RFC3339),
		"runtime_minutes":     now.Sub(s.StartTime).Minutes(),
		"cycles":              s.Cycles,
		"signals_detected":    s.Signals,
		"trades_executed":     s.TradesOpened,
		"trades_closed":       s.TradesClosed,
		"errors_count":        s.Errors,
		"signals_by_strategy": s.SignalsByConfig,
		"trades_by_strategy":  s.TradesByConfig,
		"net_pnl_by_strategy": s.NetPnLByConfig,
	}
	if !s.LastBarTime.IsZero() {
		f["last_candle_time"] = s.LastBarTime.UTC().Format(time.RFC3339)
	}
	return f
}

func copyCounts(m map[string]int) map[string]int {
	out := make(map[string]int, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
