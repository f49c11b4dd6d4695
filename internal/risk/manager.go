package risk

import (
	"context"
	"errors"
	"fmt"
	"time"
)

var (
	// ErrEmergencyStop blocks every new order while the kill switch is set.
	ErrEmergencyStop = errors.New("emergency stop is active")
	// ErrDailyTradeLimit blocks new orders once a configuration reached its daily cap.
	ErrDailyTradeLimit = errors.New("daily trade limit reached")
)

// RiskConfig holds the account-wide trading limits.
type RiskConfig struct {
	MaxDailyTrades int  // Per configuration, zero for unlimited
	EmergencyStop  bool // Signals are still reported, orders are not sent
}

// TradeCounter reports how many trades a configuration opened today.
type TradeCounter interface {
	CountTodayByConfig(ctx context.Context, configName string) (int, error)
}

// RiskManager gates new entries against the account-wide limits.
type RiskManager struct {
	config  RiskConfig
	counter TradeCounter
	stats   *RiskStats
	now     func() time.Time
}

// RiskStats holds the entries opened per configuration during the current UTC day.
type RiskStats struct {
	Day         time.Time
	DailyTrades map[string]int
	Blocked     int
}

// NewRiskManager creates a new risk manager instance. counter may be nil, in which
// case only the in-memory daily count is used.
func NewRiskManager(config RiskConfig, counter TradeCounter) *RiskManager {
	return &RiskManager{
		config:  config,
		counter: counter,
		stats:   &RiskStats{DailyTrades: make(map[string]int)},
		now:     time.Now,
	}
}

// ValidateEntry checks if the configuration may open a new position now.
func (r *RiskManager) ValidateEntry(ctx context.Context, configName string) error {
	r.rollDay()

	if r.config.EmergencyStop {
		r.stats.Blocked++
		return ErrEmergencyStop
	}
	if r.config.MaxDailyTrades <= 0 {
		return nil
	}

	count := r.stats.DailyTrades[configName]
	if r.counter != nil {
		stored, err := r.counter.CountTodayByConfig(ctx, configName)
		if err != nil {
			return fmt.Errorf("count today's trades for %s: %w", configName, err)
		}
		count = max(count, stored)
	}
	if count >= r.config.MaxDailyTrades {
		r.stats.Blocked++
		return fmt.Errorf("%s opened %d of %d trades today: %w", configName, count, r.config.MaxDailyTrades, ErrDailyTradeLimit)
	}
	return nil
}

// RecordEntry counts a successfully opened position.
func (r *RiskManager) RecordEntry(configName string) {
	r.rollDay()
	r.stats.DailyTrades[configName]++
}

// ResetDailyStats clears the daily counters.
func (r *RiskManager) ResetDailyStats() {
	r.stats.Day = startOfDay(r.now())
	r.stats.DailyTrades = make(map[string]int)
	r.stats.Blocked = 0
}

// GetStats returns the current risk management statistics
func (r *RiskManager) GetStats() *RiskStats {
	return r.stats
}

func (r *RiskManager) rollDay() {
	if today := startOfDay(r.now()); !today.Equal(r.stats.Day) {
		r.stats.Day = today
		r.stats.DailyTrades = make(map[string]int)
		r.stats.Blocked = 0
	}
}

func startOfDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
