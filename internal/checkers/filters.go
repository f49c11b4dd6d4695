package checkers

import (
	"fmt"
	"math"
	"slices"
	"time"

	"liveSignalBot/internal/domain"
)

// hourAllowed reports whether t's hour is in the list. An empty list allows every hour.
func hourAllowed(t time.Time, hours []int) bool {
	if len(hours) == 0 {
		return true
	}
	return slices.Contains(hours, t.Hour())
}

// weekday maps Monday to 0 and Sunday to 6.
func weekday(t time.Time) int {
	return (int(t.Weekday()) + 6) % 7
}

// dayAllowed reports whether t's weekday (Monday = 0) is in the list. An empty list allows every day.
func dayAllowed(t time.Time, days []int) bool {
	if len(days) == 0 {
		return true
	}
	return slices.Contains(days, weekday(t))
}

func between(v, lo, hi float64) bool {
	return lo <= v && v <= hi
}

// slPips converts the stop distance into pips.
func slPips(entry, stopLoss, pip float64) float64 {
	if pip <= 0 {
		return 0
	}
	return math.Abs(entry-stopLoss) / pip
}

// pullback is the result of scanning recent bars for a swing high followed by a shallow retracement.
type pullback struct {
	level     float64
	barsSince int
}

// detectPullback looks at the last maxBars+5 bars for the highest high. The pullback is valid
// when the high is between minBars and maxBars bars old and every low after it stays above the
// matching KAMA value. kama must be aligned with bars.
func detectPullback(bars []domain.Bar, kama []float64, minBars, maxBars int) (pullback, bool) {
	if len(bars) < 2 || len(kama) != len(bars) {
		return pullback{}, false
	}
	lookback := maxBars + 5
	from := len(bars) - lookback
	if from < 0 {
		from = 0
	}
	idx := from
	for i := from + 1; i < len(bars); i++ {
		if bars[i].High >= bars[idx].High {
			idx = i
		}
	}
	since := len(bars) - 1 - idx
	if since < minBars || since > maxBars {
		return pullback{}, false
	}
	for i := idx + 1; i < len(bars); i++ {
		if bars[i].Low <= kama[i] {
			return pullback{}, false
		}
	}
	return pullback{level: bars[idx].High, barsSince: since}, true
}

// entryFilters are the optional final filters shared by every strategy.
type entryFilters struct {
	useTime   bool
	hours     []int
	useDay    bool
	days      []int
	useATR    bool
	atrMin    float64
	atrMax    float64
	useSLPips bool
	slPipsMin float64
	slPipsMax float64
	pip       float64
}

func loadEntryFilters(p domain.Params, pip float64, days []int) entryFilters {
	return entryFilters{
		useTime:   p.Bool("use_time_filter", false),
		hours:     p.Ints("allowed_hours", nil),
		useDay:    p.Bool("use_day_filter", false),
		days:      p.Ints("allowed_days", days),
		useATR:    p.Bool("use_atr_filter", false),
		atrMin:    p.Float("atr_min", 0),
		atrMax:    p.Float("atr_max", 999),
		useSLPips: p.Bool("use_sl_pips_filter", false),
		slPipsMin: p.Float("sl_pips_min", 0),
		slPipsMax: p.Float("sl_pips_max", 999),
		pip:       p.Float("pip_value", pip),
	}
}

// session returns a rejection reason when at falls outside the allowed hours or days.
func (f entryFilters) session(at time.Time) string {
	if f.useTime && !hourAllowed(at, f.hours) {
		return fmt.Sprintf("Time filter: hour %d not allowed", at.Hour())
	}
	if f.useDay && !dayAllowed(at, f.days) {
		return fmt.Sprintf("Day filter: day %d not allowed", weekday(at))
	}
	return ""
}

func (f entryFilters) volatility(atr float64) string {
	if f.useATR && !between(atr, f.atrMin, f.atrMax) {
		return fmt.Sprintf("ATR filter: %.6f not in [%g-%g]", atr, f.atrMin, f.atrMax)
	}
	return ""
}

func (f entryFilters) stopDistance(entry, stopLoss float64) string {
	if !f.useSLPips {
		return ""
	}
	pips := slPips(entry, stopLoss, f.pip)
	if !between(pips, f.slPipsMin, f.slPipsMax) {
		return fmt.Sprintf("SL pips filter: %.1f not in [%g-%g]", pips, f.slPipsMin, f.slPipsMax)
	}
	return ""
}

// final runs the session, volatility and stop-distance filters in order and returns the first rejection.
func (f entryFilters) final(at time.Time, atr, entry, stopLoss float64) string {
	if reason := f.session(at); reason != "" {
		return reason
	}
	if reason := f.volatility(atr); reason != "" {
		return reason
	}
	return f.stopDistance(entry, stopLoss)
}
