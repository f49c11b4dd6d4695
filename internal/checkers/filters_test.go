package checkers

import (
	"testing"
	"time"

	"liveSignalBot/internal/domain"

	"github.com/stretchr/testify/assert"
)

func TestSessionFilters(t *testing.T) {
	monday9 := time.Date(2024, 3, 4, 9, 30, 0, 0, time.UTC)
	saturday := time.Date(2024, 3, 9, 9, 30, 0, 0, time.UTC)

	assert.True(t, hourAllowed(monday9, nil))
	assert.True(t, hourAllowed(monday9, []int{8, 9}))
	assert.False(t, hourAllowed(monday9, []int{10}))

	assert.Equal(t, 0, weekday(monday9))
	assert.Equal(t, 5, weekday(saturday))
	assert.True(t, dayAllowed(monday9, []int{0, 1, 2, 3, 4}))
	assert.False(t, dayAllowed(saturday, []int{0, 1, 2, 3, 4}))
	assert.True(t, dayAllowed(saturday, nil))
}

func TestEntryFilters(t *testing.T) {
	at := time.Date(2024, 3, 4, 9, 30, 0, 0, time.UTC)

	tests := []struct {
		name     string
		params   domain.Params
		atr      float64
		entry    float64
		stopLoss float64
		rejected bool
	}{
		{name: "all disabled", params: domain.Params{}, atr: 5, entry: 1.1, stopLoss: 0.5},
		{
			name:     "hour rejected",
			params:   domain.Params{"use_time_filter": true, "allowed_hours": []interface{}{10, 11}},
			atr:      0.001,
			entry:    1.1,
			stopLoss: 1.099,
			rejected: true,
		},
		{
			name:     "atr out of range",
			params:   domain.Params{"use_atr_filter": true, "atr_min": 0.0002, "atr_max": 0.0004},
			atr:      0.001,
			entry:    1.1,
			stopLoss: 1.099,
			rejected: true,
		},
		{
			name:     "sl pips in range",
			params:   domain.Params{"use_sl_pips_filter": true, "sl_pips_min": 5.0, "sl_pips_max": 50.0},
			atr:      0.001,
			entry:    1.1000,
			stopLoss: 1.0980,
		},
		{
			name:     "sl pips too wide",
			params:   domain.Params{"use_sl_pips_filter": true, "sl_pips_min": 5.0, "sl_pips_max": 50.0},
			atr:      0.001,
			entry:    1.1000,
			stopLoss: 1.0900,
			rejected: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := loadEntryFilters(tt.params, 0.0001, nil)
			reason := f.final(at, tt.atr, tt.entry, tt.stopLoss)
			if tt.rejected {
				assert.NotEmpty(t, reason)
			} else {
				assert.Empty(t, reason)
			}
		})
	}
}

func TestDetectPullback(t *testing.T) {
	highs := []float64{1.10, 1.11, 1.12, 1.15, 1.14, 1.13, 1.135}
	bars := make([]domain.Bar, len(highs))
	kama := make([]float64, len(highs))
	for i, h := range highs {
		bars[i] = domain.Bar{High: h, Low: h - 0.01, Open: h - 0.005, Close: h - 0.004}
		kama[i] = 1.09
	}

	pb, ok := detectPullback(bars, kama, 1, 4)
	assert.True(t, ok)
	assert.Equal(t, 1.15, pb.level)
	assert.Equal(t, 3, pb.barsSince)

	_, ok = detectPullback(bars, kama, 4, 6)
	assert.False(t, ok, "too recent")

	kama[5] = 1.13
	_, ok = detectPullback(bars, kama, 1, 4)
	assert.False(t, ok, "low broke KAMA after the swing high")
}
