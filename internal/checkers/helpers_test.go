package checkers

import (
	"context"
	"math/rand"
	"time"

	"liveSignalBot/internal/domain"
)

// mockLogger implements ports.Logger for testing
type mockLogger struct{}

func (m *mockLogger) Debug(ctx context.Context, msg string, fields ...map[string]interface{}) {}
func (m *mockLogger) Info(ctx context.Context, msg string, fields ...map[string]interface{})  {}
func (m *mockLogger) Warn(ctx context.Context, msg string, fields ...map[string]interface{})  {}
func (m *mockLogger) Error(ctx context.Context, err error, msg string, fields ...map[string]interface{}) {
}

var testStart = time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC) // Monday

func barAt(i int, open, high, low, close float64) domain.Bar {
	return domain.Bar{
		Time:  testStart.Add(time.Duration(i) * 5 * time.Minute),
		Open:  open,
		High:  high,
		Low:   low,
		Close: close,
	}
}

// uptrendBars builds a rising series of small bullish candles with a bearish candle at
// pattern-1 and a bullish engulfing candle at pattern.
func uptrendBars(n, pattern int) []domain.Bar {
	bars := make([]domain.Bar, n)
	for i := 0; i < n; i++ {
		c := 1.1000 + 0.0010*float64(i)
		o := c - 0.0005
		bars[i] = barAt(i, o, c+0.0002, o-0.0002, c)
	}
	if pattern > 0 && pattern < n {
		prev := bars[pattern-1]
		o := prev.Close + 0.0003
		bars[pattern-1] = barAt(pattern-1, o, o+0.0002, prev.Close-0.0002, prev.Close)

		cur := bars[pattern]
		o = prev.Close - 0.0001
		bars[pattern] = barAt(pattern, o, cur.Close+0.0002, o-0.0002, cur.Close)
	}
	return bars
}

// flatBars alternates small bearish and bullish candles that never engulf each other.
func flatBars(n int) []domain.Bar {
	bars := make([]domain.Bar, n)
	for i := 0; i < n; i++ {
		o, c := 1.1002, 1.1000
		if i%2 == 1 {
			o, c = 1.1000, 1.1001
		}
		bars[i] = barAt(i, o, 1.1003, 1.0999, c)
	}
	return bars
}

// randomWalk builds a reproducible random OHLC series.
func randomWalk(seed int64, n int, start float64) []domain.Bar {
	rng := rand.New(rand.NewSource(seed))
	bars := make([]domain.Bar, n)
	price := start
	for i := 0; i < n; i++ {
		open := price
		close := open + (rng.Float64()-0.48)*0.0015
		high := max(open, close) + rng.Float64()*0.0006
		low := min(open, close) - rng.Float64()*0.0006
		bars[i] = barAt(i, open, high, low, close)
		price = close
	}
	return bars
}

func sunsetOgleTestParams() domain.Params {
	return domain.Params{
		"atr_min":          0.0,
		"atr_max":          1.0,
		"sl_mult":          3.0,
		"tp_mult":          15.0,
		"pullback_candles": 2,
		"window_periods":   1,
	}
}
