package domain

import "time"

// Bar represents a single fully closed OHLCV sample.
type Bar struct {
	Time   time.Time // Open time of the interval, UTC
	Open   float64
	High   float64
	Low    float64
	Close  float64
	Volume float64
}

// IsBullish reports whether the bar closed above its open.
func (b Bar) IsBullish() bool {
	return b.Close > b.Open
}

// IsBearish reports whether the bar closed below its open.
func (b Bar) IsBearish() bool {
	return b.Close < b.Open
}

// Range returns high minus low.
func (b Bar) Range() float64 {
	return b.High - b.Low
}
