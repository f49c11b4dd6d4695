// Package indicators holds the pure numeric functions consumed by the strategy checkers.
// Every function returns an explicit error instead of a silent zero when its input is too short.
package indicators

import (
	"fmt"
	"math"

	"liveSignalBot/internal/domain"
	"liveSignalBot/internal/ports"
)

// InsufficientDataError reports that an indicator was given fewer points than it needs.
type InsufficientDataError struct {
	Indicator string
	Required  int
	Actual    int
}

func (e *InsufficientDataError) Error() string {
	return fmt.Sprintf("not enough data (%d) to calculate %s, need %d", e.Actual, e.Indicator, e.Required)
}

// Is lets callers match with errors.Is(err, ports.ErrInsufficientData).
func (e *InsufficientDataError) Is(target error) bool {
	return target == ports.ErrInsufficientData
}

func insufficient(indicator string, required, actual int) error {
	return &InsufficientDataError{Indicator: indicator, Required: required, Actual: actual}
}

func validPeriod(indicator string, period int) error {
	if period <= 0 {
		return fmt.Errorf("invalid period %d for %s", period, indicator)
	}
	return nil
}

// Closes extracts close prices.
func Closes(bars []domain.Bar) []float64 {
	out := make([]float64, len(bars))
	for i, b := range bars {
		out[i] = b.Close
	}
	return out
}

// Highs extracts high prices.
func Highs(bars []domain.Bar) []float64 {
	out := make([]float64, len(bars))
	for i, b := range bars {
		out[i] = b.High
	}
	return out
}

// Lows extracts low prices.
func Lows(bars []domain.Bar) []float64 {
	out := make([]float64, len(bars))
	for i, b := range bars {
		out[i] = b.Low
	}
	return out
}

// HL2 returns (high + low) / 2 per bar.
func HL2(bars []domain.Bar) []float64 {
	out := make([]float64, len(bars))
	for i, b := range bars {
		out[i] = (b.High + b.Low) / 2
	}
	return out
}

// TypicalPrices returns (high + low + close) / 3 per bar.
func TypicalPrices(bars []domain.Bar) []float64 {
	out := make([]float64, len(bars))
	for i, b := range bars {
		out[i] = (b.High + b.Low + b.Close) / 3
	}
	return out
}

// AngleDegrees converts the slope between two consecutive values into degrees.
func AngleDegrees(current, previous, scale float64) float64 {
	return math.Atan((current-previous)*scale) * 180 / math.Pi
}

// Last returns the final element of a series, or an error for an empty one.
func Last(series []float64) (float64, error) {
	if len(series) == 0 {
		return 0, insufficient("last value", 1, 0)
	}
	return series[len(series)-1], nil
}
