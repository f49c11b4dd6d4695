package indicators

import (
	"math"

	"liveSignalBot/internal/domain"
)

// TrueRange returns the true range of every bar. The first bar has no previous close
// and uses its high-low range.
func TrueRange(bars []domain.Bar) []float64 {
	out := make([]float64, len(bars))
	for i, b := range bars {
		tr := b.High - b.Low
		if i > 0 {
			prev := bars[i-1].Close
			tr = math.Max(tr, math.Max(math.Abs(b.High-prev), math.Abs(b.Low-prev)))
		}
		out[i] = tr
	}
	return out
}

// ATRSeries returns the rolling mean of the true range. Entries before the first full
// window are NaN.
func ATRSeries(bars []domain.Bar, period int) ([]float64, error) {
	if err := validPeriod("ATR", period); err != nil {
		return nil, err
	}
	if len(bars) < period {
		return nil, insufficient("ATR", period, len(bars))
	}
	tr := TrueRange(bars)
	out := make([]float64, len(bars))
	sum := 0.0
	for i := range tr {
		sum += tr[i]
		if i >= period {
			sum -= tr[i-period]
		}
		if i < period-1 {
			out[i] = math.NaN()
			continue
		}
		out[i] = sum / float64(period)
	}
	return out, nil
}

// ATR returns the mean true range of the last period bars.
func ATR(bars []domain.Bar, period int) (float64, error) {
	if err := validPeriod("ATR", period); err != nil {
		return 0, err
	}
	if len(bars) < period {
		return 0, insufficient("ATR", period, len(bars))
	}
	tr := TrueRange(bars)
	return SMA(tr, period)
}

// AverageATR averages the last n defined values of an ATR series.
// Shorter series average what they have.
func AverageATR(atr []float64, n int) (float64, error) {
	defined := make([]float64, 0, len(atr))
	for _, v := range atr {
		if !math.IsNaN(v) {
			defined = append(defined, v)
		}
	}
	if len(defined) == 0 {
		return 0, insufficient("average ATR", 1, 0)
	}
	if n <= 0 || len(defined) < n {
		n = len(defined)
	}
	return SMA(defined, n)
}

// CCI returns the commodity channel index of the last bar over period bars of typical price.
func CCI(bars []domain.Bar, period int) (float64, error) {
	if err := validPeriod("CCI", period); err != nil {
		return 0, err
	}
	if len(bars) < period {
		return 0, insufficient("CCI", period, len(bars))
	}
	tp := TypicalPrices(bars[len(bars)-period:])
	mean, _ := SMA(tp, period)
	dev := 0.0
	for _, v := range tp {
		dev += math.Abs(v - mean)
	}
	dev /= float64(period)
	if dev == 0 {
		return 0, nil
	}
	return (tp[len(tp)-1] - mean) / (0.015 * dev), nil
}
