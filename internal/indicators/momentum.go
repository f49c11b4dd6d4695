package indicators

import (
	"math"

	"liveSignalBot/internal/domain"
)

// efficiency computes |last-first| / sum(|diffs|) over the given slice, zero when flat.
func efficiency(window []float64) float64 {
	if len(window) < 2 {
		return 0
	}
	change := math.Abs(window[len(window)-1] - window[0])
	volatility := 0.0
	for i := 1; i < len(window); i++ {
		volatility += math.Abs(window[i] - window[i-1])
	}
	if volatility == 0 {
		return 0
	}
	return change / volatility
}

// EfficiencyRatio is Kaufman's efficiency ratio over the last period changes. It needs period+1 values.
func EfficiencyRatio(values []float64, period int) (float64, error) {
	if err := validPeriod("efficiency ratio", period); err != nil {
		return 0, err
	}
	if len(values) < period+1 {
		return 0, insufficient("efficiency ratio", period+1, len(values))
	}
	return efficiency(values[len(values)-period-1:]), nil
}

// ROC is the fractional rate of change over period bars.
func ROC(values []float64, period int) (float64, error) {
	if err := validPeriod("ROC", period); err != nil {
		return 0, err
	}
	if len(values) < period+1 {
		return 0, insufficient("ROC", period+1, len(values))
	}
	base := values[len(values)-period-1]
	if base == 0 {
		return 0, nil
	}
	return (values[len(values)-1] - base) / base, nil
}

// ADXSeries returns Wilder's average directional index. Entries before 2*period-1 are NaN.
func ADXSeries(bars []domain.Bar, period int) ([]float64, error) {
	if err := validPeriod("ADX", period); err != nil {
		return nil, err
	}
	need := 2*period + 1
	if len(bars) < need {
		return nil, insufficient("ADX", need, len(bars))
	}
	n := len(bars)
	tr := TrueRange(bars)
	plusDM := make([]float64, n)
	minusDM := make([]float64, n)
	for i := 1; i < n; i++ {
		up := bars[i].High - bars[i-1].High
		down := bars[i-1].Low - bars[i].Low
		if up > down && up > 0 {
			plusDM[i] = up
		}
		if down > up && down > 0 {
			minusDM[i] = down
		}
	}

	out := make([]float64, n)
	for i := range out {
		out[i] = math.NaN()
	}
	var smTR, smPlus, smMinus float64
	for i := 1; i <= period; i++ {
		smTR += tr[i]
		smPlus += plusDM[i]
		smMinus += minusDM[i]
	}
	dx := make([]float64, n)
	dx[period] = directionalIndex(smTR, smPlus, smMinus)
	for i := period + 1; i < n; i++ {
		smTR = smTR - smTR/float64(period) + tr[i]
		smPlus = smPlus - smPlus/float64(period) + plusDM[i]
		smMinus = smMinus - smMinus/float64(period) + minusDM[i]
		dx[i] = directionalIndex(smTR, smPlus, smMinus)
	}

	first := 2*period - 1
	sum := 0.0
	for i := period; i <= first; i++ {
		sum += dx[i]
	}
	out[first] = sum / float64(period)
	for i := first + 1; i < n; i++ {
		out[i] = (out[i-1]*float64(period-1) + dx[i]) / float64(period)
	}
	return out, nil
}

func directionalIndex(tr, plus, minus float64) float64 {
	if tr == 0 {
		return 0
	}
	pdi := 100 * plus / tr
	mdi := 100 * minus / tr
	if pdi+mdi == 0 {
		return 0
	}
	return 100 * math.Abs(pdi-mdi) / (pdi + mdi)
}

// ADXR averages the current ADX with the ADX lookback bars ago.
func ADXR(bars []domain.Bar, period, lookback int) (float64, error) {
	if lookback <= 0 {
		return 0, validPeriod("ADXR lookback", lookback)
	}
	need := 2*period + lookback + 1
	if len(bars) < need {
		return 0, insufficient("ADXR", need, len(bars))
	}
	adx, err := ADXSeries(bars, period)
	if err != nil {
		return 0, err
	}
	last := len(adx) - 1
	return (adx[last] + adx[last-lookback]) / 2, nil
}
