package indicators

// SMA returns the simple moving average of the last period values.
func SMA(values []float64, period int) (float64, error) {
	if err := validPeriod("SMA", period); err != nil {
		return 0, err
	}
	if len(values) < period {
		return 0, insufficient("SMA", period, len(values))
	}
	sum := 0.0
	for _, v := range values[len(values)-period:] {
		sum += v
	}
	return sum / float64(period), nil
}

// EMASeries returns an exponential moving average with span period, seeded with the first value
// and smoothed with alpha = 2/(period+1). The result has the same length as values.
func EMASeries(values []float64, period int) ([]float64, error) {
	if err := validPeriod("EMA", period); err != nil {
		return nil, err
	}
	if len(values) < period || len(values) == 0 {
		return nil, insufficient("EMA", period, len(values))
	}
	alpha := 2.0 / float64(period+1)
	out := make([]float64, len(values))
	out[0] = values[0]
	for i := 1; i < len(values); i++ {
		out[i] = alpha*values[i] + (1-alpha)*out[i-1]
	}
	return out, nil
}

// EMA returns the last value of EMASeries.
func EMA(values []float64, period int) (float64, error) {
	series, err := EMASeries(values, period)
	if err != nil {
		return 0, err
	}
	return series[len(series)-1], nil
}

// KAMASeries computes Kaufman's adaptive moving average. The first period-1 entries are NaN-free
// copies of the input; index period-1 is seeded with the SMA of the first period values.
func KAMASeries(values []float64, period, fast, slow int) ([]float64, error) {
	if err := validPeriod("KAMA", period); err != nil {
		return nil, err
	}
	if fast <= 0 || slow <= 0 {
		return nil, validPeriod("KAMA smoothing", 0)
	}
	if len(values) <= period {
		return nil, insufficient("KAMA", period+1, len(values))
	}
	fastSC := 2.0 / float64(fast+1)
	slowSC := 2.0 / float64(slow+1)

	out := make([]float64, len(values))
	copy(out[:period-1], values[:period-1])
	seed, _ := SMA(values[:period], period)
	out[period-1] = seed
	for i := period; i < len(values); i++ {
		er := efficiency(values[i-period : i+1])
		sc := er*(fastSC-slowSC) + slowSC
		sc *= sc
		out[i] = out[i-1] + sc*(values[i]-out[i-1])
	}
	return out, nil
}
