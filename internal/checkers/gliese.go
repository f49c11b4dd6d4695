package checkers

import (
	"math"
	"time"

	"liveSignalBot/internal/domain"
	"liveSignalBot/internal/indicators"
	"liveSignalBot/internal/ports"
)

// StrategyGLIESE is the range mean-reversion strategy.
const StrategyGLIESE = "gliese"

type glieseParams struct {
	kamaPeriod, kamaFast, kamaSlow int
	erPeriod                       int
	atrLength, atrAvgPeriod        int
	bandMult                       float64
	useERFilter                    bool
	erMax, erCancel                float64
	useADXR                        bool
	adxrPeriod, adxrLookback       int
	adxrMax                        float64
	useSlope                       bool
	slopeLookback                  int
	slopeATRMult                   float64
	rangeMaxBars                   int
	extensionMin, extensionMax     int
	reversalMaxBars                int
	usePullback                    bool
	pullbackMin, pullbackMax       int
	offsetPips                     float64
	windowCandles                  int
	slMult, tpMult                 float64
	filters                        entryFilters
}

type gliesePhase interface{ gliesePhase() }

type glieseScanning struct{}

type glieseRangeDetected struct {
	since int
}

type glieseExtensionBelow struct {
	bars   int
	minLow float64
}

type glieseReversalDetected struct {
	since         int
	extensionBars int
	minLow        float64
}

type glieseWaitingBreakout struct {
	patternBar int
	level      float64
	patternATR float64
}

func (glieseScanning) gliesePhase()         {}
func (glieseRangeDetected) gliesePhase()    {}
func (glieseExtensionBelow) gliesePhase()   {}
func (glieseReversalDetected) gliesePhase() {}
func (glieseWaitingBreakout) gliesePhase()  {}

// GLIESE detects a quiet range around KAMA, waits for price to stretch below the lower ATR band
// and come back, then trades the breakout of the following pullback.
type GLIESE struct {
	base
	p     glieseParams
	phase gliesePhase
}

// NewGLIESE builds the checker. Every parameter has a default.
func NewGLIESE(configName string, params domain.Params, logger ports.Logger) (ports.Checker, error) {
	timeframe := params.Int("timeframe_minutes", 5)
	if timeframe <= 0 {
		timeframe = 5
	}
	htfMinutes := params.Int("htf_timeframe_minutes", 15)
	p := glieseParams{
		kamaPeriod:    params.Int("kama_period", 10),
		kamaFast:      params.Int("kama_fast", 2),
		kamaSlow:      params.Int("kama_slow", 30),
		erPeriod:      max(1, params.Int("htf_er_period", 10)*max(1, htfMinutes/timeframe)),
		atrLength:     params.Int("atr_length", 14),
		atrAvgPeriod:  params.Int("atr_avg_period", 20),
		bandMult:      params.Float("band_atr_mult", 1.5),
		useERFilter:   params.Bool("use_htf_range_filter", true),
		erMax:         params.Float("htf_er_max_threshold", 0.30),
		erCancel:      params.Float("er_cancel_threshold", 0.50),
		useADXR:       params.Bool("use_adxr_filter", true),
		adxrPeriod:    params.Int("adxr_period", 14),
		adxrLookback:  params.Int("adxr_lookback", 14),
		adxrMax:       params.Float("adxr_max_threshold", 25),
		useSlope:      params.Bool("use_kama_slope_filter", true),
		slopeLookback: max(1, params.Int("kama_slope_lookback", 5)),
		slopeATRMult:  params.Float("kama_slope_atr_mult", 0.3),
		rangeMaxBars:  params.Int("range_max_bars", 60),
		extensionMin:  params.Int("extension_min_bars", 2),
		extensionMax:  params.Int("extension_max_bars", 20),
		usePullback:   params.Bool("use_pullback_filter", true),
		pullbackMin:   params.Int("pullback_min_bars", 1),
		pullbackMax:   params.Int("pullback_max_bars", 4),
		offsetPips:    params.Float("breakout_level_offset_pips", 2.0),
		windowCandles: params.Int("breakout_window_candles", 5),
		slMult:        params.Float("atr_sl_multiplier", 2.0),
		tpMult:        params.Float("atr_tp_multiplier", 3.0),
		filters:       loadEntryFilters(params, 0.0001, []int{0, 1, 2, 3, 4}),
	}
	p.reversalMaxBars = params.Int("reversal_max_bars", p.pullbackMax+5)

	minBars := max(p.erPeriod+1, p.kamaPeriod+1, 2*p.adxrPeriod+p.adxrLookback+1, p.atrAvgPeriod, p.atrLength,
		p.slopeLookback+1, p.pullbackMax+5) + 20
	return &GLIESE{
		base:  newBase(StrategyGLIESE, configName, minBars, logger),
		p:     p,
		phase: glieseScanning{},
	}, nil
}

type glieseInputs struct {
	er         float64
	adxr       float64
	slope      float64
	atr        float64
	avgATR     float64
	lowerBand  float64
	bar        domain.Bar
	pullback   pullback
	pullbackOK bool
}

func (c *GLIESE) inputs(window []domain.Bar) (glieseInputs, error) {
	kama, err := indicators.KAMASeries(indicators.HL2(window), c.p.kamaPeriod, c.p.kamaFast, c.p.kamaSlow)
	if err != nil {
		return glieseInputs{}, err
	}
	er, err := indicators.EfficiencyRatio(indicators.Closes(window), c.p.erPeriod)
	if err != nil {
		return glieseInputs{}, err
	}
	adxr, err := indicators.ADXR(window, c.p.adxrPeriod, c.p.adxrLookback)
	if err != nil {
		return glieseInputs{}, err
	}
	atrSeries, err := indicators.ATRSeries(window, c.p.atrLength)
	if err != nil {
		return glieseInputs{}, err
	}
	avgATR, err := indicators.AverageATR(atrSeries, c.p.atrAvgPeriod)
	if err != nil {
		return glieseInputs{}, err
	}
	n := len(kama)
	atr := atrSeries[n-1]
	in := glieseInputs{
		er:        er,
		adxr:      adxr,
		slope:     math.Abs(kama[n-1]-kama[n-1-c.p.slopeLookback]) / float64(c.p.slopeLookback),
		atr:       atr,
		avgATR:    avgATR,
		lowerBand: kama[n-1] - c.p.bandMult*atr,
		bar:       window[n-1],
	}
	in.pullback, in.pullbackOK = detectPullback(window, kama, c.p.pullbackMin, c.p.pullbackMax)
	return in, nil
}

// Check advances the phase machine by one bar.
func (c *GLIESE) Check(window, _ []domain.Bar) domain.Signal {
	at := lastTime(window)
	if len(window) < c.minBars {
		return c.noSignal(reasonInsufficientData, at)
	}
	in, err := c.inputs(window)
	if err != nil {
		return c.noSignal(err.Error(), at)
	}
	c.advance()

	if _, scanning := c.phase.(glieseScanning); !scanning && c.p.useERFilter && in.er > c.p.erCancel {
		from := c.DescribeState().Phase
		c.Reset()
		c.transition(from, "SCANNING", "ER surge")
		return c.noSignalf(at, "Setup cancelled (ER surge %.3f)", in.er)
	}

	switch ph := c.phase.(type) {
	case glieseScanning:
		return c.scan(in, at)
	case glieseRangeDetected:
		return c.watchRange(ph, in, at)
	case glieseExtensionBelow:
		return c.trackExtension(ph, in, at)
	case glieseReversalDetected:
		return c.awaitPullback(ph, in, at)
	case glieseWaitingBreakout:
		return c.waitBreakout(ph, in, at)
	default:
		return c.noSignal("unknown phase", at)
	}
}

// rangeReason returns why the market is not ranging, or "" when it is.
func (c *GLIESE) rangeReason(in glieseInputs) string {
	if c.p.useERFilter && in.er >= c.p.erMax {
		return "ER too high (trending)"
	}
	if c.p.useADXR && !math.IsNaN(in.adxr) && in.adxr >= c.p.adxrMax {
		return "ADXR too high (trending)"
	}
	if c.p.useSlope && in.slope >= c.p.slopeATRMult*in.atr {
		return "KAMA slope too steep (trending)"
	}
	return ""
}

func (c *GLIESE) scan(in glieseInputs, at time.Time) domain.Signal {
	if reason := c.p.filters.session(at); reason != "" {
		return c.noSignal(reason, at)
	}
	if reason := c.rangeReason(in); reason != "" {
		return c.noSignal("Scanning: "+reason, at)
	}
	c.phase = glieseRangeDetected{since: c.barsProcessed}
	c.transition("SCANNING", "RANGE_DETECTED", "range confirmed")
	return c.noSignalf(at, "Range detected (ER %.3f, ADXR %.2f)", in.er, in.adxr)
}

func (c *GLIESE) watchRange(ph glieseRangeDetected, in glieseInputs, at time.Time) domain.Signal {
	if c.barsProcessed-ph.since > c.p.rangeMaxBars {
		c.Reset()
		c.transition("RANGE_DETECTED", "SCANNING", "timeout")
		return c.noSignal("Range expired without extension", at)
	}
	if in.bar.Close < in.lowerBand {
		c.phase = glieseExtensionBelow{bars: 1, minLow: in.bar.Low}
		c.transition("RANGE_DETECTED", "EXTENSION_BELOW", "close below lower band")
		return c.noSignalf(at, "Extension below lower band %.5f", in.lowerBand)
	}
	return c.noSignalf(at, "Range detected, waiting for extension below %.5f", in.lowerBand)
}

func (c *GLIESE) trackExtension(ph glieseExtensionBelow, in glieseInputs, at time.Time) domain.Signal {
	ph.bars++
	ph.minLow = math.Min(ph.minLow, in.bar.Low)
	if ph.bars > c.p.extensionMax {
		c.Reset()
		c.transition("EXTENSION_BELOW", "SCANNING", "timeout")
		return c.noSignal("Extension timeout - possible breakdown", at)
	}
	if in.bar.Close > in.lowerBand && ph.bars >= c.p.extensionMin {
		c.phase = glieseReversalDetected{since: c.barsProcessed, extensionBars: ph.bars, minLow: ph.minLow}
		c.transition("EXTENSION_BELOW", "REVERSAL_DETECTED", "close back above lower band")
		return c.noSignal("Reversal detected, waiting for pullback", at)
	}
	c.phase = ph
	return c.noSignalf(at, "Extension: %d/%d bars, min=%.5f", ph.bars, c.p.extensionMax, ph.minLow)
}

func (c *GLIESE) awaitPullback(ph glieseReversalDetected, in glieseInputs, at time.Time) domain.Signal {
	if c.barsProcessed-ph.since > c.p.reversalMaxBars {
		c.Reset()
		c.transition("REVERSAL_DETECTED", "SCANNING", "timeout")
		return c.noSignal("Reversal expired without pullback", at)
	}
	swingHigh := in.bar.High
	if c.p.usePullback {
		if !in.pullbackOK {
			return c.noSignal("Reversal detected, no valid pullback yet", at)
		}
		swingHigh = in.pullback.level
	}
	level := swingHigh + c.p.offsetPips*c.p.filters.pip
	c.phase = glieseWaitingBreakout{patternBar: c.barsProcessed, level: level, patternATR: in.avgATR}
	c.transition("REVERSAL_DETECTED", "WAITING_BREAKOUT", "pullback")
	return c.noSignalf(at, "Waiting for breakout above %.5f", level)
}

func (c *GLIESE) waitBreakout(ph glieseWaitingBreakout, in glieseInputs, at time.Time) domain.Signal {
	since := c.barsProcessed - ph.patternBar
	if since > c.p.windowCandles {
		c.Reset()
		c.transition("WAITING_BREAKOUT", "SCANNING", "timeout")
		return c.noSignal("Breakout window expired", at)
	}
	if in.bar.High < ph.level {
		return c.noSignalf(at, "Waiting for breakout above %.5f (%d/%d bars)", ph.level, since, c.p.windowCandles)
	}

	c.Reset()
	c.transition("WAITING_BREAKOUT", "SCANNING", "breakout")
	if ph.patternATR <= 0 {
		return c.noSignal("Invalid ATR for entry", at)
	}
	entry := ph.level
	stopLoss := entry - ph.patternATR*c.p.slMult
	takeProfit := entry + ph.patternATR*c.p.tpMult
	if reason := c.p.filters.volatility(ph.patternATR); reason != "" {
		return c.noSignal(reason, at)
	}
	if reason := c.p.filters.stopDistance(entry, stopLoss); reason != "" {
		return c.noSignal(reason, at)
	}
	return c.long(entry, stopLoss, takeProfit, ph.patternATR, "Mean-reversion breakout", at)
}

// Reset returns to scanning.
func (c *GLIESE) Reset() {
	c.phase = glieseScanning{}
	c.barsInPhase = 0
}

// DescribeState reports the current phase and its temporaries.
func (c *GLIESE) DescribeState() domain.CheckerState {
	switch ph := c.phase.(type) {
	case glieseScanning:
		return c.snapshot(phaseScanning, nil)
	case glieseRangeDetected:
		return c.snapshot("RANGE_DETECTED", map[string]float64{"range_bar": float64(ph.since)})
	case glieseExtensionBelow:
		return c.snapshot("EXTENSION_BELOW", map[string]float64{
			"extension_bars":      float64(ph.bars),
			"extension_min_price": ph.minLow,
		})
	case glieseReversalDetected:
		return c.snapshot("REVERSAL_DETECTED", map[string]float64{
			"extension_bars":      float64(ph.extensionBars),
			"extension_min_price": ph.minLow,
		})
	case glieseWaitingBreakout:
		return c.snapshot("WAITING_BREAKOUT", map[string]float64{
			"breakout_level": ph.level,
			"pattern_atr":    ph.patternATR,
			"pattern_bar":    float64(ph.patternBar),
		})
	default:
		return c.snapshot("UNKNOWN", nil)
	}
}
