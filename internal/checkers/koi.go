package checkers

import (
	"time"

	"liveSignalBot/internal/domain"
	"liveSignalBot/internal/indicators"
	"liveSignalBot/internal/ports"
)

// StrategyKOI is the bullish-engulfing breakout strategy.
const StrategyKOI = "koi"

type koiParams struct {
	emaPeriods        [5]int
	cciPeriod         int
	cciThreshold      float64
	cciMax            float64
	atrLength         int
	useBreakoutWindow bool
	offsetPips        float64
	windowCandles     int
	slMult, tpMult    float64
	filters           entryFilters
}

type koiPhase interface{ koiPhase() }

type koiScanning struct{}

type koiWaitingBreakout struct {
	patternBar int
	level      float64
	patternATR float64
	patternCCI float64
}

func (koiScanning) koiPhase()        {}
func (koiWaitingBreakout) koiPhase() {}

// KOI waits for a bullish engulfing candle in a stack of rising EMAs with strong CCI momentum,
// then enters when price breaks above the pattern high within a few bars.
type KOI struct {
	base
	p     koiParams
	phase koiPhase
}

// NewKOI builds the checker. Every parameter has a default.
func NewKOI(configName string, params domain.Params, logger ports.Logger) (ports.Checker, error) {
	p := koiParams{
		emaPeriods: [5]int{
			params.Int("ema_period_1", 10),
			params.Int("ema_period_2", 20),
			params.Int("ema_period_3", 40),
			params.Int("ema_period_4", 80),
			params.Int("ema_period_5", 120),
		},
		cciPeriod:         params.Int("cci_period", 20),
		cciThreshold:      params.Float("cci_threshold", 110),
		cciMax:            params.Float("cci_max_threshold", 999),
		atrLength:         params.Int("atr_length", 14),
		useBreakoutWindow: params.Bool("use_breakout_window", true),
		offsetPips:        params.Float("breakout_level_offset_pips", 3),
		windowCandles:     params.Int("breakout_window_candles", 3),
		slMult:            params.Float("atr_sl_multiplier", 2.0),
		tpMult:            params.Float("atr_tp_multiplier", 6.0),
		filters:           loadEntryFilters(params, 0.0001, nil),
	}
	if !p.useBreakoutWindow {
		// trigger bars never enter directly: the level is the pattern high and the window one bar
		p.offsetPips = 0
		p.windowCandles = 1
	}
	longest := max(p.emaPeriods[0], p.emaPeriods[1], p.emaPeriods[2], p.emaPeriods[3], p.emaPeriods[4])
	minBars := max(longest+10, p.cciPeriod, p.atrLength)
	return &KOI{
		base:  newBase(StrategyKOI, configName, minBars, logger),
		p:     p,
		phase: koiScanning{},
	}, nil
}

type koiInputs struct {
	engulfing    bool
	emasRising   bool
	failedPeriod int
	cci          float64
	atr          float64
}

func (c *KOI) inputs(window []domain.Bar) (koiInputs, error) {
	in := koiInputs{emasRising: true}
	closes := indicators.Closes(window)
	for _, period := range c.p.emaPeriods {
		ema, err := indicators.EMASeries(closes, period)
		if err != nil {
			return koiInputs{}, err
		}
		n := len(ema)
		if in.emasRising && ema[n-1] <= ema[n-2] {
			in.emasRising = false
			in.failedPeriod = period
		}
	}
	var err error
	if in.cci, err = indicators.CCI(window, c.p.cciPeriod); err != nil {
		return koiInputs{}, err
	}
	if in.atr, err = indicators.ATR(window, c.p.atrLength); err != nil {
		return koiInputs{}, err
	}
	in.engulfing = bullishEngulfing(window[len(window)-2], window[len(window)-1])
	return in, nil
}

// bullishEngulfing reports whether curr is a bullish body covering the bearish body of prev.
func bullishEngulfing(prev, curr domain.Bar) bool {
	return prev.IsBearish() && curr.IsBullish() && curr.Open <= prev.Close && curr.Close >= prev.Open
}

// Check advances the phase machine by one bar.
func (c *KOI) Check(window, _ []domain.Bar) domain.Signal {
	at := lastTime(window)
	if len(window) < c.minBars {
		return c.noSignal(reasonInsufficientData, at)
	}
	in, err := c.inputs(window)
	if err != nil {
		return c.noSignal(err.Error(), at)
	}
	c.advance()
	bar := window[len(window)-1]

	switch ph := c.phase.(type) {
	case koiScanning:
		return c.scan(in, bar, at)
	case koiWaitingBreakout:
		return c.waitBreakout(ph, bar, at)
	default:
		return c.noSignal("unknown phase", at)
	}
}

func (c *KOI) scan(in koiInputs, bar domain.Bar, at time.Time) domain.Signal {
	if reason := c.p.filters.session(at); reason != "" {
		return c.noSignal(reason, at)
	}
	if !in.engulfing {
		return c.noSignal("No bullish engulfing", at)
	}
	if !in.emasRising {
		return c.noSignalf(at, "EMAs not all ascending (EMA %d failed)", in.failedPeriod)
	}
	if in.cci <= c.p.cciThreshold || in.cci >= c.p.cciMax {
		return c.noSignalf(at, "CCI filter: %.1f not in (%g, %g)", in.cci, c.p.cciThreshold, c.p.cciMax)
	}
	level := bar.High + c.p.offsetPips*c.p.filters.pip
	c.phase = koiWaitingBreakout{
		patternBar: c.barsProcessed,
		level:      level,
		patternATR: in.atr,
		patternCCI: in.cci,
	}
	c.transition("SCANNING", "WAITING_BREAKOUT", "bullish engulfing")
	return c.noSignal("Waiting for breakout confirmation", at)
}

func (c *KOI) waitBreakout(ph koiWaitingBreakout, bar domain.Bar, at time.Time) domain.Signal {
	since := c.barsProcessed - ph.patternBar
	if since > c.p.windowCandles {
		c.Reset()
		c.transition("WAITING_BREAKOUT", "SCANNING", "timeout")
		return c.noSignal("Breakout window expired", at)
	}
	if bar.High <= ph.level {
		return c.noSignalf(at, "Waiting for breakout above %.5f (%d/%d bars)", ph.level, since, c.p.windowCandles)
	}

	entry := ph.level
	stopLoss := entry - ph.patternATR*c.p.slMult
	takeProfit := entry + ph.patternATR*c.p.tpMult
	c.Reset()
	c.transition("WAITING_BREAKOUT", "SCANNING", "breakout")
	if reason := c.p.filters.volatility(ph.patternATR); reason != "" {
		return c.noSignal(reason, at)
	}
	if reason := c.p.filters.stopDistance(entry, stopLoss); reason != "" {
		return c.noSignal(reason, at)
	}
	return c.long(entry, stopLoss, takeProfit, ph.patternATR, "Breakout confirmed after engulfing", at)
}

// Reset returns to scanning.
func (c *KOI) Reset() {
	c.phase = koiScanning{}
	c.barsInPhase = 0
}

// DescribeState reports the current phase and its temporaries.
func (c *KOI) DescribeState() domain.CheckerState {
	switch ph := c.phase.(type) {
	case koiScanning:
		return c.snapshot(phaseScanning, nil)
	case koiWaitingBreakout:
		return c.snapshot("WAITING_BREAKOUT", map[string]float64{
			"breakout_level": ph.level,
			"pattern_atr":    ph.patternATR,
			"pattern_cci":    ph.patternCCI,
			"pattern_bar":    float64(ph.patternBar),
		})
	default:
		return c.snapshot("UNKNOWN", nil)
	}
}
