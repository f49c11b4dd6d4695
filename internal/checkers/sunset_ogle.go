package checkers

import (
	"time"

	"liveSignalBot/internal/domain"
	"liveSignalBot/internal/indicators"
	"liveSignalBot/internal/ports"
)

// StrategySunsetOgle is the EMA crossover, pullback and breakout-window strategy.
const StrategySunsetOgle = "sunset_ogle"

type sunsetOgleParams struct {
	emaFast, emaMedium, emaSlow, emaConfirm, emaFilter int
	atrLength                                          int
	atrMin, atrMax                                     float64
	slMult, tpMult                                     float64
	pullbackCandles                                    int
	windowPeriods                                      int
	priceOffsetMult                                    float64
	useAngleFilter                                     bool
	angleMin, angleMax, angleScale                     float64
	filters                                            entryFilters
}

// Phases. Every phase struct carries only the temporaries that exist in it.
type ogPhase interface{ ogPhase() }

type ogScanning struct{}

type ogArmed struct {
	pullbacks int
}

type ogWindowOpen struct {
	top    float64
	bottom float64
	expiry int // bar number after which the window closes
}

func (ogScanning) ogPhase()   {}
func (ogArmed) ogPhase()      {}
func (ogWindowOpen) ogPhase() {}

// SunsetOgle arms on a confirm-EMA crossover above the trend EMA, waits for a run of bearish
// pullback candles and then trades a breakout of the last pullback candle inside a short window.
type SunsetOgle struct {
	base
	p     sunsetOgleParams
	phase ogPhase
}

// NewSunsetOgle builds the checker from its parameter mapping.
func NewSunsetOgle(configName string, params domain.Params, logger ports.Logger) (ports.Checker, error) {
	if err := requireParams(params, "atr_min", "atr_max", "sl_mult", "tp_mult", "pullback_candles", "window_periods"); err != nil {
		return nil, err
	}
	p := sunsetOgleParams{
		emaFast:         params.Int("ema_fast_length", 24),
		emaMedium:       params.Int("ema_medium_length", 24),
		emaSlow:         params.Int("ema_slow_length", 24),
		emaConfirm:      params.Int("ema_confirm_length", 1),
		emaFilter:       params.Int("ema_filter_price_length", 70),
		atrLength:       params.Int("atr_length", 10),
		atrMin:          params.Float("atr_min", 0),
		atrMax:          params.Float("atr_max", 0),
		slMult:          params.Float("sl_mult", 0),
		tpMult:          params.Float("tp_mult", 0),
		pullbackCandles: params.Int("pullback_candles", 0),
		windowPeriods:   params.Int("window_periods", 0),
		priceOffsetMult: params.Float("price_offset_mult", 0.01),
		useAngleFilter:  params.Bool("use_angle_filter", false),
		angleMin:        params.Float("angle_min", 0),
		angleMax:        params.Float("angle_max", 90),
		angleScale:      params.Float("angle_scale", 100),
		filters:         loadEntryFilters(params, 0.0001, nil),
	}
	// the ATR range is a trigger condition here, not a final filter
	p.filters.useATR = false

	minBars := max(p.emaFilter, p.emaFast, p.emaMedium, p.emaSlow, p.emaConfirm, p.atrLength, 2)
	return &SunsetOgle{
		base:  newBase(StrategySunsetOgle, configName, minBars, logger),
		p:     p,
		phase: ogScanning{},
	}, nil
}

type ogInputs struct {
	crossover bool
	close     float64
	filterEMA float64
	atr       float64
	angle     float64
}

func (c *SunsetOgle) inputs(window []domain.Bar) (ogInputs, error) {
	closes := indicators.Closes(window)
	confirm, err := indicators.EMASeries(closes, c.p.emaConfirm)
	if err != nil {
		return ogInputs{}, err
	}
	crossover := false
	for _, period := range []int{c.p.emaFast, c.p.emaMedium, c.p.emaSlow} {
		other, err := indicators.EMASeries(closes, period)
		if err != nil {
			return ogInputs{}, err
		}
		n := len(other)
		if confirm[n-1] > other[n-1] && confirm[n-2] <= other[n-2] {
			crossover = true
		}
	}
	filterEMA, err := indicators.EMA(closes, c.p.emaFilter)
	if err != nil {
		return ogInputs{}, err
	}
	atr, err := indicators.ATR(window, c.p.atrLength)
	if err != nil {
		return ogInputs{}, err
	}
	n := len(confirm)
	return ogInputs{
		crossover: crossover,
		close:     closes[n-1],
		filterEMA: filterEMA,
		atr:       atr,
		angle:     indicators.AngleDegrees(confirm[n-1], confirm[n-2], c.p.angleScale),
	}, nil
}

// Check advances the phase machine by one bar.
func (c *SunsetOgle) Check(window, _ []domain.Bar) domain.Signal {
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
	case ogScanning:
		return c.scan(in, at)
	case ogArmed:
		return c.countPullback(ph, bar, at)
	case ogWindowOpen:
		return c.watchWindow(ph, in, bar, at)
	default:
		return c.noSignal("unknown phase", at)
	}
}

func (c *SunsetOgle) scan(in ogInputs, at time.Time) domain.Signal {
	if !in.crossover {
		return c.noSignal("No EMA crossover", at)
	}
	if in.close <= in.filterEMA {
		return c.noSignalf(at, "Price %.5f not above filter EMA %.5f", in.close, in.filterEMA)
	}
	if !between(in.atr, c.p.atrMin, c.p.atrMax) {
		return c.noSignalf(at, "ATR filter: %.6f not in [%g-%g]", in.atr, c.p.atrMin, c.p.atrMax)
	}
	if c.p.useAngleFilter && !between(in.angle, c.p.angleMin, c.p.angleMax) {
		return c.noSignalf(at, "Angle filter: %.1f not in [%g-%g]", in.angle, c.p.angleMin, c.p.angleMax)
	}
	c.phase = ogArmed{}
	c.transition("SCANNING", "ARMED_LONG", "EMA crossover")
	return c.noSignalf(at, "Armed: EMA crossover (ATR %.6f, angle %.1f)", in.atr, in.angle)
}

func (c *SunsetOgle) countPullback(ph ogArmed, bar domain.Bar, at time.Time) domain.Signal {
	if !bar.IsBearish() {
		c.Reset()
		c.transition("ARMED_LONG", "SCANNING", "bullish candle")
		return c.noSignal("Pullback invalidated (bullish candle)", at)
	}
	ph.pullbacks++
	if ph.pullbacks < c.p.pullbackCandles {
		c.phase = ph
		return c.noSignalf(at, "Pullback %d/%d", ph.pullbacks, c.p.pullbackCandles)
	}
	offset := bar.Range() * c.p.priceOffsetMult
	c.phase = ogWindowOpen{
		top:    bar.High + offset,
		bottom: bar.Low - offset,
		expiry: c.barsProcessed + c.p.windowPeriods,
	}
	c.transition("ARMED_LONG", "WINDOW_OPEN", "pullback complete")
	return c.noSignalf(at, "Breakout window open above %.5f", bar.High+offset)
}

func (c *SunsetOgle) watchWindow(ph ogWindowOpen, in ogInputs, bar domain.Bar, at time.Time) domain.Signal {
	if c.barsProcessed > ph.expiry {
		c.phase = ogArmed{}
		c.transition("WINDOW_OPEN", "ARMED_LONG", "window expired")
		return c.noSignal("Breakout window expired", at)
	}
	if bar.Low <= ph.bottom {
		c.phase = ogArmed{}
		c.transition("WINDOW_OPEN", "ARMED_LONG", "window invalidated")
		return c.noSignal("Breakout window invalidated (low below window)", at)
	}
	if bar.High < ph.top {
		return c.noSignalf(at, "Waiting for breakout above %.5f", ph.top)
	}

	entry := ph.top
	stopLoss := bar.Low - in.atr*c.p.slMult
	takeProfit := bar.High + in.atr*c.p.tpMult
	c.Reset()
	c.transition("WINDOW_OPEN", "SCANNING", "breakout")
	if reason := c.p.filters.final(at, in.atr, entry, stopLoss); reason != "" {
		return c.noSignal(reason, at)
	}
	return c.long(entry, stopLoss, takeProfit, in.atr, "Breakout of pullback window", at)
}

// Reset returns to scanning.
func (c *SunsetOgle) Reset() {
	c.phase = ogScanning{}
	c.barsInPhase = 0
}

// DescribeState reports the current phase and its temporaries.
func (c *SunsetOgle) DescribeState() domain.CheckerState {
	switch ph := c.phase.(type) {
	case ogScanning:
		return c.snapshot(phaseScanning, nil)
	case ogArmed:
		return c.snapshot("ARMED_LONG", map[string]float64{"pullback_count": float64(ph.pullbacks)})
	case ogWindowOpen:
		return c.snapshot("WINDOW_OPEN", map[string]float64{
			"window_top":    ph.top,
			"window_bottom": ph.bottom,
			"window_expiry": float64(ph.expiry),
		})
	default:
		return c.snapshot("UNKNOWN", nil)
	}
}
