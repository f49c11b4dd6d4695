package checkers

import (
	"time"

	"liveSignalBot/internal/domain"
	"liveSignalBot/internal/indicators"
	"liveSignalBot/internal/ports"
)

// StrategySEDNA is the KAMA regime pullback strategy.
const StrategySEDNA = "sedna"

type sednaParams struct {
	kamaPeriod, kamaFast, kamaSlow int
	hl2EMAPeriod                   int
	erPeriod                       int // scaled to the bar timeframe
	atrLength, atrAvgPeriod        int
	useHTFFilter                   bool
	erThreshold                    float64
	usePullback                    bool
	pullbackMin, pullbackMax       int
	offsetPips                     float64
	windowCandles                  int
	slMult, tpMult                 float64
	filters                        entryFilters
}

type sednaPhase interface{ sednaPhase() }

type sednaScanning struct{}

type sednaAwaitingPullback struct {
	triggerBar int
	patternATR float64
}

type sednaWaitingBreakout struct {
	patternBar int
	level      float64
	patternATR float64
}

func (sednaScanning) sednaPhase()         {}
func (sednaAwaitingPullback) sednaPhase() {}
func (sednaWaitingBreakout) sednaPhase()  {}

// SEDNA trades breakouts of shallow pullbacks while the HL2 average trades above an adaptive KAMA.
type SEDNA struct {
	base
	p     sednaParams
	phase sednaPhase
}

// NewSEDNA builds the checker. Every parameter has a default.
func NewSEDNA(configName string, params domain.Params, logger ports.Logger) (ports.Checker, error) {
	timeframe := params.Int("timeframe_minutes", 5)
	if timeframe <= 0 {
		timeframe = 5
	}
	htfMinutes := params.Int("htf_timeframe_minutes", 15)
	p := sednaParams{
		kamaPeriod:    params.Int("kama_period", 10),
		kamaFast:      params.Int("kama_fast", 2),
		kamaSlow:      params.Int("kama_slow", 30),
		hl2EMAPeriod:  params.Int("hl2_ema_period", 1),
		erPeriod:      max(1, params.Int("htf_er_period", 10)*max(1, htfMinutes/timeframe)),
		atrLength:     params.Int("atr_length", 14),
		atrAvgPeriod:  params.Int("atr_avg_period", 20),
		useHTFFilter:  params.Bool("use_htf_filter", false),
		erThreshold:   params.Float("htf_er_threshold", 0.35),
		usePullback:   params.Bool("use_pullback_filter", false),
		pullbackMin:   params.Int("pullback_min_bars", 2),
		pullbackMax:   params.Int("pullback_max_bars", 5),
		offsetPips:    params.Float("breakout_level_offset_pips", 1.0),
		windowCandles: params.Int("breakout_window_candles", 5),
		slMult:        params.Float("atr_sl_multiplier", 3.0),
		tpMult:        params.Float("atr_tp_multiplier", 8.0),
		filters:       loadEntryFilters(params, 0.01, []int{0, 1, 2, 3, 4}),
	}
	if !params.Bool("use_breakout_window", true) {
		p.offsetPips = 0
		p.windowCandles = 1
	}
	minBars := max(p.erPeriod+1, p.kamaPeriod+1, p.atrAvgPeriod, p.atrLength, p.pullbackMax+5) + 20
	return &SEDNA{
		base:  newBase(StrategySEDNA, configName, minBars, logger),
		p:     p,
		phase: sednaScanning{},
	}, nil
}

type sednaInputs struct {
	kamaLast   float64
	hl2EMA     float64
	er         float64
	atr        float64
	avgATR     float64
	close      float64
	high       float64
	pullback   pullback
	pullbackOK bool
}

func (c *SEDNA) inputs(window []domain.Bar) (sednaInputs, error) {
	hl2 := indicators.HL2(window)
	kama, err := indicators.KAMASeries(hl2, c.p.kamaPeriod, c.p.kamaFast, c.p.kamaSlow)
	if err != nil {
		return sednaInputs{}, err
	}
	hl2EMA, err := indicators.EMA(hl2, c.p.hl2EMAPeriod)
	if err != nil {
		return sednaInputs{}, err
	}
	er, err := indicators.EfficiencyRatio(indicators.Closes(window), c.p.erPeriod)
	if err != nil {
		return sednaInputs{}, err
	}
	atrSeries, err := indicators.ATRSeries(window, c.p.atrLength)
	if err != nil {
		return sednaInputs{}, err
	}
	avgATR, err := indicators.AverageATR(atrSeries, c.p.atrAvgPeriod)
	if err != nil {
		return sednaInputs{}, err
	}
	last := window[len(window)-1]
	in := sednaInputs{
		kamaLast: kama[len(kama)-1],
		hl2EMA:   hl2EMA,
		er:       er,
		atr:      atrSeries[len(atrSeries)-1],
		avgATR:   avgATR,
		close:    last.Close,
		high:     last.High,
	}
	in.pullback, in.pullbackOK = detectPullback(window, kama, c.p.pullbackMin, c.p.pullbackMax)
	return in, nil
}

// Check advances the phase machine by one bar.
func (c *SEDNA) Check(window, _ []domain.Bar) domain.Signal {
	at := lastTime(window)
	if len(window) < c.minBars {
		return c.noSignal(reasonInsufficientData, at)
	}
	in, err := c.inputs(window)
	if err != nil {
		return c.noSignal(err.Error(), at)
	}
	c.advance()

	switch ph := c.phase.(type) {
	case sednaScanning:
		return c.scan(in, at)
	case sednaAwaitingPullback:
		return c.awaitPullback(ph, in, at)
	case sednaWaitingBreakout:
		return c.waitBreakout(ph, in, at)
	default:
		return c.noSignal("unknown phase", at)
	}
}

func (c *SEDNA) scan(in sednaInputs, at time.Time) domain.Signal {
	if reason := c.p.filters.session(at); reason != "" {
		return c.noSignal(reason, at)
	}
	if c.p.useHTFFilter {
		if in.er < c.p.erThreshold {
			return c.noSignalf(at, "HTF filter: ER %.3f < threshold %g", in.er, c.p.erThreshold)
		}
		if in.close <= in.kamaLast {
			return c.noSignalf(at, "HTF filter: close %.5f <= KAMA %.5f", in.close, in.kamaLast)
		}
	}
	if in.hl2EMA <= in.kamaLast {
		return c.noSignalf(at, "KAMA condition: HL2_EMA %.5f <= KAMA %.5f", in.hl2EMA, in.kamaLast)
	}

	switch {
	case !c.p.usePullback:
		return c.armBreakout(in.high, in.avgATR, "SCANNING", at)
	case in.pullbackOK:
		return c.armBreakout(in.pullback.level, in.avgATR, "SCANNING", at)
	default:
		c.phase = sednaAwaitingPullback{triggerBar: c.barsProcessed, patternATR: in.avgATR}
		c.transition("SCANNING", "AWAITING_PULLBACK", "KAMA regime")
		return c.noSignal("Regime confirmed, waiting for pullback", at)
	}
}

func (c *SEDNA) armBreakout(swingHigh, patternATR float64, from string, at time.Time) domain.Signal {
	level := swingHigh + c.p.offsetPips*c.p.filters.pip
	c.phase = sednaWaitingBreakout{
		patternBar: c.barsProcessed,
		level:      level,
		patternATR: patternATR,
	}
	c.transition(from, "WAITING_BREAKOUT", "breakout level set")
	return c.noSignalf(at, "Waiting for breakout above %.5f", level)
}

func (c *SEDNA) awaitPullback(ph sednaAwaitingPullback, in sednaInputs, at time.Time) domain.Signal {
	if c.barsProcessed-ph.triggerBar > c.p.pullbackMax+5 {
		c.Reset()
		c.transition("AWAITING_PULLBACK", "SCANNING", "timeout")
		return c.noSignal("Pullback window expired", at)
	}
	if in.hl2EMA <= in.kamaLast {
		c.Reset()
		c.transition("AWAITING_PULLBACK", "SCANNING", "regime lost")
		return c.noSignal("Pullback invalidated: HL2_EMA below KAMA", at)
	}
	if !in.pullbackOK {
		return c.noSignal("No valid pullback yet", at)
	}
	return c.armBreakout(in.pullback.level, ph.patternATR, "AWAITING_PULLBACK", at)
}

func (c *SEDNA) waitBreakout(ph sednaWaitingBreakout, in sednaInputs, at time.Time) domain.Signal {
	since := c.barsProcessed - ph.patternBar
	if since > c.p.windowCandles {
		c.Reset()
		c.transition("WAITING_BREAKOUT", "SCANNING", "timeout")
		return c.noSignal("Breakout window expired", at)
	}
	if in.high <= ph.level {
		return c.noSignalf(at, "Waiting for breakout above %.5f (%d/%d bars)", ph.level, since, c.p.windowCandles)
	}

	c.Reset()
	c.transition("WAITING_BREAKOUT", "SCANNING", "breakout")
	if ph.patternATR <= 0 {
		return c.noSignal("Invalid pattern ATR", at)
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
	return c.long(entry, stopLoss, takeProfit, ph.patternATR, "KAMA pullback breakout", at)
}

// Reset returns to scanning.
func (c *SEDNA) Reset() {
	c.phase = sednaScanning{}
	c.barsInPhase = 0
}

// DescribeState reports the current phase and its temporaries.
func (c *SEDNA) DescribeState() domain.CheckerState {
	switch ph := c.phase.(type) {
	case sednaScanning:
		return c.snapshot(phaseScanning, nil)
	case sednaAwaitingPullback:
		return c.snapshot("AWAITING_PULLBACK", map[string]float64{
			"trigger_bar": float64(ph.triggerBar),
			"pattern_atr": ph.patternATR,
		})
	case sednaWaitingBreakout:
		return c.snapshot("WAITING_BREAKOUT", map[string]float64{
			"breakout_level": ph.level,
			"pattern_atr":    ph.patternATR,
			"pattern_bar":    float64(ph.patternBar),
		})
	default:
		return c.snapshot("UNKNOWN", nil)
	}
}
