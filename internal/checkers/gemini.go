package checkers

import (
	"math"
	"slices"
	"time"

	"liveSignalBot/internal/domain"
	"liveSignalBot/internal/indicators"
	"liveSignalBot/internal/ports"
)

// StrategyGEMINI is the dual-feed momentum strategy.
const StrategyGEMINI = "gemini"

const (
	geminiMinBars       = 50
	geminiAngleHistory  = 5
	geminiATRHistory    = 50
	geminiDefaultWindow = 20
)

type geminiParams struct {
	kamaPeriod, kamaFast, kamaSlow int
	hl2EMAPeriod                   int
	rocPrimary, rocReference       int
	harmonyScale                   float64
	allowedCrossBars               []int
	maxWindow                      int
	rocAngleMin, rocAngleMax       float64
	harmonyAngleMin                float64
	harmonyAngleMax                float64
	rocAngleScale                  float64
	harmonyAngleScale              float64
	plotROCMult, plotHarmonyMult   float64
	atrLength, atrAvgPeriod        int
	slMult, tpMult                 float64
	filters                        entryFilters
}

type geminiPhase interface{ geminiPhase() }

type geminiScanning struct{}

type geminiCrossWindow struct {
	crossBar int
}

func (geminiScanning) geminiPhase()    {}
func (geminiCrossWindow) geminiPhase() {}

// GEMINI watches for HL2 crossing above KAMA and confirms the move with the rate of change of
// the primary symbol against an inversely correlated reference symbol.
type GEMINI struct {
	base
	p     geminiParams
	phase geminiPhase

	// indicator continuity, kept across Reset
	prevAbove bool
	rocHist   *History[float64]
	harmHist  *History[float64]
	atrHist   *History[float64]
}

// NewGEMINI builds the checker. Every parameter has a default; the configuration must name a
// reference symbol.
func NewGEMINI(configName string, params domain.Params, logger ports.Logger) (ports.Checker, error) {
	p := geminiParams{
		kamaPeriod:        params.Int("kama_period", 10),
		kamaFast:          params.Int("kama_fast", 2),
		kamaSlow:          params.Int("kama_slow", 30),
		hl2EMAPeriod:      params.Int("hl2_ema_period", 1),
		rocPrimary:        params.Int("roc_period_primary", 5),
		rocReference:      params.Int("roc_period_reference", 5),
		harmonyScale:      params.Float("harmony_scale", 10000),
		allowedCrossBars:  params.Ints("allowed_cross_bars", nil),
		rocAngleMin:       params.Float("entry_roc_angle_min", 10),
		rocAngleMax:       params.Float("entry_roc_angle_max", 40),
		harmonyAngleMin:   params.Float("entry_harmony_angle_min", 10),
		harmonyAngleMax:   params.Float("entry_harmony_angle_max", 25),
		rocAngleScale:     params.Float("roc_angle_scale", 1),
		harmonyAngleScale: params.Float("harmony_angle_scale", 1),
		plotROCMult:       params.Float("plot_roc_multiplier", 500),
		plotHarmonyMult:   params.Float("plot_harmony_multiplier", 15),
		atrLength:         params.Int("atr_length", 10),
		atrAvgPeriod:      params.Int("atr_avg_period", 20),
		slMult:            params.Float("atr_sl_multiplier", 5),
		tpMult:            params.Float("atr_tp_multiplier", 10),
		filters:           loadEntryFilters(params, 0.0001, nil),
	}
	p.maxWindow = geminiDefaultWindow
	if len(p.allowedCrossBars) > 0 {
		p.maxWindow = slices.Max(p.allowedCrossBars)
	}
	if !params.Has("atr_max") {
		p.filters.atrMax = 1
	}
	if !params.Has("sl_pips_min") {
		p.filters.slPipsMin = 5
	}
	if !params.Has("sl_pips_max") {
		p.filters.slPipsMax = 50
	}

	minBars := max(geminiMinBars, p.kamaPeriod+1, p.rocPrimary+1, p.rocReference+1, p.atrLength)
	return &GEMINI{
		base:     newBase(StrategyGEMINI, configName, minBars, logger),
		p:        p,
		phase:    geminiScanning{},
		rocHist:  NewHistory[float64](geminiAngleHistory),
		harmHist: NewHistory[float64](geminiAngleHistory),
		atrHist:  NewHistory[float64](geminiATRHistory),
	}, nil
}

// NeedsReference reports that the checker consumes a second symbol.
func (c *GEMINI) NeedsReference() bool { return true }

type geminiInputs struct {
	above      bool
	hl2EMA     float64
	kama       float64
	rocP, rocR float64
	harmony    float64
	atr        float64
	close      float64
}

func (c *GEMINI) inputs(window, reference []domain.Bar) (geminiInputs, error) {
	hl2 := indicators.HL2(window)
	kama, err := indicators.KAMASeries(hl2, c.p.kamaPeriod, c.p.kamaFast, c.p.kamaSlow)
	if err != nil {
		return geminiInputs{}, err
	}
	hl2EMA, err := indicators.EMA(hl2, c.p.hl2EMAPeriod)
	if err != nil {
		return geminiInputs{}, err
	}
	rocP, err := indicators.ROC(indicators.Closes(window), c.p.rocPrimary)
	if err != nil {
		return geminiInputs{}, err
	}
	rocR, err := indicators.ROC(indicators.Closes(reference), c.p.rocReference)
	if err != nil {
		return geminiInputs{}, err
	}
	atr, err := indicators.ATR(window, c.p.atrLength)
	if err != nil {
		return geminiInputs{}, err
	}
	k := kama[len(kama)-1]
	return geminiInputs{
		above:   hl2EMA > k,
		hl2EMA:  hl2EMA,
		kama:    k,
		rocP:    rocP,
		rocR:    rocR,
		harmony: rocP * (-rocR) * c.p.harmonyScale,
		atr:     atr,
		close:   window[len(window)-1].Close,
	}, nil
}

// angles returns the plot-scaled slope angles of ROC and harmony between the last two bars.
func (c *GEMINI) angles() (rocAngle, harmonyAngle float64) {
	if c.rocHist.Len() < 2 || c.harmHist.Len() < 2 {
		return 0, 0
	}
	roc := c.rocHist.Values()
	harm := c.harmHist.Values()
	rocAngle = indicators.AngleDegrees(roc[len(roc)-1]*c.p.plotROCMult, roc[len(roc)-2]*c.p.plotROCMult, c.p.rocAngleScale)
	harmonyAngle = indicators.AngleDegrees(harm[len(harm)-1]*c.p.plotHarmonyMult, harm[len(harm)-2]*c.p.plotHarmonyMult, c.p.harmonyAngleScale)
	return rocAngle, harmonyAngle
}

func (c *GEMINI) averageATR() float64 {
	values := c.atrHist.Values()
	if len(values) == 0 {
		return 0
	}
	n := min(len(values), c.p.atrAvgPeriod)
	sum := 0.0
	for _, v := range values[len(values)-n:] {
		sum += v
	}
	return sum / float64(n)
}

// Check advances the phase machine by one bar.
func (c *GEMINI) Check(window, reference []domain.Bar) domain.Signal {
	at := lastTime(window)
	if len(reference) == 0 {
		return c.noSignal(reasonNoReference, at)
	}
	if len(window) < c.minBars || len(reference) < c.minBars {
		return c.noSignal(reasonInsufficientData, at)
	}
	in, err := c.inputs(window, reference)
	if err != nil {
		return c.noSignal(err.Error(), at)
	}
	c.advance()

	cross := in.above && !c.prevAbove
	c.prevAbove = in.above
	c.rocHist.Push(in.rocP)
	c.harmHist.Push(in.harmony)
	c.atrHist.Push(in.atr)

	switch ph := c.phase.(type) {
	case geminiScanning:
		if !cross {
			return c.noSignal("No KAMA cross detected", at)
		}
		c.phase = geminiCrossWindow{crossBar: c.barsProcessed}
		c.transition("SCANNING", "CROSS_WINDOW", "HL2 EMA crossed above KAMA")
		return c.noSignalf(at, "KAMA cross: HL2_EMA %.5f > KAMA %.5f", in.hl2EMA, in.kama)
	case geminiCrossWindow:
		return c.watchWindow(ph, in, at)
	default:
		return c.noSignal("unknown phase", at)
	}
}

func (c *GEMINI) watchWindow(ph geminiCrossWindow, in geminiInputs, at time.Time) domain.Signal {
	since := c.barsProcessed - ph.crossBar
	if since > c.p.maxWindow {
		c.Reset()
		c.transition("CROSS_WINDOW", "SCANNING", "timeout")
		return c.noSignalf(at, "Cross window expired after %d bars", since)
	}
	if !in.above {
		c.Reset()
		c.transition("CROSS_WINDOW", "SCANNING", "cross invalidated")
		return c.noSignal("HL2_EMA dropped below KAMA - cross invalidated", at)
	}
	if len(c.p.allowedCrossBars) > 0 && !slices.Contains(c.p.allowedCrossBars, since) {
		return c.noSignalf(at, "Bar %d not in allowed_cross_bars %v", since, c.p.allowedCrossBars)
	}
	rocAngle, harmonyAngle := c.angles()
	if !between(math.Abs(rocAngle), c.p.rocAngleMin, c.p.rocAngleMax) {
		return c.noSignalf(at, "ROC angle %.1f not in [%g-%g]", rocAngle, c.p.rocAngleMin, c.p.rocAngleMax)
	}
	if !between(math.Abs(harmonyAngle), c.p.harmonyAngleMin, c.p.harmonyAngleMax) {
		return c.noSignalf(at, "Harmony angle %.1f not in [%g-%g]", harmonyAngle, c.p.harmonyAngleMin, c.p.harmonyAngleMax)
	}
	if in.rocP <= 0 {
		return c.noSignalf(at, "ROC primary not positive: %.6f", in.rocP)
	}

	c.Reset()
	c.transition("CROSS_WINDOW", "SCANNING", "entry confirmed")
	avgATR := c.averageATR()
	if avgATR <= 0 {
		return c.noSignal("ATR is zero or negative", at)
	}
	entry := in.close
	stopLoss := entry - avgATR*c.p.slMult
	takeProfit := entry + avgATR*c.p.tpMult
	if reason := c.p.filters.final(at, avgATR, entry, stopLoss); reason != "" {
		return c.noSignal(reason, at)
	}
	return c.long(entry, stopLoss, takeProfit, avgATR, "KAMA cross confirmed by ROC and harmony angles", at)
}

// Reset returns to scanning. The cross flag and the ROC, harmony and ATR histories are kept.
func (c *GEMINI) Reset() {
	c.phase = geminiScanning{}
	c.barsInPhase = 0
}

// DescribeState reports the current phase and its temporaries.
func (c *GEMINI) DescribeState() domain.CheckerState {
	switch ph := c.phase.(type) {
	case geminiScanning:
		return c.snapshot(phaseScanning, nil)
	case geminiCrossWindow:
		return c.snapshot("CROSS_WINDOW", map[string]float64{
			"cross_bar":        float64(ph.crossBar),
			"bars_since_cross": float64(c.barsProcessed - ph.crossBar),
		})
	default:
		return c.snapshot("UNKNOWN", nil)
	}
}
