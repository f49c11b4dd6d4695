package risk

import (
	"fmt"
	"math"
	"slices"
	"strings"

	"liveSignalBot/internal/domain"
	"liveSignalBot/internal/ports"

	"github.com/shopspring/decimal"
)

// PairType selects the sizing formula for a symbol.
type PairType string

const (
	PairStandard PairType = "STANDARD"
	PairJPY      PairType = "JPY"
	PairETF      PairType = "ETF"
)

var etfSymbols = []string{"DIA", "TLT", "GLD", "SPY", "QQQ", "IWM", "XLE", "EWZ", "XLU", "SLV"}

// ClassifySymbol returns the pair type of a symbol name.
func ClassifySymbol(symbol string) PairType {
	s := strings.ToUpper(symbol)
	switch {
	case slices.Contains(etfSymbols, s):
		return PairETF
	case strings.HasSuffix(s, "JPY"):
		return PairJPY
	default:
		return PairStandard
	}
}

// SizingConfig holds the position sizing parameters of one configuration.
type SizingConfig struct {
	RiskPercent  float64 // Fraction of equity risked per trade (0.01 = 1%)
	ContractSize float64 // Units per lot when the terminal does not report one
	PipValue     float64 // Pip size used for JPY conversion
	MarginPct    float64 // ETF margin requirement, percent of notional
	MaxLots      float64 // Global cap, zero for none
}

// DefaultSizingConfig returns the forex defaults.
func DefaultSizingConfig() SizingConfig {
	return SizingConfig{
		RiskPercent:  0.01,
		ContractSize: 100000,
		PipValue:     0.01,
		MarginPct:    20,
	}
}

// Sizer turns a stop distance into an order volume.
type Sizer struct {
	cfg SizingConfig
}

// NewSizer creates a sizer; zero fields fall back to the defaults.
func NewSizer(cfg SizingConfig) *Sizer {
	def := DefaultSizingConfig()
	if cfg.RiskPercent <= 0 {
		cfg.RiskPercent = def.RiskPercent
	}
	if cfg.ContractSize <= 0 {
		cfg.ContractSize = def.ContractSize
	}
	if cfg.PipValue <= 0 {
		cfg.PipValue = def.PipValue
	}
	if cfg.MarginPct <= 0 {
		cfg.MarginPct = def.MarginPct
	}
	return &Sizer{cfg: cfg}
}

// Volume returns the order volume for a long entry with the given stop.
// The result is rounded down to the symbol's volume step and clamped to its limits.
func (s *Sizer) Volume(info *domain.SymbolInfo, equity, entry, stopLoss float64) (float64, error) {
	if info == nil {
		return 0, fmt.Errorf("size position: missing symbol info: %w", ports.ErrInvalidRequest)
	}
	if equity <= 0 {
		return 0, fmt.Errorf("size position on %s: equity %.2f: %w", info.Name, equity, ports.ErrInsufficientFunds)
	}
	stopDistance := entry - stopLoss
	if entry <= 0 || stopDistance <= 0 {
		return 0, fmt.Errorf("size position on %s: stop %.5f must be below entry %.5f: %w",
			info.Name, stopLoss, entry, ports.ErrInvalidRequest)
	}

	riskAmount := equity * s.cfg.RiskPercent
	contract := info.ContractSize
	if contract <= 0 {
		contract = s.cfg.ContractSize
	}

	var raw float64
	switch ClassifySymbol(info.Name) {
	case PairETF:
		shares := riskAmount / stopDistance
		shares = math.Min(shares, equity/(entry*s.cfg.MarginPct/100))
		raw = math.Max(1, math.Floor(shares))
	case PairJPY:
		pipRisk := stopDistance / s.cfg.PipValue
		valuePerPip := contract * s.cfg.PipValue / entry
		raw = riskAmount / (pipRisk * valuePerPip)
	default:
		raw = riskAmount / (stopDistance * contract)
	}

	return s.normalize(info, raw), nil
}

func (s *Sizer) normalize(info *domain.SymbolInfo, lots float64) float64 {
	v := decimal.NewFromFloat(lots).Round(8)
	if info.VolumeStep > 0 {
		step := decimal.NewFromFloat(info.VolumeStep)
		v = v.Div(step).Floor().Mul(step)
	} else {
		v = v.RoundDown(2)
	}

	if s.cfg.MaxLots > 0 {
		v = decimal.Min(v, decimal.NewFromFloat(s.cfg.MaxLots))
	}
	if info.VolumeMax > 0 {
		v = decimal.Min(v, decimal.NewFromFloat(info.VolumeMax))
	}
	if info.VolumeMin > 0 {
		v = decimal.Max(v, decimal.NewFromFloat(info.VolumeMin))
	}
	f, _ := v.Float64()
	return f
}
