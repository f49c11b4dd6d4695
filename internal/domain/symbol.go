package domain

import (
	"math"
	"strings"
	"time"
)

// SymbolInfo describes the trading constraints of a symbol.
type SymbolInfo struct {
	Name         string
	Digits       int     // Price precision
	Point        float64 // Smallest price increment
	VolumeMin    float64
	VolumeMax    float64
	VolumeStep   float64
	ContractSize float64
	FillModes    FillMode // Bitmask of supported fill modes
}

// Supports reports whether the symbol accepts the given fill mode.
func (s *SymbolInfo) Supports(mode FillMode) bool {
	return s.FillModes&mode != 0
}

// QuoteAsset guesses the quote currency from the symbol name.
func (s *SymbolInfo) QuoteAsset() string {
	for _, q := range []string{"USDT", "USDC", "BUSD", "JPY", "USD", "EUR"} {
		if strings.HasSuffix(strings.ToUpper(s.Name), q) {
			return q
		}
	}
	return ""
}

// Tick is the latest quote for a symbol.
type Tick struct {
	Bid  float64
	Ask  float64
	Time time.Time
}

// PipSize returns one pip: ten points on 3- and 5-digit quotes, one point otherwise.
func (s *SymbolInfo) PipSize() float64 {
	point := s.Point
	if point <= 0 {
		point = math.Pow(10, -float64(s.Digits))
	}
	if s.Digits == 3 || s.Digits == 5 {
		return point * 10
	}
	return point
}
