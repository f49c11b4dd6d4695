package risk

import "github.com/shopspring/decimal"

// DefaultCommissionPerLot is the charge per lot per order side.
const DefaultCommissionPerLot = 2.50

// Commission accumulates estimated commission. It is a value: Add returns the
// updated accumulator and leaves the receiver untouched.
type Commission struct {
	PerLot decimal.Decimal
	Total  decimal.Decimal
	Lots   decimal.Decimal
	Orders int
}

// NewCommission returns an empty accumulator charging perLot per lot per side.
func NewCommission(perLot float64) Commission {
	if perLot < 0 {
		perLot = DefaultCommissionPerLot
	}
	return Commission{PerLot: decimal.NewFromFloat(perLot)}
}

// Charge returns the commission of one order side without recording it.
func (c Commission) Charge(lots float64) float64 {
	f, _ := c.PerLot.Mul(decimal.NewFromFloat(lots).Abs()).Round(2).Float64()
	return f
}

// RoundTrip returns the entry plus exit charge for a volume.
func (c Commission) RoundTrip(lots float64) float64 {
	f, _ := c.PerLot.Mul(decimal.NewFromFloat(lots).Abs()).Mul(decimal.NewFromInt(2)).Round(2).Float64()
	return f
}

// Add records one order side and returns the new accumulator with the charge.
func (c Commission) Add(lots float64) (Commission, float64) {
	l := decimal.NewFromFloat(lots).Abs()
	charge := c.PerLot.Mul(l).Round(2)
	c.Total = c.Total.Add(charge)
	c.Lots = c.Lots.Add(l)
	c.Orders++
	f, _ := charge.Float64()
	return c, f
}

// TotalFloat returns the accumulated commission.
func (c Commission) TotalFloat() float64 {
	f, _ := c.Total.Float64()
	return f
}
