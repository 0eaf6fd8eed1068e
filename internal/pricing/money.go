package pricing

import "github.com/shopspring/decimal"

// Money represents a monetary value in major currency units.
type Money = decimal.Decimal

// DefaultMinorUnits is the number of fractional digits amounts are rounded to when a
// negative precision is supplied.
const DefaultMinorUnits int32 = 2

// PercentPlaces is the precision percentages are stored with.
const PercentPlaces int32 = 2

var hundred = decimal.NewFromInt(100)

// RoundMoney rounds an amount to the given minor-unit precision.
func RoundMoney(m Money, places int32) Money {
	if places < 0 {
		places = DefaultMinorUnits
	}
	return m.Round(places)
}

// Clamp bounds v to [lo, hi].
func Clamp(v, lo, hi decimal.Decimal) decimal.Decimal {
	if v.LessThan(lo) {
		return lo
	}
	if v.GreaterThan(hi) {
		return hi
	}
	return v
}
