package pricing

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

var (
	// ErrNoBasePrice indicates the product has no usable regular price.
	ErrNoBasePrice = errors.New("product has no base price")
	// ErrNegativeFinalPrice is returned when the reseller parameters would push the customer price below zero.
	ErrNegativeFinalPrice = errors.New("customer final price cannot be negative")
	// ErrOutOfRange marks a profit or discount value outside its permitted bounds.
	ErrOutOfRange = errors.New("value out of range")
)

// DefaultMaxProfit is the upper bound applied to the profit a reseller may add on a link.
var DefaultMaxProfit = decimal.NewFromInt(800)

// RangeError names the bound a reseller supplied value violated.
type RangeError struct {
	Field string
	Value decimal.Decimal
	Min   decimal.Decimal
	Max   decimal.Decimal
}

func (e *RangeError) Error() string {
	return fmt.Sprintf("%s must be between %s and %s", e.Field, e.Min.String(), e.Max.String())
}

// Is lets errors.Is match ErrOutOfRange.
func (e *RangeError) Is(target error) bool {
	return target == ErrOutOfRange
}

// Resolution is the derived affiliate pricing for a single unit of a product.
type Resolution struct {
	DiscountedBasePrice       Money           `json:"discountedBasePrice"`
	ProfitOnLink              Money           `json:"profitOnLink"`
	ResellerDiscountPercent   decimal.Decimal `json:"resellerDiscountPercent"`
	ResellerDiscountAmount    Money           `json:"resellerDiscountAmount"`
	AdjustedProfitForReseller Money           `json:"adjustedProfitForReseller"`
	CustomerFinalPrice        Money           `json:"customerFinalPrice"`
}

// Calculator implements the affiliate discount/markup formula. A zero MaxProfit means
// DefaultMaxProfit. MinorUnits is used as given, so the zero value rounds to whole units.
type Calculator struct {
	MaxProfit  Money
	MinorUnits int32
}

// NewCalculator builds a Calculator with the given profit ceiling and currency precision.
func NewCalculator(maxProfit Money, minorUnits int32) Calculator {
	return Calculator{MaxProfit: maxProfit, MinorUnits: minorUnits}
}

func (c Calculator) maxProfit() Money {
	if c.MaxProfit.IsPositive() {
		return c.MaxProfit
	}
	return DefaultMaxProfit
}

func (c Calculator) places() int32 {
	if c.MinorUnits < 0 {
		return DefaultMinorUnits
	}
	return c.MinorUnits
}

// Normalize rounds a reseller profit to minor units and a percentage to PercentPlaces,
// the precision both are persisted with.
func (c Calculator) Normalize(profitOnLink Money, resellerDiscountPercent decimal.Decimal) (Money, decimal.Decimal) {
	return RoundMoney(profitOnLink, c.places()), resellerDiscountPercent.Round(PercentPlaces)
}

// MaxProfitBound exposes the effective profit ceiling.
func (c Calculator) MaxProfitBound() Money {
	return c.maxProfit()
}

// DiscountedBasePrice applies the admin discount to the regular price.
func (c Calculator) DiscountedBasePrice(regular decimal.NullDecimal, adminDiscountPercent decimal.Decimal) (Money, error) {
	if !regular.Valid || regular.Decimal.IsNegative() {
		return decimal.Zero, ErrNoBasePrice
	}
	pct := Clamp(adminDiscountPercent, decimal.Zero, hundred)
	factor := decimal.NewFromInt(1).Sub(pct.Div(hundred))
	return RoundMoney(regular.Decimal.Mul(factor), c.places()), nil
}

// Resolve computes the customer price and reseller commission. Inputs are normalized but
// trusted to be in range already; only a negative final price is rejected.
func (c Calculator) Resolve(discountedBase, profitOnLink Money, resellerDiscountPercent decimal.Decimal) (Resolution, error) {
	discountedBase = RoundMoney(discountedBase, c.places())
	profitOnLink, resellerDiscountPercent = c.Normalize(profitOnLink, resellerDiscountPercent)
	amount := RoundMoney(discountedBase.Mul(resellerDiscountPercent).Div(hundred), c.places())
	adjusted := profitOnLink.Sub(amount)
	final := discountedBase.Add(adjusted)
	if final.IsNegative() {
		return Resolution{}, fmt.Errorf("%w: base %s, profit %s, discount %s%%", ErrNegativeFinalPrice,
			discountedBase.String(), profitOnLink.String(), resellerDiscountPercent.String())
	}
	return Resolution{
		DiscountedBasePrice:       discountedBase,
		ProfitOnLink:              profitOnLink,
		ResellerDiscountPercent:   resellerDiscountPercent,
		ResellerDiscountAmount:    amount,
		AdjustedProfitForReseller: adjusted,
		CustomerFinalPrice:        final,
	}, nil
}

// ClampProfit bounds a reseller profit to [0, MaxProfit].
func (c Calculator) ClampProfit(v Money) Money {
	return Clamp(v, decimal.Zero, c.maxProfit())
}

// ClampPercent bounds a reseller discount percentage to [0, 100].
func (c Calculator) ClampPercent(v decimal.Decimal) decimal.Decimal {
	return Clamp(v, decimal.Zero, hundred)
}

// ValidateBounds rejects out-of-range reseller inputs, naming the violated bound.
func (c Calculator) ValidateBounds(profitOnLink Money, resellerDiscountPercent decimal.Decimal) error {
	if profitOnLink.IsNegative() || profitOnLink.GreaterThan(c.maxProfit()) {
		return &RangeError{Field: "additional profit", Value: profitOnLink, Min: decimal.Zero, Max: c.maxProfit()}
	}
	if resellerDiscountPercent.IsNegative() || resellerDiscountPercent.GreaterThan(hundred) {
		return &RangeError{Field: "reseller discount percent", Value: resellerDiscountPercent, Min: decimal.Zero, Max: hundred}
	}
	return nil
}

// CustomerPaid recomputes the per-unit price a customer paid from frozen link parameters.
func (c Calculator) CustomerPaid(discountedBase, profitOnLink Money, resellerDiscountPercent decimal.Decimal) Money {
	discountedBase = RoundMoney(discountedBase, c.places())
	profitOnLink, resellerDiscountPercent = c.Normalize(profitOnLink, resellerDiscountPercent)
	amount := RoundMoney(discountedBase.Mul(resellerDiscountPercent).Div(hundred), c.places())
	return discountedBase.Add(profitOnLink).Sub(amount)
}
