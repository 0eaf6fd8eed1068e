package pricing

import "github.com/shopspring/decimal"

// Item describes a line item used for pricing calculation.
type Item struct {
	Qty       int
	UnitPrice Money
}

// Summary aggregates computed pricing components.
type Summary struct {
	Subtotal Money `json:"subtotal"`
	Discount Money `json:"discount"`
	Tax      Money `json:"tax"`
	Shipping Money `json:"shipping"`
	Total    Money `json:"total"`
}

// Compute calculates cart totals given the provided inputs. Unit prices must already carry any
// affiliate override so tax is computed on the overridden base.
func Compute(items []Item, discount Money, taxBps int, shipping Money, places int32) Summary {
	subtotal := decimal.Zero
	for _, it := range items {
		if it.Qty <= 0 {
			continue
		}
		subtotal = subtotal.Add(it.UnitPrice.Mul(decimal.NewFromInt(int64(it.Qty))))
	}
	if discount.IsNegative() {
		discount = decimal.Zero
	}
	if discount.GreaterThan(subtotal) {
		discount = subtotal
	}
	taxable := subtotal.Sub(discount)
	if taxable.IsNegative() {
		taxable = decimal.Zero
	}
	tax := RoundMoney(taxable.Mul(decimal.NewFromInt(int64(taxBps))).Div(decimal.NewFromInt(10000)), places)
	if shipping.IsNegative() {
		shipping = decimal.Zero
	}
	total := taxable.Add(tax).Add(shipping)
	return Summary{
		Subtotal: RoundMoney(subtotal, places),
		Discount: RoundMoney(discount, places),
		Tax:      tax,
		Shipping: RoundMoney(shipping, places),
		Total:    RoundMoney(total, places),
	}
}
