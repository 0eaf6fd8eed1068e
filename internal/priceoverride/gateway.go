package priceoverride

import (
	"github.com/shopspring/decimal"

	"github.com/noah-isme/toko-affiliate/internal/pricing"
	"github.com/noah-isme/toko-affiliate/internal/session"
)

// Resolver reports the affiliate resolution active for a product.
type Resolver interface {
	ActiveFor(productID string) (session.Active, bool)
}

// Kind names the price being queried. All kinds collapse to the same override.
type Kind string

const (
	KindRegular  Kind = "regular"
	KindSale     Kind = "sale"
	KindPrice    Kind = "price"
	KindCartLine Kind = "cart_line"
)

// PriceQuery is a single product price lookup.
type PriceQuery struct {
	ProductID string
	Kind      Kind
	Price     decimal.NullDecimal
}

// CartLine is a cart item priced at its catalog unit price.
type CartLine struct {
	ProductID string        `json:"productId"`
	Quantity  int           `json:"quantity"`
	UnitPrice pricing.Money `json:"unitPrice"`
}

// PricedLine is a cart line after overrides.
type PricedLine struct {
	ProductID  string        `json:"productId"`
	Quantity   int           `json:"quantity"`
	UnitPrice  pricing.Money `json:"unitPrice"`
	LineTotal  pricing.Money `json:"lineTotal"`
	Affiliated bool          `json:"affiliated"`
}

// CartTotals is the recalculated cart.
type CartTotals struct {
	Lines   []PricedLine    `json:"lines"`
	Summary pricing.Summary `json:"summary"`
}

// Gateway substitutes affiliate prices into catalog and cart price lookups.
type Gateway struct {
	MinorUnits int32
	TaxRateBps int
}

// OnPriceQuery returns the customer final price when r has a resolution for the product,
// otherwise the queried price unchanged.
func (g Gateway) OnPriceQuery(r Resolver, q PriceQuery) decimal.NullDecimal {
	if price, ok := override(r, q.ProductID); ok {
		return decimal.NewNullDecimal(price)
	}
	return q.Price
}

func override(r Resolver, productID string) (pricing.Money, bool) {
	if r == nil {
		return decimal.Zero, false
	}
	active, ok := r.ActiveFor(productID)
	if !ok {
		return decimal.Zero, false
	}
	return active.Resolution.CustomerFinalPrice, true
}

// OnCartRecalculate overrides affiliated unit prices and then computes totals, so tax is
// charged on the overridden base.
func (g Gateway) OnCartRecalculate(r Resolver, lines []CartLine, discount, shipping pricing.Money) CartTotals {
	places := g.MinorUnits
	if places < 0 {
		places = pricing.DefaultMinorUnits
	}
	priced := make([]PricedLine, 0, len(lines))
	items := make([]pricing.Item, 0, len(lines))
	for _, line := range lines {
		if line.Quantity <= 0 {
			continue
		}
		unit := line.UnitPrice
		price, affiliated := override(r, line.ProductID)
		if affiliated {
			unit = price
		}
		priced = append(priced, PricedLine{
			ProductID:  line.ProductID,
			Quantity:   line.Quantity,
			UnitPrice:  unit,
			LineTotal:  pricing.RoundMoney(unit.Mul(decimal.NewFromInt(int64(line.Quantity))), places),
			Affiliated: affiliated,
		})
		items = append(items, pricing.Item{Qty: line.Quantity, UnitPrice: unit})
	}
	return CartTotals{
		Lines:   priced,
		Summary: pricing.Compute(items, discount, g.TaxRateBps, shipping, places),
	}
}
