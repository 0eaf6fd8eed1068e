package catalog

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

var (
	// ErrProductNotFound indicates no product exists for the identifier.
	ErrProductNotFound = errors.New("product not found")
	// ErrInvalidDiscount indicates an admin discount outside 0..100.
	ErrInvalidDiscount = errors.New("admin discount percent must be between 0 and 100")
)

// Product is the pricing relevant view of a catalog product.
type Product struct {
	ID                   string              `json:"id"`
	Name                 string              `json:"name"`
	Slug                 string              `json:"slug"`
	RegularPrice         decimal.NullDecimal `json:"regularPrice"`
	Purchasable          bool                `json:"purchasable"`
	AdminDiscountPercent decimal.NullDecimal `json:"adminDiscountPercent"`
	UpdatedAt            time.Time           `json:"updatedAt"`
}

// AdminDiscount returns the configured admin discount, zero when unset.
func (p Product) AdminDiscount() decimal.Decimal {
	if !p.AdminDiscountPercent.Valid {
		return decimal.Zero
	}
	return p.AdminDiscountPercent.Decimal
}

// Reader looks up current product state. Implementations must not serve stale prices.
type Reader interface {
	Lookup(ctx context.Context, productID string) (Product, error)
}

// Store is a Reader that can also change the admin discount.
type Store interface {
	Reader
	SetAdminDiscount(ctx context.Context, productID string, percent decimal.NullDecimal) (Product, error)
}
