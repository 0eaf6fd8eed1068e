package catalog

import (
	"context"
	"errors"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// Service exposes admin operations on product pricing.
type Service struct {
	Store  Store
	Logger zerolog.Logger
}

// SetAdminDiscount validates and stores the admin discount. An invalid NullDecimal clears it.
func (s *Service) SetAdminDiscount(ctx context.Context, productID string, percent decimal.NullDecimal) (Product, error) {
	if s == nil || s.Store == nil {
		return Product{}, errors.New("catalog service not configured")
	}
	if percent.Valid && (percent.Decimal.IsNegative() || percent.Decimal.GreaterThan(hundred)) {
		return Product{}, ErrInvalidDiscount
	}
	p, err := s.Store.SetAdminDiscount(ctx, productID, percent)
	if err != nil {
		return Product{}, err
	}
	evt := s.Logger.Info().Str("product_id", p.ID)
	if percent.Valid {
		evt = evt.Str("admin_discount_percent", percent.Decimal.String())
	}
	evt.Msg("admin discount updated")
	return p, nil
}
