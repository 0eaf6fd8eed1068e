package attribution

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/noah-isme/toko-affiliate/internal/obs"
	"github.com/noah-isme/toko-affiliate/internal/session"
)

// Source exposes the session's active affiliate resolution.
type Source interface {
	Active() (session.Active, bool)
}

// Clearer empties a session's pricing context.
type Clearer interface {
	Clear(ctx context.Context) error
}

// OrderLine is the order system's view of a freshly created line.
type OrderLine struct {
	ID             string
	OrderID        string
	ProductID      string
	ProductName    string
	Quantity       int
	OrderCreatedAt time.Time
}

// Attributor freezes session pricing onto order lines.
type Attributor struct {
	Repo   Repository
	Logger zerolog.Logger
	Now    func() time.Time
}

func (a *Attributor) now() time.Time {
	if a.Now != nil {
		return a.Now()
	}
	return time.Now().UTC()
}

// OnOrderLineCreated snapshots the active resolution onto line. It returns false when the
// line is not attributed. Failures are logged and never block checkout.
func (a *Attributor) OnOrderLineCreated(ctx context.Context, src Source, line OrderLine) (Attribution, bool) {
	if a == nil || a.Repo == nil || src == nil {
		return Attribution{}, false
	}
	active, ok := src.Active()
	if !ok {
		return Attribution{}, false
	}
	log := a.Logger.With().Str("order_id", line.OrderID).Str("line_id", line.ID).Logger()
	if active.ProductID != line.ProductID {
		obs.RecordAttribution("product_mismatch")
		log.Debug().Err(ErrProductMismatch).Str("product_id", line.ProductID).Msg("attribution skipped")
		return Attribution{}, false
	}
	if line.OrderCreatedAt.IsZero() {
		line.OrderCreatedAt = a.now()
	}
	res := active.Resolution
	rec := Attribution{
		LineID:                  line.ID,
		OrderID:                 line.OrderID,
		ProductID:               line.ProductID,
		ProductName:             line.ProductName,
		Quantity:                line.Quantity,
		ResellerID:              active.ResellerID,
		Token:                   active.Token,
		ProfitOnLink:            res.ProfitOnLink,
		ResellerDiscountPercent: res.ResellerDiscountPercent,
		DiscountedBasePrice:     res.DiscountedBasePrice,
		AdjustedProfit:          res.AdjustedProfitForReseller,
		CustomerFinalPrice:      res.CustomerFinalPrice,
		OrderCreatedAt:          line.OrderCreatedAt,
	}
	stored, err := a.Repo.Insert(ctx, rec)
	switch {
	case err == nil:
		obs.RecordAttribution("ok")
		log.Info().Str("reseller_id", stored.ResellerID).Msg("order line attributed")
		return stored, true
	case errors.Is(err, ErrIncompleteAttribution):
		obs.RecordAttribution("incomplete")
		log.Warn().Err(err).Msg("attribution skipped")
	case errors.Is(err, ErrAlreadyAttributed):
		obs.RecordAttribution("duplicate")
		log.Debug().Msg("order line already attributed")
	default:
		obs.RecordAttribution("persistence_error")
		log.Error().Err(err).Msg("attribution not persisted")
	}
	return Attribution{}, false
}

// OnOrderSubmitted clears the session so the link does not leak into the next cart.
func (a *Attributor) OnOrderSubmitted(ctx context.Context, c Clearer) {
	if c == nil {
		return
	}
	if err := c.Clear(ctx); err != nil && a != nil {
		a.Logger.Error().Err(err).Msg("clear affiliate session after order submission")
	}
}
