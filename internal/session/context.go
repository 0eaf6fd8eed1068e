package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/noah-isme/toko-affiliate/internal/affiliate"
	"github.com/noah-isme/toko-affiliate/internal/catalog"
	"github.com/noah-isme/toko-affiliate/internal/obs"
	"github.com/noah-isme/toko-affiliate/internal/pricing"
)

var (
	// ErrInvalidToken is reported when a token matches no link.
	ErrInvalidToken = errors.New("affiliate token is invalid or expired")
	// ErrStaleLink is reported when current pricing makes a previously valid link produce a negative price.
	ErrStaleLink = errors.New("affiliate link no longer yields a valid price")
)

// LinkFinder is the part of the link store used at resolution time.
type LinkFinder interface {
	FindByToken(ctx context.Context, token string) (affiliate.Link, error)
}

// Active is the single affiliate resolution held by a session.
type Active struct {
	Token      string             `json:"token"`
	ProductID  string             `json:"productId"`
	ResellerID string             `json:"resellerId"`
	Resolution pricing.Resolution `json:"resolution"`
	ResolvedAt time.Time          `json:"resolvedAt"`
}

// Manager opens per-session pricing contexts.
type Manager struct {
	Store   Store
	Links   LinkFinder
	Catalog catalog.Reader
	Calc    pricing.Calculator
	Logger  zerolog.Logger
	Now     func() time.Time
}

func (m *Manager) now() time.Time {
	if m.Now != nil {
		return m.Now()
	}
	return time.Now().UTC()
}

// Open loads the session's pricing state. An unreadable blob yields an empty context.
func (m *Manager) Open(ctx context.Context, sessionID string) (*PricingContext, error) {
	if m == nil || m.Store == nil {
		return nil, errors.New("session manager not configured")
	}
	pc := &PricingContext{m: m, id: sessionID}
	blob, ok, err := m.Store.Get(ctx, sessionID)
	if err != nil {
		return pc, fmt.Errorf("load session: %w", err)
	}
	if !ok || len(blob) == 0 {
		return pc, nil
	}
	var active Active
	if err := json.Unmarshal(blob, &active); err != nil {
		m.Logger.Warn().Err(err).Msg("discarding unreadable affiliate session state")
		_ = m.Store.Unset(ctx, sessionID)
		return pc, nil
	}
	if active.Token != "" && active.ProductID != "" {
		pc.active = &active
	}
	return pc, nil
}

// PricingContext holds at most one active affiliate resolution for a visitor session.
type PricingContext struct {
	m      *Manager
	id     string
	mu     sync.Mutex
	active *Active
}

// ID returns the session identifier.
func (pc *PricingContext) ID() string {
	if pc == nil {
		return ""
	}
	return pc.id
}

// Resolve looks up token and activates its pricing, replacing any previous resolution.
// Every failure leaves the context empty.
func (pc *PricingContext) Resolve(ctx context.Context, token string) (Active, error) {
	if pc == nil || pc.m == nil || pc.m.Links == nil || pc.m.Catalog == nil {
		return Active{}, errors.New("session manager not configured")
	}
	active, outcome, err := pc.resolve(ctx, token)
	if err == nil {
		if err = pc.store(ctx, &active); err != nil {
			outcome = "error"
		}
	}
	obs.RecordResolution(outcome)
	if err != nil {
		if clearErr := pc.Clear(ctx); clearErr != nil {
			pc.m.Logger.Error().Err(clearErr).Msg("clear affiliate session")
		}
		pc.m.Logger.Info().Str("outcome", outcome).Str("token_prefix", obs.TokenPrefix(token)).Msg("affiliate token not applied")
		return Active{}, err
	}
	pc.m.Logger.Debug().Str("product_id", active.ProductID).Str("token_prefix", obs.TokenPrefix(token)).Msg("affiliate token applied")
	return active, nil
}

func (pc *PricingContext) resolve(ctx context.Context, token string) (Active, string, error) {
	link, err := pc.m.Links.FindByToken(ctx, token)
	if err != nil {
		if errors.Is(err, affiliate.ErrLinkNotFound) {
			return Active{}, "invalid_token", ErrInvalidToken
		}
		return Active{}, "error", err
	}
	product, err := pc.m.Catalog.Lookup(ctx, link.ProductID)
	if err != nil {
		if errors.Is(err, catalog.ErrProductNotFound) {
			return Active{}, "not_purchasable", affiliate.ErrProductNotPurchasable
		}
		return Active{}, "error", err
	}
	if !product.Purchasable {
		return Active{}, "not_purchasable", affiliate.ErrProductNotPurchasable
	}
	base, err := pc.m.Calc.DiscountedBasePrice(product.RegularPrice, product.AdminDiscount())
	if err != nil {
		return Active{}, "not_purchasable", fmt.Errorf("%w: %w", affiliate.ErrProductNotPurchasable, err)
	}
	res, err := pc.m.Calc.Resolve(base, link.Profit, link.ResellerDiscountPercent)
	if err != nil {
		return Active{}, "stale_link", fmt.Errorf("%w: %w", ErrStaleLink, err)
	}
	return Active{
		Token:      link.Token,
		ProductID:  link.ProductID,
		ResellerID: link.ResellerID,
		Resolution: res,
		ResolvedAt: pc.m.now(),
	}, "applied", nil
}

func (pc *PricingContext) store(ctx context.Context, active *Active) error {
	blob, err := json.Marshal(active)
	if err != nil {
		return err
	}
	pc.mu.Lock()
	defer pc.mu.Unlock()
	if err := pc.m.Store.Set(ctx, pc.id, blob); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	pc.active = active
	return nil
}

// Active returns the current resolution, if any.
func (pc *PricingContext) Active() (Active, bool) {
	if pc == nil {
		return Active{}, false
	}
	pc.mu.Lock()
	defer pc.mu.Unlock()
	if pc.active == nil {
		return Active{}, false
	}
	return *pc.active, true
}

// ActiveFor returns the active entry only when it targets productID.
func (pc *PricingContext) ActiveFor(productID string) (Active, bool) {
	active, ok := pc.Active()
	if !ok || active.ProductID != productID {
		return Active{}, false
	}
	return active, true
}

// Clear removes the active resolution. Clearing an empty context is a no-op.
func (pc *PricingContext) Clear(ctx context.Context) error {
	if pc == nil || pc.m == nil {
		return nil
	}
	pc.mu.Lock()
	defer pc.mu.Unlock()
	pc.active = nil
	return pc.m.Store.Unset(ctx, pc.id)
}

// OnLineRemoved clears the context when the affiliated product no longer has any line in the cart.
func (pc *PricingContext) OnLineRemoved(ctx context.Context, productID string, remainingQty int) error {
	if _, ok := pc.ActiveFor(productID); !ok || remainingQty > 0 {
		return nil
	}
	return pc.Clear(ctx)
}

// OnCartEmptied clears the context.
func (pc *PricingContext) OnCartEmptied(ctx context.Context) error {
	return pc.Clear(ctx)
}
