package affiliate

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"github.com/noah-isme/toko-affiliate/internal/pricing"
)

var (
	// ErrLinkNotFound is returned when no link matches a token.
	ErrLinkNotFound = errors.New("affiliate link not found")
	// ErrDuplicateToken signals a token uniqueness violation in the store.
	ErrDuplicateToken = errors.New("affiliate token already exists")
	// ErrTokenGenerationFailed is returned once every token attempt collided.
	ErrTokenGenerationFailed = errors.New("could not generate a unique affiliate token")
	// ErrProductNotPurchasable indicates the product cannot currently be sold or has no price.
	ErrProductNotPurchasable = errors.New("product is not currently purchasable or has no price defined")
	// ErrInvalidInput marks malformed generation requests.
	ErrInvalidInput = errors.New("invalid input")
)

// Link is an issued affiliate link. Links are immutable once created.
type Link struct {
	ID                      int64           `json:"id"`
	Token                   string          `json:"token"`
	ResellerID              string          `json:"resellerId"`
	ProductID               string          `json:"productId"`
	Profit                  pricing.Money   `json:"profit"`
	ResellerDiscountPercent decimal.Decimal `json:"resellerDiscountPercent"`
	CreatedAt               time.Time       `json:"createdAt"`
}

// Store persists affiliate links.
type Store interface {
	// Create inserts the link and returns it with ID and CreatedAt populated.
	Create(ctx context.Context, link Link) (Link, error)
	FindByToken(ctx context.Context, token string) (Link, error)
	// ListByReseller returns one page of a reseller's links, newest first, and the total count.
	ListByReseller(ctx context.Context, resellerID string, limit, offset int) ([]Link, int, error)
}
