package affiliate

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/toko-affiliate/internal/catalog"
	"github.com/noah-isme/toko-affiliate/internal/common"
	"github.com/noah-isme/toko-affiliate/internal/obs"
	"github.com/noah-isme/toko-affiliate/internal/pricing"
)

const defaultTokenAttempts = 3

// Service issues affiliate links for resellers.
type Service struct {
	Links    Store
	Catalog  catalog.Reader
	Calc     pricing.Calculator
	NewToken func() string
	Attempts int
	BaseURL  string
	Logger   zerolog.Logger
}

// GenerateRequest carries the reseller's choices for a new link.
type GenerateRequest struct {
	ResellerID              string
	ProductID               string
	Profit                  pricing.Money
	ResellerDiscountPercent decimal.Decimal
}

// GeneratedLink is the shareable result of GenerateLink.
type GeneratedLink struct {
	URL     string             `json:"url"`
	Token   string             `json:"token"`
	Link    Link               `json:"link"`
	Pricing pricing.Resolution `json:"pricing"`
}

// Preview is a clamped, non-persisted pricing preview.
type Preview struct {
	ProductID               string             `json:"productId"`
	Profit                  pricing.Money      `json:"additionalProfit"`
	ResellerDiscountPercent decimal.Decimal    `json:"resellerDiscountPercent"`
	MaxProfit               pricing.Money      `json:"maxProfit"`
	Pricing                 pricing.Resolution `json:"pricing"`
}

// LinkView decorates a stored link with its shareable URL.
type LinkView struct {
	Link
	URL string `json:"url,omitempty"`
}

func (s *Service) attempts() int {
	if s.Attempts <= 0 {
		return defaultTokenAttempts
	}
	return s.Attempts
}

type quote struct {
	product catalog.Product
	profit  pricing.Money
	pct     decimal.Decimal
	res     pricing.Resolution
}

// price loads the product and prices it with the reseller inputs, clamping or validating them.
func (s *Service) price(ctx context.Context, productID string, profit pricing.Money, pct decimal.Decimal, clamp bool) (quote, error) {
	product, err := s.Catalog.Lookup(ctx, productID)
	if err != nil {
		return quote{}, err
	}
	if !product.Purchasable {
		return quote{}, ErrProductNotPurchasable
	}
	base, err := s.Calc.DiscountedBasePrice(product.RegularPrice, product.AdminDiscount())
	if err != nil {
		return quote{}, fmt.Errorf("%w: %w", ErrProductNotPurchasable, err)
	}
	profit, pct = s.Calc.Normalize(profit, pct)
	if clamp {
		profit = s.Calc.ClampProfit(profit)
		pct = s.Calc.ClampPercent(pct)
	} else if err := s.Calc.ValidateBounds(profit, pct); err != nil {
		return quote{}, err
	}
	res, err := s.Calc.Resolve(base, profit, pct)
	if err != nil {
		return quote{}, err
	}
	return quote{product: product, profit: profit, pct: pct, res: res}, nil
}

// GenerateLink validates the reseller's inputs, persists a new link and returns its URL.
func (s *Service) GenerateLink(ctx context.Context, req GenerateRequest) (GeneratedLink, error) {
	if s == nil || s.Links == nil || s.Catalog == nil || s.NewToken == nil {
		return GeneratedLink{}, errors.New("link service not configured")
	}
	req.ResellerID = strings.TrimSpace(req.ResellerID)
	req.ProductID = strings.TrimSpace(req.ProductID)
	if req.ResellerID == "" {
		return GeneratedLink{}, fmt.Errorf("reseller id is required: %w", ErrInvalidInput)
	}
	if _, err := uuid.Parse(req.ResellerID); err != nil {
		return GeneratedLink{}, fmt.Errorf("reseller id must be a UUID: %w", ErrInvalidInput)
	}
	if req.ProductID == "" {
		return GeneratedLink{}, fmt.Errorf("product id is required: %w", ErrInvalidInput)
	}

	q, err := s.price(ctx, req.ProductID, req.Profit, req.ResellerDiscountPercent, false)
	if err != nil {
		obs.RecordLinkGenerated(resultLabel(err))
		return GeneratedLink{}, err
	}

	var link Link
	for attempt := 1; ; attempt++ {
		link, err = s.Links.Create(ctx, Link{
			Token:                   s.NewToken(),
			ResellerID:              req.ResellerID,
			ProductID:               q.product.ID,
			Profit:                  q.profit,
			ResellerDiscountPercent: q.pct,
		})
		if err == nil {
			break
		}
		if !errors.Is(err, ErrDuplicateToken) {
			obs.RecordLinkGenerated("persistence_error")
			return GeneratedLink{}, err
		}
		s.Logger.Warn().Int("attempt", attempt).Msg("affiliate token collision")
		if attempt >= s.attempts() {
			obs.RecordLinkGenerated("token_exhausted")
			return GeneratedLink{}, ErrTokenGenerationFailed
		}
	}

	obs.RecordLinkGenerated("ok")
	s.Logger.Info().
		Str("reseller_id", link.ResellerID).
		Str("product_id", link.ProductID).
		Str("token_prefix", obs.TokenPrefix(link.Token)).
		Msg("affiliate link generated")

	return GeneratedLink{
		URL:     catalog.ProductURL(s.BaseURL, q.product.Slug, link.Token),
		Token:   link.Token,
		Link:    link,
		Pricing: q.res,
	}, nil
}

// Preview prices a prospective link, clamping out-of-range inputs instead of rejecting them.
func (s *Service) Preview(ctx context.Context, productID string, profit pricing.Money, pct decimal.Decimal) (Preview, error) {
	if s == nil || s.Catalog == nil {
		return Preview{}, errors.New("link service not configured")
	}
	productID = strings.TrimSpace(productID)
	if productID == "" {
		return Preview{}, fmt.Errorf("product id is required: %w", ErrInvalidInput)
	}
	q, err := s.price(ctx, productID, profit, pct, true)
	if err != nil {
		return Preview{}, err
	}
	return Preview{
		ProductID:               productID,
		Profit:                  q.profit,
		ResellerDiscountPercent: q.pct,
		MaxProfit:               s.Calc.MaxProfitBound(),
		Pricing:                 q.res,
	}, nil
}

// ListLinks returns one page of the reseller's links.
func (s *Service) ListLinks(ctx context.Context, resellerID string, page, perPage int) ([]LinkView, common.Pagination, error) {
	if s == nil || s.Links == nil {
		return nil, common.Pagination{}, errors.New("link service not configured")
	}
	p := common.Pagination{Page: page, PerPage: perPage}
	links, total, err := s.Links.ListByReseller(ctx, resellerID, perPage, p.Offset())
	if err != nil {
		return nil, p, err
	}
	p.TotalItems = total
	views := make([]LinkView, 0, len(links))
	slugs := make(map[string]string)
	for _, l := range links {
		view := LinkView{Link: l}
		slug, ok := slugs[l.ProductID]
		if !ok && s.Catalog != nil {
			if product, err := s.Catalog.Lookup(ctx, l.ProductID); err == nil {
				slug = product.Slug
			}
			slugs[l.ProductID] = slug
		}
		if slug != "" {
			view.URL = catalog.ProductURL(s.BaseURL, slug, l.Token)
		}
		views = append(views, view)
	}
	return views, p, nil
}

func resultLabel(err error) string {
	switch {
	case errors.Is(err, pricing.ErrOutOfRange):
		return "out_of_range"
	case errors.Is(err, ErrProductNotPurchasable):
		return "not_purchasable"
	case errors.Is(err, catalog.ErrProductNotFound):
		return "product_not_found"
	case errors.Is(err, pricing.ErrNegativeFinalPrice):
		return "negative_price"
	default:
		return "error"
	}
}
