package priceoverride_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/toko-affiliate/internal/affiliate"
	"github.com/noah-isme/toko-affiliate/internal/catalog"
	"github.com/noah-isme/toko-affiliate/internal/priceoverride"
	"github.com/noah-isme/toko-affiliate/internal/session"
)

const (
	productA  = "11111111-1111-1111-1111-111111111111"
	productB  = "22222222-2222-2222-2222-222222222222"
	sessionID = "3f0d7a52-52c5-4c8e-9d7e-6f1c4b7d2e10"
)

func setup(t *testing.T) (http.Handler, http.Handler) {
	t.Helper()
	cat := catalog.NewMemoryStore(
		catalog.Product{ID: productA, Slug: "a", Purchasable: true,
			RegularPrice: decimal.NewNullDecimal(decimal.NewFromInt(100)), AdminDiscountPercent: decimal.NewNullDecimal(decimal.NewFromInt(20))},
		catalog.Product{ID: productB, Slug: "b", Purchasable: true, RegularPrice: decimal.NewNullDecimal(decimal.NewFromInt(40))},
	)
	links := affiliate.NewMemoryStore()
	_, err := links.Create(context.Background(), affiliate.Link{Token: "tokA", ResellerID: "r1", ProductID: productA,
		Profit: decimal.NewFromInt(50), ResellerDiscountPercent: decimal.NewFromInt(10)})
	require.NoError(t, err)

	mw := session.Middleware{Manager: &session.Manager{Store: session.NewMemoryStore(), Links: links, Catalog: cat}}
	h := &priceoverride.Handler{Gateway: priceoverride.Gateway{}, Catalog: cat}
	return mw.Handler(http.HandlerFunc(h.Prices)), mw.Handler(http.HandlerFunc(h.CartTotals))
}

func post(h http.Handler, target, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, target, strings.NewReader(body))
	req.Header.Set(session.HeaderSessionID, sessionID)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestPricesWithAndWithoutAffiliate(t *testing.T) {
	prices, _ := setup(t)

	rec := post(prices, "/api/v1/storefront/prices", `{"productIds":["`+productA+`"]}`)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"price":"100"`)
	require.Contains(t, rec.Body.String(), `"affiliated":false`)

	rec = post(prices, "/api/v1/storefront/prices?affiliate_token=tokA", `{"productIds":["`+productA+`","`+productB+`"]}`)
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	require.Contains(t, body, `"regularPrice":"122","salePrice":"122","price":"122","affiliated":true`)
	require.Contains(t, body, `"price":"40","affiliated":false`)
}

func TestCartTotalsUsesOverride(t *testing.T) {
	_, totals := setup(t)
	rec := post(totals, "/api/v1/storefront/cart/totals?affiliate_token=tokA",
		`{"lines":[{"productId":"`+productA+`","quantity":2},{"productId":"`+productB+`","quantity":1}],"shipping":"0","discount":"0"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"total":"284"`)

	rec = post(totals, "/api/v1/storefront/cart/totals", `{"lines":[{"productId":"`+productA+`","quantity":0}]}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}
