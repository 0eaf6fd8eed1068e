package attribution_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/toko-affiliate/internal/affiliate"
	"github.com/noah-isme/toko-affiliate/internal/attribution"
	"github.com/noah-isme/toko-affiliate/internal/catalog"
	"github.com/noah-isme/toko-affiliate/internal/pricing"
	"github.com/noah-isme/toko-affiliate/internal/session"
)

const (
	productA   = "11111111-1111-1111-1111-111111111111"
	productB   = "22222222-2222-2222-2222-222222222222"
	resellerID = "aaaaaaaa-aaaa-aaaa-aaaa-aaaaaaaaaaaa"
)

var orderTime = time.Date(2024, 6, 1, 9, 30, 0, 0, time.UTC)

func dec(v string) decimal.Decimal { return decimal.RequireFromString(v) }

type stubSource struct {
	active session.Active
	ok     bool
}

func (s stubSource) Active() (session.Active, bool) { return s.active, s.ok }

func activeFor(productID string) stubSource {
	return stubSource{ok: true, active: session.Active{
		Token:      "tokA",
		ProductID:  productID,
		ResellerID: resellerID,
		Resolution: pricing.Resolution{
			DiscountedBasePrice:       dec("80"),
			ProfitOnLink:              dec("50"),
			ResellerDiscountPercent:   dec("10"),
			ResellerDiscountAmount:    dec("8"),
			AdjustedProfitForReseller: dec("42"),
			CustomerFinalPrice:        dec("122"),
		},
	}}
}

func TestOnOrderLineCreatedSnapshots(t *testing.T) {
	repo := attribution.NewMemoryRepository()
	a := &attribution.Attributor{Repo: repo}
	rec, ok := a.OnOrderLineCreated(context.Background(), activeFor(productA), attribution.OrderLine{
		ID: "L1", OrderID: "O1", ProductID: productA, ProductName: "Kopi", Quantity: 2, OrderCreatedAt: orderTime,
	})
	require.True(t, ok)
	require.Equal(t, resellerID, rec.ResellerID)
	require.Equal(t, "tokA", rec.Token)
	require.True(t, rec.Commission().Equal(dec("84")))

	stored, err := repo.ListByOrder(context.Background(), "O1")
	require.NoError(t, err)
	require.Len(t, stored, 1)
	require.True(t, stored[0].DiscountedBasePrice.Equal(dec("80")))
	require.True(t, stored[0].CustomerFinalPrice.Equal(dec("122")))
}

func TestOnOrderLineCreatedSkips(t *testing.T) {
	repo := attribution.NewMemoryRepository()
	a := &attribution.Attributor{Repo: repo}
	ctx := context.Background()

	_, ok := a.OnOrderLineCreated(ctx, stubSource{}, attribution.OrderLine{ID: "L1", OrderID: "O1", ProductID: productA, Quantity: 1})
	require.False(t, ok)

	_, ok = a.OnOrderLineCreated(ctx, activeFor(productA), attribution.OrderLine{ID: "L2", OrderID: "O1", ProductID: productB, Quantity: 1})
	require.False(t, ok)

	_, ok = a.OnOrderLineCreated(ctx, nil, attribution.OrderLine{ID: "L3", OrderID: "O1", ProductID: productA, Quantity: 1})
	require.False(t, ok)

	incomplete := activeFor(productA)
	incomplete.active.ResellerID = ""
	_, ok = a.OnOrderLineCreated(ctx, incomplete, attribution.OrderLine{ID: "L4", OrderID: "O1", ProductID: productA, Quantity: 1})
	require.False(t, ok)

	require.Empty(t, repo.All())
}

func TestOnOrderLineCreatedDoesNotOverwrite(t *testing.T) {
	repo := attribution.NewMemoryRepository()
	a := &attribution.Attributor{Repo: repo}
	ctx := context.Background()
	line := attribution.OrderLine{ID: "L1", OrderID: "O1", ProductID: productA, Quantity: 1, OrderCreatedAt: orderTime}
	_, ok := a.OnOrderLineCreated(ctx, activeFor(productA), line)
	require.True(t, ok)

	second := activeFor(productA)
	second.active.Token = "other"
	_, ok = a.OnOrderLineCreated(ctx, second, line)
	require.False(t, ok)
	stored, _ := repo.ListByOrder(ctx, "O1")
	require.Equal(t, "tokA", stored[0].Token)
}

func TestValidateNamesMissingField(t *testing.T) {
	err := attribution.Attribution{LineID: "L1", OrderID: "O1", ProductID: productA, Quantity: 1, ResellerID: resellerID, OrderCreatedAt: orderTime}.Validate()
	require.True(t, errors.Is(err, attribution.ErrIncompleteAttribution))
	require.Contains(t, err.Error(), "token")
}

type failingRepo struct{ attribution.MemoryRepository }

func (f *failingRepo) Insert(context.Context, attribution.Attribution) (attribution.Attribution, error) {
	return attribution.Attribution{}, errors.New("db down")
}

func TestPersistenceErrorDoesNotPanic(t *testing.T) {
	a := &attribution.Attributor{Repo: &failingRepo{}}
	_, ok := a.OnOrderLineCreated(context.Background(), activeFor(productA),
		attribution.OrderLine{ID: "L1", OrderID: "O1", ProductID: productA, Quantity: 1, OrderCreatedAt: orderTime})
	require.False(t, ok)
}

func TestAttributionSurvivesAdminDiscountChange(t *testing.T) {
	ctx := context.Background()
	cat := catalog.NewMemoryStore(catalog.Product{ID: productA, Name: "Kopi", Slug: "kopi", Purchasable: true,
		RegularPrice: decimal.NewNullDecimal(dec("100")), AdminDiscountPercent: decimal.NewNullDecimal(dec("20"))})
	links := affiliate.NewMemoryStore()
	_, err := links.Create(ctx, affiliate.Link{Token: "tokA", ResellerID: resellerID, ProductID: productA, Profit: dec("50"), ResellerDiscountPercent: dec("10")})
	require.NoError(t, err)

	mgr := &session.Manager{Store: session.NewMemoryStore(), Links: links, Catalog: cat}
	pc, err := mgr.Open(ctx, "s1")
	require.NoError(t, err)
	_, err = pc.Resolve(ctx, "tokA")
	require.NoError(t, err)

	repo := attribution.NewMemoryRepository()
	a := &attribution.Attributor{Repo: repo}
	_, ok := a.OnOrderLineCreated(ctx, pc, attribution.OrderLine{ID: "L1", OrderID: "O1", ProductID: productA, Quantity: 1, OrderCreatedAt: orderTime})
	require.True(t, ok)
	a.OnOrderSubmitted(ctx, pc)
	_, active := pc.Active()
	require.False(t, active)

	_, err = cat.SetAdminDiscount(ctx, productA, decimal.NewNullDecimal(dec("50")))
	require.NoError(t, err)
	_, err = links.Create(ctx, affiliate.Link{Token: "tokA2", ResellerID: resellerID, ProductID: productA, Profit: dec("10"), ResellerDiscountPercent: dec("0")})
	require.NoError(t, err)

	stored, err := repo.ListByOrder(ctx, "O1")
	require.NoError(t, err)
	require.Len(t, stored, 1)
	require.True(t, stored[0].AdjustedProfit.Equal(dec("42")))
	require.True(t, stored[0].DiscountedBasePrice.Equal(dec("80")))
	require.True(t, stored[0].CustomerFinalPrice.Equal(dec("122")))
}
