package settlement_test

import (
	"bytes"
	"context"
	"encoding/csv"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	redis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/toko-affiliate/internal/cache"
	"github.com/noah-isme/toko-affiliate/internal/pricing"
	"github.com/noah-isme/toko-affiliate/internal/settlement"
)

func settleAll(t *testing.T, f *fixture, orderIDs ...string) {
	t.Helper()
	for _, id := range orderIDs {
		_, err := f.reporter.OnOrderCompleted(context.Background(), settlement.Order{ID: id})
		require.NoError(t, err)
	}
}

func TestEarningsOrdering(t *testing.T) {
	f := newFixture(t)
	older := orderTime.Add(-48 * time.Hour)
	f.attributeAt(t, older, "O1", "L1", resellerOne, productKopi, "Kopi", 1, "42")
	f.attributeAt(t, orderTime, "O2", "L2", resellerOne, productTeh, "Teh", 2, "9")
	f.attributeAt(t, orderTime, "O2", "L3", resellerOne, productKopi, "Kopi", 1, "42")
	f.attributeAt(t, orderTime, "O2", "L4", resellerTwo, productKopi, "Kopi", 1, "7")
	// Attributed but never completed.
	f.attributeAt(t, orderTime.Add(time.Hour), "O3", "L5", resellerOne, productKopi, "Kopi", 1, "42")
	settleAll(t, f, "O1", "O2")

	svc := &settlement.Earnings{Store: f.store, Calc: pricing.NewCalculator(pricing.DefaultMaxProfit, 2)}
	out, err := svc.ForReseller(context.Background(), resellerOne)
	require.NoError(t, err)
	require.Len(t, out.Rows, 3)
	require.Equal(t, []string{"Kopi", "Teh", "Kopi"}, []string{out.Rows[0].ProductName, out.Rows[1].ProductName, out.Rows[2].ProductName})
	require.Equal(t, "O2", out.Rows[0].OrderID)
	require.Equal(t, "O1", out.Rows[2].OrderID)
	require.True(t, out.Rows[1].Commission.Equal(dec("18")))
	require.True(t, out.Total.Equal(dec("102")))

	admin, err := svc.Admin(context.Background())
	require.NoError(t, err)
	require.Len(t, admin.Rows, 4)
	require.True(t, admin.Total.Equal(dec("109")))
	first := admin.Rows[0]
	require.Equal(t, "Kopi", first.ProductName)
	require.Equal(t, "Sari", first.ResellerName)
	require.True(t, first.CustomerPaidPerItem.Equal(dec("122")))
	require.True(t, first.NetProfitPerItem.Equal(dec("42")))
}

func TestEarningsCacheInvalidatedOnSettlement(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	jsonCache := cache.NewJSON(client, time.Minute)

	f := newFixture(t)
	f.reporter.Cache = jsonCache
	f.attribute(t, "O1", "L1", resellerOne, productKopi, "Kopi", 1, "42")
	settleAll(t, f, "O1")

	svc := &settlement.Earnings{Store: f.store, Cache: jsonCache}
	out, err := svc.ForReseller(context.Background(), resellerOne)
	require.NoError(t, err)
	require.True(t, out.Total.Equal(dec("42")))
	require.True(t, mr.Exists(cache.KeyResellerEarnings(resellerOne)))

	f.attribute(t, "O2", "L2", resellerOne, productTeh, "Teh", 1, "8")
	settleAll(t, f, "O2")
	require.False(t, mr.Exists(cache.KeyResellerEarnings(resellerOne)))

	out, err = svc.ForReseller(context.Background(), resellerOne)
	require.NoError(t, err)
	require.True(t, out.Total.Equal(dec("50")))
}

func TestWriteCSVIncludesGrandTotal(t *testing.T) {
	f := newFixture(t)
	f.attribute(t, "O1", "L1", resellerOne, productKopi, "Kopi, Bubuk", 2, "42")
	settleAll(t, f, "O1")

	svc := &settlement.Earnings{Store: f.store}
	report, err := svc.Admin(context.Background())
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, settlement.WriteCSV(&buf, report, 2))
	records, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 3)
	require.Equal(t, "Order ID", records[0][0])
	require.Equal(t, "Kopi, Bubuk", records[1][6])
	require.Equal(t, "2", records[1][7])
	require.Equal(t, "80.00", records[1][8])
	require.Equal(t, "84.00", records[1][12])
	require.Equal(t, "tok-L1", records[1][14])
	require.Equal(t, "Grand Total", records[2][0])
	require.Equal(t, "84.00", records[2][12])
}

func TestWriteCSVWholeUnitCurrency(t *testing.T) {
	f := newFixture(t)
	f.attribute(t, "O1", "L1", resellerOne, productKopi, "Kopi", 2, "42")
	settleAll(t, f, "O1")

	report, err := (&settlement.Earnings{Store: f.store}).Admin(context.Background())
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, settlement.WriteCSV(&buf, report, 0))
	records, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Equal(t, "80", records[1][8])
	require.Equal(t, "84", records[2][12])
}
