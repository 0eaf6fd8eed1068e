package settlement_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/toko-affiliate/internal/common"
	"github.com/noah-isme/toko-affiliate/internal/settlement"
)

func newRouter(f *fixture) http.Handler {
	h := &settlement.Handler{Reporter: f.reporter, Earnings: &settlement.Earnings{Store: f.store}}
	r := chi.NewRouter()
	r.Post("/hooks/orders/{orderId}/completed", h.Completed)
	r.Get("/reseller/earnings", h.ResellerEarnings)
	r.Get("/admin/earnings", h.AdminEarnings)
	r.Get("/admin/earnings.csv", h.AdminEarningsCSV)
	return r
}

func TestCompletedHook(t *testing.T) {
	f := newFixture(t)
	f.attribute(t, "O1", "L1", resellerOne, productKopi, "Kopi", 1, "42")
	router := newRouter(f)

	body := `{"orderNumber":"1001","orderCreatedAt":"2024-06-01T09:30:00Z","lines":[{"lineId":"L1","productName":"Kopi","quantity":1}]}`
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/hooks/orders/O1/completed", strings.NewReader(body)))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Data struct {
			OrderNumber string `json:"orderNumber"`
			Total       string `json:"total"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, "1001", resp.Data.OrderNumber)
	require.Equal(t, "42", resp.Data.Total)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/hooks/orders/O1/completed", strings.NewReader("{")))
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestResellerEarningsRequiresPrincipal(t *testing.T) {
	f := newFixture(t)
	f.attribute(t, "O1", "L1", resellerOne, productKopi, "Kopi", 1, "42")
	settleAll(t, f, "O1")
	router := newRouter(f)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/reseller/earnings", nil))
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/reseller/earnings", nil)
	req = req.WithContext(common.WithPrincipal(context.Background(), common.Principal{ID: resellerOne, Role: common.RoleReseller}))
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"total":"42"`)
}

func TestAdminEarningsEndpoints(t *testing.T) {
	f := newFixture(t)
	f.attribute(t, "O1", "L1", resellerOne, productKopi, "Kopi", 1, "42")
	f.attribute(t, "O1", "L2", resellerTwo, productTeh, "Teh", 1, "6")
	settleAll(t, f, "O1")
	router := newRouter(f)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/admin/earnings?limit=1", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "2", rec.Header().Get("X-Total-Count"))
	require.Equal(t, "48", rec.Header().Get("X-Total-Commission"))

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/admin/earnings.csv", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "text/csv; charset=utf-8", rec.Header().Get("Content-Type"))
	require.Contains(t, rec.Body.String(), "Grand Total")
}
