package obs_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/toko-affiliate/internal/common"
	"github.com/noah-isme/toko-affiliate/internal/obs"
)

func TestHTTPMetricsUseRoutePattern(t *testing.T) {
	registry := prometheus.NewRegistry()
	metrics := obs.NewHTTPMetrics("toko", []float64{1, 10}, registry)

	r := chi.NewRouter()
	r.Use(obs.HTTPObs{Metrics: metrics}.Middleware)
	r.Post("/hooks/orders/{orderId}/completed", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/hooks/orders/O-123/completed", nil))
	require.Equal(t, http.StatusNoContent, rr.Code)

	total := testutil.ToFloat64(metrics.ReqTotal.WithLabelValues(http.MethodPost, "/hooks/orders/{orderId}/completed", "204"))
	require.Equal(t, float64(1), total)
	require.Positive(t, testutil.CollectAndCount(metrics.ReqDur))
	require.Zero(t, testutil.ToFloat64(metrics.InFlight))

	again := obs.NewHTTPMetrics("toko", nil, registry)
	require.Same(t, metrics.ReqTotal, again.ReqTotal)
}

func TestRequestLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := obs.NewLogger(obs.LogConfig{Format: "json", Level: "debug", Service: "toko-affiliate", Out: &buf})

	r := chi.NewRouter()
	r.Use(obs.RequestLogger{Logger: logger, SkipPaths: []string{"/health/live"}}.Middleware)
	r.Get("/health/live", func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) })
	r.Get("/api/v1/storefront/session", func(w http.ResponseWriter, req *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/health/live", nil))
	require.Zero(t, buf.Len())

	req := httptest.NewRequest(http.MethodGet, "/api/v1/storefront/session?affiliate_token=ABCDEFGHIJKLMNOPQRSTUV", nil)
	req = req.WithContext(common.WithSessionID(req.Context(), "0123456789abcdef"))
	r.ServeHTTP(httptest.NewRecorder(), req)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	require.Equal(t, "warn", entry["level"])
	require.Equal(t, "toko-affiliate", entry["service"])
	require.Equal(t, "/api/v1/storefront/session", entry["route"])
	require.Equal(t, float64(404), entry["status"])
	require.Equal(t, "ABCDEFGH", entry["token_prefix"])
	require.Equal(t, "01234567", entry["session"])
	require.NotContains(t, buf.String(), "ABCDEFGHIJKLMNOPQRSTUV")
}
