package ratelimit

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"github.com/ulule/limiter/v3/drivers/store/memory"

	"github.com/noah-isme/toko-affiliate/internal/common"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) })
}

func TestHandlerMiddlewareEnforcesLimitPerPrincipal(t *testing.T) {
	client, _ := newRedis(t)
	handler := Handler{
		Limiter: Limiter{Client: client, Prefix: "ratelimit:"},
		Config:  Config{Key: PrincipalKey("links"), Window: time.Minute, Max: 1},
	}
	counted := handler.Middleware(okHandler())

	asReseller := func(id string) *http.Request {
		req := httptest.NewRequest(http.MethodPost, "/links", nil)
		return req.WithContext(common.WithPrincipal(context.Background(), common.Principal{ID: id, Role: common.RoleReseller}))
	}

	rr := httptest.NewRecorder()
	counted.ServeHTTP(rr, asReseller("r1"))
	require.Equal(t, http.StatusOK, rr.Code)

	rr = httptest.NewRecorder()
	counted.ServeHTTP(rr, asReseller("r1"))
	require.Equal(t, http.StatusTooManyRequests, rr.Code)
	require.Equal(t, "1", rr.Header().Get("X-RateLimit-Limit"))
	require.NotEmpty(t, rr.Header().Get("Retry-After"))
	require.Contains(t, rr.Body.String(), common.CodeRateLimited)

	rr = httptest.NewRecorder()
	counted.ServeHTTP(rr, asReseller("r2"))
	require.Equal(t, http.StatusOK, rr.Code)
}

func TestPrincipalKeyFallsBackToIP(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Forwarded-For", "203.0.113.9, 10.0.0.1")
	require.Equal(t, "links:ip:203.0.113.9", PrincipalKey("links")(req))
}

func TestHandlerMiddlewareOnError(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:0"})
	t.Cleanup(func() { _ = client.Close() })
	called := false
	handler := Handler{
		Limiter: Limiter{Client: client, Prefix: "ratelimit:"},
		Config:  Config{Key: func(*http.Request) string { return "err" }, Window: time.Second, Max: 1},
		OnError: func(error) { called = true },
	}

	rr := httptest.NewRecorder()
	handler.Middleware(okHandler()).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/test", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	require.True(t, called)
}

func TestIPMiddleware(t *testing.T) {
	mw, err := NewIPMiddleware(memory.NewStore(), "2-M")
	require.NoError(t, err)
	handler := mw(okHandler())

	send := func(ip string) int {
		req := httptest.NewRequest(http.MethodGet, "/storefront", nil)
		req.Header.Set("X-Real-IP", ip)
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)
		return rr.Code
	}
	require.Equal(t, http.StatusOK, send("198.51.100.1"))
	require.Equal(t, http.StatusOK, send("198.51.100.1"))
	require.Equal(t, http.StatusTooManyRequests, send("198.51.100.1"))
	require.Equal(t, http.StatusOK, send("198.51.100.2"))

	_, err = NewIPMiddleware(memory.NewStore(), "nonsense")
	require.Error(t, err)
}
