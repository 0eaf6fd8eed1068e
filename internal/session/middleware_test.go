package session_test

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/toko-affiliate/internal/session"
)

func TestMiddlewareIssuesCookieAndAppliesToken(t *testing.T) {
	f := newFixture(t)
	mw := session.Middleware{Manager: f.manager, CookieName: "toko_session", TTL: time.Hour}

	var seen *session.PricingContext
	h := mw.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = session.FromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/storefront/session?affiliate_token=tokA", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusNoContent, rec.Code)
	require.NotNil(t, seen)
	_, ok := seen.ActiveFor(productA)
	require.True(t, ok)
	require.Empty(t, rec.Header().Get(session.NoticeHeader))

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	require.Equal(t, "toko_session", cookies[0].Name)
	require.True(t, cookies[0].HttpOnly)

	// second request with the same cookie keeps the resolution
	req = httptest.NewRequest(http.MethodGet, "/api/v1/storefront/session", nil)
	req.AddCookie(cookies[0])
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Empty(t, rec.Result().Cookies())
	_, ok = seen.ActiveFor(productA)
	require.True(t, ok)
	require.Equal(t, cookies[0].Value, seen.ID())
}

func TestMiddlewareInvalidTokenSetsNotice(t *testing.T) {
	f := newFixture(t)
	mw := session.Middleware{Manager: f.manager}
	h := mw.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	req := httptest.NewRequest(http.MethodGet, "/?affiliate_token=missing", nil)
	req.Header.Set(session.HeaderSessionID, sessionID)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Header().Get(session.NoticeHeader), "invalid or has expired")
}

func TestSessionHandlers(t *testing.T) {
	f := newFixture(t)
	mw := session.Middleware{Manager: f.manager}
	var h session.Handler

	serve := func(method, target string, fn http.HandlerFunc, body string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set(session.HeaderSessionID, sessionID)
		rec := httptest.NewRecorder()
		mw.Handler(fn).ServeHTTP(rec, req)
		return rec
	}

	rec := serve(http.MethodGet, "/api/v1/storefront/session?affiliate_token=tokA", h.Get, "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"token":"tokA"`)

	rec = serve(http.MethodPost, "/api/v1/storefront/cart/line-removed", h.LineRemoved, `{"productId":"`+productA+`","remainingQuantity":0}`)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"affiliate":null`)

	serve(http.MethodGet, "/?affiliate_token=tokA", h.Get, "")
	rec = serve(http.MethodDelete, "/api/v1/storefront/session/affiliate", h.ClearAffiliate, "")
	require.Equal(t, http.StatusNoContent, rec.Code)
	rec = serve(http.MethodGet, "/api/v1/storefront/session", h.Get, "")
	require.Contains(t, rec.Body.String(), `"affiliate":null`)
}
