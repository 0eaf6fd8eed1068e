package session

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/noah-isme/toko-affiliate/internal/affiliate"
	"github.com/noah-isme/toko-affiliate/internal/catalog"
	"github.com/noah-isme/toko-affiliate/internal/common"
)

// NoticeHeader carries a dismissible message when a token could not be applied.
const NoticeHeader = "X-Affiliate-Notice"

// HeaderSessionID lets API clients pass the session without cookies.
const HeaderSessionID = "X-Session-ID"

type ctxKey struct{}

// WithContext stores the pricing context on ctx.
func WithContext(ctx context.Context, pc *PricingContext) context.Context {
	return context.WithValue(ctx, ctxKey{}, pc)
}

// FromContext returns the request's pricing context.
func FromContext(ctx context.Context) (*PricingContext, bool) {
	pc, ok := ctx.Value(ctxKey{}).(*PricingContext)
	return pc, ok && pc != nil
}

// Middleware binds a visitor session and its pricing context to each storefront request.
type Middleware struct {
	Manager    *Manager
	CookieName string
	TTL        time.Duration
	Domain     string
	Secure     bool
	SameSite   http.SameSite
	Logger     zerolog.Logger
}

func (mw Middleware) cookieName() string {
	if mw.CookieName == "" {
		return "toko_session"
	}
	return mw.CookieName
}

func (mw Middleware) sessionID(w http.ResponseWriter, r *http.Request) string {
	if c, err := r.Cookie(mw.cookieName()); err == nil {
		if _, err := uuid.Parse(c.Value); err == nil {
			return c.Value
		}
	}
	if h := strings.TrimSpace(r.Header.Get(HeaderSessionID)); h != "" {
		if _, err := uuid.Parse(h); err == nil {
			return h
		}
	}
	id := uuid.NewString()
	http.SetCookie(w, &http.Cookie{
		Name:     mw.cookieName(),
		Value:    id,
		Path:     "/",
		Domain:   mw.Domain,
		MaxAge:   int(mw.TTL.Seconds()),
		HttpOnly: true,
		Secure:   mw.Secure,
		SameSite: mw.SameSite,
	})
	w.Header().Set(HeaderSessionID, id)
	return id
}

// Handler implements the middleware.
func (mw Middleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if mw.Manager == nil {
			common.JSONError(w, http.StatusInternalServerError, common.CodeInternal, "session manager not configured", nil)
			return
		}
		ctx := r.Context()
		id := mw.sessionID(w, r)
		pc, err := mw.Manager.Open(ctx, id)
		if err != nil {
			mw.Logger.Error().Err(err).Msg("open storefront session")
			if pc == nil {
				common.JSONError(w, http.StatusServiceUnavailable, common.CodeInternal, "session unavailable", nil)
				return
			}
		}
		if token := strings.TrimSpace(r.URL.Query().Get(catalog.TokenParam)); token != "" {
			if _, err := pc.Resolve(ctx, token); err != nil {
				w.Header().Set(NoticeHeader, Notice(err))
			}
		}
		ctx = common.WithSessionID(ctx, id)
		ctx = WithContext(ctx, pc)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// Notice maps a resolution failure to a visitor facing message.
func Notice(err error) string {
	switch {
	case errors.Is(err, ErrInvalidToken):
		return "This affiliate link is invalid or has expired. Standard pricing applies."
	case errors.Is(err, affiliate.ErrProductNotPurchasable):
		return "This product is not currently available through the affiliate link. Standard pricing applies."
	case errors.Is(err, ErrStaleLink):
		return "This affiliate offer is no longer valid. Standard pricing applies."
	default:
		return "The affiliate link could not be applied. Standard pricing applies."
	}
}
