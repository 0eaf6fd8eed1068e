package security

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/noah-isme/toko-affiliate/internal/common"
)

// CSRF rejects cross-site state changes made with the storefront session cookie.
// Requests identified by header instead of cookie are not exposed and pass through.
type CSRF struct {
	CookieName     string
	AllowedOrigins []string
}

func (c CSRF) allowed(origin string) bool {
	for _, o := range c.AllowedOrigins {
		o = strings.TrimRight(strings.TrimSpace(o), "/")
		if o == "*" || strings.EqualFold(o, origin) {
			return true
		}
	}
	return false
}

// Middleware enforces that unsafe cookie-authenticated requests originate from an allowed origin.
func (c CSRF) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet, http.MethodHead, http.MethodOptions, http.MethodTrace:
			next.ServeHTTP(w, r)
			return
		}
		if c.CookieName == "" {
			next.ServeHTTP(w, r)
			return
		}
		if _, err := r.Cookie(c.CookieName); err != nil {
			next.ServeHTTP(w, r)
			return
		}
		origin := requestOrigin(r)
		if origin == "" {
			common.JSONError(w, http.StatusForbidden, common.CodeForbidden, "missing request origin", nil)
			return
		}
		if !c.allowed(origin) {
			common.JSONError(w, http.StatusForbidden, common.CodeForbidden, "cross-site request rejected", nil)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func requestOrigin(r *http.Request) string {
	if origin := strings.TrimSpace(r.Header.Get("Origin")); origin != "" && origin != "null" {
		return strings.TrimRight(origin, "/")
	}
	ref := strings.TrimSpace(r.Header.Get("Referer"))
	if ref == "" {
		return ""
	}
	u, err := url.Parse(ref)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return ""
	}
	return u.Scheme + "://" + u.Host
}
