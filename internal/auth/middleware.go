package auth

import (
	"crypto/subtle"
	"errors"
	"net/http"
	"strings"

	"github.com/noah-isme/toko-affiliate/internal/common"
)

// HooksSecretHeader carries the shared secret of order platform hooks.
const HooksSecretHeader = "X-Hooks-Secret"

// Middleware wires authentication context into HTTP handlers.
type Middleware struct {
	Verifier *Verifier
}

// RequireRole enforces a valid bearer token whose role is one of roles.
func (m Middleware) RequireRole(roles ...common.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if m.Verifier == nil {
				common.JSONError(w, http.StatusInternalServerError, common.CodeInternal, "auth not configured", nil)
				return
			}
			principal, err := m.Verifier.Verify(extractToken(r))
			if err != nil {
				var appErr *common.AppError
				if errors.As(err, &appErr) {
					common.JSONError(w, appErr.HTTPStatus, appErr.Code, appErr.Message, nil)
					return
				}
				common.JSONError(w, http.StatusUnauthorized, common.CodeUnauthorized, "missing or invalid token", nil)
				return
			}
			if !hasRole(principal.Role, roles) {
				common.JSONError(w, http.StatusForbidden, common.CodeForbidden, "insufficient role", nil)
				return
			}
			next.ServeHTTP(w, r.WithContext(common.WithPrincipal(r.Context(), principal)))
		})
	}
}

func hasRole(role common.Role, allowed []common.Role) bool {
	if len(allowed) == 0 {
		return true
	}
	for _, a := range allowed {
		if a == role {
			return true
		}
	}
	return false
}

func extractToken(r *http.Request) string {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if len(header) > 7 && strings.EqualFold(header[:7], "bearer ") {
		return strings.TrimSpace(header[7:])
	}
	return ""
}

// RequireHooksSecret rejects hook calls without the configured shared secret.
// An empty secret disables hook endpoints entirely.
func RequireHooksSecret(secret string) func(http.Handler) http.Handler {
	expected := []byte(strings.TrimSpace(secret))
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if len(expected) == 0 {
				common.JSONError(w, http.StatusServiceUnavailable, common.CodeForbidden, "hooks disabled", nil)
				return
			}
			got := []byte(strings.TrimSpace(r.Header.Get(HooksSecretHeader)))
			if subtle.ConstantTimeCompare(got, expected) != 1 {
				common.JSONError(w, http.StatusUnauthorized, common.CodeUnauthorized, "invalid hooks secret", nil)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
