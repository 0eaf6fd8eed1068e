package common

import "context"

type ctxKey string

const (
	principalKey ctxKey = "auth/principal"
	sessionKey   ctxKey = "storefront/session-id"
)

// Role names the capability a caller was authenticated with.
type Role string

const (
	RoleReseller Role = "reseller"
	RoleAdmin    Role = "admin"
)

// Principal is the authenticated caller.
type Principal struct {
	ID   string
	Role Role
}

// WithPrincipal stores the authenticated caller on the provided context.
func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalKey, p)
}

// PrincipalFrom extracts the authenticated caller from the context if present.
func PrincipalFrom(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalKey).(Principal)
	if !ok || p.ID == "" {
		return Principal{}, false
	}
	return p, true
}

// WithSessionID stores the storefront session identifier.
func WithSessionID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, sessionKey, id)
}

// SessionID returns the storefront session identifier bound to ctx.
func SessionID(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(sessionKey).(string)
	return id, ok && id != ""
}
