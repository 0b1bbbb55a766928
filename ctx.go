package accounts

import (
	"context"

	"github.com/goliatone/go-router"
)

var sessionCtxKey = &contextKey{"session"}

type contextKey struct {
	name string
}

// WithSessionContext sets the Session in the given context
func WithSessionContext(r context.Context, session Session) context.Context {
	return context.WithValue(r, sessionCtxKey, session)
}

// SessionFromContext finds the session from the context.
func SessionFromContext(ctx context.Context) (Session, bool) {
	raw, ok := ctx.Value(sessionCtxKey).(Session)
	return raw, ok
}

// HasRole checks the caller's role directly from the standard context
func HasRole(ctx context.Context, role UserRole) bool {
	session, ok := SessionFromContext(ctx)
	if !ok {
		return false
	}

	ra, ok := session.(interface{ Role() UserRole })
	if !ok {
		return false
	}

	return ra.Role() == role
}

// GetRouterSession extracts the Session stored by the route guard from the
// router context.
func GetRouterSession(ctx router.Context, key string) (Session, bool) {
	if key == "" {
		key = "session"
	}
	raw := ctx.Locals(key)
	if raw == nil {
		return nil, false
	}
	session, ok := raw.(Session)
	return session, ok
}
