package shared

import "context"

type sessionContextKey struct{}

// ContextWithSession stores the session in context.
func ContextWithSession(ctx context.Context, sess *Session) context.Context {
	return context.WithValue(ctx, sessionContextKey{}, sess)
}

// SessionFromContext extracts the session from context.
func SessionFromContext(ctx context.Context) *Session {
	sess, _ := ctx.Value(sessionContextKey{}).(*Session)
	return sess
}

// Identity describes the authenticated caller resolved from the session.
type Identity struct {
	UserID int64
	Email  string
	Role   string
}

// IdentityFromContext resolves the caller identity from the request session.
// The second return is false when the request is unauthenticated.
func IdentityFromContext(ctx context.Context) (Identity, bool) {
	sess := SessionFromContext(ctx)
	if sess == nil {
		return Identity{}, false
	}
	id := sess.UserID()
	if id == 0 {
		return Identity{}, false
	}
	return Identity{UserID: id, Email: sess.Email(), Role: sess.Role()}, true
}
