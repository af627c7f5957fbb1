package auth

import "context"

type sessionKey struct{}

// WithSession attaches a session state to ctx
func WithSession(ctx context.Context, s SessionState) context.Context {
	return context.WithValue(ctx, sessionKey{}, s)
}

// SessionFromContext returns the session attached to ctx, or the
// unauthenticated state
func SessionFromContext(ctx context.Context) SessionState {
	if s, ok := ctx.Value(sessionKey{}).(SessionState); ok {
		return s
	}
	return Unauthenticated()
}
