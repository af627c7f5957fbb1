package api

import (
	"context"
	"net/http"
	"strings"

	"github.com/cleanward/internal/auth"
	"github.com/cleanward/internal/types"
)

// SessionEvaluator resolves a bearer token into a session state
type SessionEvaluator interface {
	Evaluate(ctx context.Context, token string) auth.SessionState
}

// SessionMiddleware attaches the caller's session to the request context.
// It never rejects a request; see requireAuth and requireRole.
func SessionMiddleware(gate SessionEvaluator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			state := auth.Unauthenticated()
			if token := bearerToken(r); token != "" && gate != nil {
				state = gate.Evaluate(r.Context(), token)
			}
			next.ServeHTTP(w, r.WithContext(auth.WithSession(r.Context(), state)))
		})
	}
}

// requireAuth rejects anonymous callers with 401
func requireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !auth.SessionFromContext(r.Context()).Authenticated {
			respondError(w, http.StatusUnauthorized, ErrCodeUnauthorized, "Please sign in to continue", nil)
			return
		}
		next(w, r)
	}
}

// requireRole rejects anonymous callers with 401 and other roles with 403
func requireRole(role types.Role, next http.HandlerFunc) http.HandlerFunc {
	return requireAuth(func(w http.ResponseWriter, r *http.Request) {
		if auth.SessionFromContext(r.Context()).Role != role {
			respondError(w, http.StatusForbidden, ErrCodeForbidden, "You do not have access to this page", nil)
			return
		}
		next(w, r)
	})
}

func bearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if len(h) > 7 && strings.EqualFold(h[:7], "bearer ") {
		return strings.TrimSpace(h[7:])
	}
	return ""
}

func currentSession(r *http.Request) auth.SessionState {
	return auth.SessionFromContext(r.Context())
}
