package auth

import (
	"context"
	"sync"

	"github.com/cleanward/internal/logging"
	"github.com/cleanward/internal/types"
)

// SessionState is what the gate knows about a visitor
type SessionState struct {
	Authenticated bool       `json:"authenticated"`
	Role          types.Role `json:"role"`
	UserID        string     `json:"userId,omitempty"`
}

// Unauthenticated is the state of an anonymous visitor
func Unauthenticated() SessionState {
	return SessionState{Authenticated: false, Role: types.RoleNone}
}

// RevocationChecker reports whether a token id was signed out
type RevocationChecker interface {
	IsRevoked(ctx context.Context, tokenID string) (bool, error)
}

// RoleLookup resolves the stored role of a profile. found is false when the
// credential has no profile row.
type RoleLookup interface {
	LookupRole(ctx context.Context, userID string) (role types.Role, found bool, err error)
}

// Gate resolves session tokens into SessionStates and notifies observers
// when a user's state changes.
type Gate struct {
	tokens      *TokenIssuer
	revocations RevocationChecker
	roles       RoleLookup
	logger      *logging.Logger

	mu     sync.Mutex
	subs   map[string]map[uint64]func(SessionState)
	nextID uint64
}

// NewGate creates a gate. revocations may be nil, in which case tokens are
// never treated as revoked.
func NewGate(tokens *TokenIssuer, revocations RevocationChecker, roles RoleLookup, logger *logging.Logger) *Gate {
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}
	return &Gate{
		tokens:      tokens,
		revocations: revocations,
		roles:       roles,
		logger:      logger,
		subs:        make(map[string]map[uint64]func(SessionState)),
	}
}

// Evaluate resolves a token. It never fails: every error is logged and
// yields the unauthenticated state.
func (g *Gate) Evaluate(ctx context.Context, token string) SessionState {
	if token == "" {
		return Unauthenticated()
	}

	claims, err := g.tokens.ParseSession(token)
	if err != nil {
		g.logger.WithError(err).Debug("session token rejected")
		return Unauthenticated()
	}

	if g.revocations != nil {
		revoked, err := g.revocations.IsRevoked(ctx, claims.ID)
		if err != nil {
			g.logger.WithError(err).WithField("user_id", claims.UserID).Warn("revocation check failed")
			return Unauthenticated()
		}
		if revoked {
			return Unauthenticated()
		}
	}

	if g.roles == nil {
		g.logger.WithField("user_id", claims.UserID).Warn("no profile store, session not resolved")
		return Unauthenticated()
	}

	role, found, err := g.roles.LookupRole(ctx, claims.UserID)
	if err != nil {
		g.logger.WithError(err).WithField("user_id", claims.UserID).Warn("profile role lookup failed")
		return Unauthenticated()
	}
	if !found || !role.Valid() {
		role = types.RoleCitizen
	}

	return SessionState{Authenticated: true, Role: role, UserID: claims.UserID}
}

// TokenID returns the jti of a valid session token
func (g *Gate) TokenID(token string) (string, *Claims, error) {
	claims, err := g.tokens.ParseSession(token)
	if err != nil {
		return "", nil, err
	}
	return claims.ID, claims, nil
}

// Subscribe registers fn for state changes of userID. The returned function
// removes the registration and is safe to call more than once.
func (g *Gate) Subscribe(userID string, fn func(SessionState)) (unsubscribe func()) {
	g.mu.Lock()
	g.nextID++
	id := g.nextID
	if g.subs[userID] == nil {
		g.subs[userID] = make(map[uint64]func(SessionState))
	}
	g.subs[userID][id] = fn
	g.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			g.mu.Lock()
			defer g.mu.Unlock()
			delete(g.subs[userID], id)
			if len(g.subs[userID]) == 0 {
				delete(g.subs, userID)
			}
		})
	}
}

// Publish delivers state to every observer of userID
func (g *Gate) Publish(userID string, state SessionState) {
	g.mu.Lock()
	fns := make([]func(SessionState), 0, len(g.subs[userID]))
	for _, fn := range g.subs[userID] {
		fns = append(fns, fn)
	}
	g.mu.Unlock()

	for _, fn := range fns {
		fn(state)
	}
}

// SubscriberCount returns the number of observers of userID
func (g *Gate) SubscriberCount(userID string) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.subs[userID])
}
