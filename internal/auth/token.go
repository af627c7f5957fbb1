// Package auth implements password hashing, signed session tokens and the
// session gate that resolves a token into an authenticated role.
package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	audienceSession      = "session"
	audienceConfirmation = "email-confirmation"
)

var (
	// ErrInvalidToken is returned for malformed, forged or mis-scoped tokens
	ErrInvalidToken = errors.New("invalid token")
	// ErrTokenExpired is returned for tokens past their expiry
	ErrTokenExpired = errors.New("token expired")
)

// Claims are the JWT claims carried by CleanWard tokens
type Claims struct {
	jwt.RegisteredClaims
	UserID string `json:"uid"`
}

// IssuedToken is a signed token with its id and expiry
type IssuedToken struct {
	Token     string    `json:"token"`
	ID        string    `json:"-"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// TokenIssuer signs and verifies HS256 tokens
type TokenIssuer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewTokenIssuer creates an issuer whose session tokens live for ttl
func NewTokenIssuer(secret []byte, ttl time.Duration) *TokenIssuer {
	return &TokenIssuer{
		secret: secret,
		ttl:    ttl,
		now:    time.Now,
	}
}

// IssueSession signs a session token for userID
func (t *TokenIssuer) IssueSession(userID string) (IssuedToken, error) {
	return t.issue(userID, audienceSession, t.ttl)
}

// IssueConfirmation signs an email confirmation token valid for ttl
func (t *TokenIssuer) IssueConfirmation(userID string, ttl time.Duration) (IssuedToken, error) {
	return t.issue(userID, audienceConfirmation, ttl)
}

// ParseSession verifies a session token
func (t *TokenIssuer) ParseSession(token string) (*Claims, error) {
	return t.parse(token, audienceSession)
}

// ParseConfirmation verifies an email confirmation token
func (t *TokenIssuer) ParseConfirmation(token string) (*Claims, error) {
	return t.parse(token, audienceConfirmation)
}

func (t *TokenIssuer) issue(userID, audience string, ttl time.Duration) (IssuedToken, error) {
	now := t.now()
	id := uuid.NewString()
	expires := now.Add(ttl)

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        id,
			Subject:   userID,
			Audience:  jwt.ClaimStrings{audience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expires),
		},
		UserID: userID,
	})

	signed, err := token.SignedString(t.secret)
	if err != nil {
		return IssuedToken{}, err
	}

	return IssuedToken{Token: signed, ID: id, ExpiresAt: expires}, nil
}

func (t *TokenIssuer) parse(tokenString, audience string) (*Claims, error) {
	claims := &Claims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(tok *jwt.Token) (interface{}, error) {
		return t.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithAudience(audience),
		jwt.WithTimeFunc(t.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, ErrInvalidToken
	}

	if !token.Valid || claims.UserID == "" {
		return nil, ErrInvalidToken
	}

	return claims, nil
}
