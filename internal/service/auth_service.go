package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/cleanward/internal/auth"
	apperrors "github.com/cleanward/internal/errors"
	"github.com/cleanward/internal/logging"
	"github.com/cleanward/internal/models"
	"github.com/cleanward/internal/ratelimit"
	"github.com/cleanward/internal/storage"
	"github.com/cleanward/internal/types"
)

// Repository interfaces for dependency injection

// CredentialStore persists credentials and runs the sign-up transaction
type CredentialStore interface {
	GetByEmail(ctx context.Context, email string) (*models.Credential, error)
	Confirm(ctx context.Context, userID string) error
	Register(ctx context.Context, cred *models.Credential, profile *models.UserProfile, useFunction bool) error
}

// ProfileStore reads and updates profiles
type ProfileStore interface {
	GetByID(ctx context.Context, id string) (*models.UserProfile, error)
	UpdateWard(ctx context.Context, userID string, ward int) (*models.UserProfile, error)
	ListTopCitizens(ctx context.Context, limit int) ([]models.LeaderboardEntry, error)
	CitizenRank(ctx context.Context, userID string) (*models.LeaderboardEntry, error)
	CountActiveCitizens(ctx context.Context) (int, error)
}

// SessionRevoker records signed-out token ids
type SessionRevoker interface {
	Revoke(ctx context.Context, tokenID string, until time.Time) error
}

// SignupLimiter throttles sign-up attempts
type SignupLimiter interface {
	AllowAll(ctx context.Context, subjects ...string) (ratelimit.Decision, error)
}

// AuthOptions are the sign-in and sign-up policies
type AuthOptions struct {
	AllowAdminSignup         bool
	RequireEmailConfirmation bool
	BcryptCost               int
	ConfirmationTTL          time.Duration
	// UseProfileFunction is the result of the startup probe for create_user_profile
	UseProfileFunction bool
}

// AuthService handles sign-in, sign-up, email confirmation and sign-out
type AuthService struct {
	creds    CredentialStore
	profiles ProfileStore
	tokens   *auth.TokenIssuer
	gate     *auth.Gate
	revoker  SessionRevoker
	limiter  SignupLimiter
	opts     AuthOptions
	logger   *logging.Logger
}

// NewAuthService creates a new auth service. limiter may be nil.
func NewAuthService(
	creds CredentialStore,
	profiles ProfileStore,
	tokens *auth.TokenIssuer,
	gate *auth.Gate,
	revoker SessionRevoker,
	limiter SignupLimiter,
	opts AuthOptions,
) *AuthService {
	if opts.ConfirmationTTL <= 0 {
		opts.ConfirmationTTL = 48 * time.Hour
	}
	return &AuthService{
		creds:    creds,
		profiles: profiles,
		tokens:   tokens,
		gate:     gate,
		revoker:  revoker,
		limiter:  limiter,
		opts:     opts,
		logger:   logging.WithField("component", "auth_service"),
	}
}

// SignInInput represents sign-in credentials
type SignInInput struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	// Role is the tab the user signed in from. It never affects authorization.
	Role string `json:"role,omitempty"`
}

// SessionResult is returned by a successful sign-in or sign-up
type SessionResult struct {
	Token     string              `json:"token"`
	ExpiresAt time.Time           `json:"expiresAt"`
	Role      types.Role          `json:"role"`
	Dashboard string              `json:"dashboard"`
	Profile   *models.UserProfile `json:"profile,omitempty"`
	// ConfirmationToken is delivered out of band, never in the response body
	ConfirmationToken string `json:"-"`
}

// SignIn verifies credentials and issues a session. Routing uses the stored
// profile role; a credential without a profile row is a citizen.
func (s *AuthService) SignIn(ctx context.Context, in SignInInput) (*SessionResult, error) {
	email := storage.NormalizeEmail(in.Email)
	if email == "" || in.Password == "" {
		return nil, types.NewServiceError(types.CodeMissingFields, "Please enter your email and password")
	}

	cred, err := s.creds.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, invalidCredentials()
		}
		return nil, backendFailure(s.logger, "sign_in", err, types.CodeUnknown, msgUnexpected)
	}
	if !auth.CheckPassword(cred.PasswordHash, in.Password) {
		return nil, invalidCredentials()
	}
	if s.opts.RequireEmailConfirmation && !cred.Confirmed() {
		return nil, types.NewServiceError(types.CodeEmailNotConfirmed, "Please confirm your email address before signing in")
	}

	profile, err := s.profiles.GetByID(ctx, cred.UserID)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		s.logger.WithField("user_id", cred.UserID).Warn("credential has no profile row")
	case err != nil:
		return nil, backendFailure(s.logger, "sign_in_profile", err, types.CodeUnknown, msgUnexpected)
	}

	role := storedRole(profile)
	if hint := types.Role(strings.ToLower(in.Role)); hint != "" && hint != role {
		s.logger.WithFields(map[string]interface{}{
			"user_id": cred.UserID,
			"hint":    string(hint),
			"role":    string(role),
		}).Info("sign-in role hint ignored")
	}

	return s.openSession(cred.UserID, role, profile)
}

// SignUp validates the form, throttles, creates the credential and profile
// and signs the new user in
func (s *AuthService) SignUp(ctx context.Context, form SignUpForm, clientIP string) (*SessionResult, error) {
	valid, verr := ValidateSignUp(form)
	if verr != nil {
		return nil, verr
	}

	if s.limiter != nil {
		decision, err := s.limiter.AllowAll(ctx, "email:"+valid.Email, "ip:"+clientIP)
		if err != nil {
			s.logger.WithError(err).Warn("sign-up limiter unavailable, allowing attempt")
		} else if !decision.Allowed {
			se := types.NewServiceError(types.CodeRateLimited, "Too many sign-up attempts. Please try again later.")
			se.Details = map[string]interface{}{"retryAfter": int(decision.RetryAfter.Seconds())}
			return nil, se
		}
	}

	hash, err := auth.HashPassword(valid.Password, s.opts.BcryptCost)
	if err != nil {
		s.logger.WithError(err).Error("failed to hash password")
		return nil, types.NewServiceError(types.CodeSignupFailed, "Sign up failed. Please try again.")
	}

	role := valid.RequestedRole
	if role == types.RoleAdmin && !s.opts.AllowAdminSignup {
		s.logger.WithField("email", valid.Email).Warn("admin role requested at sign-up, stored as citizen")
		role = types.RoleCitizen
	}

	cred := &models.Credential{Email: valid.Email, PasswordHash: hash}
	profile := &models.UserProfile{
		FirstName:  valid.FirstName,
		LastName:   valid.LastName,
		Phone:      valid.Phone,
		Age:        valid.Age,
		Sex:        valid.Sex,
		Gender:     valid.Gender,
		WardNumber: valid.WardNumber,
		Role:       role,
	}

	if err := s.creds.Register(ctx, cred, profile, s.opts.UseProfileFunction); err != nil {
		return nil, s.signupFailure(err)
	}

	s.logger.WithFields(map[string]interface{}{
		"user_id": cred.UserID,
		"ward":    profile.WardNumber,
		"role":    string(role),
	}).Info("citizen registered")

	result, err := s.openSession(cred.UserID, role, profile)
	if err != nil {
		return nil, err
	}
	// new accounts always land on the citizen dashboard
	result.Dashboard = types.RoleCitizen.DashboardPath()

	confirmation, err := s.tokens.IssueConfirmation(cred.UserID, s.opts.ConfirmationTTL)
	if err != nil {
		s.logger.WithError(err).Warn("failed to issue confirmation token")
	} else {
		result.ConfirmationToken = confirmation.Token
		s.logger.WithFields(map[string]interface{}{
			"user_id": cred.UserID,
			"expires": confirmation.ExpiresAt,
		}).Debug("confirmation token issued")
	}
	return result, nil
}

func (s *AuthService) signupFailure(err error) *types.ServiceError {
	if apperrors.IsCategory(err, apperrors.CategoryConflict) {
		return types.NewServiceError(types.CodeDuplicateEmail, "An account with this email already exists")
	}
	return backendFailure(s.logger, "sign_up", err, types.CodeSignupFailed, "Sign up failed. Please try again.")
}

// Confirm marks the credential behind a confirmation token as confirmed
func (s *AuthService) Confirm(ctx context.Context, token string) error {
	claims, err := s.tokens.ParseConfirmation(token)
	if err != nil {
		return types.NewServiceError(types.CodeInvalidToken, "Invalid or expired confirmation link")
	}
	if err := s.creds.Confirm(ctx, claims.UserID); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return types.NewServiceError(types.CodeInvalidToken, "Invalid or expired confirmation link")
		}
		return backendFailure(s.logger, "confirm", err, types.CodeUnknown, msgUnexpected)
	}
	return nil
}

// SignOut revokes a session token until it would have expired and tells
// observers of the user. Signing out an invalid token is a no-op.
func (s *AuthService) SignOut(ctx context.Context, token string) error {
	jti, claims, err := s.gate.TokenID(token)
	if err != nil {
		return nil
	}
	if s.revoker != nil && claims.ExpiresAt != nil {
		if err := s.revoker.Revoke(ctx, jti, claims.ExpiresAt.Time); err != nil {
			return backendFailure(s.logger, "sign_out", err, types.CodeUnknown, msgUnexpected)
		}
	}
	s.gate.Publish(claims.UserID, auth.Unauthenticated())
	return nil
}

func (s *AuthService) openSession(userID string, role types.Role, profile *models.UserProfile) (*SessionResult, error) {
	issued, err := s.tokens.IssueSession(userID)
	if err != nil {
		s.logger.WithError(err).Error("failed to issue session token")
		return nil, types.NewServiceError(types.CodeUnknown, msgUnexpected)
	}

	s.gate.Publish(userID, auth.SessionState{Authenticated: true, Role: role, UserID: userID})

	return &SessionResult{
		Token:     issued.Token,
		ExpiresAt: issued.ExpiresAt,
		Role:      role,
		Dashboard: role.DashboardPath(),
		Profile:   profile,
	}, nil
}

func storedRole(p *models.UserProfile) types.Role {
	if p == nil || !p.Role.Valid() {
		return types.RoleCitizen
	}
	return p.Role
}

func invalidCredentials() *types.ServiceError {
	return types.NewServiceError(types.CodeInvalidCredentials, "Invalid email or password")
}
