package api

import (
	"net/http"

	"github.com/cleanward/internal/service"
	"github.com/cleanward/internal/types"
)

// handleSignUp handles POST /api/auth/signup
func (s *Server) handleSignUp(w http.ResponseWriter, r *http.Request) {
	var form service.SignUpForm
	if err := parseJSONBody(r, &form); err != nil {
		respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, "Invalid request body", nil)
		return
	}

	result, err := s.deps.Auth.SignUp(r.Context(), form, clientIP(r))
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	respondJSON(w, http.StatusCreated, result)
}

// handleSignIn handles POST /api/auth/signin
func (s *Server) handleSignIn(w http.ResponseWriter, r *http.Request) {
	var req service.SignInInput
	if err := parseJSONBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, "Invalid request body", nil)
		return
	}

	result, err := s.deps.Auth.SignIn(r.Context(), req)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, result)
}

// handleSignOut handles POST /api/auth/signout
func (s *Server) handleSignOut(w http.ResponseWriter, r *http.Request) {
	if err := s.deps.Auth.SignOut(r.Context(), bearerToken(r)); err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]bool{"signedOut": true})
}

// handleConfirm handles POST /api/auth/confirm
func (s *Server) handleConfirm(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Token string `json:"token"`
	}
	if err := parseJSONBody(r, &req); err != nil || req.Token == "" {
		respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, "A confirmation token is required", nil)
		return
	}

	if err := s.deps.Auth.Confirm(r.Context(), req.Token); err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]bool{"confirmed": true})
}

// SessionResponse is the navigation view of the caller's session
type SessionResponse struct {
	Authenticated bool       `json:"authenticated"`
	Role          types.Role `json:"role"`
	UserID        string     `json:"userId,omitempty"`
	Dashboard     string     `json:"dashboard"`
	Links         []string   `json:"links"`
}

// handleSession handles GET /api/session
func (s *Server) handleSession(w http.ResponseWriter, r *http.Request) {
	state := currentSession(r)
	resp := SessionResponse{
		Authenticated: state.Authenticated,
		Role:          state.Role,
		UserID:        state.UserID,
		Dashboard:     state.Role.DashboardPath(),
		Links:         []string{"/"},
	}
	if state.Authenticated {
		resp.Links = append(resp.Links, state.Role.DashboardPath())
	} else {
		resp.Links = append(resp.Links, types.RoleNone.DashboardPath())
	}
	respondJSON(w, http.StatusOK, resp)
}
