package api

import (
	"net/http"
)

// handleCitizenDashboard handles GET /api/dashboard/citizen
func (s *Server) handleCitizenDashboard(w http.ResponseWriter, r *http.Request) {
	dash, err := s.deps.Dashboards.Citizen(r.Context(), currentSession(r).UserID)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, dash)
}

// handleAuthorityDashboard handles GET /api/dashboard/authority
func (s *Server) handleAuthorityDashboard(w http.ResponseWriter, r *http.Request) {
	dash, err := s.deps.Dashboards.Authority(r.Context())
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, dash)
}

// handleLeaderboard handles GET /api/leaderboard. Signed-in callers also
// get their own row.
func (s *Server) handleLeaderboard(w http.ResponseWriter, r *http.Request) {
	board, err := s.deps.Dashboards.Leaderboard(r.Context(), currentSession(r).UserID)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, board)
}
