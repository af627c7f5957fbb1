package api

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/cleanward/internal/service"
	"github.com/cleanward/internal/types"
)

// handleGetProfile handles GET /api/profile
func (s *Server) handleGetProfile(w http.ResponseWriter, r *http.Request) {
	profile, err := s.deps.Profiles.Get(r.Context(), currentSession(r).UserID)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, profile)
}

// handleChangeWard handles PUT /api/profile/ward
func (s *Server) handleChangeWard(w http.ResponseWriter, r *http.Request) {
	var req struct {
		WardNumber service.FormValue `json:"wardNumber"`
	}
	if err := parseJSONBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, "Invalid request body", nil)
		return
	}

	ward, err := strconv.Atoi(strings.TrimSpace(string(req.WardNumber)))
	if err != nil {
		respondError(w, http.StatusBadRequest, types.CodeWardOutOfRange, service.MsgInvalidWard, nil)
		return
	}

	profile, err := s.deps.Profiles.ChangeWard(r.Context(), currentSession(r).UserID, ward)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, profile)
}
