package api

import (
	"errors"
	"io"
	"net/http"

	"github.com/gorilla/mux"
)

// handlePendingReviews handles GET /api/review/pending
func (s *Server) handlePendingReviews(w http.ResponseWriter, r *http.Request) {
	pending, err := s.deps.Reviews.ListPending(r.Context())
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"pending": pending})
}

// handleApprove handles POST /api/review/{id}/approve. The body is optional;
// without points the task's default award is used.
func (s *Server) handleApprove(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Points *int `json:"points"`
	}
	if err := parseJSONBody(r, &req); err != nil && !errors.Is(err, io.EOF) {
		respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, "Points must be a whole number", nil)
		return
	}

	result, err := s.deps.Reviews.Approve(r.Context(), mux.Vars(r)["id"], req.Points, currentSession(r).UserID)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, result)
}

// handleReject handles POST /api/review/{id}/reject
func (s *Server) handleReject(w http.ResponseWriter, r *http.Request) {
	result, err := s.deps.Reviews.Reject(r.Context(), mux.Vars(r)["id"], currentSession(r).UserID)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, result)
}
