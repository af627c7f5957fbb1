package api

import (
	"errors"
	"io"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/cleanward/internal/service"
	"github.com/cleanward/internal/types"
)

// multipart overhead allowed on top of the image itself
const multipartSlack = 1 << 20

// handleAvailableTasks handles GET /api/tasks/available
func (s *Server) handleAvailableTasks(w http.ResponseWriter, r *http.Request) {
	tasks, err := s.deps.Tasks.ListAvailable(r.Context(), currentSession(r).UserID)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"tasks": tasks})
}

// handleListGoals handles GET /api/goals
func (s *Server) handleListGoals(w http.ResponseWriter, r *http.Request) {
	ledger, err := s.deps.Tasks.ListLedger(r.Context(), currentSession(r).UserID)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"goals": ledger})
}

// handleAddGoal handles POST /api/goals
func (s *Server) handleAddGoal(w http.ResponseWriter, r *http.Request) {
	var req struct {
		TaskID      string `json:"taskId"`
		CustomTitle string `json:"customTitle"`
	}
	if err := parseJSONBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, "Invalid request body", nil)
		return
	}

	entry, err := s.deps.Tasks.AddGoal(r.Context(), currentSession(r).UserID, req.TaskID, req.CustomTitle)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, entry)
}

// handleSubmitProof handles POST /api/goals/{id}/proof (multipart: image, note)
func (s *Server) handleSubmitProof(w http.ResponseWriter, r *http.Request) {
	maxUpload := s.config.MaxUploadBytes
	if maxUpload <= 0 {
		maxUpload = 5 << 20
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxUpload+multipartSlack)

	if err := r.ParseMultipartForm(maxUpload + multipartSlack); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			respondError(w, http.StatusRequestEntityTooLarge, types.CodeInvalidImage, "Image is too large", nil)
			return
		}
		respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, "Expected a multipart form with an image", nil)
		return
	}

	proof := service.ProofUpload{Note: r.FormValue("note")}
	file, header, err := r.FormFile("image")
	switch {
	case errors.Is(err, http.ErrMissingFile):
		// an empty upload is reported by the service
	case err != nil:
		respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, "Could not read the uploaded image", nil)
		return
	default:
		defer func() { _ = file.Close() }()
		// one byte over the limit is enough for the service to reject it
		proof.Data, err = io.ReadAll(io.LimitReader(file, maxUpload+1))
		if err != nil {
			respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, "Could not read the uploaded image", nil)
			return
		}
		proof.Filename = header.Filename
	}

	entry, err := s.deps.Tasks.SubmitProof(r.Context(), currentSession(r).UserID, mux.Vars(r)["id"], proof)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, entry)
}
