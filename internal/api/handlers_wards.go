package api

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/cleanward/internal/service"
)

// defaultHistoryWindow is used when a readings query names no range
const defaultHistoryWindow = 24 * time.Hour

// handleListWards handles GET /api/wards?zone=&sort=
func (s *Server) handleListWards(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	views, err := s.deps.Wards.List(service.WardFilter{
		Zone: q.Get("zone"),
		Sort: q.Get("sort"),
	})
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"wards": views,
		"count": len(views),
	})
}

// handleZones handles GET /api/wards/zones
func (s *Server) handleZones(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]interface{}{"zones": s.deps.Wards.Zones()})
}

// handleGetWard handles GET /api/wards/{id}
func (s *Server) handleGetWard(w http.ResponseWriter, r *http.Request) {
	id, _ := strconv.Atoi(mux.Vars(r)["id"])

	view, err := s.deps.Wards.Get(id)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, view)
}

// handleWardReadings handles GET /api/wards/{id}/readings?from=&to=&limit=
func (s *Server) handleWardReadings(w http.ResponseWriter, r *http.Request) {
	id, _ := strconv.Atoi(mux.Vars(r)["id"])
	q := r.URL.Query()

	to := time.Now().UTC()
	if v := q.Get("to"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, "Invalid 'to' (use RFC 3339)", nil)
			return
		}
		to = t
	}
	from := to.Add(-defaultHistoryWindow)
	if v := q.Get("from"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, "Invalid 'from' (use RFC 3339)", nil)
			return
		}
		from = t
	}

	// Parse limit (invalid values fall back to the store default)
	limit := 0
	if v := q.Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}

	readings, err := s.deps.Wards.History(r.Context(), id, from, to, limit)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"wardId":   id,
		"from":     from,
		"to":       to,
		"readings": readings,
	})
}

// handleRefreshWards handles POST /api/wards/refresh. An empty body
// refreshes every ward.
func (s *Server) handleRefreshWards(w http.ResponseWriter, r *http.Request) {
	var req struct {
		WardIDs []int `json:"wardIds"`
	}
	if err := parseJSONBody(r, &req); err != nil && !errors.Is(err, io.EOF) {
		respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, "Invalid request body", nil)
		return
	}

	result, err := s.deps.Wards.Refresh(r.Context(), req.WardIDs)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, result)
}
