package api

import (
	"encoding/json"
	"net/http"

	apperrors "github.com/cleanward/internal/errors"
	"github.com/cleanward/internal/logging"
	"github.com/cleanward/internal/types"
)

// ErrorResponse represents an API error response.
type ErrorResponse struct {
	Error types.ServiceError `json:"error"`
}

// respondError sends an error response.
func respondError(w http.ResponseWriter, statusCode int, code, message string, details map[string]interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	response := ErrorResponse{
		Error: types.ServiceError{
			Code:    code,
			Message: message,
			Details: details,
		},
	}

	_ = json.NewEncoder(w).Encode(response)
}

// respondJSON sends a JSON response.
func respondJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if data != nil {
		_ = json.NewEncoder(w).Encode(data)
	}
}

// parseJSONBody parses JSON request body.
func parseJSONBody(r *http.Request, v interface{}) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	return decoder.Decode(v)
}

// Common error codes
const (
	ErrCodeInvalidInput       = types.CodeInvalidInput
	ErrCodeNotFound           = "NOT_FOUND"
	ErrCodeUnauthorized       = types.CodeUnauthorized
	ErrCodeForbidden          = types.CodeForbidden
	ErrCodeRateLimited        = types.CodeRateLimited
	ErrCodeInternalError      = types.CodeInternal
	ErrCodeServiceUnavailable = types.CodeBackendMisconfigured
)

// respondServiceError maps a service error onto its HTTP status. Errors
// outside the service taxonomy are logged and reported generically.
func respondServiceError(w http.ResponseWriter, r *http.Request, err error) {
	catErr := apperrors.Categorize(err)
	if catErr.Category == apperrors.CategorySystem && catErr.Code == types.CodeInternal {
		logging.FromContext(r.Context()).WithError(err).WithFields(map[string]interface{}{
			"method": r.Method,
			"path":   r.URL.Path,
		}).Error("unhandled error")
		respondError(w, http.StatusInternalServerError, ErrCodeInternalError, "An internal error occurred", nil)
		return
	}
	respondError(w, catErr.StatusCode, catErr.Code, catErr.Message, catErr.Details)
}
