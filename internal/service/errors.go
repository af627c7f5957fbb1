package service

import (
	apperrors "github.com/cleanward/internal/errors"
	"github.com/cleanward/internal/logging"
	"github.com/cleanward/internal/types"
)

const (
	msgMissingTable   = "Database tables are missing. Please run the migrations."
	msgMisconfigured  = "The backend is not configured correctly. Please contact support."
	msgRateLimited    = "Too many requests. Please try again later."
	msgUnexpected     = "An unexpected error occurred. Please try again."
	msgApproveFailed  = "Failed to approve action."
	msgRejectFailed   = "Failed to reject action."
	msgUploadFailed   = "Failed to upload proof image. Please try again."
	msgEntryNotFound  = "Goal not found"
	msgProfileMissing = "Profile not found"
)

// backendFailure maps a repository error onto the user-facing taxonomy.
// Schema, configuration and rate-limit failures keep their own code; anything
// else becomes fallbackCode with fallbackMsg. The raw error is logged.
func backendFailure(logger *logging.Logger, op string, err error, fallbackCode, fallbackMsg string) *types.ServiceError {
	c := apperrors.Classify(err)
	logger.WithError(err).WithFields(map[string]interface{}{
		"operation": op,
		"category":  string(c.Category),
	}).Error("backend call failed")

	switch c.Category {
	case apperrors.CategorySchema:
		return types.NewServiceError(types.CodeMissingTable, msgMissingTable)
	case apperrors.CategoryConfiguration:
		return types.NewServiceError(types.CodeBackendMisconfigured, msgMisconfigured)
	case apperrors.CategoryRateLimit:
		return types.NewServiceError(types.CodeRateLimited, msgRateLimited)
	}
	return types.NewServiceError(fallbackCode, fallbackMsg)
}
