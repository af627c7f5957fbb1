package types

// Service error codes. The API layer maps each to an HTTP status.
const (
	// Validation (client-detected, no backend call made)
	CodeMissingFields    = "MISSING_FIELDS"
	CodeAgeOutOfRange    = "AGE_OUT_OF_RANGE"
	CodeWardOutOfRange   = "WARD_OUT_OF_RANGE"
	CodeInvalidSex       = "INVALID_SEX"
	CodePasswordMismatch = "PASSWORD_MISMATCH"
	CodePasswordTooShort = "PASSWORD_TOO_SHORT"
	CodeInvalidInput     = "INVALID_INPUT"
	CodeImageRequired    = "IMAGE_REQUIRED"
	CodeInvalidImage     = "INVALID_IMAGE"
	CodeUnknownTask      = "UNKNOWN_TASK"
	CodeCustomTitle      = "CUSTOM_TITLE_REQUIRED"
	CodeInvalidPoints    = "INVALID_POINTS"

	// Authentication
	CodeInvalidCredentials = "INVALID_CREDENTIALS"
	CodeEmailNotConfirmed  = "EMAIL_NOT_CONFIRMED"
	CodeDuplicateEmail     = "DUPLICATE_EMAIL"
	CodeInvalidToken       = "INVALID_TOKEN"
	CodeUnauthorized       = "UNAUTHORIZED"
	CodeForbidden          = "FORBIDDEN"

	// Configuration / schema
	CodeBackendMisconfigured = "BACKEND_MISCONFIGURED"
	CodeMissingTable         = "MISSING_TABLE"

	// Rate limiting
	CodeRateLimited = "RATE_LIMITED"

	// Not found / conflict
	CodeProfileNotFound    = "PROFILE_NOT_FOUND"
	CodeWardNotFound       = "WARD_NOT_FOUND"
	CodeEntryNotFound      = "ENTRY_NOT_FOUND"
	CodeGoalAlreadyActive  = "GOAL_ALREADY_ACTIVE"
	CodeInvalidTransition  = "INVALID_TRANSITION"
	CodeHistoryUnavailable = "HISTORY_UNAVAILABLE"

	// Generic
	CodeSignupFailed  = "SIGNUP_FAILED"
	CodeUnknown       = "UNKNOWN"
	CodeApproveFailed = "APPROVE_FAILED"
	CodeRejectFailed  = "REJECT_FAILED"
	CodeUploadFailed  = "UPLOAD_FAILED"
	CodeInternal      = "INTERNAL_ERROR"
)
