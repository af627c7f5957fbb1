package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/cleanward/internal/types"
)

// ErrorCategory represents the category of an error
type ErrorCategory string

const (
	// CategoryValidation represents input rejected before any backend call (4xx)
	CategoryValidation ErrorCategory = "validation"
	// CategoryAuthentication represents bad or unconfirmed credentials
	CategoryAuthentication ErrorCategory = "authentication"
	// CategoryAuthorization represents a missing session or insufficient role
	CategoryAuthorization ErrorCategory = "authorization"
	// CategoryConfiguration represents a misconfigured backend (bad keys, missing settings)
	CategoryConfiguration ErrorCategory = "configuration"
	// CategorySchema represents missing tables or functions
	CategorySchema ErrorCategory = "schema"
	// CategoryRateLimit represents rate limit errors
	CategoryRateLimit ErrorCategory = "rate_limit"
	// CategoryNotFound represents not found errors
	CategoryNotFound ErrorCategory = "not_found"
	// CategoryConflict represents conflict errors
	CategoryConflict ErrorCategory = "conflict"
	// CategoryProvider represents live data provider errors
	CategoryProvider ErrorCategory = "provider"
	// CategoryDatabase represents database errors
	CategoryDatabase ErrorCategory = "database"
	// CategorySystem represents system errors (5xx)
	CategorySystem ErrorCategory = "system"
)

// CategorizedError represents an error with category and HTTP status code
type CategorizedError struct {
	Category   ErrorCategory
	StatusCode int
	Code       string
	Message    string
	Details    map[string]interface{}
	Cause      error
}

// Error implements the error interface
func (e *CategorizedError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause
func (e *CategorizedError) Unwrap() error {
	return e.Cause
}

// ToServiceError converts to a ServiceError
func (e *CategorizedError) ToServiceError() *types.ServiceError {
	return &types.ServiceError{
		Code:    e.Code,
		Message: e.Message,
		Details: e.Details,
	}
}

// NewValidationError creates an input validation error
func NewValidationError(code, message string) *CategorizedError {
	return &CategorizedError{
		Category:   CategoryValidation,
		StatusCode: http.StatusBadRequest,
		Code:       code,
		Message:    message,
	}
}

// NewUnauthorizedError creates an unauthorized error
func NewUnauthorizedError(message string) *CategorizedError {
	return &CategorizedError{
		Category:   CategoryAuthorization,
		StatusCode: http.StatusUnauthorized,
		Code:       types.CodeUnauthorized,
		Message:    message,
	}
}

// NewForbiddenError creates a forbidden error
func NewForbiddenError(message string) *CategorizedError {
	return &CategorizedError{
		Category:   CategoryAuthorization,
		StatusCode: http.StatusForbidden,
		Code:       types.CodeForbidden,
		Message:    message,
	}
}

// NewNotFoundError creates a not found error
func NewNotFoundError(code, resource, id string) *CategorizedError {
	return &CategorizedError{
		Category:   CategoryNotFound,
		StatusCode: http.StatusNotFound,
		Code:       code,
		Message:    fmt.Sprintf("%s not found: %s", resource, id),
		Details: map[string]interface{}{
			"resource": resource,
			"id":       id,
		},
	}
}

// NewRateLimitError creates a rate limit error
func NewRateLimitError(retryAfter int) *CategorizedError {
	return &CategorizedError{
		Category:   CategoryRateLimit,
		StatusCode: http.StatusTooManyRequests,
		Code:       types.CodeRateLimited,
		Message:    "Too many requests. Please wait a moment and try again.",
		Details: map[string]interface{}{
			"retryAfter": retryAfter,
		},
	}
}

// NewInternalError creates an internal server error
func NewInternalError(message string, cause error) *CategorizedError {
	return &CategorizedError{
		Category:   CategorySystem,
		StatusCode: http.StatusInternalServerError,
		Code:       types.CodeInternal,
		Message:    message,
		Cause:      cause,
	}
}

// NewDatabaseError creates a database error
func NewDatabaseError(operation string, cause error) *CategorizedError {
	return &CategorizedError{
		Category:   CategoryDatabase,
		StatusCode: http.StatusInternalServerError,
		Code:       "DATABASE_ERROR",
		Message:    fmt.Sprintf("database error during %s", operation),
		Cause:      cause,
		Details: map[string]interface{}{
			"operation": operation,
		},
	}
}

// NewServiceUnavailableError creates a service unavailable error
func NewServiceUnavailableError(service string) *CategorizedError {
	return &CategorizedError{
		Category:   CategoryConfiguration,
		StatusCode: http.StatusServiceUnavailable,
		Code:       types.CodeBackendMisconfigured,
		Message:    fmt.Sprintf("service unavailable: %s", service),
		Details: map[string]interface{}{
			"service": service,
		},
	}
}

// NewProviderError creates a live data provider error
func NewProviderError(provider string, cause error) *CategorizedError {
	return &CategorizedError{
		Category:   CategoryProvider,
		StatusCode: http.StatusBadGateway,
		Code:       "PROVIDER_ERROR",
		Message:    fmt.Sprintf("data provider error: %s", provider),
		Cause:      cause,
		Details: map[string]interface{}{
			"provider": provider,
		},
	}
}

// NewProviderRateLimitError creates a provider rate limit error
func NewProviderRateLimitError(provider string) *CategorizedError {
	return &CategorizedError{
		Category:   CategoryProvider,
		StatusCode: http.StatusTooManyRequests,
		Code:       "PROVIDER_RATE_LIMIT",
		Message:    fmt.Sprintf("data provider rate limit exceeded: %s", provider),
		Details: map[string]interface{}{
			"provider": provider,
		},
	}
}

type codeClass struct {
	category ErrorCategory
	status   int
}

var serviceCodes = map[string]codeClass{
	types.CodeMissingFields:    {CategoryValidation, http.StatusBadRequest},
	types.CodeAgeOutOfRange:    {CategoryValidation, http.StatusBadRequest},
	types.CodeWardOutOfRange:   {CategoryValidation, http.StatusBadRequest},
	types.CodeInvalidSex:       {CategoryValidation, http.StatusBadRequest},
	types.CodePasswordMismatch: {CategoryValidation, http.StatusBadRequest},
	types.CodePasswordTooShort: {CategoryValidation, http.StatusBadRequest},
	types.CodeInvalidInput:     {CategoryValidation, http.StatusBadRequest},
	types.CodeImageRequired:    {CategoryValidation, http.StatusBadRequest},
	types.CodeInvalidImage:     {CategoryValidation, http.StatusBadRequest},
	types.CodeUnknownTask:      {CategoryValidation, http.StatusBadRequest},
	types.CodeCustomTitle:      {CategoryValidation, http.StatusBadRequest},
	types.CodeInvalidPoints:    {CategoryValidation, http.StatusBadRequest},

	types.CodeInvalidCredentials: {CategoryAuthentication, http.StatusUnauthorized},
	types.CodeEmailNotConfirmed:  {CategoryAuthentication, http.StatusForbidden},
	types.CodeInvalidToken:       {CategoryAuthentication, http.StatusBadRequest},
	types.CodeUnauthorized:       {CategoryAuthorization, http.StatusUnauthorized},
	types.CodeForbidden:          {CategoryAuthorization, http.StatusForbidden},

	types.CodeBackendMisconfigured: {CategoryConfiguration, http.StatusServiceUnavailable},
	types.CodeMissingTable:         {CategorySchema, http.StatusServiceUnavailable},
	types.CodeRateLimited:          {CategoryRateLimit, http.StatusTooManyRequests},

	types.CodeProfileNotFound:    {CategoryNotFound, http.StatusNotFound},
	types.CodeWardNotFound:       {CategoryNotFound, http.StatusNotFound},
	types.CodeEntryNotFound:      {CategoryNotFound, http.StatusNotFound},
	types.CodeDuplicateEmail:     {CategoryConflict, http.StatusConflict},
	types.CodeGoalAlreadyActive:  {CategoryConflict, http.StatusConflict},
	types.CodeInvalidTransition:  {CategoryConflict, http.StatusConflict},
	types.CodeHistoryUnavailable: {CategoryConfiguration, http.StatusServiceUnavailable},

	types.CodeUploadFailed: {CategoryProvider, http.StatusBadGateway},
}

// Categorize categorizes an existing error
func Categorize(err error) *CategorizedError {
	if err == nil {
		return nil
	}

	var catErr *CategorizedError
	if stderrors.As(err, &catErr) {
		return catErr
	}

	var svcErr *types.ServiceError
	if stderrors.As(err, &svcErr) {
		return categorizeServiceError(svcErr)
	}

	return NewInternalError("unexpected error", err)
}

func categorizeServiceError(err *types.ServiceError) *CategorizedError {
	class, ok := serviceCodes[err.Code]
	if !ok {
		class = codeClass{CategorySystem, http.StatusInternalServerError}
	}
	return &CategorizedError{
		Category:   class.category,
		StatusCode: class.status,
		Code:       err.Code,
		Message:    err.Message,
		Details:    err.Details,
	}
}

// Classify maps a raw backend error onto the failure taxonomy. Postgres
// errors are matched on SQLSTATE; anything else falls back to matching the
// message text. Unrecognized errors come back as CategoryDatabase.
func Classify(err error) *CategorizedError {
	if err == nil {
		return nil
	}

	var catErr *CategorizedError
	if stderrors.As(err, &catErr) {
		return catErr
	}

	if stderrors.Is(err, pgx.ErrNoRows) {
		return &CategorizedError{
			Category:   CategoryNotFound,
			StatusCode: http.StatusNotFound,
			Code:       "NOT_FOUND",
			Message:    "record not found",
			Cause:      err,
		}
	}

	var pgErr *pgconn.PgError
	if stderrors.As(err, &pgErr) {
		switch pgErr.Code {
		case "42P01":
			return schemaError("relation does not exist", err)
		case "42883":
			return schemaError("function does not exist", err)
		case "23505":
			return conflictError(err)
		case "28P01", "28000":
			return configurationError(err)
		}
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "invalid api key"),
		strings.Contains(msg, "invalid token"),
		strings.Contains(msg, "jwt"),
		strings.Contains(msg, "password authentication failed"):
		return configurationError(err)
	case strings.Contains(msg, "does not exist"):
		return schemaError("relation does not exist", err)
	case strings.Contains(msg, "already registered"),
		strings.Contains(msg, "duplicate key"),
		strings.Contains(msg, "unique constraint"):
		return conflictError(err)
	case strings.Contains(msg, "rate limit"):
		return &CategorizedError{
			Category:   CategoryRateLimit,
			StatusCode: http.StatusTooManyRequests,
			Code:       types.CodeRateLimited,
			Message:    "rate limit exceeded",
			Cause:      err,
		}
	}

	return NewDatabaseError("backend call", err)
}

func schemaError(message string, cause error) *CategorizedError {
	return &CategorizedError{
		Category:   CategorySchema,
		StatusCode: http.StatusServiceUnavailable,
		Code:       types.CodeMissingTable,
		Message:    message,
		Cause:      cause,
	}
}

func conflictError(cause error) *CategorizedError {
	return &CategorizedError{
		Category:   CategoryConflict,
		StatusCode: http.StatusConflict,
		Code:       "DUPLICATE",
		Message:    "duplicate record",
		Cause:      cause,
	}
}

func configurationError(cause error) *CategorizedError {
	return &CategorizedError{
		Category:   CategoryConfiguration,
		StatusCode: http.StatusServiceUnavailable,
		Code:       types.CodeBackendMisconfigured,
		Message:    "backend rejected the service credentials",
		Cause:      cause,
	}
}

// IsCategory reports whether err classifies into category
func IsCategory(err error, category ErrorCategory) bool {
	c := Classify(err)
	return c != nil && c.Category == category
}

// GetHTTPStatusCode returns the HTTP status code for an error
func GetHTTPStatusCode(err error) int {
	if catErr := Categorize(err); catErr != nil {
		return catErr.StatusCode
	}
	return http.StatusInternalServerError
}

// IsRetryable determines if an error is retryable. Only infrastructure
// connection attempts are retried; user actions never are.
func IsRetryable(err error) bool {
	catErr := Categorize(err)
	if catErr == nil {
		return false
	}

	switch catErr.Category {
	case CategoryProvider, CategoryDatabase:
		return true
	case CategorySystem:
		return catErr.StatusCode == http.StatusServiceUnavailable ||
			catErr.StatusCode == http.StatusGatewayTimeout
	default:
		return false
	}
}

// IsUserError determines if an error is a user error (4xx)
func IsUserError(err error) bool {
	catErr := Categorize(err)
	if catErr == nil {
		return false
	}

	return catErr.StatusCode >= 400 && catErr.StatusCode < 500
}

// IsSystemError determines if an error is a system error (5xx)
func IsSystemError(err error) bool {
	catErr := Categorize(err)
	if catErr == nil {
		return false
	}

	return catErr.StatusCode >= 500
}
