package errors

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"

	"github.com/cleanward/internal/types"
)

func TestClassify_PostgresCodes(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		category ErrorCategory
		code     string
	}{
		{"undefined table", &pgconn.PgError{Code: "42P01", Message: `relation "profiles" does not exist`}, CategorySchema, types.CodeMissingTable},
		{"undefined function", &pgconn.PgError{Code: "42883"}, CategorySchema, types.CodeMissingTable},
		{"unique violation", &pgconn.PgError{Code: "23505"}, CategoryConflict, "DUPLICATE"},
		{"bad password", &pgconn.PgError{Code: "28P01"}, CategoryConfiguration, types.CodeBackendMisconfigured},
		{"wrapped unique violation", fmt.Errorf("insert: %w", &pgconn.PgError{Code: "23505"}), CategoryConflict, "DUPLICATE"},
		{"no rows", pgx.ErrNoRows, CategoryNotFound, "NOT_FOUND"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Classify(tt.err)
			assert.Equal(t, tt.category, got.Category)
			assert.Equal(t, tt.code, got.Code)
		})
	}
}

func TestClassify_TextFallback(t *testing.T) {
	tests := []struct {
		msg      string
		category ErrorCategory
	}{
		{"Invalid API key", CategoryConfiguration},
		{"JWT expired", CategoryConfiguration},
		{`relation "public.user_tasks" does not exist`, CategorySchema},
		{"User already registered", CategoryConflict},
		{"duplicate key value violates unique constraint", CategoryConflict},
		{"Email rate limit exceeded", CategoryRateLimit},
		{"connection reset by peer", CategoryDatabase},
	}

	for _, tt := range tests {
		t.Run(tt.msg, func(t *testing.T) {
			assert.Equal(t, tt.category, Classify(fmt.Errorf("%s", tt.msg)).Category)
		})
	}
}

func TestClassify_Nil(t *testing.T) {
	assert.Nil(t, Classify(nil))
	assert.Nil(t, Categorize(nil))
}

func TestCategorize_ServiceErrors(t *testing.T) {
	tests := []struct {
		code   string
		status int
	}{
		{types.CodePasswordTooShort, http.StatusBadRequest},
		{types.CodeInvalidCredentials, http.StatusUnauthorized},
		{types.CodeForbidden, http.StatusForbidden},
		{types.CodeEntryNotFound, http.StatusNotFound},
		{types.CodeInvalidTransition, http.StatusConflict},
		{types.CodeRateLimited, http.StatusTooManyRequests},
		{types.CodeBackendMisconfigured, http.StatusServiceUnavailable},
		{types.CodeApproveFailed, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			err := types.NewServiceError(tt.code, "msg")
			assert.Equal(t, tt.status, GetHTTPStatusCode(err))
		})
	}
}

func TestCategorize_UnknownErrorIsInternal(t *testing.T) {
	c := Categorize(fmt.Errorf("boom"))
	assert.Equal(t, CategorySystem, c.Category)
	assert.True(t, IsSystemError(c))
	assert.False(t, IsUserError(c))
}

func TestIsRetryable(t *testing.T) {
	assert.True(t, IsRetryable(NewDatabaseError("ping", fmt.Errorf("refused"))))
	assert.True(t, IsRetryable(NewProviderError("aqi", nil)))
	assert.False(t, IsRetryable(NewValidationError(types.CodeMissingFields, "x")))
	assert.False(t, IsRetryable(types.NewServiceError(types.CodeApproveFailed, "Failed to approve action.")))
}
