package errors

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorKinds(t *testing.T) {
	tests := []struct {
		name  string
		err   *AppError
		kind  ErrorKind
		code  int
		check func(error) bool
	}{
		{"validation", NewValidationError("bad input"), ErrorKindValidation, 400, IsValidationError},
		{"not found", NewNotFoundError("missing"), ErrorKindNotFound, 404, IsNotFoundError},
		{"conflict", NewConflictError("duplicate"), ErrorKindConflict, 409, IsConflictError},
		{"auth expired", NewAuthExpiredError("revoked"), ErrorKindAuthExpired, 401, IsAuthExpiredError},
		{"rate limited", NewRateLimitedError("throttled", 5*time.Second), ErrorKindRateLimited, 429, IsRateLimitedError},
		{"fatal", NewFatalError("broken"), ErrorKindFatal, 500, IsFatalError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.kind, tt.err.Kind)
			assert.Equal(t, tt.code, tt.err.Code)
			assert.True(t, tt.check(tt.err))
		})
	}
}

func TestGetAppError_Wrapped(t *testing.T) {
	inner := NewNotFoundError("sensor missing", "hall-pir-01")
	wrapped := fmt.Errorf("loading sensor: %w", inner)

	appErr := GetAppError(wrapped)
	require.NotNil(t, appErr)
	assert.Equal(t, ErrorKindNotFound, appErr.Kind)
	assert.True(t, IsNotFoundError(wrapped))
}

func TestIsRetryable(t *testing.T) {
	assert.False(t, IsRetryable(nil))
	assert.True(t, IsRetryable(NewTransientError("upstream 503")))
	assert.True(t, IsRetryable(NewRateLimitedError("throttled", time.Second)))
	assert.False(t, IsRetryable(NewValidationError("bad")))
	assert.False(t, IsRetryable(NewAuthExpiredError("revoked")))
	assert.False(t, IsRetryable(NewNotFoundError("missing")))

	// Unclassified errors are treated as transient.
	assert.True(t, IsRetryable(fmt.Errorf("connection reset")))
}

func TestRetryAfterHint(t *testing.T) {
	assert.Equal(t, 7*time.Second, RetryAfterHint(NewRateLimitedError("throttled", 7*time.Second)))
	assert.Equal(t, time.Duration(0), RetryAfterHint(NewTransientError("no hint")))
	assert.Equal(t, time.Duration(0), RetryAfterHint(fmt.Errorf("plain")))
}

func TestAppError_Error(t *testing.T) {
	assert.Equal(t, "not_found: sensor missing (hall-pir-01)",
		NewNotFoundError("sensor missing", "hall-pir-01").Error())
	assert.Equal(t, "conflict: duplicate", NewConflictError("duplicate").Error())
}

func TestIsDuplicateError(t *testing.T) {
	assert.True(t, IsDuplicateError(fmt.Errorf("Error 1062: Duplicate entry 'x' for key 'y'")))
	assert.True(t, IsDuplicateError(fmt.Errorf("UNIQUE constraint failed: sessions.active_key")))
	assert.False(t, IsDuplicateError(fmt.Errorf("connection refused")))
	assert.False(t, IsDuplicateError(nil))
}
