// Package errors provides application-level error types and utilities.
// It defines the error kinds the orchestrator distinguishes: validation,
// not found, conflict, auth expiry, rate limiting, transient, and fatal.
package errors

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// ErrorKind represents the kind of error
type ErrorKind string

const (
	ErrorKindValidation  ErrorKind = "validation_error"
	ErrorKindNotFound    ErrorKind = "not_found"
	ErrorKindConflict    ErrorKind = "conflict"
	ErrorKindAuthExpired ErrorKind = "auth_expired"
	ErrorKindRateLimited ErrorKind = "rate_limited"
	ErrorKindTransient   ErrorKind = "transient"
	ErrorKindFatal       ErrorKind = "fatal"
)

// AppError represents an application error with additional context
type AppError struct {
	Kind    ErrorKind `json:"kind"`
	Message string    `json:"message"`
	Code    int       `json:"code"`
	Details string    `json:"details,omitempty"`

	// RetryAfter carries the server-provided backoff hint for rate-limited
	// errors. Zero means no hint.
	RetryAfter time.Duration `json:"-"`
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Kind, e.Message, e.Details)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func newAppError(kind ErrorKind, code int, message string, details ...string) *AppError {
	detail := ""
	if len(details) > 0 {
		detail = details[0]
	}
	return &AppError{
		Kind:    kind,
		Message: message,
		Code:    code,
		Details: detail,
	}
}

// NewValidationError creates a new validation error
func NewValidationError(message string, details ...string) *AppError {
	return newAppError(ErrorKindValidation, http.StatusBadRequest, message, details...)
}

// NewNotFoundError creates a new not found error
func NewNotFoundError(message string, details ...string) *AppError {
	return newAppError(ErrorKindNotFound, http.StatusNotFound, message, details...)
}

// NewConflictError creates a new conflict error
func NewConflictError(message string, details ...string) *AppError {
	return newAppError(ErrorKindConflict, http.StatusConflict, message, details...)
}

// NewAuthExpiredError creates a new auth expired error
func NewAuthExpiredError(message string, details ...string) *AppError {
	return newAppError(ErrorKindAuthExpired, http.StatusUnauthorized, message, details...)
}

// NewRateLimitedError creates a new rate limited error carrying the
// Retry-After hint from the upstream service.
func NewRateLimitedError(message string, retryAfter time.Duration, details ...string) *AppError {
	err := newAppError(ErrorKindRateLimited, http.StatusTooManyRequests, message, details...)
	err.RetryAfter = retryAfter
	return err
}

// NewTransientError creates a new transient error
func NewTransientError(message string, details ...string) *AppError {
	return newAppError(ErrorKindTransient, http.StatusServiceUnavailable, message, details...)
}

// NewFatalError creates a new fatal error
func NewFatalError(message string, details ...string) *AppError {
	return newAppError(ErrorKindFatal, http.StatusInternalServerError, message, details...)
}

// IsAppError checks if the error is an AppError
func IsAppError(err error) bool {
	var appErr *AppError
	return errors.As(err, &appErr)
}

// GetAppError extracts AppError from error
func GetAppError(err error) *AppError {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	return nil
}

func isKind(err error, kind ErrorKind) bool {
	appErr := GetAppError(err)
	return appErr != nil && appErr.Kind == kind
}

// IsValidationError checks if the error is a validation error
func IsValidationError(err error) bool { return isKind(err, ErrorKindValidation) }

// IsNotFoundError checks if the error is a not found error
func IsNotFoundError(err error) bool { return isKind(err, ErrorKindNotFound) }

// IsConflictError checks if the error is a conflict error
func IsConflictError(err error) bool { return isKind(err, ErrorKindConflict) }

// IsAuthExpiredError checks if the error is an auth expired error
func IsAuthExpiredError(err error) bool { return isKind(err, ErrorKindAuthExpired) }

// IsRateLimitedError checks if the error is a rate limited error
func IsRateLimitedError(err error) bool { return isKind(err, ErrorKindRateLimited) }

// IsFatalError checks if the error is a fatal error
func IsFatalError(err error) bool { return isKind(err, ErrorKindFatal) }

// IsRetryable reports whether the error may succeed on retry. Rate-limited
// and transient errors are retryable; unclassified errors are treated as
// transient so a network hiccup without classification still gets retried.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	appErr := GetAppError(err)
	if appErr == nil {
		return true
	}
	return appErr.Kind == ErrorKindTransient || appErr.Kind == ErrorKindRateLimited
}

// RetryAfterHint returns the upstream backoff hint, or zero when absent.
func RetryAfterHint(err error) time.Duration {
	if appErr := GetAppError(err); appErr != nil {
		return appErr.RetryAfter
	}
	return 0
}

// IsDuplicateError checks if the error is a database duplicate key error
func IsDuplicateError(err error) bool {
	if err == nil {
		return false
	}
	errStr := err.Error()
	// MySQL duplicate entry error
	if strings.Contains(errStr, "Duplicate entry") || strings.Contains(errStr, "duplicate key") {
		return true
	}
	// SQLite / PostgreSQL unique violation
	if strings.Contains(errStr, "UNIQUE constraint") || strings.Contains(errStr, "unique constraint") {
		return true
	}
	return false
}
