// Package errors defines structured error types for sessiond.
// Errors carry a stable code and an HTTP status so transport layers can map
// outcomes without inspecting messages.
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// AppError is a structured application error.
type AppError struct {
	Code       string
	HTTPStatus int
	Message    string
	Err        error
}

// Error implements the error interface.
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the wrapped cause for errors.Is / errors.As chains.
func (e *AppError) Unwrap() error {
	return e.Err
}

// Is matches two AppErrors by code, so wrapped copies still compare equal to
// their sentinel.
func (e *AppError) Is(target error) bool {
	var t *AppError
	if errors.As(target, &t) {
		return e.Code == t.Code
	}
	return false
}

// WithError returns a copy of the error carrying the underlying cause.
func (e *AppError) WithError(err error) *AppError {
	clone := *e
	clone.Err = err
	return &clone
}

// WithMessagef returns a copy of the error with a formatted message.
func (e *AppError) WithMessagef(format string, args ...interface{}) *AppError {
	clone := *e
	clone.Message = fmt.Sprintf(format, args...)
	return &clone
}

// New creates a new AppError.
func New(code string, httpStatus int, message string) *AppError {
	return &AppError{Code: code, HTTPStatus: httpStatus, Message: message}
}

// ================================================================================
// Error codes
// ================================================================================

const (
	CodeConnectionExhausted = "connection_exhausted"
	CodeStoreUnavailable    = "store_unavailable"
	CodeNotFound            = "not_found"
	CodeInvalidRefreshToken = "invalid_refresh_token"
	CodeFingerprintMismatch = "fingerprint_mismatch"
	CodeInvalidCSRFToken    = "invalid_csrf_token"
	CodeInvalidConfig       = "invalid_config"
	CodeInvalidArgument     = "invalid_argument"
	CodeInternal            = "internal_error"
)

// ================================================================================
// Predefined errors
// ================================================================================

var (
	// ErrConnectionExhausted is surfaced when the shared-store reconnect
	// ceiling is exceeded. It is fatal from the connection manager's point of
	// view; callers translate it into a 503-class response.
	ErrConnectionExhausted = New(CodeConnectionExhausted, http.StatusServiceUnavailable, "shared store connection attempts exhausted")

	// ErrStoreUnavailable covers transient shared-store I/O failures.
	ErrStoreUnavailable = New(CodeStoreUnavailable, http.StatusServiceUnavailable, "shared store unavailable")

	// ErrSessionNotFound is the expected-absence outcome for session lookups.
	ErrSessionNotFound = New(CodeNotFound, http.StatusUnauthorized, "session not found")

	// ErrInvalidRefreshToken marks a refresh token that is unknown, expired,
	// or already rotated.
	ErrInvalidRefreshToken = New(CodeInvalidRefreshToken, http.StatusUnauthorized, "refresh token is invalid or expired")

	// ErrFingerprintMismatch is a security signal: the session was presented
	// from a device whose fingerprint no longer matches.
	ErrFingerprintMismatch = New(CodeFingerprintMismatch, http.StatusUnauthorized, "device fingerprint mismatch")

	// ErrInvalidCSRFToken is a security signal mapped to 403.
	ErrInvalidCSRFToken = New(CodeInvalidCSRFToken, http.StatusForbidden, "invalid CSRF token")

	// ErrInvalidConfig is raised at startup for missing or malformed
	// configuration; it is never produced at request time.
	ErrInvalidConfig = New(CodeInvalidConfig, http.StatusInternalServerError, "invalid configuration")

	// ErrInvalidArgument marks a caller-supplied value that fails validation.
	ErrInvalidArgument = New(CodeInvalidArgument, http.StatusBadRequest, "invalid argument")

	// ErrDatabaseOperation wraps durable-store failures.
	ErrDatabaseOperation = New(CodeInternal, http.StatusInternalServerError, "database operation failed")
)
