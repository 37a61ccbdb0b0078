// Package common defines shared constants and sentinel errors used across
// the credkeeper server. Callers should use errors.Is to match these values.
package common

import (
	"errors"
	"fmt"
)

var (
	// Repository-level errors.
	ErrorNotFound = errors.New("not found")
	ErrorConflict = errors.New("already exists")

	// Service-level errors (generic/internal flow control).
	ErrorInternal        = errors.New("internal error")
	ErrorValidation      = errors.New("validation error")
	ErrDependencyFailure = errors.New("dependency unavailable")
	ErrAlreadyPromoted   = errors.New("registration already confirmed")

	// Outward-facing authentication errors. They are deliberately coarse.
	ErrorUnauthorized        = errors.New("unauthorized")
	ErrInvalidCredentials    = fmt.Errorf("%w: invalid email or password", ErrorUnauthorized)
	ErrInvalidCode           = errors.New("invalid or expired code")
	ErrInvalidOrExpiredToken = errors.New("password reset token is invalid or has expired")
	ErrorForbidden           = errors.New("forbidden")

	// One-time code outcomes; all of them are ErrInvalidCode to callers.
	ErrCodeNotFound = fmt.Errorf("%w: no pending code", ErrInvalidCode)
	ErrCodeExpired  = fmt.Errorf("%w: code expired", ErrInvalidCode)
	ErrCodeMismatch = fmt.Errorf("%w: code mismatch", ErrInvalidCode)

	// Session token outcomes; all of them are ErrorUnauthorized to callers.
	ErrInvalidToken = fmt.Errorf("%w: invalid token", ErrorUnauthorized)
	ErrTokenExpired = fmt.Errorf("%w: token expired", ErrorUnauthorized)
	ErrTokenRevoked = fmt.Errorf("%w: token revoked", ErrorUnauthorized)
)

// ValidationError reports a caller-correctable problem with one input field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return e.Field + ": " + e.Message
}

// Is makes every ValidationError match ErrorValidation.
func (e *ValidationError) Is(target error) bool { return target == ErrorValidation }

// NewValidationError builds a ValidationError for field.
func NewValidationError(field, msg string) error {
	return &ValidationError{Field: field, Message: msg}
}
