package models

import "errors"

// Sentinel errors for common failure conditions. Handlers map these onto
// HTTP status codes; anything unrecognized becomes a 500 with a generic body.
var (
	ErrValidation        = errors.New("validation failed")
	ErrNotFound          = errors.New("resource not found")
	ErrConflict          = errors.New("resource already exists")
	ErrUnauthorized      = errors.New("unauthorized")
	ErrForbidden         = errors.New("forbidden")
	ErrInternalServer    = errors.New("internal server error")
	ErrRateLimitExceeded = errors.New("rate limit exceeded")
	ErrOperationTimeout  = errors.New("operation timed out")

	// Account state errors
	ErrAccountLocked = errors.New("account is temporarily locked")

	// MFA errors
	ErrMFANotConfigured = errors.New("mfa is not configured")
	ErrMFAInvalidCode   = errors.New("invalid mfa code")
	ErrMFARequired      = errors.New("mfa verification required")
)
