package handlers

import (
	"errors"
	"net/http"

	"github.com/innkeephq/innkeep/internal/models"
	pkgauth "github.com/innkeephq/innkeep/pkg/auth"
	pkghttp "github.com/innkeephq/innkeep/pkg/http"
)

// writeServiceError maps service sentinel errors to HTTP responses. Messages
// stay generic; the specific cause lives in the audit trail and server logs.
func writeServiceError(w http.ResponseWriter, err error) {
	var pve *pkgauth.PasswordValidationError
	switch {
	case errors.As(err, &pve):
		pkghttp.WriteBadRequest(w, pve.Error())
	case errors.Is(err, models.ErrValidation):
		pkghttp.WriteBadRequest(w, "invalid request")
	case errors.Is(err, models.ErrUnauthorized), errors.Is(err, models.ErrMFAInvalidCode):
		pkghttp.WriteUnauthorized(w, "authentication failed")
	case errors.Is(err, models.ErrForbidden):
		pkghttp.WriteForbidden(w, "forbidden")
	case errors.Is(err, models.ErrNotFound):
		pkghttp.WriteNotFound(w, "not found")
	case errors.Is(err, models.ErrConflict):
		pkghttp.WriteConflict(w, "conflict")
	case errors.Is(err, models.ErrAccountLocked):
		pkghttp.WriteLocked(w, "account temporarily locked")
	case errors.Is(err, models.ErrRateLimitExceeded):
		pkghttp.WriteTooManyRequests(w, "too many requests, please try again later")
	case errors.Is(err, models.ErrMFANotConfigured):
		pkghttp.WriteBadRequest(w, "mfa not configured")
	case errors.Is(err, models.ErrOperationTimeout):
		pkghttp.WriteInternalError(w, "operation timed out")
	default:
		pkghttp.WriteInternalError(w, "internal server error")
	}
}
