package api

import (
	"errors"
	"net/http"

	"github.com/okian/nurture/internal/domain/errkind"
)

// Sentinel kinds for API errors.
var (
	ErrMethodNotAllowed = errors.New("method not allowed")
	ErrMissingIdentity  = errors.New("missing admin identity")
	ErrNotAdmin         = errors.New("not an admin")
	ErrBadCronSecret    = errors.New("invalid cron credentials")
)

// statusFor maps an error kind to its HTTP status. Rate limiting is checked
// before the general upstream kind.
func statusFor(err error) int {
	switch {
	case errors.Is(err, errkind.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, errkind.ErrAuth):
		return http.StatusUnauthorized
	case errors.Is(err, errkind.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, errkind.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, errkind.ErrRateLimited):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// messageFor returns the caller-facing text. Only validation errors carry
// their detail; everything else gets a fixed phrase.
func messageFor(err error) string {
	switch {
	case errors.Is(err, errkind.ErrValidation):
		return errkind.Message(err)
	case errors.Is(err, errkind.ErrAuth):
		return "unauthorized"
	case errors.Is(err, errkind.ErrForbidden):
		return "forbidden"
	case errors.Is(err, errkind.ErrNotFound):
		return "not found"
	case errors.Is(err, errkind.ErrRateLimited):
		return "service is busy, try again later"
	case errors.Is(err, errkind.ErrUpstream):
		return "upstream service error"
	default:
		return "internal error"
	}
}
