package handlers

import (
	"errors"
	"net/http"

	"github.com/diewo77/go-crm/gate"
	"github.com/diewo77/go-crm/httpx"
	"github.com/diewo77/go-crm/internal/logging"
	"github.com/diewo77/go-crm/internal/services"
)

// statusOf maps a service error onto an HTTP status and wire code.
func statusOf(err error) (int, string) {
	var verr *services.ValidationError
	switch {
	case errors.As(err, &verr):
		return http.StatusBadRequest, "validation_error"
	case errors.Is(err, httpx.ErrBadRequestBody):
		return http.StatusBadRequest, "bad_request"
	case errors.Is(err, services.ErrInvalidCredentials):
		return http.StatusUnauthorized, "invalid_credentials"
	case errors.Is(err, services.ErrInvalidSession):
		return http.StatusUnauthorized, "unauthorized"
	case errors.Is(err, services.ErrDuplicateIdentity):
		return http.StatusConflict, "duplicate_identity"
	case errors.Is(err, services.ErrInvalidCurrentPassword):
		return http.StatusBadRequest, "invalid_current_password"
	case errors.Is(err, services.ErrPasswordTooShort):
		return http.StatusBadRequest, "password_too_short"
	case errors.Is(err, services.ErrPasswordMismatch):
		return http.StatusBadRequest, "password_mismatch"
	case errors.Is(err, services.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, gate.ErrUnauthorized), errors.Is(err, gate.ErrNoProfile):
		return http.StatusForbidden, "forbidden"
	case errors.Is(err, services.ErrUnavailable):
		return http.StatusServiceUnavailable, "service_unavailable"
	}
	return http.StatusInternalServerError, "internal_error"
}

// writeError sends the JSON error envelope. Only the code and, for
// validation failures, the field violations reach the client.
func writeError(w http.ResponseWriter, r *http.Request, log logging.Logger, err error) {
	status, code := statusOf(err)
	if status >= http.StatusInternalServerError {
		log.Error(r.Context(), "request failed", "path", r.URL.Path, "error", err)
	}
	var details any
	var verr *services.ValidationError
	if errors.As(err, &verr) {
		details = verr.Violations
	}
	httpx.JSONError(w, status, code, details)
}
