package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"studentsnet/internal/domain"
)

type errorEnvelope struct {
	Error apiError `json:"error"`
}

type apiError struct {
	Code    string            `json:"code"`
	Message string            `json:"message"`
	Fields  map[string]string `json:"fields,omitempty"`
}

func WriteError(w http.ResponseWriter, status int, code, message string) {
	WriteJSON(w, status, errorEnvelope{Error: apiError{Code: code, Message: message}})
}

func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// WriteDomainError maps the error taxonomy to a generic client message. Token
// failures of every kind collapse into one 401 body.
func WriteDomainError(w http.ResponseWriter, err error) {
	var verr *domain.ValidationError
	switch {
	case errors.As(err, &verr):
		WriteJSON(w, http.StatusBadRequest, errorEnvelope{Error: apiError{
			Code: "validation_error", Message: "invalid request", Fields: verr.Fields,
		}})
	case errors.Is(err, domain.ErrValidation):
		WriteError(w, http.StatusBadRequest, "validation_error", "invalid request")
	case errors.Is(err, domain.ErrInvalidCredentials):
		WriteError(w, http.StatusUnauthorized, "invalid_credentials", "invalid credentials")
	case errors.Is(err, domain.ErrTokenInvalid),
		errors.Is(err, domain.ErrTokenExpired),
		errors.Is(err, domain.ErrUnauthorized):
		WriteError(w, http.StatusUnauthorized, "unauthorized", "unauthorized")
	case errors.Is(err, domain.ErrForbidden):
		WriteError(w, http.StatusForbidden, "forbidden", "forbidden")
	case errors.Is(err, domain.ErrContactTaken):
		WriteError(w, http.StatusConflict, "contact_taken", "an account with this contact already exists")
	case errors.Is(err, domain.ErrNotFound):
		WriteError(w, http.StatusNotFound, "not_found", "not found")
	case errors.Is(err, domain.ErrRateLimited):
		WriteError(w, http.StatusTooManyRequests, "rate_limited", "too many requests")
	default:
		WriteError(w, http.StatusInternalServerError, "internal_error", "internal server error")
	}
}

// writeError is WriteDomainError plus a diagnostic log line for failures that
// point at the server rather than the caller.
func (a *api) writeError(w http.ResponseWriter, r *http.Request, err error) {
	if isServerFault(err) {
		fields := []any{"path", r.URL.Path, "err", err}
		if rid, ok := GetRequestID(r.Context()); ok {
			fields = append(fields, "request_id", rid)
		}
		if errors.Is(err, domain.ErrStoreUnavailable) {
			a.logger.Error("credential store unavailable", fields...)
		} else {
			a.logger.Error("request failed", fields...)
		}
	}
	WriteDomainError(w, err)
}

func isServerFault(err error) bool {
	for _, known := range []error{
		domain.ErrValidation,
		domain.ErrInvalidCredentials,
		domain.ErrTokenInvalid,
		domain.ErrTokenExpired,
		domain.ErrUnauthorized,
		domain.ErrForbidden,
		domain.ErrContactTaken,
		domain.ErrNotFound,
		domain.ErrRateLimited,
	} {
		if errors.Is(err, known) {
			return false
		}
	}
	return true
}
