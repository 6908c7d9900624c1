package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"bengkel/internal/domain"

	"github.com/rs/zerolog"
)

const (
	codeValidation      = "VALIDATION_ERROR"
	codeDuplicateEmail  = "DUPLICATE_EMAIL"
	codeInvalidLogin    = "INVALID_CREDENTIALS"
	codeUnauthenticated = "UNAUTHENTICATED"
	codeInvalidToken    = "INVALID_TOKEN"
	codeForbidden       = "FORBIDDEN"
	codeNotFound        = "NOT_FOUND"
	codeTransition      = "INVALID_TRANSITION"
	codeConflict        = "CONFLICT"
	codeTooMany         = "TOO_MANY_REQUESTS"
	codeInternal        = "INTERNAL_ERROR"
)

type errorResponse struct {
	Error   string   `json:"error"`
	Message string   `json:"message"`
	Fields  []string `json:"fields,omitempty"`
}

func writeJSON(w http.ResponseWriter, statusCode int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, statusCode int, code, message string, fields ...string) {
	writeJSON(w, statusCode, errorResponse{Error: code, Message: message, Fields: fields})
}

var errorTable = []struct {
	target error
	status int
	code   string
}{
	{domain.ErrDuplicateEmail, http.StatusBadRequest, codeDuplicateEmail},
	{domain.ErrInvalidCredentials, http.StatusUnauthorized, codeInvalidLogin},
	{domain.ErrUnauthenticated, http.StatusUnauthorized, codeUnauthenticated},
	{domain.ErrInvalidToken, http.StatusForbidden, codeInvalidToken},
	{domain.ErrForbidden, http.StatusForbidden, codeForbidden},
	{domain.ErrNotFound, http.StatusNotFound, codeNotFound},
	{domain.ErrInvalidTransition, http.StatusBadRequest, codeTransition},
	{domain.ErrConcurrentModification, http.StatusConflict, codeConflict},
	{domain.ErrTooManyAttempts, http.StatusTooManyRequests, codeTooMany},
}

// writeDomainError maps service errors onto the JSON error envelope.
// Unknown errors are logged and reported as a bare 500.
func writeDomainError(w http.ResponseWriter, r *http.Request, logger *zerolog.Logger, err error) {
	var verr *domain.ValidationError
	if errors.As(err, &verr) {
		writeError(w, http.StatusBadRequest, codeValidation, verr.Error(), verr.Fields...)
		return
	}

	for _, e := range errorTable {
		if errors.Is(err, e.target) {
			writeError(w, e.status, e.code, err.Error())
			return
		}
	}

	logger.Error().Err(err).
		Str("request_id", requestID(r)).
		Str("method", r.Method).
		Str("path", r.URL.Path).
		Msg("request failed")
	writeError(w, http.StatusInternalServerError, codeInternal, "internal server error")
}
