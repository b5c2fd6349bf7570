package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/adebayof/monievault-backend/internal/domain"
	"github.com/adebayof/monievault-backend/internal/logger"
	"github.com/adebayof/monievault-backend/internal/usecase/authgate"
	"github.com/adebayof/monievault-backend/internal/usecase/wizard"
)

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload != nil {
		_ = json.NewEncoder(w).Encode(payload)
	}
}

// writeError converts domain errors to HTTP status codes
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := mapError(err)
	if status == http.StatusInternalServerError {
		logger.FromContext(r.Context()).Error("request failed", "error", err, "path", r.URL.Path)
		writeJSON(w, status, errorResponse{Error: "internal error"})
		return
	}
	writeJSON(w, status, errorResponse{Error: err.Error()})
}

func mapError(err error) int {
	switch {
	case errors.Is(err, domain.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrAccountNotFound),
		errors.Is(err, domain.ErrPlanNotFound),
		errors.Is(err, domain.ErrPositionNotFound),
		errors.Is(err, domain.ErrTransactionNotFound),
		errors.Is(err, wizard.ErrSessionNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrAuthenticationFailed):
		return http.StatusUnauthorized
	case errors.Is(err, authgate.ErrTooManyAttempts):
		return http.StatusTooManyRequests
	case errors.Is(err, domain.ErrInsufficientFunds),
		errors.Is(err, domain.ErrPlanLimitViolation),
		errors.Is(err, domain.ErrAccountInactive):
		return http.StatusUnprocessableEntity
	case errors.Is(err, domain.ErrPersistenceConflict):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
