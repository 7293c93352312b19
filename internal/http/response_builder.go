package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"budgetd/internal/budget"
	"budgetd/internal/core"
	applog "budgetd/internal/log"
	"budgetd/internal/store"
)

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		applog.FromContext(r.Context()).ErrorContext(r.Context(), "Failed to encode response", applog.FieldError, err)
	}
}

func writeError(w http.ResponseWriter, r *http.Request, status int, message string) {
	writeJSON(w, r, status, errorResponse{Error: message})
}

// statusFor maps domain errors to HTTP statuses. Anything unknown is a 500
// and its text is not echoed to the client.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, core.ErrInvalidMonth):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, core.ErrInvalidAmount),
		errors.Is(err, core.ErrNegativeBudget),
		errors.Is(err, core.ErrEmptyName),
		errors.Is(err, core.ErrInvalidCategoryType),
		errors.Is(err, core.ErrNestedCategory),
		errors.Is(err, core.ErrMissingCategory):
		return http.StatusUnprocessableEntity, err.Error()
	case errors.Is(err, budget.ErrCategoryNotFound), errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound, err.Error()
	case errors.Is(err, budget.ErrNotLoaded), errors.Is(err, budget.ErrSessionClosed):
		return http.StatusServiceUnavailable, "budget is not available yet, try again shortly"
	default:
		return http.StatusInternalServerError, "internal error"
	}
}

// writeDomainError logs server-side failures and answers with statusFor.
func writeDomainError(w http.ResponseWriter, r *http.Request, op string, err error) {
	status, msg := statusFor(err)
	if status >= http.StatusInternalServerError {
		applog.FromContext(r.Context()).ErrorContext(r.Context(), "Request failed",
			applog.FieldOperation, op, applog.FieldError, err)
	}
	writeError(w, r, status, msg)
}
