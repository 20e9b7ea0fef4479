// Package httpserver contains HTTP handlers and middleware.
//
// It exposes the analysis, evaluation and upload operations over JSON and
// maps the domain error taxonomy onto HTTP status codes.
package httpserver

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/fairyhunter13/coverletter-assistant/internal/domain"
)

type errorEnvelope struct {
	Error apiError `json:"error"`
}

type apiError struct {
	Code    string      `json:"code"`
	Message string      `json:"message"`
	Details interface{} `json:"details"`
}

// failureEnvelope is the {success:false, error, retryable} body returned when
// an analysis cannot produce a result.
type failureEnvelope struct {
	domain.Outcome
	Kind     domain.ErrorKind           `json:"kind,omitempty"`
	Attempts []domain.CompletionAttempt `json:"attempts,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, _ *http.Request, err error, details interface{}) {
	code := http.StatusInternalServerError
	codeStr := "INTERNAL"
	switch {
	case errors.Is(err, domain.ErrInvalidArgument):
		code = http.StatusBadRequest
		codeStr = "INVALID_ARGUMENT"
	case errors.Is(err, domain.ErrNotFound):
		code = http.StatusNotFound
		codeStr = "NOT_FOUND"
	case errors.Is(err, domain.ErrInvalidConfiguration):
		code = http.StatusServiceUnavailable
		codeStr = "NOT_CONFIGURED"
	case errors.Is(err, domain.ErrRateLimited):
		code = http.StatusTooManyRequests
		codeStr = "RATE_LIMITED"
	}
	writeJSON(w, code, errorEnvelope{Error: apiError{Code: codeStr, Message: err.Error(), Details: details}})
}

// writeAnalysisError renders a failed analysis. Argument errors use the
// regular error envelope; orchestration failures use the outcome envelope
// with 503 when retrying may help and 502 when it will not.
func writeAnalysisError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, domain.ErrInvalidArgument) {
		writeError(w, r, err, nil)
		return
	}
	env := failureEnvelope{Outcome: domain.OutcomeFrom(err)}
	var ce *domain.CompletionError
	if errors.As(err, &ce) {
		env.Kind = ce.Kind
		env.Attempts = ce.Attempts
	}
	status := http.StatusBadGateway
	if env.Retryable {
		status = http.StatusServiceUnavailable
	}
	if errors.Is(err, domain.ErrRateLimited) {
		w.Header().Set("Retry-After", "30")
	}
	writeJSON(w, status, env)
}
