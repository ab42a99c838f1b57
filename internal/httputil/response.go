// Package httputil provides the response helpers and HTTP middleware shared
// by the abbreviation service handlers.
package httputil

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/rs/zerolog/log"

	"git.cscs.ch/openchami/chamicore-abbrev/pkg/types"
)

const (
	contentTypeJSON    = "application/json"
	contentTypeProblem = "application/problem+json"
	contentTypeText    = "text/plain; charset=utf-8"
)

// ValidationError is a field-level validation failure.
type ValidationError struct {
	Field   string
	Message string
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return e.Field + ": " + e.Message
}

// RespondJSON writes v as a JSON body with the given status code.
func RespondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", contentTypeJSON)
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("failed to encode JSON response")
	}
}

// RespondText writes a plain-text body with the given status code.
func RespondText(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", contentTypeText)
	w.WriteHeader(status)
	_, _ = w.Write([]byte(body))
}

// RespondProblem writes an RFC 9457 problem document.
func RespondProblem(w http.ResponseWriter, r *http.Request, status int, detail string) {
	writeProblem(w, types.ProblemDetail{
		Type:     "about:blank",
		Title:    http.StatusText(status),
		Status:   status,
		Detail:   detail,
		Instance: r.URL.Path,
	})
}

// RespondProblemf is RespondProblem with a formatted detail.
func RespondProblemf(w http.ResponseWriter, r *http.Request, status int, format string, args ...any) {
	RespondProblem(w, r, status, fmt.Sprintf(format, args...))
}

// RespondValidationProblem writes a 422 problem document listing errs.
func RespondValidationProblem(w http.ResponseWriter, r *http.Request, errs []ValidationError) {
	fields := make([]types.FieldError, len(errs))
	for i, e := range errs {
		fields[i] = types.FieldError{Field: e.Field, Message: e.Message}
	}
	writeProblem(w, types.ProblemDetail{
		Type:     "about:blank",
		Title:    http.StatusText(http.StatusUnprocessableEntity),
		Status:   http.StatusUnprocessableEntity,
		Detail:   "request validation failed",
		Instance: r.URL.Path,
		Errors:   fields,
	})
}

func writeProblem(w http.ResponseWriter, p types.ProblemDetail) {
	w.Header().Set("Content-Type", contentTypeProblem)
	w.WriteHeader(p.Status)
	if err := json.NewEncoder(w).Encode(p); err != nil {
		log.Error().Err(err).Msg("failed to encode problem response")
	}
}
