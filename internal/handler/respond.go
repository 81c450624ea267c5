package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/ideageek/examiner/internal/engine"
	appI18n "github.com/ideageek/examiner/internal/i18n"
	"github.com/ideageek/examiner/internal/sheet"
)

// envelope wraps every JSON response.
type envelope struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Kind    string `json:"kind,omitempty"`
	Detail  string `json:"detail,omitempty"`
	Data    any    `json:"data,omitempty"`
}

// Error kinds reported in the envelope. They double as message IDs.
const (
	kindNotFound      = "NotFound"
	kindValidation    = "ValidationError"
	kindConfiguration = "ConfigurationError"
	kindExecution     = "EngineExecutionFailure"
	kindEmptyOutput   = "EmptyEngineOutput"
	kindMalformed     = "MalformedEngineResponse"
	kindTimeout       = "EngineTimeout"
	kindInternal      = "InternalError"
	kindUnauthorized  = "Unauthorized"
	kindForbidden     = "Forbidden"
)

// classify maps an error to an HTTP status and kind.
func classify(err error) (int, string) {
	switch {
	case errors.Is(err, sheet.ErrNotFound):
		return http.StatusNotFound, kindNotFound
	case errors.Is(err, sheet.ErrValidation):
		return http.StatusBadRequest, kindValidation
	case errors.Is(err, engine.ErrConfiguration):
		return http.StatusInternalServerError, kindConfiguration
	case errors.Is(err, engine.ErrExecution):
		return http.StatusBadGateway, kindExecution
	case errors.Is(err, engine.ErrEmptyOutput):
		return http.StatusBadGateway, kindEmptyOutput
	case errors.Is(err, engine.ErrMalformedResponse):
		return http.StatusBadGateway, kindMalformed
	case errors.Is(err, engine.ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, kindTimeout
	}
	return http.StatusInternalServerError, kindInternal
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("encode response", "error", err)
	}
}

func respondOK(w http.ResponseWriter, message string, data any) {
	writeJSON(w, http.StatusOK, envelope{Success: true, Message: message, Data: data})
}

// respondError writes a failure envelope. Internal errors are logged but
// their text is not returned to the client.
func respondError(w http.ResponseWriter, r *http.Request, err error) {
	status, kind := classify(err)
	env := envelope{Message: appI18n.T(r.Context(), kind), Kind: kind}
	if kind == kindInternal {
		slog.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
	} else {
		env.Detail = err.Error()
		slog.Warn("request rejected", "method", r.Method, "path", r.URL.Path, "kind", kind, "error", err)
	}
	writeJSON(w, status, env)
}

func respondStatus(w http.ResponseWriter, r *http.Request, status int, kind string) {
	writeJSON(w, status, envelope{Message: appI18n.T(r.Context(), kind), Kind: kind})
}
