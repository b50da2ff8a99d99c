package httpapi

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/dmitrymomot/snapmeal/internal/analysis"
	"github.com/dmitrymomot/snapmeal/internal/grant"
	"github.com/dmitrymomot/snapmeal/internal/meal"
)

// errorResponse is the uniform error body.
type errorResponse struct {
	Code      string            `json:"code"`
	Message   string            `json:"message"`
	Fields    []meal.FieldError `json:"fields,omitempty"`
	RequestID string            `json:"request_id,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if v != nil {
		json.NewEncoder(w).Encode(v) //nolint:errcheck
	}
}

func writeError(w http.ResponseWriter, r *http.Request, status int, code, message string, fields []meal.FieldError) {
	writeJSON(w, status, errorResponse{
		Code:      code,
		Message:   message,
		Fields:    fields,
		RequestID: RequestIDFromContext(r.Context()),
	})
}

// respondError maps domain errors onto HTTP statuses. Anything unmapped is a
// 500 with the detail kept out of the response body.
func respondError(w http.ResponseWriter, r *http.Request, log *slog.Logger, err error) {
	var verr *meal.ValidationError
	switch {
	case errors.As(err, &verr):
		writeError(w, r, http.StatusBadRequest, "validation_failed", "validation failed", verr.Fields)
	case errors.Is(err, grant.ErrUnsupportedMediaType):
		writeError(w, r, http.StatusUnsupportedMediaType, "unsupported_media_type", err.Error(), nil)
	case errors.Is(err, grant.ErrPayloadTooLarge):
		writeError(w, r, http.StatusRequestEntityTooLarge, "payload_too_large", err.Error(), nil)
	case errors.Is(err, grant.ErrInvalidSize):
		writeError(w, r, http.StatusBadRequest, "invalid_size", err.Error(), nil)
	case errors.Is(err, meal.ErrRecordNotFound):
		writeError(w, r, http.StatusNotFound, "not_found", "meal record not found", nil)
	case errors.Is(err, meal.ErrNotOwner), errors.Is(err, analysis.ErrKeyOutsideNamespace):
		writeError(w, r, http.StatusForbidden, "forbidden", "access denied", nil)
	case errors.Is(err, analysis.ErrObjectNotFound):
		writeError(w, r, http.StatusNotFound, "photo_not_found", "photo not found in storage", nil)
	case errors.Is(err, analysis.ErrAnalysisFailed):
		writeError(w, r, http.StatusBadGateway, "analysis_failed", err.Error(), nil)
	default:
		log.ErrorContext(r.Context(), "request failed",
			slog.String("path", r.URL.Path),
			slog.Any("error", err))
		writeError(w, r, http.StatusInternalServerError, "internal_error", "internal server error", nil)
	}
}
