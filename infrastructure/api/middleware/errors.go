package middleware

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/helixml/pantry/application/service"
	"github.com/helixml/pantry/domain/recipe"
	"github.com/helixml/pantry/domain/search"
	"github.com/helixml/pantry/internal/log"
)

// APIError is an error that carries its own HTTP status.
type APIError struct {
	code    int
	message string
	cause   error
}

// NewAPIError creates a new APIError.
func NewAPIError(code int, message string, cause error) *APIError {
	return &APIError{code: code, message: message, cause: cause}
}

// Error implements the error interface.
func (e *APIError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("api error %d: %s: %v", e.code, e.message, e.cause)
	}
	return fmt.Sprintf("api error %d: %s", e.code, e.message)
}

// Unwrap returns the underlying cause.
func (e *APIError) Unwrap() error { return e.cause }

// Code returns the HTTP status code.
func (e *APIError) Code() int { return e.code }

// Message returns the client-facing message.
func (e *APIError) Message() string { return e.message }

// ErrorBody is the JSON error payload.
type ErrorBody struct {
	Status        int    `json:"status"`
	Title         string `json:"title"`
	Detail        string `json:"detail,omitempty"`
	CorrelationID string `json:"correlation_id,omitempty"`
}

// ErrorResponse wraps ErrorBody.
type ErrorResponse struct {
	Error ErrorBody `json:"error"`
}

// WriteError maps err to a status code and writes a JSON error response.
// Provider failures are reported as 503 without their cause.
func WriteError(w http.ResponseWriter, r *http.Request, err error, logger *slog.Logger) {
	status := http.StatusInternalServerError
	title := "Internal Server Error"
	detail := ""

	var apiErr *APIError
	switch {
	case errors.As(err, &apiErr):
		status = apiErr.Code()
		title = http.StatusText(status)
		detail = apiErr.Message()
	case errors.Is(err, search.ErrInvalidQuery):
		status = http.StatusBadRequest
		title = "Invalid Query"
		detail = err.Error()
	case errors.Is(err, recipe.ErrNotFound):
		status = http.StatusNotFound
		title = "Not Found"
		detail = "recipe not found"
	case errors.Is(err, search.ErrEmbeddingUnavailable):
		status = http.StatusServiceUnavailable
		title = "Service Unavailable"
		detail = "search is temporarily unavailable"
	case errors.Is(err, service.ErrClientClosed):
		status = http.StatusServiceUnavailable
		title = "Service Unavailable"
		detail = "server is shutting down"
	}

	ctx := r.Context()
	if logger != nil {
		level := slog.LevelWarn
		if status >= http.StatusInternalServerError {
			level = slog.LevelError
		}
		logger.Log(ctx, level, "request error",
			slog.Int("status", status),
			slog.String("path", r.URL.Path),
			slog.Any("error", err),
		)
	}

	WriteJSON(w, status, ErrorResponse{Error: ErrorBody{
		Status:        status,
		Title:         title,
		Detail:        detail,
		CorrelationID: log.CorrelationID(ctx),
	}})
}

// WriteJSON writes a JSON response.
func WriteJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}
