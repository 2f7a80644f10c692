package response

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/coopdesk/backoffice/internal/domain"
)

// ErrorResponse is the standard error response format.
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail contains error information.
type ErrorDetail struct {
	Code    string       `json:"code"`
	Message string       `json:"message"`
	Details []ErrorField `json:"details,omitempty"`
}

// ErrorField describes a field-specific error.
type ErrorField struct {
	Field string `json:"field"`
	Issue string `json:"issue"`
}

// BadRequest sends a 400 Bad Request error.
func BadRequest(w http.ResponseWriter, message string) {
	Error(w, "INVALID_REQUEST", message, http.StatusBadRequest)
}

// ValidationError sends a 400 validation error with field details.
func ValidationError(w http.ResponseWriter, field, issue string) {
	write(w, http.StatusBadRequest, ErrorResponse{
		Error: ErrorDetail{
			Code:    "VALIDATION_ERROR",
			Message: "validation failed",
			Details: []ErrorField{
				{Field: field, Issue: issue},
			},
		},
	})
}

// NotFound sends a 404 Not Found error.
func NotFound(w http.ResponseWriter, resource string) {
	Error(w, "NOT_FOUND", resource+" not found", http.StatusNotFound)
}

// Unauthorized sends a 401 Unauthorized error.
func Unauthorized(w http.ResponseWriter, message string) {
	Error(w, "UNAUTHORIZED", message, http.StatusUnauthorized)
}

// UnprocessableEntity sends a 422 for requests that are well-formed but cannot be served.
func UnprocessableEntity(w http.ResponseWriter, code, message string) {
	Error(w, code, message, http.StatusUnprocessableEntity)
}

// InternalError sends a 500 Internal Server Error.
// Logs the error server-side with request context but returns a generic message to the client to prevent information disclosure.
func InternalError(w http.ResponseWriter, r *http.Request, err error) {
	if err != nil {
		slog.ErrorContext(r.Context(), "Internal server error", "error", err)
	}

	Error(w, "INTERNAL_ERROR", "an internal error occurred", http.StatusInternalServerError)
}

// Error sends a generic error response.
func Error(w http.ResponseWriter, code, message string, statusCode int) {
	write(w, statusCode, ErrorResponse{
		Error: ErrorDetail{
			Code:    code,
			Message: message,
		},
	})
}

func write(w http.ResponseWriter, statusCode int, body ErrorResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		slog.Error("Failed to write error response", "error", err)
	}
}

// FromDomainError maps domain errors to HTTP responses.
// Validation messages carry the wrapped error text, which names the field and operand.
func FromDomainError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	// Validation errors (400)
	case errors.Is(err, domain.ErrUnknownField):
		ValidationError(w, "field", err.Error())
	case errors.Is(err, domain.ErrModeNotSupported),
		errors.Is(err, domain.ErrRangeNotSupported),
		errors.Is(err, domain.ErrInvalidFilter):
		ValidationError(w, "filters", err.Error())
	case errors.Is(err, domain.ErrInvalidSort):
		ValidationError(w, "sort", err.Error())
	case errors.Is(err, domain.ErrInvalidPagination):
		ValidationError(w, "pagination", err.Error())
	case errors.Is(err, domain.ErrUnknownPreload):
		ValidationError(w, "preloads", err.Error())
	case errors.Is(err, domain.ErrInvalidExportFormat):
		ValidationError(w, "format", err.Error())
	case errors.Is(err, domain.ErrViewNameRequired):
		ValidationError(w, "name", "required field missing")
	case errors.Is(err, domain.ErrInvalidID):
		ValidationError(w, "id", "invalid ID format")
	case errors.Is(err, domain.ErrInvalidRequest):
		BadRequest(w, err.Error())

	// Not found errors (404)
	case errors.Is(err, domain.ErrViewNotFound):
		NotFound(w, "view")
	case errors.Is(err, domain.ErrNotFound):
		NotFound(w, "resource")

	// Auth errors (401)
	case errors.Is(err, domain.ErrUnauthorized):
		Unauthorized(w, "invalid or missing bearer token")

	// Nothing matched the export (422)
	case errors.Is(err, domain.ErrEmptyExport):
		UnprocessableEntity(w, "EMPTY_EXPORT", "no rows match the export request")

	// Unknown errors (500) - Log server-side, return generic message to client
	default:
		InternalError(w, r, err)
	}
}
