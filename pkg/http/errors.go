package http

import (
	"encoding/json"
	"net/http"
)

// FieldError is one rejected request field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ErrorResponse represents a standard API error response
type ErrorResponse struct {
	Code        string       `json:"code"`                  // Machine-readable error code
	Message     string       `json:"message"`               // Human-readable message
	FieldErrors []FieldError `json:"fieldErrors,omitempty"` // Per-field validation failures
}

// WriteError writes a JSON error response with the given status code
func WriteError(w http.ResponseWriter, statusCode int, code, message string) {
	writeErrorResponse(w, statusCode, ErrorResponse{Code: code, Message: message})
}

// WriteValidationError writes a 400 carrying per-field messages
func WriteValidationError(w http.ResponseWriter, message string, fields []FieldError) {
	writeErrorResponse(w, http.StatusBadRequest, ErrorResponse{
		Code:        "ValidationError",
		Message:     message,
		FieldErrors: fields,
	})
}

func writeErrorResponse(w http.ResponseWriter, statusCode int, resp ErrorResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	// Log encoding errors but don't expose them to client
	_ = json.NewEncoder(w).Encode(resp)
}

// Common error writers for consistency
func WriteBadRequest(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusBadRequest, "BadRequest", message)
}

func WriteUnauthorized(w http.ResponseWriter, code, message string) {
	WriteError(w, http.StatusUnauthorized, code, message)
}

func WriteForbidden(w http.ResponseWriter, code, message string) {
	WriteError(w, http.StatusForbidden, code, message)
}

func WriteNotFound(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusNotFound, "NotFound", message)
}

func WriteTooManyRequests(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusTooManyRequests, "RateLimitExceeded", message)
}

func WriteInternalError(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusInternalServerError, "InternalServerError", message)
}
