package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/scam-scanner/internal/types"
)

// ErrorResponse represents an API error response.
type ErrorResponse struct {
	Error types.ServiceError `json:"error"`
}

// respondError sends an error response.
func respondError(w http.ResponseWriter, statusCode int, code, message string, details map[string]interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	response := ErrorResponse{
		Error: types.ServiceError{
			Code:    code,
			Message: message,
			Details: details,
		},
	}

	json.NewEncoder(w).Encode(response)
}

// respondJSON sends a JSON response.
func respondJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

// parseJSONBody parses a JSON request body.
func parseJSONBody(r *http.Request, v interface{}) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	return decoder.Decode(v)
}

// Common error codes
const (
	ErrCodeInvalidInput    = "INVALID_INPUT"
	ErrCodeNotFound        = "NOT_FOUND"
	ErrCodeForbidden       = "FORBIDDEN"
	ErrCodePremiumRequired = "PREMIUM_REQUIRED"
	ErrCodeModelFailed     = "MODEL_FAILED"
	ErrCodeInternalError   = "INTERNAL_ERROR"
)

// mapServiceError maps service errors to HTTP status codes. Internal detail
// never leaks to the caller; unknown errors collapse to a generic message.
func mapServiceError(err error) (int, string, string, map[string]interface{}) {
	var serviceErr *types.ServiceError
	if errors.As(err, &serviceErr) {
		switch serviceErr.Code {
		case "VALIDATION_ERROR", "INVALID_EMAIL":
			return http.StatusBadRequest, ErrCodeInvalidInput, serviceErr.Message, serviceErr.Details
		case "PREMIUM_REQUIRED":
			return http.StatusForbidden, ErrCodePremiumRequired, serviceErr.Message, serviceErr.Details
		case "FORBIDDEN":
			return http.StatusForbidden, ErrCodeForbidden, serviceErr.Message, serviceErr.Details
		case "NOT_FOUND":
			return http.StatusNotFound, ErrCodeNotFound, serviceErr.Message, serviceErr.Details
		case "MODEL_FAILED":
			return http.StatusBadGateway, ErrCodeModelFailed, serviceErr.Message, serviceErr.Details
		default:
			return http.StatusInternalServerError, ErrCodeInternalError, "An internal error occurred", nil
		}
	}

	return http.StatusInternalServerError, ErrCodeInternalError, "An internal error occurred", nil
}

// respondServiceError maps and sends a service error.
func respondServiceError(w http.ResponseWriter, err error) {
	status, code, message, details := mapServiceError(err)
	respondError(w, status, code, message, details)
}
