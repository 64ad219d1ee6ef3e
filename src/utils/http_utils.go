package utils

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/username/portafolio/backend/src/logger"
)

// GenerateETag creates a SHA256 hash of the JSON representation of the data.
func GenerateETag(data any) (string, error) {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return "", fmt.Errorf("failed to marshal data for ETag generation: %w", err)
	}
	hash := sha256.Sum256(jsonData)
	return hex.EncodeToString(hash[:]), nil
}

// RequestIDHeader carries the per-request id set by the request logger middleware.
const RequestIDHeader = "X-Request-Id"

// ErrorCode is the machine-readable reason of an API error.
type ErrorCode string

const (
	CodeInvalidRequest  ErrorCode = "invalid_request"
	CodeInvalidFile     ErrorCode = "invalid_file"
	CodeUnsupportedFile ErrorCode = "unsupported_file"
	CodeDuplicateFile   ErrorCode = "duplicate_file"
	CodeNotFound        ErrorCode = "not_found"
	CodeRateLimited     ErrorCode = "rate_limited"
	CodeInternal        ErrorCode = "internal_error"
)

// APIError is the body of every error response.
type APIError struct {
	Error     string    `json:"error"`
	Code      ErrorCode `json:"code"`
	Status    int       `json:"status"`
	RequestID string    `json:"requestId,omitempty"`
}

// SendJSONError writes an APIError with statusCode. The request id is taken from the
// response headers, so it is only present behind RequestLoggerMiddleware.
func SendJSONError(w http.ResponseWriter, code ErrorCode, message string, statusCode int) {
	body := APIError{
		Error:     message,
		Code:      code,
		Status:    statusCode,
		RequestID: w.Header().Get(RequestIDHeader),
	}
	logger.L.Warn("Sending JSON error to client", "message", message, "code", code, "statusCode", statusCode, "requestId", body.RequestID)
	SendJSON(w, body, statusCode)
}

// SendJSON writes data as a JSON body with statusCode.
func SendJSON(w http.ResponseWriter, data any, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logger.L.Error("Error encoding JSON response", "error", err)
	}
}
