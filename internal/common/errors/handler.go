// internal/common/errors/handler.go
package errors

import (
	"encoding/json"
	"net/http"
)

// ErrorResponder converts errors into HTTP responses at the API boundary.
type ErrorResponder struct {
	logger Logger
}

type Logger interface {
	Warn(msg string, fields map[string]interface{})
	Error(msg string, fields map[string]interface{})
}

// ErrorBody is the JSON shape written for every failed request.
type ErrorBody struct {
	Detail string    `json:"detail"`
	Code   ErrorCode `json:"code"`
}

func NewErrorResponder(logger Logger) *ErrorResponder {
	return &ErrorResponder{logger: logger}
}

// HTTPStatus maps an error code to its HTTP status.
func HTTPStatus(code ErrorCode) int {
	switch code {
	case ErrCodeNotFound:
		return http.StatusNotFound
	case ErrCodeNoCandidate, ErrCodeInvalidInput, ErrCodeInvalidDescriptor:
		return http.StatusBadRequest
	case ErrCodeRateLimited:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

// PublicMessage is the message exposed to API callers. Server-side failures
// never leak their details.
func PublicMessage(stdErr *StandardError) string {
	switch stdErr.Code {
	case ErrCodeNoCandidate:
		return "No suitable AI found"
	case ErrCodeNotFound:
		return "AI not found"
	case ErrCodeInvalidInput, ErrCodeInvalidDescriptor:
		if stdErr.Details != "" {
			return stdErr.Details
		}
		return stdErr.Message
	case ErrCodeRateLimited:
		return "Rate limit exceeded"
	default:
		return "Internal server error"
	}
}

// Respond logs err and writes the mapped status and body.
func (h *ErrorResponder) Respond(w http.ResponseWriter, r *http.Request, err error) {
	stdErr := AsStandard(err)
	status := HTTPStatus(stdErr.Code)

	h.logError(r, stdErr, status)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(ErrorBody{
		Detail: PublicMessage(stdErr),
		Code:   stdErr.Code,
	})
}

func (h *ErrorResponder) logError(r *http.Request, stdErr *StandardError, status int) {
	fields := map[string]interface{}{
		"method":        r.Method,
		"path":          r.URL.Path,
		"status":        status,
		"errorCode":     string(stdErr.Code),
		"message":       stdErr.Message,
		"details":       stdErr.Details,
		"retryable":     stdErr.Retryable,
		"errorCategory": GetErrorCategory(stdErr.Code),
	}
	for k, v := range stdErr.Metadata {
		fields[k] = v
	}

	if status >= http.StatusInternalServerError {
		h.logger.Error("Request failed", fields)
		return
	}
	h.logger.Warn("Request rejected", fields)
}
