// Package errors provides standardized error handling for the request router.
package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
	"time"
)

// ==========================
// 1. Standard Error Types
// ==========================

// ErrorCode represents standardized internal error codes.
type ErrorCode string

const (
	ErrCodeNotFound               ErrorCode = "NOT_FOUND"
	ErrCodeNoCandidate            ErrorCode = "NO_CANDIDATE"
	ErrCodeModuleResolutionFailed ErrorCode = "MODULE_RESOLUTION_FAILED"
	ErrCodeUnsupportedType        ErrorCode = "UNSUPPORTED_TYPE"
	ErrCodeDispatchFailed         ErrorCode = "DISPATCH_FAILED"
	ErrCodeDispatchTimeout        ErrorCode = "DISPATCH_TIMEOUT"

	ErrCodeInvalidDescriptor   ErrorCode = "INVALID_DESCRIPTOR"
	ErrCodeRegistryUnavailable ErrorCode = "REGISTRY_UNAVAILABLE"

	ErrCodeInvalidInput      ErrorCode = "INVALID_INPUT"
	ErrCodeOutputUnavailable ErrorCode = "OUTPUT_UNAVAILABLE"
	ErrCodeRateLimited       ErrorCode = "RATE_LIMITED"
	ErrCodeInternal          ErrorCode = "INTERNAL_ERROR"
)

// StandardError represents a structured application error.
type StandardError struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   string                 `json:"details,omitempty"`
	Retryable bool                   `json:"retryable"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Timestamp time.Time              `json:"timestamp"`

	cause error
}

func (e *StandardError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("StandardError[%s]: %s (%s)", e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("StandardError[%s]: %s", e.Code, e.Message)
}

func (e *StandardError) Unwrap() error {
	return e.cause
}

// Is matches any StandardError carrying the same code, so callers can write
// errors.Is(err, errors.ErrNotFound).
func (e *StandardError) Is(target error) bool {
	t, ok := target.(*StandardError)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// WithMetadata attaches a key to the error and returns it for chaining.
func (e *StandardError) WithMetadata(key string, value interface{}) *StandardError {
	if e.Metadata == nil {
		e.Metadata = make(map[string]interface{})
	}
	e.Metadata[key] = value
	return e
}

// Sentinels for errors.Is comparisons.
var (
	ErrNotFound               = &StandardError{Code: ErrCodeNotFound}
	ErrNoCandidate            = &StandardError{Code: ErrCodeNoCandidate}
	ErrModuleResolutionFailed = &StandardError{Code: ErrCodeModuleResolutionFailed}
	ErrUnsupportedType        = &StandardError{Code: ErrCodeUnsupportedType}
	ErrDispatchFailed         = &StandardError{Code: ErrCodeDispatchFailed}
	ErrDispatchTimeout        = &StandardError{Code: ErrCodeDispatchTimeout}
	ErrInvalidDescriptor      = &StandardError{Code: ErrCodeInvalidDescriptor}
	ErrRegistryUnavailable    = &StandardError{Code: ErrCodeRegistryUnavailable}
	ErrInvalidInput           = &StandardError{Code: ErrCodeInvalidInput}
	ErrOutputUnavailable      = &StandardError{Code: ErrCodeOutputUnavailable}
	ErrRateLimited            = &StandardError{Code: ErrCodeRateLimited}
	ErrInternal               = &StandardError{Code: ErrCodeInternal}
)

// ==========================
// 2. Error Constructors
// ==========================

// NewNotFoundError reports a backend id absent from the registry.
func NewNotFoundError(id string) *StandardError {
	return &StandardError{
		Code:      ErrCodeNotFound,
		Message:   "AI not found",
		Details:   fmt.Sprintf("id: %s", id),
		Retryable: false,
		Metadata:  map[string]interface{}{"id": id},
		Timestamp: time.Now().UTC(),
	}
}

// NewNoCandidateError is returned by selection over an empty registry.
func NewNoCandidateError() *StandardError {
	return &StandardError{
		Code:      ErrCodeNoCandidate,
		Message:   "No suitable AI found",
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewModuleResolutionFailedError wraps a failure to resolve or construct a handler module.
func NewModuleResolutionFailedError(module string, err error) *StandardError {
	details := fmt.Sprintf("module: %s", module)
	if err != nil {
		details = fmt.Sprintf("module: %s, error: %s", module, err.Error())
	}
	return &StandardError{
		Code:      ErrCodeModuleResolutionFailed,
		Message:   "Failed to resolve backend module",
		Details:   details,
		Retryable: false,
		Metadata:  map[string]interface{}{"module": module},
		Timestamp: time.Now().UTC(),
		cause:     err,
	}
}

// NewUnsupportedTypeError reports a backend type with no dispatch handler.
func NewUnsupportedTypeError(backendType string) *StandardError {
	return &StandardError{
		Code:      ErrCodeUnsupportedType,
		Message:   "Unsupported AI type",
		Details:   fmt.Sprintf("type: %s", backendType),
		Retryable: false,
		Metadata:  map[string]interface{}{"type": backendType},
		Timestamp: time.Now().UTC(),
	}
}

// NewDispatchFailedError wraps a transport or adapter failure.
func NewDispatchFailedError(id string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeDispatchFailed,
		Message:   "Dispatch to backend failed",
		Details:   err.Error(),
		Retryable: true,
		Metadata:  map[string]interface{}{"id": id},
		Timestamp: time.Now().UTC(),
		cause:     err,
	}
}

// NewDispatchStatusError reports a non-2xx response from a remote backend.
func NewDispatchStatusError(id string, status int) *StandardError {
	return &StandardError{
		Code:      ErrCodeDispatchFailed,
		Message:   "Backend returned an error status",
		Details:   fmt.Sprintf("status: %d", status),
		Retryable: status >= 500 || status == 429,
		Metadata:  map[string]interface{}{"id": id, "status": status},
		Timestamp: time.Now().UTC(),
	}
}

// NewDispatchTimeoutError reports a dispatch exceeding its deadline.
func NewDispatchTimeoutError(id string, err error) *StandardError {
	details := "dispatch exceeded its deadline"
	if err != nil {
		details = err.Error()
	}
	return &StandardError{
		Code:      ErrCodeDispatchTimeout,
		Message:   "Dispatch to backend timed out",
		Details:   details,
		Retryable: true,
		Metadata:  map[string]interface{}{"id": id},
		Timestamp: time.Now().UTC(),
		cause:     err,
	}
}

func NewInvalidDescriptorError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeInvalidDescriptor,
		Message:   "Invalid AI descriptor",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewRegistryUnavailableError wraps a store failure.
func NewRegistryUnavailableError(op string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeRegistryUnavailable,
		Message:   "Registry store unavailable",
		Details:   fmt.Sprintf("op: %s, error: %s", op, err.Error()),
		Retryable: true,
		Metadata:  map[string]interface{}{"op": op},
		Timestamp: time.Now().UTC(),
		cause:     err,
	}
}

func NewInvalidInputError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeInvalidInput,
		Message:   "Invalid input",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewOutputUnavailableError wraps a failure in the text-to-speech service.
func NewOutputUnavailableError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeOutputUnavailable,
		Message:   "Output service unavailable",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
		cause:     err,
	}
}

func NewRateLimitedError(client string) *StandardError {
	return &StandardError{
		Code:      ErrCodeRateLimited,
		Message:   "Rate limit exceeded",
		Details:   fmt.Sprintf("client: %s", client),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

func NewInternalError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeInternal,
		Message:   "Unexpected error",
		Details:   err.Error(),
		Retryable: false,
		Timestamp: time.Now().UTC(),
		cause:     err,
	}
}

// ==========================
// 3. Utility Functions
// ==========================

// AsStandard returns the StandardError in err's chain, or wraps err as INTERNAL_ERROR.
func AsStandard(err error) *StandardError {
	if err == nil {
		return nil
	}
	var stdErr *StandardError
	if stderrors.As(err, &stdErr) {
		return stdErr
	}
	return NewInternalError(err)
}

// CodeOf returns the code of the StandardError in err's chain, or INTERNAL_ERROR.
func CodeOf(err error) ErrorCode {
	return AsStandard(err).Code
}

// IsRetryableErrorCode reports whether callers may retry an operation failing with code.
func IsRetryableErrorCode(code ErrorCode) bool {
	switch code {
	case ErrCodeDispatchFailed,
		ErrCodeDispatchTimeout,
		ErrCodeRegistryUnavailable,
		ErrCodeOutputUnavailable,
		ErrCodeRateLimited:
		return true
	default:
		return false
	}
}

// GetErrorCategory returns the category of the error code.
func GetErrorCategory(code ErrorCode) string {
	codeStr := string(code)
	switch {
	case strings.Contains(codeStr, "DISPATCH") || strings.Contains(codeStr, "MODULE") || code == ErrCodeUnsupportedType:
		return "DISPATCH"
	case code == ErrCodeNotFound || code == ErrCodeNoCandidate || strings.Contains(codeStr, "REGISTRY"):
		return "REGISTRY"
	case strings.Contains(codeStr, "INVALID"):
		return "VALIDATION"
	case strings.Contains(codeStr, "OUTPUT"):
		return "OUTPUT"
	case code == ErrCodeRateLimited:
		return "RATE_LIMIT"
	default:
		return "OTHER"
	}
}
