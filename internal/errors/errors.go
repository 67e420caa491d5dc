package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorKind categorizes pipeline failures. User-visible messages are derived
// from the kind, never from raw transport or parse diagnostics.
type ErrorKind string

const (
	KindConfiguration ErrorKind = "configuration"
	KindTransport     ErrorKind = "transport"
	KindRateLimit     ErrorKind = "rate_limit"
	KindNetwork       ErrorKind = "network"
	KindTimeout       ErrorKind = "timeout"
	KindParsing       ErrorKind = "parsing"
	KindConfidence    ErrorKind = "confidence_too_low"
	KindCancelled     ErrorKind = "cancelled"
	KindBusy          ErrorKind = "busy"
	KindValidation    ErrorKind = "validation"
	KindInternal      ErrorKind = "internal"
)

// AppError is the structured error surfaced by every pipeline component.
type AppError struct {
	Kind       ErrorKind `json:"kind"`
	Message    string    `json:"message"`
	StatusCode int       `json:"status_code"`
	Cause      error     `json:"-"`
}

// Error implements the error interface.
func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap returns the underlying error.
func (e *AppError) Unwrap() error {
	return e.Cause
}

// UserMessage is the presentation-safe description of the failure. It never
// includes wrapped diagnostic detail.
func (e *AppError) UserMessage() string {
	switch e.Kind {
	case KindConfiguration:
		return "The analysis service is not configured."
	case KindTransport:
		return "The request could not be sent securely."
	case KindRateLimit:
		return "Too many requests. Please wait a moment and try again."
	case KindNetwork:
		return "A network problem interrupted the analysis."
	case KindTimeout:
		return "The analysis took too long. Please try again."
	case KindParsing:
		return "The menu could not be read. Please retake the photo."
	case KindConfidence:
		return "The photo was not clear enough. Please retake it."
	case KindCancelled:
		return "The analysis was cancelled."
	case KindBusy:
		return "An analysis is already in progress."
	default:
		return "Something went wrong during the analysis."
	}
}

// NewConfigurationError creates a configuration error.
func NewConfigurationError(message string, cause error) *AppError {
	return &AppError{Kind: KindConfiguration, Message: message, StatusCode: http.StatusServiceUnavailable, Cause: cause}
}

// NewTransportError creates a transport security violation error.
func NewTransportError(message string, cause error) *AppError {
	return &AppError{Kind: KindTransport, Message: message, StatusCode: http.StatusBadGateway, Cause: cause}
}

// NewRateLimitError creates a rate limit error.
func NewRateLimitError(message string, cause error) *AppError {
	return &AppError{Kind: KindRateLimit, Message: message, StatusCode: http.StatusTooManyRequests, Cause: cause}
}

// NewNetworkError creates a network error.
func NewNetworkError(message string, cause error) *AppError {
	return &AppError{Kind: KindNetwork, Message: message, StatusCode: http.StatusBadGateway, Cause: cause}
}

// NewTimeoutError creates a timeout error.
func NewTimeoutError(message string, cause error) *AppError {
	return &AppError{Kind: KindTimeout, Message: message, StatusCode: http.StatusGatewayTimeout, Cause: cause}
}

// NewParsingError creates a response parsing error.
func NewParsingError(message string, cause error) *AppError {
	return &AppError{Kind: KindParsing, Message: message, StatusCode: http.StatusUnprocessableEntity, Cause: cause}
}

// NewConfidenceError creates a confidence-floor error.
func NewConfidenceError(message string, cause error) *AppError {
	return &AppError{Kind: KindConfidence, Message: message, StatusCode: http.StatusUnprocessableEntity, Cause: cause}
}

// NewCancelledError creates a cancellation error.
func NewCancelledError(message string, cause error) *AppError {
	return &AppError{Kind: KindCancelled, Message: message, StatusCode: http.StatusRequestTimeout, Cause: cause}
}

// NewBusyError creates a concurrent-call rejection error.
func NewBusyError(message string, cause error) *AppError {
	return &AppError{Kind: KindBusy, Message: message, StatusCode: http.StatusConflict, Cause: cause}
}

// NewValidationError creates an input validation error.
func NewValidationError(message string, cause error) *AppError {
	return &AppError{Kind: KindValidation, Message: message, StatusCode: http.StatusBadRequest, Cause: cause}
}

// NewInternalError creates an internal error.
func NewInternalError(message string, cause error) *AppError {
	return &AppError{Kind: KindInternal, Message: message, StatusCode: http.StatusInternalServerError, Cause: cause}
}

// IsKind checks if the error (or any error it wraps) has the given kind.
func IsKind(err error, kind ErrorKind) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Kind == kind
	}
	return false
}

// GetStatusCode extracts the HTTP status code from an error.
func GetStatusCode(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.StatusCode
	}
	return http.StatusInternalServerError
}
