package llmclient

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
)

// ErrorType classifies model API failures for retry decisions.
type ErrorType int

const (
	// ErrorTypeUnknown is the default for unclassified failures.
	ErrorTypeUnknown ErrorType = iota
	// ErrorTypeRateLimit covers 429 and quota responses.
	ErrorTypeRateLimit
	// ErrorTypeTransient covers 5xx, overload, and network failures.
	ErrorTypeTransient
	// ErrorTypeAuth covers 401/403; retrying cannot help.
	ErrorTypeAuth
	// ErrorTypeBadRequest covers 400-class request problems; retrying cannot help.
	ErrorTypeBadRequest
)

func (t ErrorType) String() string {
	switch t {
	case ErrorTypeRateLimit:
		return "rate_limit"
	case ErrorTypeTransient:
		return "transient"
	case ErrorTypeAuth:
		return "auth"
	case ErrorTypeBadRequest:
		return "bad_request"
	default:
		return "unknown"
	}
}

// APIError is a classified model API failure.
type APIError struct {
	Type       ErrorType
	StatusCode int
	Message    string
	Err        error
}

func (e *APIError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("model API error (%s, status %d): %s", e.Type, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("model API error (%s): %s", e.Type, e.Message)
}

func (e *APIError) Unwrap() error {
	return e.Err
}

// IsRateLimit reports whether err is a rate-limit failure.
func IsRateLimit(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Type == ErrorTypeRateLimit
}

// IsRetryable reports whether a later attempt could succeed. Everything is
// retryable unless classified auth or bad request; plain errors from outside
// the API client are not retried.
func IsRetryable(err error) bool {
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	switch apiErr.Type {
	case ErrorTypeAuth, ErrorTypeBadRequest:
		return false
	default:
		return true
	}
}

// classifyError maps SDK and transport failures onto an APIError.
func classifyError(err error) *APIError {
	if errors.Is(err, context.DeadlineExceeded) {
		return &APIError{Type: ErrorTypeTransient, Message: "request timed out", Err: err}
	}
	if errors.Is(err, context.Canceled) {
		return &APIError{Type: ErrorTypeTransient, Message: "request canceled", Err: err}
	}

	var sdkErr *anthropic.Error
	if errors.As(err, &sdkErr) {
		switch sdkErr.StatusCode {
		case http.StatusTooManyRequests:
			return &APIError{Type: ErrorTypeRateLimit, StatusCode: sdkErr.StatusCode, Message: "rate limit exceeded", Err: err}
		case http.StatusUnauthorized, http.StatusForbidden:
			return &APIError{Type: ErrorTypeAuth, StatusCode: sdkErr.StatusCode, Message: "authentication failed", Err: err}
		case http.StatusBadRequest, http.StatusNotFound, http.StatusRequestEntityTooLarge, http.StatusUnprocessableEntity:
			return &APIError{Type: ErrorTypeBadRequest, StatusCode: sdkErr.StatusCode, Message: "invalid request", Err: err}
		case http.StatusInternalServerError, http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout,
			529: // Anthropic overloaded_error
			return &APIError{Type: ErrorTypeTransient, StatusCode: sdkErr.StatusCode, Message: "server error", Err: err}
		}
		return &APIError{Type: ErrorTypeUnknown, StatusCode: sdkErr.StatusCode, Message: "unexpected API failure", Err: err}
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "rate") || strings.Contains(msg, "quota"):
		return &APIError{Type: ErrorTypeRateLimit, Message: "rate limiting detected", Err: err}
	case strings.Contains(msg, "timeout") || strings.Contains(msg, "connection") ||
		strings.Contains(msg, "eof") || strings.Contains(msg, "reset"):
		return &APIError{Type: ErrorTypeTransient, Message: "network error", Err: err}
	}
	return &APIError{Type: ErrorTypeUnknown, Message: "unclassified error", Err: err}
}
