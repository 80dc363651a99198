package core

import (
	"errors"
	"fmt"
	"strings"
)

// Error represents a classified session or media error.
type Error struct {
	Type       ErrorType `json:"type"`
	Message    string    `json:"message"`
	Param      string    `json:"param,omitempty"`
	Code       string    `json:"code,omitempty"`
	RetryAfter *int      `json:"retry_after,omitempty"`

	cause error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("%s: %s (code: %s)", e.Type, e.Message, e.Code)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// ErrorType categorizes errors.
type ErrorType string

const (
	ErrInvalidRequest ErrorType = "invalid_request_error"
	ErrAuthentication ErrorType = "authentication_error"
	ErrRateLimit      ErrorType = "rate_limit_error"
	ErrMedia          ErrorType = "media_error"
	ErrAPI            ErrorType = "api_error"
)

// NewInvalidRequestError creates an invalid request error.
func NewInvalidRequestError(message string) *Error {
	return &Error{
		Type:    ErrInvalidRequest,
		Message: message,
	}
}

// NewInvalidRequestErrorWithParam creates an invalid request error with a parameter.
func NewInvalidRequestErrorWithParam(message, param string) *Error {
	return &Error{
		Type:    ErrInvalidRequest,
		Message: message,
		Param:   param,
	}
}

// NewAuthenticationError creates an authentication error.
func NewAuthenticationError(message string) *Error {
	return &Error{
		Type:    ErrAuthentication,
		Message: message,
	}
}

// NewRateLimitError creates a rate limit error.
func NewRateLimitError(message string, retryAfter int) *Error {
	return &Error{
		Type:       ErrRateLimit,
		Message:    message,
		RetryAfter: &retryAfter,
	}
}

// NewMediaError creates a media device error.
func NewMediaError(message string, underlying error) *Error {
	return &Error{
		Type:    ErrMedia,
		Message: message,
		cause:   underlying,
	}
}

// NewAPIError creates a generic API error.
func NewAPIError(message string) *Error {
	return &Error{
		Type:    ErrAPI,
		Message: message,
	}
}

// WithCause attaches an underlying error for wrapping.
func (e *Error) WithCause(underlying error) *Error {
	e.cause = underlying
	return e
}

// IsRetryable returns true if the error is retryable.
func (e *Error) IsRetryable() bool {
	switch e.Type {
	case ErrRateLimit, ErrAPI:
		return true
	default:
		return false
	}
}

// Unwrap returns the underlying error for error wrapping.
func (e *Error) Unwrap() error {
	return e.cause
}

// AsError extracts a *Error from an error chain.
func AsError(err error) (*Error, bool) {
	var ce *Error
	if errors.As(err, &ce) {
		return ce, true
	}
	return nil, false
}

// authMarkers and quotaMarkers are the known substrings used to classify
// remote failures when no structured status is available. The remote service
// reports most setup failures as free-text close reasons.
var (
	authMarkers = []string{
		"api key",
		"api_key",
		"permission_denied",
		"unauthenticated",
		"unauthorized",
		"invalid credential",
		"expired",
		"forbidden",
	}
	quotaMarkers = []string{
		"quota",
		"resource_exhausted",
		"rate limit",
		"rate_limit",
		"too many requests",
	}
)

// ClassifyMessage maps a transport error message to one of the three
// remote-failure types: authentication, rate limit, or generic API.
func ClassifyMessage(message string) ErrorType {
	lower := strings.ToLower(message)
	for _, m := range authMarkers {
		if strings.Contains(lower, m) {
			return ErrAuthentication
		}
	}
	for _, m := range quotaMarkers {
		if strings.Contains(lower, m) {
			return ErrRateLimit
		}
	}
	return ErrAPI
}

// ClassifyStatusCode maps an HTTP status to a remote-failure type.
// Zero (no HTTP exchange) and unrecognized statuses fall back to ErrAPI.
func ClassifyStatusCode(status int) ErrorType {
	switch status {
	case 401, 403:
		return ErrAuthentication
	case 429:
		return ErrRateLimit
	default:
		return ErrAPI
	}
}
