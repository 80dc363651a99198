package core

import (
	"errors"
	"fmt"
	"testing"
)

func TestError_Error(t *testing.T) {
	err := &Error{
		Type:    ErrInvalidRequest,
		Message: "invalid sample rate",
	}

	expected := "invalid_request_error: invalid sample rate"
	if err.Error() != expected {
		t.Errorf("Error() = %q, want %q", err.Error(), expected)
	}
}

func TestError_WithCode(t *testing.T) {
	err := &Error{
		Type:    ErrRateLimit,
		Message: "too many requests",
		Code:    "rate_limit_exceeded",
	}

	expected := "rate_limit_error: too many requests (code: rate_limit_exceeded)"
	if err.Error() != expected {
		t.Errorf("Error() = %q, want %q", err.Error(), expected)
	}
}

func TestNewInvalidRequestError(t *testing.T) {
	err := NewInvalidRequestError("bad request")
	if err.Type != ErrInvalidRequest {
		t.Errorf("Type = %v, want %v", err.Type, ErrInvalidRequest)
	}
	if err.Message != "bad request" {
		t.Errorf("Message = %q, want %q", err.Message, "bad request")
	}
}

func TestNewAuthenticationError(t *testing.T) {
	err := NewAuthenticationError("invalid API key")
	if err.Type != ErrAuthentication {
		t.Errorf("Type = %v, want %v", err.Type, ErrAuthentication)
	}
}

func TestNewRateLimitError(t *testing.T) {
	err := NewRateLimitError("rate limit exceeded", 60)
	if err.Type != ErrRateLimit {
		t.Errorf("Type = %v, want %v", err.Type, ErrRateLimit)
	}
	if err.RetryAfter == nil || *err.RetryAfter != 60 {
		t.Errorf("RetryAfter = %v, want 60", err.RetryAfter)
	}
}

func TestNewMediaError(t *testing.T) {
	underlying := errors.New("device init failed")
	err := NewMediaError("microphone unavailable", underlying)

	if err.Type != ErrMedia {
		t.Errorf("Type = %v, want %v", err.Type, ErrMedia)
	}
	if !errors.Is(err, underlying) {
		t.Error("expected errors.Is to find the underlying error")
	}
}

func TestError_IsRetryable(t *testing.T) {
	tests := []struct {
		errType ErrorType
		want    bool
	}{
		{ErrRateLimit, true},
		{ErrAPI, true},
		{ErrInvalidRequest, false},
		{ErrAuthentication, false},
		{ErrMedia, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.errType), func(t *testing.T) {
			err := &Error{Type: tt.errType, Message: "test"}
			if got := err.IsRetryable(); got != tt.want {
				t.Errorf("IsRetryable() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestAsError(t *testing.T) {
	inner := NewAuthenticationError("key rejected")
	wrapped := fmt.Errorf("open session: %w", inner)

	got, ok := AsError(wrapped)
	if !ok {
		t.Fatal("expected AsError to find *Error in chain")
	}
	if got.Type != ErrAuthentication {
		t.Errorf("Type = %v, want %v", got.Type, ErrAuthentication)
	}

	if _, ok := AsError(errors.New("plain")); ok {
		t.Error("expected AsError to miss on a plain error")
	}
}

func TestClassifyMessage(t *testing.T) {
	tests := []struct {
		name    string
		message string
		want    ErrorType
	}{
		{"api key invalid", "API key not valid. Please pass a valid API key.", ErrAuthentication},
		{"permission denied", "generic::permission_denied: consumer suspended", ErrAuthentication},
		{"unauthenticated", "Request had invalid authentication credentials: UNAUTHENTICATED", ErrAuthentication},
		{"forbidden", "403 Forbidden", ErrAuthentication},
		{"quota", "Quota exceeded for quota metric 'GenerateContent requests'", ErrRateLimit},
		{"resource exhausted", "generic::resource_exhausted: try again later", ErrRateLimit},
		{"rate limit", "You have hit the rate limit for this model", ErrRateLimit},
		{"too many requests", "429 Too Many Requests", ErrRateLimit},
		{"internal", "Internal error encountered.", ErrAPI},
		{"empty", "", ErrAPI},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ClassifyMessage(tt.message); got != tt.want {
				t.Errorf("ClassifyMessage(%q) = %v, want %v", tt.message, got, tt.want)
			}
		})
	}
}

func TestClassifyStatusCode(t *testing.T) {
	tests := []struct {
		status int
		want   ErrorType
	}{
		{401, ErrAuthentication},
		{403, ErrAuthentication},
		{429, ErrRateLimit},
		{500, ErrAPI},
		{503, ErrAPI},
		{0, ErrAPI},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("status_%d", tt.status), func(t *testing.T) {
			if got := ClassifyStatusCode(tt.status); got != tt.want {
				t.Errorf("ClassifyStatusCode(%d) = %v, want %v", tt.status, got, tt.want)
			}
		})
	}
}
