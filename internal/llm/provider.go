// Package llm defines the text-generation backend contract and its errors.
package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/TristanHourtoulle/brandium-backend-sub002/pkg/types"
)

// Common errors returned by LLM providers.
var (
	// ErrContextTooLong is returned when the input exceeds the model's context window.
	ErrContextTooLong = errors.New("context length exceeds model maximum")

	// ErrRateLimited is returned when the backend's own rate limit has been exceeded.
	ErrRateLimited = errors.New("backend rate limit exceeded")

	// ErrAPIError is returned when the API returns an unexpected error.
	ErrAPIError = errors.New("API error")

	// ErrInvalidAPIKey is returned when the API key is invalid or missing.
	ErrInvalidAPIKey = errors.New("invalid or missing API key")

	// ErrModelNotFound is returned when the requested model is not available.
	ErrModelNotFound = errors.New("model not found")

	// ErrEmptyResponse is returned when the backend answers without any text.
	ErrEmptyResponse = errors.New("empty response")
)

// FinishReason constants for response completion reasons.
const (
	FinishReasonStop   = "stop"
	FinishReasonLength = "length"
	FinishReasonFilter = "content_filter"
)

// Provider generates text from a single prompt.
// Implementations should be safe for concurrent use and must not retry on
// their own: retry policy belongs to the caller.
type Provider interface {
	// Generate sends the prompt and returns the complete response.
	// Failures are reported as *BackendError.
	Generate(ctx context.Context, req Request) (*Response, error)

	// Name identifies the provider in logs.
	Name() string

	// Close releases any resources held by the provider.
	Close() error
}

// Request is a single generation call.
type Request struct {
	// Prompt is the full composed prompt.
	Prompt string

	// MaxTokens is the maximum number of tokens to generate.
	// If 0, the provider's default is used.
	MaxTokens int

	// Temperature controls randomness in the response (0.0-2.0).
	Temperature float64
}

// Response is the backend output.
type Response struct {
	Text         string
	Usage        types.TokenUsage
	Model        string
	FinishReason string
}

// BackendError is a failed backend call. Code is the backend's own error
// code or HTTP status text; Err wraps one of the package sentinels.
type BackendError struct {
	Provider   string
	Code       string
	StatusCode int
	Retriable  bool
	Err        error
}

func (e *BackendError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("%s: %s: %v", e.Provider, e.Code, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Provider, e.Err)
}

func (e *BackendError) Unwrap() error {
	return e.Err
}

// IsRetriable reports whether err is a backend failure worth retrying later.
func IsRetriable(err error) bool {
	var be *BackendError
	if errors.As(err, &be) {
		return be.Retriable
	}
	return false
}

// StatusError classifies an HTTP failure of provider into a *BackendError.
// code is the backend's error code when it sent one.
func StatusError(provider string, status int, code, message string) *BackendError {
	be := &BackendError{Provider: provider, Code: code, StatusCode: status}
	if be.Code == "" && status > 0 {
		be.Code = http.StatusText(status)
	}

	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		be.Err = fmt.Errorf("%w: %s", ErrInvalidAPIKey, message)
	case status == http.StatusNotFound:
		be.Err = fmt.Errorf("%w: %s", ErrModelNotFound, message)
	case status == http.StatusTooManyRequests:
		be.Err = fmt.Errorf("%w: %s", ErrRateLimited, message)
		be.Retriable = true
	case status == http.StatusBadRequest && code == "context_length_exceeded":
		be.Err = fmt.Errorf("%w: %s", ErrContextTooLong, message)
	case status == http.StatusRequestTimeout || status >= 500:
		be.Err = fmt.Errorf("%w: server error - %s", ErrAPIError, message)
		be.Retriable = true
	default:
		be.Err = fmt.Errorf("%w: HTTP %d - %s", ErrAPIError, status, message)
	}
	return be
}

// TransportError wraps a failure that happened before any HTTP status was
// received. Context cancellation is passed through unchanged so callers can
// match context.Canceled and context.DeadlineExceeded.
func TransportError(provider string, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return &BackendError{
		Provider:  provider,
		Code:      "transport",
		Retriable: true,
		Err:       fmt.Errorf("%w: %v", ErrAPIError, err),
	}
}
