package paystack

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
)

var (
	// ErrAuth means the secret key was rejected. Fatal: needs operator
	// attention, never retried.
	ErrAuth = errors.New("provider authentication failed")

	// ErrRateLimited means the provider returned 429.
	ErrRateLimited = errors.New("provider rate limit exceeded")

	// ErrInsufficientProviderBalance means the provider-side float cannot
	// cover a transfer. Retryable, but persistent occurrences warrant an
	// operator alert.
	ErrInsufficientProviderBalance = errors.New("insufficient provider balance")
)

// APIError is a non-2xx provider response that maps to no sentinel.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("provider error (%d): %s", e.StatusCode, e.Message)
}

// IsTransient classifies an error from a provider call as retryable.
// Timeouts, connection failures, 5xx, 429 and provider balance shortfalls are
// transient; every other 4xx is terminal.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrRateLimited) || errors.Is(err, ErrInsufficientProviderBalance) {
		return true
	}
	if errors.Is(err, ErrAuth) {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}

	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode >= 500
	}

	// url.Error wrapping of connection resets does not always satisfy
	// net.Error, so fall back to message inspection.
	msg := err.Error()
	return strings.Contains(msg, "connection refused") ||
		strings.Contains(msg, "connection reset") ||
		strings.Contains(msg, "timeout")
}
