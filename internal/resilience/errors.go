package resilience

import (
	"errors"
	"net"
	"net/http"
	"strings"
	"syscall"
)

// RateLimitError marks an upstream throttling response (HTTP 429). Retried
// with exponential backoff, unlike plain transient errors which back off
// linearly.
type RateLimitError struct {
	Err        error
	StatusCode int
}

func (e *RateLimitError) Error() string {
	return e.Err.Error()
}

func (e *RateLimitError) Unwrap() error {
	return e.Err
}

// NewRateLimitError wraps an error as a rate-limit failure.
func NewRateLimitError(err error) *RateLimitError {
	return &RateLimitError{Err: err, StatusCode: http.StatusTooManyRequests}
}

// TransientError wraps an error that is safe to retry (5xx, network timeout).
type TransientError struct {
	Err        error
	StatusCode int
}

func (e *TransientError) Error() string {
	return e.Err.Error()
}

func (e *TransientError) Unwrap() error {
	return e.Err
}

// NewTransientError wraps an error as transient with an optional HTTP status code.
func NewTransientError(err error, statusCode int) *TransientError {
	return &TransientError{Err: err, StatusCode: statusCode}
}

// FromStatus classifies an HTTP status into a typed error. 429 becomes a
// RateLimitError, 408/5xx a TransientError, anything else passes through
// unchanged.
func FromStatus(err error, statusCode int) error {
	switch {
	case statusCode == http.StatusTooManyRequests:
		return &RateLimitError{Err: err, StatusCode: statusCode}
	case statusCode == http.StatusRequestTimeout || statusCode >= 500:
		return &TransientError{Err: err, StatusCode: statusCode}
	default:
		return err
	}
}

// IsRateLimit returns true if the error chain contains a RateLimitError.
func IsRateLimit(err error) bool {
	var rl *RateLimitError
	return errors.As(err, &rl)
}

// IsTransient returns true if the error (or any error in its chain) is a
// RateLimitError or TransientError, or if it matches common network-level
// transient failures (timeouts, connection resets, DNS).
func IsTransient(err error) bool {
	if err == nil {
		return false
	}

	if IsRateLimit(err) {
		return true
	}

	var te *TransientError
	if errors.As(err, &te) {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	if errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNABORTED) {
		return true
	}

	// String-based heuristics for wrapped errors from HTTP clients.
	msg := strings.ToLower(err.Error())
	transientPatterns := []string{
		"connection reset by peer",
		"broken pipe",
		"temporary failure in name resolution",
		"no such host",
		"tls handshake timeout",
		"i/o timeout",
		"server closed idle connection",
		"transport connection broken",
	}
	for _, p := range transientPatterns {
		if strings.Contains(msg, p) {
			return true
		}
	}

	return false
}
