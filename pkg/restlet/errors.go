package restlet

import (
	"errors"
	"fmt"
	"strings"
)

// Common errors returned by the fetcher.
var (
	// ErrRetryExhausted is returned when a page failed every attempt of
	// its retry budget.
	ErrRetryExhausted = errors.New("retry attempts exhausted")

	// ErrContextCancelled is returned when the context is cancelled
	// during a fetch or a backoff sleep.
	ErrContextCancelled = errors.New("context cancelled")
)

// ErrorClass classifies a page-fetch failure for retry decisions and
// observability.
type ErrorClass string

const (
	// ErrorClassAuth is a credential-level failure. Never retried.
	ErrorClassAuth ErrorClass = "auth"

	// ErrorClassRateLimit is a NetSuite request-limit rejection
	// (SSS_REQUEST_LIMIT_EXCEEDED or HTTP 429).
	ErrorClassRateLimit ErrorClass = "rate_limit"

	// ErrorClassTransport covers retryable HTTP failures (403/400/5xx,
	// timeouts, connection errors).
	ErrorClassTransport ErrorClass = "transport"

	// ErrorClassFatal covers non-retryable page failures: malformed
	// envelopes or success=false with a non-retryable reason.
	ErrorClassFatal ErrorClass = "fatal"
)

// Retryable reports whether a failure of this class may be retried.
func (c ErrorClass) Retryable() bool {
	switch c {
	case ErrorClassRateLimit, ErrorClassTransport:
		return true
	default:
		return false
	}
}

// PageError describes the final failure of one page fetch with enough
// context to diagnose it: page index, HTTP status and last error text.
type PageError struct {
	Page   int
	Status int
	Class  ErrorClass
	Reason string
	Err    error
}

func (e *PageError) Error() string {
	msg := fmt.Sprintf("page %d: %s error", e.Page, e.Class)
	if e.Status != 0 {
		msg += fmt.Sprintf(" (status %d)", e.Status)
	}
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *PageError) Unwrap() error {
	return e.Err
}

// FilterFatalError is a fatal server-side filter failure surfaced from
// the page-0 envelope.
type FilterFatalError struct {
	Type    string
	Message string
}

func (e *FilterFatalError) Error() string {
	return fmt.Sprintf("filter error (%s): %s", e.Type, e.Message)
}

// rateLimitPatterns are matched case-insensitively against the error
// string of a success=false envelope. NetSuite reports concurrency
// rejections with several spellings.
var rateLimitPatterns = []string{
	"SSS_REQUEST_LIMIT_EXCEEDED",
	"REQUEST LIMIT",
	"CONCURRENT",
}

// isRateLimitMessage reports whether a RESTlet error message indicates
// a rate-limit rejection.
func isRateLimitMessage(msg string) bool {
	upper := strings.ToUpper(msg)
	for _, p := range rateLimitPatterns {
		if strings.Contains(upper, p) {
			return true
		}
	}
	return false
}
