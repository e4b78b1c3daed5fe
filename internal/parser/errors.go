package parser

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"time"

	"invox/internal/resilience"
)

// RateLimitError indicates the model provider returned HTTP 429.
type RateLimitError struct {
	Err        error
	RetryAfter time.Duration
	Provider   string
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("%s rate limited (retry after %s): %v", e.Provider, e.RetryAfter, e.Err)
}

func (e *RateLimitError) Unwrap() error {
	return e.Err
}

// NewRateLimitError creates a RateLimitError. If retryAfterSecs is 0, defaults to 60s.
func NewRateLimitError(provider string, err error, retryAfterSecs int) *RateLimitError {
	if retryAfterSecs <= 0 {
		retryAfterSecs = 60
	}
	return &RateLimitError{
		Err:        err,
		RetryAfter: time.Duration(retryAfterSecs) * time.Second,
		Provider:   provider,
	}
}

// ParseRetryAfterHeader parses a Retry-After header value into seconds.
// Returns 0 if the value is empty or not a valid integer.
func ParseRetryAfterHeader(val string) int {
	if val == "" {
		return 0
	}
	secs, err := strconv.Atoi(val)
	if err != nil {
		return 0
	}
	return secs
}

// UpstreamError indicates a 5xx or transport-level failure from the model
// provider. These are treated as transient.
type UpstreamError struct {
	Err        error
	Provider   string
	StatusCode int
}

func (e *UpstreamError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("%s upstream error (status %d): %v", e.Provider, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s upstream error: %v", e.Provider, e.Err)
}

func (e *UpstreamError) Unwrap() error {
	return e.Err
}

// MalformedResponseError indicates the model call succeeded but the returned
// text is not valid JSON. Retrying will not fix a model that answered in
// prose, so this is fatal.
type MalformedResponseError struct {
	Err error
	Raw string
}

func (e *MalformedResponseError) Error() string {
	return fmt.Sprintf("model returned malformed JSON: %v (raw: %s)", e.Err, e.Raw)
}

func (e *MalformedResponseError) Unwrap() error {
	return e.Err
}

// SchemaError indicates the model's JSON decoded but violates the invoice
// structure (missing required leaves, too many line items, confidence out of
// range). Fatal, distinct from a JSON parse failure.
type SchemaError struct {
	Err error
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("invalid invoice structure: %v", e.Err)
}

func (e *SchemaError) Unwrap() error {
	return e.Err
}

// Classify tells the retry executor which extraction failures are worth
// retrying: rate limits, timeouts, and upstream-service errors. Everything
// else, including malformed responses and schema violations, fails fast.
func Classify(err error) resilience.Classification {
	var rateLimit *RateLimitError
	var upstream *UpstreamError
	var netErr net.Error

	switch {
	case errors.As(err, &rateLimit),
		errors.As(err, &upstream),
		errors.Is(err, context.DeadlineExceeded),
		errors.As(err, &netErr) && netErr.Timeout():
		return resilience.Classification{Transient: true, RecordFailure: true}
	default:
		return resilience.Classification{Transient: false, RecordFailure: false}
	}
}
