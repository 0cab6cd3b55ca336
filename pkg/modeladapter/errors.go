package modeladapter

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrNoResponseCandidate means the model returned no candidates.
	ErrNoResponseCandidate = errors.New("no response candidate")
	// ErrEmptyContent means the first candidate carried no parts.
	ErrEmptyContent = errors.New("empty content")
	// ErrMalformedContent means the first part was neither text nor a
	// function call.
	ErrMalformedContent = errors.New("malformed content")
)

// ModelError reports a response the loop cannot use. Kind is one of the
// sentinel errors above, so errors.Is(err, ErrEmptyContent) works.
type ModelError struct {
	Kind   error
	Model  string
	Detail string
}

func (e *ModelError) Error() string {
	msg := fmt.Sprintf("model %s: %v", e.Model, e.Kind)
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	return msg
}

func (e *ModelError) Unwrap() error { return e.Kind }

// RateLimitError is returned when the API responds with HTTP 429 (Too Many Requests).
// It carries an optional RetryAfter duration parsed from the Retry-After header.
type RateLimitError struct {
	RetryAfter time.Duration
	Body       string
}

func (e *RateLimitError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("rate limited (retry after %s): %s", e.RetryAfter, e.Body)
	}
	return fmt.Sprintf("rate limited: %s", e.Body)
}

// StatusError is returned for any other non-2xx response.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d: %s", e.StatusCode, e.Body)
}
