package speech

import (
	"errors"
	"fmt"
)

var (
	// ErrNoBaseURL is returned when the service base URL is missing.
	ErrNoBaseURL = errors.New("speech: base URL required")

	// ErrNotStarted is returned when feeding audio before Start.
	ErrNotStarted = errors.New("speech: transcriber not started")

	// ErrClosed is returned when using a closed component.
	ErrClosed = errors.New("speech: closed")
)

// APIError represents an error response from a speech service.
type APIError struct {
	StatusCode int
	Message    string
	Endpoint   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("speech: %s returned %d: %s", e.Endpoint, e.StatusCode, e.Message)
}

// IsRetryable reports whether the request may succeed on retry.
func (e *APIError) IsRetryable() bool {
	return e.StatusCode == 429 || e.StatusCode >= 500
}
