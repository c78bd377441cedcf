package graph

import (
	"errors"
	"fmt"
)

// Sentinel errors for the failure taxonomy of remote invocations.
var (
	// ErrRemoteUnavailable is returned when the remote base URL cannot be
	// reached (connection refused, DNS failure, timeout).
	ErrRemoteUnavailable = errors.New("graph: remote service unavailable")

	// ErrGraphNotFound is returned when the remote service rejects the
	// named graph identifier.
	ErrGraphNotFound = errors.New("graph: graph not found")

	// ErrStreamClosed is returned when reading from a closed stream.
	ErrStreamClosed = errors.New("graph: stream closed")
)

// ProtocolError indicates the remote service answered with an unexpected
// response shape.
type ProtocolError struct {
	// Detail describes what was malformed.
	Detail string

	// Err is the underlying decode error, if any.
	Err error
}

// Error implements the error interface.
func (e *ProtocolError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("graph: protocol error: %s: %v", e.Detail, e.Err)
	}
	return fmt.Sprintf("graph: protocol error: %s", e.Detail)
}

// Unwrap returns the underlying error.
func (e *ProtocolError) Unwrap() error {
	return e.Err
}

// IsProtocolError reports whether err is (or wraps) a ProtocolError.
func IsProtocolError(err error) bool {
	var pe *ProtocolError
	return errors.As(err, &pe)
}

// RemoteError represents a non-2xx response from the remote service.
type RemoteError struct {
	// StatusCode is the HTTP status code.
	StatusCode int

	// Message is the error body from the service.
	Message string

	// Graph identifies which graph was invoked.
	Graph string
}

// Error implements the error interface.
func (e *RemoteError) Error() string {
	return fmt.Sprintf("graph [%s]: remote error %d: %s", e.Graph, e.StatusCode, e.Message)
}

// IsNotFound returns true if the remote rejected the graph name (HTTP 404).
func (e *RemoteError) IsNotFound() bool {
	return e.StatusCode == 404
}

// IsServerError returns true if this is a server-side error (HTTP 5xx).
func (e *RemoteError) IsServerError() bool {
	return e.StatusCode >= 500 && e.StatusCode < 600
}
