package mcpclient

import (
	"errors"
	"fmt"
)

var (
	// ErrNotConnected is returned by operations that need a live session.
	ErrNotConnected = errors.New("mcpclient: not connected")
	// ErrClosed is returned by Connect after Close.
	ErrClosed = errors.New("mcpclient: client closed")
	// ErrConnectInProgress is returned when Connect is called concurrently.
	ErrConnectInProgress = errors.New("mcpclient: connect already in progress")
	// ErrMalformedResult is wrapped by ToolInvocationError when the server
	// answers with no result payload.
	ErrMalformedResult = errors.New("mcpclient: malformed tool result")
)

// ConnectionError reports that every connection attempt failed. The client
// stays disconnected until Connect is called again.
type ConnectionError struct {
	Endpoint string
	Attempts int
	Err      error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("mcpclient: connect %s: gave up after %d attempt(s): %v", e.Endpoint, e.Attempts, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// ToolInvocationError reports a failed tool call: the remote call errored,
// timed out, or returned a malformed payload.
type ToolInvocationError struct {
	Tool string
	Err  error
}

func (e *ToolInvocationError) Error() string {
	return fmt.Sprintf("mcpclient: call tool %q: %v", e.Tool, e.Err)
}

func (e *ToolInvocationError) Unwrap() error { return e.Err }
