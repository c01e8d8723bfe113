package bookmarkdp

import (
	"fmt"
	"time"
)

// Error is a bookmarkdp error.
type Error string

// Error satisfies the error interface.
func (err Error) Error() string {
	return string(err)
}

// Error types.
const (
	// ErrNotConnected is the error returned when a command is issued without
	// an active connection.
	ErrNotConnected Error = "not connected"

	// ErrConnectionClosed is the error returned to pending commands when the
	// connection is closed by Disconnect.
	ErrConnectionClosed Error = "connection closed"

	// ErrInvalidBookmarkPayload is the error returned when the extraction
	// script does not return a list.
	ErrInvalidBookmarkPayload Error = "invalid bookmark payload: expected a list"
)

// ConnectionFailedError is returned by Connect when the websocket cannot be
// established or the liveness probe fails.
type ConnectionFailedError struct {
	// Addr is the endpoint that was dialed.
	Addr string
	Err  error
}

func (e *ConnectionFailedError) Error() string {
	return fmt.Sprintf("could not connect to %s: %v (is the browser running with --remote-debugging-port enabled?)", e.Addr, e.Err)
}

func (e *ConnectionFailedError) Unwrap() error {
	return e.Err
}

// TimeoutError is returned when a command receives no response within its
// timeout.
type TimeoutError struct {
	Method   string
	Duration time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("command %s timed out after %v", e.Method, e.Duration)
}

// CommandFailedError is returned when the remote answers a command with an
// error object. Code is zero when the remote did not send one.
type CommandFailedError struct {
	Code    int64
	Message string
}

func (e *CommandFailedError) Error() string {
	if e.Code == 0 {
		return fmt.Sprintf("command failed: %s", e.Message)
	}
	return fmt.Sprintf("command failed: %s (%d)", e.Message, e.Code)
}

// InvalidResponseError is returned when a response body cannot be decoded
// into the shape expected for its method.
type InvalidResponseError struct {
	Reason string
}

func (e *InvalidResponseError) Error() string {
	return "invalid response: " + e.Reason
}

// EvaluationFailedError is returned when an evaluated expression throws.
type EvaluationFailedError struct {
	Details string
}

func (e *EvaluationFailedError) Error() string {
	return "evaluation failed: " + e.Details
}

// TransportError wraps a failure of the underlying connection.
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport error: %v", e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// PageLoadTimeoutError is returned when the readiness predicate does not
// become true in time.
type PageLoadTimeoutError struct {
	Elapsed time.Duration
}

func (e *PageLoadTimeoutError) Error() string {
	return fmt.Sprintf("page did not become ready after %v", e.Elapsed.Round(time.Millisecond))
}
