// ABOUTME: Typed failures returned by the protocol client
// ABOUTME: TransportError means no response; BackendError carries a non-2xx status and payload

package api

import (
	"errors"
	"fmt"
)

var (
	// ErrTransportFailure matches requests that received no response
	ErrTransportFailure = errors.New("transport failure")

	// ErrBackendRejected matches non-2xx responses
	ErrBackendRejected = errors.New("backend rejected request")
)

// TransportError reports a request that never produced a response.
type TransportError struct {
	Method string
	Path   string
	Err    error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Method, e.Path, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// Is reports ErrTransportFailure so callers can match the kind.
func (e *TransportError) Is(target error) bool {
	return target == ErrTransportFailure
}

// BackendError reports a response with a non-2xx status.
type BackendError struct {
	Method     string
	Path       string
	StatusCode int
	// Message is the "error" field of the payload, if any.
	Message string
	Payload map[string]any
}

func (e *BackendError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s %s: status %d: %s", e.Method, e.Path, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("%s %s: status %d", e.Method, e.Path, e.StatusCode)
}

// Is reports ErrBackendRejected so callers can match the kind.
func (e *BackendError) Is(target error) bool {
	return target == ErrBackendRejected
}

// StatusCode returns the HTTP status of a BackendError in err's chain, or 0.
func StatusCode(err error) int {
	var be *BackendError
	if errors.As(err, &be) {
		return be.StatusCode
	}
	return 0
}
