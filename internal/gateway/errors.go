package gateway

import (
	"errors"
	"fmt"
)

// ErrNotConfigured is returned when a remote call is attempted before a base
// URL and API key have been set.
var ErrNotConfigured = errors.New("gateway not configured: base URL and API key required")

// TransportError reports a network-level or decoding failure: unreachable
// host, timeout, malformed response body.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string { return fmt.Sprintf("%s: %v", e.Op, e.Err) }
func (e *TransportError) Unwrap() error { return e.Err }

// StatusError reports a non-2xx response from the fridge service.
type StatusError struct {
	Op         string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: server returned %d", e.Op, e.StatusCode)
}
