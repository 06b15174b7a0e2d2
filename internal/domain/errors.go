package domain

import (
	"context"
	"errors"
	"fmt"
	"net"
)

// ErrLocationNotFound is returned when a location reference cannot be
// resolved to coordinates.
var ErrLocationNotFound = errors.New("location not found")

// ConnectionError reports a failure to reach the forecast provider:
// timeouts, DNS failures, refused connections or an open circuit breaker.
type ConnectionError struct {
	Op  string
	Err error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// Timeout reports whether the connection failed because a deadline passed.
func (e *ConnectionError) Timeout() bool {
	if errors.Is(e.Err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(e.Err, &netErr) && netErr.Timeout()
}

// ProviderError reports a response the provider sent but that could not be
// used: an unexpected status code or a malformed body. StatusCode is zero
// when the status was acceptable and the body was at fault.
type ProviderError struct {
	StatusCode int
	Message    string
	Err        error
}

func (e *ProviderError) Error() string {
	msg := e.Message
	if e.StatusCode != 0 {
		msg = fmt.Sprintf("%s (status %d)", msg, e.StatusCode)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *ProviderError) Unwrap() error { return e.Err }

// IsConnectionError reports whether err wraps a *ConnectionError.
func IsConnectionError(err error) bool {
	var connErr *ConnectionError
	return errors.As(err, &connErr)
}

// IsProviderError reports whether err wraps a *ProviderError.
func IsProviderError(err error) bool {
	var provErr *ProviderError
	return errors.As(err, &provErr)
}

// ErrorKind classifies err for logs and metric labels.
func ErrorKind(err error) string {
	switch {
	case err == nil:
		return "none"
	case errors.Is(err, ErrLocationNotFound):
		return "location_not_found"
	case IsConnectionError(err):
		return "connection"
	case IsProviderError(err):
		return "provider"
	default:
		return "other"
	}
}
