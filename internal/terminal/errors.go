package terminal

import (
	"errors"
	"fmt"
)

// UnreachableError means the terminal did not answer: the dial failed, the
// connection dropped, or the request timed out.
//
// Recoverable. The delivery path queues the payload and the retry worker
// tries again on a later cycle.
type UnreachableError struct {
	Endpoint string
	Err      error
}

func (e *UnreachableError) Error() string {
	return fmt.Sprintf("terminal %s unreachable: %v", e.Endpoint, e.Err)
}

func (e *UnreachableError) Unwrap() error {
	return e.Err
}

// TransportError means the terminal answered but the exchange failed: a
// non-2xx status, an unreadable body, or a body the acknowledgement check
// refused.
//
// Recoverable, handled exactly like UnreachableError.
type TransportError struct {
	Endpoint   string
	StatusCode int // 0 when no status was involved
	Reason     string
	Err        error
}

func (e *TransportError) Error() string {
	msg := fmt.Sprintf("terminal %s: %s", e.Endpoint, e.Reason)
	if e.StatusCode != 0 {
		msg = fmt.Sprintf("%s (status=%d)", msg, e.StatusCode)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// ConfigError means the configured endpoint cannot be used at all
// (unparseable URL, missing host, unsupported scheme).
//
// Not recoverable by retrying; it surfaces as a fault.
type ConfigError struct {
	Endpoint string
	Err      error
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid terminal endpoint %q: %v", e.Endpoint, e.Err)
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

// IsUnreachable returns true if the error is an UnreachableError.
// Uses errors.As to handle wrapped errors.
func IsUnreachable(err error) bool {
	var ue *UnreachableError
	return errors.As(err, &ue)
}

// IsTransport returns true if the error is a TransportError.
// Uses errors.As to handle wrapped errors.
func IsTransport(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}

// IsRecoverable returns true for errors that should be absorbed by queueing
// the payload for a later retry.
func IsRecoverable(err error) bool {
	return IsUnreachable(err) || IsTransport(err)
}

// IsConfigError returns true if the error is a ConfigError.
func IsConfigError(err error) bool {
	var ce *ConfigError
	return errors.As(err, &ce)
}
