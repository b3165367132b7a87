package ingest

import (
	"errors"
	"fmt"
)

// ValidationError means the request is malformed: unparseable JSON, a JSON
// payload that is not an object, an unknown data_type, or a bad timestamp.
// Nothing is persisted.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("validation failed: %s", e.Reason)
	}
	return fmt.Sprintf("validation failed: %s: %s", e.Field, e.Reason)
}

// AuthKind distinguishes an unknown caller from a known caller acting for
// someone else.
type AuthKind string

const (
	AuthUnauthenticated AuthKind = "unauthenticated"
	AuthForbidden       AuthKind = "forbidden"
)

// AuthError means the caller could not be identified or is not allowed to
// act for the named client. Nothing is persisted.
type AuthError struct {
	Kind   AuthKind
	Reason string
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Reason)
}

// IsValidation returns true if the error is a ValidationError.
// Uses errors.As to handle wrapped errors.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// IsAuth returns true if the error is an AuthError of either kind.
func IsAuth(err error) bool {
	var ae *AuthError
	return errors.As(err, &ae)
}

// IsForbidden returns true if the error is an AuthError of kind forbidden.
func IsForbidden(err error) bool {
	var ae *AuthError
	return errors.As(err, &ae) && ae.Kind == AuthForbidden
}
