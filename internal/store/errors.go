package store

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned when a lookup matches no row.
// It is not a Fault: the database answered, the row just isn't there.
var ErrNotFound = errors.New("not found")

// Fault is a durable-store failure (I/O error, corruption, constraint
// violation, closed handle).
//
// A Fault is fatal to the operation that raised it. Callers must propagate it
// rather than retry, and the retry worker stops on it.
type Fault struct {
	// Op names the store operation that failed, e.g. "enqueue".
	Op string

	// Err is the underlying driver error.
	Err error
}

// Error implements the error interface.
func (f *Fault) Error() string {
	return fmt.Sprintf("storage fault: %s: %v", f.Op, f.Err)
}

// Unwrap returns the underlying driver error.
func (f *Fault) Unwrap() error {
	return f.Err
}

// IsFault returns true if the error is (or wraps) a storage fault.
// Uses errors.As to handle wrapped errors.
func IsFault(err error) bool {
	var f *Fault
	return errors.As(err, &f)
}

func fault(op string, err error) error {
	return &Fault{Op: op, Err: err}
}
