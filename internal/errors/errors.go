// Package errors provides error helpers shared across dispatchr:
// panic recovery for goroutines, transient-error wrapping, and
// multi-error aggregation for shutdown paths.
package errors

import (
	"fmt"
	"runtime/debug"
	"strings"
)

// PanicError wraps a recovered panic value together with its stack trace.
type PanicError struct {
	Value      any
	StackTrace string
}

// Error implements the error interface.
func (e *PanicError) Error() string {
	return fmt.Sprintf("panic: %v", e.Value)
}

// Recover runs fn and converts a panic into a *PanicError.
// A normal error return passes through unchanged.
func Recover(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &PanicError{
				Value:      r,
				StackTrace: string(debug.Stack()),
			}
		}
	}()
	return fn()
}

// TransientError marks a failure that did not corrupt state and is safe
// to log and move past (e.g. a shutdown step timing out).
type TransientError struct {
	Op  string
	Err error
}

// NewTransientError wraps err with the operation that produced it.
func NewTransientError(op string, err error) *TransientError {
	return &TransientError{Op: op, Err: err}
}

// Error implements the error interface.
func (e *TransientError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

// Unwrap returns the wrapped error.
func (e *TransientError) Unwrap() error {
	return e.Err
}

// MultiError collects errors from multi-step operations (shutdown,
// cleanup) where every step must run regardless of earlier failures.
type MultiError struct {
	Errors []error
}

// Append adds a non-nil error to the collection.
func (m *MultiError) Append(err error) {
	if err != nil {
		m.Errors = append(m.Errors, err)
	}
}

// ErrorOrNil returns nil when no errors were collected, the single
// error when exactly one was, and the MultiError itself otherwise.
func (m *MultiError) ErrorOrNil() error {
	switch len(m.Errors) {
	case 0:
		return nil
	case 1:
		return m.Errors[0]
	default:
		return m
	}
}

// Error implements the error interface.
func (m *MultiError) Error() string {
	if len(m.Errors) == 0 {
		return "no errors"
	}
	parts := make([]string, 0, len(m.Errors))
	for _, err := range m.Errors {
		parts = append(parts, err.Error())
	}
	return fmt.Sprintf("%d errors occurred: %s", len(m.Errors), strings.Join(parts, "; "))
}
