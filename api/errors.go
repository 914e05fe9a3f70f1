// Package api
// Author: momentics <momentics@gmail.com>
//
// Error taxonomy shared by buffers, pools and allocators.

package api

import (
	"errors"
	"fmt"
)

// Common errors used across the library.
var (
	// ErrAllocation reports that backing storage could not be obtained.
	// It is never retried internally.
	ErrAllocation = fmt.Errorf("buffer allocation failed")

	// ErrCapacityExceeded reports that a capped pool has handed out all the
	// buffers it may create. Kept distinct from ErrAllocation so callers can
	// apply backpressure instead of treating it as memory exhaustion.
	ErrCapacityExceeded = fmt.Errorf("pool capacity exceeded")

	ErrPoolClosed      = fmt.Errorf("buffer pool is closed")
	ErrInvalidArgument = fmt.Errorf("invalid argument")
)

// ErrorCode represents specific error conditions in the library.
type ErrorCode int

const (
	ErrCodeOK ErrorCode = iota
	ErrCodeInvalidArgument
	ErrCodeAllocation
	ErrCodeCapacityExceeded
	ErrCodePoolClosed
	ErrCodeInternal
)

func (c ErrorCode) String() string {
	switch c {
	case ErrCodeOK:
		return "ok"
	case ErrCodeInvalidArgument:
		return "invalid_argument"
	case ErrCodeAllocation:
		return "allocation"
	case ErrCodeCapacityExceeded:
		return "capacity_exceeded"
	case ErrCodePoolClosed:
		return "pool_closed"
	default:
		return "internal"
	}
}

// sentinel maps a code onto the sentinel matched by errors.Is.
func (c ErrorCode) sentinel() error {
	switch c {
	case ErrCodeInvalidArgument:
		return ErrInvalidArgument
	case ErrCodeAllocation:
		return ErrAllocation
	case ErrCodeCapacityExceeded:
		return ErrCapacityExceeded
	case ErrCodePoolClosed:
		return ErrPoolClosed
	default:
		return nil
	}
}

// Error represents a structured error with code and context.
type Error struct {
	Code    ErrorCode
	Message string
	Context map[string]any
	Cause   error
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := e.Message
	if e.Cause != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Cause)
	}
	if len(e.Context) == 0 {
		return msg
	}
	return fmt.Sprintf("%s (context: %+v)", msg, e.Context)
}

// Unwrap exposes the sentinel for Code and the underlying cause, so both
// errors.Is(err, ErrAllocation) and errors.Is(err, cause) hold.
func (e *Error) Unwrap() []error {
	var out []error
	if s := e.Code.sentinel(); s != nil {
		out = append(out, s)
	}
	if e.Cause != nil {
		out = append(out, e.Cause)
	}
	return out
}

// NewError creates a new structured error.
func NewError(code ErrorCode, message string) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Context: make(map[string]any),
	}
}

// WithContext adds context information to the error.
func (e *Error) WithContext(key string, value any) *Error {
	if e.Context == nil {
		e.Context = make(map[string]any)
	}
	e.Context[key] = value
	return e
}

// WithCause records the lower-level error that produced e.
func (e *Error) WithCause(err error) *Error {
	e.Cause = err
	return e
}

// CodeOf extracts the code of a structured error anywhere in err's chain.
// Plain sentinels are mapped to their code as well.
func CodeOf(err error) ErrorCode {
	if err == nil {
		return ErrCodeOK
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	switch {
	case errors.Is(err, ErrInvalidArgument):
		return ErrCodeInvalidArgument
	case errors.Is(err, ErrAllocation):
		return ErrCodeAllocation
	case errors.Is(err, ErrCapacityExceeded):
		return ErrCodeCapacityExceeded
	case errors.Is(err, ErrPoolClosed):
		return ErrCodePoolClosed
	}
	return ErrCodeInternal
}
