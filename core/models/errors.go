package models

import (
	"errors"
	"fmt"
)

// Error kinds. Every error leaving the runtime adapter, the stats normalizer or a
// service matches exactly one of these through errors.Is.
var (
	ErrNotFound            = errors.New("not found")
	ErrInvalidInput        = errors.New("invalid input")
	ErrInvalidStatsFormat  = errors.New("invalid container stats format")
	ErrInvalidBuildContext = errors.New("invalid build context")
	ErrRuntimeUnavailable  = errors.New("container runtime unavailable")
	ErrRuntimeError        = errors.New("container runtime error")
)

// Error carries the kind of failure together with the operation that produced it.
// For runtime failures Err holds the runtime's own error so its message survives unchanged.
type Error struct {
	Kind    error
	Op      string
	Message string
	Err     error
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	if msg == "" {
		msg = e.Kind.Error()
	}
	if e.Op == "" {
		return msg
	}
	return fmt.Sprintf("%s: %s", e.Op, msg)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is the kind of this error.
func (e *Error) Is(target error) bool {
	return e.Kind == target
}

// NewError builds an Error of the given kind wrapping err.
func NewError(kind error, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// NotFound returns an ErrNotFound error with a formatted message.
func NotFound(op, format string, args ...any) *Error {
	return &Error{Kind: ErrNotFound, Op: op, Message: fmt.Sprintf(format, args...)}
}

// InvalidInput returns an ErrInvalidInput error with a formatted message.
func InvalidInput(op, format string, args ...any) *Error {
	return &Error{Kind: ErrInvalidInput, Op: op, Message: fmt.Sprintf(format, args...)}
}

// Kind returns the kind matched by err, or nil when err carries none.
func Kind(err error) error {
	for _, kind := range []error{
		ErrNotFound,
		ErrInvalidInput,
		ErrInvalidStatsFormat,
		ErrInvalidBuildContext,
		ErrRuntimeUnavailable,
		ErrRuntimeError,
	} {
		if errors.Is(err, kind) {
			return kind
		}
	}
	return nil
}
