package scheduler

import (
	"errors"
	"fmt"
)

// ErrInvalidArgument is returned when a timer operation receives an argument
// outside its contract, such as a negative wait budget or a zero interval.
var ErrInvalidArgument = errors.New("invalid argument")

// Error describes a rejected call. It wraps ErrInvalidArgument.
type Error struct {
	// Op is the operation that rejected the argument, e.g. "wait".
	Op string

	// Value is the offending numeric argument.
	Value int64

	// Reason explains the constraint that was violated.
	Reason string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s(%d): %s: %s", e.Op, e.Value, ErrInvalidArgument, e.Reason)
}

func (e *Error) Unwrap() error {
	return ErrInvalidArgument
}

func invalidArgument(op string, value int64, reason string) error {
	return &Error{Op: op, Value: value, Reason: reason}
}
