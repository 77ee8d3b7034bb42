package core

import (
	"errors"
	"fmt"
)

// ErrorKind is the stable machine-readable classification attached to every
// error the bookkeeping services return. The HTTP layer maps kinds to status
// codes; callers should branch on KindOf rather than on message text.
type ErrorKind string

const (
	KindInvalidArgument    ErrorKind = "invalid_argument"
	KindNotFound           ErrorKind = "not_found"
	KindConflict           ErrorKind = "conflict"
	KindForbidden          ErrorKind = "forbidden"
	KindFailedPrecondition ErrorKind = "failed_precondition"
	KindInternal           ErrorKind = "internal"
)

// Error carries an ErrorKind plus a human-readable message. It optionally
// wraps an underlying cause for errors.Is/As chains.
type Error struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// E builds a kinded error with a plain message.
func E(kind ErrorKind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Ef builds a kinded error with a formatted message.
func Ef(kind ErrorKind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a kind and message to an underlying error.
func Wrap(kind ErrorKind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// KindOf extracts the ErrorKind from an error chain. Errors without a kind
// are classified as internal, matching the propagation policy: once
// validation has passed, only infrastructure failures remain.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}
