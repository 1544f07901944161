package persistence

import (
	"errors"
	"fmt"
)

// Kind classifies a persistence failure.
type Kind int

const (
	Unauthenticated Kind = iota + 1
	Transport
	Rejected
)

func (k Kind) String() string {
	switch k {
	case Unauthenticated:
		return "unauthenticated"
	case Transport:
		return "transport"
	case Rejected:
		return "rejected"
	default:
		return "unknown"
	}
}

// Error is returned by every failed Gateway call. Message is suitable for display.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	switch {
	case e.Message != "":
		return e.Message
	case e.Kind == Unauthenticated:
		return "Please login to use saved essays."
	case e.Err != nil:
		return fmt.Sprintf("saved essays %s: %v", e.Kind, e.Err)
	}
	return "saved essays " + e.Kind.String()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is lets errors.Is(err, ErrUnauthenticated) match any Unauthenticated error.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && t.Message == "" && t.Err == nil
}

// ErrUnauthenticated is returned when no user identity is available.
var ErrUnauthenticated = &Error{Kind: Unauthenticated}

// Unavailable wraps a transport failure (the store could not be reached).
func Unavailable(err error, message string) error {
	if message == "" {
		message = "Could not reach saved essays. Please try again."
	}
	return &Error{Kind: Transport, Message: message, Err: err}
}

// Rejectedf wraps a refusal by the store (constraint, permission, bad input).
func Rejectedf(err error, format string, args ...any) error {
	return &Error{Kind: Rejected, Message: fmt.Sprintf(format, args...), Err: err}
}

// IsKind reports whether err is a persistence Error of the given kind.
func IsKind(err error, kind Kind) bool {
	var perr *Error
	return errors.As(err, &perr) && perr.Kind == kind
}
