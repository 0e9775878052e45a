// Package deaierr defines the small, closed error taxonomy shared by every
// core component (variant conversion, object/member store, dispatch,
// accessor protocol, root set, registry).
package deaierr

import (
	"errors"
	"fmt"
)

// Kind is one of the error kinds recognized by the core. The set is closed;
// collaborators surfacing their own failures (LostConnection, Shutdown) map
// them onto this enum rather than inventing new kinds.
type Kind int

const (
	// Other carries a message and optional source location and is used for
	// anything that does not fit one of the named kinds below.
	Other Kind = iota
	NotFound
	InvalidType
	OutOfRange
	InvalidArity
	NotCallable
	TooLarge
	Exists
	Readonly
	LostConnection
	Shutdown
)

func (k Kind) String() string {
	switch k {
	case NotFound:
		return "NotFound"
	case InvalidType:
		return "InvalidType"
	case OutOfRange:
		return "OutOfRange"
	case InvalidArity:
		return "InvalidArity"
	case NotCallable:
		return "NotCallable"
	case TooLarge:
		return "TooLarge"
	case Exists:
		return "Exists"
	case Readonly:
		return "Readonly"
	case LostConnection:
		return "LostConnection"
	case Shutdown:
		return "Shutdown"
	default:
		return "Other"
	}
}

// Error is the Go-side representation of a core failure. It wraps an
// optional cause and carries a Kind so callers can switch on it without
// string matching.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

func (e *Error) Unwrap() error { return e.Err }

// Is lets errors.Is(err, deaierr.Sentinel(deaierr.NotFound)) work by comparing Kind when the
// target is itself a bare *Error with no message (a sentinel pattern).
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && t.Msg == "" && t.Err == nil
}

// New constructs an *Error of the given kind with a formatted message.
func New(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// Wrap attaches a kind and message to an underlying cause.
func Wrap(kind Kind, err error, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...), Err: err}
}

// Sentinel returns a bare, message-less *Error usable with errors.Is.
func Sentinel(kind Kind) *Error { return &Error{Kind: kind} }

// Is reports whether err is (or wraps) an *Error of the given kind, letting
// callers branch on the closed taxonomy without importing errors.As
// themselves.
func Is(err error, kind Kind) bool {
	for err != nil {
		if e, ok := err.(*Error); ok && e.Kind == kind {
			return true
		}
		err = errors.Unwrap(err)
	}
	return false
}
