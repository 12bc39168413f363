// Package errkind holds the error taxonomy shared by every layer.
//
// Callers classify failures with errors.Is against the sentinel kinds; the
// HTTP layer is the only place that turns a kind into a status code.
package errkind

import (
	"errors"
	"fmt"
)

// Sentinel kinds.
var (
	ErrValidation  = errors.New("validation failed")
	ErrUpstream    = errors.New("upstream failure")
	ErrRateLimited = errors.New("upstream rate limited")
	ErrAuth        = errors.New("unauthorized")
	ErrForbidden   = errors.New("forbidden")
	ErrNotFound    = errors.New("not found")
	// ErrNonFatal marks a best-effort side effect that failed without
	// affecting the primary result.
	ErrNonFatal = errors.New("non-fatal side effect failure")
)

// Error carries the operation, its kind and the underlying cause.
type Error struct {
	Op   string
	Kind error
	Err  error
}

func (e *Error) Error() string {
	switch {
	case e.Err != nil && e.Op != "":
		return fmt.Sprintf("%s: %v: %v", e.Op, e.Kind, e.Err)
	case e.Err != nil:
		return fmt.Sprintf("%v: %v", e.Kind, e.Err)
	case e.Op != "":
		return fmt.Sprintf("%s: %v", e.Op, e.Kind)
	default:
		return e.Kind.Error()
	}
}

// Unwrap exposes both the kind and the cause to errors.Is/As.
func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// New returns an error of the given kind without a cause.
func New(op string, kind error) error {
	return &Error{Op: op, Kind: kind}
}

// Wrap attaches a kind to err. A nil err yields nil.
func Wrap(op string, kind, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Op: op, Kind: kind, Err: err}
}

// Validation is shorthand for a validation failure with a message.
func Validation(op, msg string) error {
	return &Error{Op: op, Kind: ErrValidation, Err: errors.New(msg)}
}

// Message returns the short human-readable cause for validation errors and
// the bare kind text for everything else, so upstream detail never leaks.
func Message(err error) string {
	var e *Error
	if errors.As(err, &e) {
		if errors.Is(e.Kind, ErrValidation) && e.Err != nil {
			return e.Err.Error()
		}
		return e.Kind.Error()
	}
	if err == nil {
		return ""
	}
	return "internal error"
}
