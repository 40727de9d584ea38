// Package apperr carries the user-visible error taxonomy of the order
// workflow. Every failure returned to a caller is one of these kinds; the
// HTTP layer maps them to status codes. None are retried by the core.
package apperr

import (
	"fmt"

	"github.com/pkg/errors"
)

// Kind classifies a workflow failure.
type Kind int

const (
	KindUnknown Kind = iota
	// KindNotFound: the referenced order or item does not exist.
	KindNotFound
	// KindPreconditionFailed: current status does not match what the
	// operation requires. Recoverable by re-fetching state.
	KindPreconditionFailed
	// KindForbidden: actor role/org does not match the order's assignment.
	KindForbidden
	// KindValidationFailed: a required field for the transition is missing.
	KindValidationFailed
	// KindConflict: a concurrent transition won the race.
	KindConflict
)

func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "not_found"
	case KindPreconditionFailed:
		return "precondition_failed"
	case KindForbidden:
		return "forbidden"
	case KindValidationFailed:
		return "validation_failed"
	case KindConflict:
		return "conflict"
	default:
		return "internal"
	}
}

// Error is a classified workflow error.
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

// NotFound reports a missing order/item.
func NotFound(format string, args ...any) error {
	return &Error{Kind: KindNotFound, Msg: fmt.Sprintf(format, args...)}
}

// PreconditionFailed reports a status that does not allow the operation.
func PreconditionFailed(format string, args ...any) error {
	return &Error{Kind: KindPreconditionFailed, Msg: fmt.Sprintf(format, args...)}
}

// Forbidden reports an actor not entitled to the operation.
func Forbidden(format string, args ...any) error {
	return &Error{Kind: KindForbidden, Msg: fmt.Sprintf(format, args...)}
}

// ValidationFailed reports a missing or malformed required field.
func ValidationFailed(format string, args ...any) error {
	return &Error{Kind: KindValidationFailed, Msg: fmt.Sprintf(format, args...)}
}

// Conflict reports a lost race against a concurrent transition.
func Conflict(format string, args ...any) error {
	return &Error{Kind: KindConflict, Msg: fmt.Sprintf(format, args...)}
}

// Wrap attaches a kind and message to an underlying error.
func Wrap(err error, kind Kind, msg string) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Msg: msg, Err: err}
}

// KindOf extracts the kind from err, or KindUnknown for unclassified errors.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}
