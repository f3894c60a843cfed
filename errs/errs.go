// Package errs defines the closed set of error kinds shared by every
// layer of the debug controller (spec §7), kept in its own package
// below swd/dap/dm so each layer can report errors without importing
// another layer.
package errs

import "errors"

// Kind is the closed set of error kinds from spec §7.
type Kind int

const (
	Ok Kind = iota
	Timeout
	Fault
	Protocol
	Parity
	Wait
	NotConnected
	NotInitialized
	NotHalted
	AlreadyHalted
	InvalidParam
	InvalidState
	Alignment
	ResourceBusy
	AbstractCmd
	Verify
)

func (k Kind) String() string {
	switch k {
	case Ok:
		return "Ok"
	case Timeout:
		return "Timeout"
	case Fault:
		return "Fault"
	case Protocol:
		return "Protocol"
	case Parity:
		return "Parity"
	case Wait:
		return "Wait"
	case NotConnected:
		return "NotConnected"
	case NotInitialized:
		return "NotInitialized"
	case NotHalted:
		return "NotHalted"
	case AlreadyHalted:
		return "AlreadyHalted"
	case InvalidParam:
		return "InvalidParam"
	case InvalidState:
		return "InvalidState"
	case Alignment:
		return "Alignment"
	case ResourceBusy:
		return "ResourceBusy"
	case AbstractCmd:
		return "AbstractCmd"
	case Verify:
		return "Verify"
	default:
		return "Unknown"
	}
}

// detailCap bounds the formatted detail string, mirroring spec §7's
// "bounded, e.g. 128 bytes" error-detail string.
const detailCap = 128

// Error is the concrete error type returned by every layer. Kind
// supports programmatic dispatch (errors.Is against a sentinel of the
// same Kind); Detail is the human-readable, per-session formatted
// string spec §7 asks for.
type Error struct {
	Kind   Kind
	Detail string
	cause  error
}

func New(kind Kind, detail string) *Error {
	return &Error{Kind: kind, Detail: truncate(detail)}
}

func Wrap(kind Kind, cause error, detail string) *Error {
	return &Error{Kind: kind, Detail: truncate(detail), cause: cause}
}

func truncate(s string) string {
	if len(s) > detailCap {
		return s[:detailCap]
	}
	return s
}

func (e *Error) Error() string {
	if e.Detail == "" {
		return e.Kind.String()
	}
	return e.Kind.String() + ": " + e.Detail
}

func (e *Error) Unwrap() error { return e.cause }

// Is lets errors.Is(err, errs.Sentinel(Kind)) match on Kind alone,
// ignoring Detail — callers test for a kind, not a specific message.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

// Sentinel returns a bare *Error of the given kind, suitable for use
// with errors.Is.
func Sentinel(kind Kind) *Error { return &Error{Kind: kind} }

// KindOf extracts the Kind from err if it (or something it wraps) is an
// *Error, otherwise reports false.
func KindOf(err error) (Kind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return Ok, false
}
