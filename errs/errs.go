// Package errs classifies federation-engine failures into the fixed set of
// kinds the inbound/outbound paths branch on (HTTP status, retry, logging).
package errs

import "fmt"

type Kind int

const (
	Unknown Kind = iota
	NotFound
	Validation
	BadSignature
	Network
	Conflict
	Fatal
)

func (k Kind) String() string {
	switch k {
	case NotFound:
		return "not_found"
	case Validation:
		return "validation"
	case BadSignature:
		return "bad_signature"
	case Network:
		return "network"
	case Conflict:
		return "conflict"
	case Fatal:
		return "fatal"
	default:
		return "unknown"
	}
}

// Error wraps a cause with a Kind so callers can branch without string matching.
type Error struct {
	Kind  Kind
	Msg   string
	Cause error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Msg, e.Cause)
	}
	return e.Msg
}

func (e *Error) Unwrap() error { return e.Cause }

func New(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Msg: msg}
}

func Wrap(kind Kind, msg string, cause error) *Error {
	return &Error{Kind: kind, Msg: msg, Cause: cause}
}

func NotFoundf(format string, args ...any) *Error {
	return New(NotFound, fmt.Sprintf(format, args...))
}

func Validationf(format string, args ...any) *Error {
	return New(Validation, fmt.Sprintf(format, args...))
}

func BadSignaturef(format string, args ...any) *Error {
	return New(BadSignature, fmt.Sprintf(format, args...))
}

func Networkf(err error, format string, args ...any) *Error {
	return Wrap(Network, fmt.Sprintf(format, args...), err)
}

func Conflictf(format string, args ...any) *Error {
	return New(Conflict, fmt.Sprintf(format, args...))
}

func Fatalf(err error, format string, args ...any) *Error {
	return Wrap(Fatal, fmt.Sprintf(format, args...), err)
}

// KindOf extracts the Kind from err, or Unknown if err isn't an *Error.
func KindOf(err error) Kind {
	if err == nil {
		return Unknown
	}
	var e *Error
	if as(err, &e) {
		return e.Kind
	}
	return Unknown
}

func as(err error, target **Error) bool {
	for err != nil {
		if e, ok := err.(*Error); ok {
			*target = e
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}
