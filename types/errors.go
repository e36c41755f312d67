package types

import (
	"errors"
	"fmt"
)

// Kind classifies a coercion failure.
type Kind int

const (
	// KindValue is a malformed value.
	KindValue Kind = iota
	// KindKey is a value outside an allowed set.
	KindKey
	// KindType is a value of a type the converter cannot handle. Plain
	// converter errors are classified as KindType.
	KindType
)

func (k Kind) String() string {
	switch k {
	case KindValue:
		return "value"
	case KindKey:
		return "key"
	case KindType:
		return "type"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Error is the failure returned by every coercion unit.
type Error struct {
	Kind    Kind
	Message string
	// Reasons carries structured, per-field failures (schema-backed types).
	Reasons map[string]any
	Err     error
}

// Error returns the message.
func (e *Error) Error() string { return e.Message }

// Unwrap returns the underlying converter error, if any.
func (e *Error) Unwrap() error { return e.Err }

// ValueError returns a KindValue error.
func ValueError(format string, args ...any) *Error {
	return &Error{Kind: KindValue, Message: fmt.Sprintf(format, args...)}
}

// KeyError returns a KindKey error.
func KeyError(format string, args ...any) *Error {
	return &Error{Kind: KindKey, Message: fmt.Sprintf(format, args...)}
}

// KindOf classifies err. Errors that are not *Error are KindType.
func KindOf(err error) Kind {
	var te *Error
	if errors.As(err, &te) {
		return te.Kind
	}
	return KindType
}

// IsValueError reports whether err is a KindValue coercion failure.
func IsValueError(err error) bool {
	var te *Error
	return errors.As(err, &te) && te.Kind == KindValue
}

// IsKeyError reports whether err is a KindKey coercion failure.
func IsKeyError(err error) bool {
	var te *Error
	return errors.As(err, &te) && te.Kind == KindKey
}

// Reason returns what should be reported for a failed parameter: the
// structured reasons when present, otherwise the message.
func Reason(err error) any {
	var te *Error
	if errors.As(err, &te) {
		if len(te.Reasons) > 0 {
			return te.Reasons
		}
		return te.Message
	}
	return err.Error()
}
