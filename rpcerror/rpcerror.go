// Package rpcerror defines the error taxonomy shared by every layer of the
// xmlrpc library.
//
// Each error carries a Kind (what class of failure), an optional Path (where
// in the document or target structure it happened, e.g. "params[1].age"), and
// an optional wrapped cause. Callers branch on the Kind with KindOf or
// errors.As rather than string matching.
package rpcerror

import (
	"errors"
	"fmt"
)

// Kind classifies a failure. The set is closed: every error produced by this
// library is exactly one of these.
type Kind byte

const (
	// KindSyntax means the input is not well-formed XML at all. These are
	// surfaced from the underlying tokenizer.
	KindSyntax Kind = iota

	// KindUnknownType means a <value> contained a child tag that is not one
	// of the XML-RPC type tags. Unknown tags are never silently coerced.
	KindUnknownType

	// KindMalformedNumber means <int>/<i4>/<i8>/<double> content failed its
	// literal grammar or range.
	KindMalformedNumber

	// KindMalformedBoolean means <boolean> content was not literally 0 or 1.
	KindMalformedBoolean

	// KindMalformedBase64 means <base64> content contained bytes outside the
	// standard base64 alphabet.
	KindMalformedBase64

	// KindMalformedEnvelope means a methodCall/methodResponse/fault violated
	// its structural requirements (wrong arity, missing children, both a
	// params and a fault, ...).
	KindMalformedEnvelope

	// KindTypeMismatch means a Value could not be reconciled with the Go
	// target (or source) shape it was projected against.
	KindTypeMismatch

	// KindUnsupportedKeyType means a mapping was encoded whose keys are not
	// strings. The wire format only has string member names.
	KindUnsupportedKeyType

	// KindUnsupportedFloatValue means NaN or an infinity was encoded. The
	// wire format cannot represent either.
	KindUnsupportedFloatValue

	// KindTooLarge means the parser's node budget was exceeded.
	KindTooLarge

	// KindTooDeep means the parser's nesting budget was exceeded.
	KindTooDeep
)

func (k Kind) String() string {
	switch k {
	case KindSyntax:
		return "syntax"
	case KindUnknownType:
		return "unknown type"
	case KindMalformedNumber:
		return "malformed number"
	case KindMalformedBoolean:
		return "malformed boolean"
	case KindMalformedBase64:
		return "malformed base64"
	case KindMalformedEnvelope:
		return "malformed envelope"
	case KindTypeMismatch:
		return "type mismatch"
	case KindUnsupportedKeyType:
		return "unsupported key type"
	case KindUnsupportedFloatValue:
		return "unsupported float value"
	case KindTooLarge:
		return "document too large"
	case KindTooDeep:
		return "document too deep"
	default:
		return fmt.Sprintf("kind(%d)", byte(k))
	}
}

// Error is the concrete error type returned throughout the library.
type Error struct {
	Kind Kind
	Path string // element/field/index path, empty at the document root
	Msg  string
	Err  error // wrapped cause, may be nil
}

func (e *Error) Error() string {
	s := e.Kind.String()
	if e.Msg != "" {
		s += ": " + e.Msg
	}
	if e.Err != nil {
		s += ": " + e.Err.Error()
	}
	if e.Path != "" {
		s += " (at " + e.Path + ")"
	}
	return s
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New builds an Error with a formatted message and no path.
func New(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// Wrap builds an Error around a cause.
func Wrap(kind Kind, err error, format string, args ...any) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...), Err: err}
}

// At returns a copy of e annotated with a path, unless e already carries one.
// Deeper calls set the path first; outer frames must not overwrite it.
func At(err error, path string) error {
	if path == "" {
		return err
	}
	var e *Error
	if !errors.As(err, &e) {
		return err
	}
	if e.Path != "" {
		return err
	}
	cp := *e
	cp.Path = path
	return &cp
}

// KindOf reports the Kind of err, and whether err came from this library.
func KindOf(err error) (Kind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return 0, false
}

// Is reports whether err carries the given Kind.
func Is(err error, kind Kind) bool {
	k, ok := KindOf(err)
	return ok && k == kind
}
