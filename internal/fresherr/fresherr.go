// Package fresherr defines the tagged error-kind sum shared by every core
// component. Helpers never abort the process; callers decide how to recover.
package fresherr

import "errors"

// Kind identifies which of the editor's well-known error conditions occurred.
type Kind int

const (
	// KindUnknown is the zero value and should never be returned directly.
	KindUnknown Kind = iota
	KindPositionOutOfRange
	KindInvalidUTF8Boundary
	KindInconsistentUndo
	KindNoFreeMatch
	KindWrapUnavailable
	KindHighlighterUnavailable
	KindPluginExecutionError
	KindLspProtocolError
	KindPtyIOError
	KindFsUnsupported
	KindConfigInvalid
)

func (k Kind) String() string {
	switch k {
	case KindPositionOutOfRange:
		return "PositionOutOfRange"
	case KindInvalidUTF8Boundary:
		return "InvalidUtf8Boundary"
	case KindInconsistentUndo:
		return "InconsistentUndo"
	case KindNoFreeMatch:
		return "NoFreeMatch"
	case KindWrapUnavailable:
		return "WrapUnavailable"
	case KindHighlighterUnavailable:
		return "HighlighterUnavailable"
	case KindPluginExecutionError:
		return "PluginExecutionError"
	case KindLspProtocolError:
		return "LspProtocolError"
	case KindPtyIOError:
		return "PtyIoError"
	case KindFsUnsupported:
		return "FsUnsupported"
	case KindConfigInvalid:
		return "ConfigInvalid"
	default:
		return "Unknown"
	}
}

// Error is a Kind paired with a human-readable message and optional cause.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Message == "" {
		return e.Kind.String()
	}
	return e.Kind.String() + ": " + e.Message
}

func (e *Error) Unwrap() error { return e.Cause }

// Is reports whether target is a *Error with the same Kind, so callers can
// write errors.Is(err, fresherr.KindKey(KindPositionOutOfRange)).
func (e *Error) Is(target error) bool {
	var other *Error
	if errors.As(target, &other) {
		return other.Kind == e.Kind
	}
	return false
}

// New constructs an *Error of the given kind.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap constructs an *Error of the given kind around a cause.
func Wrap(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}

// KindKey returns a sentinel *Error usable as the target of errors.Is checks
// against a bare Kind, e.g. errors.Is(err, fresherr.KindKey(fresherr.KindNoFreeMatch)).
func KindKey(kind Kind) error { return &Error{Kind: kind} }

// Of reports the Kind of err if it is (or wraps) a *Error, else KindUnknown.
func Of(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}
