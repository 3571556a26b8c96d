// Package errs defines the error taxonomy shared across the indexing
// engine (config, source, extract, store, spill, and cancellation
// failures).
package errs

import (
	"errors"
	"fmt"

	pkgerrors "github.com/pkg/errors"
)

// Kind identifies which stage of the pipeline produced an error.
type Kind int

const (
	KindConfig Kind = iota
	KindSource
	KindExtract
	KindCorruptPayload
	KindStore
	KindSpill
	KindCancelled
)

func (k Kind) String() string {
	switch k {
	case KindConfig:
		return "ConfigError"
	case KindSource:
		return "SourceError"
	case KindExtract:
		return "ExtractError"
	case KindCorruptPayload:
		return "CorruptPayload"
	case KindStore:
		return "StoreError"
	case KindSpill:
		return "SpillError"
	case KindCancelled:
		return "Cancelled"
	default:
		return "UnknownError"
	}
}

// Error is a kind-tagged error carrying a pkg/errors stack trace over its
// cause (if any), while remaining unwrappable via the standard errors
// package.
type Error struct {
	Kind  Kind
	msg   string
	cause error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.msg, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.msg)
}

func (e *Error) Unwrap() error { return e.cause }

// Wrap tags cause with kind and a stack trace, preserving errors.Is/As
// compatibility with the wrapped cause.
func Wrap(cause error, kind Kind, msg string) *Error {
	var wrapped error
	if cause != nil {
		wrapped = pkgerrors.WithStack(cause)
	}
	return &Error{Kind: kind, msg: msg, cause: wrapped}
}

// New creates a kind-tagged error with no underlying cause.
func New(kind Kind, msg string) *Error {
	return &Error{Kind: kind, msg: msg}
}

// Is reports whether err (or anything it wraps) carries the given Kind.
func Is(err error, kind Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}

// KindOf extracts err's Kind, defaulting to KindCancelled (the catch-all
// "aborted" bucket) when err was not produced by this package.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindCancelled
}
