// Package fault classifies the expected failure conditions of an extraction
// attempt so the retry state machine can act on them without string matching.
package fault

import (
	"errors"
	"fmt"

	"github.com/rotisserie/eris"
)

// Kind names a class of extraction failure.
type Kind string

const (
	NotFound        Kind = "not_found"
	TabNotFound     Kind = "tab_not_found"
	SectionNotFound Kind = "section_not_found"
	Navigation      Kind = "navigation"
	LLM             Kind = "llm_error"
	Parse           Kind = "parse_error"
	NoValidData     Kind = "no_valid_data"
)

// Error is a classified failure. Stage names the pipeline state that raised it.
type Error struct {
	Kind  Kind
	Stage string
	Err   error
}

func (e *Error) Error() string {
	if e.Stage != "" {
		return fmt.Sprintf("%s: %s", e.Stage, e.Err.Error())
	}
	return e.Err.Error()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New creates a classified error with a fresh eris stack.
func New(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Err: eris.New(msg)}
}

// Newf is New with formatting.
func Newf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Err: eris.Errorf(format, args...)}
}

// Wrap classifies an existing error. A nil err returns nil.
func Wrap(err error, kind Kind, msg string) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Err: eris.Wrap(err, msg)}
}

// AtStage attaches the pipeline stage to a classified error. Unclassified
// errors are left untouched.
func AtStage(err error, stage string) error {
	var fe *Error
	if errors.As(err, &fe) && fe.Stage == "" {
		fe.Stage = stage
	}
	return err
}

// KindOf returns the kind of the first classified error in the chain, or ""
// when the error is unclassified.
func KindOf(err error) Kind {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return ""
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// Terminal reports whether the failure ends the institution's processing
// without further attempts.
func Terminal(err error) bool {
	switch KindOf(err) {
	case NotFound, NoValidData:
		return true
	default:
		return false
	}
}

// Retryable is the inverse of Terminal for non-nil errors. Unclassified
// errors are retried.
func Retryable(err error) bool {
	return err != nil && !Terminal(err)
}

// Label returns a printable kind for logs and the ledger.
func Label(err error) string {
	if err == nil {
		return ""
	}
	if k := KindOf(err); k != "" {
		return string(k)
	}
	return "internal"
}
