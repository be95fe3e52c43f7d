package parse

import (
	"errors"
	"fmt"
	"strings"
)

// Error kinds. Every failure surfaced by a parser is a *Error whose Kind
// is one of these, so callers can test with errors.Is(err, parse.ErrParse).
var (
	ErrNotFound  = errors.New("not found")
	ErrFormat    = errors.New("format error")
	ErrParse     = errors.New("parse error")
	ErrCancelled = errors.New("cancelled")
	ErrResource  = errors.New("resource limit exceeded")
)

// Error describes a single parse failure with as much location context as
// the parser had at hand.
type Error struct {
	Kind     error
	Path     string
	Line     int   // 1-based line number, 0 when not applicable
	Offset   int64 // byte offset, -1 when not applicable
	Expected string
	Found    string
	Msg      string
	Err      error
}

func newError(kind error, path, msg string) *Error {
	return &Error{Kind: kind, Path: path, Offset: -1, Msg: msg}
}

// NotFound reports a missing input file
func NotFound(path string, err error) *Error {
	e := newError(ErrNotFound, path, "file does not exist")
	e.Err = err
	return e
}

// Formatf reports an undetectable or mismatched format
func Formatf(path, format string, args ...any) *Error {
	return newError(ErrFormat, path, fmt.Sprintf(format, args...))
}

// Parsef reports structurally invalid content
func Parsef(path, format string, args ...any) *Error {
	return newError(ErrParse, path, fmt.Sprintf(format, args...))
}

// Resourcef reports input that exceeds a sanity bound
func Resourcef(path, format string, args ...any) *Error {
	return newError(ErrResource, path, fmt.Sprintf(format, args...))
}

// Cancelled reports a cooperative abort
func Cancelled(path string) *Error {
	return newError(ErrCancelled, path, "parse cancelled")
}

// AtLine attaches a 1-based line number
func (e *Error) AtLine(line int) *Error {
	e.Line = line
	return e
}

// AtOffset attaches a byte offset
func (e *Error) AtOffset(offset int64) *Error {
	e.Offset = offset
	return e
}

// Expecting attaches the expected and found tokens
func (e *Error) Expecting(expected, found string) *Error {
	e.Expected = expected
	e.Found = found
	return e
}

// Wrap attaches an underlying cause
func (e *Error) Wrap(err error) *Error {
	e.Err = err
	return e
}

// Error implements the error interface
func (e *Error) Error() string {
	var sb strings.Builder
	sb.WriteString(e.Kind.Error())
	if e.Path != "" {
		sb.WriteString(": ")
		sb.WriteString(e.Path)
	}
	if e.Line > 0 {
		fmt.Fprintf(&sb, ":%d", e.Line)
	}
	if e.Offset >= 0 {
		fmt.Fprintf(&sb, " at offset %d", e.Offset)
	}
	if e.Msg != "" {
		sb.WriteString(": ")
		sb.WriteString(e.Msg)
	}
	if e.Expected != "" {
		fmt.Fprintf(&sb, " (expected %q, found %q)", e.Expected, e.Found)
	}
	if e.Err != nil {
		sb.WriteString(": ")
		sb.WriteString(e.Err.Error())
	}
	return sb.String()
}

// Unwrap exposes both the kind sentinel and the underlying cause
func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// KindOf returns the kind sentinel of err, or nil if err is not a parse error
func KindOf(err error) error {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Kind
	}
	return nil
}
