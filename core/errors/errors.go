// Package errors defines the diagnostics produced while resolving a layout.
//
// Every failure is fatal to the resolution pass and carries a Kind, the
// source position of the offending token and, where it helps, the container
// path and a suggested fix.
package errors

import (
	stderrors "errors"
	"fmt"
	"strings"

	"github.com/dhmunro/dudley/core/types"
)

// Kind classifies a resolution failure.
type Kind int

const (
	Lexical           Kind = iota // malformed token, unterminated quote
	Structural                    // misplaced punctuation, unmatched delimiter, illegal reopen
	NameConflict                  // duplicate data or type declaration
	Scope                         // undeclared or out-of-scope reference
	Shape                         // invalid dimension rule combination
	Address                       // explicit address conflicts with alignment or placement
	TemplateViolation             // stream-dependent construct in a template
)

// String returns the taxonomy name of the kind.
func (k Kind) String() string {
	switch k {
	case Lexical:
		return "LexicalError"
	case Structural:
		return "StructuralError"
	case NameConflict:
		return "NameConflictError"
	case Scope:
		return "ScopeError"
	case Shape:
		return "ShapeError"
	case Address:
		return "AddressError"
	case TemplateViolation:
		return "TemplateViolationError"
	default:
		return "Error"
	}
}

// Error is a located resolution failure.
type Error struct {
	Kind       Kind
	Message    string
	Pos        types.Position
	Token      string // offending token text, if any
	Path       string // container path, e.g. "/grid/coords"
	Suggestion string // "did you mean ..." or a fix hint
	Input      string // source text, used for the snippet
	Cause      error
}

// New creates an error of the given kind at pos.
func New(kind Kind, pos types.Position, format string, args ...interface{}) *Error {
	return &Error{
		Kind:    kind,
		Message: fmt.Sprintf(format, args...),
		Pos:     pos,
	}
}

// Wrap creates an error of the given kind that wraps cause.
func Wrap(kind Kind, pos types.Position, cause error, format string, args ...interface{}) *Error {
	e := New(kind, pos, format, args...)
	e.Cause = cause
	return e
}

// WithPath records the container path the error was found in.
func (e *Error) WithPath(path string) *Error {
	e.Path = path
	return e
}

// WithToken records the text of the offending token.
func (e *Error) WithToken(text string) *Error {
	e.Token = text
	return e
}

// WithSuggestion records a hint shown after the message.
func (e *Error) WithSuggestion(s string) *Error {
	e.Suggestion = s
	return e
}

// WithInput attaches the source text so Error can render a snippet.
func (e *Error) WithInput(input string) *Error {
	if e.Input == "" {
		e.Input = input
	}
	return e
}

// Error returns the message followed by location details and a snippet.
func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(e.Kind.String())
	if e.Pos.IsValid() {
		fmt.Fprintf(&b, " at %s", e.Pos)
	}
	b.WriteString(": ")
	b.WriteString(e.Message)
	if e.Token != "" {
		fmt.Fprintf(&b, " (token %q)", e.Token)
	}
	if e.Path != "" {
		fmt.Fprintf(&b, " in %s", e.Path)
	}
	if e.Cause != nil {
		fmt.Fprintf(&b, ": %v", e.Cause)
	}
	if e.Suggestion != "" {
		b.WriteString("\n  ")
		b.WriteString(e.Suggestion)
	}
	if snippet := e.Snippet(); snippet != "" {
		b.WriteString("\n")
		b.WriteString(snippet)
	}
	return b.String()
}

// Unwrap returns the wrapped cause.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Snippet renders the offending source line with a caret under the column:
//
//	  --> 3:9
//	   |
//	 3 | x = f8[3] @128
//	   |         ^
func (e *Error) Snippet() string {
	if e.Input == "" || !e.Pos.IsValid() {
		return ""
	}
	lines := strings.Split(e.Input, "\n")
	if e.Pos.Line > len(lines) {
		return ""
	}
	line := strings.TrimRight(lines[e.Pos.Line-1], "\r")

	var b strings.Builder
	fmt.Fprintf(&b, "  --> %d:%d\n", e.Pos.Line, e.Pos.Column)
	b.WriteString("   |\n")
	fmt.Fprintf(&b, "%2d | %s\n", e.Pos.Line, line)
	b.WriteString("   | ")
	if e.Pos.Column > 0 && e.Pos.Column <= len(line)+1 {
		b.WriteString(strings.Repeat(" ", e.Pos.Column-1) + "^")
	}
	return b.String()
}

// As returns the *Error in err's chain, if any.
func As(err error) (*Error, bool) {
	var e *Error
	if stderrors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// IsKind reports whether err's chain holds an *Error of the given kind.
func IsKind(err error, kind Kind) bool {
	e, ok := As(err)
	return ok && e.Kind == kind
}
