package main

import (
	"fmt"
	"io"

	derrors "github.com/dhmunro/dudley/core/errors"
)

// CLIError is a command-line failure that is not about the layout text.
type CLIError struct {
	Message string
	Details string
	Hint    string
}

func (e *CLIError) Error() string {
	s := e.Message
	if e.Details != "" {
		s += "\n" + e.Details
	}
	if e.Hint != "" {
		s += "\n" + e.Hint
	}
	return s
}

// FormatError writes err for a terminal.
func FormatError(w io.Writer, err error, useColor bool) {
	if err == nil {
		return
	}
	if e, ok := derrors.As(err); ok {
		formatLayoutError(w, e, useColor)
		return
	}
	if e, ok := err.(*CLIError); ok {
		formatCLIError(w, e, useColor)
		return
	}
	_, _ = fmt.Fprintf(w, "%s%s\n", Colorize("Error: ", ColorRed, useColor), err.Error())
}

// formatLayoutError prints kind, message and location, then the hint and
// the source snippet.
func formatLayoutError(w io.Writer, e *derrors.Error, useColor bool) {
	_, _ = fmt.Fprintf(w, "%s%s\n", Colorize(e.Kind.String()+": ", ColorRed, useColor), e.Message)
	if e.Path != "" {
		_, _ = fmt.Fprintf(w, "  %s\n", Colorize("in "+e.Path, ColorGray, useColor))
	}
	if e.Cause != nil {
		_, _ = fmt.Fprintf(w, "  %s\n", Colorize(e.Cause.Error(), ColorGray, useColor))
	}
	if e.Suggestion != "" {
		_, _ = fmt.Fprintf(w, "  %s\n", Colorize(e.Suggestion, ColorYellow, useColor))
	}
	if snippet := e.Snippet(); snippet != "" {
		_, _ = fmt.Fprintln(w, snippet)
	}
}

func formatCLIError(w io.Writer, err *CLIError, useColor bool) {
	_, _ = fmt.Fprintf(w, "%s%s\n", Colorize("Error: ", ColorRed, useColor), err.Message)

	if err.Details != "" {
		_, _ = fmt.Fprintf(w, "\n%s\n", err.Details)
	}

	if err.Hint != "" {
		_, _ = fmt.Fprintf(w, "%s%s\n", Colorize("Hint: ", ColorYellow, useColor), err.Hint)
	}
}
