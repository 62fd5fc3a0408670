package main

import (
	"os"

	"golang.org/x/term"

	"github.com/dhmunro/dudley/core/layoutfmt/formatter"
)

// Re-export color constants from formatter package for convenience
const (
	ColorReset  = formatter.ColorReset
	ColorRed    = formatter.ColorRed
	ColorGreen  = formatter.ColorGreen
	ColorYellow = formatter.ColorYellow
	ColorBlue   = formatter.ColorBlue
	ColorCyan   = formatter.ColorCyan
	ColorGray   = formatter.ColorGray
)

// Colorize wraps text in ANSI color codes if color is enabled
func Colorize(text, color string, useColor bool) string {
	return formatter.Colorize(text, color, useColor)
}

// ShouldUseColor determines if color output should be used.
// Respects --no-color and NO_COLOR, and requires stdout to be a terminal.
func ShouldUseColor(noColorFlag bool) bool {
	if noColorFlag {
		return false
	}
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	return term.IsTerminal(int(os.Stdout.Fd()))
}
