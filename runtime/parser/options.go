package parser

import (
	"time"

	"github.com/dhmunro/dudley/core/annot"
)

// ParserOpt represents a parser configuration option
type ParserOpt func(*ParserConfig)

// TelemetryMode controls telemetry collection (production-safe)
type TelemetryMode int

const (
	TelemetryOff    TelemetryMode = iota // Zero overhead (default)
	TelemetryBasic                       // Token and item counts only
	TelemetryTiming                      // Counts + timing per phase
)

// DebugLevel controls debug tracing (development only)
type DebugLevel int

const (
	DebugOff      DebugLevel = iota // No debug info (default)
	DebugPaths                      // Statement tracing
	DebugDetailed                   // Statement and container-stack tracing
)

// ParserConfig holds parser configuration
type ParserConfig struct {
	telemetry TelemetryMode
	debug     DebugLevel
	sink      annot.Sink
	template  bool
}

// WithTelemetryBasic enables basic telemetry (counts only)
func WithTelemetryBasic() ParserOpt {
	return func(c *ParserConfig) {
		c.telemetry = TelemetryBasic
	}
}

// WithTelemetryTiming enables timing telemetry (counts + timing per phase)
func WithTelemetryTiming() ParserOpt {
	return func(c *ParserConfig) {
		c.telemetry = TelemetryTiming
	}
}

// WithDebugPaths enables statement tracing (development only)
func WithDebugPaths() ParserOpt {
	return func(c *ParserConfig) {
		c.debug = DebugPaths
	}
}

// WithDebugDetailed enables detailed tracing (development only)
func WithDebugDetailed() ParserOpt {
	return func(c *ParserConfig) {
		c.debug = DebugDetailed
	}
}

// WithAnnotations forwards "##" and "#:" comments to sink.
func WithAnnotations(sink annot.Sink) ParserOpt {
	return func(c *ParserConfig) {
		c.sink = sink
	}
}

// WithTemplate marks the layout as a template even without a template
// preamble.
func WithTemplate() ParserOpt {
	return func(c *ParserConfig) {
		c.template = true
	}
}

// ParseTelemetry holds parser performance metrics (production-safe)
type ParseTelemetry struct {
	LexTime      time.Duration // Time spent lexing
	ParseTime    time.Duration // Time spent building the tree
	TotalTime    time.Duration // Total parse time
	TokenCount   int           // Number of significant tokens
	CommentCount int           // Number of doc and attribute comments
	ItemCount    int           // Number of items in the layout
}

// DebugEvent holds debug tracing information (development only)
type DebugEvent struct {
	Timestamp time.Time
	Event     string // "dict_item", "list_item", "pop", etc.
	TokenPos  int    // Current token position
	Context   string // Container path or token text
}
