// Package runtime runs the whole resolution pipeline over one layout:
// parse, resolve scopes, allocate addresses and, for templates, validate.
package runtime

import (
	"fmt"
	"log/slog"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/lithammer/fuzzysearch/fuzzy"

	"github.com/dhmunro/dudley/core/annot"
	"github.com/dhmunro/dudley/core/filter"
	"github.com/dhmunro/dudley/core/layout"
	"github.com/dhmunro/dudley/core/types"
	"github.com/dhmunro/dudley/runtime/allocator"
	"github.com/dhmunro/dudley/runtime/lexer"
	"github.com/dhmunro/dudley/runtime/parser"
	"github.com/dhmunro/dudley/runtime/resolver"
	"github.com/dhmunro/dudley/runtime/shape"
	"github.com/dhmunro/dudley/runtime/template"

	derrors "github.com/dhmunro/dudley/core/errors"
)

// Options configures one resolution run.
type Options struct {
	Base     int64           // stream offset of the first byte
	Order    types.ByteOrder // default when the layout declares none
	Template bool            // validate as a template even without a preamble

	// Params binds stream-resident parameters. A bare name binds every
	// parameter of that name; a path such as "/g/N" binds one.
	Params map[string]int64

	Annotations annot.Sink
	Filters     *filter.Registry // checks filter names and arguments when set
	Telemetry   bool
	Logger      *slog.Logger
}

// Result is a resolved layout with its placement.
type Result struct {
	Layout    *layout.Layout
	Graph     *resolver.ScopeGraph
	Placement *allocator.Placement
	Values    shape.Values
	Encoding  lexer.Encoding
	Telemetry *Telemetry // nil unless requested
}

// Telemetry holds per-phase timings.
type Telemetry struct {
	Parse    *parser.ParseTelemetry
	Resolve  time.Duration
	Allocate time.Duration
	Validate time.Duration
	Total    time.Duration
}

// Resolve parses src and runs every phase. The first failure aborts the run
// and is returned as a *errors.Error.
func Resolve(src []byte, opts Options) (*Result, error) {
	logger := opts.Logger
	if logger == nil {
		logger = NewLogger()
	}
	var tel *Telemetry
	start := time.Now()

	popts := []parser.ParserOpt{}
	if opts.Annotations != nil {
		popts = append(popts, parser.WithAnnotations(opts.Annotations))
	}
	if opts.Template {
		popts = append(popts, parser.WithTemplate())
	}
	if opts.Telemetry {
		tel = &Telemetry{}
		popts = append(popts, parser.WithTelemetryTiming())
	}

	tree, err := parser.Parse(src, popts...)
	if err != nil {
		logger.Debug("parse failed", "error", err)
		return nil, err
	}
	l := tree.Layout
	logger.Debug("parsed", "items", len(l.Items), "encoding", string(tree.Encoding))
	if tel != nil {
		tel.Parse = tree.Telemetry
	}

	phase := time.Now()
	graph, err := resolver.ResolveGraph(l)
	if err != nil {
		logger.Debug("resolve failed", "error", err)
		return nil, err
	}
	if tel != nil {
		tel.Resolve = time.Since(phase)
	}
	logger.Debug("resolved", "types", len(l.Types))

	if opts.Filters != nil {
		if err := opts.Filters.CheckLayout(l); err != nil {
			logger.Debug("filter check failed", "error", err)
			return nil, err
		}
	}

	values, err := Bind(l, opts.Params)
	if err != nil {
		return nil, err
	}

	phase = time.Now()
	if err := template.Validate(l); err != nil {
		logger.Debug("template check failed", "error", err)
		return nil, err
	}
	if tel != nil {
		tel.Validate = time.Since(phase)
	}

	phase = time.Now()
	pl, err := allocator.Allocate(l, allocator.Config{
		Base:   opts.Base,
		Order:  opts.Order,
		Values: values,
		Logger: logger,
	})
	if err != nil {
		logger.Debug("allocate failed", "error", err)
		return nil, err
	}
	if tel != nil {
		tel.Allocate = time.Since(phase)
		tel.Total = time.Since(start)
	}
	logger.Debug("allocated", "entries", len(pl.Entries), "end", pl.End, "end_known", pl.EndKnown)

	return &Result{
		Layout:    l,
		Graph:     graph,
		Placement: pl,
		Values:    values,
		Encoding:  tree.Encoding,
		Telemetry: tel,
	}, nil
}

// Bind maps parameter names or paths to the stream-resident parameters of l.
// A bare name binds every non-member parameter of that name.
func Bind(l *layout.Layout, params map[string]int64) (shape.Values, error) {
	values := shape.Values{}
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	// Paths go last so they override a binding by name.
	sort.Slice(keys, func(i, j int) bool {
		pi, pj := strings.Contains(keys[i], "/"), strings.Contains(keys[j], "/")
		if pi != pj {
			return pj
		}
		return keys[i] < keys[j]
	})

	for _, key := range keys {
		v := params[key]
		if strings.Contains(key, "/") {
			it, err := l.Find(key)
			if err != nil {
				return nil, err
			}
			p, ok := it.(*layout.Param)
			if !ok || !p.StreamResident() {
				return nil, derrors.New(derrors.Scope, types.Position{}, "%s is not a stream parameter", key).
					WithPath(key)
			}
			values[p] = v
			continue
		}

		found := false
		for _, it := range l.Items {
			if p, ok := it.(*layout.Param); ok && p.Name() == key && p.StreamResident() && !p.IsMember() {
				values[p] = v
				found = true
			}
		}
		if !found {
			e := derrors.New(derrors.Scope, types.Position{}, "no stream parameter named %q", key)
			if s := suggest(key, streamNames(l)); s != "" {
				e.WithSuggestion(fmt.Sprintf("did you mean %q?", s))
			}
			return nil, e
		}
	}
	return values, nil
}

func streamNames(l *layout.Layout) []string {
	seen := map[string]bool{}
	var names []string
	for _, it := range l.Items {
		if p, ok := it.(*layout.Param); ok && p.StreamResident() && !p.IsMember() && !seen[p.Name()] {
			seen[p.Name()] = true
			names = append(names, p.Name())
		}
	}
	return names
}

func suggest(target string, names []string) string {
	ranks := fuzzy.RankFindFold(target, names)
	if len(ranks) == 0 {
		return ""
	}
	sort.Sort(ranks)
	return ranks[0].Target
}

// NewLogger returns the stderr logger used by the pipeline. It logs phase
// records at debug level when DUDLEY_DEBUG is set.
func NewLogger() *slog.Logger {
	level := slog.LevelInfo
	if os.Getenv("DUDLEY_DEBUG") != "" {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.TimeKey {
				return slog.Attr{}
			}
			return a
		},
	}))
}
