// Package filter is the registry of named filters a layout may attach to a
// data item with "->" (compression) or "<-" (reference).
//
// The resolver never runs a filter; it only needs to know that the name
// exists, that it is used with the right marker, and that its argument list
// is acceptable. Each filter describes its arguments with a JSON Schema for
// the argument array, compiled once and cached.
package filter

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"

	"github.com/lithammer/fuzzysearch/fuzzy"
	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/dhmunro/dudley/core/layout"

	derrors "github.com/dhmunro/dudley/core/errors"
)

// Spec describes one filter.
type Spec struct {
	Name   string
	Kind   layout.FilterKind
	Schema string // JSON Schema for the argument array; "" accepts no arguments
	Doc    string
}

// Config controls schema limits and caching.
type Config struct {
	MaxSchemaSize int // bytes
	EnableCache   bool
	MaxCacheSize  int
}

// DefaultConfig returns the limits used by NewRegistry(nil).
func DefaultConfig() *Config {
	return &Config{
		MaxSchemaSize: 64 * 1024,
		EnableCache:   true,
		MaxCacheSize:  256,
	}
}

const noArgs = `{"type": "array", "maxItems": 0}`

// Builtins are registered in every new registry.
var Builtins = []Spec{
	{Name: "gzip", Kind: layout.FilterCompress, Doc: "deflate with optional level",
		Schema: `{"type": "array", "maxItems": 1, "items": {"type": "integer", "minimum": 1, "maximum": 9}}`},
	{Name: "zfp", Kind: layout.FilterCompress, Doc: "lossy floating point, rate or tolerance",
		Schema: `{"type": "array", "maxItems": 1, "items": {"type": "number", "exclusiveMinimum": 0}}`},
	{Name: "jpeg", Kind: layout.FilterCompress, Doc: "lossy image, quality 0-100",
		Schema: `{"type": "array", "maxItems": 1, "items": {"type": "integer", "minimum": 0, "maximum": 100}}`},
	{Name: "png", Kind: layout.FilterCompress, Doc: "lossless image", Schema: noArgs},
	{Name: "ref", Kind: layout.FilterReference, Doc: "object reference", Schema: noArgs},
}

// Registry maps filter names to their specs.
type Registry struct {
	mu     sync.RWMutex
	specs  map[string]Spec
	config *Config
	cache  *argSchemaCache
}

// NewRegistry returns a registry holding the builtins.
func NewRegistry(config *Config) *Registry {
	if config == nil {
		config = DefaultConfig()
	}
	r := &Registry{specs: make(map[string]Spec), config: config}
	if config.EnableCache {
		r.cache = newArgSchemaCache(config.MaxCacheSize)
	}
	for _, s := range Builtins {
		r.specs[s.Name] = s
	}
	return r
}

// Register adds or replaces a filter. The schema is compiled immediately so
// a bad schema fails here rather than at first use.
func (r *Registry) Register(s Spec) error {
	if s.Name == "" {
		return fmt.Errorf("filter name is empty")
	}
	if s.Schema == "" {
		s.Schema = noArgs
	}
	if _, err := r.validator(s.Schema); err != nil {
		return fmt.Errorf("filter %s: %w", s.Name, err)
	}
	r.mu.Lock()
	r.specs[s.Name] = s
	r.mu.Unlock()
	return nil
}

// Lookup returns the spec registered under name.
func (r *Registry) Lookup(name string) (Spec, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.specs[name]
	return s, ok
}

// Names returns the registered names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.specs))
	for name := range r.specs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Check verifies one filter use.
func (r *Registry) Check(f *layout.Filter) error {
	s, ok := r.Lookup(f.Name)
	if !ok {
		e := derrors.New(derrors.Scope, f.Pos, "unknown filter %q", f.Name).WithToken(f.Name)
		if ranks := fuzzy.RankFindFold(f.Name, r.Names()); len(ranks) > 0 {
			sort.Sort(ranks)
			e.WithSuggestion(fmt.Sprintf("did you mean %q?", ranks[0].Target))
		}
		return e
	}
	if s.Kind != f.Kind {
		return derrors.New(derrors.Structural, f.Pos, "%s is a %s filter, not %s",
			f.Name, kindName(s.Kind), f.Kind).WithSuggestion(fmt.Sprintf("use %s %s", s.Kind, f.Name))
	}

	schema := s.Schema
	if schema == "" {
		schema = noArgs
	}
	v, err := r.validator(schema)
	if err != nil {
		return derrors.Wrap(derrors.Structural, f.Pos, err, "filter %s has an invalid schema", f.Name)
	}
	args, err := jsonArgs(f.Args)
	if err != nil {
		return derrors.Wrap(derrors.Structural, f.Pos, err, "filter %s arguments", f.Name)
	}
	if err := v.Validate(args); err != nil {
		return derrors.New(derrors.Structural, f.Pos, "bad arguments for filter %s: %s",
			f.Name, validationMessage(err))
	}
	return nil
}

// CheckLayout verifies every filter in l, stopping at the first failure.
func (r *Registry) CheckLayout(l *layout.Layout) error {
	for _, it := range l.Items {
		d, ok := it.(*layout.Data)
		if !ok || d.Filter == nil {
			continue
		}
		if err := r.Check(d.Filter); err != nil {
			if e, ok := derrors.As(err); ok {
				return e.WithPath(layout.Path(d)).WithInput(l.Source)
			}
			return err
		}
	}
	return nil
}

func kindName(k layout.FilterKind) string {
	if k == layout.FilterReference {
		return "reference"
	}
	return "compression"
}

// jsonArgs converts the argument list into the form the validator expects,
// with numbers as json.Number.
func jsonArgs(args []interface{}) (interface{}, error) {
	if args == nil {
		args = []interface{}{}
	}
	b, err := json.Marshal(args)
	if err != nil {
		return nil, err
	}
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()
	var out interface{}
	if err := dec.Decode(&out); err != nil {
		return nil, err
	}
	return out, nil
}

func validationMessage(err error) string {
	ve, ok := err.(*jsonschema.ValidationError)
	if !ok {
		return err.Error()
	}
	for len(ve.Causes) > 0 {
		ve = ve.Causes[0]
	}
	msg := ve.Message
	if loc := strings.TrimPrefix(ve.InstanceLocation, "/"); loc != "" {
		msg = "argument " + loc + ": " + msg
	}
	return msg
}

// validator compiles schema, or returns the cached compilation.
func (r *Registry) validator(schema string) (*jsonschema.Schema, error) {
	if len(schema) > r.config.MaxSchemaSize {
		return nil, fmt.Errorf("schema too large: %d bytes (max: %d)", len(schema), r.config.MaxSchemaSize)
	}
	digest := schemaDigest(schema)
	if r.cache != nil {
		if v, ok := r.cache.lookup(digest); ok {
			return v, nil
		}
	}

	compiler := jsonschema.NewCompiler()
	compiler.Draft = jsonschema.Draft2020
	compiler.LoadURL = func(url string) (io.ReadCloser, error) {
		return nil, fmt.Errorf("$ref not allowed: %s", url)
	}
	const url = "schema://filter.json"
	if err := compiler.AddResource(url, strings.NewReader(schema)); err != nil {
		return nil, err
	}
	v, err := compiler.Compile(url)
	if err != nil {
		return nil, err
	}
	if r.cache != nil {
		r.cache.store(digest, v)
	}
	return v, nil
}
