package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/dhmunro/dudley/core/filter"
	"github.com/dhmunro/dudley/core/layout"
	"github.com/dhmunro/dudley/core/types"
)

// Config is the optional YAML file read with --config. Flags override it.
type Config struct {
	Order       string           `yaml:"order,omitempty"`
	Base        int64            `yaml:"base,omitempty"`
	Template    bool             `yaml:"template,omitempty"`
	Params      map[string]int64 `yaml:"params,omitempty"`
	Annotations string           `yaml:"annotations,omitempty"` // SQLite path; memory when empty
	Filters     []FilterConfig   `yaml:"filters,omitempty"`
}

// FilterConfig registers or overrides one filter.
type FilterConfig struct {
	Name   string `yaml:"name"`
	Kind   string `yaml:"kind"` // "compress" or "reference"
	Schema string `yaml:"schema,omitempty"`
	Doc    string `yaml:"doc,omitempty"`
}

// LoadConfig reads path. An empty path yields the zero Config.
func LoadConfig(path string) (*Config, error) {
	cfg := &Config{}
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	if _, err := cfg.ByteOrder(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// ByteOrder parses Order, which may be empty.
func (c *Config) ByteOrder() (types.ByteOrder, error) {
	return parseOrder(c.Order)
}

func parseOrder(s string) (types.ByteOrder, error) {
	switch s {
	case "":
		return types.OrderIndeterminate, nil
	case "little":
		return types.OrderLittle, nil
	case "big":
		return types.OrderBig, nil
	}
	if len(s) == 1 {
		if o, ok := types.ParseByteOrder(s[0]); ok {
			return o, nil
		}
	}
	return 0, fmt.Errorf("invalid byte order %q (want <, >, |, little or big)", s)
}

// Registry returns the builtin filters plus the configured ones.
func (c *Config) Registry() (*filter.Registry, error) {
	r := filter.NewRegistry(nil)
	for _, f := range c.Filters {
		var kind layout.FilterKind
		switch f.Kind {
		case "", "compress":
			kind = layout.FilterCompress
		case "reference":
			kind = layout.FilterReference
		default:
			return nil, fmt.Errorf("filter %s: unknown kind %q", f.Name, f.Kind)
		}
		if err := r.Register(filter.Spec{Name: f.Name, Kind: kind, Schema: f.Schema, Doc: f.Doc}); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// parseParams turns "N=4" flag values into bindings.
func parseParams(values []string) (map[string]int64, error) {
	out := make(map[string]int64, len(values))
	for _, v := range values {
		name, num, ok := strings.Cut(v, "=")
		if !ok || name == "" {
			return nil, fmt.Errorf("invalid parameter %q (want NAME=VALUE)", v)
		}
		n, err := strconv.ParseInt(strings.TrimSpace(num), 0, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid value for parameter %s: %w", name, err)
		}
		out[strings.TrimSpace(name)] = n
	}
	return out, nil
}

// mergeParams returns base overlaid with over.
func mergeParams(base, over map[string]int64) map[string]int64 {
	out := make(map[string]int64, len(base)+len(over))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range over {
		out[k] = v
	}
	return out
}
