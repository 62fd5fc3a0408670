package main

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dhmunro/dudley/core/layout"
	"github.com/dhmunro/dudley/core/types"
)

func TestLoadConfig(t *testing.T) {
	path := writeFile(t, "dudley.yaml", `order: ">"
base: 32
template: true
params:
  N: 4
  /g/N: 5
annotations: notes.db
filters:
  - name: blosc
    kind: compress
    schema: '{"type": "array", "maxItems": 1, "items": {"type": "integer"}}'
`)
	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	expected := &Config{
		Order:       ">",
		Base:        32,
		Template:    true,
		Params:      map[string]int64{"N": 4, "/g/N": 5},
		Annotations: "notes.db",
		Filters: []FilterConfig{{
			Name:   "blosc",
			Kind:   "compress",
			Schema: `{"type": "array", "maxItems": 1, "items": {"type": "integer"}}`,
		}},
	}
	if diff := cmp.Diff(expected, cfg); diff != "" {
		t.Errorf("Config mismatch (-want +got):\n%s", diff)
	}

	r, err := cfg.Registry()
	require.NoError(t, err)
	assert.NoError(t, r.Check(&layout.Filter{Kind: layout.FilterCompress, Name: "blosc", Args: []interface{}{int64(5)}}))
	assert.Error(t, r.Check(&layout.Filter{Kind: layout.FilterCompress, Name: "blosc", Args: []interface{}{1.5}}))
}

func TestLoadConfigErrors(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"bad yaml", "order: [\n"},
		{"bad order", "order: middle\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadConfig(writeFile(t, "dudley.yaml", tt.content))
			assert.Error(t, err)
		})
	}

	cfg := &Config{Filters: []FilterConfig{{Name: "x", Kind: "sideways"}}}
	_, err := cfg.Registry()
	assert.ErrorContains(t, err, "unknown kind")

	cfg = &Config{Filters: []FilterConfig{{Name: "x", Schema: "{"}}}
	_, err = cfg.Registry()
	assert.Error(t, err)
}

func TestParseOrder(t *testing.T) {
	tests := []struct {
		in       string
		expected types.ByteOrder
	}{
		{"", types.OrderIndeterminate},
		{"<", types.OrderLittle},
		{">", types.OrderBig},
		{"|", types.OrderIndeterminate},
		{"little", types.OrderLittle},
		{"big", types.OrderBig},
	}
	for _, tt := range tests {
		got, err := parseOrder(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.expected, got, tt.in)
	}
	_, err := parseOrder("x")
	assert.Error(t, err)
}

func TestParseParams(t *testing.T) {
	got, err := parseParams([]string{"N=4", "/g/M = 0x10", "K=-1"})
	require.NoError(t, err)
	assert.Equal(t, map[string]int64{"N": 4, "/g/M": 16, "K": -1}, got)

	for _, bad := range []string{"N", "=3", "N=x"} {
		_, err := parseParams([]string{bad})
		assert.Error(t, err, bad)
	}

	merged := mergeParams(map[string]int64{"N": 1, "K": 2}, map[string]int64{"N": 3})
	assert.Equal(t, map[string]int64{"N": 3, "K": 2}, merged)
}

func TestFlagsOverrideConfig(t *testing.T) {
	cfg := writeFile(t, "dudley.yaml", "base: 64\nparams:\n  N: 1\n")
	path := writeFile(t, "a.dud", "N: i4\nx = f8[N]\n")

	out, err := run(t, "addr", "-c", cfg, path, "/x")
	require.NoError(t, err)
	assert.Equal(t, "/x @72 +8\n", out)

	out, err = run(t, "addr", "-c", cfg, path, "/x", "--base", "0", "-p", "N=3")
	require.NoError(t, err)
	assert.Equal(t, "/x @8 +24\n", out)
}
