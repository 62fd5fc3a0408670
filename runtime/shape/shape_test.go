package shape

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dhmunro/dudley/core/layout"
	"github.com/dhmunro/dudley/core/types"

	derrors "github.com/dhmunro/dudley/core/errors"
)

func streamParam(name string) *layout.Param {
	return layout.NewStreamParam(name, layout.TypeRef{Name: "i4"}, layout.Placement{}, types.Position{})
}

func named(p *layout.Param, optional bool, adjust int) layout.Dimension {
	return layout.Dimension{Name: p.Name(), Optional: optional, Adjust: adjust, Ref: layout.ParamRef{Param: p}}
}

func TestEvaluateBound(t *testing.T) {
	n := streamParam("N")
	fixed := layout.NewFixedParam("K", 3, types.Position{})
	dims := []layout.Dimension{named(n, false, 1), {Literal: 2}, named(fixed, false, -1)}

	got, err := Evaluate(dims, Values{n: 4})
	require.NoError(t, err)
	expected := Result{Dims: []int64{5, 2, 2}, Known: true}
	if diff := cmp.Diff(expected, got); diff != "" {
		t.Errorf("shape mismatch (-expected +actual):\n%s", diff)
	}
	count, ok := got.Count()
	assert.True(t, ok)
	assert.Equal(t, int64(20), count)
}

func TestScalar(t *testing.T) {
	got, err := Evaluate(nil, Values{})
	require.NoError(t, err)
	count, ok := got.Count()
	assert.True(t, ok)
	assert.Equal(t, int64(1), count)
	assert.Empty(t, got.Dims)
}

func TestUnboundIsNotAnError(t *testing.T) {
	n, m := streamParam("N"), streamParam("M")
	got, err := Evaluate([]layout.Dimension{named(n, false, 0), named(m, false, 2)}, Values{})
	require.NoError(t, err)
	assert.False(t, got.Known)
	assert.Equal(t, []string{"N", "M"}, got.Missing)
	_, ok := got.Count()
	assert.False(t, ok)

	refined, err := Evaluate([]layout.Dimension{named(n, false, 0), named(m, false, 2)}, Values{n: 2, m: 3})
	require.NoError(t, err)
	assert.Equal(t, []int64{2, 5}, refined.Dims)
}

func TestZeroOmitsRegardlessOfSuffixes(t *testing.T) {
	n := streamParam("N")
	for _, optional := range []bool{false, true} {
		for adjust := -3; adjust <= 3; adjust++ {
			got, err := Evaluate([]layout.Dimension{{Literal: 7}, named(n, optional, adjust)}, Values{n: 0})
			require.NoError(t, err)
			count, ok := got.Count()
			assert.True(t, ok)
			assert.Equal(t, int64(0), count, "optional=%v adjust=%d", optional, adjust)
			assert.True(t, got.Omitted)
		}
	}
}

func TestZeroShortCircuitsUnboundAndInvalid(t *testing.T) {
	n, m := streamParam("N"), streamParam("M")
	got, err := Evaluate([]layout.Dimension{named(m, false, 0), named(n, false, 0)}, Values{n: 0})
	require.NoError(t, err)
	assert.True(t, got.Known, "a zero dimension decides the length without M")
	assert.True(t, got.Omitted)

	got, err = Evaluate([]layout.Dimension{named(n, false, 0), named(m, false, 0)}, Values{n: 0, m: -7})
	require.NoError(t, err)
	assert.True(t, got.Omitted)
}

func TestOptionalMinusOneMatchesZero(t *testing.T) {
	n := streamParam("N")
	for adjust := -2; adjust <= 2; adjust++ {
		dims := []layout.Dimension{{Literal: 3}, named(n, true, adjust)}
		minusOne, err := Evaluate(dims, Values{n: -1})
		require.NoError(t, err)
		zero, err := Evaluate(dims, Values{n: 0})
		require.NoError(t, err)
		assert.Equal(t, zero, minusOne)
	}
}

func TestPlainMinusOneDropsDimension(t *testing.T) {
	n := streamParam("N")
	for adjust := -3; adjust <= 3; adjust++ {
		dims := []layout.Dimension{{Literal: 3}, named(n, false, adjust), {Literal: 2}}
		got, err := Evaluate(dims, Values{n: -1})
		require.NoError(t, err)
		assert.Equal(t, []int64{3, 2}, got.Dims, "adjust=%d", adjust)

		if adjust == 0 {
			asOne, err := Evaluate(dims, Values{n: 1})
			require.NoError(t, err)
			c1, _ := got.Count()
			c2, _ := asOne.Count()
			assert.Equal(t, c2, c1, "length as if the value were 1")
		}
	}
}

func TestShapeErrors(t *testing.T) {
	n := streamParam("N")
	tests := []struct {
		name string
		dims []layout.Dimension
		vals Values
	}{
		{"negative literal", []layout.Dimension{{Literal: -2}}, Values{}},
		{"value below -1", []layout.Dimension{named(n, false, 0)}, Values{n: -2}},
		{"adjust below zero", []layout.Dimension{named(n, false, -3)}, Values{n: 2}},
		{"unresolved", []layout.Dimension{{Name: "Q"}}, Values{}},
		{"overflow", []layout.Dimension{{Literal: 1 << 40}, {Literal: 1 << 40}}, Values{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Evaluate(tt.dims, tt.vals)
			require.Error(t, err)
			assert.True(t, derrors.IsKind(err, derrors.Shape))
		})
	}
}

func TestDeferredThroughInstances(t *testing.T) {
	m := streamParam("M")
	outer := &Instance{Refs: []layout.ParamRef{{Param: m}}}
	inner := &Instance{Refs: []layout.ParamRef{{Deferred: true, Index: 0}}, Outer: outer}
	dims := []layout.Dimension{{Name: "M", Ref: layout.ParamRef{Deferred: true, Index: 0}}}

	got, err := EvaluateIn(dims, Values{m: 6}, inner)
	require.NoError(t, err)
	assert.Equal(t, []int64{6}, got.Dims)

	_, err = EvaluateIn(dims, Values{m: 6}, nil)
	assert.True(t, derrors.IsKind(err, derrors.Shape))
}

func TestDeterministic(t *testing.T) {
	n := streamParam("N")
	dims := []layout.Dimension{named(n, true, 2), {Literal: 4}}
	first, err := Evaluate(dims, Values{n: 3})
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		again, err := Evaluate(dims, Values{n: 3})
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}
