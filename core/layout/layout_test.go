package layout

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dhmunro/dudley/core/types"

	derrors "github.com/dhmunro/dudley/core/errors"
)

func f8() TypeRef {
	p, order, _ := types.ParsePrimType("f8")
	return TypeRef{Name: "f8", Prim: p, Order: order}
}

func TestDeclareDataConflict(t *testing.T) {
	l := New()
	require.NoError(t, l.DeclareData(l.Root, NewData("x", f8(), nil, types.Position{Line: 1, Column: 1})))

	err := l.DeclareData(l.Root, NewData("x", f8(), nil, types.Position{Line: 2, Column: 1}))
	require.Error(t, err)
	assert.True(t, derrors.IsKind(err, derrors.NameConflict))
}

func TestParamsShareNamesWithData(t *testing.T) {
	l := New()
	require.NoError(t, l.DeclareData(l.Root, NewData("N", f8(), nil, types.Position{})))
	first := NewFixedParam("N", 3, types.Position{Line: 1})
	second := NewFixedParam("N", 4, types.Position{Line: 2})
	require.NoError(t, l.DeclareParam(l.Root, first))
	require.NoError(t, l.DeclareParam(l.Root, second))

	got, ok := l.Root.Param("N")
	require.True(t, ok)
	assert.Same(t, second, got)
	assert.Same(t, first, second.Shadows)
	assert.Len(t, l.Root.Params(), 2)
}

func TestTypeAndDataCollide(t *testing.T) {
	l := New()
	_, err := l.DeclareType(l.Root, "pt", types.Position{})
	require.NoError(t, err)

	err = l.DeclareData(l.Root, NewData("pt", f8(), nil, types.Position{}))
	assert.True(t, derrors.IsKind(err, derrors.NameConflict))

	sub, err := l.OpenDict(l.Root, "sub", types.Position{})
	require.NoError(t, err)
	_, err = l.DeclareType(sub, "pt", types.Position{})
	assert.True(t, derrors.IsKind(err, derrors.NameConflict), "type names are global")

	_, err = l.DeclareType(sub, "f8", types.Position{})
	assert.True(t, derrors.IsKind(err, derrors.NameConflict))
}

func TestReopen(t *testing.T) {
	l := New()
	a, err := l.OpenDict(l.Root, "a", types.Position{})
	require.NoError(t, err)
	again, err := l.OpenDict(l.Root, "a", types.Position{})
	require.NoError(t, err)
	assert.Same(t, a, again)

	_, err = l.OpenList(l.Root, "a", types.Position{})
	assert.True(t, derrors.IsKind(err, derrors.Structural))
}

func TestPathsAndFind(t *testing.T) {
	l := New()
	a, _ := l.OpenDict(l.Root, "a", types.Position{})
	lst, _ := l.OpenList(a, "lst", types.Position{})
	require.NoError(t, l.DeclareData(lst, NewData("", f8(), nil, types.Position{})))
	elem := l.AppendDict(lst, types.Position{})
	x := NewData("x", f8(), nil, types.Position{})
	require.NoError(t, l.DeclareData(elem, x))
	require.NoError(t, l.DeclareParam(a, NewFixedParam("N", 2, types.Position{})))

	tt, _ := l.DeclareType(l.Root, "pt", types.Position{})
	m := NewData("y", f8(), nil, types.Position{})
	require.NoError(t, l.DeclareData(tt, m))

	got := []string{Path(l.Root), Path(a), Path(lst), Path(elem), Path(x), Path(tt), Path(m)}
	expected := []string{"/", "/a", "/a/lst", "/a/lst/1", "/a/lst/1/x", "{pt}", "{pt}.y"}
	if diff := cmp.Diff(expected, got); diff != "" {
		t.Errorf("paths mismatch (-expected +actual):\n%s", diff)
	}

	found, err := l.Find("/a/lst/1/x")
	require.NoError(t, err)
	assert.Same(t, x, found)

	p, err := l.Find("a/N")
	require.NoError(t, err)
	assert.Equal(t, KindParam, p.Kind())

	_, err = l.Find("/a/lst/7")
	assert.True(t, derrors.IsKind(err, derrors.Scope))
}

func TestExtendList(t *testing.T) {
	l := New()
	lst, _ := l.OpenList(l.Root, "recs", types.Position{})
	_, err := l.ExtendList(lst, Placement{Kind: PlaceAddress, Value: 64}, types.Position{})
	assert.True(t, derrors.IsKind(err, derrors.Structural), "empty list cannot be extended")

	require.NoError(t, l.DeclareData(lst, NewData("", f8(), []Dimension{{Literal: 3}}, types.Position{})))
	d, err := l.ExtendList(lst, Placement{Kind: PlaceAddress, Value: 64}, types.Position{})
	require.NoError(t, err)
	assert.Equal(t, 2, lst.Len())
	assert.Equal(t, int64(64), d.Place.Value)
	assert.Equal(t, "[3]", ShapeString(d.Shape))
	assert.Equal(t, len(l.Items)-1, d.ID())
}

func TestTypedefRules(t *testing.T) {
	l := New()
	td, _ := l.DeclareType(l.Root, "vec", types.Position{})
	require.NoError(t, l.DeclareData(td, NewData("", f8(), []Dimension{{Literal: 3}}, types.Position{})))
	assert.True(t, td.IsTypedef())

	err := l.DeclareData(td, NewData("z", f8(), nil, types.Position{}))
	assert.True(t, derrors.IsKind(err, derrors.Structural))

	st, _ := l.DeclareType(l.Root, "st", types.Position{})
	require.NoError(t, l.DeclareData(st, NewData("a", f8(), nil, types.Position{})))
	err = l.DeclareData(st, NewData("", f8(), nil, types.Position{}))
	assert.True(t, derrors.IsKind(err, derrors.Structural))
}

func TestDimensionString(t *testing.T) {
	dims := []Dimension{{Literal: 3}, {Name: "N", Adjust: 2}, {Name: "M", Optional: true, Adjust: -1}}
	assert.Equal(t, "[3, N++, M?-]", ShapeString(dims))
	assert.Equal(t, "", ShapeString(nil))
}
