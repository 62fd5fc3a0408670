package parser

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dhmunro/dudley/core/annot"
	"github.com/dhmunro/dudley/core/layout"
	"github.com/dhmunro/dudley/core/types"

	derrors "github.com/dhmunro/dudley/core/errors"
)

// dataPaths lists the container-owned data items in declaration order.
func dataPaths(l *layout.Layout) []string {
	var out []string
	for _, it := range l.Items {
		if d, ok := it.(*layout.Data); ok && layout.Owner(d) != nil {
			out = append(out, layout.Path(d))
		}
	}
	return out
}

func mustParse(t *testing.T, src string, opts ...ParserOpt) *layout.Layout {
	t.Helper()
	l, err := ParseString(src, opts...)
	require.NoError(t, err)
	return l
}

func TestParameterAndShape(t *testing.T) {
	l := mustParse(t, "IMAX: 5  x = f8[IMAX, 3]")

	p, ok := l.Root.Param("IMAX")
	require.True(t, ok)
	assert.True(t, p.Fixed)
	assert.Equal(t, int64(5), p.Value)

	it, ok := l.Root.Lookup("x")
	require.True(t, ok)
	x := it.(*layout.Data)
	assert.Equal(t, "f8", x.Type.Name)
	assert.Nil(t, x.Type.Prim, "unprefixed primitives are bound by the resolver")
	assert.Equal(t, "[IMAX, 3]", layout.ShapeString(x.Shape))
	assert.Equal(t, types.Position{Line: 1, Column: 10, Offset: 9}, x.Pos())
}

func TestNavigation(t *testing.T) {
	src := `
a/
  x = f8
  b/
    y = i4
  ..
  z = f8
/
w = f8
a/ q = f8
.. ..
v = f8
`
	l := mustParse(t, src)
	expected := []string{"/a/x", "/a/b/y", "/a/z", "/w", "/a/q", "/v"}
	if diff := cmp.Diff(expected, dataPaths(l)); diff != "" {
		t.Errorf("paths mismatch (-expected +actual):\n%s", diff)
	}
}

func TestLists(t *testing.T) {
	src := `
lst [f8, / x = i4 y = f8, [i2, i2], {a = f8}[2]]
lst @64 %16
lst [u1]
`
	l := mustParse(t, src)
	expected := []string{
		"/lst/0", "/lst/1/x", "/lst/1/y", "/lst/2/0", "/lst/2/1", "/lst/3",
		"/lst/4", "/lst/5", "/lst/6",
	}
	if diff := cmp.Diff(expected, dataPaths(l)); diff != "" {
		t.Errorf("paths mismatch (-expected +actual):\n%s", diff)
	}

	it, _ := l.Root.Lookup("lst")
	lst := it.(*layout.List)
	require.Equal(t, 7, lst.Len())
	assert.Equal(t, layout.KindDict, lst.At(1).Kind())
	assert.Equal(t, layout.KindList, lst.At(2).Kind())

	ext := lst.At(4).(*layout.Data)
	assert.Equal(t, layout.Placement{Kind: layout.PlaceAddress, Value: 64}, ext.Place)
	assert.Equal(t, "[2]", layout.ShapeString(ext.Shape))
	assert.Same(t, lst.At(3).(*layout.Data).Type.Named, ext.Type.Named)
	assert.Equal(t, layout.Placement{Kind: layout.PlaceAlign, Value: 16}, lst.At(5).(*layout.Data).Place)
}

func TestListElementDictNavigation(t *testing.T) {
	src := `
recs [/ hdr/ n = i4 / body = f8, / body = f4 .. tail = u1]
after = f8
`
	l := mustParse(t, src)
	expected := []string{"/recs/0/hdr/n", "/recs/0/body", "/recs/1/body", "/recs/1/tail", "/after"}
	if diff := cmp.Diff(expected, dataPaths(l)); diff != "" {
		t.Errorf("paths mismatch (-expected +actual):\n%s", diff)
	}
}

func TestStructs(t *testing.T) {
	src := `
pt {%16 x = f8  y = f8  n : i4  v = f4[n]}
vec { = <f8[3] }
null {}
pts = pt[10]
`
	l := mustParse(t, src)
	pt := l.Types["pt"]
	require.NotNil(t, pt)
	assert.True(t, pt.HasAlign)
	assert.Equal(t, int64(16), pt.Align)
	require.Len(t, pt.Members, 4)
	prm, ok := pt.Members[2].(*layout.Param)
	require.True(t, ok)
	assert.True(t, prm.StreamResident())
	assert.True(t, prm.IsMember())

	vec := l.Types["vec"]
	assert.True(t, vec.IsTypedef())
	member := vec.Members[0].(*layout.Data)
	require.NotNil(t, member.Type.Prim)
	assert.Equal(t, types.OrderLittle, member.Type.Order)

	assert.True(t, l.Types["null"].IsNull())

	it, _ := l.Root.Lookup("pts")
	assert.Equal(t, "pt", it.(*layout.Data).Type.Name)
}

func TestFilters(t *testing.T) {
	src := `
img = u1[64, 64] -> jpeg(85) @4096
r = i8 <- ref
z = f4[3] -> zfp(1.5e-3, 2)
`
	l := mustParse(t, src)
	get := func(name string) *layout.Data {
		it, ok := l.Root.Lookup(name)
		require.True(t, ok)
		return it.(*layout.Data)
	}

	img := get("img")
	require.NotNil(t, img.Filter)
	assert.Equal(t, layout.FilterCompress, img.Filter.Kind)
	assert.Equal(t, "jpeg", img.Filter.Name)
	assert.Equal(t, []interface{}{int64(85)}, img.Filter.Args)
	assert.Equal(t, layout.Placement{Kind: layout.PlaceAddress, Value: 4096}, img.Place)

	r := get("r")
	assert.Equal(t, layout.FilterReference, r.Filter.Kind)
	assert.Nil(t, r.Filter.Args)

	z := get("z")
	assert.Equal(t, []interface{}{1.5e-3, int64(2)}, z.Filter.Args)
}

func TestTemplatePreamble(t *testing.T) {
	l := mustParse(t, "< {N: i4  M: >u2}\nx = f8[N, M]")
	assert.Equal(t, types.OrderLittle, l.Order)
	assert.True(t, l.Template)
	require.Len(t, l.TemplateParams, 2)

	n, m := l.TemplateParams[0], l.TemplateParams[1]
	assert.Equal(t, "N", n.Name())
	assert.Nil(t, n.Type.Prim)
	assert.Equal(t, "i4", n.Type.Name)
	require.NotNil(t, m.Type.Prim)
	assert.Equal(t, types.OrderBig, m.Type.Order)

	plain := mustParse(t, ">\nx = f8", WithTemplate())
	assert.Equal(t, types.OrderBig, plain.Order)
	assert.True(t, plain.Template)
}

func TestDimensionSuffixes(t *testing.T) {
	l := mustParse(t, "N: 3\nM: 4\nx = f8[N?++, M--, 2]")
	it, _ := l.Root.Lookup("x")
	dims := it.(*layout.Data).Shape
	require.Len(t, dims, 3)
	assert.True(t, dims[0].Optional)
	assert.Equal(t, 2, dims[0].Adjust)
	assert.Equal(t, -2, dims[1].Adjust)
	assert.Equal(t, int64(2), dims[2].Literal)
}

func TestComments(t *testing.T) {
	src := `## root doc
x = f8  ## x doc
#: units="m", scale=2, dims=[1, 2.5], flag
grp/  ## group doc
`
	store := annot.NewMemory()
	l := mustParse(t, src, WithAnnotations(store))

	x, _ := l.Root.Lookup("x")
	grp, _ := l.Root.Lookup("grp")

	rootDocs, _ := store.Docs(l.Root.ID())
	assert.Equal(t, []string{"root doc"}, rootDocs)
	xDocs, _ := store.Docs(x.ID())
	assert.Equal(t, []string{"x doc"}, xDocs)
	grpDocs, _ := store.Docs(grp.ID())
	assert.Equal(t, []string{"group doc"}, grpDocs)

	attrs, _ := store.Attrs(x.ID())
	expected := []annot.Attribute{
		{Name: "units", Value: "m"},
		{Name: "scale", Value: int64(2)},
		{Name: "dims", Value: []float64{1, 2.5}},
		{Name: "flag", Value: true},
	}
	if diff := cmp.Diff(expected, attrs); diff != "" {
		t.Errorf("attrs mismatch (-expected +actual):\n%s", diff)
	}
}

func TestBadAttributeComment(t *testing.T) {
	_, err := ParseString("x = f8 #: units=[1, \"m\"]")
	require.Error(t, err)
	assert.True(t, derrors.IsKind(err, derrors.Lexical))
	assert.Contains(t, err.Error(), "mixes strings and numbers")
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		kind    derrors.Kind
		message string
	}{
		{"close outside list", "x = f8]", derrors.Structural, "outside a list"},
		{"comma outside list", "x = f8, y = f8", derrors.Structural, "outside a list"},
		{"unclosed list", "lst [f8", derrors.Structural, "unclosed '['"},
		{"trailing comma", "lst [f8,]", derrors.Structural, "list item after ','"},
		{"missing datatype", "x = ", derrors.Structural, "expected a datatype"},
		{"missing operator", "x f8", derrors.Structural, "after \"x\""},
		{"unclosed shape", "x = f8[3", derrors.Structural, "unclosed '['"},
		{"shape separator", "x = f8[3 4]", derrors.Structural, "in shape"},
		{"empty shape", "x = f8[]", derrors.Structural, "expected a dimension"},
		{"container in struct", "T { a/ }", derrors.Structural, "after member"},
		{"unclosed struct", "T { a = f8", derrors.Structural, "unclosed '{'"},
		{"reopen data as list", "x = f8\nx [f8]", derrors.Structural, "cannot reopen"},
		{"extend non-list", "x = f8\nx @16", derrors.Structural, "only a list"},
		{"extend empty list", "lst []\nlst @16", derrors.Structural, "end with a data item"},
		{"param in list", "lst [ n: 3 ]", derrors.Structural, "after list item"},
		{"float parameter", "N: f8", derrors.Structural, "integer primitive"},
		{"filter trailing comma", "x = f8 -> gzip(1,)", derrors.Structural, "a number after ','"},
		{"typedef plus member", "T { = f8  a = i4 }", derrors.Structural, "typedef"},
		{"long suffix", "N: 1\nx = f8[N" + strings.Repeat("+", 32) + "]", derrors.Shape, "exceeds 31"},
		{"negative literal", "x = f8[-3]", derrors.Shape, "negative"},
		{"negative alignment", "x = f8 %-8", derrors.Address, "negative"},
		{"illegal character", "x = f8\ny = $", derrors.Lexical, "unexpected character"},
		{"unterminated quote", `x = "abc`, derrors.Lexical, "unterminated"},
		{"duplicate data", "x = f8[3]\nx = f8[3]", derrors.NameConflict, "already declared"},
		{"duplicate type", "T {a = f8}\nT {b = f8}", derrors.NameConflict, "already declared"},
		{"duplicate member", "T {a = f8 a = i4}", derrors.NameConflict, "already declared"},
		{"type named like primitive", "f8 {a = i4}", derrors.NameConflict, "primitive"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseString(tt.input)
			require.Error(t, err)
			e, ok := derrors.As(err)
			require.True(t, ok, "expected a layout error, got %T", err)
			assert.Equal(t, tt.kind, e.Kind, "error: %v", err)
			assert.Contains(t, e.Message, tt.message)
		})
	}
}

func TestDuplicateDataReportsSecondDeclaration(t *testing.T) {
	_, err := ParseString("x = f8[3]\nx = f8[3]")
	e, ok := derrors.As(err)
	require.True(t, ok)
	assert.Equal(t, derrors.NameConflict, e.Kind)
	assert.Equal(t, 2, e.Pos.Line)
	assert.Equal(t, 1, e.Pos.Column)
	assert.Contains(t, err.Error(), "--> 2:1")
	assert.Equal(t, "/", e.Path)
}

func TestErrorCarriesContainerPath(t *testing.T) {
	_, err := ParseString("a/ b/ x = ")
	e, ok := derrors.As(err)
	require.True(t, ok)
	assert.Equal(t, "/a/b", e.Path)
}

func TestNavigationNoOps(t *testing.T) {
	l := mustParse(t, "..\n/\nx = f8\nlst [/ .. y = f8]")
	assert.Equal(t, []string{"/x", "/lst/0/y"}, dataPaths(l))
}

func TestTelemetryAndDebug(t *testing.T) {
	tree, err := Parse([]byte("x = f8 ## doc"), WithTelemetryBasic(), WithDebugPaths())
	require.NoError(t, err)
	require.NotNil(t, tree.Telemetry)
	assert.Equal(t, 4, tree.Telemetry.TokenCount)
	assert.Equal(t, 1, tree.Telemetry.CommentCount)
	assert.Equal(t, 2, tree.Telemetry.ItemCount)
	assert.NotEmpty(t, tree.DebugEvents)

	quiet, err := Parse([]byte("x = f8"))
	require.NoError(t, err)
	assert.Nil(t, quiet.Telemetry)
	assert.Nil(t, quiet.DebugEvents)
}

func TestEncodingFallback(t *testing.T) {
	tree, err := Parse([]byte("## caf\xe9\nx = f8"))
	require.NoError(t, err)
	assert.Equal(t, "windows-1252", string(tree.Encoding))
}
