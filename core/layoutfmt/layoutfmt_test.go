package layoutfmt

import (
	"bytes"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dhmunro/dudley/core/layout"
	"github.com/dhmunro/dudley/runtime/allocator"
	"github.com/dhmunro/dudley/runtime/parser"
	"github.com/dhmunro/dudley/runtime/resolver"
	"github.com/dhmunro/dudley/runtime/shape"
)

const sample = `>
N: i4
K: 2
vec { w = f8[M] }
M: 3
x = f8[N+, K] -> gzip(6)
g/ v = vec
lst [i2, / y = u1]
`

func resolved(t *testing.T, src string) *layout.Layout {
	t.Helper()
	l, err := parser.ParseString(src)
	require.NoError(t, err)
	require.NoError(t, resolver.Resolve(l))
	return l
}

func document(t *testing.T, src string, values map[string]int64) *Document {
	t.Helper()
	l := resolved(t, src)
	vals := shape.Values{}
	for name, v := range values {
		p, ok := l.Root.Param(name)
		require.True(t, ok)
		vals[p] = v
	}
	pl, err := allocator.Allocate(l, allocator.Config{Values: vals})
	require.NoError(t, err)
	return Canonicalize(l, pl)
}

func TestCanonicalizeItems(t *testing.T) {
	d := document(t, sample, map[string]int64{"N": 1})
	assert.Equal(t, Version, d.Version)
	assert.Equal(t, ">", d.Order)

	x, ok := d.Find("/x")
	require.True(t, ok)
	assert.Equal(t, "f8", x.Type)
	assert.Equal(t, "-> gzip(6)", x.Filter)
	require.Len(t, x.Shape, 2)
	n, _ := d.Find("/N")
	k, _ := d.Find("/K")
	assert.Equal(t, Dim{Name: "N", Adjust: 1, Param: n.ID, Deferred: -1}, x.Shape[0])
	assert.Equal(t, k.ID, x.Shape[1].Param)
	assert.True(t, x.AddressOK)
	assert.Equal(t, int64(8), x.Address)
	assert.False(t, x.LengthKnown, "filtered")

	vec, ok := d.Find("{vec}")
	require.True(t, ok)
	assert.Equal(t, []string{"M"}, vec.Free)
	w, ok := d.Find("{vec}.w")
	require.True(t, ok)
	assert.Equal(t, Dim{Name: "M", Param: -1, Deferred: 0}, w.Shape[0])

	v, ok := d.Find("/g/v")
	require.True(t, ok)
	assert.Equal(t, vec.ID, v.TypeID)
	m, _ := d.Find("/M")
	assert.Equal(t, []Ref{{Param: m.ID, Deferred: -1}}, v.Instance)
	assert.False(t, v.AddressOK, "after a filtered item")

	assert.Equal(t, []int{d.Items[0].ID + 1}, d.Children(0)[:1])
}

func TestCanonicalizeWithoutExtents(t *testing.T) {
	d := Canonicalize(resolved(t, "x = f8[2] @16"), nil)
	x, _ := d.Find("/x")
	assert.False(t, x.AddressOK)
	assert.Equal(t, "@16", x.Place)
}

func TestFingerprintDeterministic(t *testing.T) {
	first, err := document(t, sample, map[string]int64{"N": 1}).Fingerprint()
	require.NoError(t, err)
	assert.Regexp(t, `^blake2b:[0-9a-f]{64}$`, first)

	for i := 0; i < 3; i++ {
		again, err := document(t, sample, map[string]int64{"N": 1}).Fingerprint()
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}

	const plain = "N: i4\nx = f8[N]\ny = i4"
	one, err := document(t, plain, map[string]int64{"N": 1}).Fingerprint()
	require.NoError(t, err)
	two, err := document(t, plain, map[string]int64{"N": 2}).Fingerprint()
	require.NoError(t, err)
	assert.NotEqual(t, one, two, "bindings change placement")
}

func TestWriteRead(t *testing.T) {
	d := document(t, sample, nil)
	var buf bytes.Buffer
	digest, err := Write(&buf, d)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(buf.Bytes(), []byte(Magic)))

	got, err := Read(&buf)
	require.NoError(t, err)
	if diff := cmp.Diff(d, got); diff != "" {
		t.Errorf("round trip mismatch (-expected +actual):\n%s", diff)
	}

	fp, err := got.Fingerprint()
	require.NoError(t, err)
	assert.Contains(t, fp, bytesHex(digest[:]))
}

func bytesHex(b []byte) string {
	const digits = "0123456789abcdef"
	out := make([]byte, 0, 2*len(b))
	for _, c := range b {
		out = append(out, digits[c>>4], digits[c&15])
	}
	return string(out)
}

func TestReadRejects(t *testing.T) {
	_, err := Read(bytes.NewReader([]byte("JUNKdata")))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "magic")

	d := document(t, "x = i4", nil)
	d.Version = "v2.0.0"
	var buf bytes.Buffer
	_, err = Write(&buf, d)
	require.NoError(t, err)
	_, err = Read(&buf)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not compatible")
}

func TestCheckVersion(t *testing.T) {
	tests := []struct {
		version string
		ok      bool
	}{
		{"v1.0.0", true},
		{"v1.4.2", true},
		{"v1.0.0-rc1", true},
		{"v2.0.0", false},
		{"v0.9.0", false},
		{"1.0.0", false},
		{"", false},
	}
	for _, tt := range tests {
		err := CheckVersion(tt.version)
		if tt.ok {
			assert.NoError(t, err, tt.version)
		} else {
			assert.Error(t, err, tt.version)
		}
	}
}
