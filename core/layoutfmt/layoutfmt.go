// Package layoutfmt is the canonical exchange form of a resolved layout.
//
// A Document flattens the item tree into declaration order with parent and
// type links by item id. It is encoded as canonical CBOR, so the same layout
// always produces the same bytes, and a BLAKE2b-256 digest of those bytes is
// the layout fingerprint.
package layoutfmt

import (
	"bytes"
	"fmt"
	"io"

	"github.com/fxamacker/cbor/v2"
	"golang.org/x/crypto/blake2b"
	"golang.org/x/mod/semver"

	"github.com/dhmunro/dudley/core/invariant"
	"github.com/dhmunro/dudley/core/layout"
)

const (
	// Magic starts every encoded document.
	Magic = "DUDL"

	// Version is the format version written by this package. Readers accept
	// any document with the same major version.
	Version = "v1.0.0"
)

// Document is a resolved layout in canonical form.
type Document struct {
	Version  string `cbor:"1,keyasint"`
	Order    string `cbor:"2,keyasint"`
	Template bool   `cbor:"3,keyasint"`
	Items    []Item `cbor:"4,keyasint"`
}

// Item is one layout item. Fields that do not apply to the kind are zero.
type Item struct {
	ID     int    `cbor:"1,keyasint"`
	Kind   string `cbor:"2,keyasint"`
	Name   string `cbor:"3,keyasint,omitempty"`
	Parent int    `cbor:"4,keyasint"` // -1 for the root
	Path   string `cbor:"5,keyasint"`

	Type     string `cbor:"6,keyasint,omitempty"` // datatype as written
	TypeID   int    `cbor:"7,keyasint"`           // compound type id, -1 for primitives
	Shape    []Dim  `cbor:"8,keyasint,omitempty"`
	Filter   string `cbor:"9,keyasint,omitempty"`
	Place    string `cbor:"10,keyasint,omitempty"`
	Instance []Ref  `cbor:"11,keyasint,omitempty"`

	Fixed bool  `cbor:"12,keyasint,omitempty"`
	Value int64 `cbor:"13,keyasint,omitempty"`

	Align    int64    `cbor:"14,keyasint,omitempty"`
	HasAlign bool     `cbor:"15,keyasint,omitempty"`
	Free     []string `cbor:"16,keyasint,omitempty"`

	Address     int64 `cbor:"17,keyasint,omitempty"`
	AddressOK   bool  `cbor:"18,keyasint,omitempty"`
	Length      int64 `cbor:"19,keyasint,omitempty"`
	LengthKnown bool  `cbor:"20,keyasint,omitempty"`
}

// Dim is one dimension. Param and Deferred are -1 when unused.
type Dim struct {
	Literal  int64  `cbor:"1,keyasint,omitempty"`
	Name     string `cbor:"2,keyasint,omitempty"`
	Optional bool   `cbor:"3,keyasint,omitempty"`
	Adjust   int    `cbor:"4,keyasint,omitempty"`
	Param    int    `cbor:"5,keyasint"`
	Deferred int    `cbor:"6,keyasint"`
}

// Ref binds a free parameter of a compound type at a use site.
type Ref struct {
	Param    int `cbor:"1,keyasint"`
	Deferred int `cbor:"2,keyasint"`
}

// Extents reports where an item sits in the stream.
type Extents interface {
	Extent(it layout.Item) (addr int64, addrKnown bool, length int64, lengthKnown bool)
}

// Canonicalize flattens l. ext may be nil, in which case no addresses are
// recorded.
func Canonicalize(l *layout.Layout, ext Extents) *Document {
	d := &Document{
		Version:  Version,
		Order:    l.Order.String(),
		Template: l.Template,
		Items:    make([]Item, len(l.Items)),
	}
	for i, it := range l.Items {
		ci := Item{
			ID:     it.ID(),
			Kind:   it.Kind().String(),
			Name:   it.Name(),
			Parent: -1,
			Path:   layout.Path(it),
			TypeID: -1,
		}
		if p := it.Parent(); p != nil {
			ci.Parent = p.ID()
		}

		switch x := it.(type) {
		case *layout.Data:
			ci.Type = x.Type.String()
			if x.Type.Named != nil {
				ci.TypeID = x.Type.Named.ID()
			}
			for _, dim := range x.Shape {
				ci.Shape = append(ci.Shape, canonicalDim(dim))
			}
			if x.Filter != nil {
				ci.Filter = filterString(x.Filter)
			}
			ci.Place = x.Place.String()
			for _, ref := range x.Instance {
				ci.Instance = append(ci.Instance, canonicalRef(ref))
			}
		case *layout.Param:
			ci.Fixed = x.Fixed
			if x.Fixed {
				ci.Value = x.Value
			} else {
				ci.Type = x.Type.String()
				ci.Place = x.Place.String()
			}
		case *layout.Type:
			ci.Align, ci.HasAlign = x.Align, x.HasAlign
			for _, f := range x.Free {
				ci.Free = append(ci.Free, f.Name)
			}
		}

		if ext != nil {
			ci.Address, ci.AddressOK, ci.Length, ci.LengthKnown = ext.Extent(it)
			if !ci.AddressOK {
				ci.Address = 0
			}
			if !ci.LengthKnown {
				ci.Length = 0
			}
		}
		d.Items[i] = ci
	}
	return d
}

func canonicalDim(dim layout.Dimension) Dim {
	cd := Dim{
		Literal:  dim.Literal,
		Name:     dim.Name,
		Optional: dim.Optional,
		Adjust:   dim.Adjust,
	}
	r := canonicalRef(dim.Ref)
	cd.Param, cd.Deferred = r.Param, r.Deferred
	if dim.IsLiteral() {
		cd.Param, cd.Deferred = -1, -1
	}
	return cd
}

func canonicalRef(ref layout.ParamRef) Ref {
	r := Ref{Param: -1, Deferred: -1}
	switch {
	case ref.Deferred:
		r.Deferred = ref.Index
	case ref.Param != nil:
		r.Param = ref.Param.ID()
	}
	return r
}

func filterString(f *layout.Filter) string {
	s := f.Kind.String() + " " + f.Name
	if len(f.Args) == 0 {
		return s
	}
	s += "("
	for i, a := range f.Args {
		if i > 0 {
			s += ", "
		}
		s += fmt.Sprint(a)
	}
	return s + ")"
}

var encMode = func() cbor.EncMode {
	m, err := cbor.CanonicalEncOptions().EncMode()
	invariant.ExpectNoError(err, "canonical CBOR encoder")
	return m
}()

// MarshalBinary produces the canonical CBOR encoding.
func (d *Document) MarshalBinary() ([]byte, error) {
	type documentAlias Document
	data, err := encMode.Marshal((*documentAlias)(d))
	if err != nil {
		return nil, fmt.Errorf("CBOR encoding failed: %w", err)
	}
	return data, nil
}

// UnmarshalBinary decodes a canonical CBOR document and checks its version.
func (d *Document) UnmarshalBinary(data []byte) error {
	type documentAlias Document
	if err := cbor.Unmarshal(data, (*documentAlias)(d)); err != nil {
		return fmt.Errorf("CBOR decoding failed: %w", err)
	}
	return CheckVersion(d.Version)
}

// Fingerprint returns "blake2b:" and the hex BLAKE2b-256 digest of the
// canonical encoding.
func (d *Document) Fingerprint() (string, error) {
	data, err := d.MarshalBinary()
	if err != nil {
		return "", err
	}
	sum := blake2b.Sum256(data)
	return fmt.Sprintf("blake2b:%x", sum), nil
}

// CheckVersion accepts versions with the same major version as Version.
func CheckVersion(v string) error {
	if !semver.IsValid(v) {
		return fmt.Errorf("invalid layout format version %q", v)
	}
	if semver.Major(v) != semver.Major(Version) {
		return fmt.Errorf("layout format %s is not compatible with %s", v, Version)
	}
	return nil
}

// Write encodes d to w as MAGIC | CBOR and returns the fingerprint digest.
func Write(w io.Writer, d *Document) ([32]byte, error) {
	data, err := d.MarshalBinary()
	if err != nil {
		return [32]byte{}, err
	}
	hasher, err := blake2b.New256(nil)
	if err != nil {
		return [32]byte{}, err
	}
	if _, err := hasher.Write(data); err != nil {
		return [32]byte{}, err
	}
	var digest [32]byte
	copy(digest[:], hasher.Sum(nil))

	if _, err := io.WriteString(w, Magic); err != nil {
		return [32]byte{}, err
	}
	if _, err := w.Write(data); err != nil {
		return [32]byte{}, err
	}
	return digest, nil
}

// Read decodes a document written by Write.
func Read(r io.Reader) (*Document, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	if !bytes.HasPrefix(data, []byte(Magic)) {
		return nil, fmt.Errorf("not a layout document: missing %q magic", Magic)
	}
	d := &Document{}
	if err := d.UnmarshalBinary(data[len(Magic):]); err != nil {
		return nil, err
	}
	return d, nil
}

// Children returns the ids of items whose parent is id, in declaration order.
func (d *Document) Children(id int) []int {
	var out []int
	for _, it := range d.Items {
		if it.Parent == id && it.ID != id {
			out = append(out, it.ID)
		}
	}
	return out
}

// Find returns the first item with the given path. A parameter shares its
// path with a data item of the same name and with its own redeclarations.
func (d *Document) Find(path string) (*Item, bool) {
	for i := range d.Items {
		if d.Items[i].Path == path {
			return &d.Items[i], true
		}
	}
	return nil, false
}
