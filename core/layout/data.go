package layout

import (
	"strconv"
	"strings"

	"github.com/dhmunro/dudley/core/types"
)

// TypeRef is the datatype of a Data item or stream-resident Param.
//
// The tree builder fills Prim for order-prefixed primitives and Named for
// inline struct bodies. Bare names are left for the scope resolver, which
// binds them to a declared Type or, for unprefixed primitive names, to the
// primitive with indeterminate order.
type TypeRef struct {
	Name  string          // as written, without order prefix; "" for inline structs
	Order types.ByteOrder // explicit prefix, or OrderIndeterminate
	Prim  *types.Primitive
	Named *Type
	Pos   types.Position
}

// Resolved reports whether the reference is bound to a datatype.
func (r TypeRef) Resolved() bool {
	return r.Prim != nil || r.Named != nil
}

// String renders the reference the way it would be written.
func (r TypeRef) String() string {
	switch {
	case r.Prim != nil:
		if r.Order == types.OrderLittle || r.Order == types.OrderBig {
			return r.Order.String() + r.Prim.Name
		}
		return r.Prim.Name
	case r.Named != nil && r.Named.Name() != "":
		return r.Named.Name()
	case r.Named != nil:
		return "{...}"
	default:
		return r.Name
	}
}

// ParamRef is the binding of a named dimension or of a free parameter of a
// type instance. Exactly one of Param or Deferred is set after resolution.
type ParamRef struct {
	Param    *Param
	Deferred bool // bound at the use site of the enclosing Type
	Index    int  // index into the enclosing Type's Free list when Deferred
}

// Bound reports whether the reference has been resolved.
func (r ParamRef) Bound() bool {
	return r.Param != nil || r.Deferred
}

// Dimension is one entry of a shape: a literal length or a parameter name
// with optional ? sentinel and +/- run.
type Dimension struct {
	Literal  int64
	Name     string // "" for a literal
	Optional bool   // ? suffix: -1 omits the whole array
	Adjust   int    // +n or -n from the suffix run
	Pos      types.Position
	Ref      ParamRef // set by the scope resolver for named dimensions
}

// IsLiteral reports whether the dimension is an integer constant.
func (d Dimension) IsLiteral() bool {
	return d.Name == ""
}

// String renders the dimension as written, e.g. "N?++".
func (d Dimension) String() string {
	if d.IsLiteral() {
		return strconv.FormatInt(d.Literal, 10)
	}
	var b strings.Builder
	b.WriteString(d.Name)
	if d.Optional {
		b.WriteByte('?')
	}
	switch {
	case d.Adjust > 0:
		b.WriteString(strings.Repeat("+", d.Adjust))
	case d.Adjust < 0:
		b.WriteString(strings.Repeat("-", -d.Adjust))
	}
	return b.String()
}

// ShapeString renders a dimension list, "" for a scalar.
func ShapeString(dims []Dimension) string {
	if len(dims) == 0 {
		return ""
	}
	parts := make([]string, len(dims))
	for i, d := range dims {
		parts[i] = d.String()
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

// Data is an array or scalar stored in the stream, or a member of a struct.
type Data struct {
	base
	Type   TypeRef
	Shape  []Dimension
	Place  Placement
	Filter *Filter

	// Instance binds the Free parameters of a compound Type at this use site,
	// one entry per Type.Free name.
	Instance []ParamRef
}

// NewData creates an unattached data item.
func NewData(name string, ref TypeRef, shape []Dimension, pos types.Position) *Data {
	return &Data{base: base{id: -1, name: name, pos: pos}, Type: ref, Shape: shape}
}

// Kind returns KindData.
func (d *Data) Kind() Kind { return KindData }

// IsMember reports whether the item belongs to a struct body.
func (d *Data) IsMember() bool {
	return EnclosingType(d) != nil
}

// Clone returns a copy with its own shape slice, used by list extension.
func (d *Data) Clone(pos types.Position) *Data {
	c := &Data{
		base:     base{id: -1, pos: pos},
		Type:     d.Type,
		Shape:    append([]Dimension(nil), d.Shape...),
		Filter:   d.Filter,
		Instance: append([]ParamRef(nil), d.Instance...),
	}
	return c
}
