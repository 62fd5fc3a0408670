package layout

import "github.com/dhmunro/dudley/core/types"

// Param is a named integer usable as an array dimension. A fixed parameter
// carries its value in the layout; a stream-resident one is an integer read
// from the stream at its own address.
type Param struct {
	base
	Fixed bool
	Value int64   // valid when Fixed
	Type  TypeRef // integer primitive of a stream-resident parameter
	Place Placement

	// Shadows is the parameter of the same name this one replaced in the same
	// container, if any. References made before the redeclaration keep it.
	Shadows *Param
}

// NewFixedParam creates a parameter with a constant value.
func NewFixedParam(name string, value int64, pos types.Position) *Param {
	return &Param{base: base{id: -1, name: name, pos: pos}, Fixed: true, Value: value}
}

// NewStreamParam creates a parameter whose value is stored in the stream.
func NewStreamParam(name string, ref TypeRef, place Placement, pos types.Position) *Param {
	return &Param{base: base{id: -1, name: name, pos: pos}, Type: ref, Place: place}
}

// Kind returns KindParam.
func (p *Param) Kind() Kind { return KindParam }

// StreamResident reports whether the parameter occupies bytes in the stream.
func (p *Param) StreamResident() bool { return !p.Fixed }

// IsMember reports whether the parameter is embedded in a struct body.
func (p *Param) IsMember() bool {
	return EnclosingType(p) != nil
}
