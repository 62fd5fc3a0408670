// Package layout is the in-memory item tree of a Dudley layout.
//
// A layout is a tree of containers (Dict and List) holding Data, Param and
// Type declarations. The tree builder is its only writer; once resolution
// finishes the tree is read-only and safe for concurrent readers.
//
// Every item receives an ID equal to its index in Layout.Items, which is the
// parse (declaration) order the allocator walks.
package layout

import (
	"strconv"

	"github.com/dhmunro/dudley/core/types"
)

// Kind identifies the variant of an Item.
type Kind int

const (
	KindData Kind = iota
	KindDict
	KindList
	KindParam
	KindType
)

// String returns the lowercase variant name.
func (k Kind) String() string {
	switch k {
	case KindData:
		return "data"
	case KindDict:
		return "dict"
	case KindList:
		return "list"
	case KindParam:
		return "param"
	case KindType:
		return "type"
	default:
		return "unknown"
	}
}

// Item is the universal node of the layout tree.
type Item interface {
	ID() int
	Kind() Kind
	Name() string // "" for anonymous items
	Parent() Item // owning Dict, List or Type; nil for the root
	Pos() types.Position

	setID(id int)
}

// Container is a Dict or a List, the items that renavigation can enter.
type Container interface {
	Item
	Children() []Item
}

type base struct {
	id     int
	name   string
	parent Item
	pos    types.Position
}

func (b *base) ID() int             { return b.id }
func (b *base) Name() string        { return b.name }
func (b *base) Parent() Item        { return b.parent }
func (b *base) Pos() types.Position { return b.pos }
func (b *base) setID(id int)        { b.id = id }

// Owner returns the Dict or List holding it. Struct members have no owner.
func Owner(it Item) Container {
	switch p := it.Parent().(type) {
	case *Dict:
		return p
	case *List:
		return p
	default:
		return nil
	}
}

// EnclosingType returns the Type whose body declares it, or nil.
func EnclosingType(it Item) *Type {
	if t, ok := it.Parent().(*Type); ok {
		return t
	}
	return nil
}

// PlacementKind says how an item's position was specified.
type PlacementKind int

const (
	PlaceDefault PlacementKind = iota // next free address at default alignment
	PlaceAddress                      // @n: absolute address, or member offset inside a struct
	PlaceAlign                        // %n: alignment override, %0 packs at the cursor
)

// Placement is the optional @ or % suffix of a declaration.
type Placement struct {
	Kind  PlacementKind
	Value int64
}

// String renders the placement as written.
func (p Placement) String() string {
	switch p.Kind {
	case PlaceAddress:
		return "@" + strconv.FormatInt(p.Value, 10)
	case PlaceAlign:
		return "%" + strconv.FormatInt(p.Value, 10)
	default:
		return ""
	}
}

// FilterKind distinguishes the two filter markers.
type FilterKind int

const (
	FilterCompress  FilterKind = iota // ->
	FilterReference                   // <-
)

// String returns the filter marker.
func (k FilterKind) String() string {
	if k == FilterReference {
		return "<-"
	}
	return "->"
}

// Filter is an opaque named transform recorded on a Data item. Its presence
// makes the item's byte length stream dependent.
type Filter struct {
	Kind FilterKind
	Name string
	Args []interface{} // int64 or float64
	Pos  types.Position
}
