package allocator

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/dhmunro/dudley/core/invariant"
	"github.com/dhmunro/dudley/core/layout"
	"github.com/dhmunro/dudley/runtime/shape"

	derrors "github.com/dhmunro/dudley/core/errors"
)

// Member is the placement of one member inside a struct instance, relative
// to the instance start.
type Member struct {
	Item        layout.Item
	Offset      int64
	OffsetKnown bool
	Length      int64
	LengthKnown bool
	Shape       shape.Result
}

// StructLayout is the byte layout of one instance of a compound type.
type StructLayout struct {
	Type    *layout.Type
	Members []Member
	Size    int64 // padded to Align; valid when Known
	Align   int64
	Known   bool
}

// Struct lays out the type of d under the placement's parameter values. It
// returns nil for primitive data.
func (p *Placement) Struct(d *layout.Data) (*StructLayout, error) {
	if d.Type.Named == nil {
		return nil, nil
	}
	var in *shape.Instance
	return newTypeCache(p.values).layout(d.Type.Named, in.Enter(d))
}

// TypeLayout lays out a type with no free parameters.
func TypeLayout(t *layout.Type, b shape.Binding) (*StructLayout, error) {
	return newTypeCache(b).layout(t, nil)
}

// memberBinding hides stream-resident struct members: each instance stores
// its own value, so no single binding applies.
type memberBinding struct {
	shape.Binding
}

func (m memberBinding) Value(p *layout.Param) (int64, bool) {
	if !p.Fixed && p.IsMember() {
		return 0, false
	}
	return m.Binding.Value(p)
}

// typeCache holds the layout of each distinct type instance seen during one
// allocation pass. Sibling members of the same type share one entry.
type typeCache struct {
	b    shape.Binding
	seen map[typeKey]*StructLayout
}

// typeKey identifies a type instance. refs lists the IDs of the parameters
// bound to the type's free names, -1 for an unbound name.
type typeKey struct {
	t    *layout.Type
	refs string
}

func newTypeCache(b shape.Binding) *typeCache {
	return &typeCache{b: memberBinding{b}, seen: make(map[typeKey]*StructLayout)}
}

// layout returns the layout of t under the instance chain in, computing it
// at most once per distinct binding of t's free parameters.
func (c *typeCache) layout(t *layout.Type, in *shape.Instance) (*StructLayout, error) {
	key := typeKey{t: t}
	if len(t.Free) > 0 {
		flat := &shape.Instance{Refs: make([]layout.ParamRef, len(t.Free))}
		ids := make([]string, len(t.Free))
		for i := range t.Free {
			p, ok := in.Param(layout.ParamRef{Deferred: true, Index: i})
			if !ok {
				ids[i] = "-1"
				continue
			}
			flat.Refs[i] = layout.ParamRef{Param: p}
			ids[i] = strconv.Itoa(p.ID())
		}
		key.refs = strings.Join(ids, ",")
		in = flat
	}
	if s, ok := c.seen[key]; ok {
		return s, nil
	}
	s, err := c.build(t, in)
	if err != nil {
		return nil, err
	}
	c.seen[key] = s
	return s, nil
}

type element struct {
	size, align int64
	known       bool
}

// elementOf returns the size and alignment of one element of d.
func (c *typeCache) elementOf(d *layout.Data, in *shape.Instance) (element, error) {
	if prim := d.Type.Prim; prim != nil {
		return element{size: prim.Size, align: prim.Align(), known: true}, nil
	}
	invariant.Precondition(d.Type.Named != nil, "data %s is not resolved", layout.Path(d))
	s, err := c.layout(d.Type.Named, in.Enter(d))
	if err != nil {
		return element{}, err
	}
	return element{size: s.Size, align: s.Align, known: s.Known}, nil
}

func (c *typeCache) build(t *layout.Type, in *shape.Instance) (*StructLayout, error) {
	s := &StructLayout{Type: t, Align: 1, Known: true}

	var cur, end int64
	curKnown := true
	for _, it := range t.Members {
		m := Member{Item: it}
		var align int64
		var place layout.Placement

		switch x := it.(type) {
		case *layout.Param:
			if x.Fixed {
				continue
			}
			invariant.Precondition(x.Type.Prim != nil, "member parameter %s is not resolved", x.Name())
			m.Length, m.LengthKnown = x.Type.Prim.Size, true
			align, place = x.Type.Prim.Align(), x.Place
		case *layout.Data:
			sh, err := shape.EvaluateIn(x.Shape, c.b, in)
			if err != nil {
				return nil, err
			}
			m.Shape = sh
			el, err := c.elementOf(x, in)
			if err != nil {
				return nil, err
			}
			align, place = el.align, x.Place
			if count, ok := sh.Count(); ok && x.Filter == nil {
				switch {
				case count == 0:
					m.LengthKnown = true
				case el.known:
					n, ok := shape.Bytes(count, el.size)
					if !ok {
						return nil, derrors.New(derrors.Shape, x.Pos(), "member %s is too large", x.Name())
					}
					m.Length, m.LengthKnown = n, true
				}
			}
		default:
			continue
		}

		if align > s.Align {
			s.Align = align
		}

		switch {
		case place.Kind == layout.PlaceAddress:
			if align > 1 && place.Value%align != 0 {
				return nil, derrors.New(derrors.Address, it.Pos(),
					"member offset %d is not a multiple of the alignment %d", place.Value, align).
					WithSuggestion(fmt.Sprintf("use @%d", roundUp(place.Value, align)))
			}
			m.Offset, m.OffsetKnown = place.Value, true
		case !curKnown:
		case m.LengthKnown && m.Length == 0:
			m.Offset, m.OffsetKnown = cur, true
		case place.Kind == layout.PlaceAlign:
			m.Offset, m.OffsetKnown = roundUp(cur, place.Value), true
		default:
			m.Offset, m.OffsetKnown = roundUp(cur, align), true
		}

		if m.OffsetKnown && m.LengthKnown {
			cur, curKnown = m.Offset+m.Length, true
			if cur > end {
				end = cur
			}
		} else {
			curKnown = false
			s.Known = false
		}
		s.Members = append(s.Members, m)
	}

	if t.HasAlign {
		s.Align = t.Align
		if s.Align < 1 {
			s.Align = 1
		}
	}
	invariant.Positive(s.Align, "alignment of type "+t.Name())
	if s.Known {
		s.Size = roundUp(end, s.Align)
	}
	return s, nil
}
