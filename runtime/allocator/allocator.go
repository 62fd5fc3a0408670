// Package allocator assigns byte addresses to the data items and
// stream-resident parameters of a resolved layout.
//
// Items are placed in declaration order by a cursor that starts at the
// stream base offset. An explicit address moves the cursor; otherwise the
// cursor is rounded up to the item's alignment (or its %n override) and the
// item placed there. An item of unknown length, such as one behind a filter
// or one whose shape needs an unbound parameter, leaves the cursor symbolic:
// every later item without an explicit address is symbolic too.
//
// Allocation is deterministic. Calling Allocate again with more parameters
// bound refines symbolic entries into concrete ones and never moves an
// entry that was already concrete.
package allocator

import (
	"fmt"
	"log/slog"

	"github.com/dhmunro/dudley/core/invariant"
	"github.com/dhmunro/dudley/core/layout"
	"github.com/dhmunro/dudley/core/types"
	"github.com/dhmunro/dudley/runtime/shape"

	derrors "github.com/dhmunro/dudley/core/errors"
)

// Config is the input of one allocation pass.
type Config struct {
	// Base is the stream offset of the first byte, as reported by the
	// signature reader; 0 for a bare stream.
	Base int64
	// Order is used when the layout itself declares no byte order.
	Order types.ByteOrder
	// Values binds stream-resident parameters.
	Values shape.Values
	// Logger receives one debug record per placed item.
	Logger *slog.Logger
}

// Status is the address state of an entry.
type Status int

const (
	Unplaced Status = iota
	Symbolic        // depends on a length not yet known
	Concrete
)

// String returns the lowercase status name.
func (s Status) String() string {
	switch s {
	case Symbolic:
		return "symbolic"
	case Concrete:
		return "concrete"
	default:
		return "unplaced"
	}
}

// Entry is the placement of one data item or stream-resident parameter.
type Entry struct {
	Item        layout.Item
	Status      Status
	Address     int64 // valid when Concrete
	Length      int64 // valid when LengthKnown
	LengthKnown bool
	Align       int64
	Order       types.ByteOrder // resolved byte order of primitive elements
	Shape       shape.Result    // zero for parameters
	Filtered    bool

	// Blocker is the earliest item whose unknown length made this entry
	// symbolic.
	Blocker layout.Item
}

// End returns the address just past the entry.
func (e *Entry) End() (int64, bool) {
	if e.Status != Concrete || !e.LengthKnown {
		return 0, false
	}
	return e.Address + e.Length, true
}

// Placement is the result of an allocation pass.
type Placement struct {
	Base    int64
	Order   types.ByteOrder // effective layout default byte order
	Entries []*Entry        // in declaration order

	// End is the cursor after the last item, valid when EndKnown.
	End      int64
	EndKnown bool

	byID   map[int]*Entry
	values shape.Values
	source string
}

// Entry returns the placement of an item.
func (p *Placement) Entry(it layout.Item) (*Entry, bool) {
	e, ok := p.byID[it.ID()]
	return e, ok
}

// Address returns the concrete address of an item. Items without a stream
// footprint and items still symbolic report an AddressError.
func (p *Placement) Address(it layout.Item) (int64, error) {
	e, ok := p.Entry(it)
	if !ok {
		return 0, derrors.New(derrors.Address, it.Pos(), "%s %s has no stream address",
			it.Kind(), layout.Path(it)).WithPath(layout.Path(it)).WithInput(p.source)
	}
	if e.Status != Concrete {
		err := derrors.New(derrors.Address, it.Pos(), "address of %s is not known", layout.Path(it)).
			WithPath(layout.Path(it)).WithInput(p.source)
		if e.Blocker != nil {
			err.WithSuggestion("it follows " + layout.Path(e.Blocker) +
				", whose length is not known; bind its parameters or give an explicit @address")
		}
		return 0, err
	}
	return e.Address, nil
}

// Extent returns the address and length of an item, each with whether it is
// known.
func (p *Placement) Extent(it layout.Item) (addr int64, addrKnown bool, length int64, lengthKnown bool) {
	e, ok := p.Entry(it)
	if !ok {
		return 0, false, 0, false
	}
	return e.Address, e.Status == Concrete, e.Length, e.LengthKnown
}

type cursor struct {
	pos     int64
	known   bool
	blocker layout.Item
}

type allocator struct {
	l      *layout.Layout
	cfg    Config
	order  types.ByteOrder
	cur    cursor
	out    *Placement
	types  *typeCache
	logger *slog.Logger
}

// Allocate places every data item and stream-resident parameter of l. The
// layout must have been resolved.
func Allocate(l *layout.Layout, cfg Config) (*Placement, error) {
	invariant.NotNil(l, "layout")
	invariant.NonNegative(cfg.Base, "base offset")
	if cfg.Order == 0 {
		cfg.Order = types.OrderIndeterminate
	}

	a := &allocator{
		l:      l,
		cfg:    cfg,
		order:  l.Order.Resolve(cfg.Order),
		cur:    cursor{pos: cfg.Base, known: true},
		types:  newTypeCache(cfg.Values),
		logger: cfg.Logger,
	}
	a.out = &Placement{
		Base:   cfg.Base,
		Order:  a.order,
		byID:   make(map[int]*Entry),
		values: cfg.Values,
		source: l.Source,
	}

	for _, it := range l.Items {
		var err error
		switch x := it.(type) {
		case *layout.Param:
			if x.StreamResident() && !x.IsMember() {
				err = a.placeParam(x)
			}
		case *layout.Data:
			if !x.IsMember() {
				err = a.placeData(x)
			}
		}
		if err != nil {
			if e, ok := derrors.As(err); ok {
				e.WithInput(l.Source)
				if e.Path == "" {
					e.WithPath(layout.Path(it))
				}
			}
			return nil, err
		}
	}

	a.out.End, a.out.EndKnown = a.cur.pos, a.cur.known
	return a.out, nil
}

func (a *allocator) placeParam(p *layout.Param) error {
	invariant.Precondition(p.Type.Prim != nil, "parameter %s is not resolved", p.Name())
	size := p.Type.Prim.Size
	e := &Entry{
		Item:        p,
		Length:      size,
		LengthKnown: true,
		Align:       size,
		Order:       p.Type.Order.Resolve(a.order),
	}
	return a.place(e, p.Place)
}

func (a *allocator) placeData(d *layout.Data) error {
	e := &Entry{Item: d, Filtered: d.Filter != nil}

	sh, err := shape.Evaluate(d.Shape, a.cfg.Values)
	if err != nil {
		return err
	}
	e.Shape = sh

	el, err := a.types.elementOf(d, nil)
	if err != nil {
		return err
	}
	e.Align = el.align
	if d.Type.Prim != nil {
		e.Order = d.Type.Order.Resolve(a.order)
	}

	if count, ok := sh.Count(); ok && !e.Filtered {
		switch {
		case count == 0:
			e.Length, e.LengthKnown = 0, true
		case el.known:
			n, ok := shape.Bytes(count, el.size)
			if !ok {
				return derrors.New(derrors.Shape, d.Pos(), "%s is too large", layout.Path(d))
			}
			e.Length, e.LengthKnown = n, true
		}
	}
	return a.place(e, d.Place)
}

// place positions e according to its placement and advances the cursor.
func (a *allocator) place(e *Entry, pl layout.Placement) error {
	invariant.Positive(e.Align, "alignment of "+layout.Path(e.Item))
	prev := a.cur
	switch {
	case pl.Kind == layout.PlaceAddress:
		if pl.Value < a.cfg.Base {
			return derrors.New(derrors.Address, e.Item.Pos(), "address %d precedes the stream base %d",
				pl.Value, a.cfg.Base)
		}
		if e.Align > 1 && pl.Value%e.Align != 0 {
			return derrors.New(derrors.Address, e.Item.Pos(), "address %d is not a multiple of the alignment %d",
				pl.Value, e.Align).WithSuggestion(fmt.Sprintf("use @%d", roundUp(pl.Value, e.Align)))
		}
		e.Status, e.Address = Concrete, pl.Value
	case !a.cur.known:
		e.Status, e.Blocker = Symbolic, a.cur.blocker
	case e.LengthKnown && e.Length == 0:
		e.Status, e.Address = Concrete, a.cur.pos
	case pl.Kind == layout.PlaceAlign:
		e.Status, e.Address = Concrete, roundUp(a.cur.pos, pl.Value)
	default:
		e.Status, e.Address = Concrete, roundUp(a.cur.pos, e.Align)
	}

	if e.Status == Concrete {
		invariant.Postcondition(e.Address >= a.cfg.Base, "%s placed at %d before base %d",
			layout.Path(e.Item), e.Address, a.cfg.Base)
		if pl.Kind != layout.PlaceAddress {
			invariant.Invariant(e.Address >= prev.pos, "cursor moved back from %d to %d at %s",
				prev.pos, e.Address, layout.Path(e.Item))
		}
		if e.LengthKnown {
			a.cur = cursor{pos: e.Address + e.Length, known: true}
		} else {
			a.cur = cursor{blocker: e.Item}
		}
	}

	a.out.Entries = append(a.out.Entries, e)
	a.out.byID[e.Item.ID()] = e
	if a.logger != nil {
		a.logger.Debug("place", "item", layout.Path(e.Item), "status", e.Status.String(),
			"address", e.Address, "length", e.Length, "known", e.LengthKnown)
	}
	return nil
}

// roundUp rounds v up to a multiple of align; an align of 0 or 1 leaves v.
func roundUp(v, align int64) int64 {
	if align <= 1 {
		return v
	}
	if r := v % align; r != 0 {
		return v + align - r
	}
	return v
}
