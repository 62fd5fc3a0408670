package layout

import "github.com/dhmunro/dudley/core/types"

// Dict is a named, reopenable container. Data, Dict, List and Type names
// share one table; parameters live in a separate table that may reuse any of
// those names.
type Dict struct {
	base
	names    []string
	items    map[string]Item
	params   map[string]*Param
	declared []*Param
}

func newDict(name string, parent Item, pos types.Position) *Dict {
	return &Dict{
		base:   base{id: -1, name: name, parent: parent, pos: pos},
		items:  make(map[string]Item),
		params: make(map[string]*Param),
	}
}

// Kind returns KindDict.
func (d *Dict) Kind() Kind { return KindDict }

// IsRoot reports whether d is the layout root.
func (d *Dict) IsRoot() bool { return d.parent == nil }

// IsSubRoot reports whether d is a target of bare "/": the true root, or an
// anonymous dict that is an element of a List.
func (d *Dict) IsSubRoot() bool {
	if d.parent == nil {
		return true
	}
	_, inList := d.parent.(*List)
	return inList
}

// Lookup returns the data, dict, list or type declared under name.
func (d *Dict) Lookup(name string) (Item, bool) {
	it, ok := d.items[name]
	return it, ok
}

// Param returns the current parameter binding for name.
func (d *Dict) Param(name string) (*Param, bool) {
	p, ok := d.params[name]
	return p, ok
}

// Params returns every parameter declared in d, shadowed ones included, in
// declaration order.
func (d *Dict) Params() []*Param {
	return d.declared
}

// Names returns the item names in declaration order.
func (d *Dict) Names() []string {
	return d.names
}

// Children returns the named items in declaration order.
func (d *Dict) Children() []Item {
	out := make([]Item, 0, len(d.names))
	for _, name := range d.names {
		out = append(out, d.items[name])
	}
	return out
}

func (d *Dict) insert(name string, it Item) {
	d.names = append(d.names, name)
	d.items[name] = it
}

// List is an ordered container of anonymous Data, Dict and List items.
type List struct {
	base
	items []Item
}

func newList(name string, parent Item, pos types.Position) *List {
	return &List{base: base{id: -1, name: name, parent: parent, pos: pos}}
}

// Kind returns KindList.
func (l *List) Kind() Kind { return KindList }

// Children returns the elements in order.
func (l *List) Children() []Item { return l.items }

// Len returns the number of elements.
func (l *List) Len() int { return len(l.items) }

// At returns element i.
func (l *List) At(i int) Item { return l.items[i] }

// Last returns the final element, or nil for an empty list.
func (l *List) Last() Item {
	if len(l.items) == 0 {
		return nil
	}
	return l.items[len(l.items)-1]
}

// IndexOf returns the position of it among the elements, or -1.
func (l *List) IndexOf(it Item) int {
	for i, e := range l.items {
		if e == it {
			return i
		}
	}
	return -1
}

func (l *List) append(it Item) {
	l.items = append(l.items, it)
}
