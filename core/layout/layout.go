package layout

import (
	"github.com/dhmunro/dudley/core/invariant"
	"github.com/dhmunro/dudley/core/types"

	derrors "github.com/dhmunro/dudley/core/errors"
)

// Layout is the item tree of one schema plus its global type table.
type Layout struct {
	Root  *Dict
	Items []Item // every item in declaration order; Items[i].ID() == i
	Types map[string]*Type

	// Order is the default byte order declared by the preamble.
	Order types.ByteOrder

	// Template is set by a template preamble or by the caller, and asks the
	// template validator to run.
	Template       bool
	TemplateParams []*Param

	// Source is the text the layout was parsed from, kept for diagnostics.
	Source string
}

// New creates an empty layout holding only its root dict.
func New() *Layout {
	l := &Layout{
		Types: make(map[string]*Type),
		Order: types.OrderIndeterminate,
	}
	l.Root = newDict("", nil, types.Position{})
	l.register(l.Root)
	return l
}

func (l *Layout) register(it Item) {
	it.setID(len(l.Items))
	l.Items = append(l.Items, it)
}

// Item returns the item with the given id.
func (l *Layout) Item(id int) Item {
	invariant.InRange(int64(id), 0, int64(len(l.Items)-1), "item id")
	return l.Items[id]
}

// NamedTypes returns the declared named types in declaration order.
func (l *Layout) NamedTypes() []*Type {
	var out []*Type
	for _, it := range l.Items {
		if t, ok := it.(*Type); ok && t.Name() != "" {
			out = append(out, t)
		}
	}
	return out
}

func conflict(pos types.Position, format string, args ...interface{}) *derrors.Error {
	return derrors.New(derrors.NameConflict, pos, format, args...)
}

func structural(pos types.Position, format string, args ...interface{}) *derrors.Error {
	return derrors.New(derrors.Structural, pos, format, args...)
}

// DeclareData attaches d to a Dict under its name, appends it to a List, or
// adds it as a member of a Type body.
func (l *Layout) DeclareData(parent Item, d *Data) error {
	invariant.NotNil(d, "data")
	switch p := parent.(type) {
	case *Dict:
		if prev, ok := p.items[d.name]; ok {
			return conflict(d.pos, "%q already declared as %s at %s", d.name, prev.Kind(), prev.Pos()).
				WithPath(Path(p))
		}
		d.parent = p
		p.insert(d.name, d)
	case *List:
		invariant.Precondition(d.name == "", "list elements are anonymous")
		d.parent = p
		p.append(d)
	case *Type:
		if err := l.addMember(p, d); err != nil {
			return err
		}
	default:
		invariant.Precondition(false, "data parent must be a dict, list or type, got %T", parent)
	}
	l.register(d)
	return nil
}

// DeclareParam attaches a parameter to a Dict or a Type body. Redeclaring a
// name replaces the binding for later references only.
func (l *Layout) DeclareParam(parent Item, p *Param) error {
	invariant.NotNil(p, "param")
	switch c := parent.(type) {
	case *Dict:
		p.parent = c
		if prev, ok := c.params[p.name]; ok {
			p.Shadows = prev
		}
		c.params[p.name] = p
		c.declared = append(c.declared, p)
	case *Type:
		p.parent = c
		c.Members = append(c.Members, p)
	case *List:
		return structural(p.pos, "parameter %q cannot be a list element", p.name).WithPath(Path(c))
	default:
		invariant.Precondition(false, "param parent must be a dict or type, got %T", parent)
	}
	l.register(p)
	return nil
}

// OpenDict returns the existing child dict name of parent, or creates it.
func (l *Layout) OpenDict(parent *Dict, name string, pos types.Position) (*Dict, error) {
	if prev, ok := parent.items[name]; ok {
		if d, ok := prev.(*Dict); ok {
			return d, nil
		}
		return nil, structural(pos, "cannot reopen %q as a dict: it is a %s declared at %s",
			name, prev.Kind(), prev.Pos()).WithPath(Path(parent))
	}
	d := newDict(name, parent, pos)
	parent.insert(name, d)
	l.register(d)
	return d, nil
}

// OpenList returns the existing child list name of parent, or creates it.
func (l *Layout) OpenList(parent *Dict, name string, pos types.Position) (*List, error) {
	if prev, ok := parent.items[name]; ok {
		if lst, ok := prev.(*List); ok {
			return lst, nil
		}
		return nil, structural(pos, "cannot reopen %q as a list: it is a %s declared at %s",
			name, prev.Kind(), prev.Pos()).WithPath(Path(parent))
	}
	lst := newList(name, parent, pos)
	parent.insert(name, lst)
	l.register(lst)
	return lst, nil
}

// AppendDict adds an anonymous dict element to list.
func (l *Layout) AppendDict(list *List, pos types.Position) *Dict {
	d := newDict("", list, pos)
	list.append(d)
	l.register(d)
	return d
}

// AppendList adds an anonymous list element to list.
func (l *Layout) AppendList(list *List, pos types.Position) *List {
	lst := newList("", list, pos)
	list.append(lst)
	l.register(lst)
	return lst
}

// DeclareType creates a named type in the global table, also reserving its
// name in parent so that data and type names cannot collide there.
func (l *Layout) DeclareType(parent *Dict, name string, pos types.Position) (*Type, error) {
	if types.IsPrimitiveName(name) {
		return nil, conflict(pos, "type name %q is a primitive type", name).WithPath(Path(parent))
	}
	if prev, ok := l.Types[name]; ok {
		return nil, conflict(pos, "type %q already declared at %s", name, prev.Pos()).WithPath(Path(parent))
	}
	if prev, ok := parent.items[name]; ok {
		return nil, conflict(pos, "%q already declared as %s at %s", name, prev.Kind(), prev.Pos()).
			WithPath(Path(parent))
	}
	t := newType(name, parent, pos)
	l.Types[name] = t
	parent.insert(name, t)
	l.register(t)
	return t, nil
}

// InlineType creates an anonymous struct type declared inside a data item.
func (l *Layout) InlineType(parent Item, pos types.Position) *Type {
	t := newType("", parent, pos)
	l.register(t)
	return t
}

func (l *Layout) addMember(t *Type, d *Data) error {
	if d.name == "" {
		if len(t.Members) > 0 {
			return structural(d.pos, "an anonymous member must be the only member of a type")
		}
	} else {
		if t.IsTypedef() {
			return structural(d.pos, "a typedef cannot have named members")
		}
		if prev, ok := t.memberNames[d.name]; ok {
			return conflict(d.pos, "member %q already declared at %s", d.name, prev.Pos()).
				WithPath(Path(t))
		}
		t.memberNames[d.name] = d
	}
	d.parent = t
	t.Members = append(t.Members, d)
	return nil
}

// ExtendList appends a copy of the list's last data element, placed by place.
func (l *Layout) ExtendList(list *List, place Placement, pos types.Position) (*Data, error) {
	last, ok := list.Last().(*Data)
	if !ok {
		return nil, structural(pos, "list %q must end with a data item to be extended", list.name).
			WithPath(Path(list))
	}
	d := last.Clone(pos)
	d.Place = place
	d.parent = list
	list.append(d)
	l.register(d)
	return d, nil
}
