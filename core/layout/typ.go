package layout

import "github.com/dhmunro/dudley/core/types"

// Type is a compound datatype: a struct of member Data and Param items with
// offsets relative to the instance start, or a typedef with one anonymous
// member. A Type with no members is the null type {} and occupies no bytes.
//
// Struct bodies are sealed. A member dimension naming a parameter that the
// body does not declare becomes a Free parameter, bound separately at each
// use site of the type.
type Type struct {
	base
	Members  []Item
	Align    int64 // explicit %n override, valid when HasAlign
	HasAlign bool
	Free     []FreeParam

	memberNames map[string]Item
}

// FreeParam is a parameter name a Type leaves for its use site to bind.
type FreeParam struct {
	Name string
	Pos  types.Position // first reference inside the body
}

// ParamScope answers parameter lookups at a use site. Inside another struct
// body the answer may itself be deferred.
type ParamScope interface {
	LookupParam(name string) (ParamRef, bool)
}

func newType(name string, parent Item, pos types.Position) *Type {
	return &Type{
		base:        base{id: -1, name: name, parent: parent, pos: pos},
		memberNames: make(map[string]Item),
	}
}

// Kind returns KindType.
func (t *Type) Kind() Kind { return KindType }

// IsNull reports whether t is the empty type {}.
func (t *Type) IsNull() bool { return len(t.Members) == 0 }

// IsTypedef reports whether t is an alias with a single anonymous member.
func (t *Type) IsTypedef() bool {
	return len(t.Members) == 1 && t.Members[0].Name() == ""
}

// Member returns the member data item named name.
func (t *Type) Member(name string) (Item, bool) {
	it, ok := t.memberNames[name]
	return it, ok
}

// FreeIndex returns the index of name in Free.
func (t *Type) FreeIndex(name string) (int, bool) {
	for i, f := range t.Free {
		if f.Name == name {
			return i, true
		}
	}
	return -1, false
}

// AddFree records name as bound at the use site and returns its index.
func (t *Type) AddFree(name string, pos types.Position) int {
	if i, ok := t.FreeIndex(name); ok {
		return i
	}
	t.Free = append(t.Free, FreeParam{Name: name, Pos: pos})
	return len(t.Free) - 1
}

// Instantiate binds every Free parameter of t in scope. It returns the
// bindings in Free order and the names scope could not answer.
func (t *Type) Instantiate(scope ParamScope) ([]ParamRef, []FreeParam) {
	if len(t.Free) == 0 {
		return nil, nil
	}
	refs := make([]ParamRef, len(t.Free))
	var missing []FreeParam
	for i, f := range t.Free {
		ref, ok := scope.LookupParam(f.Name)
		if !ok {
			missing = append(missing, f)
			continue
		}
		refs[i] = ref
	}
	return refs, missing
}
