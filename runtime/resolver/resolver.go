// Package resolver binds the symbolic references of a parsed layout: type
// names to primitives or declared types, and named dimensions to the
// parameters in scope at the point of use.
//
// Items are visited in declaration order, so a parameter is visible only to
// items declared after it, and a redeclared parameter only rebinds later
// references. Parameter references inside a struct body that the body does
// not declare are deferred; each data item using the type then binds them
// in its own scope.
package resolver

import (
	"fmt"
	"sort"

	"github.com/lithammer/fuzzysearch/fuzzy"

	"github.com/dhmunro/dudley/core/layout"
	"github.com/dhmunro/dudley/core/types"

	derrors "github.com/dhmunro/dudley/core/errors"
)

// Resolve binds every reference in l. The first unresolvable reference
// aborts with a ScopeError.
func Resolve(l *layout.Layout) error {
	_, err := ResolveGraph(l)
	return err
}

// ResolveGraph is Resolve, also returning the scope graph it built.
func ResolveGraph(l *layout.Layout) (*ScopeGraph, error) {
	r := &resolver{l: l, g: NewScopeGraph(l.Root)}
	for _, it := range l.Items {
		var err *derrors.Error
		switch x := it.(type) {
		case *layout.Param:
			err = r.param(x)
		case *layout.Data:
			err = r.data(x)
		}
		if err != nil {
			return nil, err.WithInput(l.Source)
		}
	}
	return r.g, nil
}

type resolver struct {
	l *layout.Layout
	g *ScopeGraph
}

func (r *resolver) param(p *layout.Param) *derrors.Error {
	if p.StreamResident() && p.Type.Prim == nil {
		prim, ok := types.LookupPrimitive(p.Type.Name)
		if !ok || !prim.IsInteger() {
			return derrors.New(derrors.Scope, p.Type.Pos, "parameter %q needs an integer type, not %q",
				p.Name(), p.Type.Name).WithPath(layout.Path(p))
		}
		p.Type.Prim = prim
	}
	r.g.Declare(p)
	return nil
}

func (r *resolver) data(d *layout.Data) *derrors.Error {
	if err := r.bindType(d); err != nil {
		return err
	}
	for i := range d.Shape {
		dim := &d.Shape[i]
		if dim.IsLiteral() {
			continue
		}
		ref, err := r.lookup(d, dim.Name, dim.Pos)
		if err != nil {
			return err
		}
		dim.Ref = ref
	}
	return r.instantiate(d)
}

// bindType resolves the datatype of d. Unprefixed primitive names are
// implicitly declared with indeterminate byte order.
func (r *resolver) bindType(d *layout.Data) *derrors.Error {
	ref := &d.Type
	if ref.Prim != nil {
		return nil
	}
	if ref.Named == nil {
		if prim, ok := types.LookupPrimitive(ref.Name); ok {
			ref.Prim = prim
			return nil
		}
		t, ok := r.l.Types[ref.Name]
		if !ok {
			e := derrors.New(derrors.Scope, ref.Pos, "undeclared type %q", ref.Name).
				WithPath(layout.Path(d)).WithToken(ref.Name)
			if s := closest(ref.Name, r.typeNames()); s != "" {
				e.WithSuggestion(fmt.Sprintf("did you mean %q?", s))
			}
			return e
		}
		if t.ID() > d.ID() {
			return derrors.New(derrors.Scope, ref.Pos, "type %q used before its declaration at %s",
				ref.Name, t.Pos()).WithPath(layout.Path(d)).WithToken(ref.Name)
		}
		ref.Named = t
	}
	for it := d.Parent(); it != nil; it = it.Parent() {
		if it == ref.Named {
			return derrors.New(derrors.Scope, ref.Pos, "type %q used inside its own body", ref.Name).
				WithPath(layout.Path(d)).WithToken(ref.Name)
		}
	}
	return nil
}

// lookup resolves a named dimension of d.
func (r *resolver) lookup(d *layout.Data, name string, pos types.Position) (layout.ParamRef, *derrors.Error) {
	ref, scope, ok := r.g.Resolve(d.Parent(), name, pos)
	if !ok {
		e := derrors.New(derrors.Scope, pos, "undeclared parameter %q", name).
			WithPath(layout.Path(d)).WithToken(name)
		if s := closest(name, r.g.Visible(d.Parent())); s != "" {
			e.WithSuggestion(fmt.Sprintf("did you mean %q?", s))
		}
		return layout.ParamRef{}, e
	}
	if ref.Deferred {
		t := scope.owner.(*layout.Type)
		if later := declaredLater(t, name); later != nil {
			return layout.ParamRef{}, derrors.New(derrors.Scope, pos,
				"parameter %q used before its declaration at %s", name, later.Pos()).
				WithPath(layout.Path(d)).WithToken(name)
		}
	}
	return ref, nil
}

// instantiate binds the free parameters of d's compound type at d.
func (r *resolver) instantiate(d *layout.Data) *derrors.Error {
	t := d.Type.Named
	if t == nil {
		return nil
	}
	refs, missing := t.Instantiate(useSite{g: r.g, owner: d.Parent(), pos: d.Pos()})
	if len(missing) > 0 {
		f := missing[0]
		e := derrors.New(derrors.Scope, d.Pos(), "type %s needs parameter %q, which is not declared here",
			d.Type, f.Name).WithPath(layout.Path(d))
		if f.Pos.IsValid() {
			e.WithSuggestion(fmt.Sprintf("%q is referenced by the type body at %s", f.Name, f.Pos))
		}
		return e
	}
	for _, ref := range refs {
		if !ref.Deferred {
			continue
		}
		outer := layout.EnclosingType(d)
		if outer == nil {
			continue
		}
		if later := declaredLater(outer, outer.Free[ref.Index].Name); later != nil {
			return derrors.New(derrors.Scope, d.Pos(), "parameter %q used before its declaration at %s",
				later.Name(), later.Pos()).WithPath(layout.Path(d))
		}
	}
	d.Instance = refs
	return nil
}

// declaredLater returns a parameter member of t named name, which can only
// exist when the reference came before it.
func declaredLater(t *layout.Type, name string) *layout.Param {
	for _, m := range t.Members {
		if p, ok := m.(*layout.Param); ok && p.Name() == name {
			return p
		}
	}
	return nil
}

func (r *resolver) typeNames() []string {
	names := make([]string, 0, len(r.l.Types))
	for name := range r.l.Types {
		names = append(names, name)
	}
	names = append(names, types.PrimitiveNames()...)
	sort.Strings(names)
	return names
}

// closest finds the closest string match using fuzzy matching, falling back
// to edit distance for transpositions the subsequence match misses.
func closest(target string, candidates []string) string {
	if len(candidates) == 0 {
		return ""
	}

	ranks := fuzzy.RankFindFold(target, candidates)
	if len(ranks) > 0 {
		sort.Sort(ranks)
		return ranks[0].Target
	}

	best, bestDist := "", 3
	for _, c := range candidates {
		if d := fuzzy.LevenshteinDistance(target, c); d < bestDist {
			best, bestDist = c, d
		}
	}
	return best
}
