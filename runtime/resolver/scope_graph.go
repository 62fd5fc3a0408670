package resolver

import (
	"fmt"
	"sort"
	"strings"

	"github.com/dhmunro/dudley/core/layout"
	"github.com/dhmunro/dudley/core/types"
)

// ScopeGraph holds the parameter tables of every container seen so far.
// Parameters are resolved by traversing up the parent chain. Struct bodies
// are sealed: a name they do not declare is deferred to the use site
// instead of being looked up in the declaring container.
type ScopeGraph struct {
	root   *Scope
	scopes map[layout.Item]*Scope
}

// Scope is the parameter table of one Dict, List or Type.
type Scope struct {
	owner  layout.Item
	params map[string]*layout.Param

	parent   *Scope
	children []*Scope

	// sealed is set for struct bodies, which never see their parent.
	sealed bool
	depth  int
}

// NewScopeGraph creates a graph whose root scope belongs to root.
func NewScopeGraph(root *layout.Dict) *ScopeGraph {
	s := &Scope{owner: root, params: make(map[string]*layout.Param)}
	return &ScopeGraph{
		root:   s,
		scopes: map[layout.Item]*Scope{root: s},
	}
}

// ScopeOf returns the scope of a container, creating it and its ancestors
// on first use.
func (g *ScopeGraph) ScopeOf(owner layout.Item) *Scope {
	if s, ok := g.scopes[owner]; ok {
		return s
	}
	_, sealed := owner.(*layout.Type)
	var parent *Scope
	if p := owner.Parent(); p != nil {
		parent = g.ScopeOf(p)
	}
	s := &Scope{
		owner:  owner,
		params: make(map[string]*layout.Param),
		parent: parent,
		sealed: sealed,
	}
	if parent != nil {
		s.depth = parent.depth + 1
		parent.children = append(parent.children, s)
	}
	g.scopes[owner] = s
	return s
}

// Declare binds p in the scope of its declaring container. A later
// declaration of the same name replaces the binding for later lookups only.
func (g *ScopeGraph) Declare(p *layout.Param) {
	g.ScopeOf(p.Parent()).params[p.Name()] = p
}

// Resolve looks name up from the scope of owner. It returns the parameter
// and the scope holding it, or a deferred reference when the chain reaches a
// sealed struct body first.
func (g *ScopeGraph) Resolve(owner layout.Item, name string, pos types.Position) (layout.ParamRef, *Scope, bool) {
	for s := g.ScopeOf(owner); s != nil; s = s.parent {
		if p, ok := s.params[name]; ok {
			return layout.ParamRef{Param: p}, s, true
		}
		if s.sealed {
			t := s.owner.(*layout.Type)
			return layout.ParamRef{Deferred: true, Index: t.AddFree(name, pos)}, s, true
		}
	}
	return layout.ParamRef{}, nil, false
}

// Visible returns every parameter name reachable from owner, for
// suggestions.
func (g *ScopeGraph) Visible(owner layout.Item) []string {
	seen := make(map[string]bool)
	for s := g.ScopeOf(owner); s != nil; s = s.parent {
		for name := range s.params {
			seen[name] = true
		}
		if s.sealed {
			break
		}
	}
	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// useSite answers the free parameters of a type instance from the scope of
// the data item that uses it.
type useSite struct {
	g     *ScopeGraph
	owner layout.Item
	pos   types.Position
}

func (u useSite) LookupParam(name string) (layout.ParamRef, bool) {
	ref, _, ok := u.g.Resolve(u.owner, name, u.pos)
	return ref, ok
}

// DebugPrint prints the scope tree for debugging.
func (g *ScopeGraph) DebugPrint() string {
	var b strings.Builder
	g.root.debugPrint(&b, 0)
	return b.String()
}

func (s *Scope) debugPrint(b *strings.Builder, indent int) {
	prefix := strings.Repeat("  ", indent)

	sealed := ""
	if s.sealed {
		sealed = " [SEALED]"
	}
	fmt.Fprintf(b, "%s%s (depth=%d)%s\n", prefix, layout.Path(s.owner), s.depth, sealed)

	names := make([]string, 0, len(s.params))
	for name := range s.params {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		p := s.params[name]
		if p.Fixed {
			fmt.Fprintf(b, "%s  %s = %d\n", prefix, name, p.Value)
		} else {
			fmt.Fprintf(b, "%s  %s : %s\n", prefix, name, p.Type)
		}
	}

	for _, child := range s.children {
		child.debugPrint(b, indent+1)
	}
}
