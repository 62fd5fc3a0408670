// Package template checks that a layout declared as a template has no
// stream-dependent construct, so that every address is a pure function of
// the template parameters.
package template

import (
	"fmt"

	"github.com/dhmunro/dudley/core/layout"
	"github.com/dhmunro/dudley/core/types"

	derrors "github.com/dhmunro/dudley/core/errors"
)

// Reason classifies a violation.
type Reason int

const (
	ExplicitAddress Reason = iota
	EmbeddedLength         // instance length depends on a parameter stored inside the instance
	Filtered
)

func (r Reason) String() string {
	switch r {
	case ExplicitAddress:
		return "explicit address"
	case EmbeddedLength:
		return "embedded length"
	default:
		return "filter"
	}
}

// Violation is one stream-dependent construct.
type Violation struct {
	Item    layout.Item
	Reason  Reason
	Pos     types.Position
	Message string
}

// Error converts the violation to a TemplateViolationError.
func (v Violation) Error(source string) *derrors.Error {
	return derrors.New(derrors.TemplateViolation, v.Pos, "%s", v.Message).
		WithPath(layout.Path(v.Item)).WithInput(source)
}

// Check lists every violation in declaration order. It does not look at
// whether l is marked as a template.
func Check(l *layout.Layout) []Violation {
	var out []Violation
	for _, it := range l.Items {
		switch x := it.(type) {
		case *layout.Param:
			if x.StreamResident() && !x.IsMember() && x.Place.Kind == layout.PlaceAddress {
				out = append(out, Violation{
					Item:    x,
					Reason:  ExplicitAddress,
					Pos:     x.Pos(),
					Message: fmt.Sprintf("parameter %s has explicit address %s", x.Name(), x.Place),
				})
			}
		case *layout.Data:
			out = append(out, checkData(x)...)
		}
	}
	return out
}

func checkData(d *layout.Data) []Violation {
	var out []Violation
	member := d.IsMember()
	if !member && d.Place.Kind == layout.PlaceAddress {
		out = append(out, Violation{
			Item:    d,
			Reason:  ExplicitAddress,
			Pos:     d.Pos(),
			Message: fmt.Sprintf("%s has explicit address %s", layout.Path(d), d.Place),
		})
	}
	if d.Filter != nil {
		out = append(out, Violation{
			Item:    d,
			Reason:  Filtered,
			Pos:     d.Filter.Pos,
			Message: fmt.Sprintf("%s has %s filter %s", layout.Path(d), d.Filter.Kind, d.Filter.Name),
		})
	}
	if !member && d.Type.Named != nil {
		if p := embedded(d.Type.Named, map[*layout.Type]bool{}); p != nil {
			out = append(out, Violation{
				Item:   d,
				Reason: EmbeddedLength,
				Pos:    d.Pos(),
				Message: fmt.Sprintf("length of %s depends on %s, which is stored in each instance",
					layout.Path(d), layout.Path(p)),
			})
		}
	}
	return out
}

// embedded returns a stream-resident member parameter that some member
// shape of t, or of a type nested in t, depends on.
func embedded(t *layout.Type, seen map[*layout.Type]bool) *layout.Param {
	if seen[t] {
		return nil
	}
	seen[t] = true
	for _, it := range t.Members {
		d, ok := it.(*layout.Data)
		if !ok {
			continue
		}
		for _, dim := range d.Shape {
			if p := dim.Ref.Param; p != nil && inInstance(p) {
				return p
			}
		}
		for _, ref := range d.Instance {
			if p := ref.Param; p != nil && inInstance(p) {
				return p
			}
		}
		if d.Type.Named != nil {
			if p := embedded(d.Type.Named, seen); p != nil {
				return p
			}
		}
	}
	return nil
}

func inInstance(p *layout.Param) bool {
	return p.StreamResident() && p.IsMember()
}

// Validate fails with a TemplateViolationError for the first violation when
// l is marked as a template.
func Validate(l *layout.Layout) error {
	if !l.Template {
		return nil
	}
	if vs := Check(l); len(vs) > 0 {
		err := vs[0].Error(l.Source)
		if len(vs) > 1 {
			err.WithSuggestion(fmt.Sprintf("%d more violations follow", len(vs)-1))
		}
		return err
	}
	return nil
}
