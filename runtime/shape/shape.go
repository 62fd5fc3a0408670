// Package shape evaluates the dimension list of an array against a binding
// of parameter values.
//
// Each dimension is resolved to an integer and then, in order: a value of 0
// omits the whole array; a value of -1 omits the array when the dimension
// carries '?' and otherwise drops that dimension; any other value gets the
// +/- run applied. Evaluation is pure, so calling it again with more
// parameters bound refines an unknown result into a known one.
package shape

import (
	"math/bits"

	"github.com/dhmunro/dudley/core/layout"

	derrors "github.com/dhmunro/dudley/core/errors"
)

// Binding supplies the value of a parameter, if known.
type Binding interface {
	Value(p *layout.Param) (int64, bool)
}

// Values binds stream-resident parameters to values. Fixed parameters are
// always bound to their declared value.
type Values map[*layout.Param]int64

// Value implements Binding.
func (v Values) Value(p *layout.Param) (int64, bool) {
	if p.Fixed {
		return p.Value, true
	}
	x, ok := v[p]
	return x, ok
}

// Instance is the chain of type-instance bindings a struct member is
// evaluated under, innermost first.
type Instance struct {
	Refs  []layout.ParamRef
	Outer *Instance
}

// Enter returns the instance chain for the members of a data item's type.
func (in *Instance) Enter(d *layout.Data) *Instance {
	if len(d.Instance) == 0 {
		return in
	}
	return &Instance{Refs: d.Instance, Outer: in}
}

// Param follows a deferred reference out through the chain.
func (in *Instance) Param(ref layout.ParamRef) (*layout.Param, bool) {
	for ref.Deferred {
		if in == nil || ref.Index < 0 || ref.Index >= len(in.Refs) {
			return nil, false
		}
		ref = in.Refs[ref.Index]
		in = in.Outer
	}
	return ref.Param, ref.Param != nil
}

// Result is an evaluated shape.
type Result struct {
	Dims    []int64  // lengths after dropped dimensions; nil when omitted or unknown
	Omitted bool     // a 0, or -1 with '?', removed the whole array
	Known   bool     // every needed parameter was bound
	Missing []string // parameters that were not bound
}

// Count returns the number of elements, and false while the shape is
// unknown. An omitted array has zero elements.
func (r Result) Count() (int64, bool) {
	if !r.Known {
		return 0, false
	}
	if r.Omitted {
		return 0, true
	}
	n := int64(1)
	for _, d := range r.Dims {
		n *= d
	}
	return n, true
}

// Evaluate computes the shape of dims under b.
func Evaluate(dims []layout.Dimension, b Binding) (Result, error) {
	return EvaluateIn(dims, b, nil)
}

// EvaluateIn computes the shape of a struct member's dims, following deferred
// parameter references through in.
func EvaluateIn(dims []layout.Dimension, b Binding, in *Instance) (Result, error) {
	var out []int64
	var missing []string
	count := uint64(1)
	for _, dim := range dims {
		var v int64
		if dim.IsLiteral() {
			v = dim.Literal
			if v < 0 {
				return Result{}, derrors.New(derrors.Shape, dim.Pos, "dimension %d is negative", v)
			}
		} else {
			p, ok := in.Param(dim.Ref)
			if !ok {
				return Result{}, derrors.New(derrors.Shape, dim.Pos, "dimension %s is not bound to a parameter", dim)
			}
			val, ok := b.Value(p)
			if !ok {
				missing = append(missing, dim.Name)
				continue
			}
			v = val
		}

		switch {
		case v == 0:
			return Result{Omitted: true, Known: true}, nil
		case v == -1 && dim.Optional:
			return Result{Omitted: true, Known: true}, nil
		case v == -1:
			continue
		case v < -1:
			return Result{}, derrors.New(derrors.Shape, dim.Pos, "dimension %s has invalid value %d", dim, v)
		}

		n := v + int64(dim.Adjust)
		if n < 0 {
			return Result{}, derrors.New(derrors.Shape, dim.Pos, "dimension %s evaluates to %d", dim, n)
		}
		hi, lo := bits.Mul64(count, uint64(n))
		if hi != 0 || lo > 1<<62 {
			return Result{}, derrors.New(derrors.Shape, dim.Pos, "array with dimension %s is too large", dim)
		}
		count = lo
		out = append(out, n)
	}

	if len(missing) > 0 {
		return Result{Missing: missing}, nil
	}
	if out == nil {
		out = []int64{}
	}
	return Result{Dims: out, Known: true}, nil
}

// Bytes returns the byte length of count elements of size bytes.
func Bytes(count, size int64) (int64, bool) {
	hi, lo := bits.Mul64(uint64(count), uint64(size))
	if hi != 0 || lo > 1<<62 {
		return 0, false
	}
	return int64(lo), true
}
