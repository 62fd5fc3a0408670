// Package annot stores the doc and attribute comments of a layout, keyed by
// layout name and item id. The resolver only writes here; nothing in the
// pipeline reads the annotations back.
package annot

import "fmt"

// Attribute is one name=value pair from a "#:" comment. Value holds an
// int64, float64, string, bool, []int64, []float64 or []string.
type Attribute struct {
	Name  string
	Value interface{}
}

// Sink receives annotations while a layout is built.
type Sink interface {
	// AddDoc appends doc lines to an item.
	AddDoc(item int, lines []string) error
	// AddAttrs records attributes on an item. A repeated name replaces the
	// earlier value.
	AddAttrs(item int, attrs []Attribute) error
}

// Store is a Sink that can be read back.
type Store interface {
	Sink
	// Begin scopes later calls to the named layout and discards whatever
	// an earlier parse of that layout recorded.
	Begin(layout string) error
	// Docs returns the doc lines of an item, nil if it has none.
	Docs(item int) ([]string, error)
	// Attrs returns the attributes of an item in first-declared order.
	Attrs(item int) ([]Attribute, error)
	// Items returns every annotated item id in ascending order.
	Items() ([]int, error)
	// Close releases resources.
	Close() error
}

// ValueKind names the dynamic type of an attribute value.
type ValueKind string

const (
	KindInt         ValueKind = "int"
	KindFloat       ValueKind = "float"
	KindString      ValueKind = "string"
	KindBool        ValueKind = "bool"
	KindIntArray    ValueKind = "int[]"
	KindFloatArray  ValueKind = "float[]"
	KindStringArray ValueKind = "string[]"
)

// KindOf reports the kind of an attribute value.
func KindOf(v interface{}) (ValueKind, error) {
	switch v.(type) {
	case int64:
		return KindInt, nil
	case float64:
		return KindFloat, nil
	case string:
		return KindString, nil
	case bool:
		return KindBool, nil
	case []int64:
		return KindIntArray, nil
	case []float64:
		return KindFloatArray, nil
	case []string:
		return KindStringArray, nil
	default:
		return "", fmt.Errorf("unsupported attribute value %T", v)
	}
}

// mergeAttrs replaces same-named attributes in place and appends new ones.
func mergeAttrs(prev, next []Attribute) []Attribute {
	for _, a := range next {
		replaced := false
		for i := range prev {
			if prev[i].Name == a.Name {
				prev[i].Value = a.Value
				replaced = true
				break
			}
		}
		if !replaced {
			prev = append(prev, a)
		}
	}
	return prev
}
