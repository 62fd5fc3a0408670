package types

import "fmt"

// Position is a location in layout source text.
type Position struct {
	Line   int // 1-based line number
	Column int // 1-based column number
	Offset int // 0-based byte offset
}

// String returns "line:col", or "?" for the zero position.
func (p Position) String() string {
	if p.Line == 0 {
		return "?"
	}
	return fmt.Sprintf("%d:%d", p.Line, p.Column)
}

// IsValid reports whether the position points into source text.
func (p Position) IsValid() bool {
	return p.Line > 0
}

// ByteOrder is the byte order of a primitive value in the stream.
type ByteOrder byte

const (
	OrderIndeterminate ByteOrder = '|' // decided by the layout or file default
	OrderLittle        ByteOrder = '<'
	OrderBig           ByteOrder = '>'
)

// String returns the order prefix character.
func (o ByteOrder) String() string {
	switch o {
	case OrderLittle, OrderBig, OrderIndeterminate:
		return string(rune(o))
	default:
		return "?"
	}
}

// Name returns a human readable name for the order.
func (o ByteOrder) Name() string {
	switch o {
	case OrderLittle:
		return "little-endian"
	case OrderBig:
		return "big-endian"
	case OrderIndeterminate:
		return "indeterminate"
	default:
		return "invalid"
	}
}

// ParseByteOrder maps '<', '>' and '|' to a ByteOrder.
func ParseByteOrder(c byte) (ByteOrder, bool) {
	switch ByteOrder(c) {
	case OrderLittle, OrderBig, OrderIndeterminate:
		return ByteOrder(c), true
	}
	return 0, false
}

// Resolve returns o unless it is indeterminate, in which case it returns def.
func (o ByteOrder) Resolve(def ByteOrder) ByteOrder {
	if o == OrderIndeterminate || o == 0 {
		return def
	}
	return o
}
