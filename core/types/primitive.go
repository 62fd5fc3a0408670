package types

import (
	"sort"
	"strconv"
)

// Class is the numeric family of a primitive datatype.
type Class byte

const (
	ClassSigned   Class = 'i'
	ClassUnsigned Class = 'u'
	ClassBoolean  Class = 'b'
	ClassFloat    Class = 'f'
	ClassComplex  Class = 'c'
	ClassASCII    Class = 'S'
	ClassUnicode  Class = 'U'
)

// Primitive is one of the predefined datatypes, such as f8 or <i4.
type Primitive struct {
	Name  string // name without order prefix, e.g. "f8"
	Class Class
	Size  int64 // bytes per element
}

// Align is the default alignment of the primitive, equal to its size.
func (p *Primitive) Align() int64 {
	return p.Size
}

// IsInteger reports whether the primitive may type a parameter.
func (p *Primitive) IsInteger() bool {
	return p.Class == ClassSigned || p.Class == ClassUnsigned
}

// Signed reports whether the primitive holds two's complement integers.
func (p *Primitive) Signed() bool {
	return p.Class == ClassSigned
}

var primitives = map[string]*Primitive{}

func init() {
	add := func(class Class, sizes ...int64) {
		for _, size := range sizes {
			name := string(rune(class)) + strconv.FormatInt(size, 10)
			primitives[name] = &Primitive{Name: name, Class: class, Size: size}
		}
	}
	add(ClassSigned, 1, 2, 4, 8)
	add(ClassUnsigned, 1, 2, 4, 8)
	add(ClassBoolean, 1)
	add(ClassFloat, 2, 4, 8)
	add(ClassComplex, 4, 8, 16)
	add(ClassASCII, 1)
	add(ClassUnicode, 1, 2, 4)
}

// LookupPrimitive finds a primitive by its unprefixed name.
func LookupPrimitive(name string) (*Primitive, bool) {
	p, ok := primitives[name]
	return p, ok
}

// IsPrimitiveName reports whether name is an unprefixed primitive name.
func IsPrimitiveName(name string) bool {
	_, ok := primitives[name]
	return ok
}

// ParsePrimType splits "<f8", ">i4", "|u2" or "c16" into primitive and order.
// An unprefixed name yields OrderIndeterminate.
func ParsePrimType(text string) (*Primitive, ByteOrder, bool) {
	order := OrderIndeterminate
	if len(text) > 0 {
		if o, ok := ParseByteOrder(text[0]); ok {
			order = o
			text = text[1:]
		}
	}
	p, ok := primitives[text]
	if !ok {
		return nil, 0, false
	}
	return p, order, true
}

// PrimitiveNames returns the unprefixed primitive names, sorted.
func PrimitiveNames() []string {
	names := make([]string, 0, len(primitives))
	for name := range primitives {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
