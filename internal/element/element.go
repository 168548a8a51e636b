// Package element defines the closed set of scalar element types carried by
// graph nodes and host tensor values.
package element

import "fmt"

// Type identifies a scalar element type.
//
// The set is fixed at compile time. Two Types are the same element type exactly
// when they are equal, so a Type can be compared with == and used as a map key.
type Type uint8

// Supported element types. Undefined is the zero value and is not a valid type.
const (
	Undefined Type = iota
	Boolean
	F32
	F64
	I8
	I16
	I32
	I64
	U8
	U16
	U32
	U64
)

type info struct {
	name     string
	bitwidth int
	real     bool
	signed   bool
	cType    string
}

var infos = [...]info{
	Undefined: {name: "undefined"},
	Boolean:   {name: "boolean", bitwidth: 8, cType: "char"},
	F32:       {name: "f32", bitwidth: 32, real: true, signed: true, cType: "float"},
	F64:       {name: "f64", bitwidth: 64, real: true, signed: true, cType: "double"},
	I8:        {name: "i8", bitwidth: 8, signed: true, cType: "int8_t"},
	I16:       {name: "i16", bitwidth: 16, signed: true, cType: "int16_t"},
	I32:       {name: "i32", bitwidth: 32, signed: true, cType: "int32_t"},
	I64:       {name: "i64", bitwidth: 64, signed: true, cType: "int64_t"},
	U8:        {name: "u8", bitwidth: 8, cType: "uint8_t"},
	U16:       {name: "u16", bitwidth: 16, cType: "uint16_t"},
	U32:       {name: "u32", bitwidth: 32, cType: "uint32_t"},
	U64:       {name: "u64", bitwidth: 64, cType: "uint64_t"},
}

var all = []Type{Boolean, F32, F64, I8, I16, I32, I64, U8, U16, U32, U64}

var byName = func() map[string]Type {
	m := make(map[string]Type, len(all))
	for _, t := range all {
		m[infos[t].name] = t
	}
	return m
}()

// All returns every valid element type in declaration order.
// The returned slice is a copy.
func All() []Type {
	out := make([]Type, len(all))
	copy(out, all)
	return out
}

// Lookup returns the element type registered under name ("f32", "boolean", ...).
func Lookup(name string) (Type, bool) {
	t, ok := byName[name]
	return t, ok
}

// IsValid reports whether t is one of the eleven defined element types.
func (t Type) IsValid() bool {
	return t > Undefined && int(t) < len(infos)
}

func (t Type) info() info {
	if int(t) >= len(infos) {
		return infos[Undefined]
	}
	return infos[t]
}

// Name returns the short registry name, e.g. "f32".
func (t Type) Name() string {
	return t.info().name
}

// Bitwidth returns the number of bits of one element.
func (t Type) Bitwidth() int {
	return t.info().bitwidth
}

// Size returns the byte size of one element.
func (t Type) Size() int {
	return (t.info().bitwidth + 7) / 8
}

// IsReal reports whether t is a floating point type.
func (t Type) IsReal() bool {
	return t.info().real
}

// IsSigned reports whether t can represent negative values.
func (t Type) IsSigned() bool {
	return t.info().signed
}

// CTypeString returns the C type name used by code generators for t.
func (t Type) CTypeString() string {
	return t.info().cType
}

// String returns a human-readable form such as "element::Type{32, true, true, float}".
func (t Type) String() string {
	in := t.info()
	if !t.IsValid() {
		return "element::Type{undefined}"
	}
	return fmt.Sprintf("element::Type{%d, %t, %t, %s}", in.bitwidth, in.real, in.signed, in.cType)
}
