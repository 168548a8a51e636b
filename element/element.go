// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package element provides the closed set of scalar element types.
//
// Element types are compile-time constants; the same name always denotes the
// same value, so types compare with == and work as map keys:
//
//	t, ok := element.Lookup("f32")
//	if ok && t == element.F32 {
//	    fmt.Println(t.Size()) // 4
//	}
package element

import (
	"github.com/born-ml/ngraph/internal/element"
)

// Type identifies a scalar element type.
type Type = element.Type

// Element type constants.
const (
	Undefined Type = element.Undefined
	Boolean   Type = element.Boolean
	F32       Type = element.F32
	F64       Type = element.F64
	I8        Type = element.I8
	I16       Type = element.I16
	I32       Type = element.I32
	I64       Type = element.I64
	U8        Type = element.U8
	U16       Type = element.U16
	U32       Type = element.U32
	U64       Type = element.U64
)

// All returns every element type in declaration order.
func All() []Type {
	return element.All()
}

// Lookup returns the element type registered under name.
func Lookup(name string) (Type, bool) {
	return element.Lookup(name)
}
