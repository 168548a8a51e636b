// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package graph provides reference-counted tensor graph nodes, the OneHot
// operation, and a reference interpreter.
//
// # Ownership
//
// Every constructor returns a node holding one reference for the caller and
// takes one reference on each input. Call Release when done; a node releases
// its inputs once its last reference is gone.
//
//	p, _ := graph.NewParameter(element.I32, graph.Shape{3})
//	oh, err := graph.NewOneHot(p, graph.Shape{3, 4}, 1)
//	if err != nil {
//	    return err // *graph.ValidationError
//	}
//	defer oh.Release()
//	_ = p.Release() // oh keeps p alive
//
// # Execution
//
//	fn, _ := graph.NewFunction(oh, p)
//	out, err := graph.NewInterpreter().Call(ctx, fn, arg)
package graph

import (
	"github.com/born-ml/ngraph/internal/element"
	"github.com/born-ml/ngraph/internal/graph"
	"github.com/born-ml/ngraph/internal/interpreter"
	"github.com/born-ml/ngraph/internal/parallel"
	"github.com/born-ml/ngraph/internal/tensor"
)

// Shape represents the dimensions of a tensor view.
type Shape = tensor.Shape

// Value is a dense host tensor.
type Value = tensor.Value

// Node is a vertex of the computation graph.
type Node = graph.Node

// Node types.
type (
	Parameter              = graph.Parameter
	Tuple                  = graph.Tuple
	RequiresTensorViewArgs = graph.RequiresTensorViewArgs
	OneHot                 = graph.OneHot
	Function               = graph.Function
)

// Value types.
type (
	ValueType      = graph.ValueType
	TensorViewType = graph.TensorViewType
	TupleType      = graph.TupleType
)

// ValidationError reports a node that could not be constructed.
type ValidationError = graph.ValidationError

// Interpreter executes functions on host values.
type Interpreter = interpreter.Interpreter

// Construction errors.
var (
	ErrNilNode           = graph.ErrNilNode
	ErrReleasedNode      = graph.ErrReleasedNode
	ErrNotTensorView     = graph.ErrNotTensorView
	ErrInvalidShape      = graph.ErrInvalidShape
	ErrAxisOutOfBounds   = graph.ErrAxisOutOfBounds
	ErrShapeMismatch     = graph.ErrShapeMismatch
	ErrUnlistedParameter = graph.ErrUnlistedParameter
)

// Execution errors.
var (
	ErrNonIntegral = interpreter.ErrNonIntegral
	ErrOutOfRange  = interpreter.ErrOutOfRange
)

// NewParameter creates a graph input.
func NewParameter(et element.Type, shape Shape) (*Parameter, error) {
	return graph.NewParameter(et, shape)
}

// NewTuple groups the results of several nodes.
func NewTuple(args ...Node) (*Tuple, error) {
	return graph.NewTuple(args...)
}

// NewOneHot creates a one-hot node over arg with the given output shape.
func NewOneHot(arg Node, shape Shape, axis int) (*OneHot, error) {
	return graph.NewOneHot(arg, shape, axis)
}

// NewFunction creates a function computing result from params.
func NewFunction(result Node, params ...*Parameter) (*Function, error) {
	return graph.NewFunction(result, params...)
}

// NewValue allocates a zero-filled host value.
func NewValue(et element.Type, shape Shape) (*Value, error) {
	return tensor.NewValue(et, shape)
}

// ValueOf builds a host value from float64 data.
func ValueOf(et element.Type, shape Shape, data []float64) (*Value, error) {
	return tensor.FromFloat64s(et, shape, data)
}

// NewInterpreter creates an interpreter using all CPUs.
func NewInterpreter() *Interpreter {
	return interpreter.New(parallel.DefaultConfig())
}
