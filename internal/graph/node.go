// Package graph implements reference-counted tensor graph nodes.
//
// Nodes use shared ownership: a constructor hands the caller one reference and
// takes one reference on each of the node's inputs. A node stays alive while
// any owner (a caller, a consuming node, a Function) still holds a reference,
// and releases its inputs when its own count drops to zero.
package graph

import (
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/born-ml/ngraph/internal/element"
	"github.com/born-ml/ngraph/internal/tensor"
)

// Node is a vertex of the computation graph.
type Node interface {
	// ID returns the process-unique instance id.
	ID() uint64
	// Name returns "<Description>_<ID>".
	Name() string
	// Description returns the node type, e.g. "Parameter" or "OneHot".
	Description() string
	// Inputs returns the argument nodes. Empty once the node is released.
	Inputs() []Node
	// ValueType returns the type of the value the node produces.
	ValueType() ValueType
	// ElementType returns the element type of a tensor-view result,
	// element.Undefined otherwise.
	ElementType() element.Type
	// Shape returns the shape of a tensor-view result, nil otherwise.
	Shape() tensor.Shape

	// Retain adds an owner. It fails once the node has been released.
	Retain() error
	// Release drops an owner. The last release releases the inputs.
	Release() error
	// UseCount returns the number of live owners.
	UseCount() int
}

var lastID atomic.Uint64

// node carries the state shared by every Node implementation.
type node struct {
	id          uint64
	description string
	inputs      []Node
	valueType   ValueType
	refs        atomic.Int32
}

// init takes one reference on each input and gives the caller the first
// reference on n. Inputs must be validated before calling init.
func (n *node) init(description string, inputs []Node, vt ValueType) error {
	for i, in := range inputs {
		if err := in.Retain(); err != nil {
			for _, prev := range inputs[:i] {
				_ = prev.Release()
			}
			return validationErrorf(description, err, "argument %d: %v", i, err)
		}
	}
	n.id = lastID.Add(1)
	n.description = description
	n.inputs = append([]Node(nil), inputs...)
	n.valueType = vt
	n.refs.Store(1)
	return nil
}

func (n *node) ID() uint64 {
	return n.id
}

func (n *node) Name() string {
	return fmt.Sprintf("%s_%d", n.description, n.id)
}

func (n *node) Description() string {
	return n.description
}

func (n *node) Inputs() []Node {
	return n.inputs
}

func (n *node) ValueType() ValueType {
	return n.valueType
}

func (n *node) ElementType() element.Type {
	if tv, ok := n.valueType.(TensorViewType); ok {
		return tv.ElementType
	}
	return element.Undefined
}

func (n *node) Shape() tensor.Shape {
	if tv, ok := n.valueType.(TensorViewType); ok {
		return tv.Shape
	}
	return nil
}

func (n *node) UseCount() int {
	return int(n.refs.Load())
}

func (n *node) Retain() error {
	for {
		c := n.refs.Load()
		if c <= 0 {
			return fmt.Errorf("%w: %s", ErrReleasedNode, n.Name())
		}
		if n.refs.CompareAndSwap(c, c+1) {
			return nil
		}
	}
}

func (n *node) Release() error {
	for {
		c := n.refs.Load()
		if c <= 0 {
			return fmt.Errorf("%w: %s", ErrReleasedNode, n.Name())
		}
		if n.refs.CompareAndSwap(c, c-1) {
			if c == 1 {
				return n.releaseInputs()
			}
			return nil
		}
	}
}

func (n *node) releaseInputs() error {
	inputs := n.inputs
	n.inputs = nil

	var errs []error
	for _, in := range inputs {
		if err := in.Release(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// checkAlive validates a constructor argument.
func checkAlive(op string, i int, in Node) error {
	if in == nil {
		return validationErrorf(op, ErrNilNode, "argument %d is nil", i)
	}
	if in.UseCount() <= 0 {
		return validationErrorf(op, ErrReleasedNode, "argument %d (%s) has been released", i, in.Name())
	}
	return nil
}
