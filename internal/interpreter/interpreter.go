// Package interpreter executes graph functions on host tensor values.
//
// It is a reference evaluator: every node is computed eagerly, in topological
// order, with the kernel registered for its description.
package interpreter

import (
	"context"
	"errors"
	"fmt"

	"github.com/born-ml/ngraph/internal/graph"
	"github.com/born-ml/ngraph/internal/parallel"
	"github.com/born-ml/ngraph/internal/tensor"
)

// Common errors.
var (
	ErrArgumentCount    = errors.New("wrong number of arguments")
	ErrArgumentMismatch = errors.New("argument does not match parameter type")
	ErrUnsupportedOp    = errors.New("unsupported operation")
	ErrNonIntegral      = errors.New("One-hot: non-integral value in input")
	ErrOutOfRange       = errors.New("One-hot: value is out of category range")
)

// Interpreter runs functions with a kernel registry.
type Interpreter struct {
	registry *Registry
	cfg      parallel.Config
}

// New creates an interpreter with the built-in kernels.
func New(cfg parallel.Config) *Interpreter {
	return &Interpreter{registry: NewRegistry(), cfg: cfg}
}

// Registry returns the kernel registry, for adding custom kernels.
func (it *Interpreter) Registry() *Registry {
	return it.registry
}

// Call binds args to fn's parameters in order and computes the result.
// A tuple result yields one value per element.
func (it *Interpreter) Call(ctx context.Context, fn *graph.Function, args ...*tensor.Value) ([]*tensor.Value, error) {
	params := fn.Parameters()
	if len(args) != len(params) {
		return nil, fmt.Errorf("%w: function takes %d, got %d", ErrArgumentCount, len(params), len(args))
	}

	values := make(map[graph.Node][]*tensor.Value)
	for i, p := range params {
		arg := args[i]
		if arg == nil || arg.ElementType() != p.ElementType() || !arg.Shape().Equal(p.Shape()) {
			return nil, fmt.Errorf("%w: argument %d for %s", ErrArgumentMismatch, i, p.ValueType())
		}
		values[p] = []*tensor.Value{arg}
	}

	order, err := fn.TopologicalOrder()
	if err != nil {
		return nil, err
	}

	for _, n := range order {
		if _, bound := values[n]; bound {
			continue
		}
		if _, isParam := n.(*graph.Parameter); isParam {
			return nil, fmt.Errorf("%w: %s", graph.ErrUnlistedParameter, n.Name())
		}

		kernel, ok := it.registry.Get(n.Description())
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnsupportedOp, n.Description())
		}

		var inputs []*tensor.Value
		for _, in := range n.Inputs() {
			inputs = append(inputs, values[in]...)
		}

		out, err := kernel(ctx, it.cfg, n, inputs)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", n.Name(), err)
		}
		values[n] = out
	}

	return values[fn.Result()], nil
}
