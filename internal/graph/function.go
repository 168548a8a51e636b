package graph

import (
	"errors"
	"fmt"
	"sort"
	"sync/atomic"
)

// Function is a graph with one result node and an ordered parameter list.
// It owns one reference on the result and on each parameter.
type Function struct {
	result     Node
	parameters []*Parameter
	released   atomic.Bool
}

// NewFunction creates a function computing result from params.
// Every parameter reachable from result must appear in params.
func NewFunction(result Node, params ...*Parameter) (*Function, error) {
	const op = "Function"

	if err := checkAlive(op, 0, result); err != nil {
		return nil, err
	}
	listed := make(map[Node]bool, len(params))
	for i, p := range params {
		if p == nil {
			return nil, validationErrorf(op, ErrNilNode, "parameter %d is nil", i)
		}
		if err := checkAlive(op, i+1, p); err != nil {
			return nil, err
		}
		listed[p] = true
	}
	for _, n := range reachable(result) {
		if p, ok := n.(*Parameter); ok && !listed[p] {
			return nil, validationErrorf(op, ErrUnlistedParameter, "%s is used but not listed", p.Name())
		}
	}

	owned := make([]Node, 0, len(params)+1)
	owned = append(owned, result)
	for _, p := range params {
		owned = append(owned, p)
	}
	for i, n := range owned {
		if err := n.Retain(); err != nil {
			for _, prev := range owned[:i] {
				_ = prev.Release()
			}
			return nil, fmt.Errorf("function: %w", err)
		}
	}

	return &Function{
		result:     result,
		parameters: append([]*Parameter(nil), params...),
	}, nil
}

// Result returns the result node.
func (f *Function) Result() Node {
	return f.result
}

// Parameters returns the parameters in binding order.
func (f *Function) Parameters() []*Parameter {
	return f.parameters
}

// TopologicalOrder returns every node reachable from the result, each after
// all of its inputs.
func (f *Function) TopologicalOrder() ([]Node, error) {
	nodes := reachable(f.result)
	order := make([]Node, 0, len(nodes))
	done := make(map[Node]bool, len(nodes))

	for {
		progress := false
		for _, n := range nodes {
			if done[n] {
				continue
			}
			ready := true
			for _, in := range n.Inputs() {
				if !done[in] {
					ready = false
					break
				}
			}
			if ready {
				done[n] = true
				order = append(order, n)
				progress = true
			}
		}
		if !progress {
			break
		}
	}

	if len(order) != len(nodes) {
		return nil, fmt.Errorf("function: %d of %d nodes could not be ordered", len(nodes)-len(order), len(nodes))
	}
	return order, nil
}

// Release drops the function's references on its result and parameters.
// Only the first call releases; later calls return ErrReleasedNode.
func (f *Function) Release() error {
	if !f.released.CompareAndSwap(false, true) {
		return fmt.Errorf("function: %w", ErrReleasedNode)
	}
	errs := []error{f.result.Release()}
	for _, p := range f.parameters {
		errs = append(errs, p.Release())
	}
	return errors.Join(errs...)
}

// ReachableParameters returns the parameters root depends on, ordered by
// creation.
func ReachableParameters(root Node) []*Parameter {
	var params []*Parameter
	for _, n := range reachable(root) {
		if p, ok := n.(*Parameter); ok {
			params = append(params, p)
		}
	}
	sort.Slice(params, func(i, j int) bool { return params[i].ID() < params[j].ID() })
	return params
}

// reachable returns the nodes reachable from root in depth-first discovery order.
func reachable(root Node) []Node {
	var out []Node
	seen := make(map[Node]bool)
	stack := []Node{root}
	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if seen[n] {
			continue
		}
		seen[n] = true
		out = append(out, n)
		inputs := n.Inputs()
		for i := len(inputs) - 1; i >= 0; i-- {
			stack = append(stack, inputs[i])
		}
	}
	return out
}
