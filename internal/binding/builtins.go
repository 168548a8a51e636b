package binding

import (
	"context"
	"fmt"
	"math"
	"strings"

	zygo "github.com/glycerine/zygomys/zygo"

	"github.com/born-ml/ngraph/internal/element"
	"github.com/born-ml/ngraph/internal/graph"
	"github.com/born-ml/ngraph/internal/tensor"
)

// sexpType wraps an element type. The module creates one per type at
// registration, so repeated lookups of a name yield the same object.
type sexpType struct {
	et element.Type
}

func (s *sexpType) SexpString(ps *zygo.PrintState) string {
	return "Type." + s.et.Name()
}
func (s *sexpType) Type() *zygo.RegisteredType { return nil }

// sexpNode wraps a graph node handle.
type sexpNode struct {
	node graph.Node
}

func (s *sexpNode) SexpString(ps *zygo.PrintState) string {
	return fmt.Sprintf("<%s %s>", s.node.Name(), s.node.ValueType())
}
func (s *sexpNode) Type() *zygo.RegisteredType { return nil }

// builtin installs fn under name. fn runs with m.mu held. Errors are recorded
// so Eval can report the framework failure behind a script error.
func (m *Module) builtin(name string, fn func(args []zygo.Sexp) (zygo.Sexp, error)) {
	m.env.AddFunction(name, func(env *zygo.Zlisp, _ string, args []zygo.Sexp) (zygo.Sexp, error) {
		m.mu.Lock()
		defer m.mu.Unlock()

		err := m.usable()
		var out zygo.Sexp
		if err == nil {
			out, err = fn(args)
		}
		m.metrics.observe(name, err)
		if err != nil {
			rerr := toRuntimeError(name, err)
			m.lastErr = rerr
			return zygo.SexpNull, rerr
		}
		return out, nil
	})
}

func (m *Module) registerType() {
	for _, et := range element.All() {
		m.types[et] = &sexpType{et: et}
	}

	m.builtin("Type", func(args []zygo.Sexp) (zygo.Sexp, error) {
		if len(args) != 1 {
			return nil, fmt.Errorf("Type requires a name argument, got %d arguments", len(args))
		}
		name, err := toString(args[0])
		if err != nil {
			return nil, fmt.Errorf("name: %w", err)
		}
		t, err := m.lookupType(name)
		if err != nil {
			return nil, err
		}
		return t, nil
	})

	m.builtin("element_types", func(args []zygo.Sexp) (zygo.Sexp, error) {
		names := make([]zygo.Sexp, 0, len(m.types))
		for _, et := range element.All() {
			names = append(names, &zygo.SexpStr{S: et.Name()})
		}
		return zygo.MakeList(names), nil
	})
}

func (m *Module) registerOneHot() {
	m.builtin("OneHot", func(args []zygo.Sexp) (zygo.Sexp, error) {
		if len(args) != 3 {
			return nil, fmt.Errorf("OneHot requires (node shape axis), got %d arguments", len(args))
		}
		input, err := toNode(args[0])
		if err != nil {
			return nil, fmt.Errorf("node: %w", err)
		}
		shape, err := toShape(args[1])
		if err != nil {
			return nil, fmt.Errorf("shape: %w", err)
		}
		axis, err := toUint(args[2])
		if err != nil {
			return nil, fmt.Errorf("axis: %w", err)
		}
		oh, err := m.newOneHot(input, shape, axis)
		if err != nil {
			return nil, err
		}
		return &sexpNode{node: oh}, nil
	})

	m.builtin("get_one_hot_axis", func(args []zygo.Sexp) (zygo.Sexp, error) {
		n, err := oneNodeArg("get_one_hot_axis", args)
		if err != nil {
			return nil, err
		}
		oh, ok := n.(*graph.OneHot)
		if !ok {
			return nil, fmt.Errorf("expected OneHot, got %s", n.Description())
		}
		return &zygo.SexpInt{Val: int64(oh.OneHotAxis())}, nil
	})
}

func (m *Module) registerGraphHelpers() {
	m.builtin("Parameter", func(args []zygo.Sexp) (zygo.Sexp, error) {
		if len(args) != 2 {
			return nil, fmt.Errorf("Parameter requires (type shape), got %d arguments", len(args))
		}
		t, ok := args[0].(*sexpType)
		if !ok {
			return nil, fmt.Errorf("type: expected Type, got %T (%s)", args[0], args[0].SexpString(nil))
		}
		shape, err := toShape(args[1])
		if err != nil {
			return nil, fmt.Errorf("shape: %w", err)
		}
		p, err := m.newParameter(t.et, shape)
		if err != nil {
			return nil, err
		}
		return &sexpNode{node: p}, nil
	})

	m.builtin("get_shape", func(args []zygo.Sexp) (zygo.Sexp, error) {
		n, err := oneNodeArg("get_shape", args)
		if err != nil {
			return nil, err
		}
		dims := make([]zygo.Sexp, len(n.Shape()))
		for i, d := range n.Shape() {
			dims[i] = &zygo.SexpInt{Val: int64(d)}
		}
		return zygo.MakeList(dims), nil
	})

	m.builtin("get_element_type", func(args []zygo.Sexp) (zygo.Sexp, error) {
		n, err := oneNodeArg("get_element_type", args)
		if err != nil {
			return nil, err
		}
		t, ok := m.types[n.ElementType()]
		if !ok {
			return nil, fmt.Errorf("%s does not produce a tensor view", n.Name())
		}
		return t, nil
	})

	m.builtin("get_name", func(args []zygo.Sexp) (zygo.Sexp, error) {
		n, err := oneNodeArg("get_name", args)
		if err != nil {
			return nil, err
		}
		return &zygo.SexpStr{S: n.Name()}, nil
	})

	m.builtin("use_count", func(args []zygo.Sexp) (zygo.Sexp, error) {
		n, err := oneNodeArg("use_count", args)
		if err != nil {
			return nil, err
		}
		return &zygo.SexpInt{Val: int64(n.UseCount())}, nil
	})

	m.builtin("execute", func(args []zygo.Sexp) (zygo.Sexp, error) {
		if len(args) < 1 {
			return nil, fmt.Errorf("execute requires a node argument")
		}
		n, err := toNode(args[0])
		if err != nil {
			return nil, fmt.Errorf("node: %w", err)
		}

		params := graph.ReachableParameters(n)
		if len(args)-1 != len(params) {
			return nil, fmt.Errorf("%s takes %d argument values, got %d", n.Name(), len(params), len(args)-1)
		}
		values := make([]*tensor.Value, len(params))
		for i, p := range params {
			data, err := toFloat64s(args[i+1])
			if err != nil {
				return nil, fmt.Errorf("argument %d: %w", i, err)
			}
			values[i], err = tensor.FromFloat64s(p.ElementType(), p.Shape(), data)
			if err != nil {
				return nil, fmt.Errorf("argument %d: %w", i, err)
			}
		}

		out, err := m.execute(m.evalContext(), n, values)
		if err != nil {
			return nil, err
		}
		if len(out) == 1 {
			return valueToSexp(out[0]), nil
		}
		items := make([]zygo.Sexp, len(out))
		for i, v := range out {
			items[i] = valueToSexp(v)
		}
		return zygo.MakeList(items), nil
	})
}

func (m *Module) evalContext() context.Context {
	if m.ctx != nil {
		return m.ctx
	}
	return context.Background()
}

// ---------------------------------------------------------------------------
// Value conversion helpers
// ---------------------------------------------------------------------------

func oneNodeArg(function string, args []zygo.Sexp) (graph.Node, error) {
	if len(args) != 1 {
		return nil, fmt.Errorf("%s requires one node argument, got %d", function, len(args))
	}
	return toNode(args[0])
}

func toNode(s zygo.Sexp) (graph.Node, error) {
	if n, ok := s.(*sexpNode); ok {
		return n.node, nil
	}
	return nil, fmt.Errorf("expected node, got %T (%s)", s, s.SexpString(nil))
}

func toString(s zygo.Sexp) (string, error) {
	if str, ok := s.(*zygo.SexpStr); ok {
		return str.S, nil
	}
	return "", fmt.Errorf("expected string, got %T (%s)", s, s.SexpString(nil))
}

func toFloat64(s zygo.Sexp) (float64, error) {
	switch v := s.(type) {
	case *zygo.SexpInt:
		return float64(v.Val), nil
	case *zygo.SexpFloat:
		return v.Val, nil
	case *zygo.SexpBool:
		if v.Val {
			return 1, nil
		}
		return 0, nil
	}
	return 0, fmt.Errorf("expected number, got %T (%s)", s, s.SexpString(nil))
}

func toUint(s zygo.Sexp) (uint, error) {
	v, ok := s.(*zygo.SexpInt)
	if !ok {
		return 0, fmt.Errorf("expected integer, got %T (%s)", s, s.SexpString(nil))
	}
	if v.Val < 0 {
		return 0, fmt.Errorf("expected non-negative integer, got %d", v.Val)
	}
	return uint(v.Val), nil
}

func toShape(s zygo.Sexp) ([]int, error) {
	items, err := sexpListToSlice(s)
	if err != nil {
		return nil, err
	}
	shape := make([]int, len(items))
	for i, item := range items {
		d, err := toUint(item)
		if err != nil {
			return nil, fmt.Errorf("dimension %d: %w", i, err)
		}
		if d > math.MaxInt32 {
			return nil, fmt.Errorf("dimension %d: %d is too large", i, d)
		}
		shape[i] = int(d)
	}
	return shape, nil
}

func toFloat64s(s zygo.Sexp) ([]float64, error) {
	items, err := sexpListToSlice(s)
	if err != nil {
		return nil, err
	}
	out := make([]float64, len(items))
	for i, item := range items {
		if out[i], err = toFloat64(item); err != nil {
			return nil, fmt.Errorf("element %d: %w", i, err)
		}
	}
	return out, nil
}

// sexpListToSlice converts a SexpPair (Lisp list) or SexpArray to a Go slice.
func sexpListToSlice(s zygo.Sexp) ([]zygo.Sexp, error) {
	switch v := s.(type) {
	case *zygo.SexpPair:
		return zygo.ListToArray(v)
	case *zygo.SexpArray:
		return v.Val, nil
	case *zygo.SexpSentinel:
		if v == zygo.SexpNull {
			return nil, nil
		}
	}
	return nil, fmt.Errorf("expected list or array, got %T", s)
}

// valueToSexp flattens v into a list of numbers typed after its element type.
func valueToSexp(v *tensor.Value) zygo.Sexp {
	data := v.Float64s()
	items := make([]zygo.Sexp, len(data))
	for i, x := range data {
		switch {
		case v.ElementType() == element.Boolean:
			items[i] = &zygo.SexpBool{Val: x != 0}
		case v.ElementType().IsReal():
			items[i] = &zygo.SexpFloat{Val: x}
		default:
			items[i] = &zygo.SexpInt{Val: int64(x)}
		}
	}
	return zygo.MakeList(items)
}

// Describe renders a script value for logs and CLI output.
func Describe(s zygo.Sexp) string {
	if s == nil {
		return ""
	}
	return strings.TrimSpace(s.SexpString(nil))
}
