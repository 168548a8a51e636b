package interpreter

import (
	"context"
	"fmt"
	"math"

	"github.com/born-ml/ngraph/internal/graph"
	"github.com/born-ml/ngraph/internal/parallel"
	"github.com/born-ml/ngraph/internal/tensor"
)

// Kernel computes the outputs of one node from the values of its inputs.
type Kernel func(ctx context.Context, cfg parallel.Config, n graph.Node, args []*tensor.Value) ([]*tensor.Value, error)

// Registry maps node descriptions to kernels.
type Registry struct {
	kernels map[string]Kernel
}

// NewRegistry creates a registry with every built-in kernel.
func NewRegistry() *Registry {
	r := &Registry{kernels: make(map[string]Kernel)}
	r.Register("OneHot", oneHot)
	r.Register("Tuple", tuple)
	return r
}

// Register adds or replaces the kernel for a node description.
func (r *Registry) Register(description string, k Kernel) {
	r.kernels[description] = k
}

// Get returns the kernel for a node description.
func (r *Registry) Get(description string) (Kernel, bool) {
	k, ok := r.kernels[description]
	return k, ok
}

func tuple(_ context.Context, _ parallel.Config, _ graph.Node, args []*tensor.Value) ([]*tensor.Value, error) {
	return args, nil
}

// oneHot writes 1 at out[..., arg[i], ...] for every input element and 0
// elsewhere.
func oneHot(ctx context.Context, cfg parallel.Config, n graph.Node, args []*tensor.Value) ([]*tensor.Value, error) {
	oh, ok := n.(*graph.OneHot)
	if !ok {
		return nil, fmt.Errorf("%w: OneHot kernel got %T", ErrUnsupportedOp, n)
	}
	if len(args) != 1 {
		return nil, fmt.Errorf("OneHot requires 1 input, got %d", len(args))
	}
	in := args[0]

	shape := oh.Shape()
	axis := oh.OneHotAxis()
	depth := shape[axis]
	// Input element i maps to output (i/stride, v, i%stride) around the axis.
	stride := shape.ComputeStrides()[axis]

	out, err := tensor.NewValue(oh.ElementType(), shape)
	if err != nil {
		return nil, err
	}

	err = parallel.For(ctx, in.NumElements(), func(i int) error {
		v := in.Float64At(i)
		if v != math.Floor(v) {
			return fmt.Errorf("%w (element %d: %v)", ErrNonIntegral, i, v)
		}
		if v < 0 || v >= float64(depth) {
			return fmt.Errorf("%w (element %d: %v, categories %d)", ErrOutOfRange, i, v, depth)
		}
		outer, rest := i/stride, i%stride
		out.SetFloat64((outer*depth+int(v))*stride+rest, 1)
		return nil
	}, cfg)
	if err != nil {
		return nil, err
	}
	return []*tensor.Value{out}, nil
}
