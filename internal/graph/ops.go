package graph

import (
	"github.com/born-ml/ngraph/internal/element"
	"github.com/born-ml/ngraph/internal/tensor"
)

// Parameter is a graph input. Its value is bound when the graph is executed.
type Parameter struct {
	node
}

// NewParameter creates a parameter producing a tensor of the given type and shape.
func NewParameter(et element.Type, shape tensor.Shape) (*Parameter, error) {
	if !et.IsValid() {
		return nil, validationErrorf("Parameter", ErrInvalidElementType, "invalid element type %d", et)
	}
	if err := shape.Validate(); err != nil {
		return nil, validationErrorf("Parameter", ErrInvalidShape, "%v", err)
	}

	p := &Parameter{}
	if err := p.init("Parameter", nil, TensorViewType{ElementType: et, Shape: shape.Clone()}); err != nil {
		return nil, err
	}
	return p, nil
}

// Tuple groups the results of several nodes into one tuple value.
type Tuple struct {
	node
}

// NewTuple creates a tuple of args.
func NewTuple(args ...Node) (*Tuple, error) {
	elems := make([]ValueType, len(args))
	for i, arg := range args {
		if err := checkAlive("Tuple", i, arg); err != nil {
			return nil, err
		}
		elems[i] = arg.ValueType()
	}

	t := &Tuple{}
	if err := t.init("Tuple", args, TupleType{Elements: elems}); err != nil {
		return nil, err
	}
	return t, nil
}

// RequiresTensorViewArgs is the base of operations whose arguments must all
// produce tensor views.
type RequiresTensorViewArgs struct {
	node
}

// tensorViewArgs validates args for op and returns their tensor view types.
// No references are taken.
func tensorViewArgs(op string, args []Node) ([]TensorViewType, error) {
	types := make([]TensorViewType, len(args))
	for i, arg := range args {
		if err := checkAlive(op, i, arg); err != nil {
			return nil, err
		}
		tv, ok := arg.ValueType().(TensorViewType)
		if !ok {
			return nil, validationErrorf(op, ErrNotTensorView, "Arguments for node type %q must be tensor views", op)
		}
		types[i] = tv
	}
	return types, nil
}

// OneHot encodes its integer-valued argument as unit vectors along a new axis.
//
// For an argument of shape S, the output shape is S with one dimension
// inserted at the one-hot axis; that dimension's size is the number of
// categories.
type OneHot struct {
	RequiresTensorViewArgs
	oneHotAxis int
}

// NewOneHot creates a one-hot node over arg producing the given shape.
//
// axis must index a dimension of shape, and arg's shape must equal shape with
// that dimension removed. The result has arg's element type.
func NewOneHot(arg Node, shape tensor.Shape, axis int) (*OneHot, error) {
	const op = "OneHot"

	types, err := tensorViewArgs(op, []Node{arg})
	if err != nil {
		return nil, err
	}
	input := types[0]

	if err := shape.Validate(); err != nil {
		return nil, validationErrorf(op, ErrInvalidShape, "%v", err)
	}
	if axis < 0 || axis >= shape.Rank() {
		return nil, validationErrorf(op, ErrAxisOutOfBounds,
			"One-hot axis is out of bounds (axis %d, output rank %d)", axis, shape.Rank())
	}
	if expected := shape.Without(axis); !input.Shape.Equal(expected) {
		return nil, validationErrorf(op, ErrShapeMismatch,
			"One-hot argument shape is not compatible with desired output shape (argument %v, expected %v)",
			input.Shape, expected)
	}

	oh := &OneHot{oneHotAxis: axis}
	vt := TensorViewType{ElementType: input.ElementType, Shape: shape.Clone()}
	if err := oh.init(op, []Node{arg}, vt); err != nil {
		return nil, err
	}
	return oh, nil
}

// OneHotAxis returns the index of the one-hot dimension in the output shape.
func (o *OneHot) OneHotAxis() int {
	return o.oneHotAxis
}
