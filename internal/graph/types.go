package graph

import (
	"strings"

	"github.com/born-ml/ngraph/internal/element"
	"github.com/born-ml/ngraph/internal/tensor"
)

// ValueType describes what a node produces.
type ValueType interface {
	String() string
	valueType()
}

// TensorViewType is the type of a single tensor result.
type TensorViewType struct {
	ElementType element.Type
	Shape       tensor.Shape
}

func (TensorViewType) valueType() {}

func (t TensorViewType) String() string {
	return "TensorView(" + t.ElementType.Name() + ", " + t.Shape.String() + ")"
}

// Equal reports whether both element type and shape match.
func (t TensorViewType) Equal(other TensorViewType) bool {
	return t.ElementType == other.ElementType && t.Shape.Equal(other.Shape)
}

// TupleType is the type of a node producing several values.
type TupleType struct {
	Elements []ValueType
}

func (TupleType) valueType() {}

func (t TupleType) String() string {
	parts := make([]string, len(t.Elements))
	for i, e := range t.Elements {
		parts[i] = e.String()
	}
	return "Tuple(" + strings.Join(parts, ", ") + ")"
}
