// Package tensor provides shapes and dense host tensor values for the graph
// and its reference interpreter.
package tensor

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"

	"github.com/born-ml/ngraph/internal/element"
)

// Errors returned by value constructors.
var (
	ErrInvalidElementType = errors.New("invalid element type")
	ErrSizeMismatch       = errors.New("data size does not match shape")
)

// Value is a dense, row-major host tensor.
// Elements are stored little-endian; booleans use one byte holding 0 or 1.
type Value struct {
	etype element.Type
	shape Shape
	data  []byte
}

// NewValue allocates a zero-filled value.
func NewValue(et element.Type, shape Shape) (*Value, error) {
	if !et.IsValid() {
		return nil, fmt.Errorf("%w: %v", ErrInvalidElementType, et)
	}
	if err := shape.Validate(); err != nil {
		return nil, fmt.Errorf("invalid shape: %w", err)
	}
	return &Value{
		etype: et,
		shape: shape.Clone(),
		data:  make([]byte, shape.NumElements()*et.Size()),
	}, nil
}

// FromBytes wraps data as a value. data is not copied.
func FromBytes(et element.Type, shape Shape, data []byte) (*Value, error) {
	v, err := NewValue(et, Shape{})
	if err != nil {
		return nil, err
	}
	if err := shape.Validate(); err != nil {
		return nil, fmt.Errorf("invalid shape: %w", err)
	}
	if want := shape.NumElements() * et.Size(); len(data) != want {
		return nil, fmt.Errorf("%w: shape %v of %s needs %d bytes, got %d",
			ErrSizeMismatch, shape, et.Name(), want, len(data))
	}
	v.shape = shape.Clone()
	v.data = data
	return v, nil
}

// FromFloat64s builds a value from float64 data converted to et.
func FromFloat64s(et element.Type, shape Shape, data []float64) (*Value, error) {
	v, err := NewValue(et, shape)
	if err != nil {
		return nil, err
	}
	if len(data) != v.NumElements() {
		return nil, fmt.Errorf("%w: shape %v has %d elements, got %d",
			ErrSizeMismatch, shape, v.NumElements(), len(data))
	}
	for i, x := range data {
		v.SetFloat64(i, x)
	}
	return v, nil
}

// ElementType returns the value's element type.
func (v *Value) ElementType() element.Type {
	return v.etype
}

// Shape returns the value's shape.
func (v *Value) Shape() Shape {
	return v.shape
}

// NumElements returns the number of elements.
func (v *Value) NumElements() int {
	return v.shape.NumElements()
}

// ByteSize returns the size of the backing buffer in bytes.
func (v *Value) ByteSize() int {
	return len(v.data)
}

// Bytes returns the backing buffer.
func (v *Value) Bytes() []byte {
	return v.data
}

// Float64At returns element i converted to float64.
func (v *Value) Float64At(i int) float64 {
	size := v.etype.Size()
	b := v.data[i*size : (i+1)*size]
	le := binary.LittleEndian

	switch v.etype {
	case element.Boolean, element.U8:
		return float64(b[0])
	case element.I8:
		return float64(int8(b[0]))
	case element.I16:
		return float64(int16(le.Uint16(b)))
	case element.U16:
		return float64(le.Uint16(b))
	case element.I32:
		return float64(int32(le.Uint32(b)))
	case element.U32:
		return float64(le.Uint32(b))
	case element.I64:
		return float64(int64(le.Uint64(b)))
	case element.U64:
		return float64(le.Uint64(b))
	case element.F32:
		return float64(math.Float32frombits(le.Uint32(b)))
	case element.F64:
		return math.Float64frombits(le.Uint64(b))
	default:
		panic(fmt.Sprintf("tensor: unsupported element type %v", v.etype))
	}
}

// SetFloat64 stores x at element i, converting it to the element type.
// Booleans store 1 for any non-zero x.
func (v *Value) SetFloat64(i int, x float64) {
	size := v.etype.Size()
	b := v.data[i*size : (i+1)*size]
	le := binary.LittleEndian

	switch v.etype {
	case element.Boolean:
		if x != 0 {
			b[0] = 1
		} else {
			b[0] = 0
		}
	case element.U8:
		b[0] = uint8(x)
	case element.I8:
		b[0] = uint8(int8(x))
	case element.I16:
		le.PutUint16(b, uint16(int16(x)))
	case element.U16:
		le.PutUint16(b, uint16(x))
	case element.I32:
		le.PutUint32(b, uint32(int32(x)))
	case element.U32:
		le.PutUint32(b, uint32(x))
	case element.I64:
		le.PutUint64(b, uint64(int64(x)))
	case element.U64:
		le.PutUint64(b, uint64(x))
	case element.F32:
		le.PutUint32(b, math.Float32bits(float32(x)))
	case element.F64:
		le.PutUint64(b, math.Float64bits(x))
	default:
		panic(fmt.Sprintf("tensor: unsupported element type %v", v.etype))
	}
}

// Float64s returns all elements converted to float64.
func (v *Value) Float64s() []float64 {
	out := make([]float64, v.NumElements())
	for i := range out {
		out[i] = v.Float64At(i)
	}
	return out
}
