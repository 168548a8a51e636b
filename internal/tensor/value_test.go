package tensor

import (
	"testing"

	"github.com/born-ml/ngraph/internal/element"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestShapeBasics(t *testing.T) {
	s := Shape{3, 4}
	assert.Equal(t, 2, s.Rank())
	assert.Equal(t, 12, s.NumElements())
	assert.Equal(t, []int{4, 1}, s.ComputeStrides())
	assert.Equal(t, "{3, 4}", s.String())
	assert.Equal(t, "{}", Shape{}.String())
	assert.Equal(t, 1, Shape{}.NumElements())
	assert.Equal(t, 0, Shape{2, 0, 5}.NumElements())
}

func TestShapeValidate(t *testing.T) {
	assert.NoError(t, Shape{0, 3}.Validate())
	assert.NoError(t, Shape{}.Validate())
	assert.Error(t, Shape{2, -1}.Validate())
}

func TestShapeWithout(t *testing.T) {
	s := Shape{2, 3, 4}
	assert.True(t, Shape{3, 4}.Equal(s.Without(0)))
	assert.True(t, Shape{2, 4}.Equal(s.Without(1)))
	assert.True(t, Shape{2, 3}.Equal(s.Without(2)))
	assert.True(t, Shape{2, 3, 4}.Equal(s), "Without must not modify the receiver")
}

func TestShapeCloneIndependent(t *testing.T) {
	s := Shape{1, 2}
	c := s.Clone()
	c[0] = 9
	assert.Equal(t, 1, s[0])
	assert.False(t, s.Equal(c))
}

func TestValueRoundTripAllTypes(t *testing.T) {
	data := []float64{0, 1, 2, 7}
	for _, et := range element.All() {
		t.Run(et.Name(), func(t *testing.T) {
			v, err := FromFloat64s(et, Shape{2, 2}, data)
			require.NoError(t, err)
			assert.Equal(t, 4*et.Size(), v.ByteSize())

			want := data
			if et == element.Boolean {
				want = []float64{0, 1, 1, 1}
			}
			assert.Equal(t, want, v.Float64s())
		})
	}
}

func TestValueSignedConversion(t *testing.T) {
	for _, et := range []element.Type{element.I8, element.I16, element.I32, element.I64, element.F32, element.F64} {
		v, err := FromFloat64s(et, Shape{1}, []float64{-3})
		require.NoError(t, err)
		assert.Equal(t, -3.0, v.Float64At(0), et.Name())
	}
}

func TestValueErrors(t *testing.T) {
	_, err := NewValue(element.Undefined, Shape{1})
	assert.ErrorIs(t, err, ErrInvalidElementType)

	_, err = NewValue(element.F32, Shape{-1})
	assert.Error(t, err)

	_, err = FromFloat64s(element.F32, Shape{3}, []float64{1, 2})
	assert.ErrorIs(t, err, ErrSizeMismatch)

	_, err = FromBytes(element.I32, Shape{2}, make([]byte, 7))
	assert.ErrorIs(t, err, ErrSizeMismatch)
}

func TestFromBytesSharesBuffer(t *testing.T) {
	buf := make([]byte, 2)
	v, err := FromBytes(element.U8, Shape{2}, buf)
	require.NoError(t, err)

	v.SetFloat64(1, 42)
	assert.Equal(t, byte(42), buf[1])
	assert.True(t, Shape{2}.Equal(v.Shape()))
}
