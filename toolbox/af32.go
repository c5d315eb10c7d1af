package toolbox

import (
	"fmt"
	"slices"
)

// AF32 is a dense, row-major float32 array.
type AF32 struct {
	V     []float32
	Shape []int
}

func MakeAF32(shape ...int) *AF32 {
	for _, s := range shape {
		if s <= 0 {
			panic(fmt.Sprintf("invalid shape: %v", shape))
		}
	}
	size := 1
	for _, s := range shape {
		size *= s
	}

	return &AF32{
		V:     make([]float32, size),
		Shape: slices.Clone(shape),
	}
}

func MakeScalarAF32(scalar float32) *AF32 {
	return &AF32{
		V:     []float32{scalar},
		Shape: []int{1},
	}
}

// AF32FromSlice wraps v (without copying) in a tensor of the given shape.
func AF32FromSlice(v []float32, shape ...int) *AF32 {
	a := &AF32{V: v, Shape: slices.Clone(shape)}
	if a.Size() != len(v) {
		panic(fmt.Sprintf("slice of length %d does not fit shape %v", len(v), shape))
	}
	return a
}

// AF32Copy returns a deep copy of in.
func AF32Copy(in *AF32) *AF32 {
	return &AF32{
		V:     slices.Clone(in.V),
		Shape: slices.Clone(in.Shape),
	}
}

// AF32ZerosLike returns a zero tensor with the same shape as in.
func AF32ZerosLike(in *AF32) *AF32 {
	return &AF32{
		V:     make([]float32, len(in.V)),
		Shape: slices.Clone(in.Shape),
	}
}

func AF32Transpose(in *AF32, out *AF32) {
	if len(in.Shape) != 2 {
		panic("cannot transpose if len(shape) != 2")
	}
	if len(in.V) != len(out.V) {
		panic("output storage is not correctly sized to store the transpose of the input")
	}
	out.Shape = []int{in.Shape[1], in.Shape[0]}

	for i := 0; i < in.Shape[0]; i++ {
		for j := 0; j < in.Shape[1]; j++ {
			out.Set2(j, i, in.At2(i, j))
		}
	}
}

// AF32Reshape reshapes the input tensor.  The overall number of elements must
// be the same.  The returned tensor shares storage with the input tensor (no
// data is copied).
func AF32Reshape(a *AF32, shape ...int) *AF32 {
	newSize := 1
	for _, s := range shape {
		if s <= 0 {
			panic(fmt.Sprintf("invalid shape: %v", shape))
		}
		newSize *= s
	}

	if newSize != len(a.V) {
		panic(fmt.Sprintf("invalid reshape %v -> %v", a.Shape, shape))
	}

	return &AF32{
		V:     a.V,
		Shape: slices.Clone(shape),
	}
}

// SqueezeShape drops every singleton dimension.  A shape made only of
// singletons squeezes to {1} so that scalars keep a shape.
func SqueezeShape(shape []int) []int {
	out := []int{}
	for _, s := range shape {
		if s != 1 {
			out = append(out, s)
		}
	}
	if len(out) == 0 {
		out = []int{1}
	}
	return out
}

func (a *AF32) Size() int {
	size := 1
	for _, s := range a.Shape {
		size *= s
	}
	return size
}

// Rows returns the sample count.  1-D tensors are a column of samples.
func (a *AF32) Rows() int {
	return a.Shape[0]
}

// Cols returns the per-sample dimensionality.  1-D tensors have one column.
func (a *AF32) Cols() int {
	switch len(a.Shape) {
	case 1:
		return 1
	case 2:
		return a.Shape[1]
	default:
		panic(fmt.Sprintf("Cols() invalid for shape %v", a.Shape))
	}
}

func (a *AF32) At2(idx0, idx1 int) float32 {
	if len(a.Shape) != 2 {
		panic("At2() invalid for len(shape) != 2")
	}
	return a.V[idx0*a.Shape[1]+idx1]
}

func (a *AF32) Set2(idx0, idx1 int, v float32) {
	if len(a.Shape) != 2 {
		panic("Set2() invalid for len(shape) != 2")
	}
	a.V[idx0*a.Shape[1]+idx1] = v
}

// Fill sets every element to v.
func (a *AF32) Fill(v float32) {
	for i := range a.V {
		a.V[i] = v
	}
}

func (a *AF32) String() string {
	return fmt.Sprintf("AF32%v%v", a.Shape, a.V)
}

// ToFloat64 widens the values, for handing tensors to gonum.
func (a *AF32) ToFloat64() []float64 {
	out := make([]float64, len(a.V))
	for i, v := range a.V {
		out[i] = float64(v)
	}
	return out
}

// AF32FromFloat64 narrows v into a new tensor of the given shape.
func AF32FromFloat64(v []float64, shape ...int) *AF32 {
	a := MakeAF32(shape...)
	if len(v) != len(a.V) {
		panic(fmt.Sprintf("slice of length %d does not fit shape %v", len(v), shape))
	}
	for i := range v {
		a.V[i] = float32(v[i])
	}
	return a
}

// MeanHalfSquaredError evaluates the mean over rows of half the squared
// Euclidean distance between rows of a and b, without recording a tape.
//
// a and b must have identical shapes.  1-D tensors are treated as a column.
func MeanHalfSquaredError(a, b *AF32) float32 {
	if !slices.Equal(a.Shape, b.Shape) {
		panic(fmt.Sprintf("a and b must have same shape; got %v and %v", a.Shape, b.Shape))
	}
	rows := a.Rows()
	cols := a.Cols()

	var loss float32
	diff := make([]float32, cols)
	for k := 0; k < rows; k++ {
		row := k * cols
		for i := 0; i < cols; i++ {
			diff[i] = b.V[row+i] - a.V[row+i]
		}
		loss += denseDot2(diff, diff) / 2
	}
	return loss / float32(rows)
}
