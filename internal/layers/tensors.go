package layers

import (
	"fmt"

	"github.com/born-ml/born/tensor"
)

// Constant wraps data in a new tensor. The slice is used as is.
func Constant[B tensor.Backend](data []float32, shape tensor.Shape, backend B) *tensor.Tensor[float32, B] {
	t, err := tensor.FromSlice(data, shape, backend)
	if err != nil {
		panic(fmt.Sprintf("layers: constant %v: %v", shape, err))
	}
	return t
}

// Detach copies x into a tensor the tape has never seen, so no gradient
// flows back through it.
func Detach[B tensor.Backend](x *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	return Constant(Values(x), x.Shape().Clone(), x.Backend())
}

// Values returns a copy of the elements of x.
func Values[B tensor.Backend](x *tensor.Tensor[float32, B]) []float32 {
	return append([]float32(nil), x.Raw().AsFloat32()...)
}

// Scalar returns the single value of a one-element tensor.
func Scalar[B tensor.Backend](x *tensor.Tensor[float32, B]) float32 {
	data := x.Raw().AsFloat32()
	if len(data) != 1 {
		panic(fmt.Sprintf("layers: expected a scalar, got shape %v", x.Shape()))
	}
	return data[0]
}

// Grad looks up the gradient of x in a backward result.
// It returns nil when x did not take part in the computation.
func Grad[B tensor.Backend](grads map[*tensor.RawTensor]*tensor.RawTensor, x *tensor.Tensor[float32, B]) []float32 {
	g, ok := grads[x.Raw()]
	if !ok || g == nil {
		return nil
	}
	return g.AsFloat32()
}
