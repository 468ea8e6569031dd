package layers

import (
	"fmt"

	"github.com/born-ml/born/tensor"
)

// Scale multiplies x by the constant s.
func Scale[B tensor.Backend](x *tensor.Tensor[float32, B], s float32) *tensor.Tensor[float32, B] {
	return x.Mul(tensor.Full[float32](ones(len(x.Shape())), s, x.Backend()))
}

// AddConst adds the constant c to every element of x.
func AddConst[B tensor.Backend](x *tensor.Tensor[float32, B], c float32) *tensor.Tensor[float32, B] {
	return x.Add(tensor.Full[float32](ones(len(x.Shape())), c, x.Backend()))
}

// Sum returns the sum of all elements as a [1, 1] tensor.
func Sum[B tensor.Backend](x *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	n := x.NumElements()
	return x.Reshape(1, n).MatMul(tensor.Ones[float32](tensor.Shape{n, 1}, x.Backend()))
}

// Mean returns the mean of all elements as a [1, 1] tensor.
func Mean[B tensor.Backend](x *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	n := x.NumElements()
	w := tensor.Full[float32](tensor.Shape{n, 1}, 1/float32(n), x.Backend())
	return x.Reshape(1, n).MatMul(w)
}

// RowMean averages every sample of a batch: [N, ...] -> [N, 1].
func RowMean[B tensor.Backend](x *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	n, m := rows(x)
	w := tensor.Full[float32](tensor.Shape{m, 1}, 1/float32(m), x.Backend())
	return x.Reshape(n, m).MatMul(w)
}

// Dot returns sum_i x_i * w_i as a [1, 1] tensor, with w a constant vector.
func Dot[B tensor.Backend](x *tensor.Tensor[float32, B], w []float32) *tensor.Tensor[float32, B] {
	n := x.NumElements()
	if len(w) != n {
		panic(fmt.Sprintf("layers: dot length mismatch %d != %d", len(w), n))
	}
	return x.Reshape(1, n).MatMul(Constant(w, tensor.Shape{n, 1}, x.Backend()))
}

// Flatten reshapes [N, ...] to [N, prod(...)].
func Flatten[B tensor.Backend](x *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	n, m := rows(x)
	return x.Reshape(n, m)
}

func rows[B tensor.Backend](x *tensor.Tensor[float32, B]) (n, m int) {
	shape := x.Shape()
	if len(shape) == 0 || shape[0] == 0 {
		panic(fmt.Sprintf("layers: expected a batched tensor, got shape %v", shape))
	}
	return shape[0], x.NumElements() / shape[0]
}

func ones(ndim int) tensor.Shape {
	shape := make(tensor.Shape, ndim)
	for i := range shape {
		shape[i] = 1
	}
	return shape
}
