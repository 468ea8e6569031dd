package layers

import (
	"fmt"

	"github.com/born-ml/born/tensor"
)

// The autodiff Add reduces a broadcast operand's gradient into the wrong
// slots, so every broadcast in the networks goes through the helpers below:
// the small operand is first expanded to the full shape by products with
// constant ones, and the final Add sees two tensors of equal shape.

// ExpandRows repeats the vector v [C] (or [1, C]) n times: [n, C].
func ExpandRows[B tensor.Backend](v *tensor.Tensor[float32, B], n int) *tensor.Tensor[float32, B] {
	c := v.NumElements()
	return tensor.Ones[float32](tensor.Shape{n, 1}, v.Backend()).MatMul(v.Reshape(1, c))
}

// ExpandSpatial repeats v [N, C] over an h x w grid: [N, C, h, w].
func ExpandSpatial[B tensor.Backend](v *tensor.Tensor[float32, B], h, w int) *tensor.Tensor[float32, B] {
	shape := v.Shape()
	if len(shape) != 2 {
		panic(fmt.Sprintf("layers: expand expects [N,C], got %v", shape))
	}
	n, c := shape[0], shape[1]
	ones := tensor.Ones[float32](tensor.Shape{1, h * w}, v.Backend())
	return v.Reshape(n*c, 1).MatMul(ones).Reshape(n, c, h, w)
}

// AddBias adds the per-channel vector bias [C] to x [N, C] or [N, C, H, W].
func AddBias[B tensor.Backend](x, bias *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	shape := x.Shape()
	switch len(shape) {
	case 2:
		return x.Add(ExpandRows(bias, shape[0]))
	case 4:
		return AddChannels(x, ExpandRows(bias, shape[0]))
	default:
		panic(fmt.Sprintf("layers: bias add expects [N,C] or [N,C,H,W], got %v", shape))
	}
}

// AddChannels adds v [N, C] to every spatial position of x [N, C, H, W].
func AddChannels[B tensor.Backend](x, v *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	shape := x.Shape()
	if len(shape) != 4 {
		panic(fmt.Sprintf("layers: channel add expects [N,C,H,W], got %v", shape))
	}
	if vs := v.Shape(); len(vs) != 2 || vs[0] != shape[0] || vs[1] != shape[1] {
		panic(fmt.Sprintf("layers: channel add of %v to %v", v.Shape(), shape))
	}
	return x.Add(ExpandSpatial(v, shape[2], shape[3]))
}
