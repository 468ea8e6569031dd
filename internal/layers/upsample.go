package layers

import (
	"fmt"

	"github.com/born-ml/born/tensor"
)

// Upsample2x doubles the spatial size with nearest-neighbour interpolation.
//
// Input [N, C, H, W], output [N, C, 2H, 2W]. Both axes are expanded by a
// product with a constant 0/1 matrix, so the gradient is the sum over each
// 2x2 output block.
func Upsample2x[B tensor.Backend](x *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	shape := x.Shape()
	if len(shape) != 4 {
		panic(fmt.Sprintf("layers: upsample expects [N,C,H,W], got %v", shape))
	}
	n, c, h, w := shape[0], shape[1], shape[2], shape[3]
	b := x.Backend()

	// Width: [N*C*H, W] @ [W, 2W].
	y := x.Reshape(n*c*h, w).MatMul(repeatMatrix(w, b))

	// Height: move H last, expand, move it back.
	y = y.Reshape(n*c, h, 2*w).Transpose(0, 2, 1)
	y = y.Reshape(n*c*2*w, h).MatMul(repeatMatrix(h, b))
	y = y.Reshape(n*c, 2*w, 2*h).Transpose(0, 2, 1)

	return y.Reshape(n, c, 2*h, 2*w)
}

// repeatMatrix returns the [k, 2k] matrix with M[i, 2i] = M[i, 2i+1] = 1.
func repeatMatrix[B tensor.Backend](k int, backend B) *tensor.Tensor[float32, B] {
	data := make([]float32, k*2*k)
	for i := range k {
		data[i*2*k+2*i] = 1
		data[i*2*k+2*i+1] = 1
	}
	return Constant(data, tensor.Shape{k, 2 * k}, backend)
}
