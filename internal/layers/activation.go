package layers

import (
	"github.com/born-ml/born/nn"
	"github.com/born-ml/born/tensor"
)

// ReLU applies max(0, x).
func ReLU[B tensor.Backend](x *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	return nn.NewReLU[B]().Forward(x)
}

// Tanh applies the hyperbolic tangent.
func Tanh[B tensor.Backend](x *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	return nn.NewTanh[B]().Forward(x)
}

// LeakyReLU computes relu(x) - alpha*relu(-x).
func LeakyReLU[B tensor.Backend](x *tensor.Tensor[float32, B], alpha float32) *tensor.Tensor[float32, B] {
	pos := ReLU(x)
	neg := ReLU(Scale(x, -1))
	return pos.Sub(Scale(neg, alpha))
}
