// Package layers provides differentiable building blocks for the colorization
// networks.
//
// Every function here is composed from operations that the autodiff tape
// records (Add, Sub, Mul, MatMul, Reshape, Transpose, Conv2D, ReLU, ...), so
// gradients flow through them when recording is on. Reductions are written as
// matrix products with constant vectors for the same reason.
package layers

import (
	"strings"

	"github.com/born-ml/born/nn"
	"github.com/born-ml/born/tensor"
)

// Module is a differentiable function with trainable parameters.
type Module[B tensor.Backend] interface {
	Forward(x *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B]
	Parameters() []*nn.Parameter[B]
}

// NamedParameter pairs a parameter with its checkpoint name.
type NamedParameter[B tensor.Backend] struct {
	Name  string
	Param *nn.Parameter[B]
}

// Named is implemented by modules that expose stable parameter names.
type Named[B tensor.Backend] interface {
	NamedParameters(prefix string) []NamedParameter[B]
}

// Prefix names params as prefix.<last segment of the parameter name>.
//
// Conv2D names its parameters "conv2d.weight" and "conv2d.bias", Linear uses
// "weight" and "bias"; both become "<prefix>.weight" and "<prefix>.bias".
func Prefix[B tensor.Backend](prefix string, params []*nn.Parameter[B]) []NamedParameter[B] {
	named := make([]NamedParameter[B], 0, len(params))
	for _, p := range params {
		name := p.Name()
		if i := strings.LastIndexByte(name, '.'); i >= 0 {
			name = name[i+1:]
		}
		named = append(named, NamedParameter[B]{Name: Join(prefix, name), Param: p})
	}
	return named
}

// Join builds a dotted parameter path, skipping empty parts.
func Join(parts ...string) string {
	kept := parts[:0:0]
	for _, p := range parts {
		if p != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, ".")
}

// Params flattens named parameters back into a plain list.
func Params[B tensor.Backend](named []NamedParameter[B]) []*nn.Parameter[B] {
	out := make([]*nn.Parameter[B], len(named))
	for i, np := range named {
		out[i] = np.Param
	}
	return out
}

// Count returns the number of scalar weights in params.
func Count[B tensor.Backend](params []*nn.Parameter[B]) int {
	n := 0
	for _, p := range params {
		n += p.Tensor().NumElements()
	}
	return n
}
