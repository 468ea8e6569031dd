package layers

import (
	"fmt"

	"github.com/born-ml/born/nn"
	"github.com/born-ml/born/tensor"
)

// Conv is a square convolution with "same" padding.
//
// With stride 1 the spatial size is kept; with stride s it becomes ceil(H/s).
// The kernel size must be odd so that the padding is symmetric. The bias is
// held here rather than in nn.Conv2D so that it is added with AddBias.
type Conv[B tensor.Backend] struct {
	conv *nn.Conv2D[B]
	bias *nn.Parameter[B]
	relu bool
}

func newConv[B tensor.Backend](in, out, kernel, stride int, bias bool, backend B) *Conv[B] {
	if kernel%2 == 0 {
		panic(fmt.Sprintf("layers: conv kernel must be odd, got %d", kernel))
	}
	c := &Conv[B]{conv: nn.NewConv2D(in, out, kernel, kernel, stride, (kernel-1)/2, false, backend)}
	if bias {
		c.bias = nn.NewParameter("conv2d.bias", nn.Zeros(tensor.Shape{out}, backend))
	}
	return c
}

// NewConv creates a plain convolution.
func NewConv[B tensor.Backend](in, out, kernel, stride int, backend B) *Conv[B] {
	return newConv(in, out, kernel, stride, true, backend)
}

// NewConvNoBias creates a convolution without a bias term.
func NewConvNoBias[B tensor.Backend](in, out, kernel, stride int, backend B) *Conv[B] {
	return newConv(in, out, kernel, stride, false, backend)
}

// NewConvReLU creates a convolution followed by ReLU.
func NewConvReLU[B tensor.Backend](in, out, kernel, stride int, backend B) *Conv[B] {
	c := NewConv(in, out, kernel, stride, backend)
	c.relu = true
	return c
}

// Forward applies the convolution (and ReLU when configured).
func (c *Conv[B]) Forward(x *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	y := c.conv.Forward(x)
	if c.bias != nil {
		y = AddBias(y, c.bias.Tensor())
	}
	if c.relu {
		y = ReLU(y)
	}
	return y
}

// Parameters returns weight and bias.
func (c *Conv[B]) Parameters() []*nn.Parameter[B] {
	params := c.conv.Parameters()
	if c.bias != nil {
		params = append(params, c.bias)
	}
	return params
}

// NamedParameters returns prefix.weight and prefix.bias.
func (c *Conv[B]) NamedParameters(prefix string) []NamedParameter[B] {
	return Prefix(prefix, c.Parameters())
}

// OutChannels returns the number of output channels.
func (c *Conv[B]) OutChannels() int {
	return c.conv.OutChannels()
}

// Linear is a fully connected layer, y = x W^T + b.
type Linear[B tensor.Backend] struct {
	in, out int
	weight  *nn.Parameter[B]
	bias    *nn.Parameter[B]
}

// NewLinear creates a fully connected layer with Xavier weights and a zero
// bias.
func NewLinear[B tensor.Backend](in, out int, backend B) *Linear[B] {
	return &Linear[B]{
		in:     in,
		out:    out,
		weight: nn.NewParameter("weight", nn.Xavier(in, out, tensor.Shape{out, in}, backend)),
		bias:   nn.NewParameter("bias", nn.Zeros(tensor.Shape{out}, backend)),
	}
}

// Forward maps [N, in] to [N, out].
func (l *Linear[B]) Forward(x *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	if s := x.Shape(); len(s) != 2 || s[1] != l.in {
		panic(fmt.Sprintf("layers: linear expects [N,%d], got %v", l.in, s))
	}
	return AddBias(x.MatMul(l.weight.Tensor().Transpose()), l.bias.Tensor())
}

// Parameters returns weight and bias.
func (l *Linear[B]) Parameters() []*nn.Parameter[B] {
	return []*nn.Parameter[B]{l.weight, l.bias}
}

// NamedParameters returns prefix.weight and prefix.bias.
func (l *Linear[B]) NamedParameters(prefix string) []NamedParameter[B] {
	return Prefix(prefix, l.Parameters())
}
