package model

import (
	"fmt"
	"strconv"

	"github.com/born-ml/born/nn"
	"github.com/born-ml/born/tensor"

	"github.com/born-ml/colorgan/internal/layers"
)

// Discriminator is a PatchGAN critic over (L, ab) pairs.
//
// Inputs: L [N, 1, H, W] and ab [N, 2, H, W].
// Output: [N, 1] scores, the mean of the patch map of each sample.
//
// The first layer is split into an L and an ab convolution whose outputs are
// summed, which equals one convolution over the concatenated channels.
// Samples never interact, so the score of a sample depends on that sample
// only.
type Discriminator[B tensor.Backend] struct {
	inputL  *layers.Conv[B]
	inputAB *layers.Conv[B]
	hidden  []*layers.Conv[B]
	patch   *layers.Conv[B]
	slope   float32
}

// NewDiscriminator builds the critic.
func NewDiscriminator[B tensor.Backend](cfg DiscriminatorConfig, backend B) *Discriminator[B] {
	w0, s0 := cfg.Widths[0], cfg.Strides[0]
	d := &Discriminator[B]{
		inputL:  layers.NewConv(1, w0, 3, s0, backend),
		inputAB: layers.NewConvNoBias(2, w0, 3, s0, backend),
		slope:   cfg.Slope,
	}
	in := w0
	for i := 1; i < len(cfg.Widths); i++ {
		d.hidden = append(d.hidden, layers.NewConv(in, cfg.Widths[i], 3, cfg.Strides[i], backend))
		in = cfg.Widths[i]
	}
	d.patch = layers.NewConv(in, 1, 3, 1, backend)
	return d
}

// Forward returns one score per sample.
func (d *Discriminator[B]) Forward(l, ab *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	if l.Shape()[0] != ab.Shape()[0] {
		panic(fmt.Sprintf("discriminator: batch mismatch L %v ab %v", l.Shape(), ab.Shape()))
	}
	x := layers.LeakyReLU(d.inputL.Forward(l).Add(d.inputAB.Forward(ab)), d.slope)
	for _, c := range d.hidden {
		x = layers.LeakyReLU(c.Forward(x), d.slope)
	}
	return layers.RowMean(d.patch.Forward(x))
}

// Parameters returns all trainable parameters.
func (d *Discriminator[B]) Parameters() []*nn.Parameter[B] {
	return layers.Params(d.NamedParameters(""))
}

// NamedParameters returns parameters under stable names.
func (d *Discriminator[B]) NamedParameters(prefix string) []layers.NamedParameter[B] {
	named := d.inputL.NamedParameters(layers.Join(prefix, "input_l"))
	named = append(named, d.inputAB.NamedParameters(layers.Join(prefix, "input_ab"))...)
	for i, c := range d.hidden {
		named = append(named, c.NamedParameters(indexed(layers.Join(prefix, "hidden"), i))...)
	}
	return append(named, d.patch.NamedParameters(layers.Join(prefix, "patch"))...)
}

func indexed(name string, i int) string {
	return name + "." + strconv.Itoa(i)
}
