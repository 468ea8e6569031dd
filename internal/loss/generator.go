package loss

import (
	"github.com/born-ml/born/tensor"

	"github.com/born-ml/colorgan/internal/layers"
)

// GeneratorInput holds one batch for the generator objective.
type GeneratorInput[B tensor.Backend] struct {
	// L is the greyscale channel [N, 1, H, W].
	L *tensor.Tensor[float32, B]
	// AB is the predicted chroma [N, 2, H, W] and Classes the predicted class
	// distribution [N, K]; both come from the generator on the tape.
	AB      *tensor.Tensor[float32, B]
	Classes *tensor.Tensor[float32, B]
	// TrueAB is the real chroma [N, 2, H, W].
	TrueAB *tensor.Tensor[float32, B]
	// Target is the backbone's class distribution, row-major [N, K].
	Target []float32
}

// GeneratorReport holds the scalar parts of a generator loss.
type GeneratorReport struct {
	MSE    float32
	KLD    float32
	Wasser float32
	Total  float32
}

// Generator returns the generator objective and its parts.
//
// The Wasserstein term is mean D(real) - mean D(fake). Only the second half
// depends on the generator; the first keeps the value comparable across
// batches.
func Generator[B tensor.Backend](critic Critic[B], in GeneratorInput[B], w Weights) (*tensor.Tensor[float32, B], GeneratorReport) {
	mse := MSE(in.AB, in.TrueAB)
	kld := KLDiv(in.Classes, in.Target)
	wasser := Wasserstein(critic.Forward(in.L, in.TrueAB)).Sub(Wasserstein(critic.Forward(in.L, in.AB)))

	total := mse.Add(layers.Scale(kld, w.KLD)).Add(layers.Scale(wasser, w.Wasserstein))

	return total, GeneratorReport{
		MSE:    layers.Scalar(mse),
		KLD:    layers.Scalar(kld),
		Wasser: layers.Scalar(wasser),
		Total:  layers.Scalar(total),
	}
}
