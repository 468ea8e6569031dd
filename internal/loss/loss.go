// Package loss composes the generator and discriminator objectives.
//
// Generator:
//
//	MSE(ab, true_ab) + kld*KL(softmax(vgg_logits) || classes) + w*(mean D(real) - mean D(fake))
//
// Discriminator (critic):
//
//	-mean D(real) + mean D(fake) + gp*mean_i (||dD(x_i)/dx_i|| - 1)^2
//
// All tensors returned by this package are [1, 1] and recorded on the tape
// when recording is on.
package loss

import (
	"fmt"
	"math"

	"github.com/born-ml/born/tensor"

	"github.com/born-ml/colorgan/internal/layers"
)

// eps keeps log(classes) finite.
const eps = 1e-8

// Weights scales the loss terms.
type Weights struct {
	KLD         float32
	Wasserstein float32
	GP          float32
	// Epsilon is the finite-difference step of the penalty update.
	Epsilon float32
}

// DefaultWeights returns the reference weighting.
func DefaultWeights() Weights {
	return Weights{KLD: 0.003, Wasserstein: 1, GP: 1, Epsilon: 0.01}
}

// Critic scores (L, ab) pairs, one [N, 1] score per sample.
type Critic[B tensor.Backend] interface {
	Forward(l, ab *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B]
}

// MSE returns mean((pred - target)^2).
func MSE[B tensor.Backend](pred, target *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	d := pred.Sub(target)
	return layers.Mean(d.Mul(d))
}

// KLDiv returns the batch-mean KL divergence of probs from target:
//
//	sum(target * (log(target) - log(probs))) / N
//
// probs is [N, K] on the tape; target is a constant row-major [N, K] slice of
// probabilities. Zero target entries contribute nothing.
func KLDiv[B tensor.Backend](probs *tensor.Tensor[float32, B], target []float32) *tensor.Tensor[float32, B] {
	shape := probs.Shape()
	if len(shape) != 2 || len(target) != shape.NumElements() {
		panic(fmt.Sprintf("loss: kl target of %d values for probs %v", len(target), shape))
	}
	n := float32(shape[0])

	var entropy float64
	w := make([]float32, len(target))
	for i, p := range target {
		if p > 0 {
			entropy += float64(p) * math.Log(float64(p))
		}
		w[i] = -p / n
	}

	logp := layers.AddConst(probs, eps).Log()
	return layers.AddConst(layers.Dot(logp, w), float32(entropy)/n)
}

// Wasserstein returns the mean critic score.
func Wasserstein[B tensor.Backend](scores *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	return layers.Mean(scores)
}

// SoftmaxRows returns the row-wise softmax of a [rows, cols] slice.
func SoftmaxRows(logits []float32, rows, cols int) []float32 {
	if len(logits) != rows*cols {
		panic(fmt.Sprintf("loss: softmax of %d values as %dx%d", len(logits), rows, cols))
	}
	out := make([]float32, len(logits))
	for r := range rows {
		row := logits[r*cols : (r+1)*cols]
		maxV := row[0]
		for _, v := range row {
			maxV = max(maxV, v)
		}
		var sum float64
		for c, v := range row {
			e := math.Exp(float64(v - maxV))
			out[r*cols+c] = float32(e)
			sum += e
		}
		for c := range row {
			out[r*cols+c] = float32(float64(out[r*cols+c]) / sum)
		}
	}
	return out
}
