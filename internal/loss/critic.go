package loss

import (
	"github.com/born-ml/born/autodiff"
	"github.com/born-ml/born/tensor"

	"github.com/born-ml/colorgan/internal/layers"
)

// DiscriminatorReport holds the scalar parts of a discriminator loss.
type DiscriminatorReport struct {
	// Real and Pred are the mean critic scores of real and predicted chroma.
	Real float32
	Pred float32
	// GP is the unweighted gradient penalty.
	GP float32
	// Grad is the weighted penalty term.
	Grad  float32
	Total float32
}

// Discriminator computes the critic gradients for one batch.
//
// The engine cannot differentiate through a gradient, so the penalty term is
// replaced by its directional finite difference (see Penalty.Coefficients).
// Real samples, fake samples and both perturbed interpolates are scored in a
// single [4N] pass and weighted so that one backward pass yields
//
//	d/dθ (-mean D(real) + mean D(fake) + gp*GP)
//
// The fake chroma is a plain slice, so no gradient reaches the generator.
func Discriminator[B autodiff.BackwardCapable](
	backend B,
	critic Critic[B],
	b Batch,
	alpha []float32,
	w Weights,
) (map[*tensor.RawTensor]*tensor.RawTensor, DiscriminatorReport, error) {
	pen, err := GradientPenalty(backend, critic, b, alpha)
	if err != nil {
		return nil, DiscriminatorReport{}, err
	}

	lPlus, abPlus := pen.Perturb(b, 1, w.Epsilon)
	lMinus, abMinus := pen.Perturb(b, -1, w.Epsilon)

	n := b.N
	l := concat(b.L, b.L, lPlus, lMinus)
	ab := concat(b.RealAB, b.FakeAB, abPlus, abMinus)

	weights := make([]float32, 4*n)
	coeffs := pen.Coefficients(w.Epsilon)
	for i := range n {
		weights[i] = -1 / float32(n)
		weights[n+i] = 1 / float32(n)
		weights[2*n+i] = w.GP * coeffs[i]
		weights[3*n+i] = -w.GP * coeffs[i]
	}

	tape := backend.GetTape()
	tape.Clear()
	tape.StartRecording()
	scores := critic.Forward(
		layers.Constant(l, b.lShape(4*n), backend),
		layers.Constant(ab, b.abShape(4*n), backend),
	)
	grads := autodiff.Backward(layers.Dot(scores, weights), backend)
	tape.StopRecording()
	tape.Clear()

	s := layers.Values(scores)
	rep := DiscriminatorReport{
		Real: mean(s[:n]),
		Pred: mean(s[n : 2*n]),
		GP:   pen.Value,
		Grad: w.GP * pen.Value,
	}
	rep.Total = -rep.Real + rep.Pred + rep.Grad
	return grads, rep, nil
}

func concat(parts ...[]float32) []float32 {
	n := 0
	for _, p := range parts {
		n += len(p)
	}
	out := make([]float32, 0, n)
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}

func mean(v []float32) float32 {
	var s float64
	for _, x := range v {
		s += float64(x)
	}
	return float32(s / float64(len(v)))
}
