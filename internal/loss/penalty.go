package loss

import (
	"fmt"
	"math"
	"math/rand/v2"

	"github.com/born-ml/born/autodiff"
	"github.com/born-ml/born/tensor"

	"github.com/born-ml/colorgan/internal/layers"
)

// Batch is one discriminator batch as flat row-major slices.
type Batch struct {
	N, Height, Width int
	// L is [N, 1, H, W]; RealAB and FakeAB are [N, 2, H, W].
	L, RealAB, FakeAB []float32
}

func (b Batch) pixels() int { return b.Height * b.Width }

func (b Batch) validate() error {
	p := b.pixels()
	if b.N <= 0 || p <= 0 {
		return fmt.Errorf("loss: empty batch %dx%dx%d", b.N, b.Height, b.Width)
	}
	if len(b.L) != b.N*p || len(b.RealAB) != 2*b.N*p || len(b.FakeAB) != 2*b.N*p {
		return fmt.Errorf("loss: batch sizes L=%d real=%d fake=%d do not match %dx%dx%d",
			len(b.L), len(b.RealAB), len(b.FakeAB), b.N, b.Height, b.Width)
	}
	return nil
}

func (b Batch) lShape(n int) tensor.Shape  { return tensor.Shape{n, 1, b.Height, b.Width} }
func (b Batch) abShape(n int) tensor.Shape { return tensor.Shape{n, 2, b.Height, b.Width} }

// RandomAlpha draws one interpolation weight per sample from [0, 1).
func RandomAlpha(rng *rand.Rand, n int) []float32 {
	alpha := make([]float32, n)
	for i := range alpha {
		alpha[i] = rng.Float32()
	}
	return alpha
}

// Interpolate returns alpha_i*real + (1-alpha_i)*fake for every sample i.
func Interpolate(real, fake, alpha []float32) []float32 {
	if len(real) != len(fake) || len(alpha) == 0 || len(real)%len(alpha) != 0 {
		panic(fmt.Sprintf("loss: interpolate %d and %d values with %d weights", len(real), len(fake), len(alpha)))
	}
	per := len(real) / len(alpha)
	out := make([]float32, len(real))
	for i := range out {
		a := alpha[i/per]
		out[i] = a*real[i] + (1-a)*fake[i]
	}
	return out
}

// Penalty is the gradient penalty evaluated at the interpolates.
type Penalty struct {
	// Value is mean_i (||g_i|| - 1)^2.
	Value float32
	// Norms holds ||g_i|| per sample.
	Norms []float32
	// Interp is the interpolated ab batch the gradients were taken at.
	Interp []float32
	// DirL and DirAB hold g_i / ||g_i|| split into the L and ab inputs.
	DirL, DirAB []float32
}

// GradientPenalty evaluates the critic's input gradients at random
// interpolates of real and fake chroma and returns the penalty.
//
// The L channel is shared by real and fake samples, so it is its own
// interpolate. The tape is cleared before and after.
func GradientPenalty[B autodiff.BackwardCapable](backend B, critic Critic[B], b Batch, alpha []float32) (Penalty, error) {
	if err := b.validate(); err != nil {
		return Penalty{}, err
	}
	if len(alpha) != b.N {
		return Penalty{}, fmt.Errorf("loss: %d interpolation weights for %d samples", len(alpha), b.N)
	}
	interp := Interpolate(b.RealAB, b.FakeAB, alpha)

	tape := backend.GetTape()
	tape.Clear()
	tape.StartRecording()
	l := layers.Constant(append([]float32(nil), b.L...), b.lShape(b.N), backend)
	ab := layers.Constant(append([]float32(nil), interp...), b.abShape(b.N), backend)
	grads := autodiff.Backward(layers.Sum(critic.Forward(l, ab)), backend)
	tape.StopRecording()
	tape.Clear()

	gl := layers.Grad(grads, l)
	gab := layers.Grad(grads, ab)
	if gab == nil {
		return Penalty{}, fmt.Errorf("loss: critic output does not depend on its ab input")
	}
	if gl == nil {
		gl = make([]float32, len(b.L))
	}
	return newPenalty(b, interp, gl, gab), nil
}

func newPenalty(b Batch, interp, gl, gab []float32) Penalty {
	p := b.pixels()
	pen := Penalty{
		Norms:  make([]float32, b.N),
		Interp: interp,
		DirL:   make([]float32, len(gl)),
		DirAB:  make([]float32, len(gab)),
	}
	var total float64
	for i := range b.N {
		sl := gl[i*p : (i+1)*p]
		sab := gab[2*i*p : 2*(i+1)*p]

		var sq float64
		for _, v := range sl {
			sq += float64(v) * float64(v)
		}
		for _, v := range sab {
			sq += float64(v) * float64(v)
		}
		norm := math.Sqrt(sq)
		pen.Norms[i] = float32(norm)
		total += (norm - 1) * (norm - 1)

		if norm == 0 {
			continue
		}
		for j, v := range sl {
			pen.DirL[i*p+j] = float32(float64(v) / norm)
		}
		for j, v := range sab {
			pen.DirAB[2*i*p+j] = float32(float64(v) / norm)
		}
	}
	pen.Value = float32(total / float64(b.N))
	return pen
}

// Perturb returns the interpolates moved by sign*eps along the unit gradient.
func (p Penalty) Perturb(b Batch, sign, eps float32) (l, ab []float32) {
	l = make([]float32, len(b.L))
	for i, v := range b.L {
		l[i] = v + sign*eps*p.DirL[i]
	}
	ab = make([]float32, len(p.Interp))
	for i, v := range p.Interp {
		ab[i] = v + sign*eps*p.DirAB[i]
	}
	return l, ab
}

// Coefficients returns c_i = (||g_i|| - 1) / (N * eps).
//
// With these, sum_i c_i * (D(x_i + eps*u_i) - D(x_i - eps*u_i)) has, to first
// order in eps, the same parameter gradient as the penalty itself.
func (p Penalty) Coefficients(eps float32) []float32 {
	n := float32(len(p.Norms))
	c := make([]float32, len(p.Norms))
	for i, norm := range p.Norms {
		c[i] = (norm - 1) / (n * eps)
	}
	return c
}
