package layers

import (
	"testing"

	"github.com/born-ml/born/autodiff"
	"github.com/born-ml/born/backend/cpu"
	"github.com/born-ml/born/tensor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type Backend = *autodiff.Backend[*cpu.Backend]

func newBackend() Backend {
	return autodiff.New(cpu.New())
}

func TestUpsample2xValues(t *testing.T) {
	backend := newBackend()
	x := Constant([]float32{1, 2, 3, 4}, tensor.Shape{1, 1, 2, 2}, backend)

	y := Upsample2x(x)
	require.Equal(t, tensor.Shape{1, 1, 4, 4}, y.Shape())
	assert.Equal(t, []float32{
		1, 1, 2, 2,
		1, 1, 2, 2,
		3, 3, 4, 4,
		3, 3, 4, 4,
	}, Values(y))
}

func TestUpsample2xKeepsChannelsApart(t *testing.T) {
	backend := newBackend()
	x := Constant([]float32{1, 2, 10, 20, 100, 200, 1000, 2000}, tensor.Shape{2, 2, 1, 2}, backend)

	y := Upsample2x(x)
	require.Equal(t, tensor.Shape{2, 2, 2, 4}, y.Shape())
	got := Values(y)
	assert.Equal(t, []float32{1, 1, 2, 2, 1, 1, 2, 2}, got[:8])
	assert.Equal(t, []float32{1000, 1000, 2000, 2000, 1000, 1000, 2000, 2000}, got[24:])
}

func TestUpsample2xGradient(t *testing.T) {
	backend := newBackend()
	x := Constant([]float32{1, 2, 3, 4}, tensor.Shape{1, 1, 2, 2}, backend)

	backend.Tape().StartRecording()
	loss := Sum(Upsample2x(x))
	grads := autodiff.Backward(loss, backend)
	backend.Tape().StopRecording()

	assert.InDelta(t, 40.0, Scalar(loss), 1e-5)
	g := Grad(grads, x)
	require.Len(t, g, 4)
	for _, v := range g {
		assert.InDelta(t, 4.0, v, 1e-5)
	}
}

func TestReductions(t *testing.T) {
	backend := newBackend()
	x := Constant([]float32{1, 2, 3, 4, 5, 6}, tensor.Shape{2, 3}, backend)

	assert.InDelta(t, 21.0, Scalar(Sum(x)), 1e-5)
	assert.InDelta(t, 3.5, Scalar(Mean(x)), 1e-5)
	assert.InDeltaSlice(t, []float32{2, 5}, Values(RowMean(x)), 1e-5)
	assert.InDelta(t, 1.0-2.0+3.0, Scalar(Dot(x.Reshape(6, 1), []float32{1, -1, 1, 0, 0, 0})), 1e-5)
	assert.Equal(t, tensor.Shape{2, 3}, Flatten(x.Reshape(2, 3, 1)).Shape())
}

func TestMeanGradient(t *testing.T) {
	backend := newBackend()
	x := Constant([]float32{1, 2, 3, 4}, tensor.Shape{4, 1}, backend)

	backend.Tape().StartRecording()
	loss := Mean(x.Mul(x))
	grads := autodiff.Backward(loss, backend)
	backend.Tape().StopRecording()

	// d/dx mean(x^2) = 2x/n
	assert.InDeltaSlice(t, []float32{0.5, 1, 1.5, 2}, Grad(grads, x), 1e-5)
}

func TestLeakyReLU(t *testing.T) {
	backend := newBackend()
	x := Constant([]float32{-2, -0.5, 0, 0.5, 3}, tensor.Shape{5}, backend)

	y := LeakyReLU(x, 0.2)
	assert.InDeltaSlice(t, []float32{-0.4, -0.1, 0, 0.5, 3}, Values(y), 1e-6)
}

func TestScaleAndAddConst(t *testing.T) {
	backend := newBackend()
	x := Constant([]float32{1, -2}, tensor.Shape{1, 2}, backend)

	assert.InDeltaSlice(t, []float32{3, -6}, Values(Scale(x, 3)), 1e-6)
	assert.InDeltaSlice(t, []float32{1.5, -1.5}, Values(AddConst(x, 0.5)), 1e-6)
}

func TestConvSamePadding(t *testing.T) {
	backend := newBackend()
	x := tensor.Randn[float32](tensor.Shape{2, 3, 8, 8}, backend)

	same := NewConvReLU(3, 4, 3, 1, backend)
	assert.Equal(t, tensor.Shape{2, 4, 8, 8}, same.Forward(x).Shape())

	down := NewConv(3, 5, 3, 2, backend)
	assert.Equal(t, tensor.Shape{2, 5, 4, 4}, down.Forward(x).Shape())
	assert.Equal(t, 5, down.OutChannels())

	for _, v := range Values(same.Forward(x)) {
		assert.GreaterOrEqual(t, v, float32(0))
	}
}

func TestConvRejectsEvenKernel(t *testing.T) {
	assert.Panics(t, func() {
		NewConv(1, 1, 4, 1, newBackend())
	})
}

func TestNamedParameters(t *testing.T) {
	backend := newBackend()
	conv := NewConv(3, 4, 3, 1, backend)
	lin := NewLinear(4, 2, backend)

	names := func(named []NamedParameter[Backend]) []string {
		out := make([]string, len(named))
		for i, np := range named {
			out[i] = np.Name
		}
		return out
	}

	assert.Equal(t, []string{"enc.0.weight", "enc.0.bias"}, names(conv.NamedParameters("enc.0")))
	assert.Equal(t, []string{"head.weight", "head.bias"}, names(lin.NamedParameters("head")))
	assert.Equal(t, 3*4*9+4, Count(conv.Parameters()))
	assert.Len(t, Params(lin.NamedParameters("head")), 2)
	assert.Equal(t, "a.c", Join("a", "", "c"))
}

func TestDetachCopies(t *testing.T) {
	backend := newBackend()
	x := Constant([]float32{1, 2}, tensor.Shape{2}, backend)

	d := Detach(x)
	assert.Equal(t, Values(x), Values(d))
	assert.NotSame(t, x.Raw(), d.Raw())

	d.Raw().AsFloat32()[0] = 9
	assert.Equal(t, float32(1), Values(x)[0])
}
