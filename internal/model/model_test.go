package model

import (
	"testing"

	"github.com/born-ml/born/autodiff"
	"github.com/born-ml/born/backend/cpu"
	"github.com/born-ml/born/tensor"
	"github.com/nlpodyssey/gopickle/pytorch"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/colorgan/internal/layers"
)

type Backend = *autodiff.Backend[*cpu.Backend]

const tinySize = 32

func newTiny(t *testing.T) (*Set[Backend], Backend) {
	t.Helper()
	backend := autodiff.New(cpu.New())
	set, err := NewPreset("tiny", tinySize, backend)
	require.NoError(t, err)
	return set, backend
}

func TestShapes(t *testing.T) {
	set, backend := newTiny(t)
	x := tensor.Randn[float32](tensor.Shape{2, 3, tinySize, tinySize}, backend)

	features := set.Bottom.Forward(x)
	assert.Equal(t, tensor.Shape{2, 32, 4, 4}, features.Shape())

	logits := set.Top.Forward(features)
	assert.Equal(t, tensor.Shape{2, 10}, logits.Shape())

	ab, classes := set.Generator.Forward(features)
	assert.Equal(t, tensor.Shape{2, 2, tinySize, tinySize}, ab.Shape())
	assert.Equal(t, tensor.Shape{2, 10}, classes.Shape())

	for _, v := range layers.Values(ab) {
		assert.LessOrEqual(t, v, float32(1))
		assert.GreaterOrEqual(t, v, float32(-1))
	}
	probs := layers.Values(classes)
	for row := range 2 {
		sum := float32(0)
		for _, p := range probs[row*10 : (row+1)*10] {
			sum += p
		}
		assert.InDelta(t, 1.0, sum, 1e-4)
	}

	l := tensor.Rand[float32](tensor.Shape{2, 1, tinySize, tinySize}, backend)
	scores := set.Discriminator.Forward(l, ab)
	assert.Equal(t, tensor.Shape{2, 1}, scores.Shape())
}

func TestDiscriminatorScoresSamplesIndependently(t *testing.T) {
	set, backend := newTiny(t)
	l := tensor.Rand[float32](tensor.Shape{2, 1, tinySize, tinySize}, backend)
	ab := tensor.Rand[float32](tensor.Shape{2, 2, tinySize, tinySize}, backend)

	both := layers.Values(set.Discriminator.Forward(l, ab))

	pixels := tinySize * tinySize
	first := set.Discriminator.Forward(
		layers.Constant(layers.Values(l)[:pixels], tensor.Shape{1, 1, tinySize, tinySize}, backend),
		layers.Constant(layers.Values(ab)[:2*pixels], tensor.Shape{1, 2, tinySize, tinySize}, backend),
	)
	assert.InDelta(t, both[0], layers.Scalar(first), 1e-5)
}

func TestGeneratorLossReachesBottom(t *testing.T) {
	set, backend := newTiny(t)
	x := tensor.Randn[float32](tensor.Shape{1, 3, tinySize, tinySize}, backend)

	backend.Tape().StartRecording()
	ab, _ := set.Generator.Forward(set.Bottom.Forward(x))
	loss := layers.Mean(ab.Mul(ab))
	grads := autodiff.Backward(loss, backend)
	backend.Tape().StopRecording()
	backend.Tape().Clear()

	first := set.Bottom.Parameters()[0]
	g, ok := grads[first.Tensor().Raw()]
	require.True(t, ok)
	assert.Equal(t, first.Tensor().NumElements(), g.NumElements())
}

func TestNamedParametersAreUnique(t *testing.T) {
	set, _ := newTiny(t)
	for model, named := range set.Checkpointed() {
		seen := map[string]bool{}
		for _, np := range named {
			assert.False(t, seen[np.Name], "%s: duplicate %s", model, np.Name)
			seen[np.Name] = true
		}
	}

	bottom := set.Bottom.NamedParameters("")
	assert.Equal(t, "features.0.weight", bottom[0].Name)
	assert.Equal(t, "features.3.weight", bottom[2].Name)

	top := set.Top.NamedParameters("")
	assert.Equal(t, "features.12.weight", top[0].Name)
	assert.Equal(t, "classifier.3.bias", top[len(top)-1].Name)

	assert.Len(t, set.GeneratorParameters(), len(set.Bottom.Parameters())+len(set.Generator.Parameters()))
}

func TestVGG16Names(t *testing.T) {
	cfg, err := Preset("vgg16")
	require.NoError(t, err)
	require.NoError(t, cfg.Validate(224))
	assert.Equal(t, 512, cfg.Backbone.BottomChannels())

	stages := buildStages(cfg.Backbone.Features, cfg.Backbone.Split, len(cfg.Backbone.Features), 512, autodiff.New(cpu.New()))
	assert.Equal(t, "features.23", stages[0].name)
	assert.Equal(t, "features.24", stages[1].name)
	assert.Equal(t, "features.30", stages[len(stages)-1].name)
}

func TestPresetErrors(t *testing.T) {
	_, err := Preset("resnet")
	assert.ErrorIs(t, err, ErrUnknownPreset)
	assert.Equal(t, []string{"tiny", "vgg16"}, Presets())

	cfg, err := Preset("tiny")
	require.NoError(t, err)
	assert.Error(t, cfg.Validate(48))

	cfg.Backbone.Split = 5
	assert.ErrorContains(t, cfg.Validate(tinySize), "3 pools")
}

func TestTorchData(t *testing.T) {
	// A transposed 2x3 view of a 3x2 storage.
	tt := &pytorch.Tensor{
		Source: &pytorch.FloatStorage{Data: []float32{1, 2, 3, 4, 5, 6}},
		Size:   []int{2, 3},
		Stride: []int{1, 2},
	}
	data, err := torchData(tt)
	require.NoError(t, err)
	assert.Equal(t, []float32{1, 3, 5, 2, 4, 6}, data)
}

func TestCopyTorchWeights(t *testing.T) {
	set, _ := newTiny(t)
	named := set.Bottom.NamedParameters("")

	weights := map[string]torchWeight{}
	for _, np := range named {
		shape := []int(np.Param.Tensor().Shape())
		data := make([]float32, np.Param.Tensor().NumElements())
		for i := range data {
			data[i] = 0.5
		}
		weights[np.Name] = torchWeight{shape: shape, data: data}
	}

	n, err := copyTorchWeights(named, weights)
	require.NoError(t, err)
	assert.Equal(t, len(named), n)
	assert.Equal(t, float32(0.5), layers.Values(named[0].Param.Tensor())[0])

	weights["features.0.weight"] = torchWeight{shape: []int{1}, data: []float32{1}}
	_, err = copyTorchWeights(named, weights)
	assert.ErrorContains(t, err, "shape")

	delete(weights, "features.0.weight")
	_, err = copyTorchWeights(named, weights)
	assert.ErrorContains(t, err, "missing")
}
