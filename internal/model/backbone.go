package model

import (
	"fmt"
	"strconv"

	"github.com/born-ml/born/nn"
	"github.com/born-ml/born/tensor"

	"github.com/born-ml/colorgan/internal/layers"
)

// stage is one entry of a VGG feature stack.
type stage[B tensor.Backend] struct {
	name   string // torchvision index, e.g. "features.5"
	conv   *layers.Conv[B]
	pool   *nn.MaxPool2D[B]
	outDim int
}

func (s stage[B]) forward(x *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	if s.pool != nil {
		return s.pool.Forward(x)
	}
	return s.conv.Forward(x)
}

// buildStages creates conv/pool stages for features[from:to]. Stage names
// follow the torchvision layout, where each conv is followed by a ReLU
// module and therefore takes two indices.
func buildStages[B tensor.Backend](features []int, from, to, inChannels int, backend B) []stage[B] {
	index := 0
	for _, f := range features[:from] {
		if f == Pool {
			index++
		} else {
			index += 2
		}
	}

	stages := make([]stage[B], 0, to-from)
	in := inChannels
	for _, f := range features[from:to] {
		s := stage[B]{name: "features." + strconv.Itoa(index), outDim: in}
		if f == Pool {
			s.pool = nn.NewMaxPool2D(2, 2, backend)
			index++
		} else {
			s.conv = layers.NewConvReLU(in, f, 3, 1, backend)
			s.outDim = f
			in = f
			index += 2
		}
		stages = append(stages, s)
	}
	return stages
}

// Bottom is the trainable lower part of the backbone.
//
// Input: [N, 3, H, W] greyscale repeated to three channels.
// Output: [N, C, H/8, W/8] feature maps shared by the generator and Top.
type Bottom[B tensor.Backend] struct {
	stages []stage[B]
}

// NewBottom builds the first cfg.Split feature stages.
func NewBottom[B tensor.Backend](cfg BackboneConfig, backend B) *Bottom[B] {
	return &Bottom[B]{stages: buildStages(cfg.Features, 0, cfg.Split, 3, backend)}
}

// Forward runs the feature stages.
func (b *Bottom[B]) Forward(x *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	for _, s := range b.stages {
		x = s.forward(x)
	}
	return x
}

// Parameters returns all conv weights and biases.
func (b *Bottom[B]) Parameters() []*nn.Parameter[B] {
	return layers.Params(b.NamedParameters(""))
}

// NamedParameters returns parameters under torchvision names.
func (b *Bottom[B]) NamedParameters(prefix string) []layers.NamedParameter[B] {
	return namedStages(prefix, b.stages)
}

// Top is the frozen upper part of the backbone ending in class logits.
//
// Input: the Bottom output. Output: [N, NumClasses] logits.
type Top[B tensor.Backend] struct {
	stages     []stage[B]
	classifier []*layers.Linear[B]
}

// NewTop builds the remaining stages and the classifier for imageSize inputs.
func NewTop[B tensor.Backend](cfg BackboneConfig, imageSize int, backend B) *Top[B] {
	stages := buildStages(cfg.Features, cfg.Split, len(cfg.Features), cfg.BottomChannels(), backend)

	channels := lastWidth(cfg.Features, 3)
	side := imageSize >> countPools(cfg.Features)
	in := channels * side * side

	sizes := append(append([]int(nil), cfg.Classifier...), cfg.NumClasses)
	classifier := make([]*layers.Linear[B], len(sizes))
	for i, out := range sizes {
		classifier[i] = layers.NewLinear(in, out, backend)
		in = out
	}
	return &Top[B]{stages: stages, classifier: classifier}
}

// Forward returns class logits.
func (t *Top[B]) Forward(x *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	for _, s := range t.stages {
		x = s.forward(x)
	}
	x = layers.Flatten(x)
	for i, l := range t.classifier {
		x = l.Forward(x)
		if i < len(t.classifier)-1 {
			x = layers.ReLU(x)
		}
	}
	return x
}

// Parameters returns all weights.
func (t *Top[B]) Parameters() []*nn.Parameter[B] {
	return layers.Params(t.NamedParameters(""))
}

// NamedParameters returns parameters under torchvision names. The classifier
// layers sit at indices 0, 3 and 6 there (Linear, ReLU, Dropout, ...).
func (t *Top[B]) NamedParameters(prefix string) []layers.NamedParameter[B] {
	named := namedStages(prefix, t.stages)
	for i, l := range t.classifier {
		named = append(named, l.NamedParameters(layers.Join(prefix, fmt.Sprintf("classifier.%d", 3*i)))...)
	}
	return named
}

func namedStages[B tensor.Backend](prefix string, stages []stage[B]) []layers.NamedParameter[B] {
	var named []layers.NamedParameter[B]
	for _, s := range stages {
		if s.conv != nil {
			named = append(named, s.conv.NamedParameters(layers.Join(prefix, s.name))...)
		}
	}
	return named
}
