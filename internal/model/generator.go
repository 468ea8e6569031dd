package model

import (
	"github.com/born-ml/born/nn"
	"github.com/born-ml/born/tensor"

	"github.com/born-ml/colorgan/internal/layers"
)

// Generator predicts ab chroma and a class distribution from backbone features.
//
// Input: [N, C, h, w] Bottom features (h = H/8).
// Outputs: ab [N, 2, H, W] in [-1, 1] and classes [N, K] (softmax).
//
// A global branch summarises the whole image into a vector that is broadcast
// over the mid-level feature map before decoding.
type Generator[B tensor.Backend] struct {
	global     []*layers.Conv[B]
	globalFC   *layers.Linear[B]
	classHead  *layers.Linear[B]
	globalOut  *layers.Linear[B]
	mid        []*layers.Conv[B]
	fuse       *layers.Conv[B]
	fuseGlobal *layers.Linear[B]
	decoder    []*layers.Conv[B]
	output     *layers.Conv[B]
}

// NewGenerator builds a generator for Bottom outputs of featureSide x featureSide.
func NewGenerator[B tensor.Backend](cfg GeneratorConfig, inChannels, featureSide, numClasses int, backend B) *Generator[B] {
	g := cfg.Global
	side := (featureSide + 1) / 2
	side = (side + 1) / 2

	return &Generator[B]{
		global: []*layers.Conv[B]{
			layers.NewConvReLU(inChannels, g, 3, 2, backend),
			layers.NewConvReLU(g, g, 3, 1, backend),
			layers.NewConvReLU(g, g, 3, 2, backend),
			layers.NewConvReLU(g, g, 3, 1, backend),
		},
		globalFC:   layers.NewLinear(g*side*side, cfg.GlobalHidden, backend),
		classHead:  layers.NewLinear(cfg.GlobalHidden, numClasses, backend),
		globalOut:  layers.NewLinear(cfg.GlobalHidden, cfg.GlobalFeature, backend),
		fuseGlobal: layers.NewLinear(cfg.GlobalFeature, cfg.Mid, backend),
		mid: []*layers.Conv[B]{
			layers.NewConvReLU(inChannels, inChannels, 3, 1, backend),
			layers.NewConvReLU(inChannels, cfg.Mid, 3, 1, backend),
		},
		fuse: layers.NewConv(cfg.Mid, cfg.Mid, 1, 1, backend),
		decoder: []*layers.Conv[B]{
			layers.NewConvReLU(cfg.Mid, cfg.Decoder[0], 3, 1, backend),
			layers.NewConvReLU(cfg.Decoder[0], cfg.Decoder[1], 3, 1, backend),
			layers.NewConvReLU(cfg.Decoder[1], cfg.Decoder[2], 3, 1, backend),
			layers.NewConvReLU(cfg.Decoder[2], cfg.Decoder[3], 3, 1, backend),
		},
		output:     layers.NewConv(cfg.Decoder[3], 2, 3, 1, backend),
	}
}

// Forward returns (ab, classes).
func (g *Generator[B]) Forward(features *tensor.Tensor[float32, B]) (ab, classes *tensor.Tensor[float32, B]) {
	x := features
	for _, c := range g.global {
		x = c.Forward(x)
	}
	hidden := layers.ReLU(g.globalFC.Forward(layers.Flatten(x)))
	classes = g.classHead.Forward(hidden).Softmax(1)
	globalVec := layers.ReLU(g.globalOut.Forward(hidden))

	m := features
	for _, c := range g.mid {
		m = c.Forward(m)
	}
	y := layers.ReLU(layers.AddChannels(g.fuse.Forward(m), g.fuseGlobal.Forward(globalVec)))

	y = g.decoder[0].Forward(y)
	y = layers.Upsample2x(y)
	y = g.decoder[1].Forward(y)
	y = g.decoder[2].Forward(y)
	y = layers.Upsample2x(y)
	y = g.decoder[3].Forward(y)
	y = layers.Tanh(g.output.Forward(y))
	ab = layers.Upsample2x(y)

	return ab, classes
}

// Parameters returns all trainable parameters.
func (g *Generator[B]) Parameters() []*nn.Parameter[B] {
	return layers.Params(g.NamedParameters(""))
}

// NamedParameters returns parameters under stable names.
func (g *Generator[B]) NamedParameters(prefix string) []layers.NamedParameter[B] {
	var named []layers.NamedParameter[B]
	add := func(name string, m layers.Named[B]) {
		named = append(named, m.NamedParameters(layers.Join(prefix, name))...)
	}
	for i, c := range g.global {
		add(indexed("global", i), c)
	}
	add("global_fc", g.globalFC)
	add("class_head", g.classHead)
	add("global_out", g.globalOut)
	for i, c := range g.mid {
		add(indexed("mid", i), c)
	}
	add("fuse", g.fuse)
	add("fuse_global", g.fuseGlobal)
	for i, c := range g.decoder {
		add(indexed("decoder", i), c)
	}
	add("output", g.output)
	return named
}
