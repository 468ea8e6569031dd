// Package model defines the colorization networks: a VGG-style backbone split
// into a trainable bottom and a frozen top, the generator and the PatchGAN
// discriminator.
package model

import (
	"fmt"

	"github.com/born-ml/born/nn"
	"github.com/born-ml/born/tensor"

	"github.com/born-ml/colorgan/internal/layers"
)

// Set holds every network used in training.
type Set[B tensor.Backend] struct {
	Config    Config
	ImageSize int

	Bottom        *Bottom[B]
	Top           *Top[B]
	Generator     *Generator[B]
	Discriminator *Discriminator[B]
}

// New builds all networks of cfg for square images of imageSize pixels.
func New[B tensor.Backend](cfg Config, imageSize int, backend B) (*Set[B], error) {
	if err := cfg.Validate(imageSize); err != nil {
		return nil, fmt.Errorf("model config: %w", err)
	}
	featureSide := imageSize / 8
	return &Set[B]{
		Config:        cfg,
		ImageSize:     imageSize,
		Bottom:        NewBottom(cfg.Backbone, backend),
		Top:           NewTop(cfg.Backbone, imageSize, backend),
		Generator:     NewGenerator(cfg.Generator, cfg.Backbone.BottomChannels(), featureSide, cfg.Backbone.NumClasses, backend),
		Discriminator: NewDiscriminator(cfg.Discriminator, backend),
	}, nil
}

// NewPreset is New with a registered preset.
func NewPreset[B tensor.Backend](preset string, imageSize int, backend B) (*Set[B], error) {
	cfg, err := Preset(preset)
	if err != nil {
		return nil, err
	}
	return New(cfg, imageSize, backend)
}

// GeneratorParameters returns what the generator optimizer updates: the
// backbone bottom followed by the generator.
func (s *Set[B]) GeneratorParameters() []*nn.Parameter[B] {
	return append(s.Bottom.Parameters(), s.Generator.Parameters()...)
}

// Checkpointed returns the named parameters of each saved model.
func (s *Set[B]) Checkpointed() map[string][]layers.NamedParameter[B] {
	return map[string][]layers.NamedParameter[B]{
		NameBottom:        s.Bottom.NamedParameters(""),
		NameGenerator:     s.Generator.NamedParameters(""),
		NameDiscriminator: s.Discriminator.NamedParameters(""),
	}
}

// CheckpointOrder lists the saved models in the order they are written.
var CheckpointOrder = []string{NameBottom, NameGenerator, NameDiscriminator}
