package model

import (
	"errors"
	"fmt"
	"sort"
)

// Pool marks a 2x2 max-pool stage in BackboneConfig.Features.
const Pool = 0

// Checkpoint names of the three trained models.
const (
	NameBottom        = "vgg_bottom"
	NameGenerator     = "generator"
	NameDiscriminator = "discriminator"
)

// NameTop is the checkpoint name of the frozen backbone top.
const NameTop = "vgg_top"

// ErrUnknownPreset is returned for a preset name that is not registered.
var ErrUnknownPreset = errors.New("unknown model preset")

// BackboneConfig describes a VGG-style classifier.
type BackboneConfig struct {
	// Features lists conv output widths in order; Pool inserts a max-pool.
	Features []int
	// Split is the number of Features entries that form the trainable bottom.
	Split int
	// Classifier lists hidden layer sizes of the MLP head.
	Classifier []int
	NumClasses int
}

// GeneratorConfig sizes the colorization network.
type GeneratorConfig struct {
	Global        int
	GlobalHidden  int
	GlobalFeature int
	Mid           int
	// Decoder holds four widths: before the first upsample, two after it,
	// and one after the second.
	Decoder [4]int
}

// DiscriminatorConfig sizes the PatchGAN critic.
type DiscriminatorConfig struct {
	Widths  []int
	Strides []int
	Slope   float32
}

// Config bundles the three architectures.
type Config struct {
	Backbone      BackboneConfig
	Generator     GeneratorConfig
	Discriminator DiscriminatorConfig
}

var presets = map[string]Config{
	"vgg16": {
		Backbone: BackboneConfig{
			Features:   []int{64, 64, Pool, 128, 128, Pool, 256, 256, 256, Pool, 512, 512, 512, Pool, 512, 512, 512, Pool},
			Split:      13,
			Classifier: []int{4096, 4096},
			NumClasses: 1000,
		},
		Generator: GeneratorConfig{
			Global:        512,
			GlobalHidden:  1024,
			GlobalFeature: 256,
			Mid:           256,
			Decoder:       [4]int{128, 64, 64, 32},
		},
		Discriminator: DiscriminatorConfig{
			Widths:  []int{64, 128, 256, 512},
			Strides: []int{2, 2, 2, 1},
			Slope:   0.2,
		},
	},
	"tiny": {
		Backbone: BackboneConfig{
			Features:   []int{8, Pool, 16, Pool, 16, Pool, 32, Pool, 32, Pool},
			Split:      7,
			Classifier: []int{32},
			NumClasses: 10,
		},
		Generator: GeneratorConfig{
			Global:        16,
			GlobalHidden:  32,
			GlobalFeature: 16,
			Mid:           16,
			Decoder:       [4]int{16, 8, 8, 8},
		},
		Discriminator: DiscriminatorConfig{
			Widths:  []int{8, 16},
			Strides: []int{2, 2},
			Slope:   0.2,
		},
	},
}

// Preset returns a registered architecture by name.
func Preset(name string) (Config, error) {
	cfg, ok := presets[name]
	if !ok {
		return Config{}, fmt.Errorf("%w %q (known: %v)", ErrUnknownPreset, name, Presets())
	}
	return cfg, nil
}

// Presets returns the registered preset names in order.
func Presets() []string {
	names := make([]string, 0, len(presets))
	for name := range presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Validate checks that the architecture fits images of the given size.
func (c Config) Validate(imageSize int) error {
	bb := c.Backbone
	if bb.Split <= 0 || bb.Split > len(bb.Features) {
		return fmt.Errorf("backbone split %d out of range [1, %d]", bb.Split, len(bb.Features))
	}
	if bb.NumClasses <= 0 {
		return fmt.Errorf("backbone needs at least one class, got %d", bb.NumClasses)
	}
	if n := countPools(bb.Features[:bb.Split]); n != 3 {
		return fmt.Errorf("backbone bottom must downsample 8x (3 pools), has %d", n)
	}
	if bb.Features[0] == Pool {
		return errors.New("backbone must start with a convolution")
	}
	pools := countPools(bb.Features)
	if imageSize%(1<<pools) != 0 {
		return fmt.Errorf("image size %d is not divisible by %d", imageSize, 1<<pools)
	}
	if imageSize/8%4 != 0 {
		return fmt.Errorf("image size %d must be a multiple of 32", imageSize)
	}
	d := c.Discriminator
	if len(d.Widths) == 0 || len(d.Widths) != len(d.Strides) {
		return fmt.Errorf("discriminator widths %v and strides %v must be non-empty and match", d.Widths, d.Strides)
	}
	return nil
}

// BottomChannels returns the channel count of the bottom's output.
func (c BackboneConfig) BottomChannels() int {
	return lastWidth(c.Features[:c.Split], 3)
}

func countPools(features []int) int {
	n := 0
	for _, f := range features {
		if f == Pool {
			n++
		}
	}
	return n
}

func lastWidth(features []int, fallback int) int {
	for i := len(features) - 1; i >= 0; i-- {
		if features[i] != Pool {
			return features[i]
		}
	}
	return fallback
}
