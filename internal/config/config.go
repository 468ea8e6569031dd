// Package config holds the training configuration and its YAML form.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/born-ml/colorgan/internal/envconfig"
)

// Config is the complete training configuration.
type Config struct {
	DataDir   string `yaml:"data_dir"`
	OutputDir string `yaml:"output_dir"`

	ImageSize int   `yaml:"image_size"`
	BatchSize int   `yaml:"batch_size"`
	Epochs    int   `yaml:"epochs"`
	Workers   int   `yaml:"workers"`
	Seed      int64 `yaml:"seed"`
	UseGPU    bool  `yaml:"use_gpu"`

	// SampleEvery writes a sample image every N batches.
	SampleEvery int `yaml:"sample_every"`
	// CheckpointEvery saves the three models when batch%N == N-1.
	CheckpointEvery int `yaml:"checkpoint_every"`
	// CheckpointDType is F32, F16 or BF16.
	CheckpointDType string `yaml:"checkpoint_dtype"`

	Model     ModelConfig `yaml:"model"`
	Optimizer OptimConfig `yaml:"optimizer"`
	Loss      LossConfig  `yaml:"loss"`
}

// ModelConfig selects the architecture preset.
type ModelConfig struct {
	Preset string `yaml:"preset"`
	// VGGWeights is an optional torchvision vgg16 .pth file for the backbone.
	VGGWeights string `yaml:"vgg_weights"`
}

// OptimConfig configures both Adam optimizers.
type OptimConfig struct {
	LR    float32 `yaml:"lr"`
	Beta1 float32 `yaml:"beta1"`
	Beta2 float32 `yaml:"beta2"`
	Eps   float32 `yaml:"eps"`
}

// LossConfig weights the loss terms.
type LossConfig struct {
	KLDWeight         float32 `yaml:"kld_weight"`
	WassersteinWeight float32 `yaml:"wasserstein_weight"`
	GPWeight          float32 `yaml:"gp_weight"`
	// GPEpsilon is the step of the directional finite difference used for
	// the gradient penalty update.
	GPEpsilon float32 `yaml:"gp_epsilon"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		DataDir:         "data",
		OutputDir:       "output",
		ImageSize:       224,
		BatchSize:       8,
		Epochs:          10,
		Workers:         4,
		Seed:            1,
		SampleEvery:     50,
		CheckpointEvery: 500,
		CheckpointDType: "F32",
		Model: ModelConfig{
			Preset: "vgg16",
		},
		Optimizer: OptimConfig{
			LR:    0.00002,
			Beta1: 0.5,
			Beta2: 0.999,
			Eps:   1e-8,
		},
		Loss: LossConfig{
			KLDWeight:         0.003,
			WassersteinWeight: 1,
			GPWeight:          1,
			GPEpsilon:         0.01,
		},
	}
}

// Load reads a YAML file on top of Default. An empty path returns Default.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

// ApplyEnv overrides fields with any COLORGAN_* variables that are set.
func (c *Config) ApplyEnv() {
	if s := envconfig.DataDir(); s != "" {
		c.DataDir = s
	}
	if envconfig.Var("COLORGAN_OUTPUT") != "" {
		c.OutputDir = envconfig.OutputDir()
	}
	if envconfig.Var("COLORGAN_WORKERS") != "" {
		c.Workers = envconfig.Workers()
	}
	if envconfig.UseGPU() {
		c.UseGPU = true
	}
}

// Validate reports every invalid field at once.
func (c Config) Validate() error {
	var errs []error
	if c.DataDir == "" {
		errs = append(errs, errors.New("data_dir is required"))
	}
	if c.OutputDir == "" {
		errs = append(errs, errors.New("output_dir is required"))
	}
	if c.ImageSize <= 0 || c.ImageSize%8 != 0 {
		errs = append(errs, fmt.Errorf("image_size must be a positive multiple of 8, got %d", c.ImageSize))
	}
	if c.BatchSize <= 0 {
		errs = append(errs, fmt.Errorf("batch_size must be positive, got %d", c.BatchSize))
	}
	if c.Epochs <= 0 {
		errs = append(errs, fmt.Errorf("epochs must be positive, got %d", c.Epochs))
	}
	if c.Workers <= 0 {
		errs = append(errs, fmt.Errorf("workers must be positive, got %d", c.Workers))
	}
	if c.SampleEvery <= 0 {
		errs = append(errs, fmt.Errorf("sample_every must be positive, got %d", c.SampleEvery))
	}
	if c.CheckpointEvery <= 0 {
		errs = append(errs, fmt.Errorf("checkpoint_every must be positive, got %d", c.CheckpointEvery))
	}
	switch strings.ToUpper(c.CheckpointDType) {
	case "F32", "F16", "BF16":
	default:
		errs = append(errs, fmt.Errorf("checkpoint_dtype must be F32, F16 or BF16, got %q", c.CheckpointDType))
	}
	if c.Optimizer.LR <= 0 {
		errs = append(errs, fmt.Errorf("optimizer.lr must be positive, got %g", c.Optimizer.LR))
	}
	if c.Optimizer.Beta1 < 0 || c.Optimizer.Beta1 >= 1 || c.Optimizer.Beta2 < 0 || c.Optimizer.Beta2 >= 1 {
		errs = append(errs, fmt.Errorf("optimizer betas must be in [0, 1), got (%g, %g)", c.Optimizer.Beta1, c.Optimizer.Beta2))
	}
	if c.Loss.GPEpsilon <= 0 {
		errs = append(errs, fmt.Errorf("loss.gp_epsilon must be positive, got %g", c.Loss.GPEpsilon))
	}
	return errors.Join(errs...)
}

// Marshal returns the YAML form of c.
func (c Config) Marshal() ([]byte, error) {
	return yaml.Marshal(c)
}
