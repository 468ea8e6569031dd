package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"

	"github.com/born-ml/born/autodiff"
	"github.com/spf13/cobra"

	"github.com/born-ml/colorgan/internal/checkpoint"
	"github.com/born-ml/colorgan/internal/config"
	"github.com/born-ml/colorgan/internal/engine"
	"github.com/born-ml/colorgan/internal/journal"
	"github.com/born-ml/colorgan/internal/model"
	"github.com/born-ml/colorgan/internal/storage"
	"github.com/born-ml/colorgan/internal/train"
)

const journalFile = "journal.db"

func newTrainCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "train [EPOCH [BATCH]]",
		Short: "Train the colorization networks",
		Long: `Train the colorization networks on the images in the data directory.

With EPOCH and BATCH, training resumes from the snapshots saved at that
position. With EPOCH alone, the newest snapshot of that epoch is used.`,
		Args: cobra.MaximumNArgs(2),
		RunE: TrainHandler,
	}
	cmd.Flags().String("data", "", "Directory of training images")
	cmd.Flags().String("output", "", "Output directory or storage URL")
	cmd.Flags().Int("epochs", 0, "Number of epochs")
	cmd.Flags().Int("batch-size", 0, "Images per batch")
	cmd.Flags().Int("image-size", 0, "Training image side in pixels")
	cmd.Flags().String("preset", "", "Model preset (vgg16, tiny)")
	cmd.Flags().String("vgg-weights", "", "torchvision vgg16 state dict for the backbone")
	cmd.Flags().String("checkpoint-dtype", "", "Checkpoint element type (F32, F16, BF16)")
	cmd.Flags().Bool("gpu", false, "Use the WebGPU backend when available")
	return cmd
}

// applyFlags overrides cfg with the flags set on the command line.
func applyFlags(cmd *cobra.Command, cfg *config.Config) {
	flags := cmd.Flags()
	str := func(name string, dst *string) {
		if flags.Changed(name) {
			*dst, _ = flags.GetString(name)
		}
	}
	num := func(name string, dst *int) {
		if flags.Changed(name) {
			*dst, _ = flags.GetInt(name)
		}
	}
	str("data", &cfg.DataDir)
	str("output", &cfg.OutputDir)
	str("preset", &cfg.Model.Preset)
	str("vgg-weights", &cfg.Model.VGGWeights)
	str("checkpoint-dtype", &cfg.CheckpointDType)
	num("epochs", &cfg.Epochs)
	num("batch-size", &cfg.BatchSize)
	num("image-size", &cfg.ImageSize)
	if flags.Changed("gpu") {
		cfg.UseGPU, _ = flags.GetBool("gpu")
	}
}

// TrainHandler runs the train command.
func TrainHandler(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	applyFlags(cmd, &cfg)
	if err := cfg.Validate(); err != nil {
		return err
	}

	task := &trainTask{cfg: cfg}
	task.resume, task.resumed, err = resolveResume(cmd.Context(), storage.New(cfg.OutputDir).Sub(train.CheckpointDir), args)
	if err != nil {
		return err
	}
	return engine.Run(cmd.Context(), cfg.UseGPU, task)
}

type trainTask struct {
	cfg     config.Config
	resume  train.Position
	resumed bool
}

func (t *trainTask) RunCPU(ctx context.Context, backend engine.CPU) error {
	return runTrain(ctx, backend, t)
}

func runTrain[B autodiff.BackwardCapable](ctx context.Context, backend B, t *trainTask) error {
	var opts []train.Option
	if dir, ok := storage.LocalPath(t.cfg.OutputDir); ok {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
		j, err := journal.Open(filepath.Join(dir, journalFile))
		if err != nil {
			return err
		}
		defer j.Close()
		opts = append(opts, train.WithJournal(j))
	} else {
		slog.Warn("output is not a local directory, run journal disabled", "output", t.cfg.OutputDir)
	}

	trainer, err := train.New(t.cfg, backend, opts...)
	if err != nil {
		return err
	}
	if t.resumed {
		if err := trainer.Resume(ctx, t.resume.Epoch, t.resume.Batch); err != nil {
			return err
		}
	}
	return trainer.Run(ctx)
}

// resolveResume turns the positional arguments into a resume position.
func resolveResume(ctx context.Context, dir *storage.Dir, args []string) (train.Position, bool, error) {
	if len(args) == 0 {
		return train.Position{}, false, nil
	}
	epoch, err := parseIndex("epoch", args[0])
	if err != nil {
		return train.Position{}, false, err
	}
	if len(args) > 1 {
		batch, err := parseIndex("batch", args[1])
		if err != nil {
			return train.Position{}, false, err
		}
		return train.Position{Epoch: epoch, Batch: batch}, true, nil
	}

	names, err := dir.List(ctx)
	if err != nil {
		return train.Position{}, false, err
	}
	batch := -1
	for _, name := range names {
		info, err := checkpoint.ParseFileName(name)
		if err == nil && info.Model == model.NameGenerator && info.Epoch == epoch {
			batch = max(batch, info.Batch)
		}
	}
	if batch < 0 {
		return train.Position{}, false, fmt.Errorf("%w: no snapshot for epoch %d in %s", checkpoint.ErrNotFound, epoch, dir.Base())
	}
	return train.Position{Epoch: epoch, Batch: batch}, true, nil
}

func parseIndex(what, s string) (int, error) {
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("invalid %s %q: must be a non-negative integer", what, s)
	}
	return n, nil
}
