package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/born-ml/born/autodiff"
	"github.com/spf13/cobra"

	"github.com/born-ml/colorgan/internal/checkpoint"
	"github.com/born-ml/colorgan/internal/config"
	"github.com/born-ml/colorgan/internal/engine"
	"github.com/born-ml/colorgan/internal/model"
	"github.com/born-ml/colorgan/internal/storage"
	"github.com/born-ml/colorgan/internal/train"
)

func newColorizeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "colorize IMAGE...",
		Short: "Colorize images with a trained generator",
		Args:  cobra.MinimumNArgs(1),
		RunE:  ColorizeHandler,
	}
	cmd.Flags().Int("epoch", -1, "Snapshot epoch (default newest)")
	cmd.Flags().Int("batch", -1, "Snapshot batch (default newest)")
	cmd.Flags().String("out", "", "Directory for colorized images (default <output>/colorized)")
	cmd.Flags().String("output", "", "Output directory or storage URL holding the checkpoints")
	cmd.Flags().String("preset", "", "Model preset (default: recorded in the snapshot)")
	cmd.Flags().Int("image-size", 0, "Image side in pixels (default: recorded in the snapshot)")
	cmd.Flags().Bool("gpu", false, "Use the WebGPU backend when available")
	return cmd
}

// ColorizeHandler runs the colorize command.
func ColorizeHandler(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	applyFlags(cmd, &cfg)
	flags := cmd.Flags()

	epoch, _ := flags.GetInt("epoch")
	batch, _ := flags.GetInt("batch")
	out, _ := flags.GetString("out")
	if out == "" {
		out = storage.Join(cfg.OutputDir, "colorized")
	}

	task := &colorizeTask{
		cfg:      cfg,
		position: train.Position{Epoch: epoch, Batch: batch},
		paths:    args,
		out:      storage.New(out),
		w:        cmd.OutOrStdout(),
	}
	if flags.Changed("preset") {
		task.preset = cfg.Model.Preset
	}
	if flags.Changed("image-size") {
		task.imageSize = cfg.ImageSize
	}
	return engine.Run(cmd.Context(), cfg.UseGPU, task)
}

type colorizeTask struct {
	cfg      config.Config
	position train.Position
	paths    []string
	out      *storage.Dir
	w        io.Writer

	// preset and imageSize are set when given on the command line.
	preset    string
	imageSize int
}

func (t *colorizeTask) RunCPU(ctx context.Context, backend engine.CPU) error {
	return runColorize(ctx, backend, t)
}

func runColorize[B autodiff.BackwardCapable](ctx context.Context, backend B, t *colorizeTask) error {
	ckpts := storage.New(t.cfg.OutputDir).Sub(train.CheckpointDir)
	pos := t.position
	if pos.Epoch < 0 || pos.Batch < 0 {
		names, err := ckpts.List(ctx)
		if err != nil {
			return err
		}
		info, ok := checkpoint.Latest(names, model.NameGenerator)
		if !ok {
			return fmt.Errorf("%w: no generator snapshot in %s", checkpoint.ErrNotFound, ckpts.Base())
		}
		pos = train.Position{Epoch: info.Epoch, Batch: info.Batch}
	}

	preset, size, err := t.architecture(ctx, ckpts, pos)
	if err != nil {
		return err
	}
	set, err := model.NewPreset(preset, size, backend)
	if err != nil {
		return err
	}

	if err := train.LoadSnapshots(ctx, ckpts, set, pos.Epoch, pos.Batch, model.NameBottom, model.NameGenerator); err != nil {
		return err
	}
	names, err := train.Colorize(ctx, backend, set, t.paths, t.out, t.cfg.Workers)
	if err != nil {
		return err
	}
	for _, name := range names {
		fmt.Fprintln(t.w, t.out.Path(name))
	}
	return nil
}

// architecture returns the preset and image size to build for the snapshot
// at pos. The values recorded in the snapshot win over the config file;
// command line values must agree with them.
func (t *colorizeTask) architecture(ctx context.Context, store checkpoint.Store, pos train.Position) (string, int, error) {
	preset, size, err := train.SnapshotModel(ctx, store, pos.Epoch, pos.Batch)
	switch {
	case errors.Is(err, train.ErrMissingMetadata):
		slog.Warn("snapshot does not record its architecture, using the configuration", "preset", t.cfg.Model.Preset, "image_size", t.cfg.ImageSize)
		return t.cfg.Model.Preset, t.cfg.ImageSize, nil
	case err != nil:
		return "", 0, err
	}

	if t.preset != "" && t.preset != preset {
		return "", 0, fmt.Errorf("--preset %s does not match the snapshot, which was trained with %s", t.preset, preset)
	}
	if t.imageSize != 0 && t.imageSize != size {
		return "", 0, fmt.Errorf("--image-size %d does not match the snapshot, which was trained at %d", t.imageSize, size)
	}
	if preset != t.cfg.Model.Preset || size != t.cfg.ImageSize {
		slog.Info("using the snapshot architecture", "preset", preset, "image_size", size)
	}
	return preset, size, nil
}
