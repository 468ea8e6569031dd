package train

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/born-ml/born/tensor"

	"github.com/born-ml/colorgan/internal/checkpoint"
	"github.com/born-ml/colorgan/internal/model"
)

// Metadata keys recorded with every snapshot.
const (
	MetaPreset    = "preset"
	MetaImageSize = "image_size"
)

// ErrMissingMetadata is returned by SnapshotModel for snapshots without
// preset or image size.
var ErrMissingMetadata = errors.New("snapshot does not record its architecture")

// TopFile is the checkpoint file of the frozen backbone top. It is written
// once per run because the top never changes.
var TopFile = checkpoint.StaticFileName(model.NameTop)

func (t *Trainer[B]) metadata() map[string]string {
	return map[string]string{
		MetaPreset:    t.cfg.Model.Preset,
		MetaImageSize: strconv.Itoa(t.cfg.ImageSize),
	}
}

// Checkpoint saves every model at (epoch, batch).
func (t *Trainer[B]) Checkpoint(ctx context.Context, epoch, batch int) error {
	named := t.models.Checkpointed()
	for _, name := range model.CheckpointOrder {
		f := &checkpoint.File{
			Info:     checkpoint.Info{Model: name, Epoch: epoch, Batch: batch, RunID: t.runID},
			DType:    t.dtype,
			Metadata: t.metadata(),
			Tensors:  checkpoint.FromParameters(named[name]),
		}
		file, err := checkpoint.Save(ctx, t.checkpoints, f)
		if err != nil {
			return fmt.Errorf("checkpoint %s: %w", name, err)
		}
		t.logger.Debug("saved checkpoint", "file", t.checkpoints.Path(file))
	}
	t.logger.Info("checkpoint", "epoch", epoch, "batch", batch, "dir", t.checkpoints.Base())
	return nil
}

// saveTop writes the frozen top. A resumed run keeps the file it loaded.
// The top is stored as F32 so that the classification target is reproduced
// exactly.
func (t *Trainer[B]) saveTop(ctx context.Context) error {
	if t.resumed {
		ok, err := t.checkpoints.Exists(ctx, TopFile)
		if err != nil || ok {
			return err
		}
	}
	f := &checkpoint.File{
		Info:     checkpoint.Info{Model: model.NameTop, RunID: t.runID},
		DType:    checkpoint.F32,
		Metadata: t.metadata(),
		Tensors:  checkpoint.FromParameters(t.models.Top.NamedParameters("")),
	}
	if err := checkpoint.SaveAs(ctx, t.checkpoints, TopFile, f); err != nil {
		return fmt.Errorf("checkpoint %s: %w", model.NameTop, err)
	}
	t.logger.Debug("saved frozen top", "file", t.checkpoints.Path(TopFile))
	return nil
}

// LoadTop restores the frozen backbone top of set saved by an earlier run.
// A missing file yields checkpoint.ErrNotFound.
func LoadTop[B tensor.Backend](ctx context.Context, store checkpoint.Store, set *model.Set[B]) error {
	f, err := checkpoint.LoadAs(ctx, store, TopFile, model.NameTop)
	if err != nil {
		return err
	}
	return checkpoint.Apply(set.Top.NamedParameters(""), f)
}

// LoadSnapshots loads the named models of set from the snapshots taken at
// (epoch, batch). A missing file yields checkpoint.ErrNotFound.
func LoadSnapshots[B tensor.Backend](ctx context.Context, store checkpoint.Store, set *model.Set[B], epoch, batch int, names ...string) error {
	named := set.Checkpointed()
	for _, name := range names {
		params, ok := named[name]
		if !ok {
			return fmt.Errorf("unknown model %q", name)
		}
		f, err := checkpoint.Load(ctx, store, name, epoch, batch)
		if err != nil {
			return err
		}
		if err := checkpoint.Apply(params, f); err != nil {
			return err
		}
	}
	return nil
}

// SnapshotModel returns the preset and image size the generator snapshot at
// (epoch, batch) was trained with.
func SnapshotModel(ctx context.Context, store checkpoint.Store, epoch, batch int) (preset string, imageSize int, err error) {
	f, err := checkpoint.Load(ctx, store, model.NameGenerator, epoch, batch)
	if err != nil {
		return "", 0, err
	}
	preset = f.Metadata[MetaPreset]
	size, ok := f.Metadata[MetaImageSize]
	if preset == "" || !ok {
		return "", 0, fmt.Errorf("%s: %w", f.Info.FileName(), ErrMissingMetadata)
	}
	imageSize, err = strconv.Atoi(size)
	if err != nil || imageSize <= 0 {
		return "", 0, fmt.Errorf("%s: invalid image size %q", f.Info.FileName(), size)
	}
	return preset, imageSize, nil
}
