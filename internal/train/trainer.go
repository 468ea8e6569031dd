// Package train runs the adversarial colorization training loop.
//
// Every batch takes two optimizer steps. The generator step updates the
// backbone bottom and the generator on
//
//	MSE(ab, true ab) + kld*KL(top(features) || classes) + w*(mean D(real) - mean D(ab))
//
// and the discriminator step updates the critic on the Wasserstein loss with
// gradient penalty, using the generator output as fixed input.
package train

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"

	"github.com/born-ml/born/autodiff"
	"github.com/born-ml/born/optim"
	"github.com/google/uuid"

	"github.com/born-ml/colorgan/internal/checkpoint"
	"github.com/born-ml/colorgan/internal/config"
	"github.com/born-ml/colorgan/internal/dataset"
	"github.com/born-ml/colorgan/internal/journal"
	"github.com/born-ml/colorgan/internal/loss"
	"github.com/born-ml/colorgan/internal/model"
	"github.com/born-ml/colorgan/internal/storage"
)

// Output subdirectories.
const (
	CheckpointDir = "checkpoints"
	SampleDir     = "samples"
)

// ErrTooFewImages is returned when the dataset cannot fill a single batch.
var ErrTooFewImages = errors.New("not enough images for one batch")

// Position is an epoch and a batch index within it.
type Position struct {
	Epoch int
	Batch int
}

// Trainer owns the networks, their optimizers and the training state.
type Trainer[B autodiff.BackwardCapable] struct {
	cfg     config.Config
	backend B
	models  *model.Set[B]

	genOpt  *optim.Adam[B]
	discOpt *optim.Adam[B]
	weights loss.Weights
	dtype   checkpoint.DType
	rng     *rand.Rand

	data        *dataset.Folder
	checkpoints *storage.Dir
	samples     *storage.Dir
	journal     *journal.Journal
	logger      *slog.Logger
	progress    func(StepReport)

	runID   string
	start   Position
	resumed bool
}

// New builds the networks of cfg on backend.
func New[B autodiff.BackwardCapable](cfg config.Config, backend B, opts ...Option) (*Trainer[B], error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	s := settings{logger: slog.Default()}
	for _, opt := range opts {
		if err := opt(&s); err != nil {
			return nil, err
		}
	}

	dtype, err := checkpoint.ParseDType(cfg.CheckpointDType)
	if err != nil {
		return nil, err
	}

	set, err := model.NewPreset(cfg.Model.Preset, cfg.ImageSize, backend)
	if err != nil {
		return nil, err
	}
	if cfg.Model.VGGWeights != "" {
		n, err := model.ImportTorchVGG(cfg.Model.VGGWeights, set.Bottom, set.Top)
		if err != nil {
			return nil, fmt.Errorf("import backbone weights: %w", err)
		}
		s.logger.Info("imported backbone weights", "path", cfg.Model.VGGWeights, "tensors", n)
	}

	if s.data == nil {
		s.data, err = dataset.Open(cfg.DataDir, cfg.ImageSize, cfg.Workers, uint64(cfg.Seed))
		if err != nil {
			return nil, err
		}
	}
	if s.output == nil {
		s.output = storage.New(cfg.OutputDir)
	}

	adam := optim.AdamConfig{
		LR:    cfg.Optimizer.LR,
		Betas: [2]float32{cfg.Optimizer.Beta1, cfg.Optimizer.Beta2},
		Eps:   cfg.Optimizer.Eps,
	}

	return &Trainer[B]{
		cfg:     cfg,
		backend: backend,
		models:  set,
		genOpt:  optim.NewAdam(set.GeneratorParameters(), adam, backend),
		discOpt: optim.NewAdam(set.Discriminator.Parameters(), adam, backend),
		weights: loss.Weights{
			KLD:         cfg.Loss.KLDWeight,
			Wasserstein: cfg.Loss.WassersteinWeight,
			GP:          cfg.Loss.GPWeight,
			Epsilon:     cfg.Loss.GPEpsilon,
		},
		dtype:       dtype,
		rng:         rand.New(rand.NewPCG(uint64(cfg.Seed), 0x9e3779b97f4a7c15)),
		data:        s.data,
		checkpoints: s.output.Sub(CheckpointDir),
		samples:     s.output.Sub(SampleDir),
		journal:     s.journal,
		logger:      s.logger,
		progress:    s.progress,
		runID:       uuid.NewString(),
	}, nil
}

// Models returns the networks being trained.
func (t *Trainer[B]) Models() *model.Set[B] {
	return t.models
}

// RunID identifies the current run in checkpoints and the journal.
func (t *Trainer[B]) RunID() string {
	return t.runID
}

// Start returns the position training resumes after, and whether Resume was
// called.
func (t *Trainer[B]) Start() (Position, bool) {
	return t.start, t.resumed
}

// Resume loads the snapshots taken at (epoch, batch). Run then continues
// with the batch after it.
func (t *Trainer[B]) Resume(ctx context.Context, epoch, batch int) error {
	if epoch < 0 || batch < 0 {
		return fmt.Errorf("invalid resume position epoch %d batch %d", epoch, batch)
	}
	if err := LoadSnapshots(ctx, t.checkpoints, t.models, epoch, batch, model.CheckpointOrder...); err != nil {
		return err
	}
	if err := LoadTop(ctx, t.checkpoints, t.models); err != nil {
		// Imported weights give the same top in every process.
		if !checkpoint.IsNotFound(err) || t.cfg.Model.VGGWeights == "" {
			return fmt.Errorf("frozen backbone top: %w", err)
		}
		t.logger.Warn("no saved backbone top, keeping imported weights", "path", t.cfg.Model.VGGWeights)
	}
	t.start = Position{Epoch: epoch, Batch: batch}
	t.resumed = true
	t.logger.Info("resumed", "epoch", epoch, "batch", batch)
	return nil
}

// Run trains until the configured number of epochs is done or ctx is
// canceled. On cancellation the latest state is saved before returning the
// context error.
func (t *Trainer[B]) Run(ctx context.Context) error {
	perEpoch := t.data.NumBatches(t.cfg.BatchSize)
	if perEpoch == 0 {
		return fmt.Errorf("%w: %d images, batch size %d", ErrTooFewImages, t.data.Len(), t.cfg.BatchSize)
	}

	if t.journal != nil {
		run, err := t.journal.StartRun(ctx, t.cfg, t.start.Epoch, t.start.Batch)
		if err != nil {
			return err
		}
		t.runID = run.ID
	}
	if err := t.saveTop(ctx); err != nil {
		return err
	}
	t.logger.Info("training",
		"run", t.runID,
		"images", t.data.Len(),
		"batches", perEpoch,
		"epochs", t.cfg.Epochs,
		"start_epoch", t.start.Epoch)

	var last *Position
	saved := true
	for epoch := t.start.Epoch; epoch < t.cfg.Epochs; epoch++ {
		for i, indices := range t.data.BatchIndices(epoch, t.cfg.BatchSize) {
			if t.resumed && epoch == t.start.Epoch && i <= t.start.Batch {
				continue
			}
			if err := ctx.Err(); err != nil {
				return t.stop(ctx, last, saved, err)
			}

			b, err := t.data.Load(ctx, indices)
			if err != nil {
				if ctx.Err() != nil {
					return t.stop(ctx, last, saved, ctx.Err())
				}
				return fmt.Errorf("epoch %d batch %d: %w", epoch, i, err)
			}

			rep, err := t.Step(b)
			if err != nil {
				return fmt.Errorf("epoch %d batch %d: %w", epoch, i, err)
			}
			rep.Epoch, rep.Batch = epoch, i
			last, saved = &Position{Epoch: epoch, Batch: i}, false
			t.record(ctx, rep)

			if i%t.cfg.SampleEvery == 0 {
				if err := t.WriteSample(ctx, epoch, i, b, rep.Pred); err != nil {
					return err
				}
			}
			if i%t.cfg.CheckpointEvery == t.cfg.CheckpointEvery-1 {
				if err := t.Checkpoint(ctx, epoch, i); err != nil {
					return err
				}
				saved = true
			}
			if t.progress != nil {
				t.progress(rep)
			}
		}
	}

	if last != nil && !saved {
		return t.Checkpoint(ctx, last.Epoch, last.Batch)
	}
	return nil
}

func (t *Trainer[B]) stop(ctx context.Context, last *Position, saved bool, cause error) error {
	t.logger.Warn("training interrupted", "error", cause)
	if last != nil && !saved {
		if err := t.Checkpoint(context.WithoutCancel(ctx), last.Epoch, last.Batch); err != nil {
			return errors.Join(cause, err)
		}
	}
	return cause
}

func (t *Trainer[B]) record(ctx context.Context, rep StepReport) {
	g, d := rep.Generator, rep.Discriminator
	t.logger.Info("step",
		"epoch", rep.Epoch,
		"batch", rep.Batch,
		"mse", g.MSE,
		"kld", g.KLD,
		"wasserstein", g.Wasser,
		"gen_loss", g.Total,
		"disc_real", d.Real,
		"disc_pred", d.Pred,
		"gp", d.GP,
		"disc_loss", d.Total,
		"duration", rep.Duration)

	if t.journal == nil {
		return
	}
	err := t.journal.Record(ctx, t.runID, journal.Step{
		Epoch:     rep.Epoch,
		Batch:     rep.Batch,
		GenMSE:    g.MSE,
		GenKLD:    g.KLD,
		GenWasser: g.Wasser,
		GenTotal:  g.Total,
		DiscReal:  d.Real,
		DiscPred:  d.Pred,
		DiscGP:    d.GP,
		DiscTotal: d.Total,
		Duration:  rep.Duration,
	})
	if err != nil {
		t.logger.Warn("journal write failed", "error", err)
	}
}
