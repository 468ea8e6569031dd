package train

import (
	"errors"
	"log/slog"

	"github.com/born-ml/colorgan/internal/dataset"
	"github.com/born-ml/colorgan/internal/journal"
	"github.com/born-ml/colorgan/internal/storage"
)

type settings struct {
	logger   *slog.Logger
	journal  *journal.Journal
	data     *dataset.Folder
	output   *storage.Dir
	progress func(StepReport)
}

// Option configures a Trainer.
type Option func(s *settings) error

// WithLogger sets the logger. The default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(s *settings) error {
		if logger == nil {
			return errors.New("logger must not be nil")
		}
		s.logger = logger
		return nil
	}
}

// WithJournal records runs and step losses in j.
func WithJournal(j *journal.Journal) Option {
	return func(s *settings) error {
		s.journal = j
		return nil
	}
}

// WithDataset trains on an already opened dataset instead of the configured
// data directory.
func WithDataset(f *dataset.Folder) Option {
	return func(s *settings) error {
		if f == nil || f.Len() == 0 {
			return dataset.ErrEmpty
		}
		s.data = f
		return nil
	}
}

// WithOutput writes checkpoints and samples below dir instead of the
// configured output directory.
func WithOutput(dir *storage.Dir) Option {
	return func(s *settings) error {
		s.output = dir
		return nil
	}
}

// WithProgress calls fn after every step.
func WithProgress(fn func(StepReport)) Option {
	return func(s *settings) error {
		s.progress = fn
		return nil
	}
}
