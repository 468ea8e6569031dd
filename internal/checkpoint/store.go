package checkpoint

import (
	"context"
	"errors"
	"fmt"
	"io"
)

// Store is where snapshots live.
type Store interface {
	Create(ctx context.Context, name string) (io.WriteCloser, error)
	Open(ctx context.Context, name string) (io.ReadCloser, error)
	Exists(ctx context.Context, name string) (bool, error)
}

// Save writes f under f.Info.FileName() and returns that name.
func Save(ctx context.Context, s Store, f *File) (string, error) {
	name := f.Info.FileName()
	return name, SaveAs(ctx, s, name, f)
}

// SaveAs writes f under name.
func SaveAs(ctx context.Context, s Store, name string, f *File) error {
	w, err := s.Create(ctx, name)
	if err != nil {
		return fmt.Errorf("create %s: %w", name, err)
	}
	if err := Write(w, f); err != nil {
		_ = w.Close()
		return fmt.Errorf("write %s: %w", name, err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("close %s: %w", name, err)
	}
	return nil
}

// Load reads the snapshot of model at the given position. It returns
// ErrNotFound when the file does not exist.
func Load(ctx context.Context, s Store, model string, epoch, batch int) (*File, error) {
	return LoadAs(ctx, s, FileName(model, epoch, batch), model)
}

// LoadAs reads the file name, which must hold model. It returns ErrNotFound
// when the file does not exist.
func LoadAs(ctx context.Context, s Store, name, model string) (*File, error) {
	ok, err := s.Exists(ctx, name)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
	}

	r, err := s.Open(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", name, err)
	}
	defer r.Close()

	f, err := Read(r)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	if f.Info.Model != "" && f.Info.Model != model {
		return nil, fmt.Errorf("%s: %w: holds %q", name, ErrInvalidHeader, f.Info.Model)
	}
	f.Info.Model = model
	return f, nil
}

// IsNotFound reports whether err means a snapshot does not exist.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
