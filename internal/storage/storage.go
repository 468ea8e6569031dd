// Package storage is the output location for checkpoints and sample images.
//
// Paths may be local directories or any URL understood by viant/afs
// (file://, mem://, and s3:// through the afsc connector).
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"slices"
	"strings"

	"github.com/viant/afs"
	"github.com/viant/afs/option"
	"github.com/viant/afs/url"
)

// Dir is a directory in a local or remote file system.
type Dir struct {
	fs   afs.Service
	base string
}

// New returns the directory at base. It is created on first write.
func New(base string) *Dir {
	return &Dir{fs: afs.New(), base: base}
}

// Base returns the directory location.
func (d *Dir) Base() string {
	return d.base
}

// Sub returns a child directory.
func (d *Dir) Sub(name string) *Dir {
	return &Dir{fs: d.fs, base: Join(d.base, name)}
}

// Path returns the location of name inside the directory.
func (d *Dir) Path(name string) string {
	return Join(d.base, name)
}

// LocalPath returns the file system path of base when it is local.
func LocalPath(base string) (string, bool) {
	switch url.Scheme(base, "") {
	case "":
		return base, true
	case "file":
		return url.Path(base), true
	}
	return "", false
}

// Join joins path elements, keeping URL schemes intact.
func Join(base string, elem ...string) string {
	if url.Scheme(base, "") == "" {
		return filepath.Join(append([]string{base}, elem...)...)
	}
	return strings.TrimSuffix(base, "/") + "/" + path.Join(elem...)
}

// EnsureDir creates the directory when it does not exist.
func (d *Dir) EnsureDir(ctx context.Context) error {
	ok, err := d.fs.Exists(ctx, d.base)
	if err != nil {
		return fmt.Errorf("stat %s: %w", d.base, err)
	}
	if ok {
		return nil
	}
	if err := d.fs.Create(ctx, d.base, os.ModePerm, true); err != nil {
		return fmt.Errorf("create %s: %w", d.base, err)
	}
	return nil
}

// Create opens name for writing, replacing an existing file.
func (d *Dir) Create(ctx context.Context, name string) (io.WriteCloser, error) {
	if err := d.EnsureDir(ctx); err != nil {
		return nil, err
	}
	p := d.Path(name)
	exists, err := d.fs.Exists(ctx, p)
	if err != nil {
		return nil, err
	}
	if exists {
		if err := d.fs.Delete(ctx, p); err != nil {
			return nil, err
		}
	}
	return d.fs.NewWriter(ctx, p, 0o644, option.NewSkipChecksum(true))
}

// Open opens name for reading.
func (d *Dir) Open(ctx context.Context, name string) (io.ReadCloser, error) {
	return d.fs.OpenURL(ctx, d.Path(name))
}

// Exists reports whether name exists.
func (d *Dir) Exists(ctx context.Context, name string) (bool, error) {
	return d.fs.Exists(ctx, d.Path(name))
}

// WriteFile writes data to name.
func (d *Dir) WriteFile(ctx context.Context, name string, data []byte) (err error) {
	w, err := d.Create(ctx, name)
	if err != nil {
		return err
	}
	defer func() {
		err = errors.Join(err, w.Close())
	}()
	_, err = w.Write(data)
	return err
}

// ReadFile reads the whole of name.
func (d *Dir) ReadFile(ctx context.Context, name string) (data []byte, err error) {
	r, err := d.Open(ctx, name)
	if err != nil {
		return nil, err
	}
	defer func() {
		err = errors.Join(err, r.Close())
	}()
	return io.ReadAll(r)
}

// List returns the sorted names of the files in the directory. A missing
// directory is empty.
func (d *Dir) List(ctx context.Context) ([]string, error) {
	ok, err := d.fs.Exists(ctx, d.base)
	if err != nil || !ok {
		return nil, err
	}
	objects, err := d.fs.List(ctx, d.base)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", d.base, err)
	}
	var names []string
	for _, o := range objects {
		if !o.IsDir() {
			names = append(names, o.Name())
		}
	}
	slices.Sort(names)
	return names, nil
}
