// Package dataset loads colour images from a directory tree as Lab batches.
//
// Every image is scaled to a square, converted to CIE Lab and split into the
// greyscale L channel (the generator input) and the ab chroma (the target).
package dataset

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"math/rand/v2"
	"path/filepath"
	"slices"
	"strings"

	"golang.org/x/sync/errgroup"
)

// ErrEmpty is returned when a directory holds no supported images.
var ErrEmpty = errors.New("no images found")

var extensions = map[string]bool{
	".jpg": true, ".jpeg": true, ".png": true, ".gif": true,
	".bmp": true, ".webp": true, ".tif": true, ".tiff": true,
}

// IsImage reports whether path has a supported image extension.
func IsImage(path string) bool {
	return extensions[strings.ToLower(filepath.Ext(path))]
}

// Folder is an image dataset rooted at a directory.
type Folder struct {
	Root    string
	Files   []string
	Size    int
	Workers int
	Seed    uint64
}

// Open lists the images under root. Files are sorted so that batch order is
// reproducible for a given seed.
func Open(root string, size, workers int, seed uint64) (*Folder, error) {
	var files []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && IsImage(path) {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", root, err)
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("%s: %w", root, ErrEmpty)
	}
	slices.Sort(files)

	return &Folder{Root: root, Files: files, Size: size, Workers: max(workers, 1), Seed: seed}, nil
}

// Len returns the number of images.
func (f *Folder) Len() int {
	return len(f.Files)
}

// NumBatches returns the number of full batches per epoch. The remainder is
// dropped.
func (f *Folder) NumBatches(batchSize int) int {
	return len(f.Files) / batchSize
}

// Order returns the shuffled sample order of an epoch.
func (f *Folder) Order(epoch int) []int {
	rng := rand.New(rand.NewPCG(f.Seed, uint64(epoch)))
	return rng.Perm(len(f.Files))
}

// BatchIndices splits the epoch order into full batches.
func (f *Folder) BatchIndices(epoch, batchSize int) [][]int {
	order := f.Order(epoch)
	n := f.NumBatches(batchSize)
	batches := make([][]int, n)
	for i := range n {
		batches[i] = order[i*batchSize : (i+1)*batchSize]
	}
	return batches
}

// Batch is a decoded batch in planar, channel-first layout.
type Batch struct {
	N    int
	Size int
	// L is [N, 1, S, S], AB is [N, 2, S, S].
	L  []float32
	AB []float32
	// Paths lists the source files in batch order.
	Paths []string
}

// Grey3 returns L repeated to three channels, [N, 3, S, S], the backbone
// input.
func (b *Batch) Grey3() []float32 {
	p := b.Size * b.Size
	out := make([]float32, 3*b.N*p)
	for i := range b.N {
		src := b.L[i*p : (i+1)*p]
		for c := range 3 {
			copy(out[(3*i+c)*p:(3*i+c+1)*p], src)
		}
	}
	return out
}

// Sample returns L and ab of one sample.
func (b *Batch) Sample(i int) (l, ab []float32) {
	p := b.Size * b.Size
	return b.L[i*p : (i+1)*p], b.AB[2*i*p : 2*(i+1)*p]
}

// Load decodes the images at the given indices concurrently.
func (f *Folder) Load(ctx context.Context, indices []int) (*Batch, error) {
	paths := make([]string, len(indices))
	for i, idx := range indices {
		if idx < 0 || idx >= len(f.Files) {
			return nil, fmt.Errorf("index %d out of range [0, %d)", idx, len(f.Files))
		}
		paths[i] = f.Files[idx]
	}
	return LoadPaths(ctx, paths, f.Size, f.Workers)
}

// LoadPaths decodes the given files into one batch.
func LoadPaths(ctx context.Context, paths []string, size, workers int) (*Batch, error) {
	p := size * size
	b := &Batch{
		N:     len(paths),
		Size:  size,
		L:     make([]float32, len(paths)*p),
		AB:    make([]float32, 2*len(paths)*p),
		Paths: paths,
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(max(workers, 1))
	for i, path := range paths {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			img, err := LoadFile(path, size)
			if err != nil {
				return err
			}
			l, ab := ToLab(img)
			copy(b.L[i*p:], l)
			copy(b.AB[2*i*p:], ab)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return b, nil
}
