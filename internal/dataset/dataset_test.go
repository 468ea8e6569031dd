package dataset

import (
	"context"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func solid(c color.Color, w, h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := range h {
		for x := range w {
			img.Set(x, y, c)
		}
	}
	return img
}

func writePNG(t *testing.T, path string, img image.Image) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	require.NoError(t, EncodePNG(f, img))
}

func TestToLab(t *testing.T) {
	l, ab := ToLab(solid(color.White, 2, 2))
	for _, v := range l {
		assert.InDelta(t, 1.0, v, 1e-3)
	}
	for _, v := range ab {
		assert.InDelta(t, 0.0, v, 1e-2)
	}

	l, ab = ToLab(solid(color.RGBA{R: 255, A: 255}, 1, 1))
	assert.InDelta(t, 0.53, l[0], 0.01)
	assert.Greater(t, ab[0], float32(0.5))
	assert.Greater(t, ab[1], float32(0.4))
}

func TestLabRoundTrip(t *testing.T) {
	src := solid(color.RGBA{R: 40, G: 120, B: 200, A: 255}, 3, 2)
	l, ab := ToLab(src)
	back := ToRGB(l, ab, 3, 2)

	got := back.RGBAAt(2, 1)
	assert.InDelta(t, 40, int(got.R), 2)
	assert.InDelta(t, 120, int(got.G), 2)
	assert.InDelta(t, 200, int(got.B), 2)
	assert.Equal(t, uint8(255), got.A)

	grey := Grey(l, 3, 2).RGBAAt(0, 0)
	assert.Equal(t, grey.R, grey.G)
	assert.Equal(t, grey.G, grey.B)
}

func TestResizeAndStrip(t *testing.T) {
	img := Resize(solid(color.Black, 10, 6), 4)
	assert.Equal(t, image.Rect(0, 0, 4, 4), img.Bounds())

	strip := Strip(img, img, solid(color.White, 2, 5))
	assert.Equal(t, image.Rect(0, 0, 10, 5), strip.Bounds())
	assert.Equal(t, color.RGBA{R: 255, G: 255, B: 255, A: 255}, strip.RGBAAt(9, 0))
}

func TestOpenAndLoad(t *testing.T) {
	root := t.TempDir()
	writePNG(t, filepath.Join(root, "b.png"), solid(color.RGBA{G: 255, A: 255}, 8, 8))
	writePNG(t, filepath.Join(root, "nested", "a.png"), solid(color.White, 16, 12))
	writePNG(t, filepath.Join(root, "c.png"), solid(color.Black, 4, 4))
	require.NoError(t, os.WriteFile(filepath.Join(root, "notes.txt"), []byte("skip"), 0o644))

	f, err := Open(root, 4, 2, 7)
	require.NoError(t, err)
	require.Equal(t, 3, f.Len())
	assert.Equal(t, filepath.Join(root, "b.png"), f.Files[0])
	assert.Equal(t, 1, f.NumBatches(2))

	b, err := f.Load(context.Background(), []int{0, 1})
	require.NoError(t, err)
	assert.Equal(t, 2, b.N)
	assert.Len(t, b.L, 2*16)
	assert.Len(t, b.AB, 2*2*16)

	l0, ab0 := b.Sample(0)
	assert.Len(t, l0, 16)
	assert.Less(t, ab0[0], float32(-0.5)) // green has negative a
	l1, _ := b.Sample(1)
	assert.InDelta(t, 0.0, l1[0], 1e-3)

	grey := b.Grey3()
	require.Len(t, grey, 3*2*16)
	assert.Equal(t, grey[0], grey[16])
	assert.Equal(t, grey[16], grey[32])
	assert.Equal(t, l1[3], grey[3*16+2*16+3])

	_, err = f.Load(context.Background(), []int{5})
	assert.Error(t, err)
}

func TestOpenEmpty(t *testing.T) {
	_, err := Open(t.TempDir(), 4, 1, 1)
	assert.ErrorIs(t, err, ErrEmpty)
}

func TestLoadCorruptFile(t *testing.T) {
	root := t.TempDir()
	path := filepath.Join(root, "broken.png")
	require.NoError(t, os.WriteFile(path, []byte("not a png"), 0o644))

	_, err := LoadPaths(context.Background(), []string{path}, 4, 1)
	assert.ErrorContains(t, err, "broken.png")
}

func TestBatchIndicesDeterministic(t *testing.T) {
	f := &Folder{Files: make([]string, 10), Seed: 3}

	a := f.BatchIndices(1, 3)
	assert.Len(t, a, 3)
	assert.Equal(t, a, f.BatchIndices(1, 3))
	assert.NotEqual(t, f.Order(1), f.Order(2))

	seen := map[int]bool{}
	for _, batch := range a {
		assert.Len(t, batch, 3)
		for _, i := range batch {
			assert.False(t, seen[i])
			seen[i] = true
		}
	}
}

func TestIsImage(t *testing.T) {
	assert.True(t, IsImage("a/B.JPG"))
	assert.True(t, IsImage("x.webp"))
	assert.False(t, IsImage("x.txt"))
}
