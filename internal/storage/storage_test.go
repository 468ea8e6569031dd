package storage

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalDir(t *testing.T) {
	ctx := context.Background()
	root := filepath.Join(t.TempDir(), "out")
	d := New(root).Sub("checkpoints")

	names, err := d.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, names)

	require.NoError(t, d.WriteFile(ctx, "b.bin", []byte("second")))
	require.NoError(t, d.WriteFile(ctx, "a.bin", []byte("first")))
	require.NoError(t, d.WriteFile(ctx, "a.bin", []byte("again")))

	data, err := os.ReadFile(filepath.Join(root, "checkpoints", "a.bin"))
	require.NoError(t, err)
	assert.Equal(t, "again", string(data))

	names, err = d.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"a.bin", "b.bin"}, names)

	ok, err := d.Exists(ctx, "b.bin")
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = d.Exists(ctx, "c.bin")
	require.NoError(t, err)
	assert.False(t, ok)

	r, err := d.Open(ctx, "b.bin")
	require.NoError(t, err)
	got, err := io.ReadAll(r)
	require.NoError(t, err)
	require.NoError(t, r.Close())
	assert.Equal(t, "second", string(got))
}

func TestMemDir(t *testing.T) {
	ctx := context.Background()
	d := New("mem://localhost/colorgan")

	require.NoError(t, d.WriteFile(ctx, "e0b0.png", []byte{1, 2, 3}))
	got, err := d.ReadFile(ctx, "e0b0.png")
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3}, got)
}

func TestJoin(t *testing.T) {
	assert.Equal(t, filepath.Join("out", "samples"), Join("out", "samples"))
	assert.Equal(t, "s3://bucket/run/samples/x.png", Join("s3://bucket/run/", "samples", "x.png"))
}

func TestLocalPath(t *testing.T) {
	p, ok := LocalPath("output")
	assert.True(t, ok)
	assert.Equal(t, "output", p)

	p, ok = LocalPath("file:///tmp/out")
	assert.True(t, ok)
	assert.Equal(t, "/tmp/out", p)

	_, ok = LocalPath("s3://bucket/out")
	assert.False(t, ok)
}
