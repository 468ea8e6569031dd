package main

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/colorgan/internal/checkpoint"
	"github.com/born-ml/colorgan/internal/dataset"
	"github.com/born-ml/colorgan/internal/journal"
	"github.com/born-ml/colorgan/internal/storage"
	"github.com/born-ml/colorgan/internal/train"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewCLI()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestVersion(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Equal(t, "colorgan version "+version+"\n", out)

	out, err = execute(t, "--version")
	require.NoError(t, err)
	assert.Contains(t, out, version)
}

func TestTrainUsageListsEnvironment(t *testing.T) {
	out, err := execute(t, "train", "--help")
	require.NoError(t, err)
	assert.Contains(t, out, "Environment Variables:")
	assert.Contains(t, out, "COLORGAN_DATA")
	assert.Contains(t, out, "COLORGAN_GPU")
}

func TestTrainRejectsBadArgs(t *testing.T) {
	_, err := execute(t, "train", "x")
	assert.ErrorContains(t, err, `invalid epoch "x"`)

	_, err = execute(t, "train", "1", "2", "3")
	assert.Error(t, err)
}

func writeSnapshot(t *testing.T, dir *storage.Dir, model string, epoch, batch int) {
	t.Helper()
	_, err := checkpoint.Save(context.Background(), dir, &checkpoint.File{
		Info:    checkpoint.Info{Model: model, Epoch: epoch, Batch: batch},
		Tensors: []checkpoint.Tensor{{Name: "w", Shape: []int{1}, Data: []float32{1}}},
	})
	require.NoError(t, err)
}

func TestResolveResume(t *testing.T) {
	ctx := context.Background()
	dir := storage.New(t.TempDir())
	writeSnapshot(t, dir, "generator", 1, 499)
	writeSnapshot(t, dir, "generator", 1, 999)
	writeSnapshot(t, dir, "generator", 2, 499)
	writeSnapshot(t, dir, "discriminator", 1, 1499)

	_, ok, err := resolveResume(ctx, dir, nil)
	require.NoError(t, err)
	assert.False(t, ok)

	pos, ok, err := resolveResume(ctx, dir, []string{"3", "7"})
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, train.Position{Epoch: 3, Batch: 7}, pos)

	pos, ok, err = resolveResume(ctx, dir, []string{"1"})
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, train.Position{Epoch: 1, Batch: 999}, pos)

	_, _, err = resolveResume(ctx, dir, []string{"5"})
	assert.ErrorIs(t, err, checkpoint.ErrNotFound)

	_, _, err = resolveResume(ctx, dir, []string{"1", "-2"})
	assert.ErrorContains(t, err, "invalid batch")
}

func TestHistory(t *testing.T) {
	outDir := t.TempDir()

	out, err := execute(t, "history", "--output", outDir)
	require.NoError(t, err)
	assert.Contains(t, out, "no training runs recorded")

	j, err := journal.Open(filepath.Join(outDir, journalFile))
	require.NoError(t, err)
	run, err := j.StartRun(context.Background(), map[string]int{"epochs": 1}, 0, 0)
	require.NoError(t, err)
	require.NoError(t, j.Record(context.Background(), run.ID, journal.Step{Epoch: 0, Batch: 0, GenTotal: 1.5, DiscTotal: -0.5}))
	require.NoError(t, j.Close())

	out, err = execute(t, "history", "--output", outDir)
	require.NoError(t, err)
	assert.Contains(t, out, "RESUMED FROM")
	assert.Contains(t, out, run.ID)

	out, err = execute(t, "history", "--output", outDir, run.ID)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[1], "1.5000")

	_, err = execute(t, "history", "--output", outDir, "nope")
	assert.ErrorIs(t, err, journal.ErrUnknownRun)
}

func TestWriteRuns(t *testing.T) {
	var buf bytes.Buffer
	writeRuns(&buf, []journal.Run{
		{ID: "a", StartedAt: time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC), Epoch: 2, Batch: 499, Steps: 10},
	})
	assert.Contains(t, buf.String(), "e2 b499")
	assert.Contains(t, buf.String(), "10")
}

func writeImages(t *testing.T, dir string, n int) []string {
	t.Helper()
	require.NoError(t, os.MkdirAll(dir, 0o755))
	var paths []string
	for k := range n {
		img := image.NewRGBA(image.Rect(0, 0, 36, 36))
		for y := range 36 {
			for x := range 36 {
				img.Set(x, y, color.RGBA{R: uint8(50 * k), G: uint8(7 * x), B: uint8(7 * y), A: 255})
			}
		}
		path := filepath.Join(dir, fmt.Sprintf("photo%d.png", k))
		f, err := os.Create(path)
		require.NoError(t, err)
		require.NoError(t, dataset.EncodePNG(f, img))
		require.NoError(t, f.Close())
		paths = append(paths, path)
	}
	return paths
}

func TestColorizeUsesSnapshotArchitecture(t *testing.T) {
	root := t.TempDir()
	data := filepath.Join(root, "data")
	writeImages(t, data, 2)
	outDir := filepath.Join(root, "out")

	_, err := execute(t, "train",
		"--data", data, "--output", outDir,
		"--epochs", "1", "--batch-size", "2",
		"--image-size", "32", "--preset", "tiny")
	require.NoError(t, err)
	require.FileExists(t, filepath.Join(outDir, train.CheckpointDir, checkpoint.FileName("generator", 0, 0)))

	inputs := writeImages(t, filepath.Join(root, "bw"), 1)
	out, err := execute(t, "colorize", "--output", outDir, inputs[0])
	require.NoError(t, err)
	colorized := filepath.Join(outDir, "colorized", "photo0_color.png")
	assert.Contains(t, out, colorized)
	assert.FileExists(t, colorized)

	_, err = execute(t, "colorize", "--output", outDir, "--preset", "vgg16", inputs[0])
	assert.ErrorContains(t, err, "does not match the snapshot")

	_, err = execute(t, "colorize", "--output", outDir, "--image-size", "64", inputs[0])
	assert.ErrorContains(t, err, "does not match the snapshot")
}
