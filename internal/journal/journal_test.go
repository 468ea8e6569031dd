package journal

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTemp(t *testing.T) *Journal {
	t.Helper()
	j, err := Open(filepath.Join(t.TempDir(), "journal.db"))
	require.NoError(t, err)
	t.Cleanup(func() { j.Close() })
	return j
}

func TestRunsAndSteps(t *testing.T) {
	ctx := context.Background()
	j := openTemp(t)

	cfg := map[string]any{"batch_size": 8, "preset": "tiny"}
	run, err := j.StartRun(ctx, cfg, 1, 499)
	require.NoError(t, err)
	assert.Len(t, run.ID, 36)

	steps := []Step{
		{Epoch: 1, Batch: 500, GenTotal: 2, DiscTotal: -1, GenMSE: 0.5, Duration: 1500 * time.Millisecond},
		{Epoch: 1, Batch: 501, GenTotal: 4, DiscTotal: -3, GenMSE: 0.25},
	}
	for _, s := range steps {
		require.NoError(t, j.Record(ctx, run.ID, s))
	}

	got, err := j.Steps(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, steps, got)

	runs, err := j.Runs(ctx)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, run.ID, runs[0].ID)
	assert.Equal(t, 2, runs[0].Steps)
	assert.Equal(t, 1, runs[0].Epoch)
	assert.Equal(t, 499, runs[0].Batch)
	assert.JSONEq(t, `{"batch_size":8,"preset":"tiny"}`, runs[0].Config)
}

func TestUnknownRun(t *testing.T) {
	ctx := context.Background()
	j := openTemp(t)

	_, err := j.Steps(ctx, "missing")
	assert.ErrorIs(t, err, ErrUnknownRun)
	assert.ErrorIs(t, j.Record(ctx, "missing", Step{}), ErrUnknownRun)
}

func TestReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "journal.db")

	j, err := Open(path)
	require.NoError(t, err)
	run, err := j.StartRun(ctx, struct{}{}, 0, 0)
	require.NoError(t, err)
	require.NoError(t, j.Close())

	j, err = Open(path)
	require.NoError(t, err)
	defer j.Close()
	version, err := j.schemaVersion()
	require.NoError(t, err)
	assert.Equal(t, currentSchemaVersion, version)

	runs, err := j.Runs(ctx)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, run.ID, runs[0].ID)
}

func TestMigrateFromV1(t *testing.T) {
	j := openTemp(t)
	_, err := j.conn.Exec(`UPDATE meta SET schema_version = 1`)
	require.NoError(t, err)

	require.NoError(t, j.migrate())
	version, err := j.schemaVersion()
	require.NoError(t, err)
	assert.Equal(t, 2, version)
}

func TestSummarize(t *testing.T) {
	steps := []Step{
		{Epoch: 0, GenTotal: 1, DiscTotal: 2, GenMSE: 1},
		{Epoch: 0, GenTotal: 3, DiscTotal: 2, GenMSE: 3},
		{Epoch: 1, GenTotal: 5, DiscTotal: 1, DiscGP: 0.5},
	}
	got := Summarize(steps)
	require.Len(t, got, 2)

	assert.Equal(t, 0, got[0].Epoch)
	assert.Equal(t, 2, got[0].Batches)
	assert.InDelta(t, 2, got[0].GenMean, 1e-9)
	assert.InDelta(t, 1.41421356, got[0].GenStd, 1e-6)
	assert.InDelta(t, 0, got[0].DiscStd, 1e-9)
	assert.InDelta(t, 2, got[0].MSEMean, 1e-9)

	assert.Equal(t, 1, got[1].Batches)
	assert.Zero(t, got[1].GenStd)
	assert.InDelta(t, 0.5, got[1].GPMean, 1e-9)
}
