package snapshot

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Claxl/Parallel-Computing2023/internal/config"
)

func TestManifest_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "manifest.db")
	ctx := context.Background()

	m, err := OpenManifest(path)
	require.NoError(t, err)
	defer m.Close()

	p := config.Default()
	p.Rows, p.Cols = 8, 8
	runID, err := m.BeginRun(ctx, p, 4)
	require.NoError(t, err)
	assert.NotEmpty(t, runID)

	require.NoError(t, m.RecordSnapshot(ctx, runID, 0, 0, "00000.bin", "abc", 512))
	require.NoError(t, m.RecordSnapshot(ctx, runID, 1, 100, "00001.bin", "def", 512))

	entries, err := m.Snapshots(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, runID, entries[0].RunID)
	assert.Equal(t, 0, entries[0].Iteration)
	assert.Equal(t, "00001.bin", entries[1].File)
	assert.Equal(t, int64(512), entries[1].Bytes)
}

func TestManifest_RejectsDuplicateIndex(t *testing.T) {
	path := filepath.Join(t.TempDir(), "manifest.db")
	ctx := context.Background()

	m, err := OpenManifest(path)
	require.NoError(t, err)
	defer m.Close()

	runID, err := m.BeginRun(ctx, config.Default(), 1)
	require.NoError(t, err)

	require.NoError(t, m.RecordSnapshot(ctx, runID, 0, 0, "00000.bin", "abc", 8))
	assert.Error(t, m.RecordSnapshot(ctx, runID, 0, 0, "00000.bin", "abc", 8))
}

func TestManifest_OpenIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "manifest.db")

	m, err := OpenManifest(path)
	require.NoError(t, err)
	runID, err := m.BeginRun(context.Background(), config.Default(), 1)
	require.NoError(t, err)
	require.NoError(t, m.Close())

	// Second open must see the first run's rows, not a fresh schema.
	m, err = OpenManifest(path)
	require.NoError(t, err)
	defer m.Close()
	require.NoError(t, m.RecordSnapshot(context.Background(), runID, 0, 0, "00000.bin", "abc", 8))
}
