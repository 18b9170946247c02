package solver

import (
	"context"
	"io"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/Claxl/Parallel-Computing2023/internal/comm"
	"github.com/Claxl/Parallel-Computing2023/internal/config"
	"github.com/Claxl/Parallel-Computing2023/internal/field"
	"github.com/Claxl/Parallel-Computing2023/internal/grid"
	"github.com/Claxl/Parallel-Computing2023/internal/snapshot"
	"github.com/Claxl/Parallel-Computing2023/internal/testutil"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func runWith(t *testing.T, ranks int, p config.Params) *Summary {
	t.Helper()
	s, err := Run(context.Background(), Options{
		Ranks:  ranks,
		Load:   func() (config.Params, error) { return p, nil },
		Logger: quietLogger(),
	})
	require.NoError(t, err)
	return s
}

func TestExchangeHalo_HaloEqualsNeighborInterior(t *testing.T) {
	topo, err := grid.NewTopology(2) // 2x1: rank 0 above rank 1
	require.NoError(t, err)
	fabric := comm.New(topo)

	fields := make([]*field.Field, 2)
	for rank := 0; rank < 2; rank++ {
		sub, err := grid.Partition(4, 4, topo, rank)
		require.NoError(t, err)
		f := field.New(sub)
		// Rank-distinct interior values so a swapped or shifted ring is
		// unmistakable.
		for r := 1; r <= sub.Rows; r++ {
			for c := 1; c <= sub.Cols; c++ {
				f.Current().Set(r, c, float64(rank*100+r*10+c))
			}
		}
		fields[rank] = f
	}

	var wg sync.WaitGroup
	for rank := 0; rank < 2; rank++ {
		rank := rank
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, exchangeHalo(context.Background(), fabric.Endpoint(rank), topo, fields[rank], 7))
		}()
	}
	wg.Wait()

	// Rank 0's bottom halo must be rank 1's first interior row, and vice
	// versa; interiors must be untouched.
	bottom := fields[0].Current()
	top := fields[1].Current()
	for c := 1; c <= 4; c++ {
		assert.Equal(t, top.At(1, c), bottom.At(3, c), "rank 0 down halo col %d", c)
		assert.Equal(t, bottom.At(2, c), top.At(0, c), "rank 1 up halo col %d", c)
		assert.Equal(t, float64(10+c), bottom.At(1, c), "rank 0 interior untouched")
	}
}

func TestExchangeHalo_DetectsIterationDrift(t *testing.T) {
	topo, err := grid.NewTopology(2)
	require.NoError(t, err)
	fabric := comm.New(topo)
	sub0, _ := grid.Partition(4, 4, topo, 0)
	sub1, _ := grid.Partition(4, 4, topo, 1)
	f0, f1 := field.New(sub0), field.New(sub1)

	errs := make(chan error, 2)
	go func() { errs <- exchangeHalo(context.Background(), fabric.Endpoint(0), topo, f0, 3) }()
	go func() { errs <- exchangeHalo(context.Background(), fabric.Endpoint(1), topo, f1, 4) }()

	var failures int
	for i := 0; i < 2; i++ {
		if err := <-errs; err != nil {
			assert.True(t, IsCommError(err))
			failures++
		}
	}
	assert.GreaterOrEqual(t, failures, 1, "at least one side must reject the mismatched tag")
}

func TestApplyBoundary_MirrorsTwoCellsIn(t *testing.T) {
	f := field.New(grid.Subgrid{Rows: 3, Cols: 3, HaloWidth: 1})
	cur := f.Current()
	for r := 1; r <= 3; r++ {
		for c := 1; c <= 3; c++ {
			cur.Set(r, c, float64(r*10+c))
		}
	}

	// No neighbors anywhere: every edge is a global edge.
	applyBoundary(f, [4]int{grid.NoNeighbor, grid.NoNeighbor, grid.NoNeighbor, grid.NoNeighbor})

	for c := 1; c <= 3; c++ {
		assert.Equal(t, cur.At(2, c), cur.At(0, c), "top halo mirrors row 2")
		assert.Equal(t, cur.At(2, c), cur.At(4, c), "bottom halo mirrors row rows-1")
	}
	for r := 1; r <= 3; r++ {
		assert.Equal(t, cur.At(r, 2), cur.At(r, 0), "left halo mirrors col 2")
		assert.Equal(t, cur.At(r, 2), cur.At(r, 4), "right halo mirrors col cols-1")
	}
	// Corner halo cells are never written.
	assert.Zero(t, cur.At(0, 0))
	assert.Zero(t, cur.At(4, 4))
}

func TestApplyBoundary_LeavesExchangedEdgesAlone(t *testing.T) {
	f := field.New(grid.Subgrid{Rows: 3, Cols: 3, HaloWidth: 1})
	cur := f.Current()
	for r := 1; r <= 3; r++ {
		for c := 1; c <= 3; c++ {
			cur.Set(r, c, 5)
		}
	}
	cur.SetRow(0, []float64{-1, -2, -3}) // pretend the exchange filled it

	neighbors := [4]int{grid.NoNeighbor, grid.NoNeighbor, grid.NoNeighbor, grid.NoNeighbor}
	neighbors[grid.Up] = 1
	applyBoundary(f, neighbors)

	assert.Equal(t, []float64{-1, -2, -3}, []float64{cur.At(0, 1), cur.At(0, 2), cur.At(0, 3)},
		"edge with a neighbor must not be mirrored")
	assert.Equal(t, 5.0, cur.At(4, 1), "edges without a neighbor still mirror")
}

func TestStencilStep_FivePointUpdate(t *testing.T) {
	f := field.New(grid.Subgrid{Rows: 1, Cols: 1, HaloWidth: 1})
	cur := f.Current()
	cur.Set(1, 1, 10)
	cur.Set(0, 1, 1)
	cur.Set(2, 1, 2)
	cur.Set(1, 0, 3)
	cur.Set(1, 2, 4)
	f.Diffusivity().Set(1, 1, 0.5)

	stencilStep(f, 0.1)

	// 10 + 0.5*0.1*((1+2+3+4) - 40) = 10 - 1.5
	assert.InDelta(t, 8.5, f.Next().At(1, 1), 1e-15)
	assert.Equal(t, 10.0, cur.At(1, 1), "current buffer is read-only during the step")
}

func readArtifact(t *testing.T, p config.Params, index int) *mat.Dense {
	t.Helper()
	m, err := snapshot.Read(filepath.Join(p.OutputDir, snapshot.Filename(index)), p.Rows, p.Cols)
	require.NoError(t, err)
	return m
}

func TestRun_SnapshotZeroIsInitialCondition(t *testing.T) {
	p := testutil.Params(t, 8, 8, 10, 5)
	runWith(t, 1, p)

	m := readArtifact(t, p, 0)
	for r := 0; r < 8; r++ {
		for c := 0; c < 8; c++ {
			assert.Equal(t, field.InitialTemperature(r, c), m.At(r, c), "cell (%d,%d)", r, c)
		}
	}
}

func TestRun_MatchesSerialReference(t *testing.T) {
	p := testutil.Params(t, 8, 8, 10, 5)
	runWith(t, 4, p) // 2x2 decomposition

	want := testutil.ReferenceSolve(8, 8, 10, p.Dt)
	got := readArtifact(t, p, 2) // state entering iteration 10
	for r := 0; r < 8; r++ {
		for c := 0; c < 8; c++ {
			assert.InDelta(t, want.At(r, c), got.At(r, c), 1e-12, "cell (%d,%d)", r, c)
		}
	}
}

func TestRun_DecompositionInvariance(t *testing.T) {
	// The same problem solved on 1, 2, and 4 ranks must produce
	// byte-identical artifacts: decomposition changes who computes a cell,
	// never the arithmetic.
	artifacts := make(map[int][]byte)
	for _, ranks := range []int{1, 2, 4} {
		p := testutil.Params(t, 8, 8, 10, 5)
		runWith(t, ranks, p)
		data, err := os.ReadFile(filepath.Join(p.OutputDir, snapshot.Filename(2)))
		require.NoError(t, err)
		artifacts[ranks] = data
	}
	assert.Equal(t, artifacts[1], artifacts[2])
	assert.Equal(t, artifacts[1], artifacts[4])
}

func TestRun_RepeatedRunsAreByteIdentical(t *testing.T) {
	read := func() []byte {
		p := testutil.Params(t, 8, 8, 10, 5)
		runWith(t, 4, p)
		data, err := os.ReadFile(filepath.Join(p.OutputDir, snapshot.Filename(2)))
		require.NoError(t, err)
		return data
	}
	assert.Equal(t, read(), read())
}

func TestRun_ArtifactCountAndSize(t *testing.T) {
	p := testutil.Params(t, 8, 8, 10, 5)
	s := runWith(t, 1, p)

	// Iterations 0, 5 and 10 each emit one artifact.
	assert.Equal(t, 3, s.Snapshots)
	for index := 0; index < 3; index++ {
		info, err := os.Stat(filepath.Join(p.OutputDir, snapshot.Filename(index)))
		require.NoError(t, err)
		assert.Equal(t, int64(8*8*snapshot.CellBytes), info.Size())
	}
	_, err := os.Stat(filepath.Join(p.OutputDir, snapshot.Filename(3)))
	assert.True(t, os.IsNotExist(err))
}

func TestRun_MaximumPrinciple(t *testing.T) {
	// Diffusion with insulated boundaries cannot create new extrema: the
	// field maximum is non-increasing and the minimum non-decreasing across
	// iterations.
	p := testutil.Params(t, 8, 8, 6, 1)
	runWith(t, 4, p)

	prevMax, prevMin := math.Inf(1), math.Inf(-1)
	for index := 0; index <= 6; index++ {
		m := readArtifact(t, p, index)
		curMax, curMin := math.Inf(-1), math.Inf(1)
		for r := 0; r < 8; r++ {
			for c := 0; c < 8; c++ {
				curMax = math.Max(curMax, m.At(r, c))
				curMin = math.Min(curMin, m.At(r, c))
			}
		}
		if index > 0 {
			assert.LessOrEqual(t, curMax, prevMax+1e-12, "max grew at snapshot %d", index)
			assert.GreaterOrEqual(t, curMin, prevMin-1e-12, "min shrank at snapshot %d", index)
		}
		prevMax, prevMin = curMax, curMin
	}
}

func TestRun_RecordsManifest(t *testing.T) {
	p := testutil.Params(t, 8, 8, 10, 5)
	s := runWith(t, 2, p)
	assert.NotEmpty(t, s.RunID)

	m, err := snapshot.OpenManifest(filepath.Join(p.OutputDir, ManifestName))
	require.NoError(t, err)
	defer m.Close()

	entries, err := m.Snapshots(context.Background())
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, []int{0, 5, 10}, []int{entries[0].Iteration, entries[1].Iteration, entries[2].Iteration})
	for _, e := range entries {
		assert.Equal(t, s.RunID, e.RunID)
		assert.Equal(t, int64(8*8*snapshot.CellBytes), e.Bytes)
		assert.Len(t, e.SHA256, 64)
	}
}

func TestRun_InvalidConfigAbortsWholeGroup(t *testing.T) {
	// 8 rows over a 3x1 topology cannot be partitioned; every rank must
	// come back with the configuration error, not hang in the exchange.
	p := testutil.Params(t, 8, 8, 10, 5)
	_, err := Run(context.Background(), Options{
		Ranks:  3,
		Load:   func() (config.Params, error) { return p, nil },
		Logger: quietLogger(),
	})
	require.Error(t, err)
	assert.True(t, IsConfigError(err))
}

func TestRun_SnapshotWriteFailureAbortsWholeGroup(t *testing.T) {
	// Occupying the artifact path with a directory makes the first
	// checkpoint open fail mid-run; every rank must come back with the
	// I/O error instead of blocking on the snapshot barrier.
	p := testutil.Params(t, 8, 8, 10, 5)
	require.NoError(t, os.Mkdir(filepath.Join(p.OutputDir, snapshot.Filename(0)), 0o755))

	_, err := Run(context.Background(), Options{
		Ranks:  4,
		Load:   func() (config.Params, error) { return p, nil },
		Logger: quietLogger(),
	})
	require.Error(t, err)
	assert.True(t, IsSnapshotError(err))
	assert.False(t, IsConfigError(err))
}

func TestRun_UnwritableOutputDirIsSnapshotError(t *testing.T) {
	// A file where the output directory's parent should be makes MkdirAll
	// fail on rank 0. That is an I/O failure of a valid configuration, so
	// it must carry the snapshot code, not the configuration one.
	blocker := filepath.Join(t.TempDir(), "out")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0o644))

	p := testutil.Params(t, 8, 8, 10, 5)
	p.OutputDir = filepath.Join(blocker, "data")
	_, err := Run(context.Background(), Options{
		Ranks:  2,
		Load:   func() (config.Params, error) { return p, nil },
		Logger: quietLogger(),
	})
	require.Error(t, err)
	assert.True(t, IsSnapshotError(err))
	assert.False(t, IsConfigError(err))
}

func TestRun_LoadFailurePropagates(t *testing.T) {
	_, err := Run(context.Background(), Options{
		Ranks:  4,
		Load:   func() (config.Params, error) { return config.Params{}, os.ErrNotExist },
		Logger: quietLogger(),
	})
	require.Error(t, err)
	assert.True(t, IsConfigError(err))
}

func TestRun_ZeroIterationsStillSnapshotsOnce(t *testing.T) {
	p := testutil.Params(t, 8, 8, 0, 5)
	s := runWith(t, 1, p)
	assert.Equal(t, 1, s.Snapshots)

	m := readArtifact(t, p, 0)
	assert.Equal(t, field.InitialTemperature(0, 0), m.At(0, 0))
}

func TestRun_RejectsNonPositiveRanks(t *testing.T) {
	_, err := Run(context.Background(), Options{Ranks: 0, Logger: quietLogger()})
	require.Error(t, err)
	assert.True(t, IsConfigError(err))
}
