package solver

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Claxl/Parallel-Computing2023/internal/comm"
	"github.com/Claxl/Parallel-Computing2023/internal/config"
	"github.com/Claxl/Parallel-Computing2023/internal/field"
	"github.com/Claxl/Parallel-Computing2023/internal/grid"
	"github.com/Claxl/Parallel-Computing2023/internal/snapshot"
)

// ManifestName is the snapshot manifest filename inside the output dir.
const ManifestName = "manifest.db"

// Options configure a run.
type Options struct {
	// Ranks is the SPMD group size.
	Ranks int

	// Load produces the startup parameters. It runs on rank 0 only; the
	// result (or the failure) is broadcast to the group. Nil means
	// config.Default.
	Load func() (config.Params, error)

	// Logger receives progress output; nil means slog.Default().
	Logger *slog.Logger

	// DisableManifest skips the SQLite manifest. Used by equivalence
	// tests that only care about artifact bytes.
	DisableManifest bool
}

// Summary describes a completed run.
type Summary struct {
	RunID     string        `json:"run_id,omitempty"`
	Params    config.Params `json:"params"`
	Ranks     int           `json:"ranks"`
	PRows     int           `json:"topology_rows"`
	PCols     int           `json:"topology_cols"`
	Snapshots int           `json:"snapshots"`
	Elapsed   time.Duration `json:"elapsed_ns"`
}

// CellUpdates returns the total number of stencil cell updates the run
// performed, for throughput reporting.
func (s *Summary) CellUpdates() int64 {
	return int64(s.Params.Rows) * int64(s.Params.Cols) * int64(s.Params.MaxIteration+1)
}

// runSetup is the rank-0 broadcast payload: the validated parameters plus
// the shared artifact writer. Sharing the writer through the broadcast
// mirrors the data flow of the protocol: nothing exists on the other
// ranks until rank 0 has validated the configuration.
type runSetup struct {
	params config.Params
	writer *snapshot.Writer
}

// Run executes a complete simulation with the given rank count and blocks
// until every rank has finished or the group has aborted.
func Run(ctx context.Context, opts Options) (*Summary, error) {
	if opts.Ranks < 1 {
		return nil, configError(0, fmt.Errorf("rank count must be positive, got %d", opts.Ranks))
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	load := opts.Load
	if load == nil {
		load = func() (config.Params, error) { return config.Default(), nil }
	}

	topo, err := grid.NewTopology(opts.Ranks)
	if err != nil {
		return nil, configError(0, err)
	}
	fabric := comm.New(topo)

	var (
		mu      sync.Mutex
		summary *Summary
	)

	start := time.Now()
	g, gctx := errgroup.WithContext(ctx)
	for rank := 0; rank < topo.Ranks; rank++ {
		rank := rank
		g.Go(func() error {
			s, err := runRank(gctx, fabric.Endpoint(rank), topo, load, logger, opts.DisableManifest)
			if err != nil {
				return err
			}
			if s != nil {
				mu.Lock()
				summary = s
				mu.Unlock()
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	summary.Elapsed = time.Since(start)
	logger.Info("run complete",
		"elapsed", summary.Elapsed,
		"snapshots", summary.Snapshots,
		"ranks", summary.Ranks)
	return summary, nil
}

// runRank is the per-rank program. Rank 0 additionally owns parameter
// loading, artifact sealing, the manifest, and progress logging; every
// other responsibility is identical across ranks.
func runRank(
	ctx context.Context,
	ep *comm.Endpoint,
	topo *grid.Topology,
	load func() (config.Params, error),
	logger *slog.Logger,
	disableManifest bool,
) (*Summary, error) {
	rank := ep.Rank()

	// Startup: rank 0 parses, validates, and prepares the shared writer;
	// the group receives either the setup or the failure.
	var (
		setup    *runSetup
		loadErr  error
		manifest *snapshot.Manifest
		runID    string
	)
	if rank == 0 {
		params, err := load()
		if err == nil {
			err = params.Validate(topo.Ranks)
		}
		if err != nil {
			loadErr = configError(0, err)
		} else {
			// Parameters are sound; failures past this point are I/O on
			// the output directory or the manifest, not configuration.
			var writer *snapshot.Writer
			writer, err = snapshot.NewWriter(params.OutputDir, params.Rows, params.Cols)
			if err == nil && !disableManifest {
				manifest, err = snapshot.OpenManifest(filepath.Join(params.OutputDir, ManifestName))
				if err == nil {
					runID, err = manifest.BeginRun(ctx, params, topo.Ranks)
				}
			}
			if err == nil {
				setup = &runSetup{params: params, writer: writer}
			} else {
				loadErr = snapshotError(0, err)
				if manifest != nil {
					manifest.Close()
					manifest = nil
				}
			}
		}
	}
	payload, err := ep.Bcast(ctx, setup, loadErr)
	if err != nil {
		// Either rank 0's already-coded startup error or a group
		// cancellation; both are terminal as-is.
		return nil, err
	}
	setup = payload.(*runSetup)
	params := setup.params
	if manifest != nil {
		defer manifest.Close()
	}

	sub, err := grid.Partition(params.Rows, params.Cols, topo, rank)
	if err != nil {
		// Unreachable after validation; kept so a future validation gap
		// cannot silently truncate the domain.
		return nil, configError(rank, err)
	}
	f := field.New(sub)
	f.Initialize(params.Cols)
	neighbors := topo.Neighbors(rank)

	if rank == 0 {
		logger.Info("run starting",
			"grid", fmt.Sprintf("%dx%d", params.Rows, params.Cols),
			"topology", fmt.Sprintf("%dx%d", topo.PRows, topo.PCols),
			"ranks", topo.Ranks,
			"max_iteration", params.MaxIteration,
			"snapshot_frequency", params.SnapshotFrequency)
	}
	logger.Debug("rank ready",
		"rank", rank,
		"subgrid", fmt.Sprintf("%dx%d", sub.Rows, sub.Cols),
		"offset", fmt.Sprintf("%d,%d", sub.OffsetRow, sub.OffsetCol))

	snapshots := 0
	for iteration := 0; iteration <= params.MaxIteration; iteration++ {
		if iteration%params.SnapshotFrequency == 0 {
			index := iteration / params.SnapshotFrequency
			// The artifact captures the state entering this iteration, so
			// snapshot 0 is the initial condition.
			if err := setup.writer.WriteBlock(index, sub, f.Current()); err != nil {
				return nil, snapshotError(rank, err)
			}
			// Every block must be on disk before the artifact is sealed.
			if err := ep.Barrier(ctx); err != nil {
				return nil, commError(rank, "snapshot barrier", err)
			}
			if rank == 0 {
				sum, size, err := setup.writer.Seal(index)
				if err != nil {
					return nil, snapshotError(rank, err)
				}
				if manifest != nil {
					if err := manifest.RecordSnapshot(ctx, runID, index, iteration, setup.writer.Filename(index), sum, size); err != nil {
						return nil, snapshotError(rank, err)
					}
				}
				logger.Info("iteration",
					"iteration", iteration,
					"of", params.MaxIteration,
					"complete_pct", progressPct(iteration, params.MaxIteration),
					"snapshot", setup.writer.Filename(index))
			}
			snapshots++
		}

		if err := exchangeHalo(ctx, ep, topo, f, iteration); err != nil {
			return nil, err
		}
		applyBoundary(f, neighbors)
		stencilStep(f, params.Dt)
		f.Swap()
	}

	if rank != 0 {
		return nil, nil
	}
	return &Summary{
		RunID:     runID,
		Params:    params,
		Ranks:     topo.Ranks,
		PRows:     topo.PRows,
		PCols:     topo.PCols,
		Snapshots: snapshots,
	}, nil
}

func progressPct(iteration, maxIteration int) float64 {
	if maxIteration == 0 {
		return 100
	}
	return 100 * float64(iteration) / float64(maxIteration)
}
