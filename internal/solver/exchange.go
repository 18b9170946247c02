package solver

import (
	"context"
	"fmt"

	"github.com/Claxl/Parallel-Computing2023/internal/comm"
	"github.com/Claxl/Parallel-Computing2023/internal/field"
	"github.com/Claxl/Parallel-Computing2023/internal/grid"
)

// exchangeHalo synchronizes the four halo rings of the current buffer with
// the adjacent ranks' matching interior rings.
//
// All sends are issued before any receive is awaited; combined with the
// fabric's one-deep edge buffers this makes the exchange deadlock-free
// regardless of which neighbor runs first. Directions without a neighbor
// are skipped entirely; those halo slots belong to the boundary applier.
//
// Only the halo ring of `current` is mutated. The received iteration tag is
// checked against ours: a mismatch means two ranks drifted out of step,
// which has no consistent recovery and is fatal.
func exchangeHalo(ctx context.Context, ep *comm.Endpoint, topo *grid.Topology, f *field.Field, iteration int) error {
	cur := f.Current()
	rank := ep.Rank()

	for _, d := range grid.Directions {
		if topo.Neighbor(rank, d) == grid.NoNeighbor {
			continue
		}
		msg := comm.HaloMessage{Iteration: iteration, Values: outwardRing(cur, d)}
		if err := ep.SendHalo(ctx, d, msg); err != nil {
			return commError(rank, fmt.Sprintf("send %s halo", d), err)
		}
	}

	for _, d := range grid.Directions {
		if topo.Neighbor(rank, d) == grid.NoNeighbor {
			continue
		}
		msg, err := ep.RecvHalo(ctx, d)
		if err != nil {
			return commError(rank, fmt.Sprintf("receive %s halo", d), err)
		}
		if msg.Iteration != iteration {
			return commError(rank,
				fmt.Sprintf("%s halo from iteration %d during iteration %d", d, msg.Iteration, iteration), nil)
		}
		setHaloRing(cur, d, msg.Values)
	}
	return nil
}

// outwardRing copies the interior row/column facing direction d.
func outwardRing(b *field.Buffer, d grid.Direction) []float64 {
	switch d {
	case grid.Up:
		return b.InteriorRow(1)
	case grid.Down:
		return b.InteriorRow(b.Rows())
	case grid.Left:
		return b.InteriorCol(1)
	default:
		return b.InteriorCol(b.Cols())
	}
}

// setHaloRing stores a received ring into the halo slot for direction d.
func setHaloRing(b *field.Buffer, d grid.Direction, vals []float64) {
	switch d {
	case grid.Up:
		b.SetRow(0, vals)
	case grid.Down:
		b.SetRow(b.Rows()+1, vals)
	case grid.Left:
		b.SetCol(0, vals)
	default:
		b.SetCol(b.Cols()+1, vals)
	}
}
