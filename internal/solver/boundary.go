package solver

import (
	"github.com/Claxl/Parallel-Computing2023/internal/field"
	"github.com/Claxl/Parallel-Computing2023/internal/grid"
)

// applyBoundary fills the halo rings on global domain edges with a
// reflection of the interior: the halo cell one step beyond the edge takes
// the value of the interior cell two steps in. This is the discrete form of
// a zero-flux (insulated) boundary.
//
// Each edge is mirrored independently, only where this subgrid actually
// touches the global edge, and only across interior positions 1..len. The
// diagonal corner halo cells are never written: the five-point stencil
// never reads them, and leaving them alone keeps the four mirrors
// order-independent. Halo slots filled by the exchange are never touched.
func applyBoundary(f *field.Field, neighbors [4]int) {
	cur := f.Current()
	rows, cols := cur.Rows(), cur.Cols()

	if neighbors[grid.Up] == grid.NoNeighbor {
		cur.SetRow(0, cur.InteriorRow(2))
	}
	if neighbors[grid.Down] == grid.NoNeighbor {
		cur.SetRow(rows+1, cur.InteriorRow(rows-1))
	}
	if neighbors[grid.Left] == grid.NoNeighbor {
		cur.SetCol(0, cur.InteriorCol(2))
	}
	if neighbors[grid.Right] == grid.NoNeighbor {
		cur.SetCol(cols+1, cur.InteriorCol(cols-1))
	}
}
