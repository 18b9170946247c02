package grid

import "fmt"

// Subgrid is one rank's rectangular share of the global domain.
//
// Rows/Cols are interior extents, excluding the one-cell halo ring. The
// offsets locate the subgrid's first interior cell inside the global M×N
// field, so global row = OffsetRow + (local interior row - 1).
type Subgrid struct {
	Rows      int // interior row count
	Cols      int // interior column count
	OffsetRow int // global row of the first interior row
	OffsetCol int // global column of the first interior column
	HaloWidth int // ghost ring width, always 1
}

// Partition derives rank's subgrid from the global extents and the topology.
//
// The global extents must divide evenly by the topology dims. A remainder is
// a configuration error and is reported, never silently truncated: a
// truncated decomposition would checkpoint at wrong offsets and corrupt the
// assembled global field.
func Partition(m, n int, t *Topology, rank int) (Subgrid, error) {
	if rank < 0 || rank >= t.Ranks {
		return Subgrid{}, fmt.Errorf("rank %d out of range for %d-rank topology", rank, t.Ranks)
	}
	if m%t.PRows != 0 {
		return Subgrid{}, fmt.Errorf("global rows %d not divisible by topology rows %d", m, t.PRows)
	}
	if n%t.PCols != 0 {
		return Subgrid{}, fmt.Errorf("global cols %d not divisible by topology cols %d", n, t.PCols)
	}
	row, col := t.Coord(rank)
	rows, cols := m/t.PRows, n/t.PCols
	return Subgrid{
		Rows:      rows,
		Cols:      cols,
		OffsetRow: row * rows,
		OffsetCol: col * cols,
		HaloWidth: 1,
	}, nil
}
