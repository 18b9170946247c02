// Package field owns the per-rank simulation state: two ping-pong
// temperature buffers and one static diffusivity buffer, each sized to the
// rank's interior extents plus a one-cell halo ring.
//
// Indexing convention (shared with the solver): interior cells occupy rows
// 1..Rows and columns 1..Cols; halo cells occupy index 0 and index dim+1.
// All access goes through the Buffer accessor, which maps (row, col) to the
// flat backing slice. Halo/interior off-by-one mistakes are the dominant
// defect class in this kind of code, so the accessor panics on out-of-range
// coordinates instead of silently reading a neighboring row.
package field

import "fmt"

// Buffer is a dense (rows+2)×(cols+2) matrix of float64 stored row-major,
// addressed with halo-inclusive coordinates.
type Buffer struct {
	rows, cols int // interior extents
	data       []float64
}

// NewBuffer allocates a zeroed buffer for the given interior extents.
func NewBuffer(rows, cols int) *Buffer {
	return &Buffer{
		rows: rows,
		cols: cols,
		data: make([]float64, (rows+2)*(cols+2)),
	}
}

// Rows returns the interior row count.
func (b *Buffer) Rows() int { return b.rows }

// Cols returns the interior column count.
func (b *Buffer) Cols() int { return b.cols }

func (b *Buffer) index(r, c int) int {
	if r < 0 || r > b.rows+1 || c < 0 || c > b.cols+1 {
		panic(fmt.Sprintf("field: index (%d,%d) outside %dx%d buffer with halo", r, c, b.rows, b.cols))
	}
	return r*(b.cols+2) + c
}

// At returns the value at halo-inclusive coordinates (r, c).
func (b *Buffer) At(r, c int) float64 { return b.data[b.index(r, c)] }

// Set stores v at halo-inclusive coordinates (r, c).
func (b *Buffer) Set(r, c int, v float64) { b.data[b.index(r, c)] = v }

// InteriorRow copies interior row r (columns 1..Cols) into a fresh slice.
func (b *Buffer) InteriorRow(r int) []float64 {
	start := b.index(r, 1)
	out := make([]float64, b.cols)
	copy(out, b.data[start:start+b.cols])
	return out
}

// InteriorCol copies interior column c (rows 1..Rows) into a fresh slice.
func (b *Buffer) InteriorCol(c int) []float64 {
	out := make([]float64, b.rows)
	for r := 1; r <= b.rows; r++ {
		out[r-1] = b.At(r, c)
	}
	return out
}

// SetRow overwrites row r, columns 1..Cols, with vals.
func (b *Buffer) SetRow(r int, vals []float64) {
	if len(vals) != b.cols {
		panic(fmt.Sprintf("field: row length %d does not match %d columns", len(vals), b.cols))
	}
	copy(b.data[b.index(r, 1):], vals)
}

// SetCol overwrites column c, rows 1..Rows, with vals.
func (b *Buffer) SetCol(c int, vals []float64) {
	if len(vals) != b.rows {
		panic(fmt.Sprintf("field: column length %d does not match %d rows", len(vals), b.rows))
	}
	for r := 1; r <= b.rows; r++ {
		b.Set(r, c, vals[r-1])
	}
}
