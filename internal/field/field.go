package field

import (
	"math"

	"github.com/Claxl/Parallel-Computing2023/internal/grid"
)

// Field is one rank's exclusively-owned simulation state.
//
// The two temperature buffers alternate roles each iteration: the stencil
// reads `current` and writes `next`, then Swap toggles an index instead of
// swapping pointers, so neither buffer ever aliases the other. The
// diffusivity buffer is populated once by Initialize and never mutated.
type Field struct {
	sub   grid.Subgrid
	temp  [2]*Buffer
	kappa *Buffer
	cur   int // index of the current temperature buffer, toggled by Swap
}

// New allocates zeroed buffers for the given subgrid.
func New(sub grid.Subgrid) *Field {
	return &Field{
		sub:   sub,
		temp:  [2]*Buffer{NewBuffer(sub.Rows, sub.Cols), NewBuffer(sub.Rows, sub.Cols)},
		kappa: NewBuffer(sub.Rows, sub.Cols),
	}
}

// Subgrid returns the decomposition extents this field was allocated for.
func (f *Field) Subgrid() grid.Subgrid { return f.sub }

// Current returns the temperature buffer holding this iteration's state.
func (f *Field) Current() *Buffer { return f.temp[f.cur] }

// Next returns the temperature buffer the stencil writes into.
func (f *Field) Next() *Buffer { return f.temp[f.cur^1] }

// Diffusivity returns the static per-cell diffusivity buffer.
func (f *Field) Diffusivity() *Buffer { return f.kappa }

// Swap promotes `next` to `current` by toggling the buffer index.
func (f *Field) Swap() { f.cur ^= 1 }

// InitialTemperature is the analytic initial condition evaluated at a
// zero-based global cell (r, c).
func InitialTemperature(r, c int) float64 {
	return 30 + 30*math.Sin(float64(r+c)/20.0)
}

// DiffusivityAt is the analytic per-cell diffusivity for a global N-column
// domain at zero-based global cell (r, c). Values stay inside (0, 1).
func DiffusivityAt(n, r, c int) float64 {
	return 0.05 + (30+30*math.Sin((float64(n-c)+float64(r))/20.0))/605.0
}

// Initialize fills the interior of both temperature buffers and the
// diffusivity buffer from the analytic fields, using the subgrid offsets to
// evaluate at global coordinates. Halo cells are left zero; they are
// populated by exchange or boundary fill before the first stencil read.
func (f *Field) Initialize(globalCols int) {
	for r := 1; r <= f.sub.Rows; r++ {
		gr := f.sub.OffsetRow + r - 1
		for c := 1; c <= f.sub.Cols; c++ {
			gc := f.sub.OffsetCol + c - 1
			t := InitialTemperature(gr, gc)
			f.temp[0].Set(r, c, t)
			f.temp[1].Set(r, c, t)
			f.kappa.Set(r, c, DiffusivityAt(globalCols, gr, gc))
		}
	}
}
