// Package testutil provides deterministic helpers for solver tests,
// including an independent serial oracle for the diffusion problem.
package testutil

import (
	"testing"

	"gonum.org/v1/gonum/mat"

	"github.com/Claxl/Parallel-Computing2023/internal/config"
	"github.com/Claxl/Parallel-Computing2023/internal/field"
)

// Params returns a valid parameter set for a small run rooted in a
// per-test temporary directory.
func Params(t *testing.T, rows, cols, maxIteration, frequency int) config.Params {
	t.Helper()
	p := config.Default()
	p.Rows = rows
	p.Cols = cols
	p.MaxIteration = maxIteration
	p.SnapshotFrequency = frequency
	p.OutputDir = t.TempDir()
	return p
}

// ReferenceSolve runs the serial five-point diffusion update on the whole
// global domain and returns the field state entering each requested step.
//
// It is deliberately built on a different representation than the solver
// (dense global matrices with an explicit halo frame, no decomposition), so
// agreement between the two is meaningful. steps counts iterations the same
// way the driver does: the returned matrix is the state after `steps`
// updates of the analytic initial condition.
func ReferenceSolve(rows, cols, steps int, dt float64) *mat.Dense {
	// Halo-framed buffers: interior at 1..rows / 1..cols.
	cur := mat.NewDense(rows+2, cols+2, nil)
	next := mat.NewDense(rows+2, cols+2, nil)
	kappa := mat.NewDense(rows+2, cols+2, nil)
	for r := 1; r <= rows; r++ {
		for c := 1; c <= cols; c++ {
			cur.Set(r, c, field.InitialTemperature(r-1, c-1))
			kappa.Set(r, c, field.DiffusivityAt(cols, r-1, c-1))
		}
	}

	for step := 0; step < steps; step++ {
		// Mirror boundary on all four global edges.
		for c := 1; c <= cols; c++ {
			cur.Set(0, c, cur.At(2, c))
			cur.Set(rows+1, c, cur.At(rows-1, c))
		}
		for r := 1; r <= rows; r++ {
			cur.Set(r, 0, cur.At(r, 2))
			cur.Set(r, cols+1, cur.At(r, cols-1))
		}
		for r := 1; r <= rows; r++ {
			for c := 1; c <= cols; c++ {
				center := cur.At(r, c)
				sum := cur.At(r-1, c) + cur.At(r+1, c) + cur.At(r, c-1) + cur.At(r, c+1)
				next.Set(r, c, center+kappa.At(r, c)*dt*(sum-4*center))
			}
		}
		cur, next = next, cur
	}

	out := mat.NewDense(rows, cols, nil)
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			out.Set(r, c, cur.At(r+1, c+1))
		}
	}
	return out
}
