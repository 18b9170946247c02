package solver

import "github.com/Claxl/Parallel-Computing2023/internal/field"

// stencilStep advances every interior cell by one explicit forward-Euler
// step of the diffusion equation with spatially varying diffusivity:
//
//	next = c + K*dt*((up + down + left + right) - 4c)
//
// The halo must be fully populated (exchange plus boundary fill) before the
// call. Reads `current` and the diffusivity only; writes `next` only. A dt
// violating 4*dt*K < 1 diverges; that is not detected here.
func stencilStep(f *field.Field, dt float64) {
	cur, next, kappa := f.Current(), f.Next(), f.Diffusivity()
	for r := 1; r <= cur.Rows(); r++ {
		for c := 1; c <= cur.Cols(); c++ {
			center := cur.At(r, c)
			sum := cur.At(r-1, c) + cur.At(r+1, c) + cur.At(r, c-1) + cur.At(r, c+1)
			next.Set(r, c, center+kappa.At(r, c)*dt*(sum-4*center))
		}
	}
}
