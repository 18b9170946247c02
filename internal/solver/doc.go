// Package solver implements the SPMD heat-diffusion run.
//
// One goroutine per rank executes the same loop over its own subgrid:
//
//  1. snapshot (on the configured cadence, the state entering the iteration)
//  2. halo exchange with the four logical neighbors
//  3. reflective boundary fill on global domain edges
//  4. five-point stencil update into the next buffer
//  5. buffer swap
//
// ORDERING INVARIANTS:
//
// Within an iteration, exchange -> boundary fill -> stencil -> swap is a
// strict sequence; the stencil never reads a halo cell before every
// transfer for that iteration has been observed.
//
// Across iterations, a rank's iteration-k exchange sees its neighbors'
// iteration-k interior values. No extra barrier enforces this: the paired
// point-to-point transfers are themselves the synchronization point, and
// every message carries its iteration tag so drift is detected rather than
// silently absorbed.
//
// FAILURE MODEL:
//
// There is no partial-failure mode. The rank group runs under one errgroup
// with a shared context; the first RunError cancels the context and every
// other rank unblocks at its next fabric call. Configuration errors are
// special-cased: rank 0 parses and validates alone, then broadcasts either
// the parameters or the failure, so a bad configuration aborts the whole
// group before any field is allocated instead of hanging the others on the
// first collective.
package solver
