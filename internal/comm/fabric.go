// Package comm is the message-passing fabric for the SPMD rank group.
//
// Every rank runs the same program on its own subgrid; the fabric is the
// only channel between them. It provides exactly the three primitives the
// solver's protocol needs:
//
//   - paired point-to-point halo transfers between adjacent ranks
//   - a one-shot broadcast of the startup parameters from rank 0
//   - a collective barrier (used to seal checkpoint artifacts)
//
// Deadlock freedom for the halo exchange comes from the channel layout:
// each directed edge of the topology gets a dedicated channel with a buffer
// of one. A rank performs at most one send per direction per iteration, so
// sends never block on the neighbor's progress and the exchange cannot
// circular-wait no matter which rank runs first.
//
// Every blocking primitive takes a context. Cancelling it is the collective
// abort: a rank that fails cancels the group context, and every other rank
// unblocks with the context error at its next fabric call. There are no
// retries and no timeouts; a halo transfer that cannot complete is fatal to
// the run.
package comm

import (
	"context"
	"fmt"

	"github.com/Claxl/Parallel-Computing2023/internal/grid"
)

// HaloMessage is one border ring in flight between adjacent ranks.
//
// Iteration tags the sender's loop index so the receiver can assert that
// paired transfers stay aligned: rank A's iteration k must see rank B's
// iteration k interior values, never k-1 or k+1.
type HaloMessage struct {
	Iteration int
	Values    []float64
}

type bcastMessage struct {
	payload any
	err     error
}

// Fabric wires a rank group together. Construct once with New, then hand
// each rank its Endpoint. The channel topology is immutable afterwards.
type Fabric struct {
	topo *grid.Topology

	// halo[rank][d] carries rings arriving at rank's d edge, written by
	// the rank's d-neighbor. Buffered one deep; see package doc.
	halo [][4]chan HaloMessage

	// bcast[rank] carries the startup parameters from rank 0.
	bcast []chan bcastMessage

	barrier *Barrier
}

// New builds the fabric for the given topology. Channels are allocated only
// for edges that exist; a direction that falls off the global domain has no
// channel and must never be sent on.
func New(topo *grid.Topology) *Fabric {
	f := &Fabric{
		topo:    topo,
		halo:    make([][4]chan HaloMessage, topo.Ranks),
		bcast:   make([]chan bcastMessage, topo.Ranks),
		barrier: NewBarrier(topo.Ranks),
	}
	for rank := 0; rank < topo.Ranks; rank++ {
		f.bcast[rank] = make(chan bcastMessage, 1)
		for _, d := range grid.Directions {
			if topo.Neighbor(rank, d) != grid.NoNeighbor {
				f.halo[rank][d] = make(chan HaloMessage, 1)
			}
		}
	}
	return f
}

// Endpoint returns rank's private handle on the fabric.
func (f *Fabric) Endpoint(rank int) *Endpoint {
	return &Endpoint{fabric: f, rank: rank}
}

// Endpoint is one rank's view of the fabric. It is used by exactly one
// goroutine; the fabric behind it is safe for the whole group.
type Endpoint struct {
	fabric *Fabric
	rank   int
}

// Rank returns the owning rank.
func (e *Endpoint) Rank() int { return e.rank }

// Size returns the rank-group size.
func (e *Endpoint) Size() int { return e.fabric.topo.Ranks }

// SendHalo ships msg to the neighbor in direction d, where it arrives on
// that rank's opposite edge. The destination buffer is one deep, so the send
// completes without waiting for the neighbor to have reached its receive.
func (e *Endpoint) SendHalo(ctx context.Context, d grid.Direction, msg HaloMessage) error {
	nb := e.fabric.topo.Neighbor(e.rank, d)
	if nb == grid.NoNeighbor {
		return fmt.Errorf("rank %d has no %s neighbor", e.rank, d)
	}
	select {
	case e.fabric.halo[nb][d.Opposite()] <- msg:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// RecvHalo blocks until the ring arriving at this rank's d edge is
// available, or the run is aborted.
func (e *Endpoint) RecvHalo(ctx context.Context, d grid.Direction) (HaloMessage, error) {
	ch := e.fabric.halo[e.rank][d]
	if ch == nil {
		return HaloMessage{}, fmt.Errorf("rank %d has no %s neighbor", e.rank, d)
	}
	select {
	case msg := <-ch:
		return msg, nil
	case <-ctx.Done():
		return HaloMessage{}, ctx.Err()
	}
}

// Bcast is the one-shot startup broadcast from rank 0.
//
// Rank 0 passes the parsed payload, or the parse/validation error; every
// other rank passes nil for both and receives whatever rank 0 published.
// Distributing the error is the point: a bad configuration must reach every
// rank before any of them allocates a field or enters a collective, so the
// group aborts together instead of hanging the non-root ranks.
func (e *Endpoint) Bcast(ctx context.Context, payload any, perr error) (any, error) {
	if e.rank == 0 {
		msg := bcastMessage{payload: payload, err: perr}
		for rank := 1; rank < e.fabric.topo.Ranks; rank++ {
			select {
			case e.fabric.bcast[rank] <- msg:
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
		return payload, perr
	}
	select {
	case msg := <-e.fabric.bcast[e.rank]:
		return msg.payload, msg.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Barrier blocks until every rank in the group has arrived, or the run is
// aborted.
func (e *Endpoint) Barrier(ctx context.Context) error {
	return e.fabric.barrier.Wait(ctx)
}
