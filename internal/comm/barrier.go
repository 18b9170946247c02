package comm

import (
	"context"
	"sync"
)

// Barrier is a reusable counting barrier for a fixed-size group.
//
// Each generation is represented by a channel that the last arriver closes,
// releasing everyone blocked on it. The barrier is reusable: arrival n
// resets the count and installs a fresh generation channel before releasing
// the old one, so a fast rank re-entering Wait joins the next generation.
type Barrier struct {
	n int

	mu    sync.Mutex
	count int
	gen   chan struct{}
}

// NewBarrier creates a barrier for a group of n ranks.
func NewBarrier(n int) *Barrier {
	return &Barrier{n: n, gen: make(chan struct{})}
}

// Wait blocks until all n ranks have called Wait for the current
// generation, or ctx is cancelled. A cancelled wait leaves the barrier
// unusable for the affected generation, which is fine: cancellation is a
// whole-run abort and no rank will wait again.
func (b *Barrier) Wait(ctx context.Context) error {
	b.mu.Lock()
	gen := b.gen
	b.count++
	if b.count == b.n {
		b.count = 0
		b.gen = make(chan struct{})
		close(gen)
		b.mu.Unlock()
		return nil
	}
	b.mu.Unlock()

	select {
	case <-gen:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
