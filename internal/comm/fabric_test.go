package comm

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Claxl/Parallel-Computing2023/internal/grid"
)

func TestFabric_PairedHaloTransfer(t *testing.T) {
	topo, err := grid.NewTopology(2) // 2x1: rank 0 above rank 1
	require.NoError(t, err)
	f := New(topo)
	ctx := context.Background()

	a, b := f.Endpoint(0), f.Endpoint(1)

	// Both ranks send before either receives; one-deep buffers mean
	// neither send can block.
	require.NoError(t, a.SendHalo(ctx, grid.Down, HaloMessage{Iteration: 3, Values: []float64{1, 2}}))
	require.NoError(t, b.SendHalo(ctx, grid.Up, HaloMessage{Iteration: 3, Values: []float64{9, 8}}))

	got, err := b.RecvHalo(ctx, grid.Up)
	require.NoError(t, err)
	assert.Equal(t, 3, got.Iteration)
	assert.Equal(t, []float64{1, 2}, got.Values)

	got, err = a.RecvHalo(ctx, grid.Down)
	require.NoError(t, err)
	assert.Equal(t, []float64{9, 8}, got.Values)
}

func TestFabric_NoEdgeOffTheDomain(t *testing.T) {
	topo, err := grid.NewTopology(2)
	require.NoError(t, err)
	f := New(topo)
	ctx := context.Background()

	ep := f.Endpoint(0)
	assert.Error(t, ep.SendHalo(ctx, grid.Up, HaloMessage{}), "rank 0 has no up neighbor")
	_, err = ep.RecvHalo(ctx, grid.Left)
	assert.Error(t, err, "2x1 topology has no lateral edges")
}

func TestFabric_RecvObservesAbort(t *testing.T) {
	topo, err := grid.NewTopology(2)
	require.NoError(t, err)
	f := New(topo)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := f.Endpoint(1).RecvHalo(ctx, grid.Up)
		done <- err
	}()
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("receive did not observe cancellation")
	}
}

func TestFabric_BcastDeliversPayload(t *testing.T) {
	topo, err := grid.NewTopology(3)
	require.NoError(t, err)
	f := New(topo)
	ctx := context.Background()

	type setup struct{ Rows int }
	results := make(chan any, 2)
	for rank := 1; rank < 3; rank++ {
		rank := rank
		go func() {
			payload, err := f.Endpoint(rank).Bcast(ctx, nil, nil)
			require.NoError(t, err)
			results <- payload
		}()
	}

	payload, err := f.Endpoint(0).Bcast(ctx, &setup{Rows: 64}, nil)
	require.NoError(t, err)
	assert.Equal(t, 64, payload.(*setup).Rows)

	for i := 0; i < 2; i++ {
		select {
		case got := <-results:
			assert.Equal(t, 64, got.(*setup).Rows)
		case <-time.After(2 * time.Second):
			t.Fatal("rank did not receive broadcast")
		}
	}
}

func TestFabric_BcastDistributesFailure(t *testing.T) {
	topo, err := grid.NewTopology(2)
	require.NoError(t, err)
	f := New(topo)
	ctx := context.Background()

	parseErr := errors.New("bad configuration")
	errs := make(chan error, 1)
	go func() {
		_, err := f.Endpoint(1).Bcast(ctx, nil, nil)
		errs <- err
	}()

	_, err = f.Endpoint(0).Bcast(ctx, nil, parseErr)
	assert.ErrorIs(t, err, parseErr, "root sees its own failure")

	select {
	case err := <-errs:
		assert.ErrorIs(t, err, parseErr, "non-root sees the root's failure")
	case <-time.After(2 * time.Second):
		t.Fatal("rank did not receive broadcast failure")
	}
}
