package tasks

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPoolRunsAndTracksTasks(t *testing.T) {
	p := NewPool(2, 10, time.Second, nil)
	p.Start()

	var ran atomic.Int32
	for i := 0; i < 5; i++ {
		require.True(t, p.Submit(Task{Name: "ok", Run: func(ctx context.Context) error {
			ran.Add(1)
			return nil
		}}))
	}
	require.True(t, p.Submit(Task{Name: "bad", Run: func(ctx context.Context) error {
		return errors.New("boom")
	}}))
	require.True(t, p.Submit(Task{Name: "panics", Run: func(ctx context.Context) error {
		panic("unexpected")
	}}))

	require.NoError(t, p.Shutdown(context.Background()))

	stats := p.Stats()
	assert.Equal(t, int32(5), ran.Load())
	assert.Equal(t, int64(5), stats.Completed)
	assert.Equal(t, int64(2), stats.Failed)
	assert.Equal(t, int64(0), stats.InFlight)
}

func TestPoolRejectsWhenFull(t *testing.T) {
	p := NewPool(1, 1, 0, nil)
	// Not started: the single slot fills and the next submission is rejected.
	assert.True(t, p.Submit(Task{Name: "a", Run: func(ctx context.Context) error { return nil }}))
	assert.False(t, p.Submit(Task{Name: "b", Run: func(ctx context.Context) error { return nil }}))
	assert.Equal(t, int64(1), p.Stats().Rejected)

	p.Start()
	require.NoError(t, p.Shutdown(context.Background()))
	assert.Equal(t, int64(1), p.Stats().Completed)
}

func TestPoolRejectsAfterShutdown(t *testing.T) {
	p := NewPool(1, 1, 0, nil)
	p.Start()
	require.NoError(t, p.Shutdown(context.Background()))

	assert.False(t, p.Submit(Task{Name: "late", Run: func(ctx context.Context) error { return nil }}))
	assert.ErrorIs(t, p.Shutdown(context.Background()), ErrPoolClosed)
}

func TestPoolShutdownTimeoutCancelsTasks(t *testing.T) {
	p := NewPool(1, 1, 0, nil)
	p.Start()

	started := make(chan struct{})
	require.True(t, p.Submit(Task{Name: "slow", Run: func(ctx context.Context) error {
		close(started)
		<-ctx.Done()
		return ctx.Err()
	}}))
	<-started

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := p.Shutdown(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, int64(1), p.Stats().Failed)
}

func TestPoolTaskTimeout(t *testing.T) {
	p := NewPool(1, 1, 10*time.Millisecond, nil)
	p.Start()

	var got error
	done := make(chan struct{})
	require.True(t, p.Submit(Task{Name: "bounded", Run: func(ctx context.Context) error {
		<-ctx.Done()
		got = ctx.Err()
		close(done)
		return nil
	}}))
	<-done
	require.NoError(t, p.Shutdown(context.Background()))
	assert.ErrorIs(t, got, context.DeadlineExceeded)
}
