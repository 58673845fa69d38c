package async

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	mu   sync.Mutex
	seen map[string]error
}

func (r *recorder) ObserveJob(name string, err error, _ time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.seen == nil {
		r.seen = map[string]error{}
	}
	r.seen[name] = err
}

func TestWorkerQueueRunsAndDrains(t *testing.T) {
	obs := &recorder{}
	q := NewWorkerQueue(nil, WithWorkers(2), WithQueueSize(8), WithObserver(obs))

	var ran atomic.Int32
	for i := 0; i < 5; i++ {
		require.NoError(t, q.Enqueue(context.Background(), Job{
			Name: "archive",
			Run: func(context.Context) error {
				ran.Add(1)
				return nil
			},
		}))
	}
	q.Shutdown(context.Background())
	assert.Equal(t, int32(5), ran.Load())
}

func TestWorkerQueueRecoversPanics(t *testing.T) {
	obs := &recorder{}
	q := NewWorkerQueue(nil, WithWorkers(1), WithObserver(obs))
	require.NoError(t, q.Enqueue(context.Background(), Job{Name: "boom", Run: func(context.Context) error { panic("x") }}))
	require.NoError(t, q.Enqueue(context.Background(), Job{Name: "fails", Run: func(context.Context) error { return errors.New("no") }}))
	require.NoError(t, q.Enqueue(context.Background(), Job{Name: "after"}))
	q.Shutdown(context.Background())

	obs.mu.Lock()
	defer obs.mu.Unlock()
	assert.ErrorContains(t, obs.seen["boom"], "panicked")
	assert.Error(t, obs.seen["fails"])
	assert.NoError(t, obs.seen["after"])
}

func TestWorkerQueueTimeoutReachesJob(t *testing.T) {
	q := NewWorkerQueue(nil, WithWorkers(1), WithProcessTimeout(20*time.Millisecond))
	done := make(chan error, 1)
	require.NoError(t, q.Enqueue(context.Background(), Job{Name: "slow", Run: func(ctx context.Context) error {
		<-ctx.Done()
		done <- ctx.Err()
		return ctx.Err()
	}}))
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.DeadlineExceeded)
	case <-time.After(2 * time.Second):
		t.Fatal("job never saw its deadline")
	}
	q.Shutdown(context.Background())
}

func TestEnqueueAfterShutdown(t *testing.T) {
	q := NewWorkerQueue(nil)
	q.Shutdown(context.Background())
	q.Shutdown(context.Background())
	assert.ErrorIs(t, q.Enqueue(context.Background(), Job{Name: "late"}), ErrClosed)
}

func TestEnqueueFullHonorsContext(t *testing.T) {
	block := make(chan struct{})
	q := NewWorkerQueue(nil, WithWorkers(1), WithQueueSize(1))
	defer func() {
		close(block)
		q.Shutdown(context.Background())
	}()

	wait := func(context.Context) error { <-block; return nil }
	require.NoError(t, q.Enqueue(context.Background(), Job{Name: "a", Run: wait}))
	// the worker may or may not have picked up "a" yet; fill until full
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	var err error
	for i := 0; i < 3 && err == nil; i++ {
		err = q.Enqueue(ctx, Job{Name: "b", Run: wait})
	}
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestInlineRunsInCaller(t *testing.T) {
	called := false
	err := Inline{}.Enqueue(context.Background(), Job{Run: func(context.Context) error { called = true; return nil }})
	require.NoError(t, err)
	assert.True(t, called)
}
