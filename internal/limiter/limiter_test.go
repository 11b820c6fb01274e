package limiter

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

func TestSubmit_NeverExceedsMax(t *testing.T) {
	const (
		maxConcurrent = 3
		tasks         = 60
	)
	l := New(maxConcurrent)

	var running, peak, completed atomic.Int32
	futures := make([]*Future[int], 0, tasks)
	for i := 0; i < tasks; i++ {
		i := i
		futures = append(futures, Submit(context.Background(), l, func(ctx context.Context) (int, error) {
			n := running.Add(1)
			for {
				p := peak.Load()
				if n <= p || peak.CompareAndSwap(p, n) {
					break
				}
			}
			time.Sleep(2 * time.Millisecond)
			running.Add(-1)
			completed.Add(1)
			return i, nil
		}))
	}

	for i, f := range futures {
		v, err := f.Result()
		require.NoError(t, err)
		assert.Equal(t, i, v)
	}

	assert.LessOrEqual(t, peak.Load(), int32(maxConcurrent))
	assert.Equal(t, int32(tasks), completed.Load())
	assert.Equal(t, 0, l.Active())
	assert.Equal(t, 0, l.Queued())
}

func TestSubmit_FIFOAdmission(t *testing.T) {
	l := New(1)

	gate := make(chan struct{})
	blocker := Submit(context.Background(), l, func(ctx context.Context) (struct{}, error) {
		<-gate
		return struct{}{}, nil
	})

	var mu sync.Mutex
	var order []int
	futures := make([]*Future[struct{}], 0, 10)
	for i := 0; i < 10; i++ {
		i := i
		futures = append(futures, Submit(context.Background(), l, func(ctx context.Context) (struct{}, error) {
			mu.Lock()
			order = append(order, i)
			mu.Unlock()
			return struct{}{}, nil
		}))
	}
	assert.Equal(t, 10, l.Queued())

	close(gate)
	_, err := blocker.Result()
	require.NoError(t, err)
	for _, f := range futures {
		_, err := f.Result()
		require.NoError(t, err)
	}

	assert.Equal(t, []int{0, 1, 2, 3, 4, 5, 6, 7, 8, 9}, order)
}

func TestSubmit_FailureDoesNotPoisonQueue(t *testing.T) {
	l := New(1)
	boom := errors.New("boom")

	failing := Submit(context.Background(), l, func(ctx context.Context) (int, error) {
		return 0, boom
	})
	panicking := Submit(context.Background(), l, func(ctx context.Context) (int, error) {
		panic("kaboom")
	})
	ok := Submit(context.Background(), l, func(ctx context.Context) (int, error) {
		return 42, nil
	})

	_, err := failing.Result()
	assert.ErrorIs(t, err, boom)

	_, err = panicking.Result()
	assert.ErrorIs(t, err, ErrTaskPanicked)

	v, err := ok.Result()
	require.NoError(t, err)
	assert.Equal(t, 42, v)
	assert.Equal(t, 0, l.Active())
}

func TestSubmit_CancelledWhileQueued(t *testing.T) {
	l := New(1)

	gate := make(chan struct{})
	blocker := Submit(context.Background(), l, func(ctx context.Context) (int, error) {
		<-gate
		return 1, nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	var ran atomic.Bool
	queued := Submit(ctx, l, func(ctx context.Context) (int, error) {
		ran.Store(true)
		return 2, nil
	})
	cancel()
	close(gate)

	_, err := blocker.Result()
	require.NoError(t, err)
	_, err = queued.Result()
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, ran.Load(), "task admitted after its context ended must not run")
}

func TestFuture_WaitHonoursContext(t *testing.T) {
	l := New(1)
	gate := make(chan struct{})
	defer close(gate)

	f := Submit(context.Background(), l, func(ctx context.Context) (int, error) {
		<-gate
		return 1, nil
	})

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err := f.Wait(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestNew_ClampsMax(t *testing.T) {
	assert.Equal(t, 1, New(0).Max())
	assert.Equal(t, 1, New(-4).Max())
	assert.Equal(t, DefaultMaxConcurrent, New(DefaultMaxConcurrent).Max())
}
