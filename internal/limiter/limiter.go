// Package limiter runs tasks with a fixed upper bound on parallelism.
//
// Admission is strictly FIFO by submission order: a finished task hands its
// slot directly to the head of the wait queue, so a new submission can never
// overtake a queued one.
package limiter

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// DefaultMaxConcurrent matches the daemon-friendly probe fan-out.
const DefaultMaxConcurrent = 15

// ErrTaskPanicked wraps a panic recovered from a task.
var ErrTaskPanicked = errors.New("limiter: task panicked")

// Limiter bounds the number of concurrently running tasks.
type Limiter struct {
	mu     sync.Mutex
	max    int
	active int
	queue  []func()
}

// New creates a limiter admitting at most maxConcurrent tasks at once.
// Values below 1 are raised to 1.
func New(maxConcurrent int) *Limiter {
	if maxConcurrent < 1 {
		maxConcurrent = 1
	}
	return &Limiter{max: maxConcurrent}
}

// Task is a unit of work run under the limiter.
type Task[T any] func(ctx context.Context) (T, error)

// Future is the pending result of a submitted task.
type Future[T any] struct {
	done chan struct{}
	val  T
	err  error
}

// Done is closed once the task has finished (or was skipped because its
// context ended while it was still queued).
func (f *Future[T]) Done() <-chan struct{} { return f.done }

// Result blocks until the task finishes.
func (f *Future[T]) Result() (T, error) {
	<-f.done
	return f.val, f.err
}

// Wait blocks until the task finishes or ctx ends. An ended ctx abandons the
// wait only; the task keeps its slot until it returns.
func (f *Future[T]) Wait(ctx context.Context) (T, error) {
	select {
	case <-f.done:
		return f.val, f.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// Submit queues task on l. The task runs immediately if a slot is free.
// If ctx ends before the task is admitted, the task is not run and the future
// resolves with ctx.Err(). A failing or panicking task only affects its own future.
func Submit[T any](ctx context.Context, l *Limiter, task Task[T]) *Future[T] {
	f := &Future[T]{done: make(chan struct{})}
	l.admit(func() {
		defer l.release()
		defer close(f.done)
		if err := ctx.Err(); err != nil {
			f.err = err
			return
		}
		f.val, f.err = safeRun(ctx, task)
	})
	return f
}

func safeRun[T any](ctx context.Context, task Task[T]) (val T, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrTaskPanicked, r)
		}
	}()
	return task(ctx)
}

func (l *Limiter) admit(run func()) {
	l.mu.Lock()
	if l.active < l.max {
		l.active++
		l.mu.Unlock()
		go run()
		return
	}
	l.queue = append(l.queue, run)
	l.mu.Unlock()
}

// release hands the finishing task's slot to the next queued task, if any.
func (l *Limiter) release() {
	l.mu.Lock()
	if len(l.queue) == 0 {
		l.active--
		l.mu.Unlock()
		return
	}
	next := l.queue[0]
	l.queue[0] = nil
	l.queue = l.queue[1:]
	l.mu.Unlock()
	go next()
}

// Max returns the configured bound.
func (l *Limiter) Max() int { return l.max }

// Active returns the number of running tasks.
func (l *Limiter) Active() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.active
}

// Queued returns the number of tasks waiting for a slot.
func (l *Limiter) Queued() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.queue)
}
