// Package loop provides the single logical UI thread of the portal.
//
// Every task posted to a Loop runs to completion on one goroutine, in post
// order. Work that blocks (network calls, module loads) runs elsewhere and
// posts its completion back with Async, so views, the router and the
// presenter never need their own locks.
package loop

import (
	"context"
	"errors"
	"sync"

	"cluster-portal/pkg/log"
)

// ErrStopped is returned by Do when the loop is no longer running
var ErrStopped = errors.New("loop stopped")

// Loop is a serial task queue. The queue is unbounded so tasks may post
// further tasks without deadlocking.
type Loop struct {
	mu      sync.Mutex
	queue   []func()
	wake    chan struct{}
	stopped chan struct{}
}

// New creates a loop. Call Run to start processing.
func New() *Loop {
	return &Loop{
		wake:    make(chan struct{}, 1),
		stopped: make(chan struct{}),
	}
}

// Post enqueues fn without waiting for it to run
func (l *Loop) Post(fn func()) {
	l.mu.Lock()
	l.queue = append(l.queue, fn)
	l.mu.Unlock()

	select {
	case l.wake <- struct{}{}:
	default:
	}
}

// Do runs fn on the loop and waits for it to finish.
// It must not be called from a task already running on the loop.
func (l *Loop) Do(fn func()) error {
	done := make(chan struct{})
	l.Post(func() {
		defer close(done)
		fn()
	})

	select {
	case <-done:
		return nil
	case <-l.stopped:
		return ErrStopped
	}
}

// Run processes tasks until ctx is cancelled. It may only be called once.
func (l *Loop) Run(ctx context.Context) error {
	defer close(l.stopped)

	for {
		for fn := l.next(); fn != nil; fn = l.next() {
			l.exec(fn)
		}

		select {
		case <-l.wake:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Stopped is closed once Run has returned
func (l *Loop) Stopped() <-chan struct{} {
	return l.stopped
}

func (l *Loop) next() func() {
	l.mu.Lock()
	defer l.mu.Unlock()

	if len(l.queue) == 0 {
		return nil
	}
	fn := l.queue[0]
	l.queue[0] = nil
	l.queue = l.queue[1:]
	return fn
}

func (l *Loop) exec(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			logger := log.WithComponent("loop")
			logger.Error().Interface("panic", r).Msg("Task panicked")
		}
	}()
	fn()
}

// Async runs work on its own goroutine and posts then(result) back to the
// loop. The context is handed to work untouched so callers can cancel it.
func Async[T any](l *Loop, ctx context.Context, work func(context.Context) (T, error), then func(T, error)) {
	go func() {
		v, err := work(ctx)
		l.Post(func() { then(v, err) })
	}()
}
