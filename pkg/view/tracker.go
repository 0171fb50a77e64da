package view

import "context"

// Tracker stamps requests so that only the latest one may land. Starting a
// request supersedes and cancels the previous one; closing the tracker
// supersedes everything.
type Tracker struct {
	gen    uint64
	cancel context.CancelFunc
	closed bool
}

// Begin supersedes any request in flight and returns the context and stamp
// of a new one
func (t *Tracker) Begin() (context.Context, uint64) {
	t.Abort()
	ctx, cancel := context.WithCancel(context.Background())
	t.cancel = cancel
	return ctx, t.gen
}

// Abort supersedes and cancels the request in flight
func (t *Tracker) Abort() {
	t.gen++
	if t.cancel != nil {
		t.cancel()
		t.cancel = nil
	}
}

// Current reports whether stamp belongs to the latest request of an open tracker
func (t *Tracker) Current(stamp uint64) bool {
	return !t.closed && stamp == t.gen
}

// Finish releases the context of the current request
func (t *Tracker) Finish(stamp uint64) {
	if t.Current(stamp) && t.cancel != nil {
		t.cancel()
		t.cancel = nil
	}
}

// Close supersedes everything. It cannot be undone.
func (t *Tracker) Close() {
	t.closed = true
	t.Abort()
}

// Closed reports whether Close was called
func (t *Tracker) Closed() bool {
	return t.closed
}
