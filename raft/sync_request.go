package raft

import (
	"context"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
)

// Outcome is the result a waiter observes once a SyncRequest completes.
// Exactly one of Succeeded, TimedOut or a non-empty Message is meaningful.
type Outcome struct {
	Succeeded bool
	TimedOut  bool
	Message   string
}

// SyncRequest is a one-shot completion handle that a single goroutine blocks
// on while other goroutines decide its outcome.
//
// The first completion wins: Notify, a Wait timeout and a Wait cancellation
// all complete the request, and every later completion is ignored.
type SyncRequest struct {
	mu      sync.Mutex
	outcome Outcome
	done    chan struct{}
	closed  bool

	// Clock is used to time waits. If nil, the realtime clock is used.
	Clock clock.Clock
}

// NewSyncRequest returns a new, incomplete SyncRequest.
func NewSyncRequest() *SyncRequest {
	return &SyncRequest{done: make(chan struct{})}
}

// Notify completes the request with o and wakes the waiter.
// It never blocks and is safe to call more than once.
// Returns true if this call completed the request.
func (r *SyncRequest) Notify(o Outcome) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.complete(o)
}

func (r *SyncRequest) complete(o Outcome) bool {
	if r.closed {
		return false
	}
	r.outcome = o
	r.closed = true
	close(r.done)
	return true
}

// Done returns a channel that is closed when the request completes.
func (r *SyncRequest) Done() <-chan struct{} { return r.done }

// Wait blocks until the request is notified, the timeout elapses or ctx is
// done. A non-positive timeout waits without a deadline.
func (r *SyncRequest) Wait(ctx context.Context, timeout time.Duration) Outcome {
	var expired <-chan time.Time
	if timeout > 0 {
		c := r.Clock
		if c == nil {
			c = clock.New()
		}
		t := c.Timer(timeout)
		defer t.Stop()
		expired = t.C
	}

	select {
	case <-r.done:
	case <-expired:
		r.Notify(Outcome{TimedOut: true})
	case <-ctx.Done():
		r.Notify(Outcome{Message: ctx.Err().Error()})
	}
	return r.Outcome()
}

// Outcome returns the current outcome. It is only meaningful once Done is closed.
func (r *SyncRequest) Outcome() Outcome {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.outcome
}

// Completed returns true if the request has been completed.
func (r *SyncRequest) Completed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.closed
}

// Succeeded returns true if the request completed successfully.
func (r *SyncRequest) Succeeded() bool { return r.Outcome().Succeeded }

// TimedOut returns true if the waiter gave up before the request completed.
func (r *SyncRequest) TimedOut() bool { return r.Outcome().TimedOut }

// Message returns the failure reason, if any.
func (r *SyncRequest) Message() string { return r.Outcome().Message }
