package raft

import (
	"sync"

	"go.uber.org/zap"
)

// ErrMsgLeadershipLost is the outcome message given to every request that is
// still waiting when the registry is cleared on step-down.
const ErrMsgLeadershipLost = "no longer leader: commit aborted on step-down"

// EntryState describes what the registry holds for a log index.
type EntryState int

const (
	// EntryEmpty means there is no entry for the index.
	EntryEmpty EntryState = iota
	// EntryPlaceholder means replication is in flight but no waiter is attached.
	EntryPlaceholder
	// EntryAttached means a CommitRequest is waiting on the index.
	EntryAttached
)

func (s EntryState) String() string {
	switch s {
	case EntryPlaceholder:
		return "placeholder"
	case EntryAttached:
		return "attached"
	default:
		return "empty"
	}
}

// entry is a registry slot. req is only set when state is EntryAttached.
type entry struct {
	state EntryState
	req   *CommitRequest
}

// Registry maps log indexes to the commit requests waiting on them. It
// coordinates the goroutines delivering follower acknowledgments with the
// writers blocked on a quorum.
//
// The registry never owns a CommitRequest: the writer that created it stays
// responsible for it, and the registry forgets the pointer as soon as the
// entry is removed. A writer that stops waiting on its own (timeout or
// cancellation) must call Remove, since the registry does not clean up
// entries that never reach a majority.
type Registry struct {
	mu      sync.Mutex
	entries map[uint64]entry

	// Logger is used for step-down and stale acknowledgment events.
	// If nil, logging is disabled.
	Logger *zap.Logger

	// Metrics records registry activity. If nil, no metrics are recorded.
	Metrics *Metrics
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		entries: make(map[uint64]entry),
		Logger:  zap.NewNop(),
	}
}

// init lazily creates the entry map so a zero Registry is usable.
func (r *Registry) init() {
	if r.entries == nil {
		r.entries = make(map[uint64]entry)
	}
}

func (r *Registry) logger() *zap.Logger {
	if r.Logger == nil {
		return zap.NewNop()
	}
	return r.Logger
}

// Allocate inserts a placeholder for index, marking that a replication round
// for it has started before any writer waits on it. It is a no-op if the
// index already has an entry.
func (r *Registry) Allocate(index uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.entries[index]; ok {
		return
	}
	r.init()
	r.entries[index] = entry{state: EntryPlaceholder}
	r.Metrics.setOutstanding(len(r.entries))
}

// Set attaches req to index. The request is inserted if the index has no
// entry and attached if it holds a placeholder. If a request is already
// attached the call is a no-op and the first request wins.
// Returns true if req is the request attached to index after the call.
func (r *Registry) Set(index uint64, req *CommitRequest) bool {
	if req == nil {
		return false
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if e, ok := r.entries[index]; ok && e.state == EntryAttached {
		return e.req == req
	}
	r.init()
	r.entries[index] = entry{state: EntryAttached, req: req}
	r.Metrics.setOutstanding(len(r.entries))
	return true
}

// RecordAcknowledgment records a follower acknowledgment for index and
// returns the number of acknowledgments still needed. Zero means the entry
// was committed by this call and has been removed from the registry. -1 means
// there is no request waiting on index, which is expected for duplicate or
// late acknowledgments.
func (r *Registry) RecordAcknowledgment(index uint64) int {
	remaining := r.recordAcknowledgment(index)
	r.Metrics.observeAck(remaining)
	if remaining < 0 {
		r.logger().Debug("Ignoring acknowledgment with no waiting request", zap.Uint64("index", index))
	}
	return remaining
}

func (r *Registry) recordAcknowledgment(index uint64) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.entries[index]
	if !ok || e.state != EntryAttached {
		return unconfigured
	}

	e.req.RecordAcknowledgment()
	remaining := e.req.RemainingToCommit()
	if remaining == 0 {
		delete(r.entries, index)
		r.Metrics.setOutstanding(len(r.entries))
	}
	return remaining
}

// NeedsReplication returns true if entries after lastReplicatedIndex should be
// replicated. It returns false when there is nothing new to replicate or when
// a round for the next index is already starting (a placeholder without a
// waiter).
func (r *Registry) NeedsReplication(appliedIndex, lastReplicatedIndex uint64) bool {
	if appliedIndex <= lastReplicatedIndex {
		return false
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.entries[lastReplicatedIndex+1]
	return !ok || e.state != EntryPlaceholder
}

// StartReplication makes the same decision as NeedsReplication and, when a
// round is needed, allocates a placeholder for lastReplicatedIndex+1 under the
// same lock. Concurrent triggers therefore start at most one round for an
// index that has no waiter yet.
func (r *Registry) StartReplication(appliedIndex, lastReplicatedIndex uint64) bool {
	if appliedIndex <= lastReplicatedIndex {
		return false
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	next := lastReplicatedIndex + 1
	e, ok := r.entries[next]
	if ok && e.state == EntryPlaceholder {
		return false
	}
	if !ok {
		r.init()
		r.entries[next] = entry{state: EntryPlaceholder}
		r.Metrics.setOutstanding(len(r.entries))
	}
	return true
}

// Clear fails every waiting request with ErrMsgLeadershipLost, drops all
// placeholders and empties the registry. It must be called when the node
// stops being the leader. Returns the number of waiters woken.
func (r *Registry) Clear() int {
	n, dropped := r.clear()
	r.Metrics.observeAborted(n)
	if n > 0 || dropped > 0 {
		r.logger().Info("Failed outstanding commit requests on step-down",
			zap.Int("waiters", n), zap.Int("placeholders", dropped))
	}
	return n
}

func (r *Registry) clear() (woken, dropped int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, e := range r.entries {
		if e.state != EntryAttached {
			dropped++
			continue
		}
		if e.req.Notify(Outcome{Message: ErrMsgLeadershipLost}) {
			woken++
		}
	}
	r.entries = make(map[uint64]entry)
	r.Metrics.setOutstanding(0)
	return woken, dropped
}

// Remove deletes the entry for index if req is the request attached to it.
// Writers call it after giving up on a wait. Returns true if an entry was removed.
func (r *Registry) Remove(index uint64, req *CommitRequest) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.entries[index]
	if !ok || e.state != EntryAttached || e.req != req {
		return false
	}
	delete(r.entries, index)
	r.Metrics.setOutstanding(len(r.entries))
	return true
}

// State returns the state of the entry for index.
func (r *Registry) State(index uint64) EntryState {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.entries[index]
	if !ok {
		return EntryEmpty
	}
	return e.state
}

// Len returns the number of entries, placeholders included.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}
