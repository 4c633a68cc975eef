package raft

import "sync"

// unconfigured marks a CommitRequest whose threshold has not been set yet.
const unconfigured = -1

// CommitRequest tracks the outstanding quorum wait for a single log index.
// The leader's own local write counts as the first replica; the request
// succeeds once the configured number of additional acknowledgments arrive.
type CommitRequest struct {
	*SyncRequest

	mu        sync.Mutex
	index     uint64
	remaining int // acknowledgments still needed; -1 until configured
	replicas  int // acknowledgments recorded, including the leader
}

// NewCommitRequest returns an unconfigured request for index.
func NewCommitRequest(index uint64) *CommitRequest {
	return &CommitRequest{
		SyncRequest: NewSyncRequest(),
		index:       index,
		remaining:   unconfigured,
		replicas:    1,
	}
}

// Index returns the log index tracked by the request.
func (r *CommitRequest) Index() uint64 { return r.index }

// ReplicaCount returns the number of replicas recorded so far.
func (r *CommitRequest) ReplicaCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.replicas
}

// RemainingToCommit returns the number of acknowledgments still needed,
// or -1 if the threshold has not been configured.
func (r *CommitRequest) RemainingToCommit() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.remaining
}

// ConfigureThreshold sets the number of additional acknowledgments required
// to reach a majority. Acknowledgments recorded before the threshold is
// configured only increase the replica count.
func (r *CommitRequest) ConfigureThreshold(n int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.remaining = n
}

// SetRemainingToCommit is an alias of ConfigureThreshold. It may also be
// used to re-arm a request.
func (r *CommitRequest) SetRemainingToCommit(n int) { r.ConfigureThreshold(n) }

// RecordAcknowledgment records one more replica of the entry and returns the
// updated replica count. When the remaining count is zero after the update
// the waiter is woken with a successful outcome. Notification happens at
// most once, so calls after success only bump the replica count.
func (r *CommitRequest) RecordAcknowledgment() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.replicas++
	if r.remaining > 0 {
		r.remaining--
	}

	if r.remaining == 0 {
		r.Notify(Outcome{Succeeded: true})
	}
	return r.replicas
}
