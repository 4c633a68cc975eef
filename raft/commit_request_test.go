package raft_test

import (
	"math/rand"
	"testing"

	"github.com/raftcommit/raftcommit/raft"
)

// Ensure a new request is unconfigured and counts the leader as a replica.
func TestCommitRequest_New(t *testing.T) {
	r := raft.NewCommitRequest(10)
	if r.Index() != 10 {
		t.Fatalf("unexpected index: %d", r.Index())
	} else if r.RemainingToCommit() != -1 {
		t.Fatalf("unexpected remaining: %d", r.RemainingToCommit())
	} else if r.ReplicaCount() != 1 {
		t.Fatalf("unexpected replicas: %d", r.ReplicaCount())
	} else if r.Completed() {
		t.Fatal("expected incomplete request")
	}
}

// Ensure acknowledgments before configuration only count replicas.
func TestCommitRequest_RecordAcknowledgment_Unconfigured(t *testing.T) {
	r := raft.NewCommitRequest(1)
	for i := 0; i < 3; i++ {
		r.RecordAcknowledgment()
	}
	if r.RemainingToCommit() != -1 {
		t.Fatalf("unexpected remaining: %d", r.RemainingToCommit())
	} else if r.ReplicaCount() != 4 {
		t.Fatalf("unexpected replicas: %d", r.ReplicaCount())
	} else if r.Completed() {
		t.Fatal("unconfigured request must not complete")
	}
}

// Ensure the request succeeds exactly on the acknowledgment that takes the
// remaining count from one to zero.
func TestCommitRequest_RecordAcknowledgment_Threshold(t *testing.T) {
	for threshold := 1; threshold <= 5; threshold++ {
		r := raft.NewCommitRequest(1)
		r.ConfigureThreshold(threshold)

		for i := 1; i <= threshold; i++ {
			if r.Completed() {
				t.Fatalf("threshold %d: completed after %d acks", threshold, i-1)
			}
			if n := r.RecordAcknowledgment(); n != i+1 {
				t.Fatalf("threshold %d: unexpected replicas: %d", threshold, n)
			}
		}

		if !r.Completed() {
			t.Fatalf("threshold %d: expected completion", threshold)
		} else if o := r.Outcome(); !o.Succeeded || o.TimedOut || o.Message != "" {
			t.Fatalf("threshold %d: unexpected outcome: %+v", threshold, o)
		}
	}
}

// Ensure acknowledgments after success are harmless.
func TestCommitRequest_RecordAcknowledgment_AfterSuccess(t *testing.T) {
	r := raft.NewCommitRequest(1)
	r.ConfigureThreshold(1)
	r.RecordAcknowledgment()

	if n := r.RecordAcknowledgment(); n != 3 {
		t.Fatalf("unexpected replicas: %d", n)
	} else if r.RemainingToCommit() != 0 {
		t.Fatalf("remaining went below zero: %d", r.RemainingToCommit())
	} else if !r.Succeeded() {
		t.Fatal("expected success")
	}
}

// Ensure a zero threshold commits on the first acknowledgment.
func TestCommitRequest_RecordAcknowledgment_ZeroThreshold(t *testing.T) {
	r := raft.NewCommitRequest(1)
	r.SetRemainingToCommit(0)
	if r.Completed() {
		t.Fatal("configuring must not complete the request")
	}
	r.RecordAcknowledgment()
	if !r.Succeeded() {
		t.Fatal("expected success")
	}
}

// Ensure the replica count is 1+k after k acknowledgments, and the counters
// never move the wrong way.
func TestCommitRequest_Monotonic(t *testing.T) {
	rand := rand.New(rand.NewSource(0))
	for i := 0; i < 50; i++ {
		r := raft.NewCommitRequest(uint64(i + 1))
		r.ConfigureThreshold(rand.Intn(4))

		k := rand.Intn(10)
		prevReplicas, prevRemaining := r.ReplicaCount(), r.RemainingToCommit()
		for j := 0; j < k; j++ {
			r.RecordAcknowledgment()
			if r.ReplicaCount() <= prevReplicas {
				t.Fatalf("replicas decreased: %d -> %d", prevReplicas, r.ReplicaCount())
			} else if r.RemainingToCommit() > prevRemaining || r.RemainingToCommit() < 0 {
				t.Fatalf("remaining moved: %d -> %d", prevRemaining, r.RemainingToCommit())
			}
			prevReplicas, prevRemaining = r.ReplicaCount(), r.RemainingToCommit()
		}
		if r.ReplicaCount() != 1+k {
			t.Fatalf("unexpected replicas: %d, want %d", r.ReplicaCount(), 1+k)
		}
	}
}
