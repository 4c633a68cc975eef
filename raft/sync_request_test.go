package raft_test

import (
	"context"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/raftcommit/raftcommit/raft"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSyncRequest_Notify(t *testing.T) {
	r := raft.NewSyncRequest()

	done := make(chan raft.Outcome)
	go func() { done <- r.Wait(context.Background(), 0) }()

	require.True(t, r.Notify(raft.Outcome{Succeeded: true}))
	o := <-done
	assert.True(t, o.Succeeded)
	assert.False(t, o.TimedOut)
	assert.Empty(t, o.Message)

	// Later completions are ignored.
	assert.False(t, r.Notify(raft.Outcome{Message: "late"}))
	assert.True(t, r.Succeeded())
}

func TestSyncRequest_Wait_AlreadyNotified(t *testing.T) {
	r := raft.NewSyncRequest()
	r.Notify(raft.Outcome{Message: "failed"})

	o := r.Wait(context.Background(), time.Second)
	assert.False(t, o.Succeeded)
	assert.Equal(t, "failed", o.Message)
}

func TestSyncRequest_Wait_Timeout(t *testing.T) {
	mock := clock.NewMock()
	r := raft.NewSyncRequest()
	r.Clock = mock

	done := make(chan raft.Outcome, 1)
	go func() { done <- r.Wait(context.Background(), 5*time.Second) }()

	// Keep advancing until the waiter has created its timer and expired.
	require.Eventually(t, func() bool {
		mock.Add(time.Second)
		return r.Completed()
	}, 5*time.Second, time.Millisecond)

	o := <-done
	assert.True(t, o.TimedOut)
	assert.False(t, o.Succeeded)
	assert.True(t, r.TimedOut())

	// A notification after the timeout does not change the outcome.
	assert.False(t, r.Notify(raft.Outcome{Succeeded: true}))
	assert.False(t, r.Succeeded())
}

func TestSyncRequest_Wait_Canceled(t *testing.T) {
	r := raft.NewSyncRequest()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	o := r.Wait(ctx, 0)
	assert.False(t, o.Succeeded)
	assert.False(t, o.TimedOut)
	assert.Equal(t, context.Canceled.Error(), o.Message)
}

func TestSyncRequest_Done(t *testing.T) {
	r := raft.NewSyncRequest()
	select {
	case <-r.Done():
		t.Fatal("unexpected completion")
	default:
	}

	r.Notify(raft.Outcome{Succeeded: true})
	select {
	case <-r.Done():
	case <-time.After(time.Second):
		t.Fatal("expected completion")
	}
}
