package raft

import (
	"context"
	"fmt"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/raftcommit/raftcommit/kit/platform/errors"
	"github.com/raftcommit/raftcommit/kit/tracing"
	"go.uber.org/zap"
)

const opCommit = "raft/Committer.Commit"

// Committer is the leader side of the commit gate. Writers block in Commit
// until their entry is acknowledged by a quorum, acknowledgment delivery
// calls Acknowledge, and the leadership hook calls StepDown.
type Committer struct {
	registry    *Registry
	clusterSize int
	threshold   int

	// Timeout bounds every wait. Zero waits until the writer's context is done.
	Timeout time.Duration

	// Clock times waits. If nil, the realtime clock is used.
	Clock clock.Clock

	// Logger receives commit outcomes. If nil, logging is disabled.
	Logger *zap.Logger
}

// NewCommitter returns a committer for the cluster described by c that
// tracks waits in r.
func NewCommitter(r *Registry, c Config) (*Committer, error) {
	if err := c.Validate(); err != nil {
		return nil, &errors.Error{
			Code: errors.EInvalid,
			Msg:  "invalid cluster config",
			Op:   "raft/NewCommitter",
			Err:  err,
		}
	}
	return &Committer{
		registry:    r,
		clusterSize: c.ClusterSize(),
		threshold:   c.Threshold(),
		Timeout:     time.Duration(c.CommitTimeout),
		Logger:      zap.NewNop(),
	}, nil
}

// Registry returns the registry backing the committer.
func (c *Committer) Registry() *Registry { return c.registry }

// Threshold returns the number of follower acknowledgments a commit needs.
func (c *Committer) Threshold() int { return c.threshold }

func (c *Committer) logger() *zap.Logger {
	if c.Logger == nil {
		return zap.NewNop()
	}
	return c.Logger
}

func (c *Committer) clock() clock.Clock {
	if c.Clock == nil {
		return clock.New()
	}
	return c.Clock
}

// Commit registers a wait for index and blocks until it is committed.
// It is Register followed by Wait.
func (c *Committer) Commit(ctx context.Context, index uint64) error {
	req, err := c.Register(index)
	if err != nil {
		return err
	}
	return c.Wait(ctx, req)
}

// Register creates a configured CommitRequest for index and attaches it to
// the registry. Writers register before sending the entry to followers so
// that no acknowledgment finds the index without a waiter.
//
// A single-node cluster needs no acknowledgments; Register then returns a
// request that has already succeeded and is not tracked by the registry.
func (c *Committer) Register(index uint64) (*CommitRequest, error) {
	if index == 0 {
		return nil, &errors.Error{Code: errors.EInvalid, Op: opCommit, Err: ErrInvalidIndex}
	}

	req := NewCommitRequest(index)
	req.SyncRequest.Clock = c.Clock
	req.ConfigureThreshold(c.threshold)

	if c.clusterSize <= 1 {
		req.Notify(Outcome{Succeeded: true})
		return req, nil
	}

	if !c.registry.Set(index, req) {
		return nil, &errors.Error{
			Code: errors.EInvalid,
			Msg:  fmt.Sprintf("index %d", index),
			Op:   opCommit,
			Err:  ErrAlreadyWaiting,
		}
	}
	return req, nil
}

// Wait blocks until req is committed, the committer's timeout elapses, ctx
// is done or the node steps down. On every outcome but success the request
// is removed from the registry, which is the writer's cleanup obligation.
func (c *Committer) Wait(ctx context.Context, req *CommitRequest) error {
	index := req.Index()
	log := c.logger().With(zap.Uint64("index", index))

	span, ctx := tracing.StartSpanFromContext(ctx, opCommit)
	defer span.Finish()
	span.SetTag("index", index)

	start := c.clock().Now()
	o := req.Wait(ctx, c.Timeout)
	c.registry.Metrics.observeCommit(o, c.clock().Since(start))
	span.SetTag("replicas", req.ReplicaCount())

	if o.Succeeded {
		log.Debug("Commit reached quorum", zap.Int("replicas", req.ReplicaCount()))
		return nil
	}

	if c.registry.Remove(index, req) {
		log.Debug("Removed abandoned commit request")
	}

	switch {
	case o.TimedOut:
		log.Warn("Commit timed out waiting for quorum",
			zap.Duration("timeout", c.Timeout),
			zap.Int("replicas", req.ReplicaCount()),
			zap.Int("remaining", req.RemainingToCommit()))
		return tracing.LogError(span, &errors.Error{
			Code: errors.EUnavailable,
			Msg:  fmt.Sprintf("index %d", index),
			Op:   opCommit,
			Err:  ErrCommitTimeout,
		})
	case o.Message == ErrMsgLeadershipLost:
		log.Info("Commit aborted by step-down")
		return tracing.LogError(span, &errors.Error{
			Code: errors.EUnavailable,
			Msg:  o.Message,
			Op:   opCommit,
			Err:  ErrLeadershipLost,
		})
	case ctx.Err() != nil:
		return tracing.LogError(span, &errors.Error{Code: errors.EInternal, Op: opCommit, Err: ctx.Err()})
	default:
		return tracing.LogError(span, &errors.Error{Code: errors.EInternal, Msg: o.Message, Op: opCommit})
	}
}

// Acknowledge records a follower acknowledgment of index. It returns 0 when
// the entry became committed by this acknowledgment, a positive count while
// it is still pending and -1 when nothing waits on the index.
func (c *Committer) Acknowledge(index uint64) int {
	remaining := c.registry.RecordAcknowledgment(index)
	if remaining == 0 {
		c.logger().Debug("Entry committed", zap.Uint64("index", index))
	}
	return remaining
}

// NeedsReplication reports whether a new replication round should start.
func (c *Committer) NeedsReplication(appliedIndex, replicatedIndex uint64) bool {
	return c.registry.NeedsReplication(appliedIndex, replicatedIndex)
}

// Replicate is NeedsReplication that also marks the next index as in
// flight, so that a concurrent trigger does not start the same round.
func (c *Committer) Replicate(appliedIndex, replicatedIndex uint64) bool {
	return c.registry.StartReplication(appliedIndex, replicatedIndex)
}

// StepDown fails all waiting commits. It must be called once when the node
// stops being the leader. Returns the number of writers woken.
func (c *Committer) StepDown() int {
	return c.registry.Clear()
}
