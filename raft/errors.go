package raft

import "errors"

var (
	// ErrCommitTimeout is returned when a quorum was not reached before the
	// commit timeout elapsed.
	ErrCommitTimeout = errors.New("commit timed out")

	// ErrLeadershipLost is returned when the node stepped down while a
	// commit was waiting for its quorum.
	ErrLeadershipLost = errors.New("leadership lost")

	// ErrInvalidIndex is returned when committing log index zero.
	ErrInvalidIndex = errors.New("invalid log index")

	// ErrAlreadyWaiting is returned when another writer is already
	// waiting on the same log index.
	ErrAlreadyWaiting = errors.New("commit already waiting on index")
)
