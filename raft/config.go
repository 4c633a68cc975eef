package raft

import (
	"errors"
	"fmt"
	"net/url"
	"time"

	itoml "github.com/raftcommit/raftcommit/toml"
)

// DefaultCommitTimeout is the default time a writer waits for a quorum.
const DefaultCommitTimeout = 5 * time.Second

// Config represents the cluster as seen by the commit gate.
type Config struct {
	// Cluster identifier. Acknowledgments are only accepted from nodes of
	// the same cluster.
	ClusterID uint64 `toml:"cluster-id"`

	// List of nodes in the cluster, the local node included.
	Nodes []*Node `toml:"nodes"`

	// CommitTimeout bounds how long a writer waits for a quorum.
	// Zero waits until the writer's context is done.
	CommitTimeout itoml.Duration `toml:"commit-timeout"`
}

// NewConfig returns a config with defaults.
func NewConfig() Config {
	return Config{CommitTimeout: itoml.Duration(DefaultCommitTimeout)}
}

// ClusterSize returns the number of nodes in the cluster.
func (c *Config) ClusterSize() int { return len(c.Nodes) }

// Threshold returns the number of follower acknowledgments needed for an
// entry to be committed in this cluster.
func (c *Config) Threshold() int { return QuorumThreshold(c.ClusterSize()) }

// QuorumThreshold returns the number of acknowledgments, beyond the leader's
// own replica, that make a majority of clusterSize nodes.
func QuorumThreshold(clusterSize int) int {
	if clusterSize < 1 {
		return 0
	}
	return clusterSize / 2
}

// NodeByID returns a node by identifier.
func (c *Config) NodeByID(id uint64) *Node {
	for _, n := range c.Nodes {
		if n.ID == id {
			return n
		}
	}
	return nil
}

// NodeByURL returns a node by URL.
func (c *Config) NodeByURL(u string) *Node {
	for _, n := range c.Nodes {
		if n.URL == u {
			return n
		}
	}
	return nil
}

// Validate returns an error if the config is invalid.
// The cluster needs at least one node and every node needs a unique id and URL.
func (c *Config) Validate() error {
	if len(c.Nodes) == 0 {
		return errors.New("at least one node required")
	} else if c.CommitTimeout < 0 {
		return errors.New("commit timeout must not be negative")
	}

	ids := make(map[uint64]struct{}, len(c.Nodes))
	urls := make(map[string]struct{}, len(c.Nodes))
	for _, n := range c.Nodes {
		if err := n.Validate(); err != nil {
			return err
		}
		if _, ok := ids[n.ID]; ok {
			return fmt.Errorf("node id already exists: %d", n.ID)
		}
		if _, ok := urls[n.URL]; ok {
			return fmt.Errorf("node url already in use: %s", n.URL)
		}
		ids[n.ID], urls[n.URL] = struct{}{}, struct{}{}
	}
	return nil
}

// Node represents a single machine in the raft cluster.
type Node struct {
	ID  uint64 `toml:"id"`
	URL string `toml:"url"`
}

// Validate returns an error if the node has no id or an unparsable URL.
func (n *Node) Validate() error {
	if n.ID == 0 {
		return errors.New("invalid node id")
	} else if n.URL == "" {
		return errors.New("node url required")
	}
	if _, err := url.Parse(n.URL); err != nil {
		return fmt.Errorf("node %d: %w", n.ID, err)
	}
	return nil
}
