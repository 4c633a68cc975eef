package main

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
	"github.com/raftcommit/raftcommit/logger"
	"github.com/raftcommit/raftcommit/raft"
)

const (
	// DefaultBindAddress is the address the daemon serves on if none is specified.
	DefaultBindAddress = ":8089"

	// DefaultNodeURL is the URL of the only node of the default cluster.
	DefaultNodeURL = "http://localhost:8089/raft"
)

// Config represents the configuration of the daemon. Logging is set from
// flags and the environment only; the file describes the node and its cluster.
type Config struct {
	BindAddress string        `toml:"bind-address"`
	Logging     logger.Config `toml:"-"`
	Raft        raft.Config   `toml:"raft"`
}

// NewConfig returns an instance of Config with defaults. The default cluster
// has a single node, which commits every entry as soon as it is written.
func NewConfig() Config {
	c := Config{
		BindAddress: DefaultBindAddress,
		Logging:     logger.NewConfig(),
		Raft:        raft.NewConfig(),
	}
	c.Raft.Nodes = []*raft.Node{{ID: 1, URL: DefaultNodeURL}}
	return c
}

// ParseConfigFile decodes the TOML file at path over a default config.
func ParseConfigFile(path string) (Config, error) {
	c := NewConfig()
	// Nodes from the file replace the default cluster rather than extend it.
	c.Raft.Nodes = nil

	b, err := os.ReadFile(path)
	if err != nil {
		return c, err
	}
	md, err := toml.Decode(string(b), &c)
	if err != nil {
		return c, fmt.Errorf("parse %s: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return c, fmt.Errorf("parse %s: unknown key %q", path, undecoded[0].String())
	}
	return c, nil
}

// Validate returns an error if the config is invalid.
func (c *Config) Validate() error {
	if c.BindAddress == "" {
		return fmt.Errorf("bind address required")
	}
	if err := c.Raft.Validate(); err != nil {
		return fmt.Errorf("raft: %w", err)
	}
	return nil
}
