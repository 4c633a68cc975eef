package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/raftcommit/raftcommit/kit/cli"
	"github.com/raftcommit/raftcommit/logger"
	"github.com/raftcommit/raftcommit/pkg/lifecycle"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	cmd, err := NewCommand(ctx, viper.New())
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// processOptions are the settings shared by the daemon and the bench.
type processOptions struct {
	logLevel  zapcore.Level
	logFormat string
}

func (o *processOptions) opts() []cli.Opt {
	return []cli.Opt{
		{
			DestP:      &o.logLevel,
			Flag:       "log-level",
			Default:    zapcore.InfoLevel,
			Desc:       "supported log levels are debug, info, warn and error",
			Persistent: true,
		},
		{
			DestP:      &o.logFormat,
			Flag:       "log-format",
			Default:    "auto",
			Desc:       "log format: auto, logfmt, json or console",
			Persistent: true,
		},
	}
}

// NewCommand returns the raftcommitd root command with its bench subcommand.
func NewCommand(ctx context.Context, v *viper.Viper) (*cobra.Command, error) {
	var (
		process     processOptions
		configPath  string
		bindAddress string
	)

	prog := &cli.Program{
		Name: "raftcommitd",
		Run: func() error {
			c := NewConfig()
			if configPath != "" {
				var err error
				if c, err = ParseConfigFile(configPath); err != nil {
					return err
				}
			}
			if bindAddress != "" {
				c.BindAddress = bindAddress
			}
			c.Logging.Level = process.logLevel
			c.Logging.Format = process.logFormat
			return runServer(ctx, c)
		},
		Opts: append(process.opts(),
			cli.Opt{
				DestP: &configPath,
				Flag:  "cluster-config",
				Desc:  "path to a TOML file describing the cluster",
			},
			cli.Opt{
				DestP: &bindAddress,
				Flag:  "bind-address",
				Desc:  "address to serve acknowledgments and metrics on, overrides the cluster config",
			},
		),
	}

	cmd, err := cli.NewCommand(v, prog)
	if err != nil {
		return nil, err
	}
	cmd.Short = "Majority-commit gate for a replicated log"
	cmd.SilenceUsage = true

	bench, err := newBenchCommand(ctx, v, &process)
	if err != nil {
		return nil, err
	}
	cmd.AddCommand(bench)
	return cmd, nil
}

func runServer(ctx context.Context, c Config) error {
	log, err := c.Logging.New(os.Stdout)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()
	ctx = logger.NewContextWithLogger(ctx, log)

	s, err := NewServer(c, log)
	if err != nil {
		return err
	}

	var o lifecycle.Opener
	o.Open(s)
	if err := o.Done(); err != nil {
		log.Error("Failed to start", zap.Error(err))
		return err
	}

	<-ctx.Done()
	logger.FromContext(ctx).Info("Shutting down")
	return s.Close()
}

func newBenchCommand(ctx context.Context, v *viper.Viper, process *processOptions) (*cobra.Command, error) {
	b := NewBench()
	cmd := &cobra.Command{
		Use:   "bench",
		Short: "Drive the commit gate with simulated followers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c := logger.Config{Format: process.logFormat, Level: process.logLevel}
			log, err := c.New(os.Stderr)
			if err != nil {
				return err
			}
			defer func() { _ = log.Sync() }()
			b.Logger = log

			r, err := b.Run(ctx)
			if err != nil {
				return err
			}
			_, err = r.WriteTo(cmd.OutOrStdout())
			return err
		},
	}

	opts := []cli.Opt{
		{DestP: &b.Followers, Flag: "followers", Default: b.Followers, Desc: "number of simulated followers"},
		{DestP: &b.Entries, Flag: "entries", Default: b.Entries, Desc: "number of entries to commit"},
		{DestP: &b.Writers, Flag: "writers", Default: b.Writers, Desc: "number of concurrent writers"},
		{DestP: &b.Lag, Flag: "lag", Default: 0, Desc: "number of followers that never acknowledge"},
		{DestP: &b.HTTP, Flag: "http", Default: false, Desc: "acknowledge over the HTTP transport"},
		{DestP: &b.Timeout, Flag: "commit-timeout", Default: b.Timeout, Desc: "how long a writer waits for a quorum"},
		{DestP: &b.AckRate, Flag: "ack-rate", Default: 0.0, Desc: "acknowledgments per second per follower, 0 is unlimited"},
	}
	if err := cli.BindOptions(v, cmd, opts); err != nil {
		return nil, err
	}
	return cmd, nil
}
