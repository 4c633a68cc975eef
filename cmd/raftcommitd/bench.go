package main

import (
	"context"
	"fmt"
	"io"
	"net/http/httptest"
	"net/url"
	"sort"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/raftcommit/raftcommit/kit/platform/errors"
	"github.com/raftcommit/raftcommit/raft"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

// Bench drives a leader's commit gate with simulated followers. Writers
// commit entries 1..Entries concurrently while every follower acknowledges
// each entry it is sent, paced by its own rate limiter.
type Bench struct {
	Followers int
	Entries   int
	Writers   int

	// AckRate limits each follower to that many acknowledgments per
	// second. Zero is unlimited.
	AckRate float64

	// Lag makes the last Lag followers never acknowledge.
	Lag int

	// HTTP sends acknowledgments through the HTTP transport instead of
	// calling the committer directly.
	HTTP bool

	Timeout time.Duration
	Logger  *zap.Logger
}

// NewBench returns a bench with defaults.
func NewBench() *Bench {
	return &Bench{
		Followers: 4,
		Entries:   10000,
		Writers:   16,
		Timeout:   raft.DefaultCommitTimeout,
		Logger:    zap.NewNop(),
	}
}

// Report summarizes a bench run.
type Report struct {
	Entries   int
	Committed int
	TimedOut  int
	Failed    int
	Acks      int64
	Stale     int64
	Duration  time.Duration
	P50, P99  time.Duration
}

// Throughput returns the committed entries per second.
func (r *Report) Throughput() float64 {
	if r.Duration <= 0 {
		return 0
	}
	return float64(r.Committed) / r.Duration.Seconds()
}

// WriteTo writes a human readable summary of r to w.
func (r *Report) WriteTo(w io.Writer) (int64, error) {
	n, err := fmt.Fprintf(w,
		"entries: %s committed: %s timed out: %s failed: %s\n"+
			"acks: %s stale: %s\n"+
			"duration: %s throughput: %s commits/s\n"+
			"latency p50: %s p99: %s\n",
		humanize.Comma(int64(r.Entries)), humanize.Comma(int64(r.Committed)),
		humanize.Comma(int64(r.TimedOut)), humanize.Comma(int64(r.Failed)),
		humanize.Comma(r.Acks), humanize.Comma(r.Stale),
		r.Duration.Round(time.Millisecond), humanize.CommafWithDigits(r.Throughput(), 1),
		r.P50, r.P99,
	)
	return int64(n), err
}

// ackFunc delivers one follower acknowledgment and returns what remains.
type ackFunc func(ctx context.Context, index, peerID uint64) (int, error)

// Run commits every entry and returns the report. It fails only when the
// bench cannot be set up or a follower cannot deliver an acknowledgment;
// timed out commits are counted, not returned.
func (b *Bench) Run(ctx context.Context) (*Report, error) {
	if b.Followers < 0 || b.Entries < 1 || b.Writers < 1 {
		return nil, &errors.Error{Code: errors.EInvalid, Msg: "followers, entries and writers must be positive"}
	} else if b.Lag > b.Followers {
		return nil, &errors.Error{Code: errors.EInvalid, Msg: "lag exceeds followers"}
	}

	log := b.Logger
	if log == nil {
		log = zap.NewNop()
	}

	cfg := raft.NewConfig()
	cfg.CommitTimeout = 0
	for i := 0; i <= b.Followers; i++ {
		cfg.Nodes = append(cfg.Nodes, &raft.Node{
			ID:  uint64(i + 1),
			URL: fmt.Sprintf("http://node%d/raft", i+1),
		})
	}

	reg := raft.NewRegistry()
	reg.Logger = log
	committer, err := raft.NewCommitter(reg, cfg)
	if err != nil {
		return nil, err
	}
	committer.Timeout = b.Timeout
	committer.Logger = log

	ack := ackFunc(func(_ context.Context, index, _ uint64) (int, error) {
		return committer.Acknowledge(index), nil
	})
	if b.HTTP {
		s := httptest.NewServer(raft.NewHTTPHandler(committer))
		defer s.Close()

		leader, err := url.Parse(s.URL)
		if err != nil {
			return nil, err
		}
		ack = func(ctx context.Context, index, peerID uint64) (int, error) {
			return raft.DefaultTransport.Acknowledge(ctx, leader, index, peerID)
		}
	}

	log.Info("Starting bench",
		zap.Int("followers", b.Followers),
		zap.Int("threshold", committer.Threshold()),
		zap.Int("entries", b.Entries),
		zap.Int("writers", b.Writers),
		zap.Bool("http", b.HTTP))

	var (
		mu        sync.Mutex
		report    = &Report{Entries: b.Entries}
		latencies = make([]time.Duration, 0, b.Entries)
	)

	// Every follower gets its own inbox of replicated indexes.
	live := b.Followers - b.Lag
	inboxes := make([]chan uint64, live)
	for i := range inboxes {
		inboxes[i] = make(chan uint64, b.Writers)
	}

	followers, fctx := errgroup.WithContext(ctx)
	for i, inbox := range inboxes {
		peerID, inbox := uint64(i+2), inbox
		limit := rate.Inf
		if b.AckRate > 0 {
			limit = rate.Limit(b.AckRate)
		}
		limiter := rate.NewLimiter(limit, 1)

		followers.Go(func() error {
			for index := range inbox {
				if err := limiter.Wait(fctx); err != nil {
					return err
				}
				remaining, err := ack(fctx, index, peerID)
				if err != nil {
					return fmt.Errorf("follower %d: ack %d: %w", peerID, index, err)
				}
				mu.Lock()
				report.Acks++
				if remaining < 0 {
					report.Stale++
				}
				mu.Unlock()
			}
			return nil
		})
	}

	start := time.Now()
	writers, wctx := errgroup.WithContext(ctx)
	writers.SetLimit(b.Writers)
	for i := 1; i <= b.Entries; i++ {
		index := uint64(i)
		writers.Go(func() error {
			begin := time.Now()
			req, err := committer.Register(index)
			if err != nil {
				return err
			}
			for _, inbox := range inboxes {
				select {
				case inbox <- index:
				case <-wctx.Done():
					return wctx.Err()
				case <-fctx.Done():
					return fctx.Err()
				}
			}

			err = committer.Wait(wctx, req)

			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				report.Committed++
				latencies = append(latencies, time.Since(begin))
			case errors.ErrorCode(err) == errors.EUnavailable:
				report.TimedOut++
			default:
				report.Failed++
			}
			return wctx.Err()
		})
	}

	werr := writers.Wait()
	report.Duration = time.Since(start)
	for _, inbox := range inboxes {
		close(inbox)
	}
	ferr := followers.Wait()
	if ferr != nil {
		return nil, ferr
	} else if werr != nil {
		return nil, werr
	}

	report.P50, report.P99 = percentile(latencies, 0.50), percentile(latencies, 0.99)
	log.Info("Bench finished",
		zap.Int("committed", report.Committed),
		zap.Int("timed_out", report.TimedOut),
		zap.Duration("duration", report.Duration))
	return report, nil
}

func percentile(a []time.Duration, p float64) time.Duration {
	if len(a) == 0 {
		return 0
	}
	sort.Slice(a, func(i, j int) bool { return a[i] < a[j] })
	return a[int(float64(len(a)-1)*p)]
}
