package raft

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Label values for the acknowledgments counter.
const (
	ackCommitted = "committed"
	ackPending   = "pending"
	ackStale     = "stale"
)

// Label values for the commit outcome counter.
const (
	outcomeSucceeded = "succeeded"
	outcomeTimedOut  = "timed_out"
	outcomeFailed    = "failed"
)

// Metrics holds the prometheus metrics of the commit gate.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	acks        *prometheus.CounterVec
	aborted     prometheus.Counter
	outstanding prometheus.Gauge

	commits   *prometheus.CounterVec
	commitDur *prometheus.HistogramVec
}

// NewMetrics returns a new set of commit gate metrics.
func NewMetrics() *Metrics {
	const (
		namespace = "raft"
		subsystem = "commit"
	)

	return &Metrics{
		acks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "acknowledgments_total",
			Help:      "Number of follower acknowledgments by result",
		}, []string{"result"}),

		aborted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "aborted_total",
			Help:      "Number of waiting commit requests failed on step-down",
		}),

		outstanding: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "outstanding",
			Help:      "Number of registry entries, placeholders included",
		}),

		commits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "requests_total",
			Help:      "Number of commit waits by outcome",
		}, []string{"outcome"}),

		commitDur: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "wait_duration_seconds",
			Help:      "Histogram of times spent waiting for a quorum",
			Buckets:   prometheus.ExponentialBuckets(1e-4, 4, 8),
		}, []string{"outcome"}),
	}
}

// PrometheusCollectors satisfies the prom.PrometheusCollector interface.
func (m *Metrics) PrometheusCollectors() []prometheus.Collector {
	if m == nil {
		return nil
	}
	return []prometheus.Collector{
		m.acks,
		m.aborted,
		m.outstanding,
		m.commits,
		m.commitDur,
	}
}

func (m *Metrics) observeAck(remaining int) {
	if m == nil {
		return
	}
	switch {
	case remaining == 0:
		m.acks.WithLabelValues(ackCommitted).Inc()
	case remaining < 0:
		m.acks.WithLabelValues(ackStale).Inc()
	default:
		m.acks.WithLabelValues(ackPending).Inc()
	}
}

func (m *Metrics) observeAborted(n int) {
	if m == nil {
		return
	}
	m.aborted.Add(float64(n))
}

func (m *Metrics) setOutstanding(n int) {
	if m == nil {
		return
	}
	m.outstanding.Set(float64(n))
}

func (m *Metrics) observeCommit(o Outcome, d time.Duration) {
	if m == nil {
		return
	}
	label := outcomeFailed
	if o.Succeeded {
		label = outcomeSucceeded
	} else if o.TimedOut {
		label = outcomeTimedOut
	}
	m.commits.WithLabelValues(label).Inc()
	m.commitDur.WithLabelValues(label).Observe(d.Seconds())
}
