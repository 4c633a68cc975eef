// Package promtest provides helpers for gathering and looking up prometheus
// metrics. It depends on the testing package and is only meant for tests.
package promtest

import (
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/prometheus/common/expfmt"
)

// FromHTTPResponse decodes the metric families served in r, such as the
// body of a /metrics request. The response body is always closed.
func FromHTTPResponse(r *http.Response) ([]*dto.MetricFamily, error) {
	defer r.Body.Close()

	var mfs []*dto.MetricFamily
	dec := expfmt.NewDecoder(r.Body, expfmt.ResponseFormat(r.Header))
	for {
		mf := &dto.MetricFamily{}
		if err := dec.Decode(mf); err == io.EOF {
			return mfs, nil
		} else if err != nil {
			return nil, err
		}
		mfs = append(mfs, mf)
	}
}

// MustGather gathers g and fails the test on error.
func MustGather(tb testing.TB, g prometheus.Gatherer) []*dto.MetricFamily {
	tb.Helper()

	mfs, err := g.Gather()
	if err != nil {
		tb.Fatalf("error while gathering metrics: %v", err)
	}
	return mfs
}

// FindMetric returns the metric of family name whose labels are exactly
// labels, or nil if there is none.
func FindMetric(mfs []*dto.MetricFamily, name string, labels map[string]string) *dto.Metric {
	_, m := lookup(mfs, name, labels)
	return m
}

// MustFindMetric is like FindMetric but fails the test, listing what was
// available, when nothing matches.
func MustFindMetric(tb testing.TB, mfs []*dto.MetricFamily, name string, labels map[string]string) *dto.Metric {
	tb.Helper()

	fam, m := lookup(mfs, name, labels)
	switch {
	case fam == nil:
		names := make([]string, 0, len(mfs))
		for _, mf := range mfs {
			names = append(names, mf.GetName())
		}
		tb.Fatalf("metric family %q not found; available: %s", name, strings.Join(names, ", "))
	case m == nil:
		tb.Fatalf("metric family %q has no metric with labels %v; available: %s", name, labels, describe(fam))
	}
	return m
}

// CounterValue returns the value of the matching counter, or 0 when the
// counter has not been created yet.
func CounterValue(mfs []*dto.MetricFamily, name string, labels map[string]string) float64 {
	return FindMetric(mfs, name, labels).GetCounter().GetValue()
}

// GaugeValue returns the value of the matching gauge, or 0 when it does not exist.
func GaugeValue(mfs []*dto.MetricFamily, name string, labels map[string]string) float64 {
	return FindMetric(mfs, name, labels).GetGauge().GetValue()
}

func lookup(mfs []*dto.MetricFamily, name string, labels map[string]string) (*dto.MetricFamily, *dto.Metric) {
	for _, mf := range mfs {
		if mf.GetName() != name {
			continue
		}
		for _, m := range mf.Metric {
			if labelsEqual(m.Label, labels) {
				return mf, m
			}
		}
		return mf, nil
	}
	return nil, nil
}

func labelsEqual(pairs []*dto.LabelPair, labels map[string]string) bool {
	if len(pairs) != len(labels) {
		return false
	}
	for _, l := range pairs {
		if v, ok := labels[l.GetName()]; !ok || v != l.GetValue() {
			return false
		}
	}
	return true
}

func describe(mf *dto.MetricFamily) string {
	var out []string
	for _, m := range mf.Metric {
		pairs := make([]string, 0, len(m.Label))
		for _, l := range m.Label {
			pairs = append(pairs, fmt.Sprintf("%s=%q", l.GetName(), l.GetValue()))
		}
		sort.Strings(pairs)
		out = append(out, "{"+strings.Join(pairs, ",")+"}")
	}
	return strings.Join(out, " ")
}
