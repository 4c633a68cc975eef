package prom_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/raftcommit/raftcommit/kit/prom"
	"github.com/raftcommit/raftcommit/kit/prom/promtest"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type counters struct {
	c prometheus.Counter
}

func (c counters) PrometheusCollectors() []prometheus.Collector {
	return []prometheus.Collector{c.c}
}

func TestRegistry_HTTPHandler(t *testing.T) {
	reg := prom.NewRegistry(zaptest.NewLogger(t))
	c := counters{c: prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "test",
		Name:      "counter",
		Help:      "A test counter",
	})}
	reg.Register(c)
	c.c.Add(3)

	s := httptest.NewServer(reg.HTTPHandler())
	defer s.Close()

	resp, err := http.Get(s.URL)
	require.NoError(t, err)

	mfs, err := promtest.FromHTTPResponse(resp)
	require.NoError(t, err)

	m := promtest.MustFindMetric(t, mfs, "test_counter", nil)
	require.Equal(t, float64(3), m.GetCounter().GetValue())
}
