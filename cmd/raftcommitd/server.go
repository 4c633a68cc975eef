package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/raftcommit/raftcommit/kit/prom"
	kithttp "github.com/raftcommit/raftcommit/kit/transport/http"
	"github.com/raftcommit/raftcommit/pkg/lifecycle"
	"github.com/raftcommit/raftcommit/raft"
	"go.uber.org/zap"
)

// shutdownTimeout bounds how long Close waits for in-flight requests.
const shutdownTimeout = 10 * time.Second

// Server serves the commit gate of the local node: acknowledgments and
// step-down notices under /raft, and prometheus metrics under /metrics.
type Server struct {
	Config Config
	Logger *zap.Logger

	Registry  *raft.Registry
	Committer *raft.Committer

	prom    *prom.Registry
	handler http.Handler

	ln      net.Listener
	httpSrv *http.Server
	done    chan struct{}
}

// NewServer returns a server for c. It does not listen until Open is called.
func NewServer(c Config, log *zap.Logger) (*Server, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}

	reg := raft.NewRegistry()
	reg.Logger = log.With(zap.String("service", "registry"))
	reg.Metrics = raft.NewMetrics()

	committer, err := raft.NewCommitter(reg, c.Raft)
	if err != nil {
		return nil, err
	}
	committer.Logger = log.With(zap.String("service", "committer"))

	s := &Server{
		Config:    c,
		Logger:    log,
		Registry:  reg,
		Committer: committer,
		prom:      prom.NewRegistry(log.With(zap.String("service", "prom_registry"))),
	}

	reqMetrics := kithttp.NewRequestMetrics("raftcommitd")
	s.prom.MustRegister(collectors.NewGoCollector())
	s.prom.Register(reg.Metrics, reqMetrics)

	h := raft.NewHTTPHandler(committer)
	h.Logger = log.With(zap.String("handler", "raft"))

	r := chi.NewRouter()
	r.Mount("/raft", kithttp.Metrics("raft", reqMetrics)(h))
	r.Handle("/metrics", s.prom.HTTPHandler())
	s.handler = r

	return s, nil
}

// Handler returns the root HTTP handler of the server.
func (s *Server) Handler() http.Handler { return s.handler }

// Gatherer returns the server's metrics.
func (s *Server) Gatherer() prometheus.Gatherer { return s.prom }

// Open binds the listener and starts serving in the background.
func (s *Server) Open() error {
	ln, err := net.Listen("tcp", s.Config.BindAddress)
	if err != nil {
		return err
	}
	s.ln = ln
	s.httpSrv = &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: 5 * time.Second,
	}
	s.done = make(chan struct{})

	go func() {
		defer close(s.done)
		if err := s.httpSrv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.Logger.Error("HTTP server stopped", zap.Error(err))
		}
	}()

	s.Logger.Info("Listening",
		zap.String("transport", "http"),
		zap.String("addr", ln.Addr().String()),
		zap.Int("cluster_size", s.Config.Raft.ClusterSize()),
		zap.Int("threshold", s.Committer.Threshold()))
	return nil
}

// Addr returns the address the server listens on, or nil before Open.
func (s *Server) Addr() net.Addr {
	if s.ln == nil {
		return nil
	}
	return s.ln.Addr()
}

// Close stops serving and fails every commit still waiting, since a node
// that shuts down no longer leads.
func (s *Server) Close() error {
	var c lifecycle.Closer
	if s.httpSrv != nil {
		c.Close(closerFunc(func() error {
			ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			err := s.httpSrv.Shutdown(ctx)
			<-s.done
			return err
		}))
	}
	c.Close(closerFunc(func() error {
		if n := s.Committer.StepDown(); n > 0 {
			s.Logger.Info("Aborted waiting commits on shutdown", zap.Int("aborted", n))
		}
		return nil
	}))
	return c.Done()
}

type closerFunc func() error

func (fn closerFunc) Close() error { return fn() }
