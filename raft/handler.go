package raft

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi"
	"github.com/raftcommit/raftcommit/kit/platform/errors"
	"github.com/raftcommit/raftcommit/kit/tracing"
	kithttp "github.com/raftcommit/raftcommit/kit/transport/http"
	"go.uber.org/zap"
)

// HTTPHandler exposes the acknowledgment and step-down paths of a Committer
// over HTTP.
type HTTPHandler struct {
	chi.Router

	committer *Committer
	errors    kithttp.ErrorHandler

	// Logger records rejected requests. If nil, logging is disabled.
	Logger *zap.Logger
}

// NewHTTPHandler returns a new instance of HTTPHandler associated with a committer.
func NewHTTPHandler(c *Committer) *HTTPHandler {
	h := &HTTPHandler{
		Router:    chi.NewRouter(),
		committer: c,
		Logger:    zap.NewNop(),
	}

	h.Use(tracing.Middleware("raft"))
	h.Post("/ack", h.serveAck)
	h.Post("/replicate", h.serveReplicate)
	h.Post("/stepdown", h.serveStepDown)
	h.Get("/status", h.serveStatus)
	h.Get("/ping", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	h.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		h.errors.HandleHTTPError(r.Context(), &errors.Error{
			Code: errors.EMethodNotAllowed,
			Msg:  r.Method + " not allowed on " + r.URL.Path,
		}, w)
	})
	return h
}

func (h *HTTPHandler) logger() *zap.Logger {
	if h.Logger == nil {
		return zap.NewNop()
	}
	return h.Logger
}

func (h *HTTPHandler) fail(w http.ResponseWriter, r *http.Request, err error) {
	h.logger().Debug("Rejected raft request",
		zap.String("path", r.URL.Path), zap.Error(err))
	h.errors.HandleHTTPError(r.Context(), err, w)
}

// serveAck records a follower acknowledgment of a log index.
func (h *HTTPHandler) serveAck(w http.ResponseWriter, r *http.Request) {
	index, err := parseIndex(r, "index")
	if err != nil {
		h.fail(w, r, err)
		return
	} else if index == 0 {
		h.fail(w, r, &errors.Error{Code: errors.EInvalid, Msg: "invalid index", Err: ErrInvalidIndex})
		return
	}

	remaining := h.committer.Acknowledge(index)
	if peer := r.FormValue("peer"); peer != "" {
		h.logger().Debug("Acknowledgment received",
			zap.Uint64("index", index), zap.String("peer", peer), zap.Int("remaining", remaining))
	}

	w.Header().Set("X-Raft-Remaining", strconv.Itoa(remaining))
	w.WriteHeader(http.StatusOK)
}

// serveReplicate answers whether a new replication round should start and
// marks the next index as in flight when it should.
func (h *HTTPHandler) serveReplicate(w http.ResponseWriter, r *http.Request) {
	applied, err := parseIndex(r, "applied")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	replicated, err := parseIndex(r, "replicated")
	if err != nil {
		h.fail(w, r, err)
		return
	}

	ok := h.committer.Replicate(applied, replicated)
	w.Header().Set("X-Raft-Replicate", strconv.FormatBool(ok))
	w.WriteHeader(http.StatusOK)
}

// serveStepDown fails every waiting commit.
func (h *HTTPHandler) serveStepDown(w http.ResponseWriter, r *http.Request) {
	n := h.committer.StepDown()
	w.Header().Set("X-Raft-Aborted", strconv.Itoa(n))
	w.WriteHeader(http.StatusOK)
}

// Status is the body of a status response.
type Status struct {
	Index       uint64 `json:"index,omitempty"`
	State       string `json:"state,omitempty"`
	Outstanding int    `json:"outstanding"`
	Threshold   int    `json:"threshold"`
}

// serveStatus reports the registry size and, if requested, the state of one index.
func (h *HTTPHandler) serveStatus(w http.ResponseWriter, r *http.Request) {
	reg := h.committer.Registry()
	st := Status{
		Outstanding: reg.Len(),
		Threshold:   h.committer.Threshold(),
	}

	if r.FormValue("index") != "" {
		index, err := parseIndex(r, "index")
		if err != nil {
			h.fail(w, r, err)
			return
		}
		st.Index, st.State = index, reg.State(index).String()
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(st)
}

func parseIndex(r *http.Request, name string) (uint64, error) {
	v, err := strconv.ParseUint(r.FormValue(name), 10, 64)
	if err != nil {
		return 0, &errors.Error{
			Code: errors.EInvalid,
			Msg:  "invalid " + name,
			Err:  err,
		}
	}
	return v, nil
}
