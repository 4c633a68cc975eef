package raft_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	perrors "github.com/raftcommit/raftcommit/kit/platform/errors"
	kithttp "github.com/raftcommit/raftcommit/kit/transport/http"
	"github.com/raftcommit/raftcommit/raft"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

// NewHTTPHandler returns a handler in front of a committer for a cluster of n nodes.
func NewHTTPHandler(t *testing.T, n int) (*raft.HTTPHandler, *Committer) {
	c := NewCommitter(t, n)
	h := raft.NewHTTPHandler(c.Committer)
	h.Logger = zaptest.NewLogger(t)
	return h, c
}

func serve(h http.Handler, method, target string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(method, target, nil))
	return w
}

// Ensure the handler records acknowledgments and reports what remains.
func TestHTTPHandler_Ack(t *testing.T) {
	h, c := NewHTTPHandler(t, 5)
	req, err := c.Register(10)
	require.NoError(t, err)

	w := serve(h, "POST", "/ack?index=10&peer=2")
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "1", w.Header().Get("X-Raft-Remaining"))

	w = serve(h, "POST", "/ack?index=10&peer=3")
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "0", w.Header().Get("X-Raft-Remaining"))
	require.NoError(t, c.Wait(context.Background(), req))

	w = serve(h, "POST", "/ack?index=10&peer=4")
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "-1", w.Header().Get("X-Raft-Remaining"))
}

func TestHTTPHandler_Ack_ErrInvalid(t *testing.T) {
	h, _ := NewHTTPHandler(t, 3)

	for _, target := range []string{"/ack", "/ack?index=x", "/ack?index=-1", "/ack?index=0"} {
		w := serve(h, "POST", target)
		assert.Equal(t, http.StatusBadRequest, w.Code, target)
		assert.Equal(t, perrors.EInvalid, w.Header().Get(kithttp.PlatformErrorCodeHeader), target)

		var body struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		}
		require.NoError(t, json.NewDecoder(w.Body).Decode(&body), target)
		assert.Equal(t, perrors.EInvalid, body.Code, target)
		assert.Contains(t, body.Message, "invalid index", target)
	}
}

func TestHTTPHandler_MethodNotAllowed(t *testing.T) {
	h, _ := NewHTTPHandler(t, 3)
	w := serve(h, "GET", "/ack?index=1")
	require.Equal(t, http.StatusMethodNotAllowed, w.Code)
	require.Equal(t, perrors.EMethodNotAllowed, w.Header().Get(kithttp.PlatformErrorCodeHeader))
}

func TestHTTPHandler_Replicate(t *testing.T) {
	h, c := NewHTTPHandler(t, 3)

	w := serve(h, "POST", "/replicate?applied=8&replicated=6")
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "true", w.Header().Get("X-Raft-Replicate"))
	require.Equal(t, raft.EntryPlaceholder, c.Registry().State(7))

	w = serve(h, "POST", "/replicate?applied=8&replicated=6")
	require.Equal(t, "false", w.Header().Get("X-Raft-Replicate"))

	w = serve(h, "POST", "/replicate?applied=8")
	require.Equal(t, http.StatusBadRequest, w.Code)
}

// Ensure step-down through the handler wakes waiting writers.
func TestHTTPHandler_StepDown(t *testing.T) {
	h, c := NewHTTPHandler(t, 3)
	c.Timeout = 0

	errc := c.commitAsync(context.Background(), 3)
	c.waitRegistered(t, 3)

	w := serve(h, "POST", "/stepdown")
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "1", w.Header().Get("X-Raft-Aborted"))
	require.ErrorIs(t, <-errc, raft.ErrLeadershipLost)
}

func TestHTTPHandler_Status(t *testing.T) {
	h, c := NewHTTPHandler(t, 5)
	c.Registry().Allocate(4)
	_, err := c.Register(5)
	require.NoError(t, err)

	var st raft.Status
	w := serve(h, "GET", "/status?index=4")
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.NewDecoder(w.Body).Decode(&st))
	assert.Equal(t, raft.Status{Index: 4, State: "placeholder", Outstanding: 2, Threshold: 2}, st)

	st = raft.Status{}
	w = serve(h, "GET", "/status")
	require.NoError(t, json.NewDecoder(w.Body).Decode(&st))
	assert.Equal(t, raft.Status{Outstanding: 2, Threshold: 2}, st)

	w = serve(h, "GET", "/status?index=abc")
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHTTPHandler_Ping(t *testing.T) {
	h, _ := NewHTTPHandler(t, 3)
	require.Equal(t, http.StatusOK, serve(h, "GET", "/ping").Code)
}
