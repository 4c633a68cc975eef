package raft_test

import (
	"context"
	"net/http/httptest"
	"net/url"
	"testing"

	perrors "github.com/raftcommit/raftcommit/kit/platform/errors"
	"github.com/raftcommit/raftcommit/raft"
	"github.com/stretchr/testify/require"
)

// Ensure a follower can acknowledge entries over HTTP.
func TestHTTPTransport_Acknowledge(t *testing.T) {
	h, c := NewHTTPHandler(t, 3)
	s := httptest.NewServer(h)
	defer s.Close()

	errc := c.commitAsync(context.Background(), 2)
	c.waitRegistered(t, 2)

	u, _ := url.Parse(s.URL)
	remaining, err := raft.DefaultTransport.Acknowledge(context.Background(), u, 2, 2)
	require.NoError(t, err)
	require.Equal(t, 0, remaining)
	require.NoError(t, <-errc)

	remaining, err = raft.DefaultTransport.Acknowledge(context.Background(), u, 2, 3)
	require.NoError(t, err)
	require.Equal(t, -1, remaining)
}

// Ensure handler errors come back as coded errors.
func TestHTTPTransport_Acknowledge_ErrInvalid(t *testing.T) {
	h, _ := NewHTTPHandler(t, 3)
	s := httptest.NewServer(h)
	defer s.Close()

	u, _ := url.Parse(s.URL)
	_, err := (&raft.HTTPTransport{}).Acknowledge(context.Background(), u, 0, 0)
	require.Error(t, err)
	require.Equal(t, perrors.EInvalid, perrors.ErrorCode(err))
}

func TestHTTPTransport_StepDown(t *testing.T) {
	h, c := NewHTTPHandler(t, 3)
	s := httptest.NewServer(h)
	defer s.Close()

	_, err := c.Register(5)
	require.NoError(t, err)

	u, _ := url.Parse(s.URL + "/")
	n, err := raft.DefaultTransport.StepDown(context.Background(), u)
	require.NoError(t, err)
	require.Equal(t, 1, n)
}

func TestTransportMux_UnsupportedScheme(t *testing.T) {
	u, _ := url.Parse("foo://localhost:8086")
	_, err := raft.DefaultTransport.Acknowledge(context.Background(), u, 1, 0)
	require.Error(t, err)
	require.Equal(t, perrors.EInvalid, perrors.ErrorCode(err))
	require.Equal(t, "transport scheme not supported: foo", err.Error())
}
