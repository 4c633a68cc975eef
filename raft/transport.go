package raft

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"path"
	"strconv"

	"github.com/raftcommit/raftcommit/kit/platform/errors"
	"github.com/raftcommit/raftcommit/kit/tracing"
	kithttp "github.com/raftcommit/raftcommit/kit/transport/http"
)

// Initializes the default transport to support HTTP and HTTPS.
func init() {
	t := NewTransportMux()
	t.Handle("http", &HTTPTransport{})
	t.Handle("https", &HTTPTransport{})
	DefaultTransport = t
}

// Transport delivers acknowledgments and step-down notices to a leader.
// It uses URLs to direct requests over different protocols.
type Transport interface {
	Acknowledge(ctx context.Context, leader *url.URL, index, peerID uint64) (remaining int, err error)
	StepDown(ctx context.Context, leader *url.URL) (aborted int, err error)
}

// DefaultTransport provides support for the HTTP protocol.
var DefaultTransport Transport

// TransportMux is a transport multiplexer. It delegates requests to the
// matching transport implementation based on their URL scheme.
type TransportMux struct {
	m map[string]Transport
}

// NewTransportMux returns a new instance of TransportMux.
func NewTransportMux() *TransportMux {
	return &TransportMux{m: make(map[string]Transport)}
}

// Handle registers a transport for a given scheme.
func (mux *TransportMux) Handle(scheme string, t Transport) {
	mux.m[scheme] = t
}

func (mux *TransportMux) transport(u *url.URL) (Transport, error) {
	if t, ok := mux.m[u.Scheme]; ok {
		return t, nil
	}
	return nil, &errors.Error{
		Code: errors.EInvalid,
		Msg:  fmt.Sprintf("transport scheme not supported: %s", u.Scheme),
	}
}

// Acknowledge sends a follower acknowledgment of index to the leader.
func (mux *TransportMux) Acknowledge(ctx context.Context, u *url.URL, index, peerID uint64) (int, error) {
	t, err := mux.transport(u)
	if err != nil {
		return unconfigured, err
	}
	return t.Acknowledge(ctx, u, index, peerID)
}

// StepDown asks the leader to fail every waiting commit.
func (mux *TransportMux) StepDown(ctx context.Context, u *url.URL) (int, error) {
	t, err := mux.transport(u)
	if err != nil {
		return 0, err
	}
	return t.StepDown(ctx, u)
}

// HTTPTransport sends requests to an HTTPHandler.
type HTTPTransport struct {
	// Client is the HTTP client used. If nil, http.DefaultClient is used.
	Client *http.Client
}

func (t *HTTPTransport) client() *http.Client {
	if t.Client == nil {
		return http.DefaultClient
	}
	return t.Client
}

// Acknowledge sends a follower acknowledgment of index to the leader.
func (t *HTTPTransport) Acknowledge(ctx context.Context, leader *url.URL, index, peerID uint64) (int, error) {
	v := url.Values{}
	v.Set("index", strconv.FormatUint(index, 10))
	if peerID != 0 {
		v.Set("peer", strconv.FormatUint(peerID, 10))
	}

	resp, err := t.post(ctx, leader, "ack", v)
	if err != nil {
		return unconfigured, err
	}
	return strconv.Atoi(resp.Header.Get("X-Raft-Remaining"))
}

// StepDown asks the leader to fail every waiting commit.
func (t *HTTPTransport) StepDown(ctx context.Context, leader *url.URL) (int, error) {
	resp, err := t.post(ctx, leader, "stepdown", nil)
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(resp.Header.Get("X-Raft-Aborted"))
}

// post sends a POST to leader/name with v as the query and checks the response.
// The response body has been consumed and closed when post returns.
func (t *HTTPTransport) post(ctx context.Context, leader *url.URL, name string, v url.Values) (*http.Response, error) {
	// Copy URL and append path.
	u := *leader
	u.Path = path.Join(u.Path, name)
	u.RawQuery = v.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.String(), nil)
	if err != nil {
		return nil, err
	}
	tracing.InjectToHTTPRequest(req)

	resp, err := t.client().Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if err := kithttp.CheckError(resp); err != nil {
		return nil, err
	}
	return resp, nil
}
