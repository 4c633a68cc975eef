package http_test

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/raftcommit/raftcommit/kit/platform/errors"
	kithttp "github.com/raftcommit/raftcommit/kit/transport/http"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHandleHTTPError_Nil(t *testing.T) {
	w := httptest.NewRecorder()
	kithttp.ErrorHandler(0).HandleHTTPError(context.Background(), nil, w)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, w.Body.String())
}

func TestHandleHTTPError(t *testing.T) {
	err := &errors.Error{
		Code: errors.EUnavailable,
		Msg:  "index 10",
		Op:   "raft/Committer.Commit",
		Err:  fmt.Errorf("commit timed out"),
	}

	w := httptest.NewRecorder()
	kithttp.ErrorHandler(0).HandleHTTPError(context.Background(), err, w)

	require.Equal(t, http.StatusServiceUnavailable, w.Code)
	require.Equal(t, errors.EUnavailable, w.Header().Get(kithttp.PlatformErrorCodeHeader))

	var body map[string]string
	require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
	assert.Equal(t, map[string]string{
		"code":    errors.EUnavailable,
		"message": "index 10: commit timed out",
		"op":      "raft/Committer.Commit",
	}, body)
}

// Ensure plain errors do not leak their text.
func TestHandleHTTPError_PlainError(t *testing.T) {
	w := httptest.NewRecorder()
	kithttp.ErrorHandler(0).HandleHTTPError(context.Background(), fmt.Errorf("open /secret: denied"), w)

	require.Equal(t, http.StatusInternalServerError, w.Code)
	require.NotContains(t, w.Body.String(), "secret")
}

func TestCheckError(t *testing.T) {
	w := httptest.NewRecorder()
	kithttp.ErrorHandler(0).HandleHTTPError(context.Background(), &errors.Error{
		Code: errors.EInvalid,
		Msg:  "invalid index",
		Op:   "raft/HTTPHandler",
	}, w)

	err := kithttp.CheckError(w.Result())
	require.Error(t, err)
	assert.Equal(t, errors.EInvalid, errors.ErrorCode(err))
	assert.Equal(t, "raft/HTTPHandler", errors.ErrorOp(err))
	assert.Equal(t, "invalid index", err.Error())
}

func TestCheckError_NotPlatformError(t *testing.T) {
	resp := &http.Response{
		Status:     "502 Bad Gateway",
		StatusCode: http.StatusBadGateway,
		Header:     http.Header{},
		Body:       io.NopCloser(strings.NewReader("<html>bad gateway</html>")),
	}

	err := kithttp.CheckError(resp)
	assert.Equal(t, errors.EInternal, errors.ErrorCode(err))
	assert.Equal(t, "unexpected status: 502 Bad Gateway", err.Error())

	assert.NoError(t, kithttp.CheckError(&http.Response{StatusCode: http.StatusOK}))
}
