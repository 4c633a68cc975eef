package errors_test

import (
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/raftcommit/raftcommit/kit/platform/errors"
	"github.com/stretchr/testify/assert"
)

var errTimeout = stderrors.New("commit timed out")

func TestError_Error(t *testing.T) {
	for _, tt := range []struct {
		err  *errors.Error
		want string
	}{
		{err: &errors.Error{Code: errors.EUnavailable, Msg: "index 3", Err: errTimeout}, want: "index 3: commit timed out"},
		{err: &errors.Error{Code: errors.EInvalid, Msg: "invalid index"}, want: "invalid index"},
		{err: &errors.Error{Code: errors.EInternal, Err: errTimeout}, want: "commit timed out"},
		{err: &errors.Error{Code: errors.ENotFound}, want: "<not found>"},
	} {
		assert.Equal(t, tt.want, tt.err.Error())
	}
}

func TestError_Is(t *testing.T) {
	err := fmt.Errorf("commit: %w", &errors.Error{Code: errors.EUnavailable, Err: errTimeout})
	assert.ErrorIs(t, err, errTimeout)
}

func TestErrorCode(t *testing.T) {
	assert.Equal(t, "", errors.ErrorCode(nil))
	assert.Equal(t, errors.EInternal, errors.ErrorCode(stderrors.New("boom")))
	assert.Equal(t, errors.EInternal, errors.ErrorCode(&errors.Error{Msg: "no code"}))

	// The outermost code wins.
	err := &errors.Error{Code: errors.EInvalid, Err: &errors.Error{Code: errors.EUnavailable}}
	assert.Equal(t, errors.EInvalid, errors.ErrorCode(err))

	// A code is found through wrapping and uncoded layers.
	err = &errors.Error{Op: "outer", Err: &errors.Error{Code: errors.EUnavailable}}
	assert.Equal(t, errors.EUnavailable, errors.ErrorCode(fmt.Errorf("wrapped: %w", err)))
}

func TestErrorOp(t *testing.T) {
	assert.Equal(t, "", errors.ErrorOp(stderrors.New("boom")))
	err := &errors.Error{Err: &errors.Error{Op: "raft/Committer.Commit"}}
	assert.Equal(t, "raft/Committer.Commit", errors.ErrorOp(err))
}

func TestErrorMessage(t *testing.T) {
	assert.Equal(t, "", errors.ErrorMessage(nil))
	assert.Equal(t, "An internal error has occurred.", errors.ErrorMessage(stderrors.New("secret")))
	err := &errors.Error{Code: errors.EUnavailable, Err: &errors.Error{Msg: "no longer leader"}}
	assert.Equal(t, "no longer leader", errors.ErrorMessage(err))
}
