// Package errors defines the coded error returned across the commit gate's
// package and HTTP boundaries.
package errors

import (
	"errors"
	"fmt"
)

// Error codes. Writers retry EUnavailable, which covers commit timeouts and
// step-downs; every other code is final.
const (
	EInternal         = "internal error"
	ENotFound         = "not found"
	EInvalid          = "invalid"
	EUnavailable      = "unavailable"
	EMethodNotAllowed = "method not allowed"
)

// Error is a coded error.
//
// Code is for programs, Msg for operators. Op names the operation that
// failed and Err is the cause, if any, so that a chain of Errors reads as a
// logical stack trace:
//
//	&Error{
//	    Code: EUnavailable,
//	    Msg:  "index 12",
//	    Op:   "raft/Committer.Commit",
//	    Err:  raft.ErrCommitTimeout,
//	}
type Error struct {
	Code string
	Msg  string
	Op   string
	Err  error
}

// Error returns Msg and the cause joined by a colon.
func (e *Error) Error() string {
	switch {
	case e.Msg != "" && e.Err != nil:
		return e.Msg + ": " + e.Err.Error()
	case e.Msg != "":
		return e.Msg
	case e.Err != nil:
		return e.Err.Error()
	}
	return fmt.Sprintf("<%s>", e.Code)
}

// Unwrap returns the cause so errors.Is reaches sentinel errors.
func (e *Error) Unwrap() error { return e.Err }

// ErrorCode returns the first code found along the chain of err. Errors
// that are not an *Error are internal.
func ErrorCode(err error) string {
	if err == nil {
		return ""
	}
	for e := asError(err); e != nil; e = asError(e.Err) {
		if e.Code != "" {
			return e.Code
		}
	}
	return EInternal
}

// ErrorOp returns the first op found along the chain of err, or "".
func ErrorOp(err error) string {
	for e := asError(err); e != nil; e = asError(e.Err) {
		if e.Op != "" {
			return e.Op
		}
	}
	return ""
}

// ErrorMessage returns the first message found along the chain of err.
// It returns a generic message when there is none, so that plain errors
// never leak to clients.
func ErrorMessage(err error) string {
	if err == nil {
		return ""
	}
	for e := asError(err); e != nil; e = asError(e.Err) {
		if e.Msg != "" {
			return e.Msg
		}
	}
	return "An internal error has occurred."
}

func asError(err error) *Error {
	var e *Error
	if err == nil || !errors.As(err, &e) {
		return nil
	}
	return e
}
