package http

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/raftcommit/raftcommit/kit/platform/errors"
)

// PlatformErrorCodeHeader carries the code of an error response.
const PlatformErrorCodeHeader = "X-Platform-Error-Code"

// errorBody is the JSON body of an error response.
type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Op      string `json:"op,omitempty"`
}

// ErrorHandler writes errors as coded JSON responses.
type ErrorHandler int

// HandleHTTPError sets the status that matches the code of err, sets the
// X-Platform-Error-Code header and writes the error as JSON. Errors that are
// not an *errors.Error are reported as internal without their text.
func (h ErrorHandler) HandleHTTPError(ctx context.Context, err error, w http.ResponseWriter) {
	if err == nil {
		return
	}

	body := errorBody{Code: errors.ErrorCode(err), Op: errors.ErrorOp(err)}
	if _, ok := err.(*errors.Error); ok {
		body.Message = err.Error()
	} else {
		body.Message = errors.ErrorMessage(err)
	}

	w.Header().Set(PlatformErrorCodeHeader, body.Code)
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(StatusCode(body.Code))
	b, _ := json.Marshal(body)
	_, _ = w.Write(b)
}

// CheckError returns nil for a 2XX response. Otherwise it decodes the body
// written by HandleHTTPError into an *errors.Error, falling back to an
// internal error naming the status when the body is not one.
func CheckError(resp *http.Response) error {
	if resp.StatusCode/100 == 2 {
		return nil
	}

	var body errorBody
	code := resp.Header.Get(PlatformErrorCodeHeader)
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil || code == "" {
		return &errors.Error{
			Code: errors.EInternal,
			Msg:  fmt.Sprintf("unexpected status: %s", resp.Status),
		}
	}
	return &errors.Error{Code: code, Msg: body.Message, Op: body.Op}
}

// StatusCode returns the HTTP status for an error code.
// Unknown codes map to 400.
func StatusCode(code string) int {
	if status, ok := statusCodes[code]; ok {
		return status
	}
	return http.StatusBadRequest
}

var statusCodes = map[string]int{
	errors.EInternal:         http.StatusInternalServerError,
	errors.EInvalid:          http.StatusBadRequest,
	errors.ENotFound:         http.StatusNotFound,
	errors.EUnavailable:      http.StatusServiceUnavailable,
	errors.EMethodNotAllowed: http.StatusMethodNotAllowed,
}
