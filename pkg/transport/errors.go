package transport

import (
	"context"
	"errors"
	"fmt"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Error is a status-coded transport error. It satisfies status.FromError, so
// status.Code(err) yields Code, and it unwraps to its cause.
type Error struct {
	Code codes.Code
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return e.Msg
	}
	return e.Msg + ": " + e.Err.Error()
}

func (e *Error) Unwrap() error { return e.Err }

// GRPCStatus exposes the error as a status.
func (e *Error) GRPCStatus() *status.Status { return status.New(e.Code, e.Error()) }

// ErrClosed is returned by operations on a closed transport.
var ErrClosed = &Error{Code: codes.FailedPrecondition, Msg: "transport closed"}

// Errorf builds an Error with code c wrapping cause.
func Errorf(c codes.Code, cause error, format string, args ...any) error {
	return &Error{Code: c, Msg: fmt.Sprintf(format, args...), Err: cause}
}

// ContextError converts a context error into a status-coded Error.
func ContextError(err error) error {
	c := codes.Canceled
	if errors.Is(err, context.DeadlineExceeded) {
		c = codes.DeadlineExceeded
	}
	return &Error{Code: c, Msg: "send aborted", Err: err}
}

// CodeOf returns the status code carried by err. Plain context errors map to
// Canceled and DeadlineExceeded, nil to OK, anything else to Unknown.
func CodeOf(err error) codes.Code {
	if err == nil {
		return codes.OK
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	switch {
	case errors.Is(err, context.Canceled):
		return codes.Canceled
	case errors.Is(err, context.DeadlineExceeded):
		return codes.DeadlineExceeded
	}
	return status.Code(err)
}
