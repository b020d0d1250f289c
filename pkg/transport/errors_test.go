package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func TestCodeOf(t *testing.T) {
	cases := []struct {
		err  error
		want codes.Code
	}{
		{nil, codes.OK},
		{ErrClosed, codes.FailedPrecondition},
		{fmt.Errorf("send: %w", ErrClosed), codes.FailedPrecondition},
		{Errorf(codes.Unavailable, io.EOF, "write"), codes.Unavailable},
		{ContextError(context.DeadlineExceeded), codes.DeadlineExceeded},
		{context.Canceled, codes.Canceled},
		{status.Error(codes.NotFound, "x"), codes.NotFound},
		{errors.New("plain"), codes.Unknown},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, CodeOf(c.err), "%v", c.err)
	}
}

func TestErrorUnwrapAndStatus(t *testing.T) {
	err := Errorf(codes.Unavailable, io.ErrUnexpectedEOF, "peer %s", "svc-b")
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
	assert.Equal(t, "peer svc-b: unexpected EOF", err.Error())
	assert.Equal(t, codes.Unavailable, status.Code(err))
}

func TestParseKind(t *testing.T) {
	k, err := ParseKind("UDS")
	assert.NoError(t, err)
	assert.Equal(t, KindUDS, k)
	k, err = ParseKind("mem")
	assert.NoError(t, err)
	assert.Equal(t, "mem", k.String())
	_, err = ParseKind("quic")
	assert.Error(t, err)
}
