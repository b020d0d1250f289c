package mem

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"google.golang.org/grpc/codes"

	"upsock/pkg/protocol"
	"upsock/pkg/transport"
)

var topic = protocol.MustParseURI("//test.app/18002/1/8003")

func pair(t *testing.T) (*Transport, *Transport) {
	t.Helper()
	n := NewNetwork()
	a, err := New("loop", WithNetwork(n), WithLogger(zaptest.NewLogger(t)))
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })
	assert.Equal(t, transport.StateDisconnected, a.State())
	b, err := New("loop", WithNetwork(n), WithLogger(zaptest.NewLogger(t)))
	require.NoError(t, err)
	t.Cleanup(func() { _ = b.Close() })
	return a, b
}

func TestPairExchangesBothWays(t *testing.T) {
	a, b := pair(t)
	fromA := make(chan string, 1)
	fromB := make(chan string, 1)
	require.NoError(t, b.RegisterListener(topic, func(m *protocol.Message) { fromA <- string(m.Payload) }))
	require.NoError(t, a.RegisterListener(topic, func(m *protocol.Message) { fromB <- string(m.Payload) }))

	ctx := context.Background()
	require.NoError(t, a.Send(ctx, protocol.NewPublish(topic, protocol.FormatText, []byte("ping"))))
	require.NoError(t, b.Send(ctx, protocol.NewPublish(topic, protocol.FormatText, []byte("pong"))))
	assert.Equal(t, "ping", <-fromA)
	assert.Equal(t, "pong", <-fromB)
	assert.Equal(t, transport.StateConnected, a.State())
	assert.EqualValues(t, 1, a.Stats().Sent)
}

func TestSendWaitsForPeer(t *testing.T) {
	n := NewNetwork()
	a, err := New("late", WithNetwork(n))
	require.NoError(t, err)
	defer a.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err = a.Send(ctx, protocol.NewPublish(topic, protocol.FormatRaw, nil))
	assert.Equal(t, codes.DeadlineExceeded, transport.CodeOf(err))

	b, err := New("late", WithNetwork(n))
	require.NoError(t, err)
	defer b.Close()
	require.NoError(t, a.Send(context.Background(), protocol.NewPublish(topic, protocol.FormatRaw, nil)))
	require.Eventually(t, func() bool { return b.Stats().Dropped == 1 }, time.Second, time.Millisecond)
}

func TestThirdEndpointRejected(t *testing.T) {
	n := NewNetwork()
	for i := 0; i < 2; i++ {
		e, err := New("full", WithNetwork(n))
		require.NoError(t, err)
		defer e.Close()
	}
	_, err := New("full", WithNetwork(n))
	assert.Equal(t, codes.AlreadyExists, transport.CodeOf(err))
}

func TestPeerCloseFailsSend(t *testing.T) {
	a, b := pair(t)
	require.NoError(t, b.Close())
	require.NoError(t, b.Close())
	err := a.Send(context.Background(), protocol.NewPublish(topic, protocol.FormatRaw, nil))
	assert.Equal(t, codes.Unavailable, transport.CodeOf(err))
	require.Eventually(t, func() bool { return a.State() == transport.StateDisconnected }, time.Second, time.Millisecond)
	assert.ErrorIs(t, b.Send(context.Background(), protocol.NewPublish(topic, protocol.FormatRaw, nil)), transport.ErrClosed)
}

func TestRejoinAfterPeerClose(t *testing.T) {
	n := NewNetwork()
	a, err := New("rejoin", WithNetwork(n))
	require.NoError(t, err)
	defer a.Close()
	b, err := New("rejoin", WithNetwork(n))
	require.NoError(t, err)
	require.NoError(t, b.Close())

	_, err = New("rejoin", WithNetwork(n))
	assert.Equal(t, codes.AlreadyExists, transport.CodeOf(err))

	require.NoError(t, a.Close())
	c, err := New("rejoin", WithNetwork(n))
	require.NoError(t, err)
	defer c.Close()
	d, err := New("rejoin", WithNetwork(n))
	require.NoError(t, err)
	defer d.Close()
	require.NoError(t, c.Send(context.Background(), protocol.NewPublish(topic, protocol.FormatRaw, nil)))
	require.Eventually(t, func() bool { return d.Stats().Dropped == 1 }, time.Second, time.Millisecond)
}

func TestUnpairedCloseFreesName(t *testing.T) {
	n := NewNetwork()
	a, err := New("solo", WithNetwork(n))
	require.NoError(t, err)
	require.NoError(t, a.Close())
	b, err := New("solo", WithNetwork(n))
	require.NoError(t, err)
	defer b.Close()
	assert.Equal(t, transport.StateDisconnected, b.State())
}
