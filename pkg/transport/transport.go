package transport

import (
	"context"
	"fmt"
	"strings"

	"upsock/pkg/protocol"
)

// Kind identifies the channel implementation.
type Kind int

const (
	KindUnknown Kind = iota
	KindUDS          // unix domain socket, or named pipe on Windows
	KindMem          // in-process loopback
)

func (k Kind) String() string {
	switch k {
	case KindUDS:
		return "uds"
	case KindMem:
		return "mem"
	default:
		return "unknown"
	}
}

// ParseKind maps a config name to a Kind.
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "uds", "unix", "pipe":
		return KindUDS, nil
	case "mem", "memory":
		return KindMem, nil
	default:
		return KindUnknown, fmt.Errorf("unknown transport kind %q", s)
	}
}

// State is the receive-side connection state.
type State int32

const (
	StateNotStarted State = iota
	StateDisconnected
	StateConnected
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateNotStarted:
		return "not-started"
	case StateDisconnected:
		return "disconnected"
	case StateConnected:
		return "connected"
	case StateStopped:
		return "stopped"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// Stats is a snapshot of transport counters.
type Stats struct {
	Sent       uint64 // frames written
	Received   uint64 // frames decoded
	Dropped    uint64 // received frames with no listener
	Reconnects uint64 // receive-side connection losses
	SendSeq    uint64 // last send sequence number handed out
}

// Listener receives messages published on the topic it was registered for.
// It runs on the transport's receive goroutine and must not block for long.
type Listener func(*protocol.Message)

// Transport moves messages between this process and one peer.
type Transport interface {
	// Send writes m to the peer, waiting for a peer to connect if none has.
	Send(ctx context.Context, m *protocol.Message) error
	// RegisterListener binds l to topic, replacing any earlier listener.
	RegisterListener(topic protocol.UUri, l Listener) error
	// UnregisterListener removes the listener bound to topic.
	UnregisterListener(topic protocol.UUri) error
	// Close stops the transport and releases the channel. Idempotent.
	Close() error
}
