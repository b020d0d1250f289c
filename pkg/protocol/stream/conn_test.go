package stream

import (
	"io"
	"net"
	"testing"

	"upsock/pkg/protocol"
)

func TestConnOverPipe(t *testing.T) {
	a, b := net.Pipe()
	ca, cb := NewNetConn(a, 0), NewNetConn(b, 0)
	defer ca.Close()

	topic := protocol.MustParseURI("//svc-a/10/1/8001")
	done := make(chan error, 1)
	go func() {
		done <- ca.Send(protocol.NewPublish(topic, protocol.FormatText, []byte("hello")))
	}()
	m, err := cb.Recv()
	if err != nil {
		t.Fatalf("recv: %v", err)
	}
	if err := <-done; err != nil {
		t.Fatalf("send: %v", err)
	}
	if m.Topic() != topic || string(m.Payload) != "hello" {
		t.Fatalf("unexpected message: %v %q", m.Topic(), m.Payload)
	}
	_ = cb.Close()
	if _, err := ca.Recv(); err != io.EOF {
		t.Fatalf("want io.EOF after peer close, got %v", err)
	}
}
