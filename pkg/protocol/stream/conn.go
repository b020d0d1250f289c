package stream

import (
	"bufio"
	"io"
	"net"

	"upsock/pkg/protocol"
)

// Conn sends and receives length-prefixed protocol.Message frames over a
// byte stream. Send and Recv may run concurrently with each other, but
// concurrent Sends (or Recvs) must be serialized by the caller.
type Conn struct {
	rw       io.ReadWriter
	br       *bufio.Reader
	bw       *bufio.Writer
	maxFrame int
}

// New wraps rw. maxFrame <= 0 selects protocol.DefaultMaxFrameSize.
func New(rw io.ReadWriter, maxFrame int) *Conn {
	return &Conn{rw: rw, br: bufio.NewReader(rw), bw: bufio.NewWriter(rw), maxFrame: maxFrame}
}

func NewNetConn(c net.Conn, maxFrame int) *Conn { return New(c, maxFrame) }

// Send writes one frame and flushes it.
func (c *Conn) Send(m *protocol.Message) error {
	body, err := m.MarshalBinary()
	if err != nil {
		return err
	}
	return c.SendBody(body)
}

// SendBody writes an already encoded message as one frame and flushes it.
func (c *Conn) SendBody(body []byte) error {
	if err := protocol.WriteFrame(c.bw, body); err != nil {
		return err
	}
	return c.bw.Flush()
}

// Recv blocks for the next frame. A clean close by the peer yields io.EOF.
func (c *Conn) Recv() (*protocol.Message, error) {
	body, err := protocol.ReadFrame(c.br, c.maxFrame)
	if err != nil {
		return nil, err
	}
	var m protocol.Message
	if err := m.UnmarshalBinary(body); err != nil {
		return nil, err
	}
	return &m, nil
}

// Close closes the underlying stream if it is an io.Closer.
func (c *Conn) Close() error {
	if cl, ok := c.rw.(io.Closer); ok {
		return cl.Close()
	}
	return nil
}
