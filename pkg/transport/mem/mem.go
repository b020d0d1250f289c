// Package mem is an in-process transport. Two endpoints created with the same
// name on one Network are joined by a net.Pipe and exchange the same frames
// the uds transport writes to its socket. Useful for tests and for running
// publisher and subscriber inside one process.
//
// Unlike uds, a mem pair is bidirectional and one-shot: once either end
// closes, the other end's sends fail with Unavailable, and the name cannot
// be joined again until both ends are closed.
package mem

import (
	"context"
	"fmt"
	"net"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
	"google.golang.org/grpc/codes"

	"upsock/pkg/protocol"
	"upsock/pkg/protocol/stream"
	"upsock/pkg/transport"
)

// Network is a namespace of mem channels.
type Network struct {
	mu    sync.Mutex
	chans map[string]*channel
}

// channel holds the endpoints joined under one name. Once two ends are
// paired the entry stays until both have left, so a name is never paired
// twice while either end is alive.
type channel struct {
	ends []*Transport
	left int
}

func NewNetwork() *Network { return &Network{chans: make(map[string]*channel)} }

var defaultNetwork = NewNetwork()

func (n *Network) join(t *Transport) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	ch := n.chans[t.name]
	switch {
	case ch == nil:
		n.chans[t.name] = &channel{ends: []*Transport{t}}
	case len(ch.ends) == 1:
		ch.ends = append(ch.ends, t)
		a, b := net.Pipe()
		ch.ends[0].attach(a)
		t.attach(b)
	default:
		return transport.Errorf(codes.AlreadyExists, nil, "mem: channel %q already paired", t.name)
	}
	return nil
}

func (n *Network) leave(t *Transport) {
	n.mu.Lock()
	defer n.mu.Unlock()
	ch := n.chans[t.name]
	if ch == nil {
		return
	}
	if len(ch.ends) == 1 {
		if ch.ends[0] == t {
			delete(n.chans, t.name)
		}
		return
	}
	ch.left++
	if ch.left == len(ch.ends) {
		delete(n.chans, t.name)
	}
}

// Option configures a Transport.
type Option func(*Transport)

func WithNetwork(n *Network) Option { return func(t *Transport) { t.net = n } }
func WithLogger(l *zap.Logger) Option { return func(t *Transport) { t.log = l } }
func WithMaxFrameSize(size int) Option { return func(t *Transport) { t.maxFrame = size } }

// Transport implements transport.Transport in memory.
type Transport struct {
	name     string
	net      *Network
	log      *zap.Logger
	maxFrame int
	reg      *transport.Registry

	ready    chan struct{} // closed once paired
	done     chan struct{} // closed by Close
	loopDone chan struct{}
	attached bool // guarded by net.mu
	raw      net.Conn
	conn     *stream.Conn

	wmu       sync.Mutex
	closeOnce sync.Once
	state     atomic.Int32

	sent     atomic.Uint64
	received atomic.Uint64
	dropped  atomic.Uint64
	seq      atomic.Uint64
}

var _ transport.Transport = (*Transport)(nil)

// New joins channel name. The second endpoint to join completes the pair.
func New(name string, opts ...Option) (*Transport, error) {
	if name == "" {
		return nil, transport.Errorf(codes.InvalidArgument, nil, "mem: empty channel name")
	}
	t := &Transport{
		name:     name,
		net:      defaultNetwork,
		log:      zap.L(),
		maxFrame: protocol.DefaultMaxFrameSize,
		reg:      transport.NewRegistry(),
		ready:    make(chan struct{}),
		done:     make(chan struct{}),
		loopDone: make(chan struct{}),
	}
	for _, fn := range opts {
		fn(t)
	}
	t.log = t.log.Named("mem").With(zap.String("channel", name))
	t.state.Store(int32(transport.StateDisconnected))
	if err := t.net.join(t); err != nil {
		return nil, err
	}
	return t, nil
}

// attach is called with net.mu held.
func (t *Transport) attach(c net.Conn) {
	t.attached = true
	t.raw = c
	t.conn = stream.NewNetConn(c, t.maxFrame)
	t.state.Store(int32(transport.StateConnected))
	close(t.ready)
	go t.readLoop()
	t.log.Debug("paired")
}

func (t *Transport) closed() bool {
	select {
	case <-t.done:
		return true
	default:
		return false
	}
}

// State returns the pairing state.
func (t *Transport) State() transport.State { return transport.State(t.state.Load()) }

func (t *Transport) Stats() transport.Stats {
	return transport.Stats{
		Sent:     t.sent.Load(),
		Received: t.received.Load(),
		Dropped:  t.dropped.Load(),
		SendSeq:  t.seq.Load(),
	}
}

// Send waits for the peer endpoint to join, then writes m.
func (t *Transport) Send(ctx context.Context, m *protocol.Message) error {
	if m == nil {
		return transport.Errorf(codes.InvalidArgument, nil, "mem: nil message")
	}
	if t.closed() {
		return transport.ErrClosed
	}
	body, err := m.MarshalBinary()
	if err != nil {
		return transport.Errorf(codes.InvalidArgument, err, "mem: encode")
	}
	if len(body) > t.maxFrame {
		return transport.Errorf(codes.InvalidArgument, protocol.ErrFrameTooLarge, "mem: message is %d bytes, limit %d", len(body), t.maxFrame)
	}
	select {
	case <-t.ready:
	case <-ctx.Done():
		return transport.ContextError(ctx.Err())
	case <-t.done:
		return transport.ErrClosed
	}

	t.wmu.Lock()
	defer t.wmu.Unlock()
	seq := t.seq.Add(1)
	if err := t.conn.SendBody(body); err != nil {
		if t.closed() {
			return transport.ErrClosed
		}
		return transport.Errorf(codes.Unavailable, err, "mem: write")
	}
	t.sent.Add(1)
	t.log.Debug("sent", zap.Uint64("seq", seq), zap.Stringer("source", m.Topic()))
	return nil
}

func (t *Transport) RegisterListener(topic protocol.UUri, l transport.Listener) error {
	if l == nil {
		return transport.Errorf(codes.InvalidArgument, nil, "mem: nil listener")
	}
	if t.closed() {
		return transport.ErrClosed
	}
	if t.reg.Register(topic, l) {
		t.log.Debug("listener replaced", zap.Stringer("topic", topic))
	}
	return nil
}

func (t *Transport) UnregisterListener(topic protocol.UUri) error {
	if t.closed() {
		return transport.ErrClosed
	}
	if !t.reg.Unregister(topic) {
		return transport.Errorf(codes.NotFound, nil, "mem: no listener for %s", topic)
	}
	return nil
}

// readLoop drains the pipe for the life of the pair. Frames for topics with
// no listener are counted and dropped so the writer never stalls.
func (t *Transport) readLoop() {
	defer close(t.loopDone)
	for {
		m, err := t.conn.Recv()
		if err != nil {
			if t.closed() {
				t.state.Store(int32(transport.StateStopped))
			} else {
				t.state.Store(int32(transport.StateDisconnected))
				t.log.Info("peer gone", zap.Error(err))
			}
			return
		}
		n := t.received.Add(1)
		if !t.reg.Dispatch(m) {
			t.dropped.Add(1)
			t.log.Error("no listener for message", zap.Stringer("source", m.Topic()), zap.Uint64("seq", n))
		}
	}
}

// Close leaves the network and closes the pipe. Idempotent.
func (t *Transport) Close() error {
	var err error
	t.closeOnce.Do(func() {
		t.net.leave(t)
		close(t.done)
		t.net.mu.Lock()
		attached, raw := t.attached, t.raw
		t.net.mu.Unlock()
		if attached {
			if cerr := raw.Close(); cerr != nil {
				err = fmt.Errorf("mem: close: %w", cerr)
			}
			<-t.loopDone
		}
		t.state.Store(int32(transport.StateStopped))
		t.reg.Clear()
	})
	return err
}
