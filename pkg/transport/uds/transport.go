// Package uds carries protocol messages between two local processes over a
// unix domain socket (a named pipe on Windows).
//
// A Transport has two independent roles on the same path. Sending makes it
// the acceptor: the first Send binds the path and waits for exactly one peer
// to connect. Registering a listener makes it the connector: a receive
// goroutine dials the path, reconnecting with a fixed backoff whenever the
// peer goes away. Two processes that both send and receive therefore use two
// channels, one per direction.
package uds

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc/codes"

	"upsock/pkg/protocol"
	"upsock/pkg/protocol/stream"
	"upsock/pkg/transport"
)

// Transport implements transport.Transport over a local socket.
type Transport struct {
	local protocol.UUri
	path  string
	opts  options
	log   *zap.Logger
	reg   *transport.Registry

	ctx    context.Context
	cancel context.CancelFunc

	// gate serializes the acceptor step; connDone/connErr are guarded by it.
	gate     chan struct{}
	connDone bool
	connErr  error
	acceptCh chan acceptResult

	wmu sync.Mutex
	out *stream.Conn

	mu       sync.Mutex // guards the fields below and closed transitions
	ln       net.Listener
	outConn  net.Conn
	inConn   net.Conn
	started  bool
	loopDone chan struct{}

	closed atomic.Bool
	state  atomic.Int32

	sent       atomic.Uint64
	received   atomic.Uint64
	dropped    atomic.Uint64
	reconnects atomic.Uint64
	seq        atomic.Uint64
}

var _ transport.Transport = (*Transport)(nil)

type acceptResult struct {
	conn net.Conn
	err  error
}

// New derives the channel path for local and validates it. No socket is
// bound or dialed until Send or RegisterListener is called.
func New(local protocol.UUri, opts ...Option) (*Transport, error) {
	o := defaultOptions(local)
	for _, fn := range opts {
		fn(&o)
	}
	if o.channel == "" {
		return nil, transport.Errorf(codes.InvalidArgument, nil, "uds: empty channel name (local authority %q)", local.Authority)
	}
	if o.backoff <= 0 {
		o.backoff = DefaultBackoff
	}
	if o.maxFrame <= 0 {
		o.maxFrame = protocol.DefaultMaxFrameSize
	}
	if o.logger == nil {
		o.logger = zap.NewNop()
	}
	path, err := channelPath(o.dir, o.channel)
	if err != nil {
		return nil, transport.Errorf(codes.InvalidArgument, err, "uds: channel %q", o.channel)
	}
	ctx, cancel := context.WithCancel(context.Background())
	t := &Transport{
		local:  local,
		path:   path,
		opts:   o,
		log:    o.logger.Named("uds").With(zap.String("path", path)),
		reg:    transport.NewRegistry(),
		ctx:    ctx,
		cancel: cancel,
		gate:   make(chan struct{}, 1),
	}
	t.log.Debug("transport created", zap.Stringer("local", local))
	return t, nil
}

// Path returns the socket path (or pipe name) of the channel.
func (t *Transport) Path() string { return t.path }

// Local returns the endpoint the transport was created for.
func (t *Transport) Local() protocol.UUri { return t.local }

// State returns the receive-side connection state.
func (t *Transport) State() transport.State { return transport.State(t.state.Load()) }

func (t *Transport) setState(s transport.State) {
	if old := transport.State(t.state.Swap(int32(s))); old != s {
		t.log.Debug("state change", zap.Stringer("from", old), zap.Stringer("state", s))
	}
}

// Stats returns a snapshot of the counters.
func (t *Transport) Stats() transport.Stats {
	return transport.Stats{
		Sent:       t.sent.Load(),
		Received:   t.received.Load(),
		Dropped:    t.dropped.Load(),
		Reconnects: t.reconnects.Load(),
		SendSeq:    t.seq.Load(),
	}
}

// Connect runs the acceptor step: bind the path and wait for one peer. It
// returns immediately once a peer is connected. A bind or accept failure is
// permanent and later calls report it as FailedPrecondition. Cancelling ctx
// only abandons this wait; the bound socket keeps waiting for the peer.
func (t *Transport) Connect(ctx context.Context) error {
	if t.closed.Load() {
		return transport.ErrClosed
	}
	select {
	case t.gate <- struct{}{}:
	case <-ctx.Done():
		return transport.ContextError(ctx.Err())
	case <-t.ctx.Done():
		return transport.ErrClosed
	}
	defer func() { <-t.gate }()

	if t.connDone {
		if t.connErr != nil {
			return transport.Errorf(codes.FailedPrecondition, t.connErr, "uds: peer connection failed earlier")
		}
		return nil
	}
	if t.acceptCh == nil {
		if err := t.bind(); err != nil {
			return err
		}
	}

	select {
	case r := <-t.acceptCh:
		t.connDone = true
		if r.err != nil {
			if t.closed.Load() {
				return transport.ErrClosed
			}
			t.connErr = r.err
			t.log.Error("accept failed", zap.Error(r.err))
			return transport.Errorf(codes.Unavailable, r.err, "uds: accept")
		}
		t.mu.Lock()
		if t.closed.Load() {
			t.mu.Unlock()
			_ = r.conn.Close()
			return transport.ErrClosed
		}
		t.outConn = r.conn
		t.mu.Unlock()
		t.out = stream.NewNetConn(r.conn, t.opts.maxFrame)
		t.log.Info("peer connected")
		return nil
	case <-ctx.Done():
		return transport.ContextError(ctx.Err())
	case <-t.ctx.Done():
		return transport.ErrClosed
	}
}

// bind listens on the path and starts the single accept. Called with the gate held.
func (t *Transport) bind() error {
	ln, err := listen(t.path)
	if err != nil {
		t.connDone, t.connErr = true, err
		t.log.Error("bind failed", zap.Error(err))
		return transport.Errorf(codes.Unavailable, err, "uds: bind %s", t.path)
	}
	t.mu.Lock()
	if t.closed.Load() {
		t.mu.Unlock()
		_ = ln.Close()
		return transport.ErrClosed
	}
	t.ln = ln
	t.mu.Unlock()

	t.acceptCh = make(chan acceptResult, 1)
	go func() {
		c, err := ln.Accept()
		t.acceptCh <- acceptResult{conn: c, err: err}
	}()
	t.log.Info("waiting for peer")
	return nil
}

// Send encodes m and writes it as one frame, blocking until a peer has
// connected if none has yet. Concurrent calls are serialized.
func (t *Transport) Send(ctx context.Context, m *protocol.Message) error {
	if m == nil {
		return transport.Errorf(codes.InvalidArgument, nil, "uds: nil message")
	}
	if t.closed.Load() {
		return transport.ErrClosed
	}
	body, err := m.MarshalBinary()
	if err != nil {
		return transport.Errorf(codes.InvalidArgument, err, "uds: encode")
	}
	if len(body) > t.opts.maxFrame {
		return transport.Errorf(codes.InvalidArgument, protocol.ErrFrameTooLarge, "uds: message is %d bytes, limit %d", len(body), t.opts.maxFrame)
	}
	if err := t.Connect(ctx); err != nil {
		return err
	}

	t.wmu.Lock()
	defer t.wmu.Unlock()
	if t.closed.Load() {
		return transport.ErrClosed
	}
	seq := t.seq.Add(1)
	if err := t.out.SendBody(body); err != nil {
		if t.closed.Load() {
			return transport.ErrClosed
		}
		t.log.Warn("send failed", zap.Uint64("seq", seq), zap.Error(err))
		return transport.Errorf(codes.Unavailable, err, "uds: write")
	}
	t.sent.Add(1)
	t.log.Debug("sent", zap.Uint64("seq", seq), zap.Stringer("source", m.Topic()), zap.Int("bytes", len(body)))
	return nil
}

// RegisterListener binds l to topic and starts the receive goroutine on the
// first call. A listener already bound to topic is replaced.
func (t *Transport) RegisterListener(topic protocol.UUri, l transport.Listener) error {
	if l == nil {
		return transport.Errorf(codes.InvalidArgument, nil, "uds: nil listener")
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed.Load() {
		return transport.ErrClosed
	}
	if t.reg.Register(topic, l) {
		t.log.Debug("listener replaced", zap.Stringer("topic", topic))
	} else {
		t.log.Debug("listener registered", zap.Stringer("topic", topic), zap.Stringer("fp", protocol.FingerprintOf(topic)))
	}
	if !t.started {
		t.started = true
		t.loopDone = make(chan struct{})
		t.setState(transport.StateDisconnected)
		go t.run()
	}
	return nil
}

// UnregisterListener removes the listener bound to topic. The receive
// goroutine keeps running.
func (t *Transport) UnregisterListener(topic protocol.UUri) error {
	if t.closed.Load() {
		return transport.ErrClosed
	}
	if !t.reg.Unregister(topic) {
		return transport.Errorf(codes.NotFound, nil, "uds: no listener for %s", topic)
	}
	t.log.Debug("listener removed", zap.Stringer("topic", topic))
	return nil
}

// run is the receive state machine: dial, read until the connection breaks,
// redial. It exits only on Close.
func (t *Transport) run() {
	defer close(t.loopDone)
	defer t.setState(transport.StateStopped)
	for {
		if t.ctx.Err() != nil {
			return
		}
		conn, err := dial(t.ctx, t.path)
		if err != nil {
			if t.ctx.Err() != nil {
				return
			}
			t.log.Debug("dial failed, retrying", zap.Duration("backoff", t.opts.backoff), zap.Error(err))
			if !t.wait() {
				return
			}
			continue
		}
		if !t.attach(conn) {
			_ = conn.Close()
			return
		}
		t.setState(transport.StateConnected)
		t.log.Info("connected to peer")

		err = t.readLoop(stream.NewNetConn(conn, t.opts.maxFrame))
		t.detach(conn)
		if t.ctx.Err() != nil {
			return
		}
		t.reconnects.Add(1)
		t.setState(transport.StateDisconnected)
		t.log.Info("peer disconnected, reconnecting", zap.Error(err))
	}
}

func (t *Transport) attach(c net.Conn) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed.Load() {
		return false
	}
	t.inConn = c
	return true
}

func (t *Transport) detach(c net.Conn) {
	t.mu.Lock()
	t.inConn = nil
	t.mu.Unlock()
	_ = c.Close()
}

func (t *Transport) readLoop(c *stream.Conn) error {
	for {
		m, err := c.Recv()
		if err != nil {
			return fmt.Errorf("read: %w", err)
		}
		n := t.received.Add(1)
		t.dispatch(m, n)
	}
}

func (t *Transport) dispatch(m *protocol.Message, n uint64) {
	if !t.reg.Dispatch(m) {
		t.dropped.Add(1)
		t.log.Error("no listener for message", zap.Stringer("source", m.Topic()), zap.Uint64("seq", n))
		return
	}
	t.log.Debug("dispatched", zap.Stringer("source", m.Topic()), zap.Uint64("seq", n))
}

// wait sleeps for one backoff interval and reports false if the transport
// was closed meanwhile.
func (t *Transport) wait() bool {
	timer := time.NewTimer(t.opts.backoff)
	defer timer.Stop()
	select {
	case <-t.ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

// drainAccept closes a peer the accept goroutine delivered after Connect
// gave up on it. Called once the listener is closed, so the accept has
// finished or is about to.
func (t *Transport) drainAccept() {
	t.gate <- struct{}{}
	defer func() { <-t.gate }()
	if t.acceptCh == nil || t.connDone {
		return
	}
	t.connDone = true
	if r := <-t.acceptCh; r.conn != nil {
		t.log.Debug("closing peer accepted during shutdown")
		_ = r.conn.Close()
	}
}

// Close stops the receive goroutine, closes every connection and removes
// the bound socket file. It is safe to call more than once.
func (t *Transport) Close() error {
	t.mu.Lock()
	if t.closed.Load() {
		t.mu.Unlock()
		return nil
	}
	t.closed.Store(true)
	t.cancel()
	ln, out, in := t.ln, t.outConn, t.inConn
	started, done := t.started, t.loopDone
	t.mu.Unlock()

	var errs []error
	for _, c := range []interface{ Close() error }{ln, out, in} {
		if c == nil {
			continue
		}
		if err := c.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
			errs = append(errs, err)
		}
	}
	if started {
		<-done
	}
	t.drainAccept()
	t.setState(transport.StateStopped)
	t.reg.Clear()
	t.log.Debug("transport closed", zap.Uint64("sent", t.sent.Load()), zap.Uint64("received", t.received.Load()))
	return errors.Join(errs...)
}
