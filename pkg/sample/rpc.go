package sample

import (
	"context"
	"encoding/binary"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc/codes"

	"upsock/pkg/config"
	"upsock/pkg/identity"
	"upsock/pkg/protocol"
	"upsock/pkg/transport"
)

// ResourceMilliseconds is the resource id of the demo "current time" method.
const ResourceMilliseconds = 0x0001

// MethodFor returns the milliseconds method of the server identity c.
func MethodFor(c config.IdentityConfig) protocol.UUri {
	return identity.Topic(c, ResourceMilliseconds)
}

// RPCServer answers milliseconds requests with the current unix time in
// milliseconds as an 8-byte little-endian raw payload. Requests arrive on in
// and responses leave on out; with uds these are two channels.
type RPCServer struct {
	in, out transport.Transport
	method  protocol.UUri
	log     *zap.Logger
	now     func() time.Time
	ctx     context.Context

	handled atomic.Uint64
}

func NewRPCServer(in, out transport.Transport, method protocol.UUri, logger *zap.Logger) *RPCServer {
	if logger == nil {
		logger = zap.L()
	}
	return &RPCServer{in: in, out: out, method: method, log: logger.Named("rpc-server"), now: time.Now}
}

// Start registers the method listener. Responses are sent with ctx, so
// cancelling it releases a reply blocked on a client that never connected.
func (s *RPCServer) Start(ctx context.Context) error {
	s.ctx = ctx
	return s.in.RegisterListener(s.method, s.onRequest)
}

func (s *RPCServer) Stop() error { return s.in.UnregisterListener(s.method) }

// Handled returns the number of requests answered.
func (s *RPCServer) Handled() uint64 { return s.handled.Load() }

func (s *RPCServer) onRequest(m *protocol.Message) {
	if m.Attributes.Type != protocol.MessageTypeRequest {
		s.log.Warn("ignoring non-request", zap.Stringer("type", m.Attributes.Type), zap.Stringer("id", m.Attributes.ID))
		return
	}
	now := s.now()
	payload := binary.LittleEndian.AppendUint64(nil, uint64(now.UnixMilli()))
	rsp := protocol.NewResponse(m, protocol.FormatRaw, payload)
	if err := s.out.Send(s.ctx, rsp); err != nil {
		s.log.Error("response failed", zap.Stringer("req", m.Attributes.ID), zap.Error(err))
		return
	}
	s.handled.Add(1)
	s.log.Debug("answered", zap.Stringer("req", m.Attributes.ID), zap.Duration("age", now.Sub(m.Attributes.ID.Time())))
}

// RPCClient calls the milliseconds method. Requests leave on out and
// responses arrive on in, matched to their call by request id.
type RPCClient struct {
	in, out transport.Transport
	method  protocol.UUri
	local   protocol.UUri
	log     *zap.Logger

	mu      sync.Mutex
	pending map[protocol.UUID]chan *protocol.Message
}

func NewRPCClient(in, out transport.Transport, method, local protocol.UUri, logger *zap.Logger) *RPCClient {
	if logger == nil {
		logger = zap.L()
	}
	return &RPCClient{
		in:      in,
		out:     out,
		method:  method,
		local:   local,
		log:     logger.Named("rpc-client"),
		pending: make(map[protocol.UUID]chan *protocol.Message),
	}
}

// Start registers the response listener.
func (c *RPCClient) Start() error { return c.in.RegisterListener(c.method, c.onResponse) }

func (c *RPCClient) Stop() error { return c.in.UnregisterListener(c.method) }

// Call sends one request and waits for its response or for ctx.
func (c *RPCClient) Call(ctx context.Context) (uint64, error) {
	req := protocol.NewRequest(c.method, c.local, protocol.FormatRaw, []byte{0})
	ch := make(chan *protocol.Message, 1)
	c.mu.Lock()
	c.pending[req.Attributes.ID] = ch
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		delete(c.pending, req.Attributes.ID)
		c.mu.Unlock()
	}()

	if err := c.out.Send(ctx, req); err != nil {
		return 0, err
	}
	select {
	case rsp := <-ch:
		if len(rsp.Payload) < 8 {
			return 0, transport.Errorf(codes.DataLoss, nil, "rpc: response is %d bytes, want 8", len(rsp.Payload))
		}
		return binary.LittleEndian.Uint64(rsp.Payload), nil
	case <-ctx.Done():
		return 0, transport.ContextError(ctx.Err())
	}
}

// Run calls the method every interval until ctx is cancelled, handing each
// result to emit. A call that times out is logged and skipped; any other
// failure ends the loop.
func (c *RPCClient) Run(ctx context.Context, interval, timeout time.Duration, emit func(uint64)) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		callCtx, cancel := context.WithTimeout(ctx, timeout)
		v, err := c.Call(callCtx)
		cancel()
		switch {
		case err == nil:
			emit(v)
		case ctx.Err() != nil:
			return nil
		case transport.CodeOf(err) == codes.DeadlineExceeded:
			c.log.Warn("call timed out", zap.Duration("timeout", timeout))
		default:
			return fmt.Errorf("rpc call: %w", err)
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

func (c *RPCClient) onResponse(m *protocol.Message) {
	if m.Attributes.Type != protocol.MessageTypeResponse {
		c.log.Warn("ignoring non-response", zap.Stringer("type", m.Attributes.Type))
		return
	}
	c.mu.Lock()
	ch, ok := c.pending[m.Attributes.ReqID]
	c.mu.Unlock()
	if !ok {
		c.log.Debug("late or unknown response", zap.Stringer("req", m.Attributes.ReqID))
		return
	}
	select {
	case ch <- m.Clone():
	default:
	}
}
