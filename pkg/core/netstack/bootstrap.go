// Package netstack builds the configured transport for a process.
package netstack

import (
	"time"

	"go.uber.org/zap"

	"upsock/pkg/config"
	"upsock/pkg/protocol"
	"upsock/pkg/transport"
	"upsock/pkg/transport/mem"
	"upsock/pkg/transport/uds"
)

// NewByKind constructs the transport selected by cfg.Kind for the local
// endpoint. The channel name falls back to the local authority.
func NewByKind(cfg config.TransportConfig, local protocol.UUri, logger *zap.Logger) (transport.Transport, error) {
	kind, err := transport.ParseKind(cfg.Kind)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.L()
	}
	channel := cfg.Channel
	if channel == "" {
		channel = local.Authority
	}
	logger.Debug("building transport", zap.Stringer("kind", kind), zap.String("channel", channel))

	switch kind {
	case transport.KindMem:
		opts := []mem.Option{mem.WithLogger(logger)}
		if cfg.MaxFrameBytes > 0 {
			opts = append(opts, mem.WithMaxFrameSize(cfg.MaxFrameBytes))
		}
		return mem.New(channel, opts...)
	default:
		opts := []uds.Option{
			uds.WithChannel(channel),
			uds.WithSocketDir(cfg.SocketDir),
			uds.WithLogger(logger),
		}
		if cfg.BackoffMS > 0 {
			opts = append(opts, uds.WithBackoff(time.Duration(cfg.BackoffMS)*time.Millisecond))
		}
		if cfg.MaxFrameBytes > 0 {
			opts = append(opts, uds.WithMaxFrameSize(cfg.MaxFrameBytes))
		}
		return uds.New(local, opts...)
	}
}
