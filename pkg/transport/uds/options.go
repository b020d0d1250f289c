package uds

import (
	"time"

	"go.uber.org/zap"

	"upsock/pkg/protocol"
)

const DefaultBackoff = time.Second

type options struct {
	channel  string
	dir      string
	logger   *zap.Logger
	backoff  time.Duration
	maxFrame int
}

// Option configures a Transport.
type Option func(*options)

// WithChannel sets the channel name both peers derive the socket path from.
// Defaults to the local authority name.
func WithChannel(name string) Option { return func(o *options) { o.channel = name } }

// WithSocketDir sets the directory holding the socket file. Defaults to the
// directory of the running executable. Ignored on Windows.
func WithSocketDir(dir string) Option { return func(o *options) { o.dir = dir } }

func WithLogger(l *zap.Logger) Option { return func(o *options) { o.logger = l } }

// WithBackoff sets the wait between failed connection attempts.
func WithBackoff(d time.Duration) Option { return func(o *options) { o.backoff = d } }

// WithMaxFrameSize bounds encoded message size in both directions.
func WithMaxFrameSize(n int) Option { return func(o *options) { o.maxFrame = n } }

func defaultOptions(local protocol.UUri) options {
	return options{
		channel:  local.Authority,
		logger:   zap.L(),
		backoff:  DefaultBackoff,
		maxFrame: protocol.DefaultMaxFrameSize,
	}
}
