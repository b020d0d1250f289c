package config

import (
	"fmt"
	"strings"
)

// TransportConfig selects the channel implementation.
// Example YAML:
// transport:
//
//	kind: uds            # uds or mem
//	socket_dir: /run/upsock
//	channel: test.app    # defaults to identity.authority
//	backoff_ms: 1000
type TransportConfig struct {
	Kind          string `mapstructure:"kind" yaml:"kind"`
	SocketDir     string `mapstructure:"socket_dir" yaml:"socket_dir"`
	Channel       string `mapstructure:"channel" yaml:"channel"`
	BackoffMS     int    `mapstructure:"backoff_ms" yaml:"backoff_ms"`
	MaxFrameBytes int    `mapstructure:"max_frame_bytes" yaml:"max_frame_bytes"`
}

func (c *TransportConfig) validate() error {
	c.Kind = strings.ToLower(strings.TrimSpace(c.Kind))
	switch c.Kind {
	case "", "uds", "mem":
	default:
		return fmt.Errorf("invalid transport.kind: %q", c.Kind)
	}
	if c.BackoffMS < 0 {
		return fmt.Errorf("invalid transport.backoff_ms: %d", c.BackoffMS)
	}
	if c.MaxFrameBytes < 0 {
		return fmt.Errorf("invalid transport.max_frame_bytes: %d", c.MaxFrameBytes)
	}
	return nil
}
