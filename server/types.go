// File: server/types.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package server

import (
	"time"

	"go.uber.org/zap"

	"github.com/momentics/wsgate/protocol"
)

// Config holds per-connection configuration. It is copied into every
// connection and never mutated afterwards.
type Config struct {
	Protocols        []string      // supported subprotocols
	PingInterval     time.Duration // keepalive period, 0 disables
	MaxFrameSize     int64         // largest inbound frame payload
	MaxMessageSize   int64         // largest assembled inbound message
	FragmentSize     int           // outbound fragment size, 0 sends whole messages
	CloseGracePeriod time.Duration // wait for the peer's close ack, 0 closes at once
	ReadBufferSize   int           // bytes requested per transport read
	Logger           *zap.Logger
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		MaxFrameSize:   protocol.DefaultMaxFrameSize,
		MaxMessageSize: protocol.DefaultMaxMessageSize,
		ReadBufferSize: 4096,
		Logger:         zap.NewNop(),
	}
}

func (c *Config) codecOptions() protocol.Options {
	return protocol.Options{
		Protocols:      c.Protocols,
		MaxFrameSize:   c.MaxFrameSize,
		MaxMessageSize: c.MaxMessageSize,
		FragmentSize:   c.FragmentSize,
	}
}

func newConfig(opts []Option) Config {
	cfg := DefaultConfig()
	for _, o := range opts {
		o(cfg)
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.ReadBufferSize <= 0 {
		cfg.ReadBufferSize = 4096
	}
	cfg.Protocols = append([]string(nil), cfg.Protocols...)
	return *cfg
}
