// File: server/options.go
// Package server defines functional options for connections.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package server

import (
	"time"

	"go.uber.org/zap"
)

// Option customizes connection configuration.
type Option func(*Config)

// WithConfig replaces the whole configuration; later options still apply.
func WithConfig(cfg Config) Option {
	return func(c *Config) {
		*c = cfg
	}
}

// WithProtocols sets the subprotocols the server is willing to speak.
func WithProtocols(protocols ...string) Option {
	return func(c *Config) {
		c.Protocols = append(c.Protocols, protocols...)
	}
}

// WithPingInterval enables keepalive pings every d.
func WithPingInterval(d time.Duration) Option {
	return func(c *Config) {
		c.PingInterval = d
	}
}

// WithMaxFrameSize overrides the inbound frame payload limit.
func WithMaxFrameSize(n int64) Option {
	return func(c *Config) {
		c.MaxFrameSize = n
	}
}

// WithMaxMessageSize overrides the assembled message limit.
func WithMaxMessageSize(n int64) Option {
	return func(c *Config) {
		c.MaxMessageSize = n
	}
}

// WithFragmentSize splits outbound hybi messages into fragments of n bytes.
func WithFragmentSize(n int) Option {
	return func(c *Config) {
		c.FragmentSize = n
	}
}

// WithCloseGracePeriod makes Close wait up to d for the peer's close frame.
func WithCloseGracePeriod(d time.Duration) Option {
	return func(c *Config) {
		c.CloseGracePeriod = d
	}
}

// WithReadBufferSize sets the size of each transport read.
func WithReadBufferSize(n int) Option {
	return func(c *Config) {
		c.ReadBufferSize = n
	}
}

// WithLogger attaches a zap logger.
func WithLogger(l *zap.Logger) Option {
	return func(c *Config) {
		c.Logger = l
	}
}
