// Package transport implements the four connection strategies the crawler
// needs — direct IP, Tor SOCKS5, I2P SAM, and CJDNS — behind one uniform
// stream abstraction.
package transport

import (
	"context"
	"io"
	"time"
)

// Stream is a byte-oriented connection to a peer, with explicit per-call
// deadlines instead of the set-then-forget deadline style net.Conn
// encourages; every suspension point in the crawler passes its own deadline
// so cancellation and timeout logic lives in one place (the session state
// machine), not scattered across transports.
type Stream interface {
	// ReadExact reads exactly len(buf) bytes, or returns an error, honoring
	// deadline.
	ReadExact(buf []byte, deadline time.Time) error
	// WriteAll writes every byte of buf, or returns an error, honoring
	// deadline.
	WriteAll(buf []byte, deadline time.Time) error
	io.Closer
}

// Opener is implemented by each transport adapter: direct IP, Tor, I2P, and
// CJDNS all present the same open/close capability set.
type Opener interface {
	// Open connects to host:port under ctx and connectTimeout, returning a
	// ready-to-use Stream. Exactly one Close call is required per
	// successful Open.
	Open(ctx context.Context, host string, port uint16, connectTimeout time.Duration) (Stream, error)
}
