package transport

import (
	"fmt"
	"net"
	"time"
)

// connStream adapts a net.Conn to the Stream interface shared by all four
// transports. It is the terminal wrapper every adapter (direct IP, Tor,
// I2P, CJDNS) returns once its own connect-time setup (SOCKS5 handshake,
// SAM STREAM CONNECT, etc.) has produced a plain byte stream.
type connStream struct {
	conn net.Conn
}

func newConnStream(conn net.Conn) Stream {
	return &connStream{conn: conn}
}

func (s *connStream) ReadExact(buf []byte, deadline time.Time) error {
	if err := s.conn.SetReadDeadline(deadline); err != nil {
		return fmt.Errorf("transport: set read deadline: %w", err)
	}
	n := 0
	for n < len(buf) {
		m, err := s.conn.Read(buf[n:])
		n += m
		if err != nil {
			return fmt.Errorf("transport: read: %w", err)
		}
	}
	return nil
}

func (s *connStream) WriteAll(buf []byte, deadline time.Time) error {
	if err := s.conn.SetWriteDeadline(deadline); err != nil {
		return fmt.Errorf("transport: set write deadline: %w", err)
	}
	n := 0
	for n < len(buf) {
		m, err := s.conn.Write(buf[n:])
		n += m
		if err != nil {
			return fmt.Errorf("transport: write: %w", err)
		}
	}
	return nil
}

// Close unconditionally releases the underlying file descriptor. It must be
// safe to call exactly once on every exit path, including after a timed-out
// ReadExact/WriteAll.
func (s *connStream) Close() error {
	return s.conn.Close()
}
