// Package i2p implements a minimal SAM v3 client sufficient to open
// STREAM CONNECT sub-streams to .b32.i2p destinations over a single
// long-lived session: one SAM session per crawl, shared by every worker,
// never one session per stream.
package i2p

import (
	"bufio"
	"context"
	"fmt"
	"net"
	"strings"
	"sync"
	"time"
)

const (
	samVersion   = "3.1"
	samSigType   = "EdDSA_SHA512_Ed25519"
	samStyle     = "STREAM"
	samDirection = "BOTH"
)

// Session is a single SAM v3 control connection plus the destination
// identity it created. All STREAM CONNECT calls share the same control
// connection for session bookkeeping; each accepted stream gets its own
// data connection per the SAM protocol's design.
type Session struct {
	host string
	port uint16

	mu      sync.Mutex
	ctrl    net.Conn
	nick    string
	created bool
}

// NewSession opens the control connection and establishes a SAM session.
// The returned Session must be closed exactly once, and is safe for
// concurrent STREAM CONNECT calls from multiple workers.
func NewSession(ctx context.Context, host string, port uint16, nick string) (*Session, error) {
	s := &Session{host: host, port: port, nick: nick}
	if err := s.open(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Session) open(ctx context.Context) error {
	addr := net.JoinHostPort(s.host, fmt.Sprintf("%d", s.port))
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("i2p: dial sam bridge %s: %w", addr, err)
	}

	br := bufio.NewReader(conn)

	reply, err := samRoundTrip(conn, br, fmt.Sprintf("HELLO VERSION MIN=3.0 MAX=%s\n", samVersion))
	if err != nil {
		conn.Close()
		return fmt.Errorf("i2p: hello: %w", err)
	}
	if !strings.Contains(reply, "RESULT=OK") {
		conn.Close()
		return fmt.Errorf("i2p: hello rejected: %s", strings.TrimSpace(reply))
	}

	reply, err = samRoundTrip(conn, br, fmt.Sprintf(
		"SESSION CREATE STYLE=%s ID=%s DESTINATION=TRANSIENT SIGNATURE_TYPE=%s\n",
		samStyle, s.nick, samSigType))
	if err != nil {
		conn.Close()
		return fmt.Errorf("i2p: session create: %w", err)
	}
	if !strings.Contains(reply, "RESULT=OK") {
		conn.Close()
		return fmt.Errorf("i2p: session create rejected: %s", strings.TrimSpace(reply))
	}

	s.ctrl = conn
	s.created = true
	return nil
}

// Close tears down the control connection. Any in-flight STREAM CONNECT
// data connections opened via Connect are independent sockets and are
// unaffected.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ctrl == nil {
		return nil
	}
	err := s.ctrl.Close()
	s.ctrl = nil
	return err
}

// Connect opens a new data connection and issues STREAM CONNECT against
// destination (a .b32.i2p address without the suffix), returning the
// resulting stream ready for application data. Each call dials its own
// fresh data socket per the SAM protocol; only the control channel
// bookkeeping (HELLO/SESSION CREATE) is shared and serialized.
func (s *Session) Connect(ctx context.Context, destination string, connectTimeout time.Duration) (net.Conn, error) {
	s.mu.Lock()
	if s.ctrl == nil {
		s.mu.Unlock()
		return nil, fmt.Errorf("i2p: session closed")
	}
	nick := s.nick
	s.mu.Unlock()

	addr := net.JoinHostPort(s.host, fmt.Sprintf("%d", s.port))
	var d net.Dialer
	dialCtx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()
	conn, err := d.DialContext(dialCtx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("i2p: dial sam bridge for stream: %w", err)
	}

	if err := conn.SetDeadline(time.Now().Add(connectTimeout)); err != nil {
		conn.Close()
		return nil, fmt.Errorf("i2p: set stream deadline: %w", err)
	}

	br := bufio.NewReader(conn)

	reply, err := samRoundTrip(conn, br, fmt.Sprintf("HELLO VERSION MIN=3.0 MAX=%s\n", samVersion))
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("i2p: stream hello: %w", err)
	}
	if !strings.Contains(reply, "RESULT=OK") {
		conn.Close()
		return nil, fmt.Errorf("i2p: stream hello rejected: %s", strings.TrimSpace(reply))
	}

	reply, err = samRoundTrip(conn, br, fmt.Sprintf(
		"STREAM CONNECT ID=%s DESTINATION=%s.b32.i2p SILENT=false\n", nick, destination))
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("i2p: stream connect: %w", err)
	}
	if !strings.Contains(reply, "RESULT=OK") {
		conn.Close()
		return nil, fmt.Errorf("i2p: stream connect to %s rejected: %s", destination, strings.TrimSpace(reply))
	}

	if err := conn.SetDeadline(time.Time{}); err != nil {
		conn.Close()
		return nil, fmt.Errorf("i2p: clear stream deadline: %w", err)
	}
	// br may already hold bytes the peer pipelined right after the SAM
	// reply; route subsequent reads through it so nothing is dropped.
	return &bufferedConn{Conn: conn, r: br}, nil
}

func samRoundTrip(conn net.Conn, br *bufio.Reader, cmd string) (string, error) {
	if _, err := conn.Write([]byte(cmd)); err != nil {
		return "", fmt.Errorf("write: %w", err)
	}
	line, err := br.ReadString('\n')
	if err != nil {
		return "", fmt.Errorf("read reply: %w", err)
	}
	return line, nil
}

// bufferedConn is a net.Conn whose reads are served from a bufio.Reader that
// may already contain bytes buffered during the SAM handshake.
type bufferedConn struct {
	net.Conn
	r *bufio.Reader
}

func (b *bufferedConn) Read(p []byte) (int, error) {
	return b.r.Read(p)
}
