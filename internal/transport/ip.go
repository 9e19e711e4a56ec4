package transport

import (
	"context"
	"fmt"
	"net"
	"time"
)

// IPOpener dials IPv4/IPv6 peers directly via a plain TCP connect, bounded
// by the IP connect-timeout.
type IPOpener struct {
	Dialer net.Dialer
}

// NewIPOpener returns an Opener for direct TCP connections.
func NewIPOpener() *IPOpener {
	return &IPOpener{}
}

func (o *IPOpener) Open(ctx context.Context, host string, port uint16, connectTimeout time.Duration) (Stream, error) {
	ctx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	addr := net.JoinHostPort(host, fmt.Sprintf("%d", port))
	conn, err := o.Dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("transport: ip dial %s: %w", addr, err)
	}
	return newConnStream(conn), nil
}
