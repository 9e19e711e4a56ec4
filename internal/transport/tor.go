package transport

import (
	"context"
	"fmt"
	"net"
	"time"

	"golang.org/x/net/proxy"
)

// TorOpener dials .onion peers through a local Tor SOCKS5 proxy. The
// destination is passed to the proxy as a domain name so that hostname
// resolution happens inside Tor, never locally.
type TorOpener struct {
	ProxyHost string
	ProxyPort uint16
}

// NewTorOpener returns an Opener that routes through the given SOCKS5 proxy.
func NewTorOpener(proxyHost string, proxyPort uint16) *TorOpener {
	return &TorOpener{ProxyHost: proxyHost, ProxyPort: proxyPort}
}

// socksDeadlineDialer lets the SOCKS5 negotiation itself honor ctx, since
// golang.org/x/net/proxy.SOCKS5 only accepts a plain Dialer for the forward
// hop, not a context-aware one.
type socksDeadlineDialer struct {
	net.Dialer
	ctx context.Context
}

func (d *socksDeadlineDialer) Dial(network, addr string) (net.Conn, error) {
	return d.DialContext(d.ctx, network, addr)
}

func (o *TorOpener) Open(ctx context.Context, host string, port uint16, connectTimeout time.Duration) (Stream, error) {
	ctx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	proxyAddr := net.JoinHostPort(o.ProxyHost, fmt.Sprintf("%d", o.ProxyPort))
	forward := &socksDeadlineDialer{ctx: ctx}
	dialer, err := proxy.SOCKS5("tcp", proxyAddr, nil, forward)
	if err != nil {
		return nil, fmt.Errorf("transport: build socks5 dialer via %s: %w", proxyAddr, err)
	}

	onionAddr := net.JoinHostPort(host+".onion", fmt.Sprintf("%d", port))
	done := make(chan struct{})
	var conn net.Conn
	var dialErr error
	go func() {
		defer close(done)
		conn, dialErr = dialer.Dial("tcp", onionAddr)
	}()

	select {
	case <-done:
		if dialErr != nil {
			return nil, fmt.Errorf("transport: tor dial %s via %s: %w", onionAddr, proxyAddr, dialErr)
		}
		return newConnStream(conn), nil
	case <-ctx.Done():
		// The dial goroutine may still be in flight. Wait for it in the
		// background and close whatever connection it produces, so a
		// connect that completes after the timeout doesn't leak a socket.
		go func() {
			<-done
			if dialErr == nil && conn != nil {
				conn.Close()
			}
		}()
		return nil, fmt.Errorf("transport: tor dial %s timed out: %w", onionAddr, ctx.Err())
	}
}
