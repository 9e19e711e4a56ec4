package transport

import (
	"context"
	"fmt"
	"time"

	"github.com/p2p-crawler/crawler/internal/transport/i2p"
)

// I2POpener dials .b32.i2p peers via a single shared SAM v3 session. The
// session itself is established once per crawl by the caller (cmd/crawler's
// buildTransports) and injected here; I2POpener never creates its own session, which is what
// keeps the crawl to one SAM session total instead of one per stream.
type I2POpener struct {
	Session *i2p.Session
}

// NewI2POpener wraps an already-open SAM session as an Opener.
func NewI2POpener(session *i2p.Session) *I2POpener {
	return &I2POpener{Session: session}
}

func (o *I2POpener) Open(ctx context.Context, host string, port uint16, connectTimeout time.Duration) (Stream, error) {
	if o.Session == nil {
		return nil, fmt.Errorf("transport: i2p session not established")
	}
	conn, err := o.Session.Connect(ctx, host, connectTimeout)
	if err != nil {
		return nil, fmt.Errorf("transport: i2p connect to %s: %w", host, err)
	}
	return newConnStream(conn), nil
}
