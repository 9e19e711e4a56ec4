package session

import (
	"time"

	"github.com/p2p-crawler/crawler/internal/transport"
)

// streamWriter adapts a transport.Stream to io.Writer under one fixed
// deadline, for framing a single outbound message with wire.WriteMessage.
type streamWriter struct {
	stream   transport.Stream
	deadline time.Time
}

func (w streamWriter) Write(p []byte) (int, error) {
	if err := w.stream.WriteAll(p, w.deadline); err != nil {
		return 0, err
	}
	return len(p), nil
}

// streamReader adapts a transport.Stream to io.Reader under one fixed
// deadline, for framing a single inbound message with wire.ReadRawMessage.
// The deadline may be a whole getaddr-collection window shared across many
// reads, or a single message-timeout for handshake reads.
type streamReader struct {
	stream   transport.Stream
	deadline time.Time
}

func (r streamReader) Read(p []byte) (int, error) {
	if err := r.stream.ReadExact(p, r.deadline); err != nil {
		return 0, err
	}
	return len(p), nil
}
