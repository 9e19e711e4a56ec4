package crawl

import (
	"time"

	"github.com/p2p-crawler/crawler/internal/addr"
	"github.com/p2p-crawler/crawler/internal/metrics"
	"github.com/p2p-crawler/crawler/internal/transport"
	"github.com/p2p-crawler/crawler/internal/wire"
)

// TransportTimeouts is the (connect, message, getaddr) triple for one
// transport kind.
type TransportTimeouts struct {
	Connect time.Duration
	Message time.Duration
	GetAddr time.Duration
}

// Config bundles everything the controller needs to run a crawl: the
// worker-pool size, the sampling fraction, the per-transport openers and
// timeouts, and the identity the crawler presents in its own version
// message.
type Config struct {
	NumWorkers int

	// NodeShare is the uniformly random fraction (0.0-1.0) of reachable
	// nodes whose advertised addresses are persisted to the
	// advertised-address sink. The sampling decision is drawn from Rand
	// after a node's session ends (not at Take time), and only for nodes
	// that completed the handshake while RecordAddrData is set.
	NodeShare float64
	Rand      RandSource

	DelayStart time.Duration

	HandshakeAttempts int
	GetAddrRetries    int
	RecordAddrData    bool

	FrontierMinAge time.Duration

	Openers  map[addr.Kind]transport.Opener
	Timeouts map[addr.Kind]TransportTimeouts

	Magic           wire.Magic
	ProtocolVersion int32
	Services        wire.ServiceFlag
	UserAgent       string
	StartHeight     int32

	Bootstrap []addr.Address

	// Recorder, if non-nil, receives worker-occupancy and session-outcome
	// events for Prometheus export. Nil disables metrics entirely.
	Recorder *metrics.Recorder

	// TransportConcurrency caps the number of simultaneous in-flight
	// sessions per transport kind, independent of NumWorkers. A zero or
	// absent entry leaves that kind unbounded (limited only by NumWorkers).
	// This is what keeps a crawl with 200 IP workers from also opening 200
	// simultaneous Tor circuits or SAM streams against a single local proxy.
	TransportConcurrency map[addr.Kind]int64

	// ExtraVersionInfo is free-form operator text embedded into the
	// crawler-run stats file; it never appears in the wire version message.
	ExtraVersionInfo string
}

// RandSource is the minimal interface the controller needs from a random
// source for the node-share sampling decision; *rand.Rand satisfies it.
type RandSource interface {
	Float64() float64
}
