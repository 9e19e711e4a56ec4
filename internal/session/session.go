// Package session implements the per-peer state machine: connect, handshake
// (with retries), optional getaddr collection window, close. A Run call
// owns exactly one Address for its lifetime and is the only
// component in the crawler that talks the Bitcoin wire protocol end to end.
package session

import (
	"context"
	"time"

	"github.com/p2p-crawler/crawler/internal/addr"
	"github.com/p2p-crawler/crawler/internal/transport"
	"github.com/p2p-crawler/crawler/internal/wire"
)

// Config bundles every tunable the session state machine needs: retry
// counts, the three nested timeouts, and the fields the crawler advertises
// of itself in its own version message.
type Config struct {
	Magic wire.Magic

	HandshakeAttempts int
	GetAddrRetries    int

	ConnectTimeout time.Duration
	MessageTimeout time.Duration
	GetAddrTimeout time.Duration

	ProtocolVersion int32
	Services        wire.ServiceFlag
	UserAgent       string
	StartHeight     int32

	// CollectAddresses, when true, issues getaddr against every node that
	// completes the handshake. Advertised addresses are always collected
	// into the Result when true; whether they are additionally persisted to
	// a sink is a decision the caller makes using its own node-share sample,
	// independent of whether collection happened.
	CollectAddresses bool
}

// AdvertisedAddress is one address record learned from a peer's addr or
// addrv2 reply, paired with the gossip metadata it arrived with.
type AdvertisedAddress struct {
	Address   addr.Address
	Timestamp uint32
	Services  wire.ServiceFlag
}

// Result is everything observable about one terminated session: the fields
// that make up a reachable-nodes row, plus the advertised addresses
// collected (if any).
type Result struct {
	Address   addr.Address
	Timestamp time.Time

	HandshakeSuccessful bool
	ProtocolVersion     int32
	UserAgent           string
	Services            wire.ServiceFlag
	StartHeight         int32

	LatencyConnect          time.Duration
	LatencyVersionHandshake time.Duration
	LatencyVerAckHandshake  time.Duration

	NumAddrMessages int
	NumAddresses    int
	TimeFirstAddr   time.Time
	TimeLastAddr    time.Time

	Advertised []AdvertisedAddress
}

type peerVersionInfo struct {
	ProtocolVersion int32
	UserAgent       string
	Services        wire.ServiceFlag
	StartHeight     int32
}

// Run drives one Address through Connecting, Handshaking (with retries up
// to cfg.HandshakeAttempts), and — when cfg.CollectAddresses is set —
// Collecting (cfg.GetAddrRetries total getaddr windows, each empty window
// after the first reconnecting with a fresh connection), then Closed. It
// never returns an error: every failure mode is terminal-but-observable and
// is reported as a Result field instead.
func Run(ctx context.Context, target addr.Address, opener transport.Opener, nonce uint64, cfg Config) Result {
	res := Result{Address: target, Timestamp: time.Now().UTC()}

	stream, info, ok := connectWithRetries(ctx, target, opener, nonce, cfg, &res)
	if !ok {
		return res
	}

	res.HandshakeSuccessful = true
	res.ProtocolVersion = info.ProtocolVersion
	res.UserAgent = info.UserAgent
	res.Services = info.Services
	res.StartHeight = info.StartHeight

	if cfg.CollectAddresses {
		runCollectionWithRetries(ctx, stream, target, opener, nonce, cfg, &res)
	} else if stream != nil {
		stream.Close()
	}

	return res
}

// connectWithRetries performs Connecting + Handshaking, re-entering
// Connecting with a fresh stream on every handshake failure, up to
// cfg.HandshakeAttempts total attempts. A failure during the very first
// connect attempt is terminal (Connecting -> Failed) and is never retried;
// once a handshake has failed, each later attempt counts against the budget
// whether its reconnect or its handshake fails. res.LatencyConnect is set as
// soon as any connect succeeds, so it is non-zero for a node that connected
// but never completed the handshake.
// The caller owns the returned stream's lifetime on success.
func connectWithRetries(ctx context.Context, target addr.Address, opener transport.Opener, nonce uint64, cfg Config, res *Result) (transport.Stream, peerVersionInfo, bool) {
	attempts := cfg.HandshakeAttempts
	if attempts < 1 {
		attempts = 1
	}

	for attempt := 1; attempt <= attempts; attempt++ {
		connectStart := time.Now()
		stream, err := opener.Open(ctx, target.Host, target.Port, cfg.ConnectTimeout)
		if err != nil {
			if attempt == 1 {
				log.Debugf("session: %s unreachable: %v", target, err)
				return nil, peerVersionInfo{}, false
			}
			log.Debugf("session: %s reconnect attempt %d/%d failed: %v", target, attempt, attempts, err)
			continue
		}
		res.LatencyConnect = time.Since(connectStart)

		handshakeStart := time.Now()
		info, latVersion, latVerAck, err := doHandshake(ctx, stream, target, nonce, cfg, handshakeStart)
		if err != nil {
			stream.Close()
			log.Debugf("session: %s handshake attempt %d/%d failed: %v", target, attempt, attempts, err)
			continue
		}

		res.LatencyVersionHandshake = latVersion
		res.LatencyVerAckHandshake = latVerAck
		return stream, info, true
	}
	return nil, peerVersionInfo{}, false
}

// runCollectionWithRetries runs the Collecting stage, retrying with a fresh
// connection (full reconnect + re-handshake) whenever a window yields zero
// address records and windows remain. cfg.GetAddrRetries is the total number
// of getaddr windows attempted, not an extra count on top of a first window:
// GetAddrRetries=2 runs exactly two windows. A codec error in an addr/addrv2
// payload ends the session immediately regardless of windows remaining,
// since the malformed data means the peer can no longer be trusted for this
// session. The final stream, if any survives, is always closed before
// return.
func runCollectionWithRetries(ctx context.Context, stream transport.Stream, target addr.Address, opener transport.Opener, nonce uint64, cfg Config, res *Result) {
	windows := cfg.GetAddrRetries
	if windows < 1 {
		windows = 1
	}

	for i := 0; i < windows; i++ {
		got, fatal := runGetAddrWindow(ctx, stream, target, cfg, res)
		if fatal || got || i == windows-1 {
			stream.Close()
			return
		}
		stream.Close()

		log.Debugf("session: %s getaddr window %d/%d empty, reconnecting", target, i+1, windows)
		newStream, _, ok := connectWithRetries(ctx, target, opener, nonce, cfg, res)
		if !ok {
			return
		}
		stream = newStream
	}
}
