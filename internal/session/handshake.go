package session

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/p2p-crawler/crawler/internal/addr"
	"github.com/p2p-crawler/crawler/internal/transport"
	"github.com/p2p-crawler/crawler/internal/wire"
)

// doHandshake performs the version/verack exchange over an already-open
// stream: send version, await the peer's version, send sendaddrv2+verack,
// await the peer's verack. Pings received along the way are answered.
// Returns the negotiated peer attributes and the two handshake latencies
// measured from start.
func doHandshake(ctx context.Context, stream transport.Stream, target addr.Address, nonce uint64, cfg Config, start time.Time) (peerVersionInfo, time.Duration, time.Duration, error) {
	versionMsg := buildVersionMessage(target, nonce, cfg)

	if err := writeMessage(stream, cfg.Magic, cfg.MessageTimeout, &versionMsg); err != nil {
		return peerVersionInfo{}, 0, 0, fmt.Errorf("session: send version: %w", err)
	}

	peerVersion, err := awaitVersion(ctx, stream, cfg)
	if err != nil {
		return peerVersionInfo{}, 0, 0, fmt.Errorf("session: await version: %w", err)
	}
	latVersion := time.Since(start)

	if err := writeMessage(stream, cfg.Magic, cfg.MessageTimeout, &wire.MsgSendAddrV2{}); err != nil {
		return peerVersionInfo{}, 0, 0, fmt.Errorf("session: send sendaddrv2: %w", err)
	}
	if err := writeMessage(stream, cfg.Magic, cfg.MessageTimeout, &wire.MsgVerAck{}); err != nil {
		return peerVersionInfo{}, 0, 0, fmt.Errorf("session: send verack: %w", err)
	}

	if err := awaitVerAck(ctx, stream, cfg); err != nil {
		return peerVersionInfo{}, 0, 0, fmt.Errorf("session: await verack: %w", err)
	}
	latVerAck := time.Since(start)

	return peerVersionInfo{
		ProtocolVersion: peerVersion.ProtocolVersion,
		UserAgent:       peerVersion.UserAgent,
		Services:        wire.ServiceFlag(peerVersion.Services),
		StartHeight:     peerVersion.StartHeight,
	}, latVersion, latVerAck, nil
}

func buildVersionMessage(target addr.Address, nonce uint64, cfg Config) wire.MsgVersion {
	zeroAddr := wire.NetAddrNoTimestamp{}
	recv := zeroAddr
	if ip := net.ParseIP(target.Host); ip != nil {
		recv = wire.NetAddrNoTimestamp{IP: ip, Port: target.Port}
	}
	return wire.MsgVersion{
		ProtocolVersion: cfg.ProtocolVersion,
		Services:        cfg.Services,
		Timestamp:       time.Now().Unix(),
		AddrRecv:        recv,
		AddrFrom:        zeroAddr,
		Nonce:           nonce,
		UserAgent:       cfg.UserAgent,
		StartHeight:     cfg.StartHeight,
		Relay:           false,
	}
}

func awaitVersion(ctx context.Context, stream transport.Stream, cfg Config) (wire.MsgVersion, error) {
	raw, err := waitForCommand(ctx, stream, cfg, wire.CmdVersion)
	if err != nil {
		return wire.MsgVersion{}, err
	}
	var v wire.MsgVersion
	if err := raw.Decode(&v); err != nil {
		return wire.MsgVersion{}, fmt.Errorf("decode version: %w", err)
	}
	return v, nil
}

func awaitVerAck(ctx context.Context, stream transport.Stream, cfg Config) error {
	_, err := waitForCommand(ctx, stream, cfg, wire.CmdVerAck)
	return err
}

// waitForCommand reads messages, one message-timeout at a time, answering
// pings and discarding anything else, until `want` arrives.
func waitForCommand(ctx context.Context, stream transport.Stream, cfg Config, want string) (wire.RawMessage, error) {
	for {
		select {
		case <-ctx.Done():
			return wire.RawMessage{}, ctx.Err()
		default:
		}

		deadline := time.Now().Add(cfg.MessageTimeout)
		raw, err := wire.ReadRawMessage(streamReader{stream: stream, deadline: deadline}, cfg.Magic)
		if err != nil {
			return wire.RawMessage{}, err
		}

		switch raw.Command {
		case want:
			return raw, nil
		case wire.CmdPing:
			if err := respondPong(stream, cfg, raw); err != nil {
				return wire.RawMessage{}, err
			}
		default:
			// Unknown or out-of-sequence command during handshake: ignore.
		}
	}
}

func respondPong(stream transport.Stream, cfg Config, raw wire.RawMessage) error {
	var ping wire.MsgPing
	if err := raw.Decode(&ping); err != nil {
		return fmt.Errorf("decode ping: %w", err)
	}
	pong := wire.MsgPong{Nonce: ping.Nonce}
	return writeMessage(stream, cfg.Magic, cfg.MessageTimeout, &pong)
}

func writeMessage(stream transport.Stream, magic wire.Magic, timeout time.Duration, msg wire.Message) error {
	deadline := time.Now().Add(timeout)
	return wire.WriteMessage(streamWriter{stream: stream, deadline: deadline}, magic, msg)
}
