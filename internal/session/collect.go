package session

import (
	"context"
	"time"

	"github.com/p2p-crawler/crawler/internal/addr"
	"github.com/p2p-crawler/crawler/internal/transport"
	"github.com/p2p-crawler/crawler/internal/wire"
)

// runGetAddrWindow sends getaddr and then, for up to cfg.GetAddrTimeout,
// reads messages and accumulates every addr/addrv2 record encountered,
// answering pings and ignoring everything else. The window closes on the
// timeout, never on a sentinel message, unless a codec error terminates the
// session outright. Reports whether any address record was collected, and
// whether the session must end now rather than retry with a fresh
// connection: a malformed addr/addrv2 payload (wrong network id or address
// length) is a codec error that is terminal for the session, not a
// reconnect-and-retry condition.
func runGetAddrWindow(ctx context.Context, stream transport.Stream, target addr.Address, cfg Config, res *Result) (gotAny bool, fatal bool) {
	if err := writeMessage(stream, cfg.Magic, cfg.MessageTimeout, &wire.MsgGetAddr{}); err != nil {
		log.Debugf("session: %s send getaddr: %v", target, err)
		return false, false
	}

	windowDeadline := time.Now().Add(cfg.GetAddrTimeout)

	for {
		if !time.Now().Before(windowDeadline) {
			return gotAny, false
		}
		select {
		case <-ctx.Done():
			return gotAny, false
		default:
		}

		raw, err := wire.ReadRawMessage(streamReader{stream: stream, deadline: windowDeadline}, cfg.Magic)
		if err != nil {
			// Timeout, reset, or framing error all simply end the window;
			// whatever was collected before the error still counts.
			return gotAny, false
		}

		switch raw.Command {
		case wire.CmdPing:
			if err := respondPong(stream, cfg, raw); err != nil {
				return gotAny, false
			}

		case wire.CmdAddr:
			var m wire.MsgAddr
			if err := raw.Decode(&m); err != nil {
				log.Debugf("session: %s malformed addr payload, ending session: %v", target, err)
				return gotAny, true
			}
			if recordLegacyAddrs(res, m.Addrs) {
				gotAny = true
			}

		case wire.CmdAddrV2:
			var m wire.MsgAddrV2
			if err := raw.Decode(&m); err != nil {
				log.Debugf("session: %s malformed addrv2 payload, ending session: %v", target, err)
				return gotAny, true
			}
			if recordAddrV2s(target, res, m.Addrs) {
				gotAny = true
			}

		default:
			// Anything besides addr/addrv2/ping is ignored during collection.
		}
	}
}

func recordLegacyAddrs(res *Result, entries []wire.AddrEntry) bool {
	if len(entries) == 0 {
		return false
	}
	now := time.Now()
	if res.NumAddrMessages == 0 {
		res.TimeFirstAddr = now
	}
	res.TimeLastAddr = now
	res.NumAddrMessages++

	for _, e := range entries {
		a := addr.FromNetIP(e.IP, e.Port)
		res.Advertised = append(res.Advertised, AdvertisedAddress{
			Address:   a,
			Timestamp: e.Timestamp,
			Services:  wire.ServiceFlag(e.Services),
		})
	}
	res.NumAddresses += len(entries)
	return true
}

func recordAddrV2s(target addr.Address, res *Result, entries []wire.AddrV2Entry) bool {
	if len(entries) == 0 {
		return false
	}
	now := time.Now()
	if res.NumAddrMessages == 0 {
		res.TimeFirstAddr = now
	}
	res.TimeLastAddr = now
	res.NumAddrMessages++

	added := 0
	for _, e := range entries {
		a, err := addr.FromBIP155(uint8(e.Network), e.Addr, e.Port)
		if err != nil {
			log.Debugf("session: %s dropping unparsable addrv2 entry: %v", target, err)
			continue
		}
		res.Advertised = append(res.Advertised, AdvertisedAddress{
			Address:   a,
			Timestamp: e.Timestamp,
			Services:  wire.ServiceFlag(e.Services),
		})
		added++
	}
	res.NumAddresses += added
	return added > 0
}
