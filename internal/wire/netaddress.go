package wire

import (
	"fmt"
	"io"
	"net"
)

// NetworkID is the BIP155 network identifier byte carried in an addrv2
// record.
type NetworkID uint8

const (
	NetworkIPv4  NetworkID = 1
	NetworkIPv6  NetworkID = 2
	NetworkTorV2 NetworkID = 3 // accepted on the wire, always skipped
	NetworkTorV3 NetworkID = 4
	NetworkI2P   NetworkID = 5
	NetworkCJDNS NetworkID = 6
)

// addrLenByNetwork is the BIP155-mandated address byte length for each
// network id. An addrv2 record whose declared length disagrees with this
// table is a codec error.
var addrLenByNetwork = map[NetworkID]int{
	NetworkIPv4:  4,
	NetworkIPv6:  16,
	NetworkTorV2: 10,
	NetworkTorV3: 32,
	NetworkI2P:   32,
	NetworkCJDNS: 16,
}

// AddrEntry is one record of a legacy addr message.
type AddrEntry struct {
	Timestamp uint32
	Services  uint64
	IP        net.IP // 16 bytes, IPv4-mapped for IPv4 peers
	Port      uint16
}

// MsgAddr is the legacy (pre-BIP155) address-gossip message: IPv4/IPv6 only.
type MsgAddr struct {
	Addrs []AddrEntry
}

func (m *MsgAddr) Command() string { return CmdAddr }

func (m *MsgAddr) Encode(w io.Writer) error {
	if len(m.Addrs) > MaxAddrPerMessage {
		return fmt.Errorf("wire: addr message has %d entries, exceeds cap %d", len(m.Addrs), MaxAddrPerMessage)
	}
	if err := WriteVarInt(w, uint64(len(m.Addrs))); err != nil {
		return err
	}
	for _, a := range m.Addrs {
		if err := writeUint32LE(w, a.Timestamp); err != nil {
			return err
		}
		if err := writeUint64LE(w, a.Services); err != nil {
			return err
		}
		ip := a.IP.To16()
		if ip == nil {
			ip = net.IPv6zero
		}
		if _, err := w.Write(ip); err != nil {
			return err
		}
		if err := writeUint16BE(w, a.Port); err != nil {
			return err
		}
	}
	return nil
}

func (m *MsgAddr) Decode(r io.Reader) error {
	count, err := ReadVarInt(r)
	if err != nil {
		return fmt.Errorf("wire: decode addr count: %w", err)
	}
	if count > MaxAddrPerMessage {
		return newFramingError("addr message declares %d entries, exceeds cap %d", count, MaxAddrPerMessage)
	}
	entries := make([]AddrEntry, 0, count)
	for i := uint64(0); i < count; i++ {
		ts, err := readUint32LE(r)
		if err != nil {
			return fmt.Errorf("wire: decode addr[%d] timestamp: %w", i, err)
		}
		services, err := readUint64LE(r)
		if err != nil {
			return fmt.Errorf("wire: decode addr[%d] services: %w", i, err)
		}
		ip := make([]byte, 16)
		if _, err := io.ReadFull(r, ip); err != nil {
			return fmt.Errorf("wire: decode addr[%d] ip: %w", i, err)
		}
		port, err := readUint16BE(r)
		if err != nil {
			return fmt.Errorf("wire: decode addr[%d] port: %w", i, err)
		}
		entries = append(entries, AddrEntry{Timestamp: ts, Services: services, IP: net.IP(ip), Port: port})
	}
	m.Addrs = entries
	return nil
}

// AddrV2Entry is one record of a BIP155 addrv2 message.
type AddrV2Entry struct {
	Timestamp uint32
	Services  uint64
	Network   NetworkID
	Addr      []byte // raw address bytes, length determined by Network
	Port      uint16
}

// MsgAddrV2 is the BIP155 address-gossip message, capable of carrying
// onion-v3, I2P, and CJDNS addresses alongside IPv4/IPv6.
type MsgAddrV2 struct {
	Addrs []AddrV2Entry
}

func (m *MsgAddrV2) Command() string { return CmdAddrV2 }

func (m *MsgAddrV2) Encode(w io.Writer) error {
	if len(m.Addrs) > MaxAddrPerMessage {
		return fmt.Errorf("wire: addrv2 message has %d entries, exceeds cap %d", len(m.Addrs), MaxAddrPerMessage)
	}
	if err := WriteVarInt(w, uint64(len(m.Addrs))); err != nil {
		return err
	}
	for _, a := range m.Addrs {
		if err := writeUint32LE(w, a.Timestamp); err != nil {
			return err
		}
		if err := WriteVarInt(w, a.Services); err != nil {
			return err
		}
		if _, err := w.Write([]byte{byte(a.Network)}); err != nil {
			return err
		}
		if err := WriteVarInt(w, uint64(len(a.Addr))); err != nil {
			return err
		}
		if _, err := w.Write(a.Addr); err != nil {
			return err
		}
		if err := writeUint16BE(w, a.Port); err != nil {
			return err
		}
	}
	return nil
}

func (m *MsgAddrV2) Decode(r io.Reader) error {
	count, err := ReadVarInt(r)
	if err != nil {
		return fmt.Errorf("wire: decode addrv2 count: %w", err)
	}
	if count > MaxAddrPerMessage {
		return newFramingError("addrv2 message declares %d entries, exceeds cap %d", count, MaxAddrPerMessage)
	}
	entries := make([]AddrV2Entry, 0, count)
	for i := uint64(0); i < count; i++ {
		entry, skip, err := decodeAddrV2Entry(r)
		if err != nil {
			return fmt.Errorf("wire: decode addrv2[%d]: %w", i, err)
		}
		if skip {
			continue
		}
		entries = append(entries, entry)
	}
	m.Addrs = entries
	return nil
}

func decodeAddrV2Entry(r io.Reader) (AddrV2Entry, bool, error) {
	ts, err := readUint32LE(r)
	if err != nil {
		return AddrV2Entry{}, false, err
	}
	services, err := ReadVarInt(r)
	if err != nil {
		return AddrV2Entry{}, false, err
	}
	var networkByte [1]byte
	if _, err := io.ReadFull(r, networkByte[:]); err != nil {
		return AddrV2Entry{}, false, err
	}
	network := NetworkID(networkByte[0])

	length, err := ReadVarInt(r)
	if err != nil {
		return AddrV2Entry{}, false, err
	}

	wantLen, known := addrLenByNetwork[network]
	if !known {
		// An unrecognized network id is a codec error, not an unknown
		// command: the record's shape can't be trusted past this point, so
		// the caller must treat the whole message as undecodable rather
		// than skip just this entry.
		return AddrV2Entry{}, false, fmt.Errorf("network id %d is not a recognized BIP155 network", network)
	}
	if int(length) != wantLen {
		return AddrV2Entry{}, false, fmt.Errorf("network id %d expects %d address bytes, got %d", network, wantLen, length)
	}

	addrBytes := make([]byte, length)
	if _, err := io.ReadFull(r, addrBytes); err != nil {
		return AddrV2Entry{}, false, err
	}
	port, err := readUint16BE(r)
	if err != nil {
		return AddrV2Entry{}, false, err
	}

	if network == NetworkTorV2 {
		// TORv2 is obsolete; skip it rather than surface it as an address.
		return AddrV2Entry{}, true, nil
	}

	return AddrV2Entry{
		Timestamp: ts,
		Services:  services,
		Network:   network,
		Addr:      addrBytes,
		Port:      port,
	}, false, nil
}
