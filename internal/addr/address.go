// Package addr implements the crawler's address model: a tagged union over
// the five network kinds the Bitcoin P2P network spans, with canonical
// textual forms and BIP155 binary forms that round-trip each other.
package addr

import (
	"encoding/base32"
	"fmt"
	"net"
	"strings"

	"golang.org/x/crypto/sha3"
)

// Kind tags which network family an Address belongs to. The kind drives
// transport selection, BIP155 network-id assignment, and dedup hashing.
type Kind uint8

const (
	KindUnknown Kind = iota
	KindIPv4
	KindIPv6
	KindOnionV3
	KindI2P
	KindCJDNS
)

func (k Kind) String() string {
	switch k {
	case KindIPv4:
		return "ipv4"
	case KindIPv6:
		return "ipv6"
	case KindOnionV3:
		return "onion_v3"
	case KindI2P:
		return "i2p"
	case KindCJDNS:
		return "cjdns"
	default:
		return "unknown"
	}
}

// cjdnsPrefix is the fc00::/8 byte that distinguishes CJDNS addresses from
// ordinary IPv6 literals carrying the same 16 raw bytes.
const cjdnsPrefix = 0xfc

const (
	onionV3Len = 56
	i2pB32Len  = 52
)

// Address is the crawler's identity for one network endpoint. Equality and
// hashing are defined over (Kind, canonical host, Port) only; any per-sighting
// metadata (advertised timestamp/services) is carried alongside an Address,
// never inside it, so that dedup is stable regardless of who most recently
// advertised it.
type Address struct {
	Kind Kind
	// Host is the canonical textual form: dotted-quad for IPv4, lower-case
	// colon-separated with the longest zero run compressed (stored that way,
	// e.g. "2001:db8::1") for IPv6/CJDNS, the 56-char
	// onion label without ".onion" suffix, or the 52-char base32 label
	// without ".b32.i2p" suffix.
	Host string
	Port uint16
}

// Key returns the value used for map-based dedup and set membership. It is
// cheap enough to call on every frontier operation.
func (a Address) Key() string {
	return fmt.Sprintf("%d|%s|%d", a.Kind, a.Host, a.Port)
}

// String formats the address the way a human (and Bitcoin Core's debug log)
// would expect: bracketed IPv6/CJDNS literals, suffixed onion/I2P labels.
func (a Address) String() string {
	switch a.Kind {
	case KindIPv6, KindCJDNS:
		return fmt.Sprintf("[%s]:%d", a.Host, a.Port)
	case KindOnionV3:
		return fmt.Sprintf("%s.onion:%d", a.Host, a.Port)
	case KindI2P:
		return fmt.Sprintf("%s.b32.i2p:%d", a.Host, a.Port)
	default:
		return fmt.Sprintf("%s:%d", a.Host, a.Port)
	}
}

// ParseHostPort parses a "host:port" string into an Address, classifying the
// host the way BIP155-aware Bitcoin Core clients do: suffix-based for
// onion/I2P, fc00::/8-prefix-based for CJDNS vs. plain IPv6, and IPv4-mapped
// IPv6 downcast to IPv4.
func ParseHostPort(hostport string) (Address, error) {
	host, portStr, err := net.SplitHostPort(hostport)
	if err != nil {
		return Address{}, fmt.Errorf("addr: split host:port %q: %w", hostport, err)
	}
	var port uint16
	if _, err := fmt.Sscanf(portStr, "%d", &port); err != nil {
		return Address{}, fmt.Errorf("addr: invalid port %q: %w", portStr, err)
	}
	return ParseHost(host, port)
}

// ParseHost classifies and canonicalizes a bare host string (no port).
func ParseHost(host string, port uint16) (Address, error) {
	host = strings.TrimSuffix(host, ".")
	lower := strings.ToLower(host)

	switch {
	case strings.HasSuffix(lower, ".onion"):
		label := strings.TrimSuffix(lower, ".onion")
		if len(label) != onionV3Len {
			return Address{}, fmt.Errorf("addr: unsupported onion address length %d (only v3 is supported): %q", len(label), host)
		}
		return Address{Kind: KindOnionV3, Host: label, Port: port}, nil

	case strings.HasSuffix(lower, ".b32.i2p"):
		label := strings.TrimSuffix(lower, ".b32.i2p")
		if len(label) != i2pB32Len {
			return Address{}, fmt.Errorf("addr: unexpected i2p address length %d: %q", len(label), host)
		}
		return Address{Kind: KindI2P, Host: label, Port: port}, nil

	default:
		ip := net.ParseIP(lower)
		if ip == nil {
			return Address{}, fmt.Errorf("addr: not an IP, onion, or i2p address: %q", host)
		}
		return fromIP(ip, port), nil
	}
}

// fromIP classifies a net.IP into IPv4/IPv6/CJDNS, downcasting IPv4-mapped
// IPv6 addresses to IPv4 per §4.1's canonicalization rule.
func fromIP(ip net.IP, port uint16) Address {
	if v4 := ip.To4(); v4 != nil {
		return Address{Kind: KindIPv4, Host: v4.String(), Port: port}
	}
	v6 := ip.To16()
	if v6[0] == cjdnsPrefix {
		return Address{Kind: KindCJDNS, Host: normalizeIPv6(v6), Port: port}
	}
	return Address{Kind: KindIPv6, Host: normalizeIPv6(v6), Port: port}
}

func normalizeIPv6(ip net.IP) string {
	return strings.ToLower((&net.IPAddr{IP: ip}).String())
}

// FromNetIP classifies a net.IP the same way ParseHost's IP branch does. It
// is exported for callers decoding legacy (always-IPv6-mapped) `addr`
// messages, which hand back a net.IP rather than a host string.
func FromNetIP(ip net.IP, port uint16) Address {
	return fromIP(ip, port)
}

// FromBIP155 classifies a raw addrv2 address blob given its BIP155
// network-id byte (1=IPv4, 2=IPv6, 4=TORv3, 5=I2P, 6=CJDNS; TORv2=3 is
// rejected, the wire decoder never surfaces it), applying the same
// CJDNS-vs-IPv6 reclassification ParseHost applies to literals and
// decoding onion/I2P bytes into their canonical text labels.
func FromBIP155(networkID uint8, raw []byte, port uint16) (Address, error) {
	switch networkID {
	case 1:
		if len(raw) != 4 {
			return Address{}, fmt.Errorf("addr: ipv4 address must be 4 bytes, got %d", len(raw))
		}
		return Address{Kind: KindIPv4, Host: net.IP(raw).String(), Port: port}, nil

	case 2:
		if len(raw) != 16 {
			return Address{}, fmt.Errorf("addr: ipv6 address must be 16 bytes, got %d", len(raw))
		}
		if IsCJDNSRange(raw) {
			return Address{Kind: KindCJDNS, Host: normalizeIPv6(net.IP(raw)), Port: port}, nil
		}
		return Address{Kind: KindIPv6, Host: normalizeIPv6(net.IP(raw)), Port: port}, nil

	case 4:
		label, err := DecodeTorV3PublicKey(raw)
		if err != nil {
			return Address{}, err
		}
		return Address{Kind: KindOnionV3, Host: label, Port: port}, nil

	case 5:
		label, err := DecodeI2PDestination(raw)
		if err != nil {
			return Address{}, err
		}
		return Address{Kind: KindI2P, Host: label, Port: port}, nil

	case 6:
		if len(raw) != 16 {
			return Address{}, fmt.Errorf("addr: cjdns address must be 16 bytes, got %d", len(raw))
		}
		return Address{Kind: KindCJDNS, Host: normalizeIPv6(net.IP(raw)), Port: port}, nil

	default:
		return Address{}, fmt.Errorf("addr: unsupported BIP155 network-id %d", networkID)
	}
}

// IsCJDNSRange reports whether a raw 16-byte IPv6 address falls in fc00::/8,
// independent of the network-id it was received under. Used by the BIP155
// decoder to reclassify an addr received with network-id=IPv6 that actually
// sits in CJDNS space as KindCJDNS, so it dedups with the same bytes received
// under network-id=CJDNS and is never dialed as ordinary IPv6.
func IsCJDNSRange(raw []byte) bool {
	return len(raw) == 16 && raw[0] == cjdnsPrefix
}

// onionChecksumStr is the literal Tor uses as a checksum-domain prefix when
// deriving v3 onion addresses from an ed25519 public key (rend-spec-v3 §6).
const onionChecksumStr = ".onion checksum"

var b32 = base32.StdEncoding.WithPadding(base32.NoPadding)

// torV3Checksum computes rend-spec-v3's ".onion checksum" || pubkey ||
// version digest and returns its first two bytes.
func torV3Checksum(pubkey []byte, version byte) [2]byte {
	h := sha3.Sum256(append([]byte(onionChecksumStr), append(append([]byte{}, pubkey...), version)...))
	var out [2]byte
	copy(out[:], h[:2])
	return out
}

// DecodeTorV3PublicKey builds the canonical 56-character onion label from
// the raw 32-byte ed25519 public key carried in a BIP155 addrv2 record.
func DecodeTorV3PublicKey(pubkey []byte) (string, error) {
	if len(pubkey) != 32 {
		return "", fmt.Errorf("addr: tor v3 pubkey must be 32 bytes, got %d", len(pubkey))
	}
	version := byte(0x03)
	checksum := torV3Checksum(pubkey, version)
	blob := make([]byte, 0, 35)
	blob = append(blob, pubkey...)
	blob = append(blob, checksum[0], checksum[1])
	blob = append(blob, version)
	return strings.ToLower(b32.EncodeToString(blob)), nil
}

// EncodeTorV3PublicKey recovers the raw 32-byte ed25519 public key from a
// canonical onion label, the inverse of DecodeTorV3PublicKey.
func EncodeTorV3PublicKey(label string) ([]byte, error) {
	raw, err := b32.DecodeString(strings.ToUpper(label))
	if err != nil {
		return nil, fmt.Errorf("addr: invalid onion label %q: %w", label, err)
	}
	if len(raw) != 35 {
		return nil, fmt.Errorf("addr: decoded onion label has %d bytes, want 35", len(raw))
	}
	return raw[:32], nil
}

// DecodeI2PDestination builds the canonical 52-character base32 label from
// the raw 32-byte I2P destination hash carried in a BIP155 addrv2 record.
func DecodeI2PDestination(hash []byte) (string, error) {
	if len(hash) != 32 {
		return "", fmt.Errorf("addr: i2p destination hash must be 32 bytes, got %d", len(hash))
	}
	return strings.ToLower(b32.EncodeToString(hash)), nil
}

// EncodeI2PDestination recovers the raw 32-byte destination hash from a
// canonical base32 label, the inverse of DecodeI2PDestination.
func EncodeI2PDestination(label string) ([]byte, error) {
	raw, err := b32.DecodeString(strings.ToUpper(label))
	if err != nil {
		return nil, fmt.Errorf("addr: invalid i2p label %q: %w", label, err)
	}
	if len(raw) != 32 {
		return nil, fmt.Errorf("addr: decoded i2p label has %d bytes, want 32", len(raw))
	}
	return raw, nil
}
