package wire

import "io"

// MsgVerAck is the reply that completes the version handshake once each
// side has processed the other's MsgVersion.
type MsgVerAck struct{}

func (MsgVerAck) Command() string        { return CmdVerAck }
func (MsgVerAck) Encode(io.Writer) error  { return nil }
func (*MsgVerAck) Decode(io.Reader) error { return nil }

// MsgGetAddr requests the peer's known-address cache.
type MsgGetAddr struct{}

func (MsgGetAddr) Command() string        { return CmdGetAddr }
func (MsgGetAddr) Encode(io.Writer) error  { return nil }
func (*MsgGetAddr) Decode(io.Reader) error { return nil }

// MsgSendAddrV2 opts the connection into receiving addrv2 instead of addr,
// per BIP155. It must be sent before verack to take effect.
type MsgSendAddrV2 struct{}

func (MsgSendAddrV2) Command() string        { return CmdSendAddrV2 }
func (MsgSendAddrV2) Encode(io.Writer) error  { return nil }
func (*MsgSendAddrV2) Decode(io.Reader) error { return nil }

// MsgPing carries a nonce the peer must echo back in a pong.
type MsgPing struct {
	Nonce uint64
}

func (m *MsgPing) Command() string { return CmdPing }
func (m *MsgPing) Encode(w io.Writer) error {
	return writeUint64LE(w, m.Nonce)
}
func (m *MsgPing) Decode(r io.Reader) error {
	n, err := readUint64LE(r)
	m.Nonce = n
	return err
}

// MsgPong echoes the nonce from a received MsgPing.
type MsgPong struct {
	Nonce uint64
}

func (m *MsgPong) Command() string { return CmdPong }
func (m *MsgPong) Encode(w io.Writer) error {
	return writeUint64LE(w, m.Nonce)
}
func (m *MsgPong) Decode(r io.Reader) error {
	n, err := readUint64LE(r)
	m.Nonce = n
	return err
}
