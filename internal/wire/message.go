package wire

import (
	"bytes"
	"fmt"
	"io"
)

// Message is anything this package can frame onto the wire: it knows its own
// command name and how to (de)serialize its payload.
type Message interface {
	Command() string
	Encode(w io.Writer) error
	Decode(r io.Reader) error
}

// isStrictASCIICommand reports whether b (before NUL padding) contains only
// printable ASCII, matching §4.3's "command containing non-ASCII bytes is a
// fatal framing error".
func isStrictASCIICommand(b []byte) bool {
	for _, c := range b {
		if c < 0x20 || c > 0x7e {
			return false
		}
	}
	return true
}

// WriteMessage frames msg with the given network magic and writes it to w.
func WriteMessage(w io.Writer, magic Magic, msg Message) error {
	var payload bytes.Buffer
	if err := msg.Encode(&payload); err != nil {
		return fmt.Errorf("wire: encode %s payload: %w", msg.Command(), err)
	}

	cmd := msg.Command()
	if len(cmd) > CommandSize {
		return fmt.Errorf("wire: command %q exceeds %d bytes", cmd, CommandSize)
	}

	header := make([]byte, 0, HeaderSize)
	header = append(header, magic[:]...)
	var cmdBuf [CommandSize]byte
	copy(cmdBuf[:], cmd)
	header = append(header, cmdBuf[:]...)

	lenBuf := make([]byte, 4)
	littleEndian.PutUint32(lenBuf, uint32(payload.Len()))
	header = append(header, lenBuf...)

	sum := checksum(payload.Bytes())
	header = append(header, sum[:]...)

	if _, err := w.Write(header); err != nil {
		return fmt.Errorf("wire: write header: %w", err)
	}
	if _, err := w.Write(payload.Bytes()); err != nil {
		return fmt.Errorf("wire: write payload: %w", err)
	}
	return nil
}

// RawMessage is a decoded-but-undispatched message: the command name and raw
// payload bytes, already magic- and checksum-validated.
type RawMessage struct {
	Command string
	Payload []byte
}

// ReadRawMessage reads one frame from r, validating magic, length cap, and
// checksum. Unknown or malformed-but-in-range messages are still returned
// here; it is the caller's job to skip commands it doesn't understand.
func ReadRawMessage(r io.Reader, magic Magic) (RawMessage, error) {
	var header [HeaderSize]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return RawMessage{}, fmt.Errorf("wire: read header: %w", err)
	}

	var gotMagic Magic
	copy(gotMagic[:], header[:4])
	if gotMagic != magic {
		return RawMessage{}, newFramingError("wrong magic: got %x want %x", gotMagic, magic)
	}

	cmdRaw := header[4 : 4+CommandSize]
	if !isStrictASCIICommand(bytes.TrimRight(cmdRaw, "\x00")) {
		return RawMessage{}, newFramingError("non-ASCII command bytes: %x", cmdRaw)
	}
	cmd := string(bytes.TrimRight(cmdRaw, "\x00"))

	length := littleEndian.Uint32(header[4+CommandSize : 4+CommandSize+4])
	if length > MaxPayloadLength {
		return RawMessage{}, newFramingError("declared payload length %d exceeds cap %d", length, MaxPayloadLength)
	}

	var wantChecksum [4]byte
	copy(wantChecksum[:], header[4+CommandSize+4:])

	payload := make([]byte, length)
	if _, err := io.ReadFull(r, payload); err != nil {
		return RawMessage{}, fmt.Errorf("wire: read payload (command=%s, len=%d): %w", cmd, length, err)
	}

	gotChecksum := checksum(payload)
	if gotChecksum != wantChecksum {
		return RawMessage{}, newFramingError("checksum mismatch for command %s: got %x want %x", cmd, gotChecksum, wantChecksum)
	}

	return RawMessage{Command: cmd, Payload: payload}, nil
}

// Decode parses raw's payload into msg, which must match raw.Command.
func (raw RawMessage) Decode(msg Message) error {
	if msg.Command() != raw.Command {
		return fmt.Errorf("wire: command mismatch: raw=%s target=%s", raw.Command, msg.Command())
	}
	return msg.Decode(bytes.NewReader(raw.Payload))
}
