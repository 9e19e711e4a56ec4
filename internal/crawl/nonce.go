package crawl

import (
	"crypto/rand"
	"encoding/binary"
	"fmt"
)

// randomNonce returns a random, non-zero nonce for a version message.
func randomNonce() (uint64, error) {
	var buf [8]byte
	for i := 0; i < 8; i++ {
		if _, err := rand.Read(buf[:]); err != nil {
			return 0, fmt.Errorf("crawl: read random nonce: %w", err)
		}
		n := binary.LittleEndian.Uint64(buf[:])
		if n != 0 {
			return n, nil
		}
	}
	return 0, fmt.Errorf("crawl: failed to generate non-zero nonce")
}
