// Package id provides sortable identifier generation for object keys and
// request correlation.
package id

import (
	"crypto/rand"
	"encoding/binary"
	"time"
)

// Crockford's Base32 alphabet (excludes I, L, O, U to avoid confusion).
const alphabet = "0123456789ABCDEFGHJKMNPQRSTVWXYZ"

// NewULID generates a ULID: 26 Crockford Base32 characters encoding a 48-bit
// millisecond timestamp followed by 80 random bits. ULIDs generated in the
// same process sort lexicographically by creation time, which keeps object
// keys for one owner naturally ordered.
func NewULID() string {
	var raw [16]byte

	ms := uint64(time.Now().UnixMilli())
	raw[0] = byte(ms >> 40)
	raw[1] = byte(ms >> 32)
	raw[2] = byte(ms >> 24)
	raw[3] = byte(ms >> 16)
	raw[4] = byte(ms >> 8)
	raw[5] = byte(ms)

	if _, err := rand.Read(raw[6:]); err != nil {
		// Degraded but functional fallback when the entropy source fails.
		binary.BigEndian.PutUint64(raw[6:14], uint64(time.Now().UnixNano()))
	}

	var out [26]byte
	encodeBase32(out[:], raw[:])
	return string(out[:])
}

// encodeBase32 packs 16 bytes into 26 Base32 characters, consuming the input
// from the least significant end so the leading character carries the two
// zero padding bits.
func encodeBase32(dst []byte, src []byte) {
	var acc uint64
	accBits := 0
	j := len(dst) - 1

	for i := len(src) - 1; i >= 0; i-- {
		acc |= uint64(src[i]) << accBits
		accBits += 8
		for accBits >= 5 && j > 0 {
			dst[j] = alphabet[acc&0x1f]
			acc >>= 5
			accBits -= 5
			j--
		}
	}
	for j >= 0 {
		dst[j] = alphabet[acc&0x1f]
		acc >>= 5
		j--
	}
}
