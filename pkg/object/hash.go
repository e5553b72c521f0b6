package object

import (
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
)

const (
	// HashSize is the length of a raw object hash in bytes.
	HashSize = sha1.Size
	// HexSize is the length of a hex-encoded object hash.
	HexSize = 2 * HashSize
	// MinPrefix is the shortest abbreviation ResolvePrefix accepts.
	MinPrefix = 4
)

// Hash is a 40-character lowercase hex-encoded SHA-1 object name.
type Hash string

// ZeroHash is the all-zero hash; it never names a stored object.
const ZeroHash = Hash("0000000000000000000000000000000000000000")

// Short returns the first 8 characters, for display.
func (h Hash) Short() string {
	if len(h) > 8 {
		return string(h[:8])
	}
	return string(h)
}

// Raw returns the 20-byte binary form of h.
func (h Hash) Raw() ([HashSize]byte, error) {
	var out [HashSize]byte
	if len(h) != HexSize {
		return out, fmt.Errorf("invalid hash %q: want %d hex characters", string(h), HexSize)
	}
	if _, err := hex.Decode(out[:], []byte(h)); err != nil {
		return out, fmt.Errorf("invalid hash %q: %w", string(h), err)
	}
	return out, nil
}

// HashFromRaw hex-encodes a 20-byte binary hash.
func HashFromRaw(raw []byte) (Hash, error) {
	if len(raw) != HashSize {
		return "", fmt.Errorf("raw hash: got %d bytes, want %d", len(raw), HashSize)
	}
	return Hash(hex.EncodeToString(raw)), nil
}

// ParseHash validates a full hex hash, accepting upper case input.
func ParseHash(s string) (Hash, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if len(s) != HexSize || !isHex(s) {
		return "", fmt.Errorf("invalid hash %q", s)
	}
	return Hash(s), nil
}

// IsHash reports whether s is a full lowercase hex hash.
func IsHash(s string) bool {
	return len(s) == HexSize && isHex(s) && strings.ToLower(s) == s
}

func isHex(s string) bool {
	for i := 0; i < len(s); i++ {
		c := s[i]
		if !(c >= '0' && c <= '9' || c >= 'a' && c <= 'f' || c >= 'A' && c <= 'F') {
			return false
		}
	}
	return true
}

// header returns the "kind len\0" envelope prefix.
func header(kind Kind, n int) []byte {
	b := make([]byte, 0, 16)
	b = append(b, kind.String()...)
	b = append(b, ' ')
	b = strconv.AppendInt(b, int64(n), 10)
	return append(b, 0)
}

// HashObject computes the SHA-1 of the envelope "kind len\0content".
func HashObject(kind Kind, data []byte) Hash {
	h := sha1.New()
	h.Write(header(kind, len(data)))
	h.Write(data)
	return Hash(hex.EncodeToString(h.Sum(nil)))
}
