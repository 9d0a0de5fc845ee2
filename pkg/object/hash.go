package object

import (
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"strings"
)

// HashSize is the length of a hex-encoded object id.
const HashSize = 40

// ZeroHash is the all-zero id the smart protocol uses for "no object".
const ZeroHash Hash = "0000000000000000000000000000000000000000"

// HashObject computes the SHA-1 of the envelope "type len\0content", the id
// Git assigns to the object.
func HashObject(objType ObjectType, data []byte) Hash {
	h := sha1.New()
	fmt.Fprintf(h, "%s %d\x00", objType, len(data))
	h.Write(data)
	return Hash(hex.EncodeToString(h.Sum(nil)))
}

// ValidateHash reports whether s is a full lowercase hex object id.
func ValidateHash(s string) bool {
	if len(s) != HashSize {
		return false
	}
	return isLowerHex(s)
}

// ParseHash normalizes and validates a full hex object id.
func ParseHash(s string) (Hash, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if !ValidateHash(s) {
		return "", fmt.Errorf("invalid object id %q", s)
	}
	return Hash(s), nil
}

// Short returns the conventional seven-character abbreviation.
func (h Hash) Short() string {
	if len(h) < 7 {
		return string(h)
	}
	return string(h[:7])
}

// IsZero reports whether h is empty or the all-zero id.
func (h Hash) IsZero() bool {
	return h == "" || h == ZeroHash
}

func isLowerHex(s string) bool {
	for i := 0; i < len(s); i++ {
		c := s[i]
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return false
		}
	}
	return true
}

func hashToBytes(h Hash) ([]byte, error) {
	if !ValidateHash(string(h)) {
		return nil, fmt.Errorf("invalid object id %q", h)
	}
	return hex.DecodeString(string(h))
}
