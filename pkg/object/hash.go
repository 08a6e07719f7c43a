package object

import (
	"crypto/sha1"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"hash"
	"strings"
)

// HashAlgo names the object format of a repository.
type HashAlgo string

const (
	SHA1   HashAlgo = "sha1"
	SHA256 HashAlgo = "sha256"
)

// ParseHashAlgo maps the extensions.objectformat config value to a HashAlgo.
// An empty value means the historical SHA-1 format.
func ParseHashAlgo(s string) (HashAlgo, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "sha1":
		return SHA1, nil
	case "sha256":
		return SHA256, nil
	default:
		return "", fmt.Errorf("unsupported object format %q", s)
	}
}

// Size returns the raw digest length in bytes.
func (a HashAlgo) Size() int {
	if a == SHA256 {
		return sha256.Size
	}
	return sha1.Size
}

// HexSize returns the hex-encoded digest length.
func (a HashAlgo) HexSize() int {
	return a.Size() * 2
}

func (a HashAlgo) New() hash.Hash {
	if a == SHA256 {
		return sha256.New()
	}
	return sha1.New()
}

// HashObject computes the digest of the envelope "type len\0content", which
// is how Git names every object.
func (a HashAlgo) HashObject(objType ObjectType, data []byte) Hash {
	h := a.New()
	fmt.Fprintf(h, "%s %d\x00", objType, len(data))
	h.Write(data)
	return Hash(hex.EncodeToString(h.Sum(nil)))
}

// Valid reports whether h is a full-length lowercase hex digest for algo.
func (a HashAlgo) Valid(h Hash) bool {
	return len(h) == a.HexSize() && isHex(string(h))
}

// hashFromRaw hex-encodes a raw digest read from a tree or index.
func hashFromRaw(raw []byte) Hash {
	return Hash(hex.EncodeToString(raw))
}

func hashHexToBytes(h Hash) ([]byte, error) {
	if len(h) != sha1.Size*2 && len(h) != sha256.Size*2 {
		return nil, fmt.Errorf("hash length must be 40 or 64 hex chars, got %d", len(h))
	}
	raw, err := hex.DecodeString(string(h))
	if err != nil {
		return nil, fmt.Errorf("invalid hash %q: %w", h, err)
	}
	return raw, nil
}

func isHex(s string) bool {
	for i := 0; i < len(s); i++ {
		c := s[i]
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return false
		}
	}
	return len(s) > 0
}

// IsHexPrefix reports whether s could be an abbreviated object name.
func IsHexPrefix(s string) bool {
	return len(s) >= MinPrefixLen && len(s) <= sha256.Size*2 && isHex(strings.ToLower(s))
}

// Short returns the abbreviated form of h used in listings.
func (h Hash) Short() string {
	if len(h) > 10 {
		return string(h[:10])
	}
	return string(h)
}

func (h Hash) String() string {
	return string(h)
}
