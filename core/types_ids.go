package core

import (
	"encoding/hex"
	"fmt"
	"strings"
)

// BlockIdentifier names a block by its index (height) and hash. Hashes carry
// a 0x-prefixed hex convention at the boundary (wire payloads, JSON); all
// internal comparisons are performed on the decoded bytes so that case or
// a missing prefix never cause a spurious fork.
type BlockIdentifier struct {
	Index uint64 `json:"index"`
	Hash  string `json:"hash"`
}

// Bytes decodes Hash, tolerating a missing "0x" prefix.
func (b BlockIdentifier) Bytes() ([]byte, error) {
	return decodeHexPrefixed(b.Hash)
}

// Equals reports whether two identifiers name the same block: same index and
// byte-equal hash. A malformed hash never equals anything, including itself.
func (b BlockIdentifier) Equals(other BlockIdentifier) bool {
	if b.Index != other.Index {
		return false
	}
	ba, err := b.Bytes()
	if err != nil {
		return false
	}
	bb, err := other.Bytes()
	if err != nil {
		return false
	}
	return string(ba) == string(bb)
}

func (b BlockIdentifier) String() string {
	return fmt.Sprintf("%d:%s", b.Index, b.Hash)
}

func decodeHexPrefixed(s string) ([]byte, error) {
	s = strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	return hex.DecodeString(s)
}

// hexPrefixed normalizes raw bytes to the wire 0x-prefixed lowercase hex form.
func hexPrefixed(b []byte) string {
	return "0x" + hex.EncodeToString(b)
}
