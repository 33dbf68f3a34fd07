// Package digest computes domain-separated BLAKE3 hashes over the canonical
// CBOR encoding of a value.
package digest

import (
	"encoding/hex"
	"fmt"

	"github.com/fxamacker/cbor/v2"
	"github.com/zeebo/blake3"
)

// Key is a 32-byte BLAKE3 key. The byte values are the ASCII domain name,
// zero-padded. Changing a key invalidates every hash in that domain.
type Key [32]byte

func newKey(name string) Key {
	if len(name) > len(Key{}) {
		panic("digest: domain name longer than 32 bytes: " + name)
	}
	var k Key
	copy(k[:], name)
	return k
}

var (
	// IdentityKey separates entity identity tokens.
	IdentityKey = newKey("gmp.entity.identity")
	// SnapshotKey separates record hashes that signatures bind to.
	SnapshotKey = newKey("gmp.record.snapshot")
)

// encMode uses Core Deterministic Encoding (RFC 8949 §4.2): sorted map keys,
// shortest integer and float forms. Same logical data, same bytes.
var encMode cbor.EncMode

func init() {
	var err error
	encMode, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic("digest: CBOR encoder initialization failed: " + err.Error())
	}
}

// Canonical encodes v with the deterministic CBOR encoder.
func Canonical(v any) ([]byte, error) {
	return encMode.Marshal(v)
}

// Sum returns the hex encoded keyed hash of the canonical encoding of v.
func Sum(key Key, v any) (string, error) {
	data, err := Canonical(v)
	if err != nil {
		return "", fmt.Errorf("canonical encode: %w", err)
	}
	h, err := blake3.NewKeyed(key[:])
	if err != nil {
		return "", fmt.Errorf("init keyed hash: %w", err)
	}
	_, _ = h.Write(data)
	return hex.EncodeToString(h.Sum(nil)), nil
}
