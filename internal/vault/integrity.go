package vault

import (
	"crypto/subtle"
	"encoding/binary"
	"fmt"
	"hash"

	"golang.org/x/crypto/blake2b"
)

// NewIntegrityHash creates the keyed hash state for a container tag. The
// key is the master seed in its wire encoding, so both sides derive it
// from the header alone. Feed it the serialized header first, then every
// ciphertext block in ascending index order; Sum yields the TagSize tag.
func NewIntegrityHash(masterSeed uint64) (hash.Hash, error) {
	key := make([]byte, 8)
	binary.LittleEndian.PutUint64(key, masterSeed)

	h, err := blake2b.New512(key)
	if err != nil {
		return nil, fmt.Errorf("initializing keyed hash: %w", err)
	}
	return h, nil
}

// VerifyTag compares a computed tag against the stored one in constant
// time.
func VerifyTag(computed, stored []byte) bool {
	return subtle.ConstantTimeCompare(computed, stored) == 1
}
