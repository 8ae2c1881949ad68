// Package crypto provides the Keccak-256 hashing used to link trie nodes.
package crypto

import (
	"hash"

	"golang.org/x/crypto/sha3"

	"github.com/stateprove/stateprove/core/types"
)

// KeccakState wraps the sha3 sponge state. In addition to the usual hash
// methods it supports Read to get output directly from the state, which is
// faster than Sum because it avoids copying the internal state.
type KeccakState interface {
	hash.Hash
	Read([]byte) (int, error)
}

// NewKeccakState creates a new KeccakState.
func NewKeccakState() KeccakState {
	return sha3.NewLegacyKeccak256().(KeccakState)
}

// HashData hashes data with kh and returns the 32-byte digest. The state is
// reset before use, so one KeccakState can be reused across a whole witness
// without re-allocating the sponge.
func HashData(kh KeccakState, data []byte) (h types.Hash) {
	kh.Reset()
	kh.Write(data)
	kh.Read(h[:])
	return h
}

// Keccak256 calculates the Keccak-256 hash of the given data.
func Keccak256(data ...[]byte) []byte {
	b := make([]byte, 32)
	d := NewKeccakState()
	for _, x := range data {
		d.Write(x)
	}
	d.Read(b)
	return b
}

// Keccak256Hash calculates Keccak-256 and returns it as a types.Hash.
func Keccak256Hash(data ...[]byte) (h types.Hash) {
	d := NewKeccakState()
	for _, x := range data {
		d.Write(x)
	}
	d.Read(h[:])
	return h
}
