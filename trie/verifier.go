package trie

import (
	"bytes"
	"errors"

	"github.com/stateprove/stateprove/core/types"
	"github.com/stateprove/stateprove/crypto"
)

// Verification errors. Each failure mode is reported distinctly so callers
// can tell a forged witness from a malformed one from a key that simply is
// not in the trie.
var (
	// ErrMalformedNode is returned when a witness entry does not parse as
	// canonical RLP or carries a non-canonical hex-prefix path.
	ErrMalformedNode = errors.New("trie: malformed node encoding")
	// ErrInvalidNodeShape is returned when a witness entry parses but is
	// neither a 2-element nor a 17-element list, or violates node-kind
	// structure (empty extension segment, missing extension child).
	ErrInvalidNodeShape = errors.New("trie: invalid node shape")
	// ErrRootMismatch is returned when a witness entry does not hash to the
	// reference that the root or its parent node committed to.
	ErrRootMismatch = errors.New("trie: node hash does not match reference")
	// ErrProofTooShort is returned when the witness ends while the key path
	// still references an unresolved node.
	ErrProofTooShort = errors.New("trie: proof too short")
	// ErrProofTooLong is returned when the key path is exhausted before the
	// walk reaches a leaf or a terminal branch slot.
	ErrProofTooLong = errors.New("trie: proof too long")
	// ErrTrailingNodes is returned when witness entries remain after the
	// walk has terminated.
	ErrTrailingNodes = errors.New("trie: trailing witness data")
	// ErrKeyNotFound is returned by callers that required the key to be
	// present when the witness proves it absent.
	ErrKeyNotFound = errors.New("trie: key not present in trie")
)

// VerifyProof checks a Merkle proof for key against rootHash. The witness
// holds the RLP-encoded nodes along the path from the root, digest-referenced
// children each as their own entry and inline children embedded in their
// parent.
//
// Every entry is hash-checked against the reference committed to by its
// parent (or the root) before it is decoded, so no byte of the witness is
// trusted until it has been authenticated.
//
// A valid proof of presence returns the stored value. A valid proof of
// absence, where the walk terminates at an empty branch slot or diverges at
// a leaf or extension segment, returns (nil, nil). Anything else returns one
// of the verification errors above.
func VerifyProof(rootHash types.Hash, key []byte, proof [][]byte) ([]byte, error) {
	if len(proof) == 0 && rootHash == emptyRoot {
		// The empty trie holds no keys; absence needs no witness.
		return nil, nil
	}

	hexKey := keybytesToHex(key)
	kh := crypto.NewKeccakState()

	wantHash := rootHash[:]
	pos := 0
	index := 0
	for {
		// Resolve the next node, consuming a witness entry for digest
		// references. Inline nodes were already authenticated as part of
		// their parent entry.
		if index >= len(proof) {
			return nil, ErrProofTooShort
		}
		encoded := proof[index]
		index++
		if got := crypto.HashData(kh, encoded); !bytes.Equal(got[:], wantHash) {
			return nil, ErrRootMismatch
		}

		val, nextHash, absent, err := walkNode(encoded, hexKey, &pos)
		if err != nil {
			return nil, err
		}
		if nextHash != nil {
			wantHash = nextHash
			continue
		}
		if index != len(proof) {
			return nil, ErrTrailingNodes
		}
		if absent {
			return nil, nil
		}
		return val, nil
	}
}

// walkNode advances the key walk through one witness entry, following inline
// children in place. It returns exactly one of:
//   - nextHash non-nil: the walk continues at a digest-referenced child
//   - absent true: the witness proves the key absent
//   - otherwise: val is the proven value and the walk is complete
func walkNode(encoded []byte, hexKey []byte, pos *int) (val []byte, nextHash []byte, absent bool, err error) {
	for {
		elems, err := decodeRLPList(encoded)
		if err != nil {
			return nil, nil, false, ErrMalformedNode
		}
		var ref []byte
		switch len(elems) {
		case 2:
			segment, err := compactToHexStrict(elems[0])
			if err != nil {
				return nil, nil, false, ErrMalformedNode
			}
			if hasTerm(segment) {
				// Leaf: the stored segment must match the remaining key
				// exactly, terminator included.
				if !keysEqual(segment, hexKey[*pos:]) {
					return nil, nil, true, nil
				}
				*pos = len(hexKey)
				return elems[1], nil, false, nil
			}
			// Extension.
			if len(segment) == 0 {
				return nil, nil, false, ErrInvalidNodeShape
			}
			if hexKey[*pos] == terminatorByte {
				return nil, nil, false, ErrProofTooLong
			}
			if len(segment) > len(hexKey)-*pos || !keysEqual(segment, hexKey[*pos:*pos+len(segment)]) {
				return nil, nil, true, nil
			}
			*pos += len(segment)
			ref = elems[1]
			if len(ref) == 0 {
				return nil, nil, false, ErrInvalidNodeShape
			}

		case 17:
			nibble := hexKey[*pos]
			*pos++
			if nibble == terminatorByte {
				// Terminal branch: the value slot holds the result.
				if len(elems[16]) == 0 {
					return nil, nil, true, nil
				}
				return elems[16], nil, false, nil
			}
			ref = elems[nibble]
			if len(ref) == 0 {
				return nil, nil, true, nil
			}

		default:
			return nil, nil, false, ErrInvalidNodeShape
		}

		if len(ref) == 32 {
			return nil, ref, false, nil
		}
		// Inline child: its encoding is embedded in the parent, which has
		// already been authenticated. Keep walking without consuming a
		// witness entry.
		encoded = ref
	}
}
