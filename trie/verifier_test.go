package trie

import (
	"bytes"
	"fmt"
	"math/rand"
	"testing"

	"github.com/stateprove/stateprove/core/types"
	"github.com/stateprove/stateprove/crypto"
)

// buildTestTrie returns a trie with enough entries that interior nodes are
// digest-referenced rather than inline.
func buildTestTrie(n int) (*Trie, map[string][]byte) {
	tr := New()
	entries := make(map[string][]byte)
	for i := 0; i < n; i++ {
		key := crypto.Keccak256([]byte(fmt.Sprintf("key-%d", i)))
		val := bytes.Repeat([]byte{byte(i + 1)}, 33)
		tr.Put(key, val)
		entries[string(key)] = val
	}
	return tr, entries
}

// -- Soundness and completeness --

func TestVerifyProof_RoundTrip(t *testing.T) {
	tr, entries := buildTestTrie(64)
	root := tr.Hash()

	for key, want := range entries {
		proof, err := tr.Prove([]byte(key))
		if err != nil {
			t.Fatalf("Prove(%x) error: %v", key, err)
		}
		got, err := VerifyProof(root, []byte(key), proof)
		if err != nil {
			t.Fatalf("VerifyProof(%x) error: %v", key, err)
		}
		if !bytes.Equal(got, want) {
			t.Fatalf("VerifyProof(%x) = %x, want %x", key, got, want)
		}
	}
}

// -- Absence correctness --

func TestVerifyProof_Absence(t *testing.T) {
	tr, _ := buildTestTrie(64)
	root := tr.Hash()

	for i := 0; i < 32; i++ {
		key := crypto.Keccak256([]byte(fmt.Sprintf("missing-%d", i)))
		proof, err := tr.ProveAbsence(key)
		if err != nil {
			t.Fatalf("ProveAbsence(%x) error: %v", key, err)
		}
		got, err := VerifyProof(root, key, proof)
		if err != nil {
			t.Fatalf("VerifyProof(%x) error: %v", key, err)
		}
		if got != nil {
			t.Fatalf("VerifyProof(%x) = %x, want nil for absent key", key, got)
		}
	}
}

func TestVerifyProof_AbsenceEmptyTrie(t *testing.T) {
	got, err := VerifyProof(emptyRoot, []byte("anything"), nil)
	if err != nil {
		t.Fatalf("VerifyProof on empty trie error: %v", err)
	}
	if got != nil {
		t.Fatalf("VerifyProof on empty trie = %x, want nil", got)
	}
}

func TestProveAbsence_PresentKey(t *testing.T) {
	tr, entries := buildTestTrie(4)
	for key := range entries {
		if _, err := tr.ProveAbsence([]byte(key)); err != ErrNotFound {
			t.Fatalf("ProveAbsence(present key) err = %v, want ErrNotFound", err)
		}
	}
}

// -- Tamper detection --

func TestVerifyProof_TamperEveryByte(t *testing.T) {
	tr, _ := buildTestTrie(16)
	root := tr.Hash()

	key := crypto.Keccak256([]byte("key-7"))
	proof, err := tr.Prove(key)
	if err != nil {
		t.Fatalf("Prove error: %v", err)
	}
	want, err := VerifyProof(root, key, proof)
	if err != nil {
		t.Fatalf("VerifyProof error: %v", err)
	}

	for i := range proof {
		for j := range proof[i] {
			tampered := make([][]byte, len(proof))
			for k := range proof {
				tampered[k] = append([]byte{}, proof[k]...)
			}
			tampered[i][j] ^= 0x01

			got, err := VerifyProof(root, key, tampered)
			if err == nil && bytes.Equal(got, want) {
				t.Fatalf("flipping proof[%d][%d] went undetected", i, j)
			}
		}
	}
}

func TestVerifyProof_WrongRoot(t *testing.T) {
	tr, _ := buildTestTrie(8)
	key := crypto.Keccak256([]byte("key-3"))
	proof, _ := tr.Prove(key)

	var wrongRoot types.Hash
	wrongRoot[0] = 0xde
	wrongRoot[1] = 0xad
	wrongRoot[2] = 0xbe
	wrongRoot[3] = 0xef

	_, err := VerifyProof(wrongRoot, key, proof)
	if err != ErrRootMismatch {
		t.Fatalf("VerifyProof(wrong root) err = %v, want ErrRootMismatch", err)
	}
}

// -- Witness shape errors --

func TestVerifyProof_Truncated(t *testing.T) {
	tr, _ := buildTestTrie(64)
	root := tr.Hash()

	key := crypto.Keccak256([]byte("key-11"))
	proof, err := tr.Prove(key)
	if err != nil {
		t.Fatalf("Prove error: %v", err)
	}
	if len(proof) < 2 {
		t.Fatalf("want a multi-node proof, got %d entries", len(proof))
	}

	_, err = VerifyProof(root, key, proof[:len(proof)-1])
	if err != ErrProofTooShort {
		t.Fatalf("VerifyProof(truncated) err = %v, want ErrProofTooShort", err)
	}
}

func TestVerifyProof_TrailingEntries(t *testing.T) {
	tr, _ := buildTestTrie(64)
	root := tr.Hash()

	key := crypto.Keccak256([]byte("key-11"))
	proof, err := tr.Prove(key)
	if err != nil {
		t.Fatalf("Prove error: %v", err)
	}
	extended := append(append([][]byte{}, proof...), []byte{0xc0})

	_, err = VerifyProof(root, key, extended)
	if err != ErrTrailingNodes {
		t.Fatalf("VerifyProof(trailing entries) err = %v, want ErrTrailingNodes", err)
	}
}

func TestVerifyProof_MalformedRoot(t *testing.T) {
	// A witness entry that hashes to the claimed root but is not canonical
	// RLP must be rejected as malformed, not trusted.
	garbage := []byte{0x01, 0x02, 0x03}
	root := crypto.Keccak256Hash(garbage)

	_, err := VerifyProof(root, []byte("key"), [][]byte{garbage})
	if err != ErrMalformedNode {
		t.Fatalf("VerifyProof(garbage entry) err = %v, want ErrMalformedNode", err)
	}
}

func TestVerifyProof_BadListShape(t *testing.T) {
	// A 3-element list is neither a short node nor a branch.
	entry := []byte{0xc3, 0x01, 0x02, 0x03}
	root := crypto.Keccak256Hash(entry)

	_, err := VerifyProof(root, []byte{0x01}, [][]byte{entry})
	if err != ErrInvalidNodeShape {
		t.Fatalf("VerifyProof(3-element list) err = %v, want ErrInvalidNodeShape", err)
	}
}

func TestVerifyProof_NonCanonicalPathFlag(t *testing.T) {
	// Hex-prefix flag nibbles above 3 are illegal.
	payload := []byte{0x82, 0x41, 0x01, 0x61}
	entry := append([]byte{0xc0 + byte(len(payload))}, payload...)
	root := crypto.Keccak256Hash(entry)

	_, err := VerifyProof(root, []byte{0x10, 0x01}, [][]byte{entry})
	if err != ErrMalformedNode {
		t.Fatalf("VerifyProof(bad HP flag) err = %v, want ErrMalformedNode", err)
	}
}

func TestVerifyProof_ExtensionMissingChild(t *testing.T) {
	// An extension with an empty segment or an empty child slot is not a
	// legal node. The legal "no child here" form is a branch's empty slot,
	// which proves absence; an extension always carries both parts.
	tests := []struct {
		name  string
		entry []byte
	}{
		{"empty child", []byte{0xc2, 0x1a, 0x80}},
		{"empty segment", []byte{0xc2, 0x00, 0x01}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			root := crypto.Keccak256Hash(tt.entry)
			_, err := VerifyProof(root, []byte{0xab}, [][]byte{tt.entry})
			if err != ErrInvalidNodeShape {
				t.Fatalf("VerifyProof err = %v, want ErrInvalidNodeShape", err)
			}
		})
	}
}

// -- End-to-end known-structure scenario --

func TestVerifyProof_BranchExtensionLeaf(t *testing.T) {
	// Build a trie whose witness for the target key walks a branch, then an
	// extension, then a leaf holding 0x2a.
	tr := New()
	target := []byte{0xab, 0xc1, 0x23}
	tr.Put(target, []byte{0x2a})
	// A sibling under a different first nibble forces a branch at the root.
	tr.Put([]byte{0x1b, 0xc1, 0x23}, bytes.Repeat([]byte{0x11}, 40))
	// Siblings sharing the 0xab prefix force an extension below the branch.
	tr.Put([]byte{0xab, 0xc1, 0xff}, bytes.Repeat([]byte{0x22}, 40))
	tr.Put([]byte{0xab, 0xc1, 0x00}, bytes.Repeat([]byte{0x33}, 40))

	root := tr.Hash()
	proof, err := tr.Prove(target)
	if err != nil {
		t.Fatalf("Prove error: %v", err)
	}

	got, err := VerifyProof(root, target, proof)
	if err != nil {
		t.Fatalf("VerifyProof error: %v", err)
	}
	if !bytes.Equal(got, []byte{0x2a}) {
		t.Fatalf("VerifyProof = %x, want 2a", got)
	}

	var other types.Hash
	copy(other[:], bytes.Repeat([]byte{0xdb}, 32))
	if _, err := VerifyProof(other, target, proof); err != ErrRootMismatch {
		t.Fatalf("VerifyProof(other root) err = %v, want ErrRootMismatch", err)
	}
}

// -- Randomized round-trips --

func TestVerifyProof_RandomTries(t *testing.T) {
	rng := rand.New(rand.NewSource(99))
	for round := 0; round < 10; round++ {
		tr := New()
		var keys [][]byte
		for i := 0; i < 50; i++ {
			key := make([]byte, rng.Intn(30)+2)
			rng.Read(key)
			val := make([]byte, rng.Intn(60)+1)
			rng.Read(val)
			tr.Put(key, val)
			keys = append(keys, key)
		}
		root := tr.Hash()

		for _, key := range keys {
			want, err := tr.Get(key)
			if err != nil {
				t.Fatalf("Get(%x) error: %v", key, err)
			}
			proof, err := tr.Prove(key)
			if err != nil {
				t.Fatalf("Prove(%x) error: %v", key, err)
			}
			got, err := VerifyProof(root, key, proof)
			if err != nil {
				t.Fatalf("VerifyProof(%x) error: %v", key, err)
			}
			if !bytes.Equal(got, want) {
				t.Fatalf("VerifyProof(%x) = %x, want %x", key, got, want)
			}
		}
	}
}
