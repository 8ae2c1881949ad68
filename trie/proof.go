package trie

import (
	"github.com/stateprove/stateprove/crypto"
)

// Prove generates a Merkle proof for the given key. The proof holds the
// RLP-encoded nodes along the path from the root to the value: the root node
// and every hash-referenced node below it, in walk order. Inline nodes
// (encoded below 32 bytes) are embedded in their parent's entry and do not
// appear separately. The proof can be checked with VerifyProof against the
// trie's root hash.
//
// ErrNotFound is returned when the key is not in the trie; use ProveAbsence
// for absence witnesses.
func (t *Trie) Prove(key []byte) ([][]byte, error) {
	proof, found, err := t.buildProof(key)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, ErrNotFound
	}
	return proof, nil
}

// ProveAbsence generates a Merkle proof that the given key is not in the
// trie. The proof holds the nodes along the deepest path the key's nibbles
// reach before diverging, and verifies to an absence outcome. ErrNotFound is
// returned if the key is in fact present.
func (t *Trie) ProveAbsence(key []byte) ([][]byte, error) {
	proof, found, err := t.buildProof(key)
	if err != nil {
		return nil, err
	}
	if found {
		return nil, ErrNotFound
	}
	return proof, nil
}

func (t *Trie) buildProof(key []byte) ([][]byte, bool, error) {
	if t.root == nil {
		return nil, false, nil
	}
	// Hash first so cached hashes and inline thresholds are settled.
	t.Hash()

	hexKey := keybytesToHex(key)
	var proof [][]byte
	found, err := prove(t.root, hexKey, 0, true, &proof)
	if err != nil {
		return nil, false, err
	}
	return proof, found, nil
}

// prove walks the trie along key, appending the encoding of every node that
// is referenced by digest (plus the root) to proof. Returns whether the key
// terminated at a value.
func prove(n node, key []byte, pos int, isRoot bool, proof *[][]byte) (bool, error) {
	switch n := n.(type) {
	case nil:
		return false, nil

	case valueNode:
		return true, nil

	case *shortNode:
		enc, err := encodeCollapsed(n)
		if err != nil {
			return false, err
		}
		if isRoot || len(enc) >= 32 {
			*proof = append(*proof, enc)
		}
		if len(key)-pos < len(n.Key) || !keysEqual(n.Key, key[pos:pos+len(n.Key)]) {
			return false, nil
		}
		return prove(n.Val, key, pos+len(n.Key), false, proof)

	case *fullNode:
		enc, err := encodeCollapsed(n)
		if err != nil {
			return false, err
		}
		if isRoot || len(enc) >= 32 {
			*proof = append(*proof, enc)
		}
		if key[pos] == terminatorByte {
			return n.Children[16] != nil, nil
		}
		return prove(n.Children[key[pos]], key, pos+1, false, proof)

	case hashNode:
		return false, errDecodeInvalid

	default:
		return false, errDecodeInvalid
	}
}

// encodeCollapsed encodes a node with compact keys and with large children
// replaced by their hashes, matching the on-wire witness form.
func encodeCollapsed(n node) ([]byte, error) {
	switch n := n.(type) {
	case *shortNode:
		collapsed := n.copy()
		collapsed.Key = hexToCompact(n.Key)
		collapsed.Val = collapseForProof(n.Val)
		return encodeShortNode(collapsed)
	case *fullNode:
		return encodeFullNode(collapseFullNodeForProof(n))
	default:
		return encodeNode(n)
	}
}

// collapseForProof creates a collapsed version of a node suitable for
// inclusion in a parent's witness entry. Children whose encoding reaches 32
// bytes are replaced by their hash; smaller ones stay inline.
func collapseForProof(n node) node {
	switch n := n.(type) {
	case *shortNode:
		collapsed := n.copy()
		collapsed.Key = hexToCompact(n.Key)
		collapsed.Val = collapseForProof(n.Val)
		enc, err := encodeShortNode(collapsed)
		if err != nil {
			return n
		}
		if len(enc) >= 32 {
			return hashNode(crypto.Keccak256(enc))
		}
		return collapsed
	case *fullNode:
		collapsed := collapseFullNodeForProof(n)
		enc, err := encodeFullNode(collapsed)
		if err != nil {
			return n
		}
		if len(enc) >= 32 {
			return hashNode(crypto.Keccak256(enc))
		}
		return collapsed
	default:
		return n
	}
}

// collapseFullNodeForProof collapses all children of a full node.
func collapseFullNodeForProof(n *fullNode) *fullNode {
	collapsed := n.copy()
	for i := 0; i < 16; i++ {
		if n.Children[i] != nil {
			collapsed.Children[i] = collapseForProof(n.Children[i])
		}
	}
	return collapsed
}
