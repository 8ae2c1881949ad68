package trie

import (
	"bytes"
	"errors"

	"github.com/stateprove/stateprove/core/types"
)

// emptyRoot is the hash of an empty trie: Keccak-256 of the RLP of an
// empty string.
var emptyRoot = types.HexToHash("56e81f171bcc55a6ff8345e692c0f86e5b48e01b996cadc001622fb5e363b421")

// EmptyRoot returns the root hash of an empty trie.
func EmptyRoot() types.Hash { return emptyRoot }

// ErrNotFound is returned when a key is not present in the trie.
var ErrNotFound = errors.New("trie: key not found")

// Trie is an in-memory hexary Merkle-Patricia trie. It supports insertion,
// deletion, lookup, root hashing and Merkle proof generation. The zero Trie
// is not usable; call New.
//
// Trie is not safe for concurrent use.
type Trie struct {
	root node
}

// New creates an empty trie.
func New() *Trie {
	return &Trie{}
}

// Get returns the value stored under key. ErrNotFound is returned when the
// key is absent.
func (t *Trie) Get(key []byte) ([]byte, error) {
	hexKey := keybytesToHex(key)
	val, found := t.get(t.root, hexKey, 0)
	if !found {
		return nil, ErrNotFound
	}
	return val, nil
}

func (t *Trie) get(n node, key []byte, pos int) ([]byte, bool) {
	switch n := n.(type) {
	case nil:
		return nil, false
	case valueNode:
		return n, true
	case *shortNode:
		if len(key)-pos < len(n.Key) || !keysEqual(n.Key, key[pos:pos+len(n.Key)]) {
			return nil, false
		}
		return t.get(n.Val, key, pos+len(n.Key))
	case *fullNode:
		return t.get(n.Children[key[pos]], key, pos+1)
	default:
		return nil, false
	}
}

// Put stores value under key, replacing any existing value. An empty or nil
// value deletes the key.
func (t *Trie) Put(key, value []byte) error {
	hexKey := keybytesToHex(key)
	if len(value) == 0 {
		root, _, err := t.delete(t.root, hexKey, 0)
		if err != nil {
			return err
		}
		t.root = root
		return nil
	}
	root, err := t.insert(t.root, hexKey, 0, valueNode(value))
	if err != nil {
		return err
	}
	t.root = root
	return nil
}

func (t *Trie) insert(n node, key []byte, pos int, value node) (node, error) {
	if pos == len(key) {
		if v, ok := n.(valueNode); ok && bytes.Equal(v, value.(valueNode)) {
			return n, nil
		}
		return value, nil
	}
	switch n := n.(type) {
	case nil:
		return &shortNode{Key: key[pos:], Val: value, flags: nodeFlag{dirty: true}}, nil

	case *shortNode:
		matchlen := prefixLen(key[pos:], n.Key)
		// Full key match: descend into the existing node.
		if matchlen == len(n.Key) {
			child, err := t.insert(n.Val, key, pos+matchlen, value)
			if err != nil {
				return nil, err
			}
			return &shortNode{Key: n.Key, Val: child, flags: nodeFlag{dirty: true}}, nil
		}
		// Paths diverge: split into a branch at the divergence point.
		branch := &fullNode{flags: nodeFlag{dirty: true}}
		var err error
		branch.Children[n.Key[matchlen]], err = t.insert(nil, n.Key, matchlen+1, n.Val)
		if err != nil {
			return nil, err
		}
		branch.Children[key[pos+matchlen]], err = t.insert(nil, key, pos+matchlen+1, value)
		if err != nil {
			return nil, err
		}
		if matchlen == 0 {
			return branch, nil
		}
		return &shortNode{Key: key[pos : pos+matchlen], Val: branch, flags: nodeFlag{dirty: true}}, nil

	case *fullNode:
		child, err := t.insert(n.Children[key[pos]], key, pos+1, value)
		if err != nil {
			return nil, err
		}
		cp := n.copy()
		cp.flags = nodeFlag{dirty: true}
		cp.Children[key[pos]] = child
		return cp, nil

	default:
		return nil, errDecodeInvalid
	}
}

// Delete removes key from the trie. Deleting an absent key is not an error.
func (t *Trie) Delete(key []byte) error {
	hexKey := keybytesToHex(key)
	root, _, err := t.delete(t.root, hexKey, 0)
	if err != nil {
		return err
	}
	t.root = root
	return nil
}

// delete returns the node that replaces n after removing key, plus whether
// anything changed.
func (t *Trie) delete(n node, key []byte, pos int) (node, bool, error) {
	switch n := n.(type) {
	case nil:
		return nil, false, nil

	case valueNode:
		if pos == len(key) {
			return nil, true, nil
		}
		return n, false, nil

	case *shortNode:
		if len(key)-pos < len(n.Key) || !keysEqual(n.Key, key[pos:pos+len(n.Key)]) {
			return n, false, nil
		}
		child, changed, err := t.delete(n.Val, key, pos+len(n.Key))
		if err != nil || !changed {
			return n, changed, err
		}
		if child == nil {
			return nil, true, nil
		}
		// Merge with a child short node to keep the trie canonical.
		if child, ok := child.(*shortNode); ok {
			merged := append(append([]byte{}, n.Key...), child.Key...)
			return &shortNode{Key: merged, Val: child.Val, flags: nodeFlag{dirty: true}}, true, nil
		}
		return &shortNode{Key: n.Key, Val: child, flags: nodeFlag{dirty: true}}, true, nil

	case *fullNode:
		var idx int
		if pos == len(key) {
			idx = 16
		} else {
			idx = int(key[pos])
		}
		var (
			child   node
			changed bool
			err     error
		)
		if idx == 16 {
			if n.Children[16] == nil {
				return n, false, nil
			}
			child, changed = nil, true
		} else {
			child, changed, err = t.delete(n.Children[idx], key, pos+1)
			if err != nil || !changed {
				return n, changed, err
			}
		}
		cp := n.copy()
		cp.flags = nodeFlag{dirty: true}
		cp.Children[idx] = child

		// If only one child remains the branch collapses into a short node.
		remaining := -1
		for i := 0; i < 17; i++ {
			if cp.Children[i] != nil {
				if remaining != -1 {
					return cp, true, nil
				}
				remaining = i
			}
		}
		switch {
		case remaining == -1:
			return nil, true, nil
		case remaining == 16:
			return &shortNode{Key: []byte{terminatorByte}, Val: cp.Children[16], flags: nodeFlag{dirty: true}}, true, nil
		default:
			if sn, ok := cp.Children[remaining].(*shortNode); ok {
				merged := append([]byte{byte(remaining)}, sn.Key...)
				return &shortNode{Key: merged, Val: sn.Val, flags: nodeFlag{dirty: true}}, true, nil
			}
			return &shortNode{Key: []byte{byte(remaining)}, Val: cp.Children[remaining], flags: nodeFlag{dirty: true}}, true, nil
		}

	default:
		return n, false, errDecodeInvalid
	}
}

// Hash computes the Keccak-256 root hash of the trie.
func (t *Trie) Hash() types.Hash {
	if t.root == nil {
		return emptyRoot
	}
	h := newHasher()
	hashed, cached := h.hash(t.root, true)
	t.root = cached
	if hn, ok := hashed.(hashNode); ok {
		return types.BytesToHash(hn)
	}
	return emptyRoot
}

// keysEqual reports whether two hex nibble slices are equal.
func keysEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
