package trie

// node is the interface implemented by all trie node kinds.
type node interface {
	cache() (hashNode, bool)
}

type (
	// fullNode is a branch node with 16 child slots plus a value slot.
	fullNode struct {
		Children [17]node
		flags    nodeFlag
	}
	// shortNode is a leaf or extension node. The Key holds hex nibbles;
	// a trailing terminator nibble marks a leaf.
	shortNode struct {
		Key   []byte
		Val   node
		flags nodeFlag
	}
	// hashNode is a 32-byte Keccak-256 reference to a node stored elsewhere.
	hashNode []byte
	// valueNode holds a raw trie value.
	valueNode []byte
)

// nodeFlag caches hashing metadata for a node.
type nodeFlag struct {
	hash  hashNode
	dirty bool
}

func (n *fullNode) copy() *fullNode {
	cp := *n
	return &cp
}

func (n *shortNode) copy() *shortNode {
	cp := *n
	return &cp
}

func (n *fullNode) cache() (hashNode, bool)  { return n.flags.hash, n.flags.dirty }
func (n *shortNode) cache() (hashNode, bool) { return n.flags.hash, n.flags.dirty }
func (n hashNode) cache() (hashNode, bool)   { return nil, true }
func (n valueNode) cache() (hashNode, bool)  { return nil, true }
