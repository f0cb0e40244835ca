// Package node defines the three-variant node model of the forestry —
// Empty, Leaf and Branch — and the hashing rules that bind a node's
// content (prefix/suffix, children, value) into its 32-byte hash.
//
// This generalizes the teacher's FullNode/ShortNode/HashNode three-shape
// union (mpt.go) to this spec's model: a ShortNode's separate "key
// segment" collapses into Branch.Prefix directly, since here prefixes are
// bound into the Branch hash itself rather than living on a standalone
// node.
package node

import (
	"github.com/bits-and-blooms/bitset"

	"github.com/aiken-lang/merkle-patricia-forestry/hashutil"
	"github.com/aiken-lang/merkle-patricia-forestry/nibble"
	"github.com/aiken-lang/merkle-patricia-forestry/sparse"
)

// Kind tags which of the three node variants a Node is.
type Kind int

const (
	KindEmpty Kind = iota
	KindLeaf
	KindBranch
)

func (k Kind) String() string {
	switch k {
	case KindEmpty:
		return "empty"
	case KindLeaf:
		return "leaf"
	case KindBranch:
		return "branch"
	default:
		return "unknown"
	}
}

// Ref is a child reference: either a Materialized in-memory Node, or a
// Hash handle pointing at a node paged out to the Store (spec §9,
// "On-demand children"). An empty Ref (zero value) denotes an absent
// child slot.
type Ref struct {
	node    *Node
	hash    hashutil.Hash
	hasHash bool
}

// EmptyRef is the zero Ref: an absent child.
var EmptyRef = Ref{}

// FromNode wraps a materialized Node as a Ref.
func FromNode(n *Node) Ref {
	if n == nil {
		return EmptyRef
	}
	return Ref{node: n}
}

// FromHash wraps a content-addressed hash handle as a Ref, not yet
// resolved to a concrete Node.
func FromHash(h hashutil.Hash) Ref {
	return Ref{hash: h, hasHash: true}
}

// IsEmpty reports whether this Ref denotes an absent child.
func (r Ref) IsEmpty() bool { return r.node == nil && !r.hasHash }

// IsMaterialized reports whether the referenced node is already in memory.
func (r Ref) IsMaterialized() bool { return r.node != nil }

// Node returns the materialized node, or nil if this Ref is only a hash
// handle or empty.
func (r Ref) Node() *Node { return r.node }

// Hash returns the 32-byte hash of whatever this Ref points to: the
// materialized node's hash, the stored handle's hash, or hashutil.NullHash
// for an empty slot.
func (r Ref) Hash() hashutil.Hash {
	switch {
	case r.node != nil:
		return r.node.Hash()
	case r.hasHash:
		return r.hash
	default:
		return hashutil.NullHash
	}
}

// Node is a tagged union over Empty, Leaf and Branch. The zero Node is
// Empty.
type Node struct {
	kind Kind

	// Leaf fields. path is H(key) in full (64 nibbles); cursor is the
	// position within path where this leaf hangs, so that
	// nibble.SuffixEncode(path, cursor) reproduces the exact suffix
	// encoding bound into the hash (§4.1, §4.2).
	path   nibble.Path
	cursor int
	key    []byte
	value  []byte

	// Branch fields. prefix is a nibble string (one nibble per byte,
	// values 0..15); children holds up to 16 slots, at least two
	// populated per the canonical-form invariant (§3).
	prefix    []byte
	children  [16]Ref
	populated *bitset.BitSet

	hash      hashutil.Hash
	hashValid bool
}

// Empty is the canonical representation of the empty trie: its hash is
// hashutil.NullHash.
func Empty() *Node {
	return &Node{kind: KindEmpty, hash: hashutil.NullHash, hashValid: true}
}

// NewLeaf builds a Leaf holding one key/value pair, hanging at cursor
// nibbles deep in path = H(key).
func NewLeaf(path nibble.Path, cursor int, key, value []byte) *Node {
	return &Node{
		kind:   KindLeaf,
		path:   path,
		cursor: cursor,
		key:    append([]byte(nil), key...),
		value:  append([]byte(nil), value...),
	}
}

// NewBranch builds a Branch with the given nibble prefix and children. At
// least two children must be populated (canonical-form invariant); callers
// that might produce a single-child branch must collapse it instead (see
// package trie).
func NewBranch(prefix []byte, children [16]Ref) *Node {
	n := &Node{
		kind:      KindBranch,
		prefix:    append([]byte(nil), prefix...),
		children:  children,
		populated: bitset.New(16),
	}
	for i, c := range children {
		if !c.IsEmpty() {
			n.populated.Set(uint(i))
		}
	}
	return n
}

func (n *Node) Kind() Kind     { return n.kind }
func (n *Node) IsEmpty() bool  { return n.kind == KindEmpty }
func (n *Node) IsLeaf() bool   { return n.kind == KindLeaf }
func (n *Node) IsBranch() bool { return n.kind == KindBranch }

// Path and Cursor describe where a Leaf hangs; valid only for Leaf nodes.
func (n *Node) Path() nibble.Path { return n.path }
func (n *Node) Cursor() int       { return n.cursor }
func (n *Node) Key() []byte       { return n.key }
func (n *Node) Value() []byte     { return n.value }

// Suffix returns the remaining nibbles of a Leaf's path below where it
// hangs in the trie.
func (n *Node) Suffix() []byte {
	return nibble.Slice(n.path, n.cursor, nibble.Len)
}

// Prefix returns a Branch's common nibble prefix.
func (n *Node) Prefix() []byte { return n.prefix }

// Child returns the Ref at nibble slot i (0..15); valid only for Branch
// nodes.
func (n *Node) Child(i int) Ref { return n.children[i] }

// SetChild replaces the Ref at slot i and invalidates the cached hash.
// Valid only for Branch nodes.
func (n *Node) SetChild(i int, r Ref) {
	n.children[i] = r
	if r.IsEmpty() {
		n.populated.Clear(uint(i))
	} else {
		n.populated.Set(uint(i))
	}
	n.hashValid = false
}

// ChildrenArray returns a copy of the 16-slot children array, for callers
// (package trie) that need to rebuild a Branch with most slots unchanged.
func (n *Node) ChildrenArray() [16]Ref { return n.children }

// ResolveChild replaces the Ref at slot i with a materialized node without
// touching the cached hash, so the replacement node must hash identically
// to the handle it replaces (spec §9, "On-demand children"). Package
// trie's resolve does not call it: decoded nodes are not written back.
func (n *Node) ResolveChild(i int, resolved *Node) {
	n.children[i] = FromNode(resolved)
}

// PopulatedCount returns how many of the 16 child slots are non-empty.
func (n *Node) PopulatedCount() int {
	if n.populated == nil {
		return 0
	}
	return int(n.populated.Count())
}

// PopulatedIndices returns the nibble indices (0..15) of populated
// children, in ascending order.
func (n *Node) PopulatedIndices() []int {
	if n.populated == nil {
		return nil
	}
	out := make([]int, 0, n.populated.Count())
	for i, ok := n.populated.NextSet(0); ok; i, ok = n.populated.NextSet(i + 1) {
		out = append(out, int(i))
	}
	return out
}

// Hash computes (and caches) this node's hash per the rules of §4.2:
//
//   - Empty:  NULL_HASH.
//   - Leaf:   H(suffix_encoding(path, cursor) ⊕ H(value)).
//   - Branch: H(prefix_as_nibbles ⊕ merkle16(children_hashes)).
func (n *Node) Hash() hashutil.Hash {
	if n.hashValid {
		return n.hash
	}
	switch n.kind {
	case KindEmpty:
		n.hash = hashutil.NullHash
	case KindLeaf:
		encoding := nibble.SuffixEncode(n.path, n.cursor)
		n.hash = hashutil.H(encoding, hashutil.H(n.value)[:])
	case KindBranch:
		var childHashes [16]hashutil.Hash
		for i := range n.children {
			childHashes[i] = n.children[i].Hash()
		}
		merkle := sparse.Merkle16(childHashes)
		n.hash = hashutil.H(n.prefix, merkle[:])
	default:
		panic("node: unknown kind")
	}
	n.hashValid = true
	return n.hash
}

// Invalidate clears the cached hash, forcing recomputation on next Hash().
// Package trie does not call it: its mutations build new nodes.
func (n *Node) Invalidate() { n.hashValid = false }
