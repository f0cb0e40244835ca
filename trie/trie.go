// Package trie implements the prover-side Merkle Patricia Forestry: the
// mutable radix-16 Patricia trie with insert/delete/get, canonical
// rebalancing (no single-child branches, prefix splitting on divergence),
// and content-addressed persistence through a store.Store.
//
// The recursive-descent-then-rebuild-on-the-way-up shape of insertAt and
// deleteAt follows the teacher's t.insert in mpt.go (MerklePatriciaTrie.go
// lines 108-246): resolve the node at this position, switch on its kind,
// recurse, and construct a replacement node from the recursive result.
package trie

import (
	"bytes"
	"context"
	"errors"

	"github.com/aiken-lang/merkle-patricia-forestry/hashutil"
	"github.com/aiken-lang/merkle-patricia-forestry/nibble"
	"github.com/aiken-lang/merkle-patricia-forestry/node"
	"github.com/aiken-lang/merkle-patricia-forestry/store"
)

// Error kinds (spec §7).
var (
	ErrAlreadyPresent = errors.New("trie: key already present")
	ErrNotPresent     = errors.New("trie: key not present")
	ErrEmptyTrie      = errors.New("trie: trie is empty")
)

// KV is one key/value pair, used by FromList.
type KV struct {
	Key   []byte
	Value []byte
}

// Trie is the prover-side handle: an in-memory (possibly partially paged)
// radix-16 Patricia trie with sparse-Merkle node hashing.
type Trie struct {
	root  node.Ref
	store store.Store
}

// New creates an empty, store-less Trie.
func New() *Trie {
	return &Trie{root: node.FromNode(node.Empty())}
}

// FromList builds a Trie by inserting pairs in the given order. Per spec
// §8's canonicality property, the resulting root is independent of this
// order for a fixed pair set.
func FromList(pairs []KV) (*Trie, error) {
	t := New()
	for _, kv := range pairs {
		if err := t.Insert(kv.Key, kv.Value); err != nil {
			return nil, err
		}
	}
	return t, nil
}

// Load constructs a Trie backed by s, starting from whatever root is
// currently stored there (spec §6: "load(Store) → Trie").
func Load(s store.Store) (*Trie, error) {
	root, err := s.Root()
	if err != nil {
		return nil, err
	}
	if root == hashutil.NullHash {
		return &Trie{root: node.FromNode(node.Empty()), store: s}, nil
	}
	return &Trie{root: node.FromHash(root), store: s}, nil
}

// Root returns the trie's current root hash.
func (t *Trie) Root() hashutil.Hash { return t.root.Hash() }

// IsEmpty reports whether the trie holds no key/value pairs.
func (t *Trie) IsEmpty() bool { return t.root.Hash() == hashutil.NullHash }

func (t *Trie) resolve(r node.Ref) (*node.Node, error) {
	if n := r.Node(); n != nil {
		return n, nil
	}
	if r.IsEmpty() {
		return node.Empty(), nil
	}
	if t.store == nil {
		return nil, errors.New("trie: hash handle with no backing store")
	}
	blob, err := t.store.Get(r.Hash())
	if err != nil {
		return nil, err
	}
	n, err := node.Decode(blob)
	if err != nil {
		return nil, err
	}
	return n, nil
}

// Get returns the value stored under key, and whether it was present.
func (t *Trie) Get(key []byte) ([]byte, bool, error) {
	path := nibble.PathOf(key)
	cur := t.root
	cursor := 0
	for {
		n, err := t.resolve(cur)
		if err != nil {
			return nil, false, err
		}
		switch n.Kind() {
		case node.KindEmpty:
			return nil, false, nil
		case node.KindLeaf:
			if bytes.Equal(n.Key(), key) {
				return n.Value(), true, nil
			}
			return nil, false, nil
		case node.KindBranch:
			prefix := n.Prefix()
			for i, p := range prefix {
				if nibble.At(path, cursor+i) != p {
					return nil, false, nil
				}
			}
			cursor += len(prefix)
			nib := nibble.At(path, cursor)
			cur = n.Child(int(nib))
			cursor++
		}
	}
}

// ChildAt returns the subtree hanging below the given nibble path, when
// that path is a proper (or exact) prefix of some key's path currently in
// the trie. It returns (node, true, nil) on success, or (nil, false, nil)
// when the path diverges from everything in the trie.
func (t *Trie) ChildAt(nibblePath []byte) (*node.Node, bool, error) {
	cur := t.root
	cursor := 0
	for {
		if cursor == len(nibblePath) {
			n, err := t.resolve(cur)
			if err != nil {
				return nil, false, err
			}
			if n.IsEmpty() {
				return nil, false, nil
			}
			return n, true, nil
		}
		n, err := t.resolve(cur)
		if err != nil {
			return nil, false, err
		}
		switch n.Kind() {
		case node.KindEmpty:
			return nil, false, nil
		case node.KindLeaf:
			suffix := n.Suffix()
			remaining := nibblePath[cursor:]
			if len(remaining) > len(suffix) {
				return nil, false, nil
			}
			for i, want := range remaining {
				if suffix[i] != want {
					return nil, false, nil
				}
			}
			return n, true, nil
		case node.KindBranch:
			prefix := n.Prefix()
			avail := len(nibblePath) - cursor
			take := len(prefix)
			if take > avail {
				take = avail
			}
			for i := 0; i < take; i++ {
				if prefix[i] != nibblePath[cursor+i] {
					return nil, false, nil
				}
			}
			cursor += take
			if take < len(prefix) {
				// nibblePath ran out in the middle of this branch's
				// prefix: the branch itself is the requested subtree.
				return n, true, nil
			}
			if cursor == len(nibblePath) {
				return n, true, nil
			}
			nib := nibblePath[cursor]
			cur = n.Child(int(nib))
			cursor++
		}
	}
}

// Insert adds a key/value pair, failing with ErrAlreadyPresent if key is
// already present (spec §4.4).
func (t *Trie) Insert(key, value []byte) error {
	path := nibble.PathOf(key)
	newRoot, err := t.insertAt(t.root, path, 0, key, value)
	if err != nil {
		return err
	}
	t.root = node.FromNode(newRoot)
	return nil
}

// InsertBatch applies a list of inserts as one logical unit: on the first
// error, the trie's exposed root is left unchanged (spec §7: "mutation
// errors are surfaced to the caller").
func (t *Trie) InsertBatch(pairs []KV) error {
	saved := t.root
	for _, kv := range pairs {
		if err := t.Insert(kv.Key, kv.Value); err != nil {
			t.root = saved
			return err
		}
	}
	return nil
}

func (t *Trie) insertAt(ref node.Ref, path nibble.Path, cursor int, key, value []byte) (*node.Node, error) {
	n, err := t.resolve(ref)
	if err != nil {
		return nil, err
	}

	switch n.Kind() {
	case node.KindEmpty:
		return node.NewLeaf(path, cursor, key, value), nil

	case node.KindLeaf:
		if bytes.Equal(n.Key(), key) {
			return nil, ErrAlreadyPresent
		}
		common := nibble.CommonPrefixLen(n.Path(), path, cursor)
		branchCursor := cursor + common
		existingNib := nibble.At(n.Path(), branchCursor)
		newNib := nibble.At(path, branchCursor)

		existingLeaf := node.NewLeaf(n.Path(), branchCursor+1, n.Key(), n.Value())
		newLeaf := node.NewLeaf(path, branchCursor+1, key, value)

		var children [16]node.Ref
		children[existingNib] = node.FromNode(existingLeaf)
		children[newNib] = node.FromNode(newLeaf)
		prefix := nibble.Slice(path, cursor, branchCursor)
		return node.NewBranch(prefix, children), nil

	case node.KindBranch:
		prefix := n.Prefix()
		divergeAt := -1
		for i, p := range prefix {
			if nibble.At(path, cursor+i) != p {
				divergeAt = i
				break
			}
		}

		if divergeAt == -1 {
			next := cursor + len(prefix)
			nib := nibble.At(path, next)
			newChild, err := t.insertAt(n.Child(int(nib)), path, next+1, key, value)
			if err != nil {
				return nil, err
			}
			children := n.ChildrenArray()
			children[nib] = node.FromNode(newChild)
			return node.NewBranch(prefix, children), nil
		}

		// Divergence inside this branch's own prefix: split it.
		oldNib := prefix[divergeAt]
		newNib := nibble.At(path, cursor+divergeAt)

		shortened := node.NewBranch(prefix[divergeAt+1:], n.ChildrenArray())
		newLeaf := node.NewLeaf(path, cursor+divergeAt+1, key, value)

		var children [16]node.Ref
		children[oldNib] = node.FromNode(shortened)
		children[newNib] = node.FromNode(newLeaf)
		return node.NewBranch(prefix[:divergeAt], children), nil

	default:
		return nil, errors.New("trie: unknown node kind")
	}
}

// Delete removes key, failing with ErrNotPresent if it is absent (spec
// §4.4).
func (t *Trie) Delete(key []byte) error {
	path := nibble.PathOf(key)
	newRoot, err := t.deleteAt(t.root, path, 0, key)
	if err != nil {
		return err
	}
	t.root = node.FromNode(newRoot)
	return nil
}

func (t *Trie) deleteAt(ref node.Ref, path nibble.Path, cursor int, key []byte) (*node.Node, error) {
	n, err := t.resolve(ref)
	if err != nil {
		return nil, err
	}

	switch n.Kind() {
	case node.KindEmpty:
		return nil, ErrNotPresent

	case node.KindLeaf:
		if !bytes.Equal(n.Key(), key) {
			return nil, ErrNotPresent
		}
		return node.Empty(), nil

	case node.KindBranch:
		prefix := n.Prefix()
		for i, p := range prefix {
			if nibble.At(path, cursor+i) != p {
				return nil, ErrNotPresent
			}
		}
		next := cursor + len(prefix)
		nib := nibble.At(path, next)
		child := n.Child(int(nib))
		if child.IsEmpty() {
			return nil, ErrNotPresent
		}
		newChild, err := t.deleteAt(child, path, next+1, key)
		if err != nil {
			return nil, err
		}

		children := n.ChildrenArray()
		if newChild.IsEmpty() {
			children[nib] = node.EmptyRef
		} else {
			children[nib] = node.FromNode(newChild)
		}

		popCount, lastIdx := 0, -1
		for i, c := range children {
			if !c.IsEmpty() {
				popCount++
				lastIdx = i
			}
		}
		switch {
		case popCount == 0:
			return node.Empty(), nil
		case popCount == 1:
			remaining, err := t.resolve(children[lastIdx])
			if err != nil {
				return nil, err
			}
			switch remaining.Kind() {
			case node.KindLeaf:
				// The leaf's full path is unchanged; re-hanging it at
				// this branch's own cursor reproduces
				// prefix ⊕ routing-nibble ⊕ old-suffix automatically,
				// since suffix = path[cursor:].
				return node.NewLeaf(remaining.Path(), cursor, remaining.Key(), remaining.Value()), nil
			case node.KindBranch:
				merged := make([]byte, 0, len(prefix)+1+len(remaining.Prefix()))
				merged = append(merged, prefix...)
				merged = append(merged, byte(lastIdx))
				merged = append(merged, remaining.Prefix()...)
				return node.NewBranch(merged, remaining.ChildrenArray()), nil
			default:
				return nil, errors.New("trie: collapse onto empty child")
			}
		default:
			return node.NewBranch(prefix, children), nil
		}

	default:
		return nil, errors.New("trie: unknown node kind")
	}
}

// Save persists every materialized node reachable from the root that
// isn't already a bare hash handle, then atomically exposes the new root
// (spec §5: "updates to intermediate node hashes must be visible to the
// Store before the new root is exposed").
func (t *Trie) Save(ctx context.Context) error {
	if t.store == nil {
		return errors.New("trie: no backing store")
	}
	batch, err := t.store.NewBatch(ctx)
	if err != nil {
		return err
	}
	if err := saveNode(batch, t.root); err != nil {
		batch.Discard()
		return err
	}
	batch.SetRoot(t.root.Hash())
	if err := batch.Commit(); err != nil {
		return err
	}
	return nil
}

func saveNode(batch store.Batch, r node.Ref) error {
	n := r.Node()
	if n == nil {
		// Either empty, or already a hash handle known to the store.
		return nil
	}
	if n.IsBranch() {
		for _, c := range n.ChildrenArray() {
			if err := saveNode(batch, c); err != nil {
				return err
			}
		}
	}
	batch.Put(n.Hash(), n.Encode())
	return nil
}

// Dump writes a human-readable, indented tree dump, in the style of the
// teacher's mpt.PrintTrie. When the root is still an unresolved hash
// handle (as right after Load), nothing is written.
func (t *Trie) Dump(w dumpWriter) {
	if n := t.root.Node(); n != nil {
		n.Dump(w, "")
		return
	}
}

type dumpWriter interface {
	Write(p []byte) (int, error)
}
