// Package verify implements the bit-exact, on-chain-compatible verifier
// side of the Merkle Patricia Forestry (spec §4.6, §6): it recomputes a
// root hash from a path, an optional value, and a Proof, and never touches
// a Store or a mutable trie — only hashutil, nibble, sparse and proof.
//
// The recursive, cursor-carrying shape of verifyFrom mirrors the
// teacher's own recursive hash verification in merkle.VerifyProof
// (MerkleTree.go), generalized from a binary audit path to the forestry's
// per-level Branch/Fork/Leaf step shapes.
package verify

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/aiken-lang/merkle-patricia-forestry/hashutil"
	"github.com/aiken-lang/merkle-patricia-forestry/nibble"
	"github.com/aiken-lang/merkle-patricia-forestry/proof"
	"github.com/aiken-lang/merkle-patricia-forestry/sparse"
)

// ErrPrecondition is returned by Insert/Delete/Update when the proof
// fails the precondition the operation requires (spec §6).
var ErrPrecondition = errors.New("verify: proof does not satisfy precondition")

// poisonHash is returned whenever a structural assertion inside
// verification fails (a nibble collision, a path mismatch at a Leaf
// step): a fixed value that cannot be the hash of any valid node, so it
// can never accidentally match a claimed root (spec §4.6,
// "explicit failure is acceptable").
var poisonHash = hashutil.Hash{
	0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff,
	0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff,
	0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff,
	0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xfe,
}

// Handle is an opaque verifier-side reference to a trie root: just the
// root hash, nothing else (spec §6).
type Handle struct {
	root hashutil.Hash
}

// Empty is the Handle for the empty trie.
var Empty = Handle{root: hashutil.NullHash}

// FromRoot wraps a known root hash as a Handle.
func FromRoot(root hashutil.Hash) Handle { return Handle{root: root} }

// Root returns the handle's root hash.
func (h Handle) Root() hashutil.Hash { return h.root }

// IsEmpty reports whether the handle denotes the empty trie.
func (h Handle) IsEmpty() bool { return h.root == hashutil.NullHash }

// MarshalJSON encodes a Handle as its hex-encoded root hash, for
// embedding in a larger JSON document alongside a proof.
func (h Handle) MarshalJSON() ([]byte, error) {
	return json.Marshal(hex.EncodeToString(h.root[:]))
}

// UnmarshalJSON decodes a Handle previously produced by MarshalJSON.
func (h *Handle) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	raw, err := hex.DecodeString(s)
	if err != nil {
		return err
	}
	if len(raw) != len(h.root) {
		return fmt.Errorf("verify: handle root must be %d bytes, got %d", len(h.root), len(raw))
	}
	copy(h.root[:], raw)
	return nil
}

// Has reports whether (key, value) is included under h's root, per proof.
func Has(h Handle, key, value []byte, p proof.Proof) bool {
	return verify(key, value, p, true) == h.root
}

// Miss reports whether key is excluded from h's root, per proof.
func Miss(h Handle, key []byte, p proof.Proof) bool {
	return verify(key, nil, p, false) == h.root
}

// Insert produces the Handle that results from inserting (key, value)
// into h, requiring Miss(h, key, p) to hold for the resulting Handle to
// satisfy Has (spec §6).
func Insert(h Handle, key, value []byte, p proof.Proof) (Handle, error) {
	if !Miss(h, key, p) {
		return Handle{}, ErrPrecondition
	}
	return Handle{root: verify(key, value, p, true)}, nil
}

// Delete produces the Handle that results from deleting key (with its
// known value) from h, requiring Has(h, key, value, p) (spec §6).
func Delete(h Handle, key, value []byte, p proof.Proof) (Handle, error) {
	if !Has(h, key, value, p) {
		return Handle{}, ErrPrecondition
	}
	return Handle{root: verify(key, nil, p, false)}, nil
}

// Update produces the Handle that results from replacing key's value from
// old to new, requiring Has(h, key, old, p) (spec §6). It is equivalent
// to Delete then Insert but reuses the same proof against both values.
func Update(h Handle, key, old, newValue []byte, p proof.Proof) (Handle, error) {
	if !Has(h, key, old, p) {
		return Handle{}, ErrPrecondition
	}
	return Handle{root: verify(key, newValue, p, true)}, nil
}

func verify(key, value []byte, p proof.Proof, including bool) hashutil.Hash {
	path := nibble.PathOf(key)
	return verifyFrom(path, value, p, 0, 0, including)
}

// verifyFrom recomputes the root hash by walking steps left to right
// (equivalently: recursing to the deepest remaining step first, then
// combining on the way back up), per spec §4.6.
func verifyFrom(path nibble.Path, value []byte, steps proof.Proof, idx, cursor int, including bool) hashutil.Hash {
	if idx == len(steps) {
		if including {
			return leafHash(path, cursor, hashutil.H(value))
		}
		return hashutil.NullHash
	}

	step := steps[idx]
	next := cursor + 1 + step.Skip
	if next > nibble.Len {
		return poisonHash
	}
	thisNibble := int(nibble.At(path, next-1))

	switch step.Kind {
	case proof.KindBranch:
		me := verifyFrom(path, value, steps, idx+1, next, including)
		merkle := sparse.Reconstruct(thisNibble, me, step.Neighbors)
		return hashutil.H(nibble.Slice(path, cursor, next-1), merkle[:])

	case proof.KindFork:
		if idx == len(steps)-1 && !including {
			prefix := nibble.Slice(path, cursor, cursor+step.Skip)
			buf := make([]byte, 0, len(prefix)+1+len(step.Fork.Prefix)+32)
			buf = append(buf, prefix...)
			buf = append(buf, byte(step.Fork.Nibble))
			buf = append(buf, step.Fork.Prefix...)
			buf = append(buf, step.Fork.Root[:]...)
			return hashutil.H(buf)
		}
		if step.Fork.Nibble == thisNibble {
			return poisonHash
		}
		me := verifyFrom(path, value, steps, idx+1, next, including)
		neighborHash := hashutil.H(step.Fork.Prefix, step.Fork.Root[:])
		sparseRoot := sparse.SparseMerkle16(thisNibble, me, step.Fork.Nibble, neighborHash)
		return hashutil.H(nibble.Slice(path, cursor, next-1), sparseRoot[:])

	case proof.KindLeaf:
		if idx == len(steps)-1 && !including {
			suffix := nibble.SuffixEncode(step.Leaf.Path, cursor)
			return hashutil.H(suffix, step.Leaf.ValueDigest[:])
		}
		neighborNibble := int(nibble.At(step.Leaf.Path, next-1))
		if neighborNibble == thisNibble {
			return poisonHash
		}
		for i := 0; i < cursor; i++ {
			if nibble.At(step.Leaf.Path, i) != nibble.At(path, i) {
				return poisonHash
			}
		}
		me := verifyFrom(path, value, steps, idx+1, next, including)
		neighborSuffix := nibble.SuffixEncode(step.Leaf.Path, next)
		neighborLeafHash := hashutil.H(neighborSuffix, step.Leaf.ValueDigest[:])
		sparseRoot := sparse.SparseMerkle16(thisNibble, me, neighborNibble, neighborLeafHash)
		return hashutil.H(nibble.Slice(path, cursor, next-1), sparseRoot[:])

	default:
		return poisonHash
	}
}

func leafHash(path nibble.Path, cursor int, valueDigest hashutil.Hash) hashutil.Hash {
	return hashutil.H(nibble.SuffixEncode(path, cursor), valueDigest[:])
}
