// Package hashutil provides the blake2b-256 primitives the rest of the
// forestry is built on: the digest function itself, a pairwise combinator,
// and the cached null-hash constants for empty subtrees of size 2, 4 and 8.
package hashutil

import (
	"golang.org/x/crypto/blake2b"

	"github.com/ethereum/go-ethereum/common"
)

// Hash is a 32-byte blake2b-256 digest. It is go-ethereum's common.Hash so
// that wire code gets Hex()/MarshalText/UnmarshalText for free.
type Hash = common.Hash

// NullHash is the canonical hash of the empty trie and of any empty child
// slot: 32 zero bytes.
var NullHash = Hash{}

// H hashes an arbitrary byte string with blake2b-256.
func H(data ...[]byte) Hash {
	h, err := blake2b.New256(nil)
	if err != nil {
		// blake2b.New256(nil) never errors: no MAC key is being used.
		panic(err)
	}
	for _, d := range data {
		if _, err := h.Write(d); err != nil {
			panic(err)
		}
	}
	var out Hash
	h.Sum(out[:0])
	return out
}

// Combine computes H(l ‖ r), the basic pairing step of every Merkle
// combination in this package.
func Combine(l, r Hash) Hash {
	return H(l[:], r[:])
}

// NullHash2, NullHash4 and NullHash8 cache combine() of all-empty subtrees
// at levels 1, 2 and 3 of a sparse-Merkle-16 tree (2, 4 and 8 empty leaves
// respectively). sparse.SparseMerkle16 uses them in place of recomputing
// all-empty halves; sparse.Merkle16 does not use them.
var (
	NullHash2 = Combine(NullHash, NullHash)
	NullHash4 = Combine(NullHash2, NullHash2)
	NullHash8 = Combine(NullHash4, NullHash4)
)
