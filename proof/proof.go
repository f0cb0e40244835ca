// Package proof defines the wire-agnostic shape of a Merkle Patricia
// Forestry proof: an ordered list of Steps, one per Branch level crossed
// while descending from a trie's root toward a target key (spec §4.5).
//
// This package has no dependency on node/trie/store: it only deals in
// hashes and byte slices, so that package verify can depend on it alone
// (spec §6's "bit-exact, on-chain compatible" verifier surface).
package proof

import (
	"fmt"
	"io"

	"github.com/aiken-lang/merkle-patricia-forestry/hashutil"
	"github.com/aiken-lang/merkle-patricia-forestry/sparse"
)

// Kind tags which of the three Step variants a Step is.
type Kind int

const (
	KindBranch Kind = iota
	KindFork
	KindLeaf
)

func (k Kind) String() string {
	switch k {
	case KindBranch:
		return "branch"
	case KindFork:
		return "fork"
	case KindLeaf:
		return "leaf"
	default:
		return "unknown"
	}
}

// ForkNeighbor is the single other populated child recorded by a Fork
// step: its routing nibble, its own prefix, and the 16-way merkle root of
// its children with the prefix not yet folded in, so that
// H(Prefix ‖ Root) is the neighbor's node hash (spec §4.5).
type ForkNeighbor struct {
	Nibble int
	Prefix []byte
	Root   hashutil.Hash
}

// LeafNeighbor is the single other populated child recorded by a Leaf
// step, when that child is itself a Leaf: its full path and its value
// digest, so a verifier can re-hash it without the raw value (spec §4.5).
type LeafNeighbor struct {
	Path        hashutil.Hash
	ValueDigest hashutil.Hash
}

// Step is one level of a Proof. Exactly one of Neighbors, Fork, Leaf is
// meaningful, selected by Kind.
type Step struct {
	Kind Kind
	Skip int

	Neighbors sparse.Neighbors // Kind == KindBranch
	Fork      ForkNeighbor     // Kind == KindFork
	Leaf      LeafNeighbor     // Kind == KindLeaf
}

// NewBranchStep builds a Step for a Branch level with two or more
// populated non-target children.
func NewBranchStep(skip int, neighbors sparse.Neighbors) Step {
	return Step{Kind: KindBranch, Skip: skip, Neighbors: neighbors}
}

// NewForkStep builds a Step for a Branch level with exactly one other
// populated child, recorded by its nibble, prefix and inner merkle root.
func NewForkStep(skip, nibble int, prefix []byte, root hashutil.Hash) Step {
	return Step{Kind: KindFork, Skip: skip, Fork: ForkNeighbor{
		Nibble: nibble,
		Prefix: append([]byte(nil), prefix...),
		Root:   root,
	}}
}

// NewLeafStep builds a Step for a Branch level with exactly one other
// populated child, which happens to be a Leaf: recorded by its full path
// and value digest instead of an opaque hash.
func NewLeafStep(skip int, path, valueDigest hashutil.Hash) Step {
	return Step{Kind: KindLeaf, Skip: skip, Leaf: LeafNeighbor{Path: path, ValueDigest: valueDigest}}
}

// Proof is an ordered list of Steps, step i describing depth i of the
// descent from root toward the target (spec §4.5).
type Proof []Step

// Pretty writes a human-readable rendering of a proof, one line per step,
// in the style of the teacher's tree dumpers.
func Pretty(w io.Writer, p Proof) {
	for i, s := range p {
		switch s.Kind {
		case KindBranch:
			fmt.Fprintf(w, "#%d branch skip=%d neighbors=[%s,%s,%s,%s]\n", i, s.Skip,
				s.Neighbors[0].Hex(), s.Neighbors[1].Hex(), s.Neighbors[2].Hex(), s.Neighbors[3].Hex())
		case KindFork:
			fmt.Fprintf(w, "#%d fork skip=%d neighbor={nibble=%x prefix=%x root=%s}\n", i, s.Skip,
				s.Fork.Nibble, s.Fork.Prefix, s.Fork.Root.Hex())
		case KindLeaf:
			fmt.Fprintf(w, "#%d leaf skip=%d neighbor={path=%s value=%s}\n", i, s.Skip,
				s.Leaf.Path.Hex(), s.Leaf.ValueDigest.Hex())
		}
	}
}
