// Package sparse implements the fixed 16-leaf binary Merkle tree that sits
// inside every Branch node: Merkle16 hashes all 16 children, ProveSlot
// extracts the 4-neighbor audit path to one chosen child, Reconstruct
// rebuilds the 16-leaf root from a child and its 4 neighbors, and
// SparseMerkle16 computes the same root cheaply when only two of the 16
// slots are populated (the Fork case).
//
// Levels are numbered leaf-to-root: level 1 is the pairing immediately
// around a leaf, level 4 is the pairing immediately below the root. A
// neighbor set is always ordered top-to-bottom: the level-4 neighbor (the
// sibling half of 8 leaves) first, the level-1 neighbor (the sibling leaf)
// last. This is also the order the neighbors take on the wire.
package sparse

import "github.com/aiken-lang/merkle-patricia-forestry/hashutil"

// Hash is a 32-byte blake2b-256 digest.
type Hash = hashutil.Hash

// Neighbors is the 4-hash audit path proving one child's membership among
// 16, ordered top-to-bottom: [lvl4, lvl3, lvl2, lvl1].
type Neighbors [4]Hash

// Merkle16 computes the Merkle root of 16 children via pairwise combine,
// four levels deep. An absent child (the zero Hash) is treated as
// contributing hashutil.NullHash, exactly as any other leaf value would be
// — callers that mean "empty slot" pass hashutil.NullHash explicitly.
func Merkle16(children [16]Hash) Hash {
	level1 := make([]Hash, 8)
	for i := 0; i < 8; i++ {
		level1[i] = hashutil.Combine(children[2*i], children[2*i+1])
	}
	level2 := make([]Hash, 4)
	for i := 0; i < 4; i++ {
		level2[i] = hashutil.Combine(level1[2*i], level1[2*i+1])
	}
	level3 := make([]Hash, 2)
	for i := 0; i < 2; i++ {
		level3[i] = hashutil.Combine(level2[2*i], level2[2*i+1])
	}
	return hashutil.Combine(level3[0], level3[1])
}

// branchSide is the explicit 16-entry case table mapping a nibble index to
// which side of the pairing (false = left, true = right) it falls on at
// each of the 4 levels, leaf-to-root. This is the one place the bit
// pattern / Merkle level mapping is encoded, per spec §4.3.
var branchSide = [16][4]bool{
	0x0: {false, false, false, false},
	0x1: {true, false, false, false},
	0x2: {false, true, false, false},
	0x3: {true, true, false, false},
	0x4: {false, false, true, false},
	0x5: {true, false, true, false},
	0x6: {false, true, true, false},
	0x7: {true, true, true, false},
	0x8: {false, false, false, true},
	0x9: {true, false, false, true},
	0xA: {false, true, false, true},
	0xB: {true, true, false, true},
	0xC: {false, false, true, true},
	0xD: {true, false, true, true},
	0xE: {false, true, true, true},
	0xF: {true, true, true, true},
}

// ProveSlot returns the 4-neighbor audit path for the child at index me
// within the 16-leaf Merkle of children.
func ProveSlot(children [16]Hash, me int) Neighbors {
	level0 := children[:]
	level1 := make([]Hash, 8)
	for i := 0; i < 8; i++ {
		level1[i] = hashutil.Combine(level0[2*i], level0[2*i+1])
	}
	level2 := make([]Hash, 4)
	for i := 0; i < 4; i++ {
		level2[i] = hashutil.Combine(level1[2*i], level1[2*i+1])
	}
	level3 := make([]Hash, 2)
	for i := 0; i < 2; i++ {
		level3[i] = hashutil.Combine(level2[2*i], level2[2*i+1])
	}

	return Neighbors{
		level3[(me>>3)^1],
		level2[(me>>2)^1],
		level1[(me>>1)^1],
		level0[me^1],
	}
}

// Reconstruct rebuilds the 16-leaf Merkle root given the child at index me
// (with hash meHash) and its 4-neighbor audit path, using the explicit
// branchSide table to decide combine order at each of the 4 levels.
func Reconstruct(me int, meHash Hash, neighbors Neighbors) Hash {
	side := branchSide[me&0xF]
	cur := meHash
	for lvl := 0; lvl < 4; lvl++ {
		neighbor := neighbors[3-lvl]
		if side[lvl] {
			cur = hashutil.Combine(neighbor, cur)
		} else {
			cur = hashutil.Combine(cur, neighbor)
		}
	}
	return cur
}

// nullSubtree returns the cached all-null Merkle root of a subtree holding
// `size` empty leaves (size ∈ {1, 2, 4, 8}).
func nullSubtree(size int) Hash {
	switch size {
	case 1:
		return hashutil.NullHash
	case 2:
		return hashutil.NullHash2
	case 4:
		return hashutil.NullHash4
	case 8:
		return hashutil.NullHash8
	default:
		panic("sparse: invalid subtree size")
	}
}

// SparseMerkle16 computes the same digest as Merkle16 would for a
// 16-children array with exactly two populated slots (me and neighbor, the
// Fork case), without materializing the other 14 null leaves: it walks the
// 4-level tree top-down, substituting a cached null-subtree constant for
// any half that contains neither populated slot.
//
// SparseMerkle16(me, meHash, neighbor, neighborHash) must always equal
// Merkle16 applied to an all-null array with only index me and neighbor
// set to meHash and neighborHash respectively — this equivalence is a
// tested property (spec §8.6).
func SparseMerkle16(me int, meHash Hash, neighbor int, neighborHash Hash) Hash {
	var walk func(lo, size int) Hash
	walk = func(lo, size int) Hash {
		hasMe := me >= lo && me < lo+size
		hasNeighbor := neighbor >= lo && neighbor < lo+size
		if size == 1 {
			switch {
			case hasMe:
				return meHash
			case hasNeighbor:
				return neighborHash
			default:
				return hashutil.NullHash
			}
		}
		if !hasMe && !hasNeighbor {
			return nullSubtree(size)
		}
		half := size / 2
		left := walk(lo, half)
		right := walk(lo+half, half)
		return hashutil.Combine(left, right)
	}
	return walk(0, 16)
}
