package trie

import (
	"bytes"
	"errors"

	"github.com/aiken-lang/merkle-patricia-forestry/hashutil"
	"github.com/aiken-lang/merkle-patricia-forestry/nibble"
	"github.com/aiken-lang/merkle-patricia-forestry/node"
	"github.com/aiken-lang/merkle-patricia-forestry/proof"
	"github.com/aiken-lang/merkle-patricia-forestry/sparse"
)

var (
	errUnknownKind      = errors.New("trie: unknown node kind")
	errDegenerateBranch = errors.New("trie: branch with fewer than 2 populated children")
)

// Prove walks from the root to where key's path leads, and assembles the
// Steps seen along the way bottom-up into a Proof (spec §4.5). When key is
// absent, Prove fails with ErrNotPresent unless allowMissing is set, in
// which case it returns a proof suitable for an exclusion check (spec
// §4.6) — one that lets verify.Miss reconstruct the real root even when
// the absent key's path merely brushes past existing structure along the
// way, rather than silently assuming the target slot was empty.
func (t *Trie) Prove(key []byte, allowMissing bool) (proof.Proof, error) {
	path := nibble.PathOf(key)
	root, err := t.resolve(t.root)
	if err != nil {
		return nil, err
	}
	steps, present, err := t.proveNode(root, path, 0, key)
	if err != nil {
		return nil, err
	}
	if !present && !allowMissing {
		return nil, ErrNotPresent
	}
	return proof.Proof(steps), nil
}

// proveNode assembles the Steps for descending from the already-resolved
// node n toward key's path, starting cursor nibbles deep. It reports
// whether key is actually present, alongside whatever Steps it gathered:
// a Leaf found along the way whose key doesn't match key's own is not the
// target, and proveNode records it (rather than discarding it) so the
// resulting proof still lets a verifier reconstruct the genuine root.
func (t *Trie) proveNode(n *node.Node, path nibble.Path, cursor int, key []byte) ([]proof.Step, bool, error) {
	switch n.Kind() {
	case node.KindEmpty:
		return nil, false, nil

	case node.KindLeaf:
		if bytes.Equal(n.Key(), key) {
			return nil, true, nil
		}
		return []proof.Step{foreignLeafStep(n, path, cursor)}, false, nil

	case node.KindBranch:
		return t.proveBranch(n, path, cursor, key)

	default:
		return nil, false, errUnknownKind
	}
}

// proveBranch handles one Branch level, mirroring the prefix check
// trie.Get performs before ever computing a routing nibble (trie.go's
// Get, the KindBranch case): a query whose path diverges from n's own
// prefix never reaches n's children at all, and must terminate right
// here with a step describing n as a whole opaque subtree — not with a
// step built from a routing nibble the query never actually reaches.
func (t *Trie) proveBranch(n *node.Node, path nibble.Path, cursor int, key []byte) ([]proof.Step, bool, error) {
	prefix := n.Prefix()
	common := 0
	for common < len(prefix) && nibble.At(path, cursor+common) == prefix[common] {
		common++
	}
	if common < len(prefix) {
		return []proof.Step{divergenceStep(n, common)}, false, nil
	}

	next := cursor + len(prefix)
	tn := int(nibble.At(path, next))

	step, err := t.buildStep(n, tn, len(prefix))
	if err != nil {
		return nil, false, err
	}

	child, err := t.resolve(n.Child(tn))
	if err != nil {
		return nil, false, err
	}

	childSteps, present, err := t.proveNode(child, path, next+1, key)
	if err != nil {
		return nil, false, err
	}
	return append([]proof.Step{step}, childSteps...), present, nil
}

// buildStep classifies a Branch level by how many populated children it
// has other than the target nibble tn, and records the corresponding Step
// shape (spec §4.5). It only ever describes tn's siblings: whatever
// actually occupies tn itself is accounted for separately, by whatever
// Step(s) proveNode appends for tn's own subtree.
func (t *Trie) buildStep(n *node.Node, tn int, skip int) (proof.Step, error) {
	others := make([]int, 0, n.PopulatedCount())
	for _, i := range n.PopulatedIndices() {
		if i != tn {
			others = append(others, i)
		}
	}

	if len(others) >= 2 {
		var childHashes [16]hashutil.Hash
		children := n.ChildrenArray()
		for i := range children {
			childHashes[i] = children[i].Hash()
		}
		neighbors := sparse.ProveSlot(childHashes, tn)
		return proof.NewBranchStep(skip, neighbors), nil
	}

	if len(others) == 1 {
		j := others[0]
		neighbor, err := t.resolve(n.Child(j))
		if err != nil {
			return proof.Step{}, err
		}
		if neighbor.IsLeaf() {
			return proof.NewLeafStep(skip, neighbor.Path(), hashutil.H(neighbor.Value())), nil
		}
		return proof.NewForkStep(skip, j, neighbor.Prefix(), innerMerkle(neighbor)), nil
	}

	return proof.Step{}, errDegenerateBranch
}

// foreignLeafStep builds the terminal Step for when the query's target
// slot turns out to be occupied by an existing Leaf whose key doesn't
// match: the common case for an absent key, since routing only diverges
// from an existing key wherever their paths first differ, which is often
// well below the last Branch. skip carries however many further nibbles
// leaf and the query still share past cursor, so neighbor.nibble (derived
// from it at verify time) is guaranteed to differ from the query's own
// nibble there.
func foreignLeafStep(leaf *node.Node, path nibble.Path, cursor int) proof.Step {
	common := nibble.CommonPrefixLen(leaf.Path(), path, cursor)
	return proof.NewLeafStep(common, leaf.Path(), hashutil.H(leaf.Value()))
}

// divergenceStep builds the terminal Step for when the query's path
// diverges inside a Branch's own multi-nibble prefix, before ever
// reaching a routing nibble: the whole node n stands as an opaque
// obstacle. It is encoded as a Fork neighbor whose (nibble, prefix, root)
// reconstruct n's real hash in one combine at verify time — root is n's
// inner 16-way merkle, not n.Hash() itself, since the prefix bytes get
// folded back in by the verifier (mirrors the ordinary Fork case in
// buildStep, generalized to when there is no "me" side at all).
func divergenceStep(n *node.Node, common int) proof.Step {
	prefix := n.Prefix()
	nib := int(prefix[common])
	remainder := prefix[common+1:]
	return proof.NewForkStep(common, nib, remainder, innerMerkle(n))
}

// innerMerkle is a Branch's own 16-way children merkle, before its prefix
// gets folded in by node.Node.Hash — the value a Fork step's Root field
// must carry, so that H(neighbor.prefix ⊕ neighbor.root) at verify time
// reconstructs the neighbor's full hash exactly (spec §4.5, §4.6).
func innerMerkle(n *node.Node) hashutil.Hash {
	var childHashes [16]hashutil.Hash
	children := n.ChildrenArray()
	for i := range children {
		childHashes[i] = children[i].Hash()
	}
	return sparse.Merkle16(childHashes)
}
