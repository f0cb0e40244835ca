package verify_test

import (
	"encoding/json"
	"fmt"
	"testing"

	"github.com/aiken-lang/merkle-patricia-forestry/proof"
	"github.com/aiken-lang/merkle-patricia-forestry/trie"
	"github.com/aiken-lang/merkle-patricia-forestry/verify"
)

func TestHandleJSONRoundTrip(t *testing.T) {
	tr := buildTrie(t, map[string]string{"alpha": "1"})
	h := verify.FromRoot(tr.Root())

	data, err := json.Marshal(h)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	var decoded verify.Handle
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if decoded.Root() != h.Root() {
		t.Fatalf("decoded root %s != original %s", decoded.Root().Hex(), h.Root().Hex())
	}
}

func buildTrie(t *testing.T, pairs map[string]string) *trie.Trie {
	t.Helper()
	tr := trie.New()
	for k, v := range pairs {
		if err := tr.Insert([]byte(k), []byte(v)); err != nil {
			t.Fatalf("Insert(%s): %v", k, err)
		}
	}
	return tr
}

func TestHasForEveryInsertedKey(t *testing.T) {
	pairs := map[string]string{"alpha": "1", "beta": "2", "gamma": "3", "delta": "4"}
	tr := buildTrie(t, pairs)
	h := verify.FromRoot(tr.Root())

	for k, v := range pairs {
		p, err := tr.Prove([]byte(k), false)
		if err != nil {
			t.Fatalf("Prove(%s): %v", k, err)
		}
		if !verify.Has(h, []byte(k), []byte(v), p) {
			t.Fatalf("Has(%s, %s) = false, want true", k, v)
		}
	}
}

func TestHasFailsForWrongValue(t *testing.T) {
	tr := buildTrie(t, map[string]string{"alpha": "1"})
	h := verify.FromRoot(tr.Root())
	p, err := tr.Prove([]byte("alpha"), false)
	if err != nil {
		t.Fatalf("Prove: %v", err)
	}
	if verify.Has(h, []byte("alpha"), []byte("not-1"), p) {
		t.Fatalf("Has with wrong value should be false")
	}
}

func TestMissForAbsentKey(t *testing.T) {
	tr := buildTrie(t, map[string]string{"alpha": "1", "beta": "2", "gamma": "3"})
	h := verify.FromRoot(tr.Root())

	p, err := tr.Prove([]byte("not-there"), true)
	if err != nil {
		t.Fatalf("Prove(absent): %v", err)
	}
	if !verify.Miss(h, []byte("not-there"), p) {
		t.Fatalf("Miss(not-there) = false, want true")
	}
}

func TestMissFailsForPresentKey(t *testing.T) {
	tr := buildTrie(t, map[string]string{"alpha": "1", "beta": "2"})
	h := verify.FromRoot(tr.Root())
	p, err := tr.Prove([]byte("alpha"), false)
	if err != nil {
		t.Fatalf("Prove: %v", err)
	}
	if verify.Miss(h, []byte("alpha"), p) {
		t.Fatalf("Miss(alpha) should be false: alpha is present")
	}
}

func TestEmptyTrieMissWithZeroSteps(t *testing.T) {
	h := verify.Empty
	if !h.IsEmpty() {
		t.Fatalf("verify.Empty should report IsEmpty")
	}
	if !verify.Miss(h, []byte("anything"), nil) {
		t.Fatalf("Miss on the empty trie with a nil proof should be true")
	}
}

// TestInsertFromExclusionMatchesDirectInsert mirrors spec §8's S6
// (non-membership then insert) vector: exclusion-prove an absent key
// against a built trie, verify the exclusion, then confirm that applying
// verify.Insert to that same proof lands on exactly the root a direct
// trie.Insert produces.
func TestInsertFromExclusionMatchesDirectInsert(t *testing.T) {
	tr := buildTrie(t, map[string]string{"alpha": "1", "beta": "2", "gamma": "3"})
	before := verify.FromRoot(tr.Root())

	key, value := []byte("delta"), []byte("4")
	p, err := tr.Prove(key, true)
	if err != nil {
		t.Fatalf("Prove(allowMissing): %v", err)
	}
	if !verify.Miss(before, key, p) {
		t.Fatalf("Miss(delta) before insertion should be true")
	}

	after, err := verify.Insert(before, key, value, p)
	if err != nil {
		t.Fatalf("verify.Insert: %v", err)
	}

	if err := tr.Insert(key, value); err != nil {
		t.Fatalf("trie.Insert: %v", err)
	}
	if after.Root() != tr.Root() {
		t.Fatalf("verify.Insert root %s != trie.Insert root %s", after.Root().Hex(), tr.Root().Hex())
	}
}

func TestDeleteMatchesDirectDelete(t *testing.T) {
	tr := buildTrie(t, map[string]string{"alpha": "1", "beta": "2", "gamma": "3"})
	before := verify.FromRoot(tr.Root())

	p, err := tr.Prove([]byte("beta"), false)
	if err != nil {
		t.Fatalf("Prove: %v", err)
	}
	after, err := verify.Delete(before, []byte("beta"), []byte("2"), p)
	if err != nil {
		t.Fatalf("verify.Delete: %v", err)
	}

	if err := tr.Delete([]byte("beta")); err != nil {
		t.Fatalf("trie.Delete: %v", err)
	}
	if after.Root() != tr.Root() {
		t.Fatalf("verify.Delete root %s != trie.Delete root %s", after.Root().Hex(), tr.Root().Hex())
	}
}

func TestInsertFailsPreconditionWhenKeyAlreadyPresent(t *testing.T) {
	tr := buildTrie(t, map[string]string{"alpha": "1"})
	h := verify.FromRoot(tr.Root())
	p, err := tr.Prove([]byte("alpha"), false)
	if err != nil {
		t.Fatalf("Prove: %v", err)
	}
	if _, err := verify.Insert(h, []byte("alpha"), []byte("99"), p); err != verify.ErrPrecondition {
		t.Fatalf("verify.Insert(present key) error = %v, want ErrPrecondition", err)
	}
}

func TestUpdateMatchesDeleteThenInsert(t *testing.T) {
	tr := buildTrie(t, map[string]string{"alpha": "1", "beta": "2"})
	h := verify.FromRoot(tr.Root())
	p, err := tr.Prove([]byte("alpha"), false)
	if err != nil {
		t.Fatalf("Prove: %v", err)
	}

	updated, err := verify.Update(h, []byte("alpha"), []byte("1"), []byte("100"), p)
	if err != nil {
		t.Fatalf("verify.Update: %v", err)
	}

	if err := tr.Delete([]byte("alpha")); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if err := tr.Insert([]byte("alpha"), []byte("100")); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if updated.Root() != tr.Root() {
		t.Fatalf("verify.Update root %s != delete-then-insert root %s", updated.Root().Hex(), tr.Root().Hex())
	}
}

// TestMissForEveryAbsentKeyInADenseTrie is the broad exclusion-soundness
// check spec §8 calls for ("for any trie T and k∉T"), in the spirit of
// its S4 fruit-list vector: a few dozen keys inserted, then Miss checked
// for a few dozen more that were never inserted. A single absent key
// against a shallow trie (see TestMissForAbsentKey) isn't enough to
// reliably land on a routing slot that's occupied by some other leaf's
// subtree rather than genuinely empty — this does, repeatedly.
func TestMissForEveryAbsentKeyInADenseTrie(t *testing.T) {
	pairs := map[string]string{}
	for i := 0; i < 32; i++ {
		k := fmt.Sprintf("present-%02d", i)
		pairs[k] = fmt.Sprintf("value-%02d", i)
	}
	tr := buildTrie(t, pairs)
	h := verify.FromRoot(tr.Root())

	for i := 0; i < 32; i++ {
		k := []byte(fmt.Sprintf("absent-%02d", i))
		p, err := tr.Prove(k, true)
		if err != nil {
			t.Fatalf("Prove(%s): %v", k, err)
		}
		if !verify.Miss(h, k, p) {
			t.Fatalf("Miss(%s) = false, want true", k)
		}
	}
}

// TestTamperedStepSkipFailsVerification is a regression test in the
// spirit of spec §8's S5 (terminal-fork skip regression): a proof step's
// Skip field selects which prefix nibbles of the query path get folded
// into that level's hash, so silently changing it must make verification
// fail rather than accidentally reconstruct the same root.
func TestTamperedStepSkipFailsVerification(t *testing.T) {
	pairs := map[string]string{
		"aaaa": "1", "aaab": "2", "aaac": "3", "aaad": "4",
		"bbbb": "5", "cccc": "6", "dddd": "7",
	}
	tr := buildTrie(t, pairs)
	h := verify.FromRoot(tr.Root())

	tampered := 0
	for k, v := range pairs {
		p, err := tr.Prove([]byte(k), false)
		if err != nil {
			t.Fatalf("Prove(%s): %v", k, err)
		}
		for i := range p {
			mutated := append(proof.Proof(nil), p...)
			mutated[i].Skip++
			if verify.Has(h, []byte(k), []byte(v), mutated) {
				t.Fatalf("Has(%s) verified despite a tampered Skip at step %d", k, i)
			}
			tampered++
		}
	}
	if tampered == 0 {
		t.Fatalf("no steps were exercised; the trie fixture produced empty proofs")
	}
}
