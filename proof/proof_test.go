package proof_test

import (
	"bytes"
	"testing"

	"github.com/aiken-lang/merkle-patricia-forestry/proof"
	"github.com/aiken-lang/merkle-patricia-forestry/trie"
	"github.com/aiken-lang/merkle-patricia-forestry/verify"
)

func TestProveInclusionShapeNonEmpty(t *testing.T) {
	tr := trie.New()
	for _, k := range []string{"a", "b", "c", "d"} {
		if err := tr.Insert([]byte(k), []byte(k)); err != nil {
			t.Fatalf("Insert(%s): %v", k, err)
		}
	}
	p, err := tr.Prove([]byte("a"), false)
	if err != nil {
		t.Fatalf("Prove: %v", err)
	}
	if len(p) == 0 {
		t.Fatalf("expected at least one step for a multi-key trie")
	}
}

func TestProveMissingWithoutAllowMissingFails(t *testing.T) {
	tr := trie.New()
	_ = tr.Insert([]byte("present"), []byte("1"))
	if _, err := tr.Prove([]byte("absent"), false); err != trie.ErrNotPresent {
		t.Fatalf("Prove(absent, false) error = %v, want ErrNotPresent", err)
	}
}

func TestProveMissingWithAllowMissingSucceeds(t *testing.T) {
	tr := trie.New()
	_ = tr.Insert([]byte("present"), []byte("1"))
	p, err := tr.Prove([]byte("absent"), true)
	if err != nil {
		t.Fatalf("Prove(absent, true): %v", err)
	}
	h := verify.FromRoot(tr.Root())
	if !verify.Miss(h, []byte("absent"), p) {
		t.Fatalf("Miss(absent) = false, want true: the proof Prove(allowMissing) " +
			"returns must actually verify as an exclusion, not just be non-error")
	}
}

func TestPrettyDoesNotPanic(t *testing.T) {
	tr := trie.New()
	_ = tr.Insert([]byte("k"), []byte("v"))
	p, err := tr.Prove([]byte("k"), false)
	if err != nil {
		t.Fatalf("Prove: %v", err)
	}
	var buf bytes.Buffer
	proof.Pretty(&buf, p)
	if buf.Len() == 0 && len(p) > 0 {
		t.Fatalf("Pretty produced no output for a non-empty proof")
	}
}
