package store

import (
	"context"
	"testing"
	"time"

	"github.com/aiken-lang/merkle-patricia-forestry/hashutil"
)

func TestMemoryGetNotFound(t *testing.T) {
	m := NewMemory()
	if _, err := m.Get(hashutil.H([]byte("missing"))); err != ErrNotFound {
		t.Fatalf("Get(missing) error = %v, want ErrNotFound", err)
	}
}

func TestMemoryPutGet(t *testing.T) {
	m := NewMemory()
	key := hashutil.H([]byte("blob"))
	if err := m.Put(key, []byte("payload")); err != nil {
		t.Fatalf("Put: %v", err)
	}
	got, err := m.Get(key)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if string(got) != "payload" {
		t.Fatalf("Get() = %q, want %q", got, "payload")
	}
}

func TestMemoryRootDefaultsToNull(t *testing.T) {
	m := NewMemory()
	root, err := m.Root()
	if err != nil {
		t.Fatalf("Root: %v", err)
	}
	if root != hashutil.NullHash {
		t.Fatalf("Root() = %s, want NullHash", root.Hex())
	}
}

func TestBatchCommitAppliesWritesAndRoot(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	batch, err := m.NewBatch(ctx)
	if err != nil {
		t.Fatalf("NewBatch: %v", err)
	}
	key := hashutil.H([]byte("node"))
	batch.Put(key, []byte("data"))
	batch.SetRoot(key)
	if err := batch.Commit(); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	got, err := m.Get(key)
	if err != nil || string(got) != "data" {
		t.Fatalf("Get after commit = (%q, %v), want (%q, nil)", got, err, "data")
	}
	root, _ := m.Root()
	if root != key {
		t.Fatalf("Root() after commit = %s, want %s", root.Hex(), key.Hex())
	}
}

func TestBatchDiscardLeavesStoreUntouched(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	batch, err := m.NewBatch(ctx)
	if err != nil {
		t.Fatalf("NewBatch: %v", err)
	}
	key := hashutil.H([]byte("node"))
	batch.Put(key, []byte("data"))
	batch.Discard()

	if _, err := m.Get(key); err != ErrNotFound {
		t.Fatalf("Get after discard error = %v, want ErrNotFound", err)
	}
}

func TestBatchExclusivity(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	first, err := m.NewBatch(ctx)
	if err != nil {
		t.Fatalf("NewBatch: %v", err)
	}

	done := make(chan struct{})
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
		defer cancel()
		if _, err := m.NewBatch(ctx); err == nil {
			t.Errorf("second NewBatch should have blocked until the first finished")
		}
		close(done)
	}()
	<-done
	first.Discard()
}
