// Package store defines the content-addressed key-value contract the core
// trie depends on (spec §1: "the core only assumes a Store providing
// get/put/del/batch by content-addressed key") and ships a minimal
// in-memory implementation for tests and for callers with no disk-backed
// engine of their own. A real disk-backed store is an external
// collaborator, out of scope here (spec §1).
//
// Keys are node hashes. The current root hash is not stored under a key:
// it is read with Store.Root and written with Batch.SetRoot.
package store

import (
	"context"
	"errors"
	"sync"

	"golang.org/x/sync/semaphore"

	"github.com/aiken-lang/merkle-patricia-forestry/hashutil"
)

// ErrNotFound is returned by Get when no value is stored under key.
var ErrNotFound = errors.New("store: not found")

// RootKey is the name of the reserved root-hash key. Store keys are
// hashutil.Hash values, so nothing in this package stores or looks up a
// value under RootKey; Memory keeps the root in its own field.
const RootKey = "__root__"

// Store is the persistence contract package trie depends on:
// get/put/delete of content-addressed node blobs, plus transactional
// batching.
type Store interface {
	Get(key hashutil.Hash) ([]byte, error)
	Put(key hashutil.Hash, value []byte) error
	Delete(key hashutil.Hash) error

	// Root returns the current root hash, or hashutil.NullHash if none has
	// ever been set.
	Root() (hashutil.Hash, error)

	// NewBatch begins a transactional batch. Only one batch may be
	// outstanding at a time per Store (spec §5); NewBatch blocks until any
	// prior batch has been committed or discarded.
	NewBatch(ctx context.Context) (Batch, error)
}

// Batch accumulates writes for one top-level mutation, to be made visible
// atomically. On Discard, none of the writes take effect.
type Batch interface {
	Put(key hashutil.Hash, value []byte)
	Delete(key hashutil.Hash)
	SetRoot(root hashutil.Hash)
	Commit() error
	Discard()
}

// Memory is an in-memory Store, safe for concurrent readers; writers are
// serialized through NewBatch's semaphore.
type Memory struct {
	mu   sync.RWMutex
	data map[hashutil.Hash][]byte
	root hashutil.Hash

	sem *semaphore.Weighted
}

// NewMemory creates an empty in-memory Store with root = hashutil.NullHash.
func NewMemory() *Memory {
	return &Memory{
		data: make(map[hashutil.Hash][]byte),
		root: hashutil.NullHash,
		sem:  semaphore.NewWeighted(1),
	}
}

func (m *Memory) Get(key hashutil.Hash) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.data[key]
	if !ok {
		return nil, ErrNotFound
	}
	out := make([]byte, len(v))
	copy(out, v)
	return out, nil
}

func (m *Memory) Put(key hashutil.Hash, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	buf := make([]byte, len(value))
	copy(buf, value)
	m.data[key] = buf
	return nil
}

func (m *Memory) Delete(key hashutil.Hash) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}

func (m *Memory) Root() (hashutil.Hash, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.root, nil
}

// NewBatch acquires the store's single-batch semaphore (spec §5: "only one
// outstanding batch at a time per Store is allowed (enforced by
// assertion)") and returns a Batch that releases it on Commit or Discard.
func (m *Memory) NewBatch(ctx context.Context) (Batch, error) {
	if err := m.sem.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	return &memBatch{store: m}, nil
}

type memBatch struct {
	store    *Memory
	puts     map[hashutil.Hash][]byte
	deletes  map[hashutil.Hash]struct{}
	newRoot  hashutil.Hash
	setRoot  bool
	finished bool
}

func (b *memBatch) Put(key hashutil.Hash, value []byte) {
	if b.puts == nil {
		b.puts = make(map[hashutil.Hash][]byte)
	}
	buf := make([]byte, len(value))
	copy(buf, value)
	b.puts[key] = buf
	if b.deletes != nil {
		delete(b.deletes, key)
	}
}

func (b *memBatch) Delete(key hashutil.Hash) {
	if b.deletes == nil {
		b.deletes = make(map[hashutil.Hash]struct{})
	}
	b.deletes[key] = struct{}{}
	if b.puts != nil {
		delete(b.puts, key)
	}
}

func (b *memBatch) SetRoot(root hashutil.Hash) {
	b.newRoot = root
	b.setRoot = true
}

// Commit applies all accumulated writes atomically with respect to
// readers (held under the store's write lock) and releases the batch
// semaphore. Per spec §5 ("updates to intermediate node hashes must be
// visible to the Store before the new root is exposed"), node writes are
// applied before the root pointer.
func (b *memBatch) Commit() error {
	if b.finished {
		return errors.New("store: batch already finished")
	}
	b.finished = true
	defer b.store.sem.Release(1)

	b.store.mu.Lock()
	defer b.store.mu.Unlock()
	for k, v := range b.puts {
		b.store.data[k] = v
	}
	for k := range b.deletes {
		delete(b.store.data, k)
	}
	if b.setRoot {
		b.store.root = b.newRoot
	}
	return nil
}

// Discard abandons all accumulated writes and releases the batch
// semaphore, per spec §5's "on failure, the batch is discarded and the
// in-memory trie is restored... by reloading from the Store".
func (b *memBatch) Discard() {
	if b.finished {
		return
	}
	b.finished = true
	b.store.sem.Release(1)
}

var _ Store = (*Memory)(nil)
