package storage

import (
	"context"
	"sync"

	"spendbook/internal/core"
)

// MemoryStore keeps the encoded snapshot in memory. It goes through the
// same Encode/Decode path as the durable backends, so a reload returns what
// a fresh process would see.
type MemoryStore struct {
	mu    sync.Mutex
	data  []byte
	saves int
	fail  error
}

var _ Persister = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// NewMemoryStoreFrom seeds the store with a raw record, e.g. corrupt data
// in tests.
func NewMemoryStoreFrom(raw []byte) *MemoryStore {
	return &MemoryStore{data: append([]byte(nil), raw...)}
}

func (m *MemoryStore) Load(_ context.Context) (core.Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.data) == 0 {
		return core.Snapshot{}, ErrNotFound
	}
	return Decode(m.data)
}

func (m *MemoryStore) Save(ctx context.Context, s core.Snapshot) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := Encode(s)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail != nil {
		return m.fail
	}
	m.data = data
	m.saves++
	return nil
}

// FailWith makes every following Save return err; nil restores normal
// behavior.
func (m *MemoryStore) FailWith(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fail = err
}

// Saves returns how many saves succeeded.
func (m *MemoryStore) Saves() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saves
}

// Raw returns a copy of the stored record.
func (m *MemoryStore) Raw() []byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]byte(nil), m.data...)
}

func (m *MemoryStore) Close() error {
	return nil
}
