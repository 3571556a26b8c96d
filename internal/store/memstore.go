package store

import (
	"bytes"
	"context"
	"sort"
	"sync"
)

// MemStore is an in-memory Store used by tests and by the re-run
// convergence / idempotence test suite; it implements the same
// absent-vs-empty-bytes contract as BoltStore without touching disk.
type MemStore struct {
	mu   sync.Mutex
	data map[string][]byte
}

// NewMemStore returns an empty in-memory Store.
func NewMemStore() *MemStore {
	return &MemStore{data: make(map[string][]byte)}
}

func (m *MemStore) Get(_ context.Context, key []byte) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[string(key)]
	if !ok {
		return nil, false, nil
	}
	return append([]byte(nil), v...), true, nil
}

func (m *MemStore) Put(_ context.Context, key, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[string(key)] = append([]byte(nil), value...)
	return nil
}

func (m *MemStore) Delete(_ context.Context, key []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, string(key))
	return nil
}

type memOp struct {
	key   string
	value []byte
	del   bool
}

type memBatch struct {
	ops []memOp
}

func (b *memBatch) Put(key, value []byte) {
	b.ops = append(b.ops, memOp{key: string(key), value: append([]byte(nil), value...)})
}

func (b *memBatch) Delete(key []byte) {
	b.ops = append(b.ops, memOp{key: string(key), del: true})
}

// WriteBatch buffers fn's writes and applies them under the lock only if
// fn succeeds, so fn may itself call Get and a failed batch changes nothing.
func (m *MemStore) WriteBatch(_ context.Context, fn func(b WriteBatch) error) error {
	b := &memBatch{}
	if err := fn(b); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, op := range b.ops {
		if op.del {
			delete(m.data, op.key)
		} else {
			m.data[op.key] = op.value
		}
	}
	return nil
}

func (m *MemStore) Iterate(_ context.Context, from []byte, fn func(key, value []byte) (bool, error)) error {
	m.mu.Lock()
	keys := make([]string, 0, len(m.data))
	for k := range m.data {
		keys = append(keys, k)
	}
	m.mu.Unlock()

	sort.Strings(keys)
	for _, k := range keys {
		if len(from) > 0 && bytes.Compare([]byte(k), from) < 0 {
			continue
		}
		m.mu.Lock()
		v, ok := m.data[k]
		m.mu.Unlock()
		if !ok {
			continue
		}
		cont, err := fn([]byte(k), v)
		if err != nil {
			return err
		}
		if !cont {
			return nil
		}
	}
	return nil
}

func (m *MemStore) Close() error { return nil }
