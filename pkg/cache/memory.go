package cache

import (
	"context"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/lborres/shopfront/core"
)

// MemoryStorage keeps client state in process memory. Nothing survives a
// restart; it backs tests and throwaway sessions.
type MemoryStorage struct {
	values map[string][]byte
	mu     sync.RWMutex

	// counters
	hits    int64
	misses  int64
	sets    int64
	deletes int64
}

var _ core.StorageWithStats = (*MemoryStorage)(nil)

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{values: make(map[string][]byte)}
}

func (m *MemoryStorage) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.RLock()
	value, exists := m.values[key]
	m.mu.RUnlock()

	if !exists {
		atomic.AddInt64(&m.misses, 1)
		return nil, core.ErrStorageNotFound
	}

	atomic.AddInt64(&m.hits, 1)
	return slices.Clone(value), nil
}

func (m *MemoryStorage) Set(_ context.Context, key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.values[key] = slices.Clone(value)
	atomic.AddInt64(&m.sets, 1)
	return nil
}

// Delete removes key. Deleting an absent key is not an error.
func (m *MemoryStorage) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, existed := m.values[key]; existed {
		delete(m.values, key)
		atomic.AddInt64(&m.deletes, 1)
	}
	return nil
}

func (m *MemoryStorage) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values = make(map[string][]byte)
}

func (m *MemoryStorage) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.values)
}

func (m *MemoryStorage) Stats() core.StorageStats {
	return core.StorageStats{
		Hits:    atomic.LoadInt64(&m.hits),
		Misses:  atomic.LoadInt64(&m.misses),
		Sets:    atomic.LoadInt64(&m.sets),
		Deletes: atomic.LoadInt64(&m.deletes),
		Size:    m.Len(),
	}
}
