package session

import (
	"context"
	"slices"
	"sync"
	"time"
)

// MemoryStore is a Store that keeps records in process memory. It backs the
// registry when no data directory is configured.
type MemoryStore struct {
	mu   sync.Mutex
	tabs map[int]Meta
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{tabs: make(map[int]Meta)}
}

func (m *MemoryStore) LoadTab(_ context.Context, tabID int) (Meta, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	meta, ok := m.tabs[tabID]
	return meta, ok, nil
}

func (m *MemoryStore) SaveTab(_ context.Context, meta Meta) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tabs[meta.TabID] = meta
	return nil
}

func (m *MemoryStore) DeleteTab(_ context.Context, tabID int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.tabs, tabID)
	return nil
}

func (m *MemoryStore) DeleteTabsUpdatedBefore(_ context.Context, before time.Time, keep ...int) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for id, meta := range m.tabs {
		if meta.UpdatedAt.Before(before) && !slices.Contains(keep, id) {
			delete(m.tabs, id)
			n++
		}
	}
	return n, nil
}
