package respcache

import (
	"context"
	"sort"
	"sync"
	"time"
)

// Store holds serialized response payloads. Implementations must be safe
// for concurrent use.
type Store interface {
	// Get returns the payload and the remaining TTL. ok is false on a miss.
	Get(ctx context.Context, key string) (payload []byte, remaining time.Duration, ok bool, err error)
	Set(ctx context.Context, key string, payload []byte, ttl time.Duration) error
	// DeletePattern removes every key matching a '*' glob and reports how
	// many were dropped.
	DeletePattern(ctx context.Context, pattern string) (int, error)
	Clear(ctx context.Context) error
}

// MemoryStore is the bounded in-process Store used when no shared cache
// is configured or reachable. Entries are not shared across instances.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]*memoryItem
	maxSize int
	now     func() time.Time
}

type memoryItem struct {
	payload []byte
	expires time.Time
}

// NewMemoryStore builds a bounded memory store. maxSize <= 0 applies a
// 1000-entry default.
func NewMemoryStore(maxSize int) *MemoryStore {
	if maxSize <= 0 {
		maxSize = 1000
	}
	return &MemoryStore{
		entries: make(map[string]*memoryItem),
		maxSize: maxSize,
		now:     time.Now,
	}
}

func (m *MemoryStore) Get(_ context.Context, key string) ([]byte, time.Duration, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	item, ok := m.entries[key]
	if !ok {
		return nil, 0, false, nil
	}
	now := m.now()
	if now.After(item.expires) {
		delete(m.entries, key)
		return nil, 0, false, nil
	}
	return item.payload, item.expires.Sub(now), true, nil
}

func (m *MemoryStore) Set(_ context.Context, key string, payload []byte, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.entries[key]; !ok && len(m.entries) >= m.maxSize {
		m.evictOldestLocked()
	}
	m.entries[key] = &memoryItem{payload: payload, expires: m.now().Add(ttl)}
	return nil
}

func (m *MemoryStore) DeletePattern(_ context.Context, pattern string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	dropped := 0
	for key := range m.entries {
		if matchGlob(pattern, key) {
			delete(m.entries, key)
			dropped++
		}
	}
	return dropped, nil
}

func (m *MemoryStore) Clear(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = make(map[string]*memoryItem)
	return nil
}

// Len reports the current entry count.
func (m *MemoryStore) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

func (m *MemoryStore) evictOldestLocked() {
	type kv struct {
		key     string
		expires time.Time
	}
	all := make([]kv, 0, len(m.entries))
	for k, v := range m.entries {
		all = append(all, kv{k, v.expires})
	}
	sort.Slice(all, func(i, j int) bool { return all[i].expires.Before(all[j].expires) })

	drop := len(all) / 10
	if drop == 0 {
		drop = 1
	}
	for _, victim := range all[:drop] {
		delete(m.entries, victim.key)
	}
}
