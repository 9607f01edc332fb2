package ratelimit

import (
	"context"
	"sort"
	"sync"
	"time"
)

// CounterStore increments a fixed-window counter. The window starts at the
// first hit of a key and the remaining TTL is returned with every call so
// callers can compute reset times.
type CounterStore interface {
	Incr(ctx context.Context, key string, window time.Duration) (count int64, remaining time.Duration, err error)
}

// MemoryCounter is the in-process fallback CounterStore. It is bounded:
// when full, the entry with the oldest window start is evicted. Counts are
// per-process only and not shared across instances.
type MemoryCounter struct {
	mu      sync.Mutex
	entries map[string]*memoryEntry
	maxSize int
	now     func() time.Time
}

type memoryEntry struct {
	count     int64
	windowEnd time.Time
}

// NewMemoryCounter builds a bounded in-memory counter store. maxSize <= 0
// applies a 10k default.
func NewMemoryCounter(maxSize int) *MemoryCounter {
	if maxSize <= 0 {
		maxSize = 10000
	}
	return &MemoryCounter{
		entries: make(map[string]*memoryEntry),
		maxSize: maxSize,
		now:     time.Now,
	}
}

// Incr bumps the counter for key, starting a new window when the previous
// one has elapsed.
func (m *MemoryCounter) Incr(_ context.Context, key string, window time.Duration) (int64, time.Duration, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()

	entry, ok := m.entries[key]
	if !ok || now.After(entry.windowEnd) {
		if !ok && len(m.entries) >= m.maxSize {
			m.evictOldestLocked()
		}
		entry = &memoryEntry{windowEnd: now.Add(window)}
		m.entries[key] = entry
	}

	entry.count++
	return entry.count, entry.windowEnd.Sub(now), nil
}

func (m *MemoryCounter) evictOldestLocked() {
	type kv struct {
		key string
		end time.Time
	}
	all := make([]kv, 0, len(m.entries))
	for k, v := range m.entries {
		all = append(all, kv{k, v.windowEnd})
	}
	sort.Slice(all, func(i, j int) bool { return all[i].end.Before(all[j].end) })

	// Drop the oldest tenth so eviction is not per-insert.
	drop := len(all) / 10
	if drop == 0 {
		drop = 1
	}
	for _, victim := range all[:drop] {
		delete(m.entries, victim.key)
	}
}

// Len reports the current number of tracked windows.
func (m *MemoryCounter) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}
