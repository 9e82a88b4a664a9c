package cache

import (
	"context"
	"sync"
	"time"
)

// DefaultMaxEntries bounds the in-memory cache.
const DefaultMaxEntries = 4096

type memoryEntry struct {
	value   []byte
	expires time.Time
	added   uint64
}

// Memory is an in-process Cache. When full, the oldest entry is evicted.
type Memory struct {
	mu         sync.Mutex
	entries    map[string]memoryEntry
	maxEntries int
	seq        uint64
	now        func() time.Time
}

// NewMemory creates an in-memory cache holding at most maxEntries values
// (default: DefaultMaxEntries).
func NewMemory(maxEntries int) *Memory {
	if maxEntries <= 0 {
		maxEntries = DefaultMaxEntries
	}
	return &Memory{
		entries:    make(map[string]memoryEntry),
		maxEntries: maxEntries,
		now:        time.Now,
	}
}

func (m *Memory) Get(_ context.Context, key string) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.entries[key]
	if !ok {
		return nil, false, nil
	}
	if !e.expires.IsZero() && !m.now().Before(e.expires) {
		delete(m.entries, key)
		return nil, false, nil
	}
	return e.value, true, nil
}

// Set stores value under key. A non-positive ttl never expires.
func (m *Memory) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.entries[key]; !exists && len(m.entries) >= m.maxEntries {
		m.evictOldestLocked()
	}

	var expires time.Time
	if ttl > 0 {
		expires = m.now().Add(ttl)
	}
	m.seq++
	m.entries[key] = memoryEntry{
		value:   append([]byte(nil), value...),
		expires: expires,
		added:   m.seq,
	}
	return nil
}

func (m *Memory) evictOldestLocked() {
	var (
		oldestKey string
		oldest    uint64
		found     bool
	)
	for k, e := range m.entries {
		if !found || e.added < oldest {
			oldestKey, oldest, found = k, e.added, true
		}
	}
	if found {
		delete(m.entries, oldestKey)
	}
}

// Len returns the number of stored entries, expired ones included.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}
