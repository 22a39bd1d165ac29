// cache/memory.go
package cache

import (
	"context"
	"sync"
	"time"
)

const (
	TierMemory = "memory"

	DefaultMemoryMaxEntries = 1000
	DefaultMemoryMaxTTL     = 5 * time.Minute
)

type memoryEntry struct {
	payload    []byte
	expiresAt  time.Time
	insertedAt time.Time
}

// MemoryTier is the in-process layer. Capacity-bounded; when full it
// evicts the entry that has been resident longest, regardless of
// expiry. TTLs are clamped to a ceiling so process memory never holds
// stale data for long.
type MemoryTier struct {
	mu      sync.Mutex
	entries map[string]memoryEntry

	maxEntries int
	maxTTL     time.Duration
}

func NewMemoryTier(maxEntries int, maxTTL time.Duration) *MemoryTier {
	if maxEntries <= 0 {
		maxEntries = DefaultMemoryMaxEntries
	}
	if maxTTL <= 0 {
		maxTTL = DefaultMemoryMaxTTL
	}
	return &MemoryTier{
		entries:    make(map[string]memoryEntry),
		maxEntries: maxEntries,
		maxTTL:     maxTTL,
	}
}

func (m *MemoryTier) Name() string    { return TierMemory }
func (m *MemoryTier) Available() bool { return true }

func (m *MemoryTier) Get(_ context.Context, key string) ([]byte, time.Duration, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, ok := m.entries[key]
	if !ok {
		return nil, 0, ErrMiss
	}
	remaining := time.Until(entry.expiresAt)
	if remaining <= 0 {
		delete(m.entries, key)
		return nil, 0, ErrMiss
	}
	return entry.payload, remaining, nil
}

func (m *MemoryTier) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl <= 0 || ttl > m.maxTTL {
		ttl = m.maxTTL
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.entries[key]; !exists && len(m.entries) >= m.maxEntries {
		m.evictOldestLocked()
	}
	m.entries[key] = memoryEntry{
		payload:    value,
		expiresAt:  time.Now().Add(ttl),
		insertedAt: time.Now(),
	}
	return nil
}

func (m *MemoryTier) evictOldestLocked() {
	var oldestKey string
	var oldestAt time.Time
	for key, entry := range m.entries {
		if oldestKey == "" || entry.insertedAt.Before(oldestAt) {
			oldestKey = key
			oldestAt = entry.insertedAt
		}
	}
	if oldestKey != "" {
		delete(m.entries, oldestKey)
	}
}

func (m *MemoryTier) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, key)
	return nil
}

func (m *MemoryTier) DeletePattern(_ context.Context, pattern string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	removed := 0
	for key := range m.entries {
		if MatchPattern(pattern, key) {
			delete(m.entries, key)
			removed++
		}
	}
	return removed, nil
}

// PurgeExpired drops entries past their expiry and returns how many
// went away. Called periodically by the cache janitor.
func (m *MemoryTier) PurgeExpired() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	removed := 0
	for key, entry := range m.entries {
		if now.After(entry.expiresAt) {
			delete(m.entries, key)
			removed++
		}
	}
	return removed
}

func (m *MemoryTier) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

func (m *MemoryTier) Max() int { return m.maxEntries }

func (m *MemoryTier) MaxTTL() time.Duration { return m.maxTTL }
