package ratelimit

import (
	"context"
	"sync"
	"time"
)

// MemoryStore is the process-local fallback counter. Counts reset when the
// process restarts and are not shared across instances.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]*memoryEntry
	now     func() time.Time
}

type memoryEntry struct {
	count     int64
	expiresAt time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		entries: make(map[string]*memoryEntry),
		now:     time.Now,
	}
}

func (s *MemoryStore) Incr(_ context.Context, key string, window time.Duration) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	entry, ok := s.entries[key]
	if !ok || now.After(entry.expiresAt) {
		entry = &memoryEntry{expiresAt: now.Add(window)}
		s.entries[key] = entry
	}
	entry.count++

	// opportunistic sweep keeps the map from growing unbounded
	if len(s.entries) > 10000 {
		for k, e := range s.entries {
			if now.After(e.expiresAt) {
				delete(s.entries, k)
			}
		}
	}
	return entry.count, nil
}
