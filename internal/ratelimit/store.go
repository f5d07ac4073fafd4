package ratelimit

import (
	"context"
	"sync"
	"time"
)

// Store counts requests per key within a fixed window. Incr increments the
// counter for key, starting a new window of the given length on first hit,
// and returns the new count plus the time remaining in the window.
type Store interface {
	Incr(ctx context.Context, key string, window time.Duration) (count int64, remaining time.Duration, err error)
}

type memoryEntry struct {
	count   int64
	resetAt time.Time
}

// MemoryStore is a process-local Store. Counters reset when their window
// elapses; expired entries are dropped lazily on the next hit.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]*memoryEntry

	// now is swappable for tests
	now func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		entries: make(map[string]*memoryEntry),
		now:     time.Now,
	}
}

func (s *MemoryStore) Incr(_ context.Context, key string, window time.Duration) (int64, time.Duration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	entry, ok := s.entries[key]
	if !ok || now.After(entry.resetAt) {
		entry = &memoryEntry{resetAt: now.Add(window)}
		s.entries[key] = entry
	}

	entry.count++
	return entry.count, entry.resetAt.Sub(now), nil
}
