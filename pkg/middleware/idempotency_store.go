package middleware

import (
	"context"
	"sync"
	"time"
)

// MemoryIdempotencyStore is the single-instance IdempotencyStore used when
// no Redis is configured.
type MemoryIdempotencyStore struct {
	mu      sync.Mutex
	now     func() time.Time
	entries map[string]memoryIdempotencyEntry
}

type memoryIdempotencyEntry struct {
	value     string
	expiresAt time.Time
}

func NewMemoryIdempotencyStore() *MemoryIdempotencyStore {
	return &MemoryIdempotencyStore{now: time.Now, entries: make(map[string]memoryIdempotencyEntry)}
}

func (s *MemoryIdempotencyStore) Get(_ context.Context, key string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[key]
	if !ok {
		return "", nil
	}
	if !s.now().Before(e.expiresAt) {
		delete(s.entries, key)
		return "", nil
	}
	return e.value, nil
}

func (s *MemoryIdempotencyStore) Set(_ context.Context, key, value string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	for k, e := range s.entries {
		if !now.Before(e.expiresAt) {
			delete(s.entries, k)
		}
	}
	s.entries[key] = memoryIdempotencyEntry{value: value, expiresAt: now.Add(ttl)}
	return nil
}
