package registry

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/diagnosis/tablelink/services/bridge/internal/domain"
)

var ErrNotFound = errors.New("link entry not found")

// Store is the storage boundary behind the registry. Implementations do
// not judge expiry; the registry does that on read.
type Store interface {
	// PutNew stores entry under entry.Code unless the code is taken, in
	// which case it reports false. retention is a hint for backends that
	// can reclaim space on their own.
	PutNew(ctx context.Context, entry domain.LinkEntry, retention time.Duration) (bool, error)
	Get(ctx context.Context, code string) (domain.LinkEntry, error)
	// Delete reports whether an entry was removed.
	Delete(ctx context.Context, code string) (bool, error)
}

// MemoryStore keeps entries in process memory. Entries are reclaimed only
// when read after expiry or on restart.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]domain.LinkEntry
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string]domain.LinkEntry)}
}

func (s *MemoryStore) PutNew(_ context.Context, entry domain.LinkEntry, _ time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, taken := s.entries[entry.Code]; taken {
		return false, nil
	}
	s.entries[entry.Code] = entry
	return true, nil
}

func (s *MemoryStore) Get(_ context.Context, code string) (domain.LinkEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entry, ok := s.entries[code]
	if !ok {
		return domain.LinkEntry{}, ErrNotFound
	}
	return entry, nil
}

func (s *MemoryStore) Delete(_ context.Context, code string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.entries[code]; !ok {
		return false, nil
	}
	delete(s.entries, code)
	return true, nil
}

// Len is the number of entries held, expired ones included.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}
