package cache

import (
	"context"
	"sync"
	"time"
)

// MemoryStore keeps entries in a mutex-guarded map. There is no background
// janitor: expired entries are dropped when read or on Sweep.
type MemoryStore struct {
	ttl     time.Duration
	mu      sync.RWMutex
	entries map[string]Entry
	now     func() time.Time
}

func NewMemoryStore(ttl time.Duration) *MemoryStore {
	return &MemoryStore{
		ttl:     ttl,
		entries: map[string]Entry{},
		now:     time.Now,
	}
}

func (s *MemoryStore) Put(_ context.Context, entry Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry.StoredAt = s.now()
	s.entries[entry.Key] = entry
	return nil
}

func (s *MemoryStore) Get(_ context.Context, key string) (Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.entries[key]
	if !ok {
		return Entry{}, ErrNotFound
	}
	if s.expired(entry) {
		delete(s.entries, key)
		return Entry{}, ErrExpired
	}
	return entry, nil
}

func (s *MemoryStore) Sweep(_ context.Context) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	purged := 0
	for key, entry := range s.entries {
		if s.expired(entry) {
			delete(s.entries, key)
			purged++
		}
	}
	return purged
}

// Len reports live plus not-yet-swept entries; used for introspection only.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

func (s *MemoryStore) expired(entry Entry) bool {
	return !s.now().Before(entry.StoredAt.Add(s.ttl))
}
