package breaker

import (
	"context"
	"sync"
	"time"
)

// counter is a single store entry
type counter struct {
	value     int64
	expiresAt time.Time
}

func (c *counter) isExpired(now time.Time) bool {
	return !now.Before(c.expiresAt)
}

// MemoryStore is an in-process TTLStore guarded by a mutex.
// Expired entries are dropped lazily on read and by the cleanup worker.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]*counter
	now     func() time.Time
}

// NewMemoryStore creates an empty store using the wall clock
func NewMemoryStore() *MemoryStore {
	return NewMemoryStoreWithClock(time.Now)
}

// NewMemoryStoreWithClock creates a store reading time from now
func NewMemoryStoreWithClock(now func() time.Time) *MemoryStore {
	return &MemoryStore{
		entries: make(map[string]*counter),
		now:     now,
	}
}

// Get implements TTLStore
func (s *MemoryStore) Get(_ context.Context, key string) (int64, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, exists := s.entries[key]
	if !exists {
		return 0, false, nil
	}
	if entry.isExpired(s.now()) {
		delete(s.entries, key)
		return 0, false, nil
	}
	return entry.value, true, nil
}

// Increment implements TTLStore
func (s *MemoryStore) Increment(_ context.Context, key string, ttl time.Duration) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	entry, exists := s.entries[key]
	if !exists || entry.isExpired(now) {
		entry = &counter{}
		s.entries[key] = entry
	}
	entry.value++
	entry.expiresAt = now.Add(ttl)

	return entry.value, nil
}

// Delete implements TTLStore
func (s *MemoryStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.entries, key)
	return nil
}

// Len returns the number of stored entries, expired ones included
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.entries)
}

// CleanupExpired removes all expired entries and returns how many were dropped
func (s *MemoryStore) CleanupExpired() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	removed := 0
	for key, entry := range s.entries {
		if entry.isExpired(now) {
			delete(s.entries, key)
			removed++
		}
	}
	return removed
}

// StartCleanupWorker periodically drops expired entries until stopCh closes.
// It blocks, so run it in its own goroutine.
func (s *MemoryStore) StartCleanupWorker(interval time.Duration, stopCh <-chan struct{}) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.CleanupExpired()
		case <-stopCh:
			return
		}
	}
}
