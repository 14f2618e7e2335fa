package session

import (
	"context"
	"sync"
	"time"
)

// MemoryStore keeps records in process memory. It is the development and
// test backend, and the reference implementation for the Store contract.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string]Record
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		records: make(map[string]Record),
	}
}

func (s *MemoryStore) Create(_ context.Context, rec Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[rec.SessionID] = rec
	return nil
}

func (s *MemoryStore) Get(_ context.Context, sessionID string) (Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.records[sessionID]
	if !ok {
		return Record{}, ErrNotFound
	}
	return rec, nil
}

func (s *MemoryStore) Touch(_ context.Context, sessionID string, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[sessionID]
	if !ok {
		return ErrNotFound
	}
	// last_activity_at is monotonically non-decreasing; an out-of-order
	// touch from a racing tab must not rewind it.
	if now.After(rec.LastActivityAt) {
		rec.LastActivityAt = now
		s.records[sessionID] = rec
	}
	return nil
}

func (s *MemoryStore) Destroy(_ context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.records, sessionID)
	return nil
}

func (s *MemoryStore) PurgeExpired(_ context.Context, cutoff time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	swept := 0
	for id, rec := range s.records {
		if rec.LastActivityAt.Before(cutoff) {
			delete(s.records, id)
			swept++
		}
	}
	return swept, nil
}

// Len reports the number of live records.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}
