package memory

import (
	"context"
	"sync"

	"lmsgate/internal/authlog"
)

// InMemoryStore keeps forwarded entries in process. Used by tests and
// AUTHLOG_SINK=memory.
type InMemoryStore struct {
	mu      sync.RWMutex
	entries []authlog.Entry
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{}
}

func (s *InMemoryStore) Write(_ context.Context, entry authlog.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, entry)
	return nil
}

// List returns a copy of all stored entries in write order.
func (s *InMemoryStore) List(_ context.Context) ([]authlog.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]authlog.Entry{}, s.entries...), nil
}

// ListRecent returns the most recent limit entries, newest first.
func (s *InMemoryStore) ListRecent(_ context.Context, limit int) ([]authlog.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 || limit > len(s.entries) {
		limit = len(s.entries)
	}
	out := make([]authlog.Entry, 0, limit)
	for i := len(s.entries) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, s.entries[i])
	}
	return out, nil
}

func (s *InMemoryStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = nil
}
