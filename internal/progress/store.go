package progress

import (
	"context"
	"fmt"
	"sync"
)

// Store persists progress records per learner.
type Store interface {
	// FetchProgress returns the learner's record, or an empty record when
	// none has been saved.
	FetchProgress(ctx context.Context, learnerID string) (Record, error)
	// SaveProgress persists the full record for a learner.
	SaveProgress(ctx context.Context, learnerID string, r Record) error
}

// MemoryStore is an in-memory implementation of Store. Saves merge into the
// stored record so a stale snapshot cannot clear flags.
type MemoryStore struct {
	records map[string]Record
	mu      sync.RWMutex
}

// NewMemoryStore creates a new in-memory progress store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		records: make(map[string]Record),
	}
}

func (s *MemoryStore) FetchProgress(_ context.Context, learnerID string) (Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.records[learnerID]
	if !ok {
		return Record{}, nil
	}
	return r, nil
}

func (s *MemoryStore) SaveProgress(_ context.Context, learnerID string, r Record) error {
	if learnerID == "" {
		return fmt.Errorf("learner id is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.records[learnerID] = s.records[learnerID].Merge(r)
	return nil
}
