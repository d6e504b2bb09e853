package memory

import (
	"context"
	"slices"
	"sync"

	"github.com/aretw0/codeflow/pkg/domain"
)

// Store implements ports.RecordingStore in memory.
// Safe for concurrent use.
type Store struct {
	data map[string]*domain.Recording
	mu   sync.RWMutex
}

// NewStore creates a new in-memory store.
func NewStore() *Store {
	return &Store{
		data: make(map[string]*domain.Recording),
	}
}

// Save persists the recording in memory.
func (s *Store) Save(ctx context.Context, rec *domain.Recording) error {
	copied := clone(rec)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[rec.ID] = copied
	return nil
}

// Load retrieves the recording from memory.
func (s *Store) Load(ctx context.Context, id string) (*domain.Recording, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.data[id]
	if !ok {
		return nil, domain.ErrRecordingNotFound
	}

	// Copy on read so callers can't mutate the stored recording through the pointer.
	return clone(rec), nil
}

// Delete removes the recording.
func (s *Store) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, id)
	return nil
}

// List returns stored recording IDs.
func (s *Store) List(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0, len(s.data))
	for id := range s.data {
		ids = append(ids, id)
	}
	return ids, nil
}

// clone copies the mutable parts of a recording. Event variables are never
// mutated after a trace is finalized, so they are shared.
func clone(rec *domain.Recording) *domain.Recording {
	c := *rec
	c.Breakpoints = slices.Clone(rec.Breakpoints)
	c.Result.Events = slices.Clone(rec.Result.Events)
	if rec.Result.Stats != nil {
		stats := *rec.Result.Stats
		c.Result.Stats = &stats
	}
	return &c
}
