package statestore

import (
	"context"
	"sync"

	"github.com/veridian-labs/govpipe/pkg/domain"
)

// MemoryStore is an in-process Store. Entries hold canonical bytes, so
// Get always returns a fresh decode and callers cannot mutate stored state.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string][]byte
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string][]byte)}
}

func (s *MemoryStore) Get(ctx context.Context, workflowType, eventID string) (map[string]any, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	raw, ok := s.entries[Key(workflowType, eventID)]
	s.mu.RUnlock()
	if !ok {
		return nil, nil
	}
	return Decode(raw)
}

func (s *MemoryStore) Set(ctx context.Context, workflowType, eventID string, state map[string]any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	raw, err := Encode(state)
	if err != nil {
		return err
	}
	key := Key(workflowType, eventID)

	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.entries[key]; ok {
		if sameContent(existing, raw) {
			return nil
		}
		return domain.NewIdempotencyConflictError(eventID,
			"finalized state for event "+eventID+" diverged from the stored entry")
	}
	s.entries[key] = raw
	return nil
}

// Len reports the number of stored entries.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}
