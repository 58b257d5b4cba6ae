package audit

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

var (
	ErrEntryNotFound = errors.New("audit entry not found")
	ErrChainBroken   = errors.New("audit hash chain is broken")
)

// Entry is a single immutable entry in the audit store. Entries are hash
// chained: each entry's hash covers its payload hash and the previous
// entry's hash.
type Entry struct {
	EntryID      string    `json:"entry_id"`
	Sequence     uint64    `json:"sequence"`
	Timestamp    time.Time `json:"timestamp"`
	Action       Action    `json:"action"`
	PayloadHash  string    `json:"payload_hash"`
	PreviousHash string    `json:"previous_hash"`
	EntryHash    string    `json:"entry_hash"`
}

// Store is an append-only action log with hash chaining.
type Store struct {
	mu        sync.RWMutex
	entries   []*Entry
	entryByID map[string]*Entry
	sequence  uint64
	chainHead string
}

// NewStore creates a new append-only audit store.
func NewStore() *Store {
	return &Store{
		entries:   make([]*Entry, 0),
		entryByID: make(map[string]*Entry),
		chainHead: "genesis",
	}
}

// Append adds a new action to the store.
func (s *Store) Append(a Action) (*Entry, error) {
	payload, err := json.Marshal(a)
	if err != nil {
		return nil, fmt.Errorf("failed to serialize action: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.sequence++
	entry := &Entry{
		EntryID:      uuid.New().String(),
		Sequence:     s.sequence,
		Timestamp:    time.Now().UTC(),
		Action:       a,
		PayloadHash:  computeHash(payload),
		PreviousHash: s.chainHead,
	}

	entryHash, err := computeEntryHash(entry)
	if err != nil {
		s.sequence-- // rollback sequence on failure
		return nil, fmt.Errorf("failed to compute entry hash: %w", err)
	}
	entry.EntryHash = entryHash
	s.chainHead = entry.EntryHash

	s.entries = append(s.entries, entry)
	s.entryByID[entry.EntryID] = entry

	return entry, nil
}

func computeHash(data []byte) string {
	hash := sha256.Sum256(data)
	return "sha256:" + hex.EncodeToString(hash[:])
}

func computeEntryHash(entry *Entry) (string, error) {
	hashable := struct {
		Sequence     uint64    `json:"sequence"`
		Timestamp    time.Time `json:"timestamp"`
		PayloadHash  string    `json:"payload_hash"`
		PreviousHash string    `json:"previous_hash"`
	}{
		Sequence:     entry.Sequence,
		Timestamp:    entry.Timestamp,
		PayloadHash:  entry.PayloadHash,
		PreviousHash: entry.PreviousHash,
	}

	data, err := json.Marshal(hashable)
	if err != nil {
		return "", fmt.Errorf("failed to marshal entry for hashing: %w", err)
	}
	return computeHash(data), nil
}

// Get retrieves an entry by ID.
func (s *Store) Get(entryID string) (*Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entry, ok := s.entryByID[entryID]
	if !ok {
		return nil, ErrEntryNotFound
	}
	return entry, nil
}

// ChainHead returns the current chain head hash.
func (s *Store) ChainHead() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.chainHead
}

// Size returns the number of entries in the store.
func (s *Store) Size() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// QueryFilter defines filtering criteria for queries.
type QueryFilter struct {
	TenantID      string
	Action        string
	CorrelationID string
	MaxResults    int
}

func (f QueryFilter) matches(e *Entry) bool {
	if f.TenantID != "" && e.Action.TenantID != f.TenantID {
		return false
	}
	if f.Action != "" && e.Action.Action != f.Action {
		return false
	}
	if f.CorrelationID != "" && e.Action.CorrelationID != f.CorrelationID {
		return false
	}
	return true
}

// Query returns entries matching the filter, in append order.
func (s *Store) Query(filter QueryFilter) []*Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()

	results := make([]*Entry, 0)
	for _, e := range s.entries {
		if filter.matches(e) {
			results = append(results, e)
			if filter.MaxResults > 0 && len(results) >= filter.MaxResults {
				break
			}
		}
	}
	return results
}

// VerifyChain verifies the integrity of the hash chain.
func (s *Store) VerifyChain() error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	expectedPrev := "genesis"
	for i, entry := range s.entries {
		if entry.PreviousHash != expectedPrev {
			return fmt.Errorf("%w: entry %d has previous_hash %s but expected %s",
				ErrChainBroken, i, entry.PreviousHash, expectedPrev)
		}

		computed, err := computeEntryHash(entry)
		if err != nil {
			return fmt.Errorf("%w: entry %d hash computation failed: %w", ErrChainBroken, i, err)
		}
		if computed != entry.EntryHash {
			return fmt.Errorf("%w: entry %d hash mismatch (computed %s, stored %s)",
				ErrChainBroken, i, computed, entry.EntryHash)
		}

		expectedPrev = entry.EntryHash
	}

	return nil
}

// StoreLogger is a Logger that appends into a hash-chained Store.
type StoreLogger struct {
	store *Store
}

// NewStoreLogger creates a Logger backed by the given store.
func NewStoreLogger(s *Store) *StoreLogger {
	return &StoreLogger{store: s}
}

func (l *StoreLogger) LogAction(ctx context.Context, a Action) error {
	if l.store == nil {
		return fmt.Errorf("fail-closed: audit store not configured")
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	_, err := l.store.Append(a)
	return err
}
