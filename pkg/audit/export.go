package audit

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
)

// Export writes the store's entries as JSON lines, one entry per line,
// in append order.
func (s *Store) Export(w io.Writer) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	enc := json.NewEncoder(w)
	for _, entry := range s.entries {
		if err := enc.Encode(entry); err != nil {
			return fmt.Errorf("failed to export entry %d: %w", entry.Sequence, err)
		}
	}
	return nil
}

// ReadEntries parses a JSON-lines export produced by Export.
func ReadEntries(r io.Reader) ([]*Entry, error) {
	var entries []*Entry
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	line := 0
	for scanner.Scan() {
		line++
		raw := scanner.Bytes()
		if len(raw) == 0 {
			continue
		}
		var entry Entry
		if err := json.Unmarshal(raw, &entry); err != nil {
			return nil, fmt.Errorf("failed to parse entry at line %d: %w", line, err)
		}
		entries = append(entries, &entry)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return entries, nil
}

// VerifyEntries replays the hash chain over an exported entry sequence.
func VerifyEntries(entries []*Entry) error {
	expectedPrev := "genesis"
	for i, entry := range entries {
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

// MultiLogger fans a LogAction out to several sinks in order, stopping
// at the first failure.
type MultiLogger []Logger

func (m MultiLogger) LogAction(ctx context.Context, a Action) error {
	for _, l := range m {
		if err := l.LogAction(ctx, a); err != nil {
			return err
		}
	}
	return nil
}
