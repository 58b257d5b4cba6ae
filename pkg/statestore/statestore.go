// Package statestore persists finalized workflow state keyed by workflow
// type and event id, giving re-executions an idempotency cache. State is
// stored as canonical JSON so equality checks are byte comparisons.
package statestore

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/gowebpki/jcs"
)

// Store is the idempotency cache consulted by the workflow engine.
// Get returns nil with no error when the key is absent. Set refuses to
// overwrite an existing entry with different content.
type Store interface {
	Get(ctx context.Context, workflowType, eventID string) (map[string]any, error)
	Set(ctx context.Context, workflowType, eventID string, state map[string]any) error
}

// Key builds the storage key for a workflow type and event id.
func Key(workflowType, eventID string) string {
	return fmt.Sprintf("govpipe:%s:%s", workflowType, eventID)
}

// Encode serializes state to canonical JSON (RFC 8785). Two states with
// the same content always encode to identical bytes.
func Encode(state map[string]any) ([]byte, error) {
	raw, err := json.Marshal(state)
	if err != nil {
		return nil, fmt.Errorf("failed to encode state: %w", err)
	}
	canonical, err := jcs.Transform(raw)
	if err != nil {
		return nil, fmt.Errorf("failed to canonicalize state: %w", err)
	}
	return canonical, nil
}

// Decode parses canonical state bytes back into a map.
func Decode(raw []byte) (map[string]any, error) {
	var state map[string]any
	if err := json.Unmarshal(raw, &state); err != nil {
		return nil, fmt.Errorf("failed to decode state: %w", err)
	}
	return state, nil
}

func sameContent(a, b []byte) bool {
	return bytes.Equal(a, b)
}
