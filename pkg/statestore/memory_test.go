package statestore_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/veridian-labs/govpipe/pkg/domain"
	"github.com/veridian-labs/govpipe/pkg/statestore"
)

func TestKeyFormat(t *testing.T) {
	assert.Equal(t, "govpipe:risk:evt-1", statestore.Key("risk", "evt-1"))
	assert.Equal(t, "govpipe:compliance:evt-2", statestore.Key("compliance", "evt-2"))
}

func TestEncodeIsCanonical(t *testing.T) {
	a, err := statestore.Encode(map[string]any{"b": 1.0, "a": "x"})
	require.NoError(t, err)
	b, err := statestore.Encode(map[string]any{"a": "x", "b": 1.0})
	require.NoError(t, err)
	assert.Equal(t, a, b)

	decoded, err := statestore.Decode(a)
	require.NoError(t, err)
	assert.Equal(t, "x", decoded["a"])
}

func TestEncodeRejectsNonSerializable(t *testing.T) {
	_, err := statestore.Encode(map[string]any{"ch": make(chan int)})
	require.Error(t, err)
}

func TestMemoryStoreGetMissing(t *testing.T) {
	store := statestore.NewMemoryStore()
	state, err := store.Get(context.Background(), "risk", "absent")
	require.NoError(t, err)
	assert.Nil(t, state)
}

func TestMemoryStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := statestore.NewMemoryStore()

	state := map[string]any{"event_id": "evt-1", "final_status": "approved", "risk_score": 30.0}
	require.NoError(t, store.Set(ctx, "risk", "evt-1", state))

	got, err := store.Get(ctx, "risk", "evt-1")
	require.NoError(t, err)
	assert.Equal(t, "approved", got["final_status"])
	assert.Equal(t, 30.0, got["risk_score"])

	// Mutating the returned map must not touch the stored entry.
	got["final_status"] = "tampered"
	again, err := store.Get(ctx, "risk", "evt-1")
	require.NoError(t, err)
	assert.Equal(t, "approved", again["final_status"])
}

func TestMemoryStoreSetIdempotentOnSameContent(t *testing.T) {
	ctx := context.Background()
	store := statestore.NewMemoryStore()

	state := map[string]any{"event_id": "evt-1", "final_status": "approved"}
	require.NoError(t, store.Set(ctx, "risk", "evt-1", state))
	// Same content in a different key order is not a conflict.
	require.NoError(t, store.Set(ctx, "risk", "evt-1",
		map[string]any{"final_status": "approved", "event_id": "evt-1"}))
	assert.Equal(t, 1, store.Len())
}

func TestMemoryStoreSetConflictOnDivergedContent(t *testing.T) {
	ctx := context.Background()
	store := statestore.NewMemoryStore()

	require.NoError(t, store.Set(ctx, "risk", "evt-1",
		map[string]any{"final_status": "approved"}))
	err := store.Set(ctx, "risk", "evt-1", map[string]any{"final_status": "rejected"})

	var conflict *domain.IdempotencyConflictError
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, "evt-1", conflict.EventID)
}

func TestMemoryStoreWorkflowTypesAreIsolated(t *testing.T) {
	ctx := context.Background()
	store := statestore.NewMemoryStore()

	require.NoError(t, store.Set(ctx, "risk", "evt-1", map[string]any{"final_status": "approved"}))

	state, err := store.Get(ctx, "compliance", "evt-1")
	require.NoError(t, err)
	assert.Nil(t, state)
}

func TestMemoryStoreCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	store := statestore.NewMemoryStore()

	_, err := store.Get(ctx, "risk", "evt-1")
	assert.Error(t, err)
	assert.Error(t, store.Set(ctx, "risk", "evt-1", map[string]any{}))
}
