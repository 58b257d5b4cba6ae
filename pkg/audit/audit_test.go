package audit_test

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/veridian-labs/govpipe/pkg/audit"
)

func sampleAction() audit.Action {
	return audit.Action{
		Action:        audit.ActionModelRegistered,
		TenantID:      "t1",
		CorrelationID: "c1",
		ResourceType:  "model",
		ResourceID:    "risk-model",
	}
}

func TestLoggerWritesStructuredJSON(t *testing.T) {
	var buf bytes.Buffer
	logger := audit.NewLoggerWithWriter(&buf)

	err := logger.LogAction(context.Background(), sampleAction())
	require.NoError(t, err)

	output := buf.String()
	assert.True(t, strings.HasPrefix(output, "AUDIT: "))

	jsonPart := strings.TrimSpace(strings.TrimPrefix(output, "AUDIT: "))
	var record audit.Record
	require.NoError(t, json.Unmarshal([]byte(jsonPart), &record))

	assert.Equal(t, audit.ActionModelRegistered, record.Action.Action)
	assert.Equal(t, "t1", record.TenantID)
	assert.Equal(t, "model", record.ResourceType)
	assert.NotEmpty(t, record.ID)
	// UUID format: 8-4-4-4-12
	assert.Len(t, record.ID, 36)
	assert.False(t, record.Timestamp.IsZero())
}

func TestLoggerWithExtra(t *testing.T) {
	var buf bytes.Buffer
	logger := audit.NewLoggerWithWriter(&buf)

	a := sampleAction()
	a.Reason = "unapproved model version"
	a.Extra = map[string]any{"version": "1.0"}
	require.NoError(t, logger.LogAction(context.Background(), a))

	jsonPart := strings.TrimSpace(strings.TrimPrefix(buf.String(), "AUDIT: "))
	var record audit.Record
	require.NoError(t, json.Unmarshal([]byte(jsonPart), &record))
	assert.Equal(t, "unapproved model version", record.Reason)
	assert.Equal(t, "1.0", record.Extra["version"])
}

func TestLoggerHonorsCancelledContext(t *testing.T) {
	var buf bytes.Buffer
	logger := audit.NewLoggerWithWriter(&buf)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := logger.LogAction(ctx, sampleAction())
	require.Error(t, err)
	assert.Zero(t, buf.Len())
}

func TestStoreAppendAndChain(t *testing.T) {
	store := audit.NewStore()

	e1, err := store.Append(sampleAction())
	require.NoError(t, err)
	assert.Equal(t, uint64(1), e1.Sequence)
	assert.Equal(t, "genesis", e1.PreviousHash)

	a2 := sampleAction()
	a2.Action = audit.ActionModelApproved
	e2, err := store.Append(a2)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), e2.Sequence)
	assert.Equal(t, e1.EntryHash, e2.PreviousHash)
	assert.Equal(t, e2.EntryHash, store.ChainHead())

	require.NoError(t, store.VerifyChain())
	assert.Equal(t, 2, store.Size())
}

func TestStoreQueryFilters(t *testing.T) {
	store := audit.NewStore()
	for _, action := range []string{audit.ActionModelRegistered, audit.ActionModelApproved, audit.ActionGovernanceViolation} {
		a := sampleAction()
		a.Action = action
		_, err := store.Append(a)
		require.NoError(t, err)
	}

	violations := store.Query(audit.QueryFilter{Action: audit.ActionGovernanceViolation})
	require.Len(t, violations, 1)
	assert.Equal(t, audit.ActionGovernanceViolation, violations[0].Action.Action)

	all := store.Query(audit.QueryFilter{TenantID: "t1"})
	assert.Len(t, all, 3)

	limited := store.Query(audit.QueryFilter{TenantID: "t1", MaxResults: 2})
	assert.Len(t, limited, 2)

	none := store.Query(audit.QueryFilter{TenantID: "other"})
	assert.Empty(t, none)
}

func TestStoreVerifyChainDetectsTampering(t *testing.T) {
	store := audit.NewStore()
	e, err := store.Append(sampleAction())
	require.NoError(t, err)
	_, err = store.Append(sampleAction())
	require.NoError(t, err)

	// Mutate the first entry behind the store's back.
	e.PayloadHash = "sha256:0000"
	err = store.VerifyChain()
	require.Error(t, err)
	assert.ErrorIs(t, err, audit.ErrChainBroken)
}

func TestStoreLogger(t *testing.T) {
	store := audit.NewStore()
	logger := audit.NewStoreLogger(store)

	require.NoError(t, logger.LogAction(context.Background(), sampleAction()))
	assert.Equal(t, 1, store.Size())

	entries := store.Query(audit.QueryFilter{})
	require.Len(t, entries, 1)
	assert.Equal(t, audit.ActionModelRegistered, entries[0].Action.Action)
}

func TestStoreLoggerFailClosedWithoutStore(t *testing.T) {
	logger := audit.NewStoreLogger(nil)
	err := logger.LogAction(context.Background(), sampleAction())
	require.Error(t, err)
}

func TestRecorderKeepsOrder(t *testing.T) {
	rec := audit.NewRecorder()
	for _, action := range []string{"A", "B", "C"} {
		a := sampleAction()
		a.Action = action
		require.NoError(t, rec.LogAction(context.Background(), a))
	}
	actions := rec.Actions()
	require.Len(t, actions, 3)
	assert.Equal(t, "A", actions[0].Action)
	assert.Equal(t, "B", actions[1].Action)
	assert.Equal(t, "C", actions[2].Action)
}
