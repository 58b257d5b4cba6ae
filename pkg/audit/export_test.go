package audit_test

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/veridian-labs/govpipe/pkg/audit"
)

func populatedStore(t *testing.T) *audit.Store {
	t.Helper()
	store := audit.NewStore()
	for _, action := range []string{
		audit.ActionModelRegistered,
		audit.ActionModelApproved,
		audit.ActionGovernanceViolation,
	} {
		_, err := store.Append(audit.Action{
			Action:        action,
			TenantID:      "t1",
			CorrelationID: "c1",
			ResourceType:  "model",
			ResourceID:    "risk-model",
		})
		require.NoError(t, err)
	}
	return store
}

func TestExportReadVerifyRoundTrip(t *testing.T) {
	store := populatedStore(t)

	var buf bytes.Buffer
	require.NoError(t, store.Export(&buf))
	assert.Equal(t, 3, strings.Count(buf.String(), "\n"))

	entries, err := audit.ReadEntries(&buf)
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, uint64(1), entries[0].Sequence)
	assert.Equal(t, audit.ActionModelRegistered, entries[0].Action.Action)

	require.NoError(t, audit.VerifyEntries(entries))
}

func TestVerifyEntriesDetectsTampering(t *testing.T) {
	store := populatedStore(t)
	var buf bytes.Buffer
	require.NoError(t, store.Export(&buf))
	entries, err := audit.ReadEntries(&buf)
	require.NoError(t, err)

	entries[1].PayloadHash = "sha256:0000"
	err = audit.VerifyEntries(entries)
	require.ErrorIs(t, err, audit.ErrChainBroken)
}

func TestVerifyEntriesDetectsDroppedEntry(t *testing.T) {
	store := populatedStore(t)
	var buf bytes.Buffer
	require.NoError(t, store.Export(&buf))
	entries, err := audit.ReadEntries(&buf)
	require.NoError(t, err)

	err = audit.VerifyEntries(append(entries[:1], entries[2:]...))
	require.ErrorIs(t, err, audit.ErrChainBroken)
}

func TestReadEntriesRejectsGarbage(t *testing.T) {
	_, err := audit.ReadEntries(strings.NewReader("not-json\n"))
	require.Error(t, err)
}

func TestMultiLoggerFansOut(t *testing.T) {
	first := audit.NewRecorder()
	second := audit.NewRecorder()
	logger := audit.MultiLogger{first, second}

	require.NoError(t, logger.LogAction(context.Background(), audit.Action{
		Action: audit.ActionPromptApproved,
	}))
	assert.Equal(t, 1, first.Len())
	assert.Equal(t, 1, second.Len())
}
