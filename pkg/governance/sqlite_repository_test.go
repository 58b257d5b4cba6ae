package governance_test

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/veridian-labs/govpipe/pkg/governance"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := governance.OpenSQLite(":memory:")
	require.NoError(t, err)
	// In-memory sqlite is per-connection; keep the pool at one.
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestSQLiteModelRepositoryRoundTrip(t *testing.T) {
	ctx := context.Background()
	repo, err := governance.NewSQLiteModelRepository(openTestDB(t))
	require.NoError(t, err)

	registered := time.Now().UTC().Truncate(time.Millisecond)
	record := governance.ModelRecord{
		ModelName:     "risk-model",
		Version:       "1.0",
		Checksum:      "abc",
		Status:        governance.StatusRegistered,
		RegisteredAt:  registered,
		TenantID:      "t1",
		CorrelationID: "c1",
	}
	require.NoError(t, repo.Save(ctx, record))

	got, err := repo.Get(ctx, "risk-model", "1.0")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, record.Checksum, got.Checksum)
	assert.Equal(t, governance.StatusRegistered, got.Status)
	assert.True(t, got.RegisteredAt.Equal(registered))
	assert.Nil(t, got.ApprovedAt)
}

func TestSQLiteModelRepositoryUpsertUpdatesStatus(t *testing.T) {
	ctx := context.Background()
	repo, err := governance.NewSQLiteModelRepository(openTestDB(t))
	require.NoError(t, err)

	registered := time.Now().UTC()
	record := governance.ModelRecord{
		ModelName:     "risk-model",
		Version:       "1.0",
		Checksum:      "abc",
		Status:        governance.StatusRegistered,
		RegisteredAt:  registered,
		TenantID:      "t1",
		CorrelationID: "c1",
	}
	require.NoError(t, repo.Save(ctx, record))

	approvedAt := registered.Add(time.Minute)
	record.Status = governance.StatusApproved
	record.ApprovedAt = &approvedAt
	record.ApprovedBy = "alice"
	require.NoError(t, repo.Save(ctx, record))

	got, err := repo.Get(ctx, "risk-model", "1.0")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, governance.StatusApproved, got.Status)
	require.NotNil(t, got.ApprovedAt)
	assert.True(t, got.ApprovedAt.Equal(approvedAt))
	assert.Equal(t, "alice", got.ApprovedBy)
}

func TestSQLiteModelRepositoryGetLatestSemver(t *testing.T) {
	ctx := context.Background()
	repo, err := governance.NewSQLiteModelRepository(openTestDB(t))
	require.NoError(t, err)

	now := time.Now().UTC()
	for i, version := range []string{"1.0", "2.0", "1.5"} {
		require.NoError(t, repo.Save(ctx, governance.ModelRecord{
			ModelName:     "risk-model",
			Version:       version,
			Checksum:      version,
			Status:        governance.StatusRegistered,
			RegisteredAt:  now.Add(time.Duration(i) * time.Second),
			TenantID:      "t1",
			CorrelationID: "c1",
		}))
	}

	latest, err := repo.GetLatest(ctx, "risk-model")
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, "2.0", latest.Version)

	missing, err := repo.GetLatest(ctx, "ghost")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestSQLitePromptRepositoryVersions(t *testing.T) {
	ctx := context.Background()
	repo, err := governance.NewSQLitePromptRepository(openTestDB(t))
	require.NoError(t, err)

	now := time.Now().UTC()
	for v := 1; v <= 3; v++ {
		require.NoError(t, repo.Save(ctx, governance.PromptRecord{
			PromptName:   "risk-prompt",
			Version:      v,
			Template:     "tpl",
			Status:       governance.StatusRegistered,
			RegisteredAt: now,
		}))
	}

	versions, err := repo.GetVersions(ctx, "risk-prompt")
	require.NoError(t, err)
	require.Len(t, versions, 3)
	for i, record := range versions {
		assert.Equal(t, i+1, record.Version)
	}

	latest, err := repo.GetLatest(ctx, "risk-prompt")
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, 3, latest.Version)

	missing, err := repo.Get(ctx, "risk-prompt", 9)
	require.NoError(t, err)
	assert.Nil(t, missing)
}
