package governance

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/Masterminds/semver/v3"
)

const pgGovernanceSchema = `
CREATE TABLE IF NOT EXISTS governance_models (
	model_name TEXT NOT NULL,
	version TEXT NOT NULL,
	checksum TEXT NOT NULL,
	status TEXT NOT NULL,
	registered_at TIMESTAMP NOT NULL,
	approved_at TIMESTAMP,
	approved_by TEXT,
	tenant_id TEXT NOT NULL,
	correlation_id TEXT NOT NULL,
	PRIMARY KEY (model_name, version)
);

CREATE TABLE IF NOT EXISTS governance_prompts (
	prompt_name TEXT NOT NULL,
	version INT NOT NULL,
	template TEXT NOT NULL,
	status TEXT NOT NULL,
	registered_at TIMESTAMP NOT NULL,
	approved_at TIMESTAMP,
	approved_by TEXT,
	PRIMARY KEY (prompt_name, version)
);
`

// PostgresModelRepository implements ModelRepository with SQL persistence.
type PostgresModelRepository struct {
	db *sql.DB
}

func NewPostgresModelRepository(db *sql.DB) *PostgresModelRepository {
	return &PostgresModelRepository{db: db}
}

// Init creates the governance tables.
func (r *PostgresModelRepository) Init(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, pgGovernanceSchema)
	return err
}

func (r *PostgresModelRepository) Save(ctx context.Context, record ModelRecord) error {
	query := `
		INSERT INTO governance_models
			(model_name, version, checksum, status, registered_at, approved_at, approved_by, tenant_id, correlation_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (model_name, version) DO UPDATE
		SET checksum = $3, status = $4, approved_at = $6, approved_by = $7
	`
	_, err := r.db.ExecContext(ctx, query,
		record.ModelName, record.Version, record.Checksum, string(record.Status),
		record.RegisteredAt, nullTime(record.ApprovedAt), record.ApprovedBy,
		record.TenantID, record.CorrelationID,
	)
	return err
}

func (r *PostgresModelRepository) Get(ctx context.Context, name, version string) (*ModelRecord, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT model_name, version, checksum, status, registered_at, approved_at, approved_by, tenant_id, correlation_id
		FROM governance_models
		WHERE model_name = $1 AND version = $2
	`, name, version)
	return scanModelRow(row)
}

// GetLatest returns the highest version for a name, ordered by semver.
// Versions that do not parse as semver are skipped; if none parse, the
// most recently registered record wins.
func (r *PostgresModelRepository) GetLatest(ctx context.Context, name string) (*ModelRecord, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT model_name, version, checksum, status, registered_at, approved_at, approved_by, tenant_id, correlation_id
		FROM governance_models
		WHERE model_name = $1
		ORDER BY registered_at DESC
	`, name)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var latest *ModelRecord
	var latestVer *semver.Version
	var fallback *ModelRecord
	for rows.Next() {
		record, err := scanModelRows(rows)
		if err != nil {
			return nil, err
		}
		if fallback == nil {
			fallback = record
		}
		v, err := semver.NewVersion(record.Version)
		if err != nil {
			continue
		}
		if latestVer == nil || v.GreaterThan(latestVer) {
			latest = record
			latestVer = v
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if latest != nil {
		return latest, nil
	}
	return fallback, nil
}

// PostgresPromptRepository implements PromptRepository with SQL persistence.
type PostgresPromptRepository struct {
	db *sql.DB
}

func NewPostgresPromptRepository(db *sql.DB) *PostgresPromptRepository {
	return &PostgresPromptRepository{db: db}
}

// Init creates the governance tables.
func (r *PostgresPromptRepository) Init(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, pgGovernanceSchema)
	return err
}

func (r *PostgresPromptRepository) Save(ctx context.Context, record PromptRecord) error {
	query := `
		INSERT INTO governance_prompts
			(prompt_name, version, template, status, registered_at, approved_at, approved_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (prompt_name, version) DO UPDATE
		SET template = $3, status = $4, approved_at = $6, approved_by = $7
	`
	_, err := r.db.ExecContext(ctx, query,
		record.PromptName, record.Version, record.Template, string(record.Status),
		record.RegisteredAt, nullTime(record.ApprovedAt), record.ApprovedBy,
	)
	return err
}

func (r *PostgresPromptRepository) Get(ctx context.Context, name string, version int) (*PromptRecord, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT prompt_name, version, template, status, registered_at, approved_at, approved_by
		FROM governance_prompts
		WHERE prompt_name = $1 AND version = $2
	`, name, version)
	return scanPromptRow(row)
}

func (r *PostgresPromptRepository) GetLatest(ctx context.Context, name string) (*PromptRecord, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT prompt_name, version, template, status, registered_at, approved_at, approved_by
		FROM governance_prompts
		WHERE prompt_name = $1
		ORDER BY version DESC
		LIMIT 1
	`, name)
	return scanPromptRow(row)
}

func (r *PostgresPromptRepository) GetVersions(ctx context.Context, name string) ([]PromptRecord, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT prompt_name, version, template, status, registered_at, approved_at, approved_by
		FROM governance_prompts
		WHERE prompt_name = $1
		ORDER BY version ASC
	`, name)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var records []PromptRecord
	for rows.Next() {
		record, err := scanPromptRows(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, *record)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return records, nil
}

func nullTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return *t
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanModel(s rowScanner) (*ModelRecord, error) {
	var record ModelRecord
	var status string
	var approvedAt sql.NullTime
	var approvedBy sql.NullString
	err := s.Scan(&record.ModelName, &record.Version, &record.Checksum, &status,
		&record.RegisteredAt, &approvedAt, &approvedBy, &record.TenantID, &record.CorrelationID)
	if err != nil {
		return nil, err
	}
	record.Status = ApprovalStatus(status)
	if approvedAt.Valid {
		t := approvedAt.Time
		record.ApprovedAt = &t
	}
	record.ApprovedBy = approvedBy.String
	return &record, nil
}

func scanModelRow(row *sql.Row) (*ModelRecord, error) {
	record, err := scanModel(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return record, err
}

func scanModelRows(rows *sql.Rows) (*ModelRecord, error) {
	return scanModel(rows)
}

func scanPrompt(s rowScanner) (*PromptRecord, error) {
	var record PromptRecord
	var status string
	var approvedAt sql.NullTime
	var approvedBy sql.NullString
	err := s.Scan(&record.PromptName, &record.Version, &record.Template, &status,
		&record.RegisteredAt, &approvedAt, &approvedBy)
	if err != nil {
		return nil, err
	}
	record.Status = ApprovalStatus(status)
	if approvedAt.Valid {
		t := approvedAt.Time
		record.ApprovedAt = &t
	}
	record.ApprovedBy = approvedBy.String
	return &record, nil
}

func scanPromptRow(row *sql.Row) (*PromptRecord, error) {
	record, err := scanPrompt(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return record, err
}

func scanPromptRows(rows *sql.Rows) (*PromptRecord, error) {
	return scanPrompt(rows)
}
