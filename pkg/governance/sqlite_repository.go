package governance

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/Masterminds/semver/v3"
	_ "modernc.org/sqlite"
)

const sqliteGovernanceSchema = `
CREATE TABLE IF NOT EXISTS governance_models (
	model_name TEXT NOT NULL,
	version TEXT NOT NULL,
	checksum TEXT NOT NULL,
	status TEXT NOT NULL,
	registered_at TEXT NOT NULL,
	approved_at TEXT,
	approved_by TEXT,
	tenant_id TEXT NOT NULL,
	correlation_id TEXT NOT NULL,
	PRIMARY KEY (model_name, version)
);

CREATE TABLE IF NOT EXISTS governance_prompts (
	prompt_name TEXT NOT NULL,
	version INTEGER NOT NULL,
	template TEXT NOT NULL,
	status TEXT NOT NULL,
	registered_at TEXT NOT NULL,
	approved_at TEXT,
	approved_by TEXT,
	PRIMARY KEY (prompt_name, version)
);
`

// OpenSQLite opens (or creates) a sqlite database file suitable for the
// sqlite repositories. Use ":memory:" for an ephemeral database.
func OpenSQLite(path string) (*sql.DB, error) {
	return sql.Open("sqlite", path)
}

// SQLiteModelRepository implements ModelRepository over an embedded sqlite
// database. Timestamps are stored as RFC3339Nano text.
type SQLiteModelRepository struct {
	db *sql.DB
}

func NewSQLiteModelRepository(db *sql.DB) (*SQLiteModelRepository, error) {
	r := &SQLiteModelRepository{db: db}
	if _, err := db.ExecContext(context.Background(), sqliteGovernanceSchema); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *SQLiteModelRepository) Save(ctx context.Context, record ModelRecord) error {
	query := `
		INSERT INTO governance_models
			(model_name, version, checksum, status, registered_at, approved_at, approved_by, tenant_id, correlation_id)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (model_name, version) DO UPDATE
		SET checksum = excluded.checksum, status = excluded.status,
			approved_at = excluded.approved_at, approved_by = excluded.approved_by
	`
	_, err := r.db.ExecContext(ctx, query,
		record.ModelName, record.Version, record.Checksum, string(record.Status),
		formatTime(record.RegisteredAt), formatTimePtr(record.ApprovedAt), record.ApprovedBy,
		record.TenantID, record.CorrelationID,
	)
	return err
}

func (r *SQLiteModelRepository) Get(ctx context.Context, name, version string) (*ModelRecord, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT model_name, version, checksum, status, registered_at, approved_at, approved_by, tenant_id, correlation_id
		FROM governance_models
		WHERE model_name = ? AND version = ?
	`, name, version)
	record, err := scanSQLiteModel(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return record, err
}

func (r *SQLiteModelRepository) GetLatest(ctx context.Context, name string) (*ModelRecord, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT model_name, version, checksum, status, registered_at, approved_at, approved_by, tenant_id, correlation_id
		FROM governance_models
		WHERE model_name = ?
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
		record, err := scanSQLiteModel(rows)
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

// SQLitePromptRepository implements PromptRepository over sqlite.
type SQLitePromptRepository struct {
	db *sql.DB
}

func NewSQLitePromptRepository(db *sql.DB) (*SQLitePromptRepository, error) {
	r := &SQLitePromptRepository{db: db}
	if _, err := db.ExecContext(context.Background(), sqliteGovernanceSchema); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *SQLitePromptRepository) Save(ctx context.Context, record PromptRecord) error {
	query := `
		INSERT INTO governance_prompts
			(prompt_name, version, template, status, registered_at, approved_at, approved_by)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (prompt_name, version) DO UPDATE
		SET template = excluded.template, status = excluded.status,
			approved_at = excluded.approved_at, approved_by = excluded.approved_by
	`
	_, err := r.db.ExecContext(ctx, query,
		record.PromptName, record.Version, record.Template, string(record.Status),
		formatTime(record.RegisteredAt), formatTimePtr(record.ApprovedAt), record.ApprovedBy,
	)
	return err
}

func (r *SQLitePromptRepository) Get(ctx context.Context, name string, version int) (*PromptRecord, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT prompt_name, version, template, status, registered_at, approved_at, approved_by
		FROM governance_prompts
		WHERE prompt_name = ? AND version = ?
	`, name, version)
	record, err := scanSQLitePrompt(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return record, err
}

func (r *SQLitePromptRepository) GetLatest(ctx context.Context, name string) (*PromptRecord, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT prompt_name, version, template, status, registered_at, approved_at, approved_by
		FROM governance_prompts
		WHERE prompt_name = ?
		ORDER BY version DESC
		LIMIT 1
	`, name)
	record, err := scanSQLitePrompt(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return record, err
}

func (r *SQLitePromptRepository) GetVersions(ctx context.Context, name string) ([]PromptRecord, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT prompt_name, version, template, status, registered_at, approved_at, approved_by
		FROM governance_prompts
		WHERE prompt_name = ?
		ORDER BY version ASC
	`, name)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var records []PromptRecord
	for rows.Next() {
		record, err := scanSQLitePrompt(rows)
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

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func formatTimePtr(t *time.Time) any {
	if t == nil {
		return nil
	}
	return formatTime(*t)
}

func parseTime(value string) time.Time {
	if value == "" {
		return time.Time{}
	}
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t
	}
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t
	}
	return time.Time{}
}

func scanSQLiteModel(s rowScanner) (*ModelRecord, error) {
	var record ModelRecord
	var status, registeredAt string
	var approvedAt, approvedBy sql.NullString
	err := s.Scan(&record.ModelName, &record.Version, &record.Checksum, &status,
		&registeredAt, &approvedAt, &approvedBy, &record.TenantID, &record.CorrelationID)
	if err != nil {
		return nil, err
	}
	record.Status = ApprovalStatus(status)
	record.RegisteredAt = parseTime(registeredAt)
	if approvedAt.Valid && approvedAt.String != "" {
		t := parseTime(approvedAt.String)
		record.ApprovedAt = &t
	}
	record.ApprovedBy = approvedBy.String
	return &record, nil
}

func scanSQLitePrompt(s rowScanner) (*PromptRecord, error) {
	var record PromptRecord
	var status, registeredAt string
	var approvedAt, approvedBy sql.NullString
	err := s.Scan(&record.PromptName, &record.Version, &record.Template, &status,
		&registeredAt, &approvedAt, &approvedBy)
	if err != nil {
		return nil, err
	}
	record.Status = ApprovalStatus(status)
	record.RegisteredAt = parseTime(registeredAt)
	if approvedAt.Valid && approvedAt.String != "" {
		t := parseTime(approvedAt.String)
		record.ApprovedAt = &t
	}
	record.ApprovedBy = approvedBy.String
	return &record, nil
}
