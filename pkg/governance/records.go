package governance

import (
	"context"
	"time"
)

// ApprovalStatus is the governance approval state of a model or prompt.
type ApprovalStatus string

const (
	StatusRegistered ApprovalStatus = "REGISTERED"
	StatusApproved   ApprovalStatus = "APPROVED"
	StatusDeprecated ApprovalStatus = "DEPRECATED"
)

// approvalTransitions holds the allowed approval-state transitions.
var approvalTransitions = map[ApprovalStatus]map[ApprovalStatus]bool{
	StatusRegistered: {StatusApproved: true},
	StatusApproved:   {StatusDeprecated: true},
	StatusDeprecated: {},
}

// ModelRecord is the registry entry for one model version. Identity is
// (ModelName, Version).
type ModelRecord struct {
	ModelName     string         `json:"model_name"`
	Version       string         `json:"version"`
	Checksum      string         `json:"checksum"`
	Status        ApprovalStatus `json:"status"`
	RegisteredAt  time.Time      `json:"registered_at"`
	ApprovedAt    *time.Time     `json:"approved_at,omitempty"`
	ApprovedBy    string         `json:"approved_by,omitempty"`
	TenantID      string         `json:"tenant_id"`
	CorrelationID string         `json:"correlation_id"`
}

// PromptRecord is the registry entry for one prompt version. Versions are
// monotonically increasing integers per prompt name.
type PromptRecord struct {
	PromptName   string         `json:"prompt_name"`
	Version      int            `json:"version"`
	Template     string         `json:"template"`
	Status       ApprovalStatus `json:"status"`
	RegisteredAt time.Time      `json:"registered_at"`
	ApprovedAt   *time.Time     `json:"approved_at,omitempty"`
	ApprovedBy   string         `json:"approved_by,omitempty"`
}

// ModelRepository persists model records. Implementations are the only
// source of persistence nondeterminism; every method takes a context.
type ModelRepository interface {
	Save(ctx context.Context, record ModelRecord) error
	Get(ctx context.Context, name, version string) (*ModelRecord, error)
	GetLatest(ctx context.Context, name string) (*ModelRecord, error)
}

// PromptRepository persists prompt records.
type PromptRepository interface {
	Save(ctx context.Context, record PromptRecord) error
	Get(ctx context.Context, name string, version int) (*PromptRecord, error)
	GetLatest(ctx context.Context, name string) (*PromptRecord, error)
	GetVersions(ctx context.Context, name string) ([]PromptRecord, error)
}
