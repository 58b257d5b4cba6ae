package governance

import (
	"context"
	"time"

	"github.com/veridian-labs/govpipe/pkg/audit"
)

// PromptRegistry tracks prompt approval state. Versions are assigned by
// the registry: each registration of a name gets the next integer.
type PromptRegistry struct {
	repo  PromptRepository
	audit audit.Logger
	locks keyedMutex
}

// NewPromptRegistry creates a registry over the given repository. A nil
// audit logger falls back to the no-op logger.
func NewPromptRegistry(repo PromptRepository, auditLogger audit.Logger) *PromptRegistry {
	if auditLogger == nil {
		auditLogger = audit.NopLogger{}
	}
	return &PromptRegistry{repo: repo, audit: auditLogger}
}

// RegisterPrompt creates a PromptRecord in REGISTERED state with the next
// version number for the name.
func (r *PromptRegistry) RegisterPrompt(ctx context.Context, promptName, template, correlationID string) (*PromptRecord, error) {
	unlock := r.locks.lock(promptName)
	defer unlock()

	latest, err := r.repo.GetLatest(ctx, promptName)
	if err != nil {
		return nil, err
	}
	version := 1
	if latest != nil {
		version = latest.Version + 1
	}

	record := PromptRecord{
		PromptName:   promptName,
		Version:      version,
		Template:     template,
		Status:       StatusRegistered,
		RegisteredAt: time.Now().UTC(),
	}
	if err := r.repo.Save(ctx, record); err != nil {
		return nil, err
	}

	if err := r.audit.LogAction(ctx, audit.Action{
		Action:        audit.ActionPromptRegistered,
		CorrelationID: correlationID,
		ResourceType:  "prompt",
		ResourceID:    promptName,
		Extra:         map[string]any{"version": version},
	}); err != nil {
		return nil, err
	}
	return &record, nil
}

// Approve transitions REGISTERED -> APPROVED for one prompt version.
func (r *PromptRegistry) Approve(ctx context.Context, promptName string, version int, approver, correlationID string) (*PromptRecord, error) {
	unlock := r.locks.lock(promptName)
	defer unlock()

	record, err := r.repo.Get(ctx, promptName, version)
	if err != nil {
		return nil, err
	}
	if record == nil {
		return nil, NewPromptNotApprovedError(promptName, version)
	}
	if !approvalTransitions[record.Status][StatusApproved] {
		return nil, NewInvalidModelStateTransitionError(record.Status, StatusApproved)
	}

	now := time.Now().UTC()
	record.Status = StatusApproved
	record.ApprovedAt = &now
	record.ApprovedBy = approver
	if err := r.repo.Save(ctx, *record); err != nil {
		return nil, err
	}

	if err := r.audit.LogAction(ctx, audit.Action{
		Action:        audit.ActionPromptApproved,
		CorrelationID: correlationID,
		ResourceType:  "prompt",
		ResourceID:    promptName,
		Extra:         map[string]any{"version": version, "approver": approver},
	}); err != nil {
		return nil, err
	}
	return record, nil
}

// Deprecate transitions APPROVED -> DEPRECATED for one prompt version.
func (r *PromptRegistry) Deprecate(ctx context.Context, promptName string, version int, correlationID string) (*PromptRecord, error) {
	unlock := r.locks.lock(promptName)
	defer unlock()

	record, err := r.repo.Get(ctx, promptName, version)
	if err != nil {
		return nil, err
	}
	if record == nil {
		return nil, NewPromptNotApprovedError(promptName, version)
	}
	if !approvalTransitions[record.Status][StatusDeprecated] {
		return nil, NewInvalidModelStateTransitionError(record.Status, StatusDeprecated)
	}

	record.Status = StatusDeprecated
	if err := r.repo.Save(ctx, *record); err != nil {
		return nil, err
	}

	if err := r.audit.LogAction(ctx, audit.Action{
		Action:        audit.ActionPromptDeprecated,
		CorrelationID: correlationID,
		ResourceType:  "prompt",
		ResourceID:    promptName,
		Extra:         map[string]any{"version": version},
	}); err != nil {
		return nil, err
	}
	return record, nil
}

// Get looks up one prompt version; nil when absent.
func (r *PromptRegistry) Get(ctx context.Context, name string, version int) (*PromptRecord, error) {
	return r.repo.Get(ctx, name, version)
}

// GetLatest looks up the newest version of a prompt; nil when absent.
func (r *PromptRegistry) GetLatest(ctx context.Context, name string) (*PromptRecord, error) {
	return r.repo.GetLatest(ctx, name)
}

// GetVersions returns all versions of a prompt in ascending order.
func (r *PromptRegistry) GetVersions(ctx context.Context, name string) ([]PromptRecord, error) {
	return r.repo.GetVersions(ctx, name)
}

// IsApproved reports whether (name, version) has an APPROVED record.
func (r *PromptRegistry) IsApproved(ctx context.Context, name string, version int) (bool, error) {
	record, err := r.repo.Get(ctx, name, version)
	if err != nil {
		return false, err
	}
	return record != nil && record.Status == StatusApproved, nil
}
