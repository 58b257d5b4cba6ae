package governance

import (
	"context"
	"sync"
	"time"

	"github.com/veridian-labs/govpipe/pkg/audit"
)

// keyedMutex serializes writes per key so register/approve races on the
// same name cannot interleave, while different names proceed in parallel.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func (k *keyedMutex) lock(key string) func() {
	k.mu.Lock()
	if k.locks == nil {
		k.locks = make(map[string]*sync.Mutex)
	}
	l, ok := k.locks[key]
	if !ok {
		l = &sync.Mutex{}
		k.locks[key] = l
	}
	k.mu.Unlock()

	l.Lock()
	return l.Unlock
}

// ModelRegistry tracks model approval state. Mutations are audited and
// serialized per model name.
type ModelRegistry struct {
	repo  ModelRepository
	audit audit.Logger
	locks keyedMutex
}

// NewModelRegistry creates a registry over the given repository. A nil
// audit logger falls back to the no-op logger.
func NewModelRegistry(repo ModelRepository, auditLogger audit.Logger) *ModelRegistry {
	if auditLogger == nil {
		auditLogger = audit.NopLogger{}
	}
	return &ModelRegistry{repo: repo, audit: auditLogger}
}

// RegisterModel creates a ModelRecord in REGISTERED state. Registration is
// idempotent for an identical (name, version, checksum) triple; a
// conflicting checksum fails with *ModelConflictError.
func (r *ModelRegistry) RegisterModel(ctx context.Context, modelName, version, checksum, correlationID, tenantID string) (*ModelRecord, error) {
	unlock := r.locks.lock(modelName)
	defer unlock()

	existing, err := r.repo.Get(ctx, modelName, version)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		if existing.Checksum != checksum {
			return nil, NewModelConflictError(modelName, version)
		}
		return existing, nil
	}

	record := ModelRecord{
		ModelName:     modelName,
		Version:       version,
		Checksum:      checksum,
		Status:        StatusRegistered,
		RegisteredAt:  time.Now().UTC(),
		TenantID:      tenantID,
		CorrelationID: correlationID,
	}
	if err := r.repo.Save(ctx, record); err != nil {
		return nil, err
	}

	if err := r.audit.LogAction(ctx, audit.Action{
		Action:        audit.ActionModelRegistered,
		TenantID:      tenantID,
		CorrelationID: correlationID,
		ResourceType:  "model",
		ResourceID:    modelName,
		Extra:         map[string]any{"version": version, "checksum": checksum},
	}); err != nil {
		return nil, err
	}
	return &record, nil
}

// Approve transitions REGISTERED -> APPROVED. Any other source state fails
// with *InvalidModelStateTransitionError.
func (r *ModelRegistry) Approve(ctx context.Context, modelName, version, approver, correlationID string) (*ModelRecord, error) {
	unlock := r.locks.lock(modelName)
	defer unlock()

	record, err := r.repo.Get(ctx, modelName, version)
	if err != nil {
		return nil, err
	}
	if record == nil {
		return nil, NewModelNotApprovedError(modelName, version)
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
		Action:        audit.ActionModelApproved,
		TenantID:      record.TenantID,
		CorrelationID: correlationID,
		ResourceType:  "model",
		ResourceID:    modelName,
		Extra:         map[string]any{"version": version, "approver": approver},
	}); err != nil {
		return nil, err
	}
	return record, nil
}

// Deprecate transitions APPROVED -> DEPRECATED.
func (r *ModelRegistry) Deprecate(ctx context.Context, modelName, version, correlationID string) (*ModelRecord, error) {
	unlock := r.locks.lock(modelName)
	defer unlock()

	record, err := r.repo.Get(ctx, modelName, version)
	if err != nil {
		return nil, err
	}
	if record == nil {
		return nil, NewModelNotApprovedError(modelName, version)
	}
	if !approvalTransitions[record.Status][StatusDeprecated] {
		return nil, NewInvalidModelStateTransitionError(record.Status, StatusDeprecated)
	}

	record.Status = StatusDeprecated
	if err := r.repo.Save(ctx, *record); err != nil {
		return nil, err
	}

	if err := r.audit.LogAction(ctx, audit.Action{
		Action:        audit.ActionModelDeprecated,
		TenantID:      record.TenantID,
		CorrelationID: correlationID,
		ResourceType:  "model",
		ResourceID:    modelName,
		Extra:         map[string]any{"version": version},
	}); err != nil {
		return nil, err
	}
	return record, nil
}

// Get looks up one model version; nil when absent.
func (r *ModelRegistry) Get(ctx context.Context, name, version string) (*ModelRecord, error) {
	return r.repo.Get(ctx, name, version)
}

// GetLatest looks up the newest version of a model; nil when absent.
func (r *ModelRegistry) GetLatest(ctx context.Context, name string) (*ModelRecord, error) {
	return r.repo.GetLatest(ctx, name)
}

// IsApproved reports whether (name, version) has an APPROVED record.
func (r *ModelRegistry) IsApproved(ctx context.Context, name, version string) (bool, error) {
	record, err := r.repo.Get(ctx, name, version)
	if err != nil {
		return false, err
	}
	return record != nil && record.Status == StatusApproved, nil
}
