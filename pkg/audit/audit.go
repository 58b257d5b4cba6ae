// Package audit provides the append-only audit surface of the pipeline:
// a Logger interface every governed component writes through, a JSON-line
// logger, a hash-chained store, and a test recorder.
package audit

import "context"

// Action names emitted by registries and the workflow gate.
const (
	ActionModelRegistered     = "MODEL_REGISTERED"
	ActionModelApproved       = "MODEL_APPROVED"
	ActionModelDeprecated     = "MODEL_DEPRECATED"
	ActionPromptRegistered    = "PROMPT_REGISTERED"
	ActionPromptApproved      = "PROMPT_APPROVED"
	ActionPromptDeprecated    = "PROMPT_DEPRECATED"
	ActionGovernanceViolation = "GOVERNANCE_VIOLATION"
)

// Action is a single auditable occurrence.
type Action struct {
	Action        string         `json:"action"`
	TenantID      string         `json:"tenant_id,omitempty"`
	CorrelationID string         `json:"correlation_id,omitempty"`
	ResourceType  string         `json:"resource_type,omitempty"`
	ResourceID    string         `json:"resource_id,omitempty"`
	Reason        string         `json:"reason,omitempty"`
	Extra         map[string]any `json:"extra,omitempty"`
}

// Logger is the audit sink. Implementations must be safe for concurrent
// use; a failed LogAction is an infrastructure error and is never masked
// by callers.
type Logger interface {
	LogAction(ctx context.Context, a Action) error
}

// NopLogger discards every action.
type NopLogger struct{}

func (NopLogger) LogAction(ctx context.Context, a Action) error { return nil }
