// Package workflow implements the risk and compliance execution engines:
// idempotency lookup, governance gate, ordered stage chain, and the
// failure-metrics envelope around it.
package workflow

import (
	"encoding/json"
	"fmt"
	"time"
)

// Workflow type names, also used as state-store key segments and the
// "workflow" metric label.
const (
	TypeRisk       = "risk"
	TypeCompliance = "compliance"
)

// Stage results and decisions.
const (
	PolicyPass         = "PASS"
	PolicyFail         = "FAIL"
	GuardrailOK        = "OK"
	GuardrailViolation = "VIOLATION"

	DecisionApproved        = "APPROVED"
	DecisionRequireApproval = "REQUIRE_APPROVAL"
	DecisionRejected        = "REJECTED"
)

// Audit-trail actions appended by stages.
const (
	TrailContextRetrieved          = "CONTEXT_RETRIEVED"
	TrailPolicyEvaluated           = "POLICY_EVALUATED"
	TrailRiskScored                = "RISK_SCORED"
	TrailGuardrailChecked          = "GUARDRAIL_CHECKED"
	TrailDecisionMade              = "DECISION_MADE"
	TrailFlagsEvaluated            = "FLAGS_EVALUATED"
	TrailCompliancePolicyEvaluated = "COMPLIANCE_POLICY_EVALUATED"
	TrailComplianceDecisionMade    = "COMPLIANCE_DECISION_MADE"
)

// AuditTrailEntry records one stage execution inside a workflow state.
// The trail is append-only; stages never touch earlier entries.
type AuditTrailEntry struct {
	Node          string         `json:"node"`
	Action        string         `json:"action"`
	Timestamp     time.Time      `json:"timestamp"`
	CorrelationID string         `json:"correlation_id"`
	Extra         map[string]any `json:"extra,omitempty"`
}

// RiskState is the mutable record a risk run threads through its stages.
type RiskState struct {
	EventID          string            `json:"event_id"`
	TenantID         string            `json:"tenant_id"`
	CorrelationID    string            `json:"correlation_id"`
	RawEvent         map[string]any    `json:"raw_event"`
	ModelVersion     string            `json:"model_version,omitempty"`
	PromptVersion    int               `json:"prompt_version,omitempty"`
	RetrievedContext string            `json:"retrieved_context,omitempty"`
	PolicyResult     string            `json:"policy_result,omitempty"`
	RiskScore        *float64          `json:"risk_score,omitempty"`
	GuardrailResult  string            `json:"guardrail_result,omitempty"`
	FinalDecision    string            `json:"final_decision,omitempty"`
	AuditTrail       []AuditTrailEntry `json:"audit_trail"`
}

// ComplianceState is the mutable record of a compliance run.
type ComplianceState struct {
	EventID          string            `json:"event_id"`
	TenantID         string            `json:"tenant_id"`
	CorrelationID    string            `json:"correlation_id"`
	RawEvent         map[string]any    `json:"raw_event"`
	RegulatoryFlags  []string          `json:"regulatory_flags"`
	RiskScore        *float64          `json:"risk_score,omitempty"`
	PolicyResult     string            `json:"policy_result,omitempty"`
	ApprovalRequired bool              `json:"approval_required"`
	FinalDecision    string            `json:"final_decision,omitempty"`
	AuditTrail       []AuditTrailEntry `json:"audit_trail"`
}

func (s *RiskState) appendTrail(node, action string, extra map[string]any) {
	s.AuditTrail = append(s.AuditTrail, AuditTrailEntry{
		Node:          node,
		Action:        action,
		Timestamp:     time.Now().UTC(),
		CorrelationID: s.CorrelationID,
		Extra:         extra,
	})
}

func (s *ComplianceState) appendTrail(node, action string, extra map[string]any) {
	s.AuditTrail = append(s.AuditTrail, AuditTrailEntry{
		Node:          node,
		Action:        action,
		Timestamp:     time.Now().UTC(),
		CorrelationID: s.CorrelationID,
		Extra:         extra,
	})
}

// stateToMap and stateFromMap convert between typed states and the
// JSON-safe mappings the state-store persists.
func stateToMap(state any) (map[string]any, error) {
	raw, err := json.Marshal(state)
	if err != nil {
		return nil, fmt.Errorf("failed to serialize state: %w", err)
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("failed to serialize state: %w", err)
	}
	return m, nil
}

func stateFromMap[T any](m map[string]any) (*T, error) {
	raw, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("failed to deserialize state: %w", err)
	}
	var out T
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("failed to deserialize state: %w", err)
	}
	return &out, nil
}

// eventType reads raw_event.event_type, empty when absent.
func eventType(raw map[string]any) string {
	v, _ := raw["event_type"].(string)
	return v
}

// metadataCategory reads raw_event.metadata.category, empty when absent.
func metadataCategory(raw map[string]any) string {
	metadata, _ := raw["metadata"].(map[string]any)
	v, _ := metadata["category"].(string)
	return v
}
