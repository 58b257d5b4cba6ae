package workflow_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/veridian-labs/govpipe/pkg/audit"
	"github.com/veridian-labs/govpipe/pkg/workflow"
)

func newRiskState(eventID string, rawEvent map[string]any) *workflow.RiskState {
	return &workflow.RiskState{
		EventID:       eventID,
		TenantID:      "tenant-1",
		CorrelationID: "corr-1",
		RawEvent:      rawEvent,
	}
}

func TestRiskStandardEventApproved(t *testing.T) {
	w, err := workflow.NewRiskWorkflow(audit.NopLogger{})
	require.NoError(t, err)

	state, err := w.Run(context.Background(), newRiskState("evt-1", map[string]any{
		"event_type": "standard",
		"metadata":   map[string]any{"category": "normal"},
	}))
	require.NoError(t, err)

	assert.Equal(t, workflow.DecisionApproved, state.FinalDecision)
	require.NotNil(t, state.RiskScore)
	assert.Equal(t, 30.0, *state.RiskScore)
	assert.Equal(t, workflow.PolicyPass, state.PolicyResult)
	assert.Equal(t, workflow.GuardrailOK, state.GuardrailResult)
}

func TestRiskSensitiveCategoryRequiresApproval(t *testing.T) {
	w, err := workflow.NewRiskWorkflow(audit.NopLogger{})
	require.NoError(t, err)

	state, err := w.Run(context.Background(), newRiskState("evt-2", map[string]any{
		"event_type": "standard",
		"metadata":   map[string]any{"category": "sensitive"},
	}))
	require.NoError(t, err)

	assert.Equal(t, workflow.PolicyFail, state.PolicyResult)
	assert.Equal(t, workflow.DecisionRequireApproval, state.FinalDecision)
}

func TestRiskHighRiskEventRequiresApproval(t *testing.T) {
	w, err := workflow.NewRiskWorkflow(audit.NopLogger{})
	require.NoError(t, err)

	state, err := w.Run(context.Background(), newRiskState("evt-3", map[string]any{
		"event_type": "high_risk",
	}))
	require.NoError(t, err)

	require.NotNil(t, state.RiskScore)
	assert.Equal(t, 85.0, *state.RiskScore)
	assert.Equal(t, workflow.DecisionRequireApproval, state.FinalDecision)
}

func TestRiskLowRiskEventApproved(t *testing.T) {
	w, err := workflow.NewRiskWorkflow(audit.NopLogger{})
	require.NoError(t, err)

	state, err := w.Run(context.Background(), newRiskState("evt-4", map[string]any{
		"event_type": "low_risk",
	}))
	require.NoError(t, err)

	require.NotNil(t, state.RiskScore)
	assert.Equal(t, 15.0, *state.RiskScore)
	assert.Equal(t, workflow.DecisionApproved, state.FinalDecision)
}

func TestRiskGuardrailViolationRejects(t *testing.T) {
	// A tightened guardrail turns the high_risk score of 85 into a
	// violation, which outranks every other decision input.
	guardrail, err := workflow.NewRule(`risk_score <= 80.0`)
	require.NoError(t, err)
	rules, err := workflow.DefaultRules()
	require.NoError(t, err)
	rules.Guardrail = guardrail

	w, err := workflow.NewRiskWorkflow(audit.NopLogger{}, workflow.WithRules(rules))
	require.NoError(t, err)

	state, err := w.Run(context.Background(), newRiskState("evt-5", map[string]any{
		"event_type": "high_risk",
		"metadata":   map[string]any{"category": "sensitive"},
	}))
	require.NoError(t, err)

	assert.Equal(t, workflow.GuardrailViolation, state.GuardrailResult)
	assert.Equal(t, workflow.DecisionRejected, state.FinalDecision)
}

func TestRiskAuditTrailOrder(t *testing.T) {
	w, err := workflow.NewRiskWorkflow(audit.NopLogger{})
	require.NoError(t, err)

	state, err := w.Run(context.Background(), newRiskState("evt-6", map[string]any{
		"event_type": "standard",
	}))
	require.NoError(t, err)

	require.Len(t, state.AuditTrail, 5)
	for i, node := range workflow.RiskStageNames {
		assert.Equal(t, node, state.AuditTrail[i].Node)
		assert.Equal(t, "corr-1", state.AuditTrail[i].CorrelationID)
		assert.False(t, state.AuditTrail[i].Timestamp.IsZero())
	}
	assert.Equal(t, workflow.TrailContextRetrieved, state.AuditTrail[0].Action)
	assert.Equal(t, workflow.TrailDecisionMade, state.AuditTrail[4].Action)
}

func TestRiskRunsAreDeterministic(t *testing.T) {
	w, err := workflow.NewRiskWorkflow(audit.NopLogger{})
	require.NoError(t, err)

	raw := map[string]any{"event_type": "standard", "metadata": map[string]any{"category": "normal"}}
	first, err := w.Run(context.Background(), newRiskState("evt-7", raw))
	require.NoError(t, err)
	second, err := w.Run(context.Background(), newRiskState("evt-8", raw))
	require.NoError(t, err)

	assert.Equal(t, first.FinalDecision, second.FinalDecision)
	assert.Equal(t, *first.RiskScore, *second.RiskScore)
	assert.Equal(t, first.PolicyResult, second.PolicyResult)
	assert.Equal(t, first.GuardrailResult, second.GuardrailResult)
	assert.Equal(t, first.RetrievedContext, second.RetrievedContext)
}

func TestRiskRetrievalEchoesEventType(t *testing.T) {
	w, err := workflow.NewRiskWorkflow(audit.NopLogger{})
	require.NoError(t, err)

	state, err := w.Run(context.Background(), newRiskState("evt-9", map[string]any{
		"event_type": "standard",
	}))
	require.NoError(t, err)
	assert.Contains(t, state.RetrievedContext, "standard")
}
