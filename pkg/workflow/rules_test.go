package workflow_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/veridian-labs/govpipe/pkg/workflow"
)

func scoreOf(v float64) *float64 { return &v }

func TestDefaultRulesCompile(t *testing.T) {
	rules, err := workflow.DefaultRules()
	require.NoError(t, err)
	require.NotNil(t, rules.Policy)
	require.NotNil(t, rules.Guardrail)
	require.NotNil(t, rules.CompliancePolicy)

	assert.Equal(t, workflow.DefaultPolicyRule, rules.Policy.Expr())
}

func TestPolicyRuleMatchesSensitiveCategory(t *testing.T) {
	rules, err := workflow.DefaultRules()
	require.NoError(t, err)

	flagged, err := rules.Policy.Eval("standard", "sensitive", nil)
	require.NoError(t, err)
	assert.True(t, flagged)

	flagged, err = rules.Policy.Eval("standard", "normal", nil)
	require.NoError(t, err)
	assert.False(t, flagged)

	flagged, err = rules.Policy.Eval("standard", "", nil)
	require.NoError(t, err)
	assert.False(t, flagged)
}

func TestGuardrailRuleBoundary(t *testing.T) {
	rules, err := workflow.DefaultRules()
	require.NoError(t, err)

	within, err := rules.Guardrail.Eval("high_risk", "", scoreOf(90.0))
	require.NoError(t, err)
	assert.True(t, within, "90 is inside the guardrail")

	within, err = rules.Guardrail.Eval("high_risk", "", scoreOf(90.5))
	require.NoError(t, err)
	assert.False(t, within)
}

func TestComplianceRuleBoundary(t *testing.T) {
	rules, err := workflow.DefaultRules()
	require.NoError(t, err)

	flagged, err := rules.CompliancePolicy.Eval("exotic", "", scoreOf(80.0))
	require.NoError(t, err)
	assert.True(t, flagged, "80 fails compliance policy")

	flagged, err = rules.CompliancePolicy.Eval("exotic", "", scoreOf(79.9))
	require.NoError(t, err)
	assert.False(t, flagged)
}

func TestNewRuleRejectsInvalidExpressions(t *testing.T) {
	_, err := workflow.NewRule(`category ==`)
	require.Error(t, err)

	// Well-formed but not boolean.
	_, err = workflow.NewRule(`risk_score + 1.0`)
	require.Error(t, err)

	// Unknown variable.
	_, err = workflow.NewRule(`severity == "high"`)
	require.Error(t, err)
}

func TestCustomRuleUsesAllInputs(t *testing.T) {
	rule, err := workflow.NewRule(
		`event_type == "wire_transfer" && category != "internal" && risk_score > 25.0`)
	require.NoError(t, err)

	hit, err := rule.Eval("wire_transfer", "external", scoreOf(30.0))
	require.NoError(t, err)
	assert.True(t, hit)

	hit, err = rule.Eval("wire_transfer", "internal", scoreOf(30.0))
	require.NoError(t, err)
	assert.False(t, hit)
}
