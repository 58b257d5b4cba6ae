package workflow

import (
	"context"
	"fmt"

	"github.com/veridian-labs/govpipe/pkg/audit"
)

// RiskStage is one step of the risk chain. Stages mutate the state,
// append exactly one audit-trail entry, and are deterministic given
// their inputs.
type RiskStage struct {
	Name  string
	Apply func(ctx context.Context, state *RiskState) error
}

// RiskStageNames is the default chain order.
var RiskStageNames = []string{
	"retrieval", "policy_validation", "risk_scoring", "guardrails", "decision",
}

// RiskWorkflow runs the five-stage risk chain inside the shared
// governance and idempotency envelope.
type RiskWorkflow struct {
	engine *engine
	stages []RiskStage
}

// NewRiskWorkflow builds a risk workflow. The audit logger is required;
// every other collaborator is optional and absent ones disable their
// effect.
func NewRiskWorkflow(logger audit.Logger, opts ...Option) (*RiskWorkflow, error) {
	e, err := newEngine(logger, opts...)
	if err != nil {
		return nil, err
	}
	stages := e.riskStages
	if stages == nil {
		stages = DefaultRiskStages(e.rules)
	}
	return &RiskWorkflow{engine: e, stages: stages}, nil
}

// Run executes the risk chain for one event and returns the finalized
// state. On an idempotency hit the cached state is returned unchanged
// and no stage, audit, or store write happens.
func (w *RiskWorkflow) Run(ctx context.Context, state *RiskState) (*RiskState, error) {
	e := w.engine

	if e.stateStore != nil {
		cached, err := e.stateStore.Get(ctx, TypeRisk, state.EventID)
		if err != nil {
			return nil, err
		}
		if cached != nil {
			e.countCacheHit(TypeRisk)
			return stateFromMap[RiskState](cached)
		}
	}

	err := e.gate(ctx, RiskModelName, RiskPromptName,
		state.TenantID, state.CorrelationID, state.ModelVersion, state.PromptVersion,
		state.appendTrail)
	if err != nil {
		return nil, err
	}

	for _, stage := range w.stages {
		if err := stage.Apply(ctx, state); err != nil {
			e.countFailure(TypeRisk, err)
			return nil, err
		}
	}

	e.countExecution()

	if e.stateStore != nil {
		m, err := stateToMap(state)
		if err != nil {
			return nil, err
		}
		if err := e.stateStore.Set(ctx, TypeRisk, state.EventID, m); err != nil {
			return nil, err
		}
	}
	return state, nil
}

// DefaultRiskStages builds the standard five-stage chain bound to the
// given rules.
func DefaultRiskStages(rules *RuleSet) []RiskStage {
	return []RiskStage{
		{Name: "retrieval", Apply: riskRetrieval},
		{Name: "policy_validation", Apply: riskPolicyValidation(rules)},
		{Name: "risk_scoring", Apply: riskScoring},
		{Name: "guardrails", Apply: riskGuardrails(rules)},
		{Name: "decision", Apply: riskDecision},
	}
}

// riskRetrieval attaches the deterministic reference context for the
// event type.
func riskRetrieval(ctx context.Context, state *RiskState) error {
	et := eventType(state.RawEvent)
	state.RetrievedContext = fmt.Sprintf("reference context for event_type=%s", et)
	state.appendTrail("retrieval", TrailContextRetrieved, map[string]any{
		"event_type": et,
	})
	return nil
}

func riskPolicyValidation(rules *RuleSet) func(ctx context.Context, state *RiskState) error {
	return func(ctx context.Context, state *RiskState) error {
		category := metadataCategory(state.RawEvent)
		flagged, err := rules.Policy.Eval(eventType(state.RawEvent), category, state.RiskScore)
		if err != nil {
			return err
		}
		if flagged {
			state.PolicyResult = PolicyFail
		} else {
			state.PolicyResult = PolicyPass
		}
		state.appendTrail("policy_validation", TrailPolicyEvaluated, map[string]any{
			"category":      category,
			"policy_result": state.PolicyResult,
		})
		return nil
	}
}

// riskScoring assigns the deterministic score for the event type.
func riskScoring(ctx context.Context, state *RiskState) error {
	score := scoreRiskEventType(eventType(state.RawEvent))
	state.RiskScore = &score
	state.appendTrail("risk_scoring", TrailRiskScored, map[string]any{
		"risk_score": score,
	})
	return nil
}

func scoreRiskEventType(et string) float64 {
	switch et {
	case "high_risk":
		return 85.0
	case "low_risk":
		return 15.0
	default:
		return 30.0
	}
}

func riskGuardrails(rules *RuleSet) func(ctx context.Context, state *RiskState) error {
	return func(ctx context.Context, state *RiskState) error {
		within, err := rules.Guardrail.Eval(eventType(state.RawEvent),
			metadataCategory(state.RawEvent), state.RiskScore)
		if err != nil {
			return err
		}
		if within {
			state.GuardrailResult = GuardrailOK
		} else {
			state.GuardrailResult = GuardrailViolation
		}
		state.appendTrail("guardrails", TrailGuardrailChecked, map[string]any{
			"guardrail_result": state.GuardrailResult,
		})
		return nil
	}
}

// riskDecision aggregates the stage results. Check order matters; the
// first match wins.
func riskDecision(ctx context.Context, state *RiskState) error {
	switch {
	case state.GuardrailResult == GuardrailViolation:
		state.FinalDecision = DecisionRejected
	case state.PolicyResult == PolicyFail:
		state.FinalDecision = DecisionRequireApproval
	case state.RiskScore != nil && *state.RiskScore >= 70.0:
		state.FinalDecision = DecisionRequireApproval
	default:
		state.FinalDecision = DecisionApproved
	}
	state.appendTrail("decision", TrailDecisionMade, map[string]any{
		"final_decision": state.FinalDecision,
	})
	return nil
}
