package workflow

import (
	"context"

	"github.com/veridian-labs/govpipe/pkg/audit"
)

// ComplianceStage is one step of the compliance chain.
type ComplianceStage struct {
	Name  string
	Apply func(ctx context.Context, state *ComplianceState) error
}

// ComplianceStageNames is the default chain order.
var ComplianceStageNames = []string{"flag_check", "policy", "decision"}

// ComplianceWorkflow runs the three-stage compliance chain inside the
// shared governance and idempotency envelope.
type ComplianceWorkflow struct {
	engine *engine
	stages []ComplianceStage
}

// NewComplianceWorkflow builds a compliance workflow. The audit logger
// is required; every other collaborator is optional.
func NewComplianceWorkflow(logger audit.Logger, opts ...Option) (*ComplianceWorkflow, error) {
	e, err := newEngine(logger, opts...)
	if err != nil {
		return nil, err
	}
	stages := e.complianceStages
	if stages == nil {
		stages = DefaultComplianceStages(e.rules)
	}
	return &ComplianceWorkflow{engine: e, stages: stages}, nil
}

// Run executes the compliance chain for one event. Semantics match
// RiskWorkflow.Run: cache hit short-circuits, the gate precedes stages,
// stage errors are counted and returned unchanged.
func (w *ComplianceWorkflow) Run(ctx context.Context, state *ComplianceState) (*ComplianceState, error) {
	e := w.engine

	if e.stateStore != nil {
		cached, err := e.stateStore.Get(ctx, TypeCompliance, state.EventID)
		if err != nil {
			return nil, err
		}
		if cached != nil {
			e.countCacheHit(TypeCompliance)
			return stateFromMap[ComplianceState](cached)
		}
	}

	err := e.gate(ctx, ComplianceModelName, CompliancePromptName,
		state.TenantID, state.CorrelationID, "", 0,
		state.appendTrail)
	if err != nil {
		return nil, err
	}

	for _, stage := range w.stages {
		if err := stage.Apply(ctx, state); err != nil {
			e.countFailure(TypeCompliance, err)
			return nil, err
		}
	}

	e.countExecution()

	if e.stateStore != nil {
		m, err := stateToMap(state)
		if err != nil {
			return nil, err
		}
		if err := e.stateStore.Set(ctx, TypeCompliance, state.EventID, m); err != nil {
			return nil, err
		}
	}
	return state, nil
}

// DefaultComplianceStages builds the standard three-stage chain bound to
// the given rules.
func DefaultComplianceStages(rules *RuleSet) []ComplianceStage {
	return []ComplianceStage{
		{Name: "flag_check", Apply: complianceFlagCheck},
		{Name: "policy", Apply: compliancePolicy(rules)},
		{Name: "decision", Apply: complianceDecision},
	}
}

// complianceFlagCheck marks events carrying regulatory flags for
// mandatory approval.
func complianceFlagCheck(ctx context.Context, state *ComplianceState) error {
	if len(state.RegulatoryFlags) > 0 {
		state.ApprovalRequired = true
	}
	state.appendTrail("flag_check", TrailFlagsEvaluated, map[string]any{
		"regulatory_flags":  state.RegulatoryFlags,
		"approval_required": state.ApprovalRequired,
	})
	return nil
}

func compliancePolicy(rules *RuleSet) func(ctx context.Context, state *ComplianceState) error {
	return func(ctx context.Context, state *ComplianceState) error {
		score := scoreComplianceEventType(eventType(state.RawEvent))
		state.RiskScore = &score

		flagged, err := rules.CompliancePolicy.Eval(eventType(state.RawEvent),
			metadataCategory(state.RawEvent), state.RiskScore)
		if err != nil {
			return err
		}
		if flagged {
			state.PolicyResult = PolicyFail
		} else {
			state.PolicyResult = PolicyPass
		}
		state.appendTrail("policy", TrailCompliancePolicyEvaluated, map[string]any{
			"risk_score":    score,
			"policy_result": state.PolicyResult,
		})
		return nil
	}
}

func scoreComplianceEventType(et string) float64 {
	switch et {
	case "low_risk":
		return 15.0
	case "standard":
		return 40.0
	default:
		return 50.0
	}
}

// complianceDecision aggregates in fixed order; the first match wins.
func complianceDecision(ctx context.Context, state *ComplianceState) error {
	switch {
	case state.ApprovalRequired:
		state.FinalDecision = DecisionRequireApproval
	case state.PolicyResult == PolicyFail:
		state.FinalDecision = DecisionRejected
	default:
		state.FinalDecision = DecisionApproved
		state.ApprovalRequired = false
	}
	state.appendTrail("decision", TrailComplianceDecisionMade, map[string]any{
		"final_decision": state.FinalDecision,
	})
	return nil
}
