package workflow

import (
	"context"
	"fmt"

	"github.com/veridian-labs/govpipe/pkg/audit"
	"github.com/veridian-labs/govpipe/pkg/governance"
	"github.com/veridian-labs/govpipe/pkg/observability"
)

// Workflow gate identities. Version pins on the state override the
// defaults checked here.
const (
	RiskModelName        = "risk-model"
	RiskPromptName       = "risk-prompt"
	ComplianceModelName  = "compliance-model"
	CompliancePromptName = "compliance-prompt"

	DefaultModelVersion  = "1.0"
	DefaultPromptVersion = 1
)

// StateStore is the idempotency cache as seen by the engine. A nil store
// disables caching and every run executes its stages.
type StateStore interface {
	Get(ctx context.Context, workflowType, eventID string) (map[string]any, error)
	Set(ctx context.Context, workflowType, eventID string, state map[string]any) error
}

// Collector receives engine counters. Satisfied by
// observability.MetricsCollector.
type Collector interface {
	Inc(name string)
	IncLabeled(name string, labels map[string]string)
}

// Classifier buckets stage failures for the failure counter.
type Classifier interface {
	Classify(err error) observability.FailureCategory
}

// ModelGate and PromptGate are the registry predicates the governance
// gate consults. Satisfied by governance.ModelRegistry / PromptRegistry.
type ModelGate interface {
	IsApproved(ctx context.Context, name, version string) (bool, error)
}

type PromptGate interface {
	IsApproved(ctx context.Context, name string, version int) (bool, error)
}

// engine holds the collaborators shared by both workflows. Absent
// optional collaborators disable their effect.
type engine struct {
	auditLogger audit.Logger
	stateStore  StateStore
	metrics     Collector
	classifier  Classifier
	models      ModelGate
	prompts     PromptGate
	rules       *RuleSet

	riskStages       []RiskStage
	complianceStages []ComplianceStage
}

// Option configures a workflow.
type Option func(*engine)

func WithStateStore(s StateStore) Option {
	return func(e *engine) { e.stateStore = s }
}

func WithMetrics(c Collector) Option {
	return func(e *engine) { e.metrics = c }
}

func WithClassifier(c Classifier) Option {
	return func(e *engine) { e.classifier = c }
}

func WithModelRegistry(g ModelGate) Option {
	return func(e *engine) { e.models = g }
}

func WithPromptRegistry(g PromptGate) Option {
	return func(e *engine) { e.prompts = g }
}

// WithRules overrides the compiled stage predicates.
func WithRules(rules *RuleSet) Option {
	return func(e *engine) { e.rules = rules }
}

// WithRiskStages replaces the default risk chain. The replacement list
// runs in the given order; tests use this to inject failing stages.
func WithRiskStages(stages []RiskStage) Option {
	return func(e *engine) { e.riskStages = stages }
}

// WithComplianceStages replaces the default compliance chain.
func WithComplianceStages(stages []ComplianceStage) Option {
	return func(e *engine) { e.complianceStages = stages }
}

func newEngine(logger audit.Logger, opts ...Option) (*engine, error) {
	if logger == nil {
		return nil, fmt.Errorf("audit logger is required")
	}
	e := &engine{
		auditLogger: logger,
		classifier:  observability.NewFailureClassifier(),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.rules == nil {
		rules, err := DefaultRules()
		if err != nil {
			return nil, err
		}
		e.rules = rules
	}
	return e, nil
}

// gate enforces model and prompt approval. On a veto it emits the
// GOVERNANCE_VIOLATION audit, appends the matching trail entry, and then
// returns the governance error.
func (e *engine) gate(ctx context.Context, modelName, promptName string,
	tenantID, correlationID, modelVersion string, promptVersion int,
	appendTrail func(node, action string, extra map[string]any)) error {

	if e.models != nil {
		if modelVersion == "" {
			modelVersion = DefaultModelVersion
		}
		approved, err := e.models.IsApproved(ctx, modelName, modelVersion)
		if err != nil {
			return err
		}
		if !approved {
			gateErr := governance.NewModelNotApprovedError(modelName, modelVersion)
			if err := e.recordViolation(ctx, tenantID, correlationID, "model", modelName,
				gateErr.Message, appendTrail); err != nil {
				return err
			}
			return gateErr
		}
	}

	if e.prompts != nil {
		if promptVersion <= 0 {
			promptVersion = DefaultPromptVersion
		}
		approved, err := e.prompts.IsApproved(ctx, promptName, promptVersion)
		if err != nil {
			return err
		}
		if !approved {
			gateErr := governance.NewPromptNotApprovedError(promptName, promptVersion)
			if err := e.recordViolation(ctx, tenantID, correlationID, "prompt", promptName,
				gateErr.Message, appendTrail); err != nil {
				return err
			}
			return gateErr
		}
	}
	return nil
}

func (e *engine) recordViolation(ctx context.Context, tenantID, correlationID,
	resourceType, resourceID, reason string,
	appendTrail func(node, action string, extra map[string]any)) error {

	err := e.auditLogger.LogAction(ctx, audit.Action{
		Action:        audit.ActionGovernanceViolation,
		TenantID:      tenantID,
		CorrelationID: correlationID,
		ResourceType:  resourceType,
		ResourceID:    resourceID,
		Reason:        reason,
	})
	if err != nil {
		return err
	}
	appendTrail("governance_gate", audit.ActionGovernanceViolation, map[string]any{
		"resource_type": resourceType,
		"resource_id":   resourceID,
		"reason":        reason,
	})
	return nil
}

func (e *engine) countFailure(workflowType string, err error) {
	if e.metrics == nil {
		return
	}
	e.metrics.IncLabeled(observability.MetricFailures, map[string]string{
		"category": string(e.classifier.Classify(err)),
		"workflow": workflowType,
	})
}

func (e *engine) countExecution() {
	if e.metrics != nil {
		e.metrics.Inc(observability.MetricWorkflowExecutions)
	}
}

func (e *engine) countCacheHit(workflowType string) {
	if e.metrics != nil {
		e.metrics.IncLabeled(observability.MetricCacheHits, map[string]string{
			"workflow": workflowType,
		})
	}
}
