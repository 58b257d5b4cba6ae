package workflow

import (
	"fmt"

	"github.com/google/cel-go/cel"
)

// Default rule expressions. Each evaluates to a boolean over the inputs
// event_type, category, and risk_score.
const (
	// DefaultPolicyRule flags an event whose category fails policy.
	DefaultPolicyRule = `category == "sensitive"`
	// DefaultGuardrailRule holds while the score is inside the guardrail.
	DefaultGuardrailRule = `risk_score <= 90.0`
	// DefaultComplianceRule flags a score that fails compliance policy.
	DefaultComplianceRule = `risk_score >= 80.0`
)

// Rule is a compiled CEL predicate. Compilation happens once; evaluation
// is bounded by a cost limit so a misconfigured expression cannot stall
// a stage.
type Rule struct {
	expr    string
	program cel.Program
}

// NewRule compiles a boolean CEL expression over event_type (string),
// category (string), and risk_score (double).
func NewRule(expr string) (*Rule, error) {
	env, err := cel.NewEnv(
		cel.Variable("event_type", cel.StringType),
		cel.Variable("category", cel.StringType),
		cel.Variable("risk_score", cel.DoubleType),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create rule environment: %w", err)
	}

	ast, issues := env.Compile(expr)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("failed to compile rule %q: %w", expr, issues.Err())
	}
	if ast.OutputType() != cel.BoolType {
		return nil, fmt.Errorf("rule %q must evaluate to a boolean, got %s", expr, ast.OutputType())
	}

	program, err := env.Program(ast,
		cel.InterruptCheckFrequency(100),
		cel.CostLimit(10000),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to build rule program: %w", err)
	}
	return &Rule{expr: expr, program: program}, nil
}

// Eval runs the rule against stage inputs. A nil risk score evaluates
// as 0.
func (r *Rule) Eval(eventType, category string, riskScore *float64) (bool, error) {
	score := 0.0
	if riskScore != nil {
		score = *riskScore
	}
	out, _, err := r.program.Eval(map[string]any{
		"event_type": eventType,
		"category":   category,
		"risk_score": score,
	})
	if err != nil {
		return false, fmt.Errorf("failed to evaluate rule %q: %w", r.expr, err)
	}
	result, ok := out.Value().(bool)
	if !ok {
		return false, fmt.Errorf("rule %q returned non-boolean %T", r.expr, out.Value())
	}
	return result, nil
}

// Expr returns the source expression.
func (r *Rule) Expr() string { return r.expr }

// RuleSet bundles the three stage predicates.
type RuleSet struct {
	// Policy fires when the event fails the risk policy.
	Policy *Rule
	// Guardrail holds while the scored event is acceptable.
	Guardrail *Rule
	// CompliancePolicy fires when the score fails compliance policy.
	CompliancePolicy *Rule
}

// DefaultRules compiles the built-in rule expressions.
func DefaultRules() (*RuleSet, error) {
	policy, err := NewRule(DefaultPolicyRule)
	if err != nil {
		return nil, err
	}
	guardrail, err := NewRule(DefaultGuardrailRule)
	if err != nil {
		return nil, err
	}
	compliance, err := NewRule(DefaultComplianceRule)
	if err != nil {
		return nil, err
	}
	return &RuleSet{Policy: policy, Guardrail: guardrail, CompliancePolicy: compliance}, nil
}
