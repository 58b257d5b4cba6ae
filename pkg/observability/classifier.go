// Package observability provides failure classification and metrics
// collection for the governance pipeline, with optional OTLP export.
package observability

import (
	"errors"

	"github.com/veridian-labs/govpipe/pkg/domain"
	"github.com/veridian-labs/govpipe/pkg/governance"
)

// FailureCategory buckets workflow failures for metrics labeling.
type FailureCategory string

const (
	CategoryValidation FailureCategory = "VALIDATION_ERROR"
	CategoryGovernance FailureCategory = "GOVERNANCE_ERROR"
	CategoryWorkflow   FailureCategory = "WORKFLOW_ERROR"
	CategoryUnknown    FailureCategory = "UNKNOWN_ERROR"
)

// Classifier maps errors to failure categories.
type Classifier interface {
	Classify(err error) FailureCategory
}

// FailureClassifier classifies by error type, walking wrapped chains.
// Classification is stable: the category depends only on the error's
// type, never on message content or call site.
type FailureClassifier struct{}

func NewFailureClassifier() *FailureClassifier {
	return &FailureClassifier{}
}

func (c *FailureClassifier) Classify(err error) FailureCategory {
	if err == nil {
		return CategoryUnknown
	}

	var validation *domain.DomainValidationError
	if errors.As(err, &validation) {
		return CategoryValidation
	}

	var modelErr *governance.ModelNotApprovedError
	var promptErr *governance.PromptNotApprovedError
	if errors.As(err, &modelErr) || errors.As(err, &promptErr) {
		return CategoryGovernance
	}

	var conflict *domain.IdempotencyConflictError
	if errors.As(err, &conflict) {
		return CategoryWorkflow
	}

	return CategoryUnknown
}
