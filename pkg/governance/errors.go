// Package governance tracks the approval state of models and prompts and
// gates workflow execution on it. Registries persist through an injected
// repository and audit every mutation.
package governance

import "fmt"

// ModelNotApprovedError blocks workflow execution when the declared model
// has no APPROVED record.
type ModelNotApprovedError struct {
	ModelName string
	Version   string
	Message   string
}

func (e *ModelNotApprovedError) Error() string { return e.Message }

func NewModelNotApprovedError(modelName, version string) *ModelNotApprovedError {
	return &ModelNotApprovedError{
		ModelName: modelName,
		Version:   version,
		Message:   fmt.Sprintf("unapproved model %s version %s", modelName, version),
	}
}

// PromptNotApprovedError blocks workflow execution when the declared prompt
// has no APPROVED record.
type PromptNotApprovedError struct {
	PromptName string
	Version    int
	Message    string
}

func (e *PromptNotApprovedError) Error() string { return e.Message }

func NewPromptNotApprovedError(promptName string, version int) *PromptNotApprovedError {
	return &PromptNotApprovedError{
		PromptName: promptName,
		Version:    version,
		Message:    fmt.Sprintf("unapproved prompt %s version %d", promptName, version),
	}
}

// ModelConflictError reports a re-registration of (name, version) with a
// different checksum.
type ModelConflictError struct {
	ModelName string
	Version   string
	Message   string
}

func (e *ModelConflictError) Error() string { return e.Message }

func NewModelConflictError(modelName, version string) *ModelConflictError {
	return &ModelConflictError{
		ModelName: modelName,
		Version:   version,
		Message: fmt.Sprintf("model %s version %s already registered with a different checksum",
			modelName, version),
	}
}

// InvalidModelStateTransitionError reports an approval-state transition
// outside REGISTERED -> APPROVED -> DEPRECATED.
type InvalidModelStateTransitionError struct {
	From    ApprovalStatus
	To      ApprovalStatus
	Message string
}

func (e *InvalidModelStateTransitionError) Error() string { return e.Message }

func NewInvalidModelStateTransitionError(from, to ApprovalStatus) *InvalidModelStateTransitionError {
	return &InvalidModelStateTransitionError{
		From:    from,
		To:      to,
		Message: fmt.Sprintf("invalid approval state transition from %s to %s", from, to),
	}
}
