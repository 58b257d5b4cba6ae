// Package domain holds the event entities, their lifecycle rules, and the
// pure validators that guard them. Nothing in this package performs I/O.
package domain

import "fmt"

// DomainError is the root of the domain error taxonomy. Every domain
// failure carries a human-readable message and can be matched with
// errors.As against its concrete type or any ancestor.
type DomainError struct {
	Message string
}

func (e *DomainError) Error() string { return e.Message }

// DomainValidationError covers all validation failures. The specific
// validation errors below wrap it, so errors.As(err, &*DomainValidationError)
// matches any of them.
type DomainValidationError struct {
	*DomainError
}

func (e *DomainValidationError) Unwrap() error { return e.DomainError }

// NewDomainValidationError builds a generic validation error.
func NewDomainValidationError(msg string) *DomainValidationError {
	return &DomainValidationError{&DomainError{Message: msg}}
}

// InvalidStatusTransitionError is raised when an event is moved outside the
// status transition matrix. From and To hold the offending statuses.
type InvalidStatusTransitionError struct {
	*DomainValidationError
	From EventStatus
	To   EventStatus
}

func (e *InvalidStatusTransitionError) Unwrap() error { return e.DomainValidationError }

func NewInvalidStatusTransitionError(from, to EventStatus) *InvalidStatusTransitionError {
	return &InvalidStatusTransitionError{
		DomainValidationError: NewDomainValidationError(
			fmt.Sprintf("invalid status transition from %s to %s", from, to)),
		From: from,
		To:   to,
	}
}

// InvalidTenantError is raised for empty or whitespace-only tenant ids.
type InvalidTenantError struct {
	*DomainValidationError
}

func (e *InvalidTenantError) Unwrap() error { return e.DomainValidationError }

func NewInvalidTenantError(msg string) *InvalidTenantError {
	return &InvalidTenantError{NewDomainValidationError(msg)}
}

// RiskThresholdViolationError is raised for risk scores outside [0, 100].
type RiskThresholdViolationError struct {
	*DomainValidationError
	Score float64
}

func (e *RiskThresholdViolationError) Unwrap() error { return e.DomainValidationError }

func NewRiskThresholdViolationError(score float64) *RiskThresholdViolationError {
	return &RiskThresholdViolationError{
		DomainValidationError: NewDomainValidationError(fmt.Sprintf(
			"risk_score must be between %g and %g, got %g", RiskScoreMin, RiskScoreMax, score)),
		Score: score,
	}
}

// InvalidMetadataError is raised when event metadata cannot be represented
// as JSON.
type InvalidMetadataError struct {
	*DomainValidationError
}

func (e *InvalidMetadataError) Unwrap() error { return e.DomainValidationError }

func NewInvalidMetadataError(msg string) *InvalidMetadataError {
	return &InvalidMetadataError{NewDomainValidationError(msg)}
}

// IdempotencyConflictError reports a re-execution of an event id whose
// finalized state no longer matches what a concurrent run produced.
type IdempotencyConflictError struct {
	EventID string
	Message string
}

func (e *IdempotencyConflictError) Error() string { return e.Message }

func NewIdempotencyConflictError(eventID, msg string) *IdempotencyConflictError {
	return &IdempotencyConflictError{EventID: eventID, Message: msg}
}
