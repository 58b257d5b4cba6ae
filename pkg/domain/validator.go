package domain

import (
	"encoding/json"
	"strings"
)

// Risk score bounds. Scores outside this range violate the risk threshold.
const (
	RiskScoreMin = 0.0
	RiskScoreMax = 100.0
)

// ValidateTenantID fails with *InvalidTenantError when the tenant id is
// empty after trimming whitespace.
func ValidateTenantID(tenantID string) error {
	if strings.TrimSpace(tenantID) == "" {
		return NewInvalidTenantError("tenant_id must not be empty")
	}
	return nil
}

// ValidateRiskScore accepts a nil score; a present score must lie in
// [RiskScoreMin, RiskScoreMax].
func ValidateRiskScore(score *float64) error {
	if score == nil {
		return nil
	}
	if *score < RiskScoreMin || *score > RiskScoreMax {
		return NewRiskThresholdViolationError(*score)
	}
	return nil
}

// ValidateMetadataJSONSerializable accepts nil metadata; present metadata
// must round-trip through encoding/json.
func ValidateMetadataJSONSerializable(metadata map[string]any) error {
	if metadata == nil {
		return nil
	}
	if _, err := json.Marshal(metadata); err != nil {
		return NewInvalidMetadataError("metadata must be JSON-serializable: " + err.Error())
	}
	return nil
}

// ValidateStatusTransition checks from -> to against the transition matrix.
func ValidateStatusTransition(from, to EventStatus) error {
	if !CanTransition(from, to) {
		return NewInvalidStatusTransitionError(from, to)
	}
	return nil
}

func validateVersion(version string) error {
	if strings.TrimSpace(version) == "" {
		return NewDomainValidationError("version must not be empty")
	}
	return nil
}

// ValidateRiskEventCreateRequest runs the tenant, risk-score, and version
// checks over an inbound risk create request.
func ValidateRiskEventCreateRequest(req RiskEventCreateRequest) error {
	if err := ValidateTenantID(req.TenantID); err != nil {
		return err
	}
	if err := ValidateRiskScore(req.RiskScore); err != nil {
		return err
	}
	if err := ValidateMetadataJSONSerializable(req.Metadata); err != nil {
		return err
	}
	return validateVersion(req.Version)
}

// ValidateComplianceEventCreateRequest runs the tenant and version checks
// over an inbound compliance create request.
func ValidateComplianceEventCreateRequest(req ComplianceEventCreateRequest) error {
	if err := ValidateTenantID(req.TenantID); err != nil {
		return err
	}
	if err := ValidateMetadataJSONSerializable(req.Metadata); err != nil {
		return err
	}
	return validateVersion(req.Version)
}

// ValidateRiskEvent applies the same business rules to a materialized
// risk event entity.
func ValidateRiskEvent(ev RiskEvent) error {
	if err := ValidateTenantID(ev.TenantID); err != nil {
		return err
	}
	if err := ValidateRiskScore(ev.RiskScore); err != nil {
		return err
	}
	return ValidateMetadataJSONSerializable(ev.Metadata)
}

// ValidateComplianceEvent applies the same business rules to a
// materialized compliance event entity.
func ValidateComplianceEvent(ev ComplianceEvent) error {
	if err := ValidateTenantID(ev.TenantID); err != nil {
		return err
	}
	return ValidateMetadataJSONSerializable(ev.Metadata)
}
