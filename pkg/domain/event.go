package domain

import "time"

// EventStatus is the closed lifecycle status set for governance events.
type EventStatus string

const (
	StatusReceived   EventStatus = "received"
	StatusCreated    EventStatus = "created"
	StatusValidated  EventStatus = "validated"
	StatusProcessing EventStatus = "processing"
	StatusApproved   EventStatus = "approved"
	StatusRejected   EventStatus = "rejected"
	StatusFailed     EventStatus = "failed"
)

// AllStatuses lists every lifecycle status. Used by validators and tests
// that sweep the transition matrix.
var AllStatuses = []EventStatus{
	StatusReceived,
	StatusCreated,
	StatusValidated,
	StatusProcessing,
	StatusApproved,
	StatusRejected,
	StatusFailed,
}

// statusTransitions is the canonical transition matrix. The entity method
// and ValidateStatusTransition both consult this single map; terminal
// statuses map to an empty set.
var statusTransitions = map[EventStatus]map[EventStatus]bool{
	StatusReceived:   {StatusValidated: true, StatusRejected: true},
	StatusCreated:    {StatusValidated: true, StatusRejected: true},
	StatusValidated:  {StatusProcessing: true},
	StatusProcessing: {StatusApproved: true, StatusRejected: true, StatusFailed: true},
	StatusApproved:   {},
	StatusRejected:   {},
	StatusFailed:     {},
}

// IsTerminal reports whether the status has no outgoing transitions.
func (s EventStatus) IsTerminal() bool {
	return len(statusTransitions[s]) == 0
}

// CanTransition reports whether from -> to is inside the matrix.
func CanTransition(from, to EventStatus) bool {
	return statusTransitions[from][to]
}

// BaseEvent is the common shape of every governance event.
type BaseEvent struct {
	EventID   string         `json:"event_id"`
	TenantID  string         `json:"tenant_id"`
	Status    EventStatus    `json:"status"`
	CreatedAt time.Time      `json:"created_at"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// TransitionTo moves the event to the target status. Transitions outside
// the matrix return *InvalidStatusTransitionError and leave the status
// unchanged.
func (e *BaseEvent) TransitionTo(to EventStatus) error {
	if !CanTransition(e.Status, to) {
		return NewInvalidStatusTransitionError(e.Status, to)
	}
	e.Status = to
	return nil
}

// RiskEvent is a business event subject to the risk workflow.
type RiskEvent struct {
	BaseEvent
	RiskScore *float64 `json:"risk_score,omitempty"`
	Category  string   `json:"category,omitempty"`
}

// ComplianceEvent is a business event subject to the compliance workflow.
type ComplianceEvent struct {
	BaseEvent
	RegulationRef  string `json:"regulation_ref,omitempty"`
	ComplianceType string `json:"compliance_type,omitempty"`
}

// RiskEventCreateRequest is the inbound payload for creating a risk event.
type RiskEventCreateRequest struct {
	TenantID  string         `json:"tenant_id"`
	RiskScore *float64       `json:"risk_score,omitempty"`
	Category  string         `json:"category,omitempty"`
	Version   string         `json:"version"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// ComplianceEventCreateRequest is the inbound payload for creating a
// compliance event.
type ComplianceEventCreateRequest struct {
	TenantID       string         `json:"tenant_id"`
	RegulationRef  string         `json:"regulation_ref,omitempty"`
	ComplianceType string         `json:"compliance_type,omitempty"`
	Version        string         `json:"version"`
	Metadata       map[string]any `json:"metadata,omitempty"`
}
