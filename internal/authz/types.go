package authz

import (
	"encoding/json"
	"time"
)

// Status is the lifecycle state of an approval request.
type Status string

const (
	StatusPending   Status = "pending"
	StatusApproved  Status = "approved"
	StatusRejected  Status = "rejected"
	StatusCancelled Status = "cancelled"
)

// Terminal reports whether no further transition is allowed.
func (s Status) Terminal() bool {
	return s == StatusApproved || s == StatusRejected || s == StatusCancelled
}

// Decision is an approver's verdict.
type Decision string

const (
	DecisionApprove Decision = "approve"
	DecisionReject  Decision = "reject"
)

// Status maps the decision onto the resulting request status.
func (d Decision) Status() (Status, bool) {
	switch d {
	case DecisionApprove:
		return StatusApproved, true
	case DecisionReject:
		return StatusRejected, true
	}
	return "", false
}

// Request is a deferred privileged action.
type Request struct {
	ID             string          `json:"id"`
	RequesterID    string          `json:"requester_id"`
	Action         string          `json:"action"`
	ResourceType   string          `json:"resource_type"`
	ResourceID     string          `json:"resource_id,omitempty"`
	TenantID       string          `json:"tenant_id,omitempty"`
	Details        json.RawMessage `json:"details,omitempty"`
	ThresholdLevel int             `json:"threshold_level"`
	Status         Status          `json:"status"`
	ApproverID     string          `json:"approver_id,omitempty"`
	Notes          string          `json:"notes,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
	DecidedAt      *time.Time      `json:"decided_at,omitempty"`
	ConsumedAt     *time.Time      `json:"consumed_at,omitempty"`
}

// Action describes a gated operation a principal is attempting.
type Action struct {
	Name         string
	ResourceType string
	ResourceID   string
	TenantID     string
	Details      any
}
