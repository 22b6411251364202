// Package intervention defines the human approval gate wrapped around
// blocked decisions and training proposals.
package intervention

import (
	"errors"
	"time"
)

// SubjectKind identifies what a pending intervention wraps.
type SubjectKind string

const (
	SubjectDecision SubjectKind = "decision"
	SubjectProposal SubjectKind = "proposal"
)

// Status is the resolution state of an intervention. An intervention
// resolves at most once; approved and rejected are terminal.
type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
)

// Role is an operator's permission level for resolving interventions.
type Role string

const (
	RoleOperator Role = "operator"
	RoleTeamLead Role = "team_lead"
	RoleAdmin    Role = "admin"
)

// roleOrder ranks roles for minimum-role checks.
var roleOrder = map[Role]int{
	RoleOperator: 0,
	RoleTeamLead: 1,
	RoleAdmin:    2,
}

// Rank returns the ordinal position of a role, or -1 for an unknown role.
func (r Role) Rank() int {
	n, ok := roleOrder[r]
	if !ok {
		return -1
	}
	return n
}

// AtLeast reports whether r meets or exceeds the minimum role.
func (r Role) AtLeast(min Role) bool {
	return r.Rank() >= 0 && r.Rank() >= min.Rank()
}

// Action is one pending human approval unit. SubjectID doubles as the
// idempotency key: at most one action exists per subject.
type Action struct {
	ID           string      `json:"id"`
	SubjectKind  SubjectKind `json:"subject_kind"`
	SubjectID    string      `json:"subject_id"`
	AgentID      string      `json:"agent_id"`
	Detail       string      `json:"detail"`
	Status       Status      `json:"status"`
	ApproverID   string      `json:"approver_id,omitempty"`
	ApproverRole Role        `json:"approver_role,omitempty"`
	Reason       string      `json:"reason,omitempty"`
	CreatedAt    time.Time   `json:"created_at"`
	ResolvedAt   *time.Time  `json:"resolved_at,omitempty"`
}

// Resolved reports whether the action has reached a terminal status.
func (a *Action) Resolved() bool {
	return a.Status != StatusPending
}

// ValidateRejection checks a rejection reason before any state mutation.
func ValidateRejection(reason string) error {
	if reason == "" {
		return errors.New("rejection reason is required")
	}
	return nil
}
