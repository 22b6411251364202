// Package audit defines the append-only compliance trail model.
package audit

import "time"

// Entry is one immutable audit record. Entries for the same agent are
// strictly non-decreasing in CreatedAt.
type Entry struct {
	ID        string    `json:"id"`
	Actor     string    `json:"actor"`
	AgentID   string    `json:"agent_id"`
	Action    string    `json:"action"`
	Outcome   string    `json:"outcome"`
	Detail    string    `json:"detail,omitempty"`
	RequestID string    `json:"request_id,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Filter narrows an audit query.
type Filter struct {
	AgentID string
	After   *time.Time
	Before  *time.Time
}

// Well-known action names recorded by the governance pipeline.
const (
	ActionDecision          = "governance.decision"
	ActionConfidenceUpdate  = "confidence.update"
	ActionPromotion         = "tier.promotion"
	ActionPromotionPending  = "tier.promotion.pending"
	ActionPromotionConfirm  = "tier.promotion.confirmed"
	ActionProposalCreated   = "training.proposal.created"
	ActionProposalApproved  = "training.proposal.approved"
	ActionSessionCompleted  = "training.session.completed"
	ActionInterventionOpen  = "intervention.submitted"
	ActionInterventionClose = "intervention.resolved"
)
