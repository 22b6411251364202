package ws

import (
	"context"
	"encoding/json"
	"log/slog"
)

// Event type constants for WebSocket messages.
const (
	EventDecisionIssued       = "decision.issued"
	EventInterventionPending  = "intervention.pending"
	EventInterventionResolved = "intervention.resolved"
	EventTierPromoted         = "agent.tier.promoted"
)

// InterventionEvent is broadcast when an intervention opens or resolves.
type InterventionEvent struct {
	ActionID string `json:"action_id"`
	AgentID  string `json:"agent_id"`
	Kind     string `json:"kind"`
	Status   string `json:"status"`
	Detail   string `json:"detail,omitempty"`
}

// TierEvent is broadcast when an agent changes tier.
type TierEvent struct {
	AgentID string `json:"agent_id"`
	Tier    string `json:"tier"`
}

// DecisionEvent is broadcast when a decision needs a human in the loop.
type DecisionEvent struct {
	AgentID    string `json:"agent_id"`
	ActionType string `json:"action_type"`
	Allowed    bool   `json:"allowed"`
	Reason     string `json:"reason"`
}

// BroadcastEvent is a convenience method that marshals a typed event and broadcasts it.
func (h *Hub) BroadcastEvent(ctx context.Context, eventType string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		slog.Error("marshal ws event payload", "type", eventType, "error", err)
		return
	}

	h.Broadcast(ctx, Message{
		Type:    eventType,
		Payload: json.RawMessage(data),
	})
}
