// Package agent defines the governed agent record and its maturity tiers.
package agent

import (
	"fmt"
	"time"
)

// Tier is an agent's maturity level. Tiers are strictly ordered; an agent
// earns a higher tier through demonstrated trustworthiness and may never
// skip a tier in a single promotion.
type Tier string

const (
	TierStudent    Tier = "student"
	TierIntern     Tier = "intern"
	TierSupervised Tier = "supervised"
	TierAutonomous Tier = "autonomous"
)

// tierOrder maps each tier to its rank. Higher rank means more trust.
var tierOrder = map[Tier]int{
	TierStudent:    0,
	TierIntern:     1,
	TierSupervised: 2,
	TierAutonomous: 3,
}

// Rank returns the ordinal position of the tier, or -1 for an unknown tier.
func (t Tier) Rank() int {
	r, ok := tierOrder[t]
	if !ok {
		return -1
	}
	return r
}

// Valid reports whether t is a known tier.
func (t Tier) Valid() bool {
	_, ok := tierOrder[t]
	return ok
}

// Next returns the adjacent higher tier. The top tier returns itself.
func (t Tier) Next() Tier {
	switch t {
	case TierStudent:
		return TierIntern
	case TierIntern:
		return TierSupervised
	case TierSupervised:
		return TierAutonomous
	default:
		return t
	}
}

// ParseTier converts a string into a Tier.
func ParseTier(s string) (Tier, error) {
	t := Tier(s)
	if !t.Valid() {
		return "", fmt.Errorf("unknown tier %q", s)
	}
	return t, nil
}

// Status represents the lifecycle state of an agent record.
// Agents are never hard-deleted; retirement is a soft status.
type Status string

const (
	StatusActive  Status = "active"
	StatusRetired Status = "retired"
)

// Record is the durable trust record for a governed agent.
type Record struct {
	ID              string    `json:"id"`
	Signature       string    `json:"signature"`
	Name            string    `json:"name"`
	Category        string    `json:"category"`
	ConfidenceScore float64   `json:"confidence_score"`
	Tier            Tier      `json:"tier"`
	PendingTier     Tier      `json:"pending_tier,omitempty"`
	ExecutionCount  int       `json:"execution_count"`
	SuccessCount    int       `json:"success_count"`
	Status          Status    `json:"status"`
	Version         int       `json:"version"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// SuccessRate returns the fraction of recorded executions that succeeded.
// Zero executions yield a rate of 0.
func (r *Record) SuccessRate() float64 {
	if r.ExecutionCount == 0 {
		return 0
	}
	return float64(r.SuccessCount) / float64(r.ExecutionCount)
}

// PromotionGate holds the evidence an agent must accumulate before it may
// advance past a score threshold into the next tier.
type PromotionGate struct {
	MinScore       float64
	MinExecutions  int
	MinSuccessRate float64
	RequireAdmin   bool
}

// gates lists the requirements for each adjacent promotion, keyed by the
// tier being promoted from.
var gates = map[Tier]PromotionGate{
	TierStudent:    {MinScore: 0.5, MinExecutions: 50, MinSuccessRate: 0.7},
	TierIntern:     {MinScore: 0.7, MinExecutions: 100, MinSuccessRate: 0.8},
	TierSupervised: {MinScore: 0.9, MinExecutions: 200, MinSuccessRate: 0.9, RequireAdmin: true},
}

// GateFor returns the promotion gate applied when leaving the given tier.
// The top tier has no gate.
func GateFor(from Tier) (PromotionGate, bool) {
	g, ok := gates[from]
	return g, ok
}

// EligibleForPromotion reports whether the record satisfies the score
// threshold and evidence gate for advancing to the next tier. Admin
// confirmation, when required, is handled separately by the caller.
func (r *Record) EligibleForPromotion() bool {
	g, ok := GateFor(r.Tier)
	if !ok {
		return false
	}
	return r.ConfidenceScore >= g.MinScore &&
		r.ExecutionCount >= g.MinExecutions &&
		r.SuccessRate() >= g.MinSuccessRate
}

// ClampScore bounds a confidence score to [0, 1].
func ClampScore(s float64) float64 {
	if s < 0 {
		return 0
	}
	if s > 1 {
		return 1
	}
	return s
}
