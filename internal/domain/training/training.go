// Package training defines the proposal and session model for remedial
// agent training: capability gap derivation, learning objectives, scenario
// selection, and the confidence boost earned on completion.
package training

import (
	"errors"
	"time"

	"github.com/Strob0t/Warden/internal/domain/agent"
)

// ProposalType identifies what kind of intervention a proposal requests.
// Training is currently the only kind.
type ProposalType string

const TypeTraining ProposalType = "training"

// ProposalStatus is the lifecycle state of a proposal.
// Executed and rejected are terminal.
type ProposalStatus string

const (
	ProposalProposed ProposalStatus = "proposed"
	ProposalApproved ProposalStatus = "approved"
	ProposalRejected ProposalStatus = "rejected"
	ProposalExecuted ProposalStatus = "executed"
)

// TriggerType classifies why an agent was blocked.
type TriggerType string

const (
	TriggerComplexityExceeded TriggerType = "complexity_exceeded"
	TriggerLowConfidence      TriggerType = "low_confidence"
	TriggerRepeatedFailure    TriggerType = "repeated_failure"
)

// Trigger is the blocked-action event that motivates a proposal.
type Trigger struct {
	ID         string      `json:"id"`
	AgentID    string      `json:"agent_id"`
	Type       TriggerType `json:"type"`
	ActionType string      `json:"action_type"`
	Resolved   bool        `json:"resolved"`
	Outcome    string      `json:"outcome,omitempty"`
	CreatedAt  time.Time   `json:"created_at"`
}

// Proposal is a generated training plan awaiting human approval.
type Proposal struct {
	ID             string         `json:"id"`
	AgentID        string         `json:"agent_id"`
	TriggerID      string         `json:"trigger_id"`
	Type           ProposalType   `json:"type"`
	TargetTier     agent.Tier     `json:"target_tier"`
	CapabilityGaps []string       `json:"capability_gaps"`
	Objectives     []string       `json:"objectives"`
	Scenario       string         `json:"scenario"`
	Estimate       Estimate       `json:"estimate"`
	OverrideHours  float64        `json:"override_hours,omitempty"`
	Status         ProposalStatus `json:"status"`
	Summary        string         `json:"summary,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
}

// Estimate is a bounded training duration prediction.
type Estimate struct {
	Hours      float64 `json:"hours"`
	Confidence float64 `json:"confidence"`
	MinHours   float64 `json:"min_hours"`
	MaxHours   float64 `json:"max_hours"`
}

// SessionStatus is the lifecycle state of a training session.
type SessionStatus string

const (
	SessionScheduled SessionStatus = "scheduled"
	SessionRunning   SessionStatus = "running"
	SessionCompleted SessionStatus = "completed"
)

// Session is the executed instance of an approved proposal.
type Session struct {
	ID                    string        `json:"id"`
	ProposalID            string        `json:"proposal_id"`
	AgentID               string        `json:"agent_id"`
	Status                SessionStatus `json:"status"`
	TotalTasks            int           `json:"total_tasks"`
	PerformanceScore      float64       `json:"performance_score"`
	ConfidenceBoost       float64       `json:"confidence_boost"`
	CapabilitiesDeveloped []string      `json:"capabilities_developed"`
	CapabilitiesRemaining []string      `json:"capabilities_remaining"`
	ScheduledStart        time.Time     `json:"scheduled_start"`
	ScheduledEnd          time.Time     `json:"scheduled_end"`
	StartedAt             *time.Time    `json:"started_at,omitempty"`
	CompletedAt           *time.Time    `json:"completed_at,omitempty"`
}

// Outcome reports how a completed session went.
type Outcome struct {
	PerformanceScore      float64  `json:"performance_score"`
	CapabilitiesDeveloped []string `json:"capabilities_developed"`
	Notes                 string   `json:"notes,omitempty"`
}

// Validate checks outcome fields before any state mutation.
func (o *Outcome) Validate() error {
	if o.PerformanceScore < 0 || o.PerformanceScore > 1 {
		return errors.New("performance_score must be in [0, 1]")
	}
	return nil
}

// gapsByTrigger maps each trigger type to the capability gaps it evidences.
var gapsByTrigger = map[TriggerType][]string{
	TriggerComplexityExceeded: {"task decomposition", "risk assessment"},
	TriggerLowConfidence:      {"domain fundamentals", "output verification"},
	TriggerRepeatedFailure:    {"error recovery", "output verification", "risk assessment"},
}

// gapsByCategory maps an agent's domain category to category-specific gaps.
var gapsByCategory = map[string][]string{
	"Finance":    {"regulatory compliance", "transaction reconciliation"},
	"Support":    {"escalation judgment", "tone calibration"},
	"Sales":      {"crm hygiene", "pricing approval limits"},
	"Operations": {"change management", "rollback procedures"},
}

// DeriveGaps merges trigger-type and category gaps, de-duplicated while
// preserving first-seen order.
func DeriveGaps(trigger TriggerType, category string) []string {
	seen := make(map[string]bool)
	var gaps []string
	for _, src := range [][]string{gapsByTrigger[trigger], gapsByCategory[category]} {
		for _, g := range src {
			if !seen[g] {
				seen[g] = true
				gaps = append(gaps, g)
			}
		}
	}
	return gaps
}

// baselineObjectives are included in every proposal regardless of gaps.
var baselineObjectives = []string{
	"demonstrate consistent instruction adherence",
	"surface uncertainty instead of guessing",
}

// maxGapObjectives bounds how many gap-specific objectives a proposal carries.
const maxGapObjectives = 5

// DeriveObjectives builds the ordered objective list: one per gap (capped)
// followed by the fixed baseline objectives.
func DeriveObjectives(gaps []string) []string {
	n := len(gaps)
	if n > maxGapObjectives {
		n = maxGapObjectives
	}
	objectives := make([]string, 0, n+len(baselineObjectives))
	for _, g := range gaps[:n] {
		objectives = append(objectives, "close capability gap: "+g)
	}
	return append(objectives, baselineObjectives...)
}

// scenarioByCategory selects a training scenario template per agent category.
var scenarioByCategory = map[string]string{
	"Finance":    "supervised ledger reconciliation with injected discrepancies",
	"Support":    "ticket triage simulation with escalating customer sentiment",
	"Sales":      "pipeline management drill with approval-gated discounts",
	"Operations": "staged deployment rehearsal with forced rollback",
}

// defaultScenario is used when no category template exists.
const defaultScenario = "general task simulation with graded oversight"

// SelectScenario returns the category's scenario template or the default.
func SelectScenario(category string) string {
	if s, ok := scenarioByCategory[category]; ok {
		return s
	}
	return defaultScenario
}

// BoostFor converts a session performance score into a confidence boost
// using the four-bucket table.
func BoostFor(performance float64) float64 {
	switch {
	case performance < 0.3:
		return 0.05
	case performance < 0.5:
		return 0.10
	case performance < 0.7:
		return 0.15
	default:
		return 0.20
	}
}
