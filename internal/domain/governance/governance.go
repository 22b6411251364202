// Package governance defines the decision model for gating agent actions:
// action complexity classification and the allow/deny/approval decision.
package governance

import (
	"strings"

	"github.com/Strob0t/Warden/internal/domain/agent"
)

// Complexity classifies how consequential an action is, from 1 (read-only)
// to 4 (irreversible or externally visible).
type Complexity int

const (
	ComplexityTrivial  Complexity = 1 // search, read, list
	ComplexityRoutine  Complexity = 2 // analyze, draft
	ComplexityMutating Complexity = 3 // create, update, send
	ComplexityCritical Complexity = 4 // delete, execute, deploy, payment
)

// defaultComplexity is the conservative fallback for unknown action labels.
const defaultComplexity = ComplexityRoutine

// maxActionTypeLen bounds accepted action labels; anything longer is treated
// as unknown rather than matched.
const maxActionTypeLen = 64

// complexityByVerb is the static classification table keyed by the leading
// verb of an action type label.
var complexityByVerb = map[string]Complexity{
	"search": ComplexityTrivial,
	"read":   ComplexityTrivial,
	"list":   ComplexityTrivial,
	"get":    ComplexityTrivial,
	"fetch":  ComplexityTrivial,

	"analyze":   ComplexityRoutine,
	"draft":     ComplexityRoutine,
	"summarize": ComplexityRoutine,
	"review":    ComplexityRoutine,

	"create": ComplexityMutating,
	"update": ComplexityMutating,
	"send":   ComplexityMutating,
	"write":  ComplexityMutating,
	"assign": ComplexityMutating,

	"delete":   ComplexityCritical,
	"execute":  ComplexityCritical,
	"deploy":   ComplexityCritical,
	"payment":  ComplexityCritical,
	"transfer": ComplexityCritical,
	"drop":     ComplexityCritical,
}

// requiredTierByComplexity maps each complexity class to the minimum tier
// allowed to perform it without oversight.
var requiredTierByComplexity = map[Complexity]agent.Tier{
	ComplexityTrivial:  agent.TierStudent,
	ComplexityRoutine:  agent.TierIntern,
	ComplexityMutating: agent.TierSupervised,
	ComplexityCritical: agent.TierAutonomous,
}

// Classify maps an action type label to a complexity class. The verb is the
// first underscore- or dot-separated segment ("send_email" -> "send").
// Unknown or overlong labels fall back to the conservative default instead
// of erroring.
func Classify(actionType string) Complexity {
	label := strings.ToLower(strings.TrimSpace(actionType))
	if label == "" || len(label) > maxActionTypeLen {
		return defaultComplexity
	}
	verb := label
	if i := strings.IndexAny(label, "_.:- "); i > 0 {
		verb = label[:i]
	}
	if c, ok := complexityByVerb[verb]; ok {
		return c
	}
	return defaultComplexity
}

// RequiredTier returns the minimum tier for a complexity class.
func RequiredTier(c Complexity) agent.Tier {
	if t, ok := requiredTierByComplexity[c]; ok {
		return t
	}
	return agent.TierAutonomous
}

// MaxComplexity returns the highest complexity class an agent of the given
// tier may perform without being blocked.
func MaxComplexity(t agent.Tier) Complexity {
	switch t {
	case agent.TierIntern:
		return ComplexityRoutine
	case agent.TierSupervised:
		return ComplexityMutating
	case agent.TierAutonomous:
		return ComplexityCritical
	default:
		return ComplexityTrivial
	}
}

// Verbs returns the known action verbs at or below the given complexity in
// one slice and those above it in another, both sorted by complexity then
// alphabetically. Used to report allowed/restricted actions per agent.
func Verbs(maxAllowed Complexity) (allowed, restricted []string) {
	for c := ComplexityTrivial; c <= ComplexityCritical; c++ {
		for _, v := range verbsByComplexity(c) {
			if c <= maxAllowed {
				allowed = append(allowed, v)
			} else {
				restricted = append(restricted, v)
			}
		}
	}
	return allowed, restricted
}

// verbOrder fixes a stable listing order within each complexity class.
var verbOrder = []string{
	"search", "read", "list", "get", "fetch",
	"analyze", "draft", "summarize", "review",
	"create", "update", "send", "write", "assign",
	"delete", "execute", "deploy", "payment", "transfer", "drop",
}

func verbsByComplexity(c Complexity) []string {
	var out []string
	for _, v := range verbOrder {
		if complexityByVerb[v] == c {
			out = append(out, v)
		}
	}
	return out
}

// Decision is the outcome of evaluating one attempted action. It is
// ephemeral: produced per request, recorded only through the audit trail.
type Decision struct {
	Allowed          bool       `json:"allowed"`
	RequiresApproval bool       `json:"requires_approval"`
	Reason           string     `json:"reason"`
	AgentTier        agent.Tier `json:"agent_status"`
	RequiredTier     agent.Tier `json:"required_status"`
	Complexity       Complexity `json:"action_complexity"`
}

// Capabilities summarizes what an agent may currently do.
type Capabilities struct {
	AgentID           string     `json:"agent_id"`
	MaturityLevel     agent.Tier `json:"maturity_level"`
	ConfidenceScore   float64    `json:"confidence_score"`
	MaxComplexity     Complexity `json:"max_complexity"`
	AllowedActions    []string   `json:"allowed_actions"`
	RestrictedActions []string   `json:"restricted_actions"`
}
