package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"

	wotel "github.com/Strob0t/Warden/internal/adapter/otel"
	"github.com/Strob0t/Warden/internal/domain"
	"github.com/Strob0t/Warden/internal/domain/agent"
	"github.com/Strob0t/Warden/internal/domain/audit"
	"github.com/Strob0t/Warden/internal/domain/training"
	"github.com/Strob0t/Warden/internal/port/database"
	"github.com/Strob0t/Warden/internal/port/messagequeue"
)

// Duration estimate weights and constants.
const (
	baseHours      = 40.0
	hoursPerGap    = 4.0
	weightBase     = 0.2
	weightConfGap  = 0.2
	weightGaps     = 0.25
	weightHistory  = 0.25
	weightLearning = 0.1

	estimateMinFactor = 0.7
	estimateMaxFactor = 1.5

	// Estimate confidence grows with comparable agents found.
	estimateConfFloor   = 0.3
	estimateConfPerComp = 0.1
	estimateConfCap     = 0.9
	degradedConfCap     = 0.5
)

// TrainingService generates training proposals for blocked agents,
// estimates their duration, and feeds session outcomes back into the
// confidence lifecycle.
type TrainingService struct {
	store              database.Store
	confidence         *ConfidenceService
	recorder           Recorder
	queue              messagequeue.Queue
	metrics            *wotel.Metrics
	comparablesTimeout time.Duration
	hoursPerDay        float64
	now                func() time.Time // for testing
}

// NewTrainingService creates a TrainingService.
func NewTrainingService(store database.Store, confidence *ConfidenceService, recorder Recorder, comparablesTimeout time.Duration, hoursPerDay float64) *TrainingService {
	if hoursPerDay <= 0 {
		hoursPerDay = 8
	}
	return &TrainingService{
		store:              store,
		confidence:         confidence,
		recorder:           recorder,
		comparablesTimeout: comparablesTimeout,
		hoursPerDay:        hoursPerDay,
		now:                time.Now,
	}
}

// SetQueue attaches an event bus for training events.
func (s *TrainingService) SetQueue(q messagequeue.Queue) { s.queue = q }

// SetMetrics attaches metric instruments.
func (s *TrainingService) SetMetrics(m *wotel.Metrics) { s.metrics = m }

// ProposalRequest describes the blocked action that motivates a proposal.
type ProposalRequest struct {
	AgentID    string               `json:"agent_id"`
	Trigger    training.TriggerType `json:"trigger"`
	ActionType string               `json:"action_type"`
	TargetTier agent.Tier           `json:"target_tier"`
}

// CreateProposal records the blocked trigger and generates a training
// proposal: capability gaps from the trigger and category tables,
// objectives, a scenario template, and a duration estimate.
func (s *TrainingService) CreateProposal(ctx context.Context, req ProposalRequest) (*training.Proposal, error) {
	if req.AgentID == "" {
		return nil, fmt.Errorf("%w: agent_id is required", domain.ErrValidation)
	}
	if !req.TargetTier.Valid() {
		return nil, fmt.Errorf("%w: unknown target tier %q", domain.ErrValidation, req.TargetTier)
	}

	rec, err := s.store.GetAgent(ctx, req.AgentID)
	if err != nil {
		return nil, fmt.Errorf("create proposal for %s: %w", req.AgentID, err)
	}

	trig := &training.Trigger{
		ID:         uuid.NewString(),
		AgentID:    req.AgentID,
		Type:       req.Trigger,
		ActionType: req.ActionType,
		CreatedAt:  s.now(),
	}
	if err := s.store.CreateTrigger(ctx, trig); err != nil {
		return nil, fmt.Errorf("create trigger: %w", err)
	}

	gaps := training.DeriveGaps(req.Trigger, rec.Category)
	estimate := s.estimate(ctx, rec, gaps, req.TargetTier)

	p := &training.Proposal{
		ID:             uuid.NewString(),
		AgentID:        req.AgentID,
		TriggerID:      trig.ID,
		Type:           training.TypeTraining,
		TargetTier:     req.TargetTier,
		CapabilityGaps: gaps,
		Objectives:     training.DeriveObjectives(gaps),
		Scenario:       training.SelectScenario(rec.Category),
		Estimate:       estimate,
		Status:         training.ProposalProposed,
		CreatedAt:      s.now(),
		UpdatedAt:      s.now(),
	}
	if err := s.store.CreateProposal(ctx, p); err != nil {
		return nil, fmt.Errorf("create proposal: %w", err)
	}

	s.recorder.Record(ctx, audit.Entry{
		Actor:   "training-workflow",
		AgentID: req.AgentID,
		Action:  audit.ActionProposalCreated,
		Outcome: p.ID,
		Detail:  fmt.Sprintf("trigger=%s gaps=%d est_hours=%.1f", req.Trigger, len(gaps), estimate.Hours),
	})
	s.publish(messagequeue.SubjectProposalCreated, p)

	return p, nil
}

// EstimateDuration predicts training hours for closing the given gaps.
func (s *TrainingService) EstimateDuration(ctx context.Context, agentID string, gaps []string, targetTier agent.Tier) (training.Estimate, error) {
	rec, err := s.store.GetAgent(ctx, agentID)
	if err != nil {
		return training.Estimate{}, fmt.Errorf("estimate duration for %s: %w", agentID, err)
	}
	return s.estimate(ctx, rec, gaps, targetTier), nil
}

// estimate blends five weighted factors: the fixed base, the confidence
// gap, the per-gap cost, the historical average from comparable agents
// that already reached the target tier, and the agent's own learning rate.
// The comparables lookup carries a bounded timeout; on failure the history
// factor degrades to the base and the estimate confidence is capped.
func (s *TrainingService) estimate(ctx context.Context, rec *agent.Record, gaps []string, targetTier agent.Tier) training.Estimate {
	confGapFactor := (0.5 - rec.ConfidenceScore) * 50
	gapFactor := hoursPerGap * float64(len(gaps))

	historyFactor := baseHours
	confidence := estimateConfFloor
	degraded := false

	lookupCtx, cancel := context.WithTimeout(ctx, s.comparablesTimeout)
	comparables, err := s.store.ListExecutedProposals(lookupCtx, targetTier)
	cancel()
	switch {
	case err != nil:
		degraded = true
		slog.Warn("comparable lookup failed, using base estimate",
			"agent_id", rec.ID, "target_tier", targetTier, "error", err)
	case len(comparables) > 0:
		var total float64
		for i := range comparables {
			total += effectiveHours(&comparables[i])
		}
		historyFactor = total / float64(len(comparables))
		confidence = estimateConfFloor + estimateConfPerComp*float64(len(comparables))
	}

	learningRate := clampFloat(historicalPerformance(rec)/0.7, 0.5, 2.0)

	hours := weightBase*baseHours +
		weightConfGap*confGapFactor +
		weightGaps*gapFactor +
		weightHistory*historyFactor +
		weightLearning*(baseHours/learningRate)
	if hours < 0 {
		hours = 0
	}

	if confidence > estimateConfCap {
		confidence = estimateConfCap
	}
	if degraded && confidence > degradedConfCap {
		confidence = degradedConfCap
	}

	return training.Estimate{
		Hours:      hours,
		Confidence: confidence,
		MinHours:   hours * estimateMinFactor,
		MaxHours:   hours * estimateMaxFactor,
	}
}

// historicalPerformance is the agent's own success rate; with no recorded
// executions the neutral 0.7 yields a learning rate of 1.0.
func historicalPerformance(rec *agent.Record) float64 {
	if rec.ExecutionCount == 0 {
		return 0.7
	}
	return rec.SuccessRate()
}

// effectiveHours returns the hours a proposal actually committed to:
// the human override when present, the estimate otherwise.
func effectiveHours(p *training.Proposal) float64 {
	if p.OverrideHours > 0 {
		return p.OverrideHours
	}
	return p.Estimate.Hours
}

// ApprovalOverrides optionally adjusts the schedule computed on approval.
type ApprovalOverrides struct {
	Hours       float64 `json:"hours,omitempty"`
	HoursPerDay float64 `json:"hours_per_day,omitempty"`
}

// ApproveProposal transitions a proposed proposal to approved and creates
// the scheduled training session.
func (s *TrainingService) ApproveProposal(ctx context.Context, proposalID, userID string, overrides *ApprovalOverrides) (*training.Session, error) {
	p, err := s.store.GetProposal(ctx, proposalID)
	if err != nil {
		return nil, fmt.Errorf("approve proposal %s: %w", proposalID, err)
	}
	if p.Status != training.ProposalProposed {
		return nil, fmt.Errorf("%w: proposal %s is %s, not %s", domain.ErrInvalidState, proposalID, p.Status, training.ProposalProposed)
	}

	hours := p.Estimate.Hours
	hoursPerDay := s.hoursPerDay
	if overrides != nil {
		if overrides.Hours > 0 {
			hours = overrides.Hours
			p.OverrideHours = overrides.Hours
		}
		if overrides.HoursPerDay > 0 {
			hoursPerDay = overrides.HoursPerDay
		}
	}

	days := math.Ceil(hours / hoursPerDay)
	start := s.now()
	end := start.Add(time.Duration(days) * 24 * time.Hour)

	p.Status = training.ProposalApproved
	p.UpdatedAt = s.now()
	if err := s.store.SaveProposal(ctx, p); err != nil {
		return nil, fmt.Errorf("save proposal %s: %w", proposalID, err)
	}

	session := &training.Session{
		ID:                    uuid.NewString(),
		ProposalID:            p.ID,
		AgentID:               p.AgentID,
		Status:                training.SessionScheduled,
		TotalTasks:            len(p.Objectives),
		CapabilitiesRemaining: p.CapabilityGaps,
		ScheduledStart:        start,
		ScheduledEnd:          end,
	}
	if err := s.store.CreateSession(ctx, session); err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}

	s.recorder.Record(ctx, audit.Entry{
		Actor:   userID,
		AgentID: p.AgentID,
		Action:  audit.ActionProposalApproved,
		Outcome: p.ID,
		Detail:  fmt.Sprintf("hours=%.1f days=%.0f session=%s", hours, days, session.ID),
	})

	return session, nil
}

// SessionResult reports the effect of a completed session.
type SessionResult struct {
	SessionID       string        `json:"session_id"`
	ProposalID      string        `json:"proposal_id"`
	ConfidenceBoost float64       `json:"confidence_boost"`
	Update          *UpdateResult `json:"update"`
}

// CompleteSession marks a session completed, applies the earned confidence
// boost exactly once, marks the proposal executed, and resolves the
// originating trigger. Re-invoking on a completed session fails with an
// invalid-state error instead of re-applying the boost.
func (s *TrainingService) CompleteSession(ctx context.Context, sessionID string, outcome training.Outcome) (*SessionResult, error) {
	if err := outcome.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %s", domain.ErrValidation, err)
	}

	session, err := s.store.GetSession(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("complete session %s: %w", sessionID, err)
	}
	if session.Status == training.SessionCompleted {
		return nil, fmt.Errorf("%w: session %s is already completed", domain.ErrInvalidState, sessionID)
	}

	boost := training.BoostFor(outcome.PerformanceScore)

	now := s.now()
	session.Status = training.SessionCompleted
	session.PerformanceScore = outcome.PerformanceScore
	session.ConfidenceBoost = boost
	session.CapabilitiesDeveloped = outcome.CapabilitiesDeveloped
	session.CapabilitiesRemaining = subtract(session.CapabilitiesRemaining, outcome.CapabilitiesDeveloped)
	session.CompletedAt = &now
	if session.StartedAt == nil {
		session.StartedAt = &session.ScheduledStart
	}

	// Persist the terminal session state before the boost: a crash after
	// this point must not allow a second boost for the same session. The
	// store transitions non-completed rows only, so a concurrent completer
	// that lost the race surfaces as a conflict here.
	if err := s.store.SaveSession(ctx, session); err != nil {
		if errors.Is(err, domain.ErrConflict) {
			return nil, fmt.Errorf("%w: session %s was completed concurrently", domain.ErrInvalidState, sessionID)
		}
		return nil, fmt.Errorf("save session %s: %w", sessionID, err)
	}

	update, err := s.confidence.ApplyBoost(ctx, session.AgentID, boost)
	if err != nil {
		return nil, fmt.Errorf("apply boost for %s: %w", session.AgentID, err)
	}

	summary := fmt.Sprintf("performance=%.2f boost=%.2f developed=%s",
		outcome.PerformanceScore, boost, strings.Join(outcome.CapabilitiesDeveloped, ","))

	p, err := s.store.GetProposal(ctx, session.ProposalID)
	if err == nil {
		p.Status = training.ProposalExecuted
		p.Summary = summary
		p.UpdatedAt = now
		if err := s.store.SaveProposal(ctx, p); err != nil {
			slog.Error("mark proposal executed failed", "proposal_id", p.ID, "error", err)
		}
		if p.TriggerID != "" {
			if err := s.store.ResolveTrigger(ctx, p.TriggerID, summary); err != nil && !errors.Is(err, domain.ErrNotFound) {
				slog.Error("resolve trigger failed", "trigger_id", p.TriggerID, "error", err)
			}
		}
	} else {
		slog.Error("load proposal for completed session failed", "proposal_id", session.ProposalID, "error", err)
	}

	s.recorder.Record(ctx, audit.Entry{
		Actor:   "training-workflow",
		AgentID: session.AgentID,
		Action:  audit.ActionSessionCompleted,
		Outcome: sessionID,
		Detail:  summary,
	})
	s.publish(messagequeue.SubjectSessionCompleted, session)
	if s.metrics != nil {
		s.metrics.SessionsCompleted.Add(ctx, 1)
	}

	return &SessionResult{
		SessionID:       sessionID,
		ProposalID:      session.ProposalID,
		ConfidenceBoost: boost,
		Update:          update,
	}, nil
}

// subtract removes developed capabilities from the remaining list,
// preserving order.
func subtract(remaining, developed []string) []string {
	done := make(map[string]bool, len(developed))
	for _, d := range developed {
		done[d] = true
	}
	var out []string
	for _, r := range remaining {
		if !done[r] {
			out = append(out, r)
		}
	}
	return out
}

func clampFloat(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func (s *TrainingService) publish(subject string, payload any) {
	if s.queue == nil {
		return
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.queue.Publish(ctx, subject, data); err != nil {
			slog.Warn("publish training event failed", "subject", subject, "error", err)
		}
	}()
}
