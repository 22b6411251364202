package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	wotel "github.com/Strob0t/Warden/internal/adapter/otel"
	"github.com/Strob0t/Warden/internal/adapter/ws"
	"github.com/Strob0t/Warden/internal/domain"
	"github.com/Strob0t/Warden/internal/domain/agent"
	"github.com/Strob0t/Warden/internal/domain/audit"
	"github.com/Strob0t/Warden/internal/domain/governance"
	"github.com/Strob0t/Warden/internal/port/cache"
	"github.com/Strob0t/Warden/internal/port/database"
	"github.com/Strob0t/Warden/internal/port/messagequeue"
	"github.com/Strob0t/Warden/internal/resilience"
)

// GovernanceService is the decision engine: it evaluates whether an agent
// may perform an action right now, pending approval, or not at all.
// Decide never mutates agent state and never returns an error; every
// failure mode reduces to a fail-closed decision.
type GovernanceService struct {
	store         database.Store
	recorder      Recorder
	cache         cache.Cache
	queue         messagequeue.Queue
	hub           *ws.Hub
	retry         resilience.RetryPolicy
	breaker       *resilience.Breaker
	decideTimeout time.Duration
	metrics       *wotel.Metrics
	agentTTL      time.Duration
	sf            singleflight.Group
}

// NewGovernanceService creates a GovernanceService.
func NewGovernanceService(store database.Store, recorder Recorder, c cache.Cache, retry resilience.RetryPolicy, decideTimeout, agentTTL time.Duration) *GovernanceService {
	return &GovernanceService{
		store:         store,
		recorder:      recorder,
		cache:         c,
		retry:         retry,
		decideTimeout: decideTimeout,
		agentTTL:      agentTTL,
	}
}

// SetQueue attaches an event bus for decision events.
func (s *GovernanceService) SetQueue(q messagequeue.Queue) { s.queue = q }

// SetHub attaches the review dashboard broadcast hub.
func (s *GovernanceService) SetHub(h *ws.Hub) { s.hub = h }

// SetBreaker attaches a circuit breaker guarding the decide-path store read.
// An open circuit surfaces as ErrUnavailable, so decisions fail closed
// instead of piling up on a struggling database.
func (s *GovernanceService) SetBreaker(b *resilience.Breaker) { s.breaker = b }

// SetMetrics attaches metric instruments.
func (s *GovernanceService) SetMetrics(m *wotel.Metrics) { s.metrics = m }

// Decide evaluates one attempted action. The store read carries a bounded
// timeout; a missing or unreadable agent record fails closed. One audit
// entry is appended per call, fire-and-forget.
func (s *GovernanceService) Decide(ctx context.Context, agentID, actionType string) governance.Decision {
	start := time.Now()
	complexity := governance.Classify(actionType)
	required := governance.RequiredTier(complexity)

	var d governance.Decision

	rec, err := s.agentRecord(ctx, agentID)
	switch {
	case errors.Is(err, domain.ErrNotFound):
		d = failClosed(required, complexity, "agent not found")
	case err != nil:
		d = failClosed(required, complexity, "agent record unavailable")
	case rec.Status != agent.StatusActive:
		d = failClosed(required, complexity, "agent is retired")
		d.AgentTier = rec.Tier
	default:
		d = evaluate(rec, required, complexity)
	}

	s.audit(ctx, agentID, actionType, d)
	s.publishDecision(agentID, actionType, d)
	if d.RequiresApproval && s.hub != nil {
		s.hub.BroadcastEvent(ctx, ws.EventDecisionIssued, ws.DecisionEvent{
			AgentID:    agentID,
			ActionType: actionType,
			Allowed:    d.Allowed,
			Reason:     d.Reason,
		})
	}
	s.observe(ctx, d, time.Since(start))

	return d
}

// evaluate applies the rank check plus the oversight-by-default rule for
// supervised agents on mutating-or-worse actions.
func evaluate(rec *agent.Record, required agent.Tier, complexity governance.Complexity) governance.Decision {
	d := governance.Decision{
		AgentTier:    rec.Tier,
		RequiredTier: required,
		Complexity:   complexity,
	}

	if rec.Tier.Rank() < required.Rank() {
		d.Allowed = false
		d.RequiresApproval = true
		d.Reason = fmt.Sprintf("tier %s is below required tier %s for complexity %d actions", rec.Tier, required, complexity)
		return d
	}

	d.Allowed = true
	if rec.Tier == agent.TierSupervised && complexity >= governance.ComplexityMutating {
		// Penultimate tier: allowed, but a human still signs off.
		d.RequiresApproval = true
		d.Reason = fmt.Sprintf("supervised agents require oversight for complexity %d actions", complexity)
		return d
	}

	d.Reason = fmt.Sprintf("tier %s meets required tier %s", rec.Tier, required)
	return d
}

// failClosed builds the deny-pending-approval decision used for every
// failure mode, so callers can never fail open.
func failClosed(required agent.Tier, complexity governance.Complexity, reason string) governance.Decision {
	return governance.Decision{
		Allowed:          false,
		RequiresApproval: true,
		Reason:           reason,
		RequiredTier:     required,
		Complexity:       complexity,
	}
}

// GetCapabilities reports what the agent may currently do.
func (s *GovernanceService) GetCapabilities(ctx context.Context, agentID string) (*governance.Capabilities, error) {
	rec, err := s.agentRecord(ctx, agentID)
	if err != nil {
		return nil, fmt.Errorf("get capabilities %s: %w", agentID, err)
	}

	maxC := governance.MaxComplexity(rec.Tier)
	allowed, restricted := governance.Verbs(maxC)
	return &governance.Capabilities{
		AgentID:           rec.ID,
		MaturityLevel:     rec.Tier,
		ConfidenceScore:   rec.ConfidenceScore,
		MaxComplexity:     maxC,
		AllowedActions:    allowed,
		RestrictedActions: restricted,
	}, nil
}

// RegisterAgent creates an agent record, idempotent by signature: a repeat
// registration returns the existing record unchanged.
func (s *GovernanceService) RegisterAgent(ctx context.Context, signature, name, category string) (*agent.Record, error) {
	if signature == "" {
		return nil, fmt.Errorf("%w: signature is required", domain.ErrValidation)
	}

	existing, err := s.store.GetAgentBySignature(ctx, signature)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return nil, fmt.Errorf("lookup agent by signature: %w", err)
	}

	rec := &agent.Record{
		ID:        uuid.NewString(),
		Signature: signature,
		Name:      name,
		Category:  category,
		Tier:      agent.TierStudent,
		Status:    agent.StatusActive,
	}
	if err := s.store.CreateAgent(ctx, rec); err != nil {
		// Lost a registration race: the unique signature constraint means
		// the winner's record is the one to return.
		if errors.Is(err, domain.ErrConflict) {
			return s.store.GetAgentBySignature(ctx, signature)
		}
		return nil, fmt.Errorf("create agent: %w", err)
	}
	return rec, nil
}

// agentRecord loads an agent through the L1 cache. Concurrent cache fills
// for the same agent are deduplicated with singleflight; the store read is
// retried on transient errors within the decide timeout.
func (s *GovernanceService) agentRecord(ctx context.Context, agentID string) (*agent.Record, error) {
	if s.cache != nil {
		if data, ok, err := s.cache.Get(ctx, agentCacheKey(agentID)); err == nil && ok {
			var rec agent.Record
			if err := json.Unmarshal(data, &rec); err == nil {
				return &rec, nil
			}
		}
	}

	v, err, _ := s.sf.Do(agentID, func() (any, error) {
		loadCtx, cancel := context.WithTimeout(ctx, s.decideTimeout)
		defer cancel()

		var rec *agent.Record
		err := s.retry.Retry(loadCtx, func(ctx context.Context) error {
			return s.guarded(func() error {
				var err error
				rec, err = s.store.GetAgent(ctx, agentID)
				return err
			})
		})
		if err != nil {
			return nil, err
		}

		if s.cache != nil {
			if data, err := json.Marshal(rec); err == nil {
				_ = s.cache.Set(ctx, agentCacheKey(agentID), data, s.agentTTL)
			}
		}
		return rec, nil
	})
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil || errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("load agent %s: %w", agentID, domain.ErrUnavailable)
		}
		return nil, err
	}
	return v.(*agent.Record), nil
}

func agentCacheKey(agentID string) string {
	return "agent:" + agentID
}

// guarded routes a store call through the circuit breaker when one is
// attached. ErrCircuitOpen maps onto ErrUnavailable so callers see one
// transient-failure taxonomy.
func (s *GovernanceService) guarded(fn func() error) error {
	if s.breaker == nil {
		return fn()
	}
	err := s.breaker.Execute(fn)
	if errors.Is(err, resilience.ErrCircuitOpen) {
		return fmt.Errorf("store circuit open: %w", domain.ErrUnavailable)
	}
	return err
}

// audit records the decision, never blocking the caller.
func (s *GovernanceService) audit(ctx context.Context, agentID, actionType string, d governance.Decision) {
	outcome := "denied"
	switch {
	case d.Allowed && !d.RequiresApproval:
		outcome = "allowed"
	case d.Allowed && d.RequiresApproval:
		outcome = "allowed_pending_approval"
	case d.RequiresApproval:
		outcome = "denied_pending_approval"
	}

	s.recorder.Record(ctx, audit.Entry{
		Actor:   "governance-engine",
		AgentID: agentID,
		Action:  audit.ActionDecision,
		Outcome: outcome,
		Detail:  fmt.Sprintf("action=%s complexity=%d reason=%s", actionType, d.Complexity, d.Reason),
	})
}

// publishDecision emits the decision on the event bus, fire-and-forget.
func (s *GovernanceService) publishDecision(agentID, actionType string, d governance.Decision) {
	if s.queue == nil {
		return
	}
	payload, err := json.Marshal(struct {
		AgentID    string `json:"agent_id"`
		ActionType string `json:"action_type"`
		governance.Decision
	}{agentID, actionType, d})
	if err != nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.queue.Publish(ctx, messagequeue.SubjectDecisionIssued, payload); err != nil {
			slog.Warn("publish decision event failed", "agent_id", agentID, "error", err)
		}
	}()
}

func (s *GovernanceService) observe(ctx context.Context, d governance.Decision, elapsed time.Duration) {
	if s.metrics == nil {
		return
	}
	if d.Allowed {
		s.metrics.DecisionsAllowed.Add(ctx, 1)
	} else {
		s.metrics.DecisionsDenied.Add(ctx, 1)
	}
	if d.RequiresApproval {
		s.metrics.ApprovalsRequired.Add(ctx, 1)
	}
	s.metrics.DecisionDuration.Record(ctx, elapsed.Seconds())
}

// InvalidateAgent drops an agent from the L1 cache. Called after any
// confidence or tier write so decisions never act on a stale record longer
// than the TTL.
func (s *GovernanceService) InvalidateAgent(ctx context.Context, agentID string) {
	if s.cache != nil {
		_ = s.cache.Delete(ctx, agentCacheKey(agentID))
	}
}
