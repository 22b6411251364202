package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	wotel "github.com/Strob0t/Warden/internal/adapter/otel"
	"github.com/Strob0t/Warden/internal/adapter/ws"
	"github.com/Strob0t/Warden/internal/domain"
	"github.com/Strob0t/Warden/internal/domain/agent"
	"github.com/Strob0t/Warden/internal/domain/audit"
	"github.com/Strob0t/Warden/internal/domain/intervention"
	"github.com/Strob0t/Warden/internal/port/database"
	"github.com/Strob0t/Warden/internal/port/messagequeue"
	"github.com/Strob0t/Warden/internal/port/roles"
	"github.com/Strob0t/Warden/internal/resilience"
)

// maxDelta bounds a single confidence adjustment in either direction.
const maxDelta = 1.0

// UpdateResult reports the outcome of a confidence update.
type UpdateResult struct {
	AgentID      string     `json:"agent_id"`
	OldScore     float64    `json:"old_score"`
	NewScore     float64    `json:"new_score"`
	Promoted     bool       `json:"promoted"`
	Tier         agent.Tier `json:"tier"`
	PendingAdmin bool       `json:"pending_admin"`
}

// ConfidenceService applies bounded confidence deltas and drives the
// maturity state machine. Updates for the same agent serialize on a
// per-agent mutex so concurrent deltas cannot lose writes; different
// agents proceed independently.
type ConfidenceService struct {
	store      database.Store
	recorder   Recorder
	rolesP     roles.Provider
	queue      messagequeue.Queue
	hub        *ws.Hub
	retry      resilience.RetryPolicy
	metrics    *wotel.Metrics
	invalidate func(ctx context.Context, agentID string)

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewConfidenceService creates a ConfidenceService.
func NewConfidenceService(store database.Store, recorder Recorder, rolesP roles.Provider, retry resilience.RetryPolicy) *ConfidenceService {
	return &ConfidenceService{
		store:    store,
		recorder: recorder,
		rolesP:   rolesP,
		retry:    retry,
		locks:    make(map[string]*sync.Mutex),
	}
}

// SetQueue attaches an event bus for promotion events.
func (s *ConfidenceService) SetQueue(q messagequeue.Queue) { s.queue = q }

// SetHub attaches the review dashboard broadcast hub.
func (s *ConfidenceService) SetHub(h *ws.Hub) { s.hub = h }

// SetMetrics attaches metric instruments.
func (s *ConfidenceService) SetMetrics(m *wotel.Metrics) { s.metrics = m }

// SetInvalidator attaches a cache invalidation hook called after every
// agent write.
func (s *ConfidenceService) SetInvalidator(fn func(ctx context.Context, agentID string)) {
	s.invalidate = fn
}

// ApplyDelta applies a bounded confidence delta from feedback or an
// execution outcome. success, when non-nil, records one execution and
// whether it succeeded. At most one adjacent-tier promotion happens per
// call, gated on the execution-count and success-rate requirements.
func (s *ConfidenceService) ApplyDelta(ctx context.Context, agentID string, delta float64, success *bool) (*UpdateResult, error) {
	return s.apply(ctx, agentID, delta, success, false)
}

// ApplyBoost applies a training confidence boost. Unlike ApplyDelta it
// honors the session shortcut: a student whose resulting score reaches the
// intern threshold promotes immediately, bypassing the execution-count
// gate. This is the documented override for training outcomes.
func (s *ConfidenceService) ApplyBoost(ctx context.Context, agentID string, boost float64) (*UpdateResult, error) {
	return s.apply(ctx, agentID, boost, nil, true)
}

func (s *ConfidenceService) apply(ctx context.Context, agentID string, delta float64, success *bool, sessionShortcut bool) (*UpdateResult, error) {
	if math.IsNaN(delta) || math.Abs(delta) > maxDelta {
		return nil, fmt.Errorf("%w: delta %v out of range [-1, 1]", domain.ErrValidation, delta)
	}

	lock := s.agentLock(agentID)
	lock.Lock()
	defer lock.Unlock()

	var rec *agent.Record
	err := s.retry.Retry(ctx, func(ctx context.Context) error {
		var err error
		rec, err = s.store.GetAgent(ctx, agentID)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("apply delta %s: %w", agentID, err)
	}

	old := rec.ConfidenceScore
	res := &UpdateResult{AgentID: agentID, OldScore: old, NewScore: old, Tier: rec.Tier}

	// Net-zero update with no execution evidence: nothing changes, so
	// promotion logic must not re-run and no audit entry is written.
	if delta == 0 && success == nil {
		return res, nil
	}

	rec.ConfidenceScore = agent.ClampScore(old + delta)
	res.NewScore = rec.ConfidenceScore

	if success != nil {
		rec.ExecutionCount++
		if *success {
			rec.SuccessCount++
		}
	}

	s.promoteOnce(rec, res, sessionShortcut)

	err = s.retry.Retry(ctx, func(ctx context.Context) error {
		return s.store.SaveAgent(ctx, rec)
	})
	if err != nil {
		return nil, fmt.Errorf("save agent %s: %w", agentID, err)
	}

	if s.invalidate != nil {
		s.invalidate(ctx, agentID)
	}

	s.recorder.Record(ctx, audit.Entry{
		Actor:   "confidence-updater",
		AgentID: agentID,
		Action:  audit.ActionConfidenceUpdate,
		Outcome: fmt.Sprintf("%.3f -> %.3f", old, rec.ConfidenceScore),
		Detail:  fmt.Sprintf("delta=%+.3f tier=%s", delta, rec.Tier),
	})
	if res.Promoted {
		s.recorder.Record(ctx, audit.Entry{
			Actor:   "confidence-updater",
			AgentID: agentID,
			Action:  audit.ActionPromotion,
			Outcome: string(res.Tier),
		})
		s.publishPromotion(agentID, res.Tier)
		s.broadcastTier(ctx, agentID, res.Tier)
		if s.metrics != nil {
			s.metrics.Promotions.Add(ctx, 1)
		}
	}
	if res.PendingAdmin {
		s.recorder.Record(ctx, audit.Entry{
			Actor:   "confidence-updater",
			AgentID: agentID,
			Action:  audit.ActionPromotionPending,
			Outcome: string(rec.PendingTier),
		})
	}

	return res, nil
}

// promoteOnce advances the record by at most one adjacent tier. Even when
// the new score overshoots a higher threshold, the next update has to earn
// the following transition on its own.
func (s *ConfidenceService) promoteOnce(rec *agent.Record, res *UpdateResult, sessionShortcut bool) {
	if sessionShortcut && rec.Tier == agent.TierStudent && rec.ConfidenceScore >= 0.5 {
		rec.Tier = agent.TierIntern
		res.Promoted = true
		res.Tier = rec.Tier
		return
	}

	if !rec.EligibleForPromotion() {
		res.Tier = rec.Tier
		return
	}

	gate, _ := agent.GateFor(rec.Tier)
	next := rec.Tier.Next()
	if gate.RequireAdmin {
		rec.PendingTier = next
		res.PendingAdmin = true
		res.Tier = rec.Tier
		return
	}

	rec.Tier = next
	res.Promoted = true
	res.Tier = next
}

// ConfirmPromotion completes an admin-gated promotion. The confirming
// operator must hold the admin role.
func (s *ConfidenceService) ConfirmPromotion(ctx context.Context, agentID, adminID string) (*UpdateResult, error) {
	role, err := s.rolesP.RoleOf(ctx, adminID)
	if err != nil {
		return nil, fmt.Errorf("resolve role of %s: %w", adminID, err)
	}
	if !role.AtLeast(intervention.RoleAdmin) {
		return nil, fmt.Errorf("%w: confirming a promotion requires admin, got %s", domain.ErrPermissionDenied, role)
	}

	lock := s.agentLock(agentID)
	lock.Lock()
	defer lock.Unlock()

	rec, err := s.store.GetAgent(ctx, agentID)
	if err != nil {
		return nil, fmt.Errorf("confirm promotion %s: %w", agentID, err)
	}
	if rec.PendingTier == "" {
		return nil, fmt.Errorf("%w: agent %s has no pending promotion", domain.ErrInvalidState, agentID)
	}

	old := rec.ConfidenceScore
	rec.Tier = rec.PendingTier
	rec.PendingTier = ""

	if err := s.store.SaveAgent(ctx, rec); err != nil {
		return nil, fmt.Errorf("save agent %s: %w", agentID, err)
	}
	if s.invalidate != nil {
		s.invalidate(ctx, agentID)
	}

	s.recorder.Record(ctx, audit.Entry{
		Actor:   adminID,
		AgentID: agentID,
		Action:  audit.ActionPromotionConfirm,
		Outcome: string(rec.Tier),
	})
	s.publishPromotion(agentID, rec.Tier)
	s.broadcastTier(ctx, agentID, rec.Tier)
	if s.metrics != nil {
		s.metrics.Promotions.Add(ctx, 1)
	}

	return &UpdateResult{
		AgentID:  agentID,
		OldScore: old,
		NewScore: rec.ConfidenceScore,
		Promoted: true,
		Tier:     rec.Tier,
	}, nil
}

// agentLock returns the mutex serializing updates for one agent.
func (s *ConfidenceService) agentLock(agentID string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.locks[agentID]
	if !ok {
		l = &sync.Mutex{}
		s.locks[agentID] = l
	}
	return l
}

func (s *ConfidenceService) broadcastTier(ctx context.Context, agentID string, tier agent.Tier) {
	if s.hub == nil {
		return
	}
	s.hub.BroadcastEvent(ctx, ws.EventTierPromoted, ws.TierEvent{
		AgentID: agentID,
		Tier:    string(tier),
	})
}

func (s *ConfidenceService) publishPromotion(agentID string, tier agent.Tier) {
	if s.queue == nil {
		return
	}
	payload, err := json.Marshal(struct {
		AgentID string     `json:"agent_id"`
		Tier    agent.Tier `json:"tier"`
	}{agentID, tier})
	if err != nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.queue.Publish(ctx, messagequeue.SubjectTierPromoted, payload); err != nil {
			slog.Warn("publish promotion event failed", "agent_id", agentID, "error", err)
		}
	}()
}
