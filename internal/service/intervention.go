package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	wotel "github.com/Strob0t/Warden/internal/adapter/otel"
	"github.com/Strob0t/Warden/internal/adapter/ws"
	"github.com/Strob0t/Warden/internal/domain"
	"github.com/Strob0t/Warden/internal/domain/audit"
	"github.com/Strob0t/Warden/internal/domain/intervention"
	"github.com/Strob0t/Warden/internal/port/database"
	"github.com/Strob0t/Warden/internal/port/messagequeue"
	"github.com/Strob0t/Warden/internal/port/roles"
)

// InterventionService manages pending human approvals over blocked
// decisions and training proposals. Each subject has at most one action,
// and each action resolves at most once.
type InterventionService struct {
	store    database.Store
	rolesP   roles.Provider
	recorder Recorder
	queue    messagequeue.Queue
	hub      *ws.Hub
	metrics  *wotel.Metrics
	minRole  intervention.Role
	now      func() time.Time // for testing
}

// NewInterventionService creates an InterventionService. minRole is the
// lowest role allowed to approve or reject.
func NewInterventionService(store database.Store, rolesP roles.Provider, recorder Recorder, minRole intervention.Role) *InterventionService {
	if minRole.Rank() < 0 {
		minRole = intervention.RoleTeamLead
	}
	return &InterventionService{
		store:    store,
		rolesP:   rolesP,
		recorder: recorder,
		minRole:  minRole,
		now:      time.Now,
	}
}

// SetQueue attaches an event bus for intervention events.
func (s *InterventionService) SetQueue(q messagequeue.Queue) { s.queue = q }

// SetHub attaches the review dashboard broadcast hub.
func (s *InterventionService) SetHub(h *ws.Hub) { s.hub = h }

// SetMetrics attaches metric instruments.
func (s *InterventionService) SetMetrics(m *wotel.Metrics) { s.metrics = m }

// Submit opens a pending intervention for a blocked decision or proposal.
// The subject id is the idempotency key: submitting the same subject twice
// returns the existing action instead of creating a duplicate.
func (s *InterventionService) Submit(ctx context.Context, kind intervention.SubjectKind, subjectID, agentID, detail string) (*intervention.Action, error) {
	if subjectID == "" {
		return nil, fmt.Errorf("%w: subject_id is required", domain.ErrValidation)
	}

	existing, err := s.store.GetInterventionBySubject(ctx, subjectID)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return nil, fmt.Errorf("lookup intervention by subject: %w", err)
	}

	a := &intervention.Action{
		ID:          uuid.NewString(),
		SubjectKind: kind,
		SubjectID:   subjectID,
		AgentID:     agentID,
		Detail:      detail,
		Status:      intervention.StatusPending,
		CreatedAt:   s.now(),
	}
	if err := s.store.CreateIntervention(ctx, a); err != nil {
		// Lost a submission race: the unique subject constraint means the
		// winner's action is the one to return.
		if errors.Is(err, domain.ErrConflict) {
			return s.store.GetInterventionBySubject(ctx, subjectID)
		}
		return nil, fmt.Errorf("create intervention: %w", err)
	}

	s.recorder.Record(ctx, audit.Entry{
		Actor:   "intervention-workflow",
		AgentID: agentID,
		Action:  audit.ActionInterventionOpen,
		Outcome: a.ID,
		Detail:  detail,
	})
	s.publish(messagequeue.SubjectInterventionPending, a)
	s.broadcast(ctx, ws.EventInterventionPending, a)

	return a, nil
}

// Approve resolves a pending intervention as approved. The approver must
// hold at least the configured minimum role; a second resolution attempt
// fails with an invalid-state error rather than no-oping.
func (s *InterventionService) Approve(ctx context.Context, actionID, approverID string) (*intervention.Action, error) {
	role, err := s.requireRole(ctx, approverID)
	if err != nil {
		return nil, err
	}
	return s.resolve(ctx, actionID, approverID, role, intervention.StatusApproved, "")
}

// Reject resolves a pending intervention as rejected. The reason is
// validated before any state mutation.
func (s *InterventionService) Reject(ctx context.Context, actionID, approverID, reason string) (*intervention.Action, error) {
	if err := intervention.ValidateRejection(reason); err != nil {
		return nil, fmt.Errorf("%w: %s", domain.ErrValidation, err)
	}
	role, err := s.requireRole(ctx, approverID)
	if err != nil {
		return nil, err
	}
	return s.resolve(ctx, actionID, approverID, role, intervention.StatusRejected, reason)
}

// ListPending returns unresolved interventions. The review queue is shared:
// any operator with the required role may resolve any pending action, so
// there is no per-approver scope.
func (s *InterventionService) ListPending(ctx context.Context) ([]intervention.Action, error) {
	return s.store.ListInterventions(ctx, intervention.StatusPending)
}

func (s *InterventionService) requireRole(ctx context.Context, approverID string) (intervention.Role, error) {
	if approverID == "" {
		return "", fmt.Errorf("%w: approver_id is required", domain.ErrValidation)
	}
	role, err := s.rolesP.RoleOf(ctx, approverID)
	if err != nil {
		return "", fmt.Errorf("resolve role of %s: %w", approverID, err)
	}
	if !role.AtLeast(s.minRole) {
		return "", fmt.Errorf("%w: resolving interventions requires %s or above, got %s", domain.ErrPermissionDenied, s.minRole, role)
	}
	return role, nil
}

func (s *InterventionService) resolve(ctx context.Context, actionID, approverID string, role intervention.Role, status intervention.Status, reason string) (*intervention.Action, error) {
	a, err := s.store.GetIntervention(ctx, actionID)
	if err != nil {
		return nil, fmt.Errorf("resolve intervention %s: %w", actionID, err)
	}
	if a.Resolved() {
		return nil, fmt.Errorf("%w: intervention %s is already %s", domain.ErrInvalidState, actionID, a.Status)
	}

	now := s.now()
	a.Status = status
	a.ApproverID = approverID
	a.ApproverRole = role
	a.Reason = reason
	a.ResolvedAt = &now

	// SaveIntervention transitions pending rows only; a concurrent
	// resolution surfaces as a conflict, which callers see as a
	// second-resolution failure.
	if err := s.store.SaveIntervention(ctx, a); err != nil {
		if errors.Is(err, domain.ErrConflict) {
			return nil, fmt.Errorf("%w: intervention %s was resolved concurrently", domain.ErrInvalidState, actionID)
		}
		return nil, fmt.Errorf("save intervention %s: %w", actionID, err)
	}

	s.recorder.Record(ctx, audit.Entry{
		Actor:   approverID,
		AgentID: a.AgentID,
		Action:  audit.ActionInterventionClose,
		Outcome: string(status),
		Detail:  reason,
	})
	s.publish(messagequeue.SubjectInterventionResolved, a)
	s.broadcast(ctx, ws.EventInterventionResolved, a)
	if s.metrics != nil {
		s.metrics.InterventionsResolved.Add(ctx, 1)
	}

	return a, nil
}

func (s *InterventionService) publish(subject string, payload any) {
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
			slog.Warn("publish intervention event failed", "subject", subject, "error", err)
		}
	}()
}

func (s *InterventionService) broadcast(ctx context.Context, eventType string, a *intervention.Action) {
	if s.hub == nil {
		return
	}
	s.hub.BroadcastEvent(ctx, eventType, ws.InterventionEvent{
		ActionID: a.ID,
		AgentID:  a.AgentID,
		Kind:     string(a.SubjectKind),
		Status:   string(a.Status),
		Detail:   a.Detail,
	})
}
