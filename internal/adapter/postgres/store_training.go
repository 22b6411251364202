package postgres

import (
	"context"
	"fmt"

	"github.com/Strob0t/Warden/internal/domain"
	"github.com/Strob0t/Warden/internal/domain/agent"
	"github.com/Strob0t/Warden/internal/domain/training"
)

// --- Training triggers ---

func (s *Store) CreateTrigger(ctx context.Context, trig *training.Trigger) error {
	row := s.pool.QueryRow(ctx,
		`INSERT INTO training_triggers (id, agent_id, type, action_type)
		 VALUES ($1, $2, $3, $4)
		 RETURNING created_at`,
		trig.ID, trig.AgentID, trig.Type, trig.ActionType)

	if err := row.Scan(&trig.CreatedAt); err != nil {
		return storeErr("create trigger", err)
	}
	return nil
}

func (s *Store) GetTrigger(ctx context.Context, id string) (*training.Trigger, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, agent_id, type, action_type, resolved, COALESCE(outcome, ''), created_at
		 FROM training_triggers WHERE id = $1`, id)

	var trig training.Trigger
	err := row.Scan(&trig.ID, &trig.AgentID, &trig.Type, &trig.ActionType,
		&trig.Resolved, &trig.Outcome, &trig.CreatedAt)
	if err != nil {
		return nil, storeErr(fmt.Sprintf("get trigger %s", id), err)
	}
	return &trig, nil
}

func (s *Store) ResolveTrigger(ctx context.Context, id, outcome string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE training_triggers SET resolved = true, outcome = $2 WHERE id = $1`,
		id, outcome)
	if err != nil {
		return storeErr(fmt.Sprintf("resolve trigger %s", id), err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("resolve trigger %s: %w", id, domain.ErrNotFound)
	}
	return nil
}

// --- Training proposals ---

const proposalColumns = `id, agent_id, trigger_id, type, target_tier, capability_gaps, objectives,
	scenario, estimate_hours, estimate_confidence, estimate_min_hours, estimate_max_hours,
	override_hours, status, COALESCE(summary, ''), created_at, updated_at`

func scanProposal(scanner interface{ Scan(dest ...any) error }) (training.Proposal, error) {
	var p training.Proposal
	err := scanner.Scan(
		&p.ID, &p.AgentID, &p.TriggerID, &p.Type, &p.TargetTier,
		&p.CapabilityGaps, &p.Objectives, &p.Scenario,
		&p.Estimate.Hours, &p.Estimate.Confidence, &p.Estimate.MinHours, &p.Estimate.MaxHours,
		&p.OverrideHours, &p.Status, &p.Summary, &p.CreatedAt, &p.UpdatedAt,
	)
	return p, err
}

func (s *Store) CreateProposal(ctx context.Context, p *training.Proposal) error {
	row := s.pool.QueryRow(ctx,
		`INSERT INTO training_proposals
		   (id, agent_id, trigger_id, type, target_tier, capability_gaps, objectives, scenario,
		    estimate_hours, estimate_confidence, estimate_min_hours, estimate_max_hours, status)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		 RETURNING created_at, updated_at`,
		p.ID, p.AgentID, p.TriggerID, p.Type, p.TargetTier, p.CapabilityGaps, p.Objectives,
		p.Scenario, p.Estimate.Hours, p.Estimate.Confidence, p.Estimate.MinHours,
		p.Estimate.MaxHours, p.Status)

	if err := row.Scan(&p.CreatedAt, &p.UpdatedAt); err != nil {
		return storeErr("create proposal", err)
	}
	return nil
}

func (s *Store) GetProposal(ctx context.Context, id string) (*training.Proposal, error) {
	row := s.pool.QueryRow(ctx,
		fmt.Sprintf(`SELECT %s FROM training_proposals WHERE id = $1`, proposalColumns), id)

	p, err := scanProposal(row)
	if err != nil {
		return nil, storeErr(fmt.Sprintf("get proposal %s", id), err)
	}
	return &p, nil
}

func (s *Store) SaveProposal(ctx context.Context, p *training.Proposal) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE training_proposals
		 SET override_hours = $2, status = $3, summary = $4, updated_at = now()
		 WHERE id = $1`,
		p.ID, p.OverrideHours, p.Status, nullIfEmpty(p.Summary))
	if err != nil {
		return storeErr(fmt.Sprintf("save proposal %s", p.ID), err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("save proposal %s: %w", p.ID, domain.ErrNotFound)
	}
	return nil
}

func (s *Store) ListExecutedProposals(ctx context.Context, targetTier agent.Tier) ([]training.Proposal, error) {
	rows, err := s.pool.Query(ctx,
		fmt.Sprintf(`SELECT %s FROM training_proposals
		 WHERE status = 'executed' AND target_tier = $1
		 ORDER BY updated_at DESC`, proposalColumns), targetTier)
	if err != nil {
		return nil, storeErr("list executed proposals", err)
	}
	defer rows.Close()

	var proposals []training.Proposal
	for rows.Next() {
		p, err := scanProposal(rows)
		if err != nil {
			return nil, storeErr("scan proposal", err)
		}
		proposals = append(proposals, p)
	}
	return proposals, rows.Err()
}

// --- Training sessions ---

const sessionColumns = `id, proposal_id, agent_id, status, total_tasks, performance_score,
	confidence_boost, capabilities_developed, capabilities_remaining,
	scheduled_start, scheduled_end, started_at, completed_at`

func scanSession(scanner interface{ Scan(dest ...any) error }) (training.Session, error) {
	var sess training.Session
	err := scanner.Scan(
		&sess.ID, &sess.ProposalID, &sess.AgentID, &sess.Status, &sess.TotalTasks,
		&sess.PerformanceScore, &sess.ConfidenceBoost,
		&sess.CapabilitiesDeveloped, &sess.CapabilitiesRemaining,
		&sess.ScheduledStart, &sess.ScheduledEnd, &sess.StartedAt, &sess.CompletedAt,
	)
	return sess, err
}

func (s *Store) CreateSession(ctx context.Context, sess *training.Session) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO training_sessions
		   (id, proposal_id, agent_id, status, total_tasks, capabilities_remaining,
		    scheduled_start, scheduled_end)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		sess.ID, sess.ProposalID, sess.AgentID, sess.Status, sess.TotalTasks,
		sess.CapabilitiesRemaining, sess.ScheduledStart, sess.ScheduledEnd)
	if err != nil {
		return storeErr("create session", err)
	}
	return nil
}

func (s *Store) GetSession(ctx context.Context, id string) (*training.Session, error) {
	row := s.pool.QueryRow(ctx,
		fmt.Sprintf(`SELECT %s FROM training_sessions WHERE id = $1`, sessionColumns), id)

	sess, err := scanSession(row)
	if err != nil {
		return nil, storeErr(fmt.Sprintf("get session %s", id), err)
	}
	return &sess, nil
}

// SaveSession writes session state. The status guard ensures the terminal
// transition happens at most once: a concurrent completer that lost the
// race sees ErrConflict, so the confidence boost can never apply twice.
func (s *Store) SaveSession(ctx context.Context, sess *training.Session) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE training_sessions
		 SET status = $2, performance_score = $3, confidence_boost = $4,
		     capabilities_developed = $5, capabilities_remaining = $6,
		     started_at = $7, completed_at = $8
		 WHERE id = $1 AND status <> 'completed'`,
		sess.ID, sess.Status, sess.PerformanceScore, sess.ConfidenceBoost,
		sess.CapabilitiesDeveloped, sess.CapabilitiesRemaining,
		sess.StartedAt, sess.CompletedAt)
	if err != nil {
		return storeErr(fmt.Sprintf("save session %s", sess.ID), err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("save session %s: %w", sess.ID, domain.ErrConflict)
	}
	return nil
}
