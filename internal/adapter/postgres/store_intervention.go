package postgres

import (
	"context"
	"fmt"

	"github.com/Strob0t/Warden/internal/domain"
	"github.com/Strob0t/Warden/internal/domain/intervention"
)

const interventionColumns = `id, subject_kind, subject_id, agent_id, detail, status,
	COALESCE(approver_id, ''), COALESCE(approver_role, ''), COALESCE(reason, ''),
	created_at, resolved_at`

func scanIntervention(scanner interface{ Scan(dest ...any) error }) (intervention.Action, error) {
	var a intervention.Action
	err := scanner.Scan(
		&a.ID, &a.SubjectKind, &a.SubjectID, &a.AgentID, &a.Detail, &a.Status,
		&a.ApproverID, &a.ApproverRole, &a.Reason, &a.CreatedAt, &a.ResolvedAt,
	)
	return a, err
}

func (s *Store) CreateIntervention(ctx context.Context, a *intervention.Action) error {
	row := s.pool.QueryRow(ctx,
		`INSERT INTO interventions (id, subject_kind, subject_id, agent_id, detail, status)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING created_at`,
		a.ID, a.SubjectKind, a.SubjectID, a.AgentID, a.Detail, a.Status)

	if err := row.Scan(&a.CreatedAt); err != nil {
		return storeErr("create intervention", err)
	}
	return nil
}

func (s *Store) GetIntervention(ctx context.Context, id string) (*intervention.Action, error) {
	row := s.pool.QueryRow(ctx,
		fmt.Sprintf(`SELECT %s FROM interventions WHERE id = $1`, interventionColumns), id)

	a, err := scanIntervention(row)
	if err != nil {
		return nil, storeErr(fmt.Sprintf("get intervention %s", id), err)
	}
	return &a, nil
}

func (s *Store) GetInterventionBySubject(ctx context.Context, subjectID string) (*intervention.Action, error) {
	row := s.pool.QueryRow(ctx,
		fmt.Sprintf(`SELECT %s FROM interventions WHERE subject_id = $1`, interventionColumns), subjectID)

	a, err := scanIntervention(row)
	if err != nil {
		return nil, storeErr("get intervention by subject", err)
	}
	return &a, nil
}

// SaveIntervention writes a resolution. The status guard ensures at-most-once
// resolution: a concurrent resolver that lost the race sees ErrConflict.
func (s *Store) SaveIntervention(ctx context.Context, a *intervention.Action) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE interventions
		 SET status = $2, approver_id = $3, approver_role = $4, reason = $5, resolved_at = $6
		 WHERE id = $1 AND status = 'pending'`,
		a.ID, a.Status, nullIfEmpty(a.ApproverID), nullIfEmpty(string(a.ApproverRole)),
		nullIfEmpty(a.Reason), a.ResolvedAt)
	if err != nil {
		return storeErr(fmt.Sprintf("save intervention %s", a.ID), err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("save intervention %s: %w", a.ID, domain.ErrConflict)
	}
	return nil
}

func (s *Store) ListInterventions(ctx context.Context, status intervention.Status) ([]intervention.Action, error) {
	rows, err := s.pool.Query(ctx,
		fmt.Sprintf(`SELECT %s FROM interventions WHERE status = $1 ORDER BY created_at`,
			interventionColumns), status)
	if err != nil {
		return nil, storeErr("list interventions", err)
	}
	defer rows.Close()

	var actions []intervention.Action
	for rows.Next() {
		a, err := scanIntervention(rows)
		if err != nil {
			return nil, storeErr("scan intervention", err)
		}
		actions = append(actions, a)
	}
	return actions, rows.Err()
}
