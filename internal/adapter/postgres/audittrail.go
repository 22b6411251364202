package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Strob0t/Warden/internal/domain/audit"
)

// AuditTrail implements audittrail.Trail on the append-only audit_trail table.
// There is no update or delete path.
type AuditTrail struct {
	pool *pgxpool.Pool
}

func NewAuditTrail(pool *pgxpool.Pool) *AuditTrail {
	return &AuditTrail{pool: pool}
}

func (t *AuditTrail) Append(ctx context.Context, e *audit.Entry) error {
	_, err := t.pool.Exec(ctx,
		`INSERT INTO audit_trail (id, actor, agent_id, action, outcome, detail, request_id, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		e.ID, e.Actor, e.AgentID, e.Action, e.Outcome,
		nullIfEmpty(e.Detail), nullIfEmpty(e.RequestID), e.CreatedAt)
	if err != nil {
		return storeErr("append audit entry", err)
	}
	return nil
}

func (t *AuditTrail) Query(ctx context.Context, f audit.Filter, limit int) ([]audit.Entry, error) {
	query := `SELECT id, actor, agent_id, action, outcome, COALESCE(detail, ''),
	          COALESCE(request_id, ''), created_at
	          FROM audit_trail WHERE agent_id = $1`
	args := []any{f.AgentID}

	if f.After != nil {
		args = append(args, *f.After)
		query += fmt.Sprintf(` AND created_at >= $%d`, len(args))
	}
	if f.Before != nil {
		args = append(args, *f.Before)
		query += fmt.Sprintf(` AND created_at <= $%d`, len(args))
	}
	query += ` ORDER BY created_at, id`
	if limit > 0 {
		args = append(args, limit)
		query += fmt.Sprintf(` LIMIT $%d`, len(args))
	}

	rows, err := t.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, storeErr("query audit trail", err)
	}
	defer rows.Close()

	var entries []audit.Entry
	for rows.Next() {
		var e audit.Entry
		err := rows.Scan(&e.ID, &e.Actor, &e.AgentID, &e.Action, &e.Outcome,
			&e.Detail, &e.RequestID, &e.CreatedAt)
		if err != nil {
			return nil, storeErr("scan audit entry", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
