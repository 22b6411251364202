package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Strob0t/Warden/internal/domain"
	"github.com/Strob0t/Warden/internal/domain/agent"
)

// Store implements database.Store using PostgreSQL.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore creates a new Store backed by the given connection pool.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// --- Agents ---

const agentColumns = `id, signature, name, category, confidence_score, tier, COALESCE(pending_tier, ''), execution_count, success_count, status, version, created_at, updated_at`

func scanAgent(scanner interface{ Scan(dest ...any) error }) (agent.Record, error) {
	var rec agent.Record
	err := scanner.Scan(
		&rec.ID, &rec.Signature, &rec.Name, &rec.Category, &rec.ConfidenceScore,
		&rec.Tier, &rec.PendingTier, &rec.ExecutionCount, &rec.SuccessCount,
		&rec.Status, &rec.Version, &rec.CreatedAt, &rec.UpdatedAt,
	)
	return rec, err
}

func (s *Store) GetAgent(ctx context.Context, id string) (*agent.Record, error) {
	row := s.pool.QueryRow(ctx,
		fmt.Sprintf(`SELECT %s FROM agents WHERE id = $1`, agentColumns), id)

	rec, err := scanAgent(row)
	if err != nil {
		return nil, storeErr(fmt.Sprintf("get agent %s", id), err)
	}
	return &rec, nil
}

func (s *Store) GetAgentBySignature(ctx context.Context, signature string) (*agent.Record, error) {
	row := s.pool.QueryRow(ctx,
		fmt.Sprintf(`SELECT %s FROM agents WHERE signature = $1`, agentColumns), signature)

	rec, err := scanAgent(row)
	if err != nil {
		return nil, storeErr("get agent by signature", err)
	}
	return &rec, nil
}

func (s *Store) CreateAgent(ctx context.Context, rec *agent.Record) error {
	row := s.pool.QueryRow(ctx,
		`INSERT INTO agents (id, signature, name, category, confidence_score, tier, status)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 RETURNING version, created_at, updated_at`,
		rec.ID, rec.Signature, rec.Name, rec.Category, rec.ConfidenceScore, rec.Tier, rec.Status)

	if err := row.Scan(&rec.Version, &rec.CreatedAt, &rec.UpdatedAt); err != nil {
		return storeErr("create agent", err)
	}
	return nil
}

func (s *Store) SaveAgent(ctx context.Context, rec *agent.Record) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE agents
		 SET confidence_score = $2, tier = $3, pending_tier = $4,
		     execution_count = $5, success_count = $6, status = $7,
		     version = version + 1, updated_at = now()
		 WHERE id = $1 AND version = $8`,
		rec.ID, rec.ConfidenceScore, rec.Tier, nullIfEmpty(string(rec.PendingTier)),
		rec.ExecutionCount, rec.SuccessCount, rec.Status, rec.Version)
	if err != nil {
		return storeErr(fmt.Sprintf("save agent %s", rec.ID), err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("save agent %s: %w", rec.ID, domain.ErrConflict)
	}
	rec.Version++
	return nil
}

func (s *Store) ListAgentsByTier(ctx context.Context, tier agent.Tier) ([]agent.Record, error) {
	rows, err := s.pool.Query(ctx,
		fmt.Sprintf(`SELECT %s FROM agents WHERE tier = $1 AND status = 'active' ORDER BY created_at`, agentColumns), tier)
	if err != nil {
		return nil, storeErr("list agents by tier", err)
	}
	defer rows.Close()

	var agents []agent.Record
	for rows.Next() {
		rec, err := scanAgent(rows)
		if err != nil {
			return nil, storeErr("scan agent", err)
		}
		agents = append(agents, rec)
	}
	return agents, rows.Err()
}
