// Package database defines the database store port (interface).
package database

import (
	"context"

	"github.com/Strob0t/Warden/internal/domain/agent"
	"github.com/Strob0t/Warden/internal/domain/intervention"
	"github.com/Strob0t/Warden/internal/domain/training"
)

// Store is the port interface for durable governance state. Implementations
// return domain.ErrNotFound for missing entities and wrap transient
// infrastructure failures in domain.ErrUnavailable so callers can
// distinguish the two.
type Store interface {
	// Agents
	GetAgent(ctx context.Context, id string) (*agent.Record, error)
	GetAgentBySignature(ctx context.Context, signature string) (*agent.Record, error)
	CreateAgent(ctx context.Context, rec *agent.Record) error
	SaveAgent(ctx context.Context, rec *agent.Record) error
	ListAgentsByTier(ctx context.Context, tier agent.Tier) ([]agent.Record, error)

	// Training triggers and proposals
	CreateTrigger(ctx context.Context, trig *training.Trigger) error
	GetTrigger(ctx context.Context, id string) (*training.Trigger, error)
	ResolveTrigger(ctx context.Context, id, outcome string) error
	CreateProposal(ctx context.Context, p *training.Proposal) error
	GetProposal(ctx context.Context, id string) (*training.Proposal, error)
	SaveProposal(ctx context.Context, p *training.Proposal) error
	ListExecutedProposals(ctx context.Context, targetTier agent.Tier) ([]training.Proposal, error)

	// Training sessions
	CreateSession(ctx context.Context, s *training.Session) error
	GetSession(ctx context.Context, id string) (*training.Session, error)
	SaveSession(ctx context.Context, s *training.Session) error

	// Interventions
	CreateIntervention(ctx context.Context, a *intervention.Action) error
	GetIntervention(ctx context.Context, id string) (*intervention.Action, error)
	GetInterventionBySubject(ctx context.Context, subjectID string) (*intervention.Action, error)
	SaveIntervention(ctx context.Context, a *intervention.Action) error
	ListInterventions(ctx context.Context, status intervention.Status) ([]intervention.Action, error)
}
