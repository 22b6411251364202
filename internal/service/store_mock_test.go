package service

import (
	"context"
	"sync"
	"time"

	"github.com/Strob0t/Warden/internal/domain"
	"github.com/Strob0t/Warden/internal/domain/agent"
	"github.com/Strob0t/Warden/internal/domain/audit"
	"github.com/Strob0t/Warden/internal/domain/intervention"
	"github.com/Strob0t/Warden/internal/domain/training"
	"github.com/Strob0t/Warden/internal/port/database"
)

// Ensure mockStore implements database.Store at compile time.
var _ database.Store = (*mockStore)(nil)

// mockStore is a minimal in-memory implementation of database.Store for testing.
type mockStore struct {
	mu            sync.Mutex
	agents        map[string]*agent.Record
	triggers      map[string]*training.Trigger
	proposals     map[string]*training.Proposal
	sessions      map[string]*training.Session
	interventions map[string]*intervention.Action

	// Error hooks — set these to inject failures.
	getAgentErr      error
	getBySigErrOnce  error
	saveAgentErr     error
	createAgentErr   error
	listExecutedErr  error
	saveSessionErr   error
	createActionErr  error
	saveActionErr    error
	getAgentCalls    int
	saveAgentCalls   int
	listExecutedRows []training.Proposal
}

func newMockStore() *mockStore {
	return &mockStore{
		agents:        make(map[string]*agent.Record),
		triggers:      make(map[string]*training.Trigger),
		proposals:     make(map[string]*training.Proposal),
		sessions:      make(map[string]*training.Session),
		interventions: make(map[string]*intervention.Action),
	}
}

func (m *mockStore) addAgent(rec agent.Record) *agent.Record {
	m.mu.Lock()
	defer m.mu.Unlock()
	if rec.Status == "" {
		rec.Status = agent.StatusActive
	}
	if rec.Version == 0 {
		rec.Version = 1
	}
	m.agents[rec.ID] = &rec
	return &rec
}

// --- Agents ---

func (m *mockStore) GetAgent(_ context.Context, id string) (*agent.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.getAgentCalls++
	if m.getAgentErr != nil {
		return nil, m.getAgentErr
	}
	rec, ok := m.agents[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *rec
	return &cp, nil
}

func (m *mockStore) GetAgentBySignature(_ context.Context, signature string) (*agent.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getBySigErrOnce != nil {
		err := m.getBySigErrOnce
		m.getBySigErrOnce = nil
		return nil, err
	}
	for _, rec := range m.agents {
		if rec.Signature == signature {
			cp := *rec
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *mockStore) CreateAgent(_ context.Context, rec *agent.Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createAgentErr != nil {
		return m.createAgentErr
	}
	for _, existing := range m.agents {
		if existing.Signature == rec.Signature {
			return domain.ErrConflict
		}
	}
	rec.Version = 1
	rec.CreatedAt = time.Now()
	rec.UpdatedAt = rec.CreatedAt
	cp := *rec
	m.agents[rec.ID] = &cp
	return nil
}

func (m *mockStore) SaveAgent(_ context.Context, rec *agent.Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saveAgentCalls++
	if m.saveAgentErr != nil {
		return m.saveAgentErr
	}
	existing, ok := m.agents[rec.ID]
	if !ok {
		return domain.ErrNotFound
	}
	if existing.Version != rec.Version {
		return domain.ErrConflict
	}
	rec.Version++
	cp := *rec
	m.agents[rec.ID] = &cp
	return nil
}

func (m *mockStore) ListAgentsByTier(_ context.Context, tier agent.Tier) ([]agent.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []agent.Record
	for _, rec := range m.agents {
		if rec.Tier == tier && rec.Status == agent.StatusActive {
			out = append(out, *rec)
		}
	}
	return out, nil
}

// --- Training triggers ---

func (m *mockStore) CreateTrigger(_ context.Context, trig *training.Trigger) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *trig
	m.triggers[trig.ID] = &cp
	return nil
}

func (m *mockStore) GetTrigger(_ context.Context, id string) (*training.Trigger, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	trig, ok := m.triggers[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *trig
	return &cp, nil
}

func (m *mockStore) ResolveTrigger(_ context.Context, id, outcome string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	trig, ok := m.triggers[id]
	if !ok {
		return domain.ErrNotFound
	}
	trig.Resolved = true
	trig.Outcome = outcome
	return nil
}

// --- Training proposals ---

func (m *mockStore) CreateProposal(_ context.Context, p *training.Proposal) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *p
	m.proposals[p.ID] = &cp
	return nil
}

func (m *mockStore) GetProposal(_ context.Context, id string) (*training.Proposal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.proposals[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *mockStore) SaveProposal(_ context.Context, p *training.Proposal) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.proposals[p.ID]; !ok {
		return domain.ErrNotFound
	}
	cp := *p
	m.proposals[p.ID] = &cp
	return nil
}

func (m *mockStore) ListExecutedProposals(_ context.Context, targetTier agent.Tier) ([]training.Proposal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.listExecutedErr != nil {
		return nil, m.listExecutedErr
	}
	if m.listExecutedRows != nil {
		return m.listExecutedRows, nil
	}
	var out []training.Proposal
	for _, p := range m.proposals {
		if p.Status == training.ProposalExecuted && p.TargetTier == targetTier {
			out = append(out, *p)
		}
	}
	return out, nil
}

// --- Training sessions ---

func (m *mockStore) CreateSession(_ context.Context, s *training.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *s
	m.sessions[s.ID] = &cp
	return nil
}

func (m *mockStore) GetSession(_ context.Context, id string) (*training.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *s
	return &cp, nil
}

func (m *mockStore) SaveSession(_ context.Context, s *training.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveSessionErr != nil {
		return m.saveSessionErr
	}
	existing, ok := m.sessions[s.ID]
	if !ok {
		return domain.ErrNotFound
	}
	// Mirrors the non-completed update guard of the real store.
	if existing.Status == training.SessionCompleted {
		return domain.ErrConflict
	}
	cp := *s
	m.sessions[s.ID] = &cp
	return nil
}

// --- Interventions ---

func (m *mockStore) CreateIntervention(_ context.Context, a *intervention.Action) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createActionErr != nil {
		return m.createActionErr
	}
	for _, existing := range m.interventions {
		if existing.SubjectID == a.SubjectID {
			return domain.ErrConflict
		}
	}
	cp := *a
	m.interventions[a.ID] = &cp
	return nil
}

func (m *mockStore) GetIntervention(_ context.Context, id string) (*intervention.Action, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.interventions[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *a
	return &cp, nil
}

func (m *mockStore) GetInterventionBySubject(_ context.Context, subjectID string) (*intervention.Action, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range m.interventions {
		if a.SubjectID == subjectID {
			cp := *a
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *mockStore) SaveIntervention(_ context.Context, a *intervention.Action) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveActionErr != nil {
		return m.saveActionErr
	}
	existing, ok := m.interventions[a.ID]
	if !ok {
		return domain.ErrNotFound
	}
	// Mirrors the pending-only update guard of the real store.
	if existing.Status != intervention.StatusPending {
		return domain.ErrConflict
	}
	cp := *a
	m.interventions[a.ID] = &cp
	return nil
}

func (m *mockStore) ListInterventions(_ context.Context, status intervention.Status) ([]intervention.Action, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []intervention.Action
	for _, a := range m.interventions {
		if a.Status == status {
			out = append(out, *a)
		}
	}
	return out, nil
}

// --- Recorder fake ---

// mockRecorder captures audit entries synchronously.
type mockRecorder struct {
	mu      sync.Mutex
	entries []audit.Entry
}

func (r *mockRecorder) Record(_ context.Context, entry audit.Entry) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, entry)
}

func (r *mockRecorder) byAction(action string) []audit.Entry {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []audit.Entry
	for _, e := range r.entries {
		if e.Action == action {
			out = append(out, e)
		}
	}
	return out
}

// --- Roles fake ---

type mockRoles struct {
	roles map[string]intervention.Role
}

func (m *mockRoles) RoleOf(_ context.Context, operatorID string) (intervention.Role, error) {
	role, ok := m.roles[operatorID]
	if !ok {
		return "", domain.ErrNotFound
	}
	return role, nil
}
