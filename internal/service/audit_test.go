package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/Strob0t/Warden/internal/domain/audit"
	"github.com/Strob0t/Warden/internal/port/audittrail"
)

var _ audittrail.Trail = (*mockTrail)(nil)

// mockTrail is an in-memory audit sink. When gate is set, Append signals
// entered and then blocks until gate is closed.
type mockTrail struct {
	mu      sync.Mutex
	entries []audit.Entry
	gate    chan struct{}
	entered chan struct{}
}

func (m *mockTrail) Append(_ context.Context, entry *audit.Entry) error {
	if m.gate != nil {
		m.entered <- struct{}{}
		<-m.gate
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, *entry)
	return nil
}

func (m *mockTrail) Query(_ context.Context, filter audit.Filter, limit int) ([]audit.Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []audit.Entry
	for _, e := range m.entries {
		if filter.AgentID != "" && e.AgentID != filter.AgentID {
			continue
		}
		out = append(out, e)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func (m *mockTrail) all() []audit.Entry {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]audit.Entry(nil), m.entries...)
}

func TestAuditRecordAssignsIdentity(t *testing.T) {
	trail := &mockTrail{}
	svc := NewAuditService(trail, 16, 1, time.Second)

	svc.Record(context.Background(), audit.Entry{
		Actor: "governance-engine", AgentID: "a1",
		Action: audit.ActionDecision, Outcome: "allowed",
	})
	svc.Close()

	entries := trail.all()
	if len(entries) != 1 {
		t.Fatalf("got %d entries, want 1", len(entries))
	}
	if entries[0].ID == "" {
		t.Error("entry should be assigned an ID")
	}
	if entries[0].CreatedAt.IsZero() {
		t.Error("entry should be assigned a timestamp")
	}
}

func TestAuditTimestampsNonDecreasing(t *testing.T) {
	trail := &mockTrail{}
	// One worker keeps the persisted order equal to submission order.
	svc := NewAuditService(trail, 64, 1, time.Second)

	for i := 0; i < 20; i++ {
		svc.Record(context.Background(), audit.Entry{
			AgentID: "a1", Action: audit.ActionConfidenceUpdate, Outcome: "x",
		})
	}
	svc.Close()

	entries := trail.all()
	if len(entries) != 20 {
		t.Fatalf("got %d entries, want 20", len(entries))
	}
	for i := 1; i < len(entries); i++ {
		if entries[i].CreatedAt.Before(entries[i-1].CreatedAt) {
			t.Fatalf("timestamps decreased at entry %d", i)
		}
	}
}

func TestAuditDropsOnBackpressure(t *testing.T) {
	trail := &mockTrail{gate: make(chan struct{}), entered: make(chan struct{}, 1)}
	svc := NewAuditService(trail, 1, 1, time.Second)

	// First entry occupies the single worker inside a blocked Append.
	svc.Record(context.Background(), audit.Entry{AgentID: "a1", Action: "x", Outcome: "y"})
	<-trail.entered

	// Second fills the buffer, third has nowhere to go.
	svc.Record(context.Background(), audit.Entry{AgentID: "a1", Action: "x", Outcome: "y"})
	svc.Record(context.Background(), audit.Entry{AgentID: "a1", Action: "x", Outcome: "y"})

	if got := svc.DroppedCount(); got != 1 {
		t.Errorf("dropped = %d, want 1", got)
	}

	close(trail.gate)
	svc.Close()

	if got := len(trail.all()); got != 2 {
		t.Errorf("persisted = %d, want 2", got)
	}
}

func TestAuditQueryFilters(t *testing.T) {
	trail := &mockTrail{}
	svc := NewAuditService(trail, 16, 1, time.Second)

	svc.Record(context.Background(), audit.Entry{AgentID: "a1", Action: "x", Outcome: "y"})
	svc.Record(context.Background(), audit.Entry{AgentID: "a2", Action: "x", Outcome: "y"})
	svc.Close()

	entries, err := svc.Query(context.Background(), audit.Filter{AgentID: "a1"}, 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(entries) != 1 || entries[0].AgentID != "a1" {
		t.Errorf("unexpected query result: %+v", entries)
	}
}
