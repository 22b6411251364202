package service

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/Strob0t/Warden/internal/domain/audit"
	"github.com/Strob0t/Warden/internal/logger"
	"github.com/Strob0t/Warden/internal/port/audittrail"
)

// Recorder is the audit-append surface the other services depend on.
// Record must never fail or block the caller.
type Recorder interface {
	Record(ctx context.Context, entry audit.Entry)
}

// AuditService buffers audit entries in memory and drains them to the trail
// with a small worker pool. Appends never fail the caller: when the buffer
// is full or the trail is unavailable the entry is dropped and counted,
// logged separately, never surfaced as a governance failure.
type AuditService struct {
	trail        audittrail.Trail
	ch           chan audit.Entry
	wg           sync.WaitGroup
	dropped      atomic.Int64
	writeTimeout time.Duration
	now          func() time.Time // for testing
}

// NewAuditService creates an AuditService draining into trail.
func NewAuditService(trail audittrail.Trail, bufferSize, workers int, writeTimeout time.Duration) *AuditService {
	if bufferSize < 1 {
		bufferSize = 1
	}
	if workers < 1 {
		workers = 1
	}
	s := &AuditService{
		trail:        trail,
		ch:           make(chan audit.Entry, bufferSize),
		writeTimeout: writeTimeout,
		now:          time.Now,
	}
	for range workers {
		s.wg.Add(1)
		go s.drain()
	}
	return s
}

// Record enqueues an entry. The ID, timestamp, and request ID are assigned
// here so entries for the same agent carry non-decreasing timestamps no
// matter which worker persists them.
func (s *AuditService) Record(ctx context.Context, entry audit.Entry) {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = s.now()
	}
	if entry.RequestID == "" {
		entry.RequestID = logger.RequestID(ctx)
	}

	select {
	case s.ch <- entry:
	default:
		s.dropped.Add(1)
		slog.Warn("audit buffer full, entry dropped",
			"action", entry.Action,
			"agent_id", entry.AgentID,
			"dropped_total", s.dropped.Load(),
		)
	}
}

func (s *AuditService) drain() {
	defer s.wg.Done()
	for entry := range s.ch {
		ctx, cancel := context.WithTimeout(context.Background(), s.writeTimeout)
		if err := s.trail.Append(ctx, &entry); err != nil {
			s.dropped.Add(1)
			slog.Error("audit append failed",
				"action", entry.Action,
				"agent_id", entry.AgentID,
				"error", err,
			)
		}
		cancel()
	}
}

// Query returns audit entries matching the filter.
func (s *AuditService) Query(ctx context.Context, filter audit.Filter, limit int) ([]audit.Entry, error) {
	return s.trail.Query(ctx, filter, limit)
}

// DroppedCount returns the number of entries lost to backpressure or
// trail failures.
func (s *AuditService) DroppedCount() int64 {
	return s.dropped.Load()
}

// Close stops accepting entries and waits for the workers to drain.
func (s *AuditService) Close() {
	close(s.ch)
	s.wg.Wait()
}
