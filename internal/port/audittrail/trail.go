// Package audittrail defines the audit trail port (interface).
package audittrail

import (
	"context"

	"github.com/Strob0t/Warden/internal/domain/audit"
)

// Trail is the port interface for the append-only audit sink.
type Trail interface {
	// Append durably records one entry.
	Append(ctx context.Context, entry *audit.Entry) error

	// Query returns entries matching the filter, ordered by created_at.
	Query(ctx context.Context, filter audit.Filter, limit int) ([]audit.Entry, error)
}
