// Package roles defines the operator role lookup port (interface).
package roles

import (
	"context"

	"github.com/Strob0t/Warden/internal/domain/intervention"
)

// Provider resolves an operator id to their role. Operator authentication
// happens upstream; the id arriving here is assumed verified.
type Provider interface {
	RoleOf(ctx context.Context, operatorID string) (intervention.Role, error)
}
