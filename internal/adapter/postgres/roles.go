package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Strob0t/Warden/internal/domain/intervention"
)

// RoleDirectory implements roles.Provider from the operators table.
type RoleDirectory struct {
	pool *pgxpool.Pool
}

func NewRoleDirectory(pool *pgxpool.Pool) *RoleDirectory {
	return &RoleDirectory{pool: pool}
}

func (d *RoleDirectory) RoleOf(ctx context.Context, operatorID string) (intervention.Role, error) {
	row := d.pool.QueryRow(ctx,
		`SELECT role FROM operators WHERE id = $1`, operatorID)

	var role intervention.Role
	if err := row.Scan(&role); err != nil {
		return "", storeErr(fmt.Sprintf("role of %s", operatorID), err)
	}
	return role, nil
}
