package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"telegram-community-bot/internal/model"
)

// CustomRoleRepository stores the one-row-per-user purchased role.
// Buying a new role replaces the old row.
type CustomRoleRepository struct {
	pool *pgxpool.Pool
}

// NewCustomRoleRepository creates a new CustomRoleRepository instance.
func NewCustomRoleRepository(pool *pgxpool.Pool) *CustomRoleRepository {
	return &CustomRoleRepository{pool: pool}
}

// Get retrieves a user's custom role. A nil role with nil error means
// the user has none.
func (r *CustomRoleRepository) Get(ctx context.Context, userID int64) (*model.CustomRole, error) {
	const query = `
		SELECT user_id, role_ref, name, color
		FROM custom_roles
		WHERE user_id = $1
	`

	var role model.CustomRole
	err := r.pool.QueryRow(ctx, query, userID).Scan(&role.UserID, &role.RoleRef, &role.Name, &role.Color)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get custom role: %w", err)
	}

	return &role, nil
}

// Set upserts a user's custom role, replacing any prior one.
func (r *CustomRoleRepository) Set(ctx context.Context, role *model.CustomRole) error {
	const query = `
		INSERT INTO custom_roles (user_id, role_ref, name, color)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (user_id) DO UPDATE
		SET role_ref = EXCLUDED.role_ref,
		    name = EXCLUDED.name,
		    color = EXCLUDED.color
	`

	if _, err := r.pool.Exec(ctx, query, role.UserID, role.RoleRef, role.Name, role.Color); err != nil {
		return fmt.Errorf("failed to set custom role: %w", err)
	}
	return nil
}

// Delete removes a user's custom role record.
func (r *CustomRoleRepository) Delete(ctx context.Context, userID int64) error {
	const query = `DELETE FROM custom_roles WHERE user_id = $1`

	if _, err := r.pool.Exec(ctx, query, userID); err != nil {
		return fmt.Errorf("failed to delete custom role: %w", err)
	}
	return nil
}
