package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"telegram-community-bot/internal/model"
)

// EligibilityRepository stores per-(user, category) last-awarded dates.
// The gate is category-parametric; new reward categories need no schema
// change.
type EligibilityRepository struct {
	pool *pgxpool.Pool
}

// NewEligibilityRepository creates a new EligibilityRepository instance.
func NewEligibilityRepository(pool *pgxpool.Pool) *EligibilityRepository {
	return &EligibilityRepository{pool: pool}
}

// Get retrieves the eligibility record for a (user, category) pair.
// A nil record with nil error means the user was never awarded in that
// category.
func (r *EligibilityRepository) Get(ctx context.Context, userID int64, category string) (*model.EligibilityRecord, error) {
	const query = `
		SELECT user_id, category, last_awarded_date
		FROM eligibility
		WHERE user_id = $1 AND category = $2
	`

	var rec model.EligibilityRecord
	err := r.pool.QueryRow(ctx, query, userID, category).Scan(
		&rec.UserID,
		&rec.Category,
		&rec.LastAwardedDate,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get eligibility record: %w", err)
	}

	return &rec, nil
}

// RecordAward upserts the (user, category) record to the given date,
// overwriting any prior value.
func (r *EligibilityRepository) RecordAward(ctx context.Context, userID int64, category string, date time.Time) error {
	const query = `
		INSERT INTO eligibility (user_id, category, last_awarded_date)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id, category) DO UPDATE SET last_awarded_date = EXCLUDED.last_awarded_date
	`

	if _, err := r.pool.Exec(ctx, query, userID, category, date); err != nil {
		return fmt.Errorf("failed to record award: %w", err)
	}
	return nil
}
