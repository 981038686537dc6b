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

// StreakRepository stores the per-user snap photo streak.
type StreakRepository struct {
	pool *pgxpool.Pool
}

// NewStreakRepository creates a new StreakRepository instance.
func NewStreakRepository(pool *pgxpool.Pool) *StreakRepository {
	return &StreakRepository{pool: pool}
}

// Get retrieves a user's streak record. A nil record with nil error means
// the user has never snapped.
func (r *StreakRepository) Get(ctx context.Context, userID int64) (*model.StreakRecord, error) {
	const query = `
		SELECT user_id, last_activity_date, streak_length
		FROM streaks
		WHERE user_id = $1
	`

	var rec model.StreakRecord
	err := r.pool.QueryRow(ctx, query, userID).Scan(
		&rec.UserID,
		&rec.LastActivityDate,
		&rec.StreakLength,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get streak record: %w", err)
	}

	return &rec, nil
}

// Upsert writes a user's streak record, replacing any prior one.
func (r *StreakRepository) Upsert(ctx context.Context, userID int64, activityDate time.Time, length int) error {
	const query = `
		INSERT INTO streaks (user_id, last_activity_date, streak_length)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id) DO UPDATE
		SET last_activity_date = EXCLUDED.last_activity_date,
		    streak_length = EXCLUDED.streak_length
	`

	if _, err := r.pool.Exec(ctx, query, userID, activityDate, length); err != nil {
		return fmt.Errorf("failed to upsert streak record: %w", err)
	}
	return nil
}
