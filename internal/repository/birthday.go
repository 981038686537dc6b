package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"telegram-community-bot/internal/model"
)

// BirthdayRepository stores birthday records with a soft-delete flag.
type BirthdayRepository struct {
	pool *pgxpool.Pool
}

// NewBirthdayRepository creates a new BirthdayRepository instance.
func NewBirthdayRepository(pool *pgxpool.Pool) *BirthdayRepository {
	return &BirthdayRepository{pool: pool}
}

// Get retrieves a user's active birthday record. A nil record with nil
// error means the user has no active birthday set.
func (r *BirthdayRepository) Get(ctx context.Context, userID int64) (*model.Birthday, error) {
	const query = `
		SELECT user_id, month, day, year, timezone
		FROM birthdays
		WHERE user_id = $1 AND removed = FALSE
	`

	var b model.Birthday
	err := r.pool.QueryRow(ctx, query, userID).Scan(&b.UserID, &b.Month, &b.Day, &b.Year, &b.Timezone)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get birthday: %w", err)
	}

	return &b, nil
}

// Set upserts a user's birthday, reviving a soft-deleted row if one
// exists. Returns true when the user had no prior row at all, which is
// what gates the first-time set reward.
func (r *BirthdayRepository) Set(ctx context.Context, b *model.Birthday) (bool, error) {
	const query = `
		INSERT INTO birthdays (user_id, month, day, year, timezone, removed)
		VALUES ($1, $2, $3, $4, $5, FALSE)
		ON CONFLICT (user_id) DO UPDATE
		SET month = EXCLUDED.month,
		    day = EXCLUDED.day,
		    year = EXCLUDED.year,
		    timezone = EXCLUDED.timezone,
		    removed = FALSE
		RETURNING (xmax = 0)
	`

	var inserted bool
	err := r.pool.QueryRow(ctx, query, b.UserID, b.Month, b.Day, b.Year, b.Timezone).Scan(&inserted)
	if err != nil {
		return false, fmt.Errorf("failed to set birthday: %w", err)
	}
	return inserted, nil
}

// Remove soft-deletes a user's birthday. Returns false if there was no
// active record.
func (r *BirthdayRepository) Remove(ctx context.Context, userID int64) (bool, error) {
	const query = `UPDATE birthdays SET removed = TRUE WHERE user_id = $1 AND removed = FALSE`

	result, err := r.pool.Exec(ctx, query, userID)
	if err != nil {
		return false, fmt.Errorf("failed to remove birthday: %w", err)
	}
	return result.RowsAffected() > 0, nil
}

// ListActiveForTimezone returns active birthday records in one timezone.
func (r *BirthdayRepository) ListActiveForTimezone(ctx context.Context, tz string) ([]*model.Birthday, error) {
	const query = `
		SELECT user_id, month, day, year, timezone
		FROM birthdays
		WHERE removed = FALSE AND timezone = $1
		ORDER BY month, day
	`
	return r.listBirthdays(ctx, query, tz)
}

// DistinctTimezones returns every timezone present among active records.
// The scheduler registers one midnight job per entry.
func (r *BirthdayRepository) DistinctTimezones(ctx context.Context) ([]string, error) {
	const query = `SELECT DISTINCT timezone FROM birthdays WHERE removed = FALSE`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to get timezones: %w", err)
	}
	defer rows.Close()

	var zones []string
	for rows.Next() {
		var tz string
		if err := rows.Scan(&tz); err != nil {
			return nil, fmt.Errorf("failed to scan timezone: %w", err)
		}
		zones = append(zones, tz)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating timezones: %w", err)
	}

	return zones, nil
}

func (r *BirthdayRepository) listBirthdays(ctx context.Context, query string, args ...any) ([]*model.Birthday, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list birthdays: %w", err)
	}
	defer rows.Close()

	var birthdays []*model.Birthday
	for rows.Next() {
		var b model.Birthday
		if err := rows.Scan(&b.UserID, &b.Month, &b.Day, &b.Year, &b.Timezone); err != nil {
			return nil, fmt.Errorf("failed to scan birthday: %w", err)
		}
		birthdays = append(birthdays, &b)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating birthdays: %w", err)
	}

	return birthdays, nil
}
