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

// PlanRepository stores the daily shooting-star event plan. The plan used
// to live in a JSON file beside the database; keeping it in the same
// transactional store makes marking an event completed a single atomic
// statement, so a crash between "claim" and "fire" can only skip an
// event, never fire it twice.
type PlanRepository struct {
	pool *pgxpool.Pool
}

// NewPlanRepository creates a new PlanRepository instance.
func NewPlanRepository(pool *pgxpool.Pool) *PlanRepository {
	return &PlanRepository{pool: pool}
}

// CountForDate returns how many plan events exist for the given date.
func (r *PlanRepository) CountForDate(ctx context.Context, planDate time.Time) (int, error) {
	const query = `SELECT COUNT(*) FROM star_events WHERE plan_date = $1`

	var count int
	if err := r.pool.QueryRow(ctx, query, planDate).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count plan events: %w", err)
	}
	return count, nil
}

// InsertEvents writes a freshly generated plan. Stale plans from earlier
// dates are left behind as history; today's scan never touches them.
func (r *PlanRepository) InsertEvents(ctx context.Context, events []model.StarEvent) error {
	const query = `
		INSERT INTO star_events (plan_date, slot, fire_at, chat_id, phrase, completed)
		VALUES ($1, $2, $3, $4, $5, FALSE)
		ON CONFLICT (plan_date, slot) DO NOTHING
	`

	for _, ev := range events {
		if _, err := r.pool.Exec(ctx, query, ev.PlanDate, ev.Slot, ev.FireAt, ev.ChatID, ev.Phrase); err != nil {
			return fmt.Errorf("failed to insert plan event: %w", err)
		}
	}
	return nil
}

// ListForDate returns the plan for a date ordered by firing time.
func (r *PlanRepository) ListForDate(ctx context.Context, planDate time.Time) ([]model.StarEvent, error) {
	const query = `
		SELECT plan_date, slot, fire_at, chat_id, phrase, completed
		FROM star_events
		WHERE plan_date = $1
		ORDER BY fire_at ASC
	`

	rows, err := r.pool.Query(ctx, query, planDate)
	if err != nil {
		return nil, fmt.Errorf("failed to list plan events: %w", err)
	}
	defer rows.Close()

	var events []model.StarEvent
	for rows.Next() {
		var ev model.StarEvent
		err := rows.Scan(&ev.PlanDate, &ev.Slot, &ev.FireAt, &ev.ChatID, &ev.Phrase, &ev.Completed)
		if err != nil {
			return nil, fmt.Errorf("failed to scan plan event: %w", err)
		}
		events = append(events, ev)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating plan events: %w", err)
	}

	return events, nil
}

// ClaimDueEvent atomically marks the earliest uncompleted event whose
// firing time has passed as completed and returns it. A nil event with
// nil error means nothing is due. The completed flag is persisted before
// the caller takes any side effect, so a crash after the claim skips the
// event rather than double-firing it.
func (r *PlanRepository) ClaimDueEvent(ctx context.Context, planDate time.Time, now time.Time) (*model.StarEvent, error) {
	const query = `
		UPDATE star_events
		SET completed = TRUE
		WHERE (plan_date, slot) = (
			SELECT plan_date, slot
			FROM star_events
			WHERE plan_date = $1 AND completed = FALSE AND fire_at <= $2
			ORDER BY fire_at ASC
			LIMIT 1
			FOR UPDATE SKIP LOCKED
		)
		RETURNING plan_date, slot, fire_at, chat_id, phrase, completed
	`

	var ev model.StarEvent
	err := r.pool.QueryRow(ctx, query, planDate, now).Scan(
		&ev.PlanDate, &ev.Slot, &ev.FireAt, &ev.ChatID, &ev.Phrase, &ev.Completed,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to claim due event: %w", err)
	}

	return &ev, nil
}
