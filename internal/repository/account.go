// Package repository provides data access layer implementations.
package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"telegram-community-bot/internal/model"
)

// Common errors for repository operations.
var (
	ErrAccountNotFound = errors.New("account not found")
)

// AccountRepository handles the coin ledger. Every mutation is a single
// SQL statement, so the store never sees a half-applied operation.
type AccountRepository struct {
	pool          *pgxpool.Pool
	startingGrant int64
}

// NewAccountRepository creates a new AccountRepository instance.
// startingGrant is credited to balance and lifetime on lazy creation.
func NewAccountRepository(pool *pgxpool.Pool, startingGrant int64) *AccountRepository {
	return &AccountRepository{pool: pool, startingGrant: startingGrant}
}

const accountColumns = `user_id, display_name, balance, lifetime_earned, created_at, updated_at`

func scanAccount(row pgx.Row) (*model.Account, error) {
	var a model.Account
	err := row.Scan(
		&a.UserID,
		&a.DisplayName,
		&a.Balance,
		&a.LifetimeEarned,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// GetByID retrieves an account without creating one.
// Returns ErrAccountNotFound if the account does not exist.
func (r *AccountRepository) GetByID(ctx context.Context, userID int64) (*model.Account, error) {
	const query = `
		SELECT ` + accountColumns + `
		FROM accounts
		WHERE user_id = $1
	`

	account, err := scanAccount(r.pool.QueryRow(ctx, query, userID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAccountNotFound
		}
		return nil, fmt.Errorf("failed to get account: %w", err)
	}

	return account, nil
}

// GetOrCreate retrieves an account, creating one with the starting grant
// if it does not exist. The insert uses ON CONFLICT DO NOTHING so
// concurrent calls for the same user cannot create duplicates; the loser
// of the race reads the winner's row.
func (r *AccountRepository) GetOrCreate(ctx context.Context, userID int64, displayName string) (*model.Account, bool, error) {
	const insert = `
		INSERT INTO accounts (user_id, display_name, balance, lifetime_earned, created_at, updated_at)
		VALUES ($1, $2, $3, $3, NOW(), NOW())
		ON CONFLICT (user_id) DO NOTHING
		RETURNING ` + accountColumns

	account, err := scanAccount(r.pool.QueryRow(ctx, insert, userID, displayName, r.startingGrant))
	if err == nil {
		return account, true, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, false, fmt.Errorf("failed to create account: %w", err)
	}

	// Row already existed; the insert was a no-op.
	account, err = r.GetByID(ctx, userID)
	if err != nil {
		return nil, false, err
	}
	return account, false, nil
}

// Credit adds amount to both balance and lifetime_earned.
// Amount must be positive; the caller validates.
func (r *AccountRepository) Credit(ctx context.Context, userID int64, amount int64) (*model.Account, error) {
	const query = `
		UPDATE accounts
		SET balance = balance + $2, lifetime_earned = lifetime_earned + $2, updated_at = NOW()
		WHERE user_id = $1
		RETURNING ` + accountColumns

	account, err := scanAccount(r.pool.QueryRow(ctx, query, userID, amount))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAccountNotFound
		}
		return nil, fmt.Errorf("failed to credit account: %w", err)
	}

	return account, nil
}

// DebitCapped subtracts amount from balance only, floored at zero.
// Lifetime earnings are unaffected. Used for administrative removal.
func (r *AccountRepository) DebitCapped(ctx context.Context, userID int64, amount int64) (*model.Account, error) {
	const query = `
		UPDATE accounts
		SET balance = GREATEST(balance - $2, 0), updated_at = NOW()
		WHERE user_id = $1
		RETURNING ` + accountColumns

	account, err := scanAccount(r.pool.QueryRow(ctx, query, userID, amount))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAccountNotFound
		}
		return nil, fmt.Errorf("failed to debit account: %w", err)
	}

	return account, nil
}

// TrySpend subtracts amount from balance only if the balance covers it.
// The check and the write are one statement, so two concurrent spends
// cannot both succeed against the same coins.
func (r *AccountRepository) TrySpend(ctx context.Context, userID int64, amount int64) (bool, error) {
	const query = `
		UPDATE accounts
		SET balance = balance - $2, updated_at = NOW()
		WHERE user_id = $1 AND balance >= $2
	`

	tag, err := r.pool.Exec(ctx, query, userID, amount)
	if err != nil {
		return false, fmt.Errorf("failed to spend: %w", err)
	}

	return tag.RowsAffected() > 0, nil
}

// Refund adds amount back to balance only. Lifetime earnings are
// unaffected; a refund is not an earning.
func (r *AccountRepository) Refund(ctx context.Context, userID int64, amount int64) (*model.Account, error) {
	const query = `
		UPDATE accounts
		SET balance = balance + $2, updated_at = NOW()
		WHERE user_id = $1
		RETURNING ` + accountColumns

	account, err := scanAccount(r.pool.QueryRow(ctx, query, userID, amount))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAccountNotFound
		}
		return nil, fmt.Errorf("failed to refund account: %w", err)
	}

	return account, nil
}

// UpdateDisplayName updates an account's display name.
func (r *AccountRepository) UpdateDisplayName(ctx context.Context, userID int64, displayName string) error {
	const query = `
		UPDATE accounts
		SET display_name = $2, updated_at = NOW()
		WHERE user_id = $1
	`

	result, err := r.pool.Exec(ctx, query, userID, displayName)
	if err != nil {
		return fmt.Errorf("failed to update display name: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrAccountNotFound
	}
	return nil
}

// Leaderboard retrieves the top N accounts by lifetime earnings.
// Ties break by ascending user id so the order is deterministic.
func (r *AccountRepository) Leaderboard(ctx context.Context, limit int) ([]*model.Account, error) {
	const query = `
		SELECT ` + accountColumns + `
		FROM accounts
		ORDER BY lifetime_earned DESC, user_id ASC
		LIMIT $1
	`

	rows, err := r.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get leaderboard: %w", err)
	}
	defer rows.Close()

	var accounts []*model.Account
	for rows.Next() {
		account, err := scanAccount(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan account: %w", err)
		}
		accounts = append(accounts, account)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating accounts: %w", err)
	}

	return accounts, nil
}
