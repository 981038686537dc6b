// Package service provides business logic implementations.
package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"

	"telegram-community-bot/internal/model"
	"telegram-community-bot/internal/repository"
)

// Common errors for wallet operations.
var (
	ErrInvalidAmount       = errors.New("amount must be a positive integer")
	ErrInsufficientBalance = errors.New("insufficient balance")
)

// WalletService exposes the Balance Store operations. Accounts are
// created lazily with the starting grant on first touch; every mutation
// persists immediately.
type WalletService struct {
	accounts *repository.AccountRepository
}

// NewWalletService creates a new WalletService instance.
func NewWalletService(accounts *repository.AccountRepository) *WalletService {
	return &WalletService{accounts: accounts}
}

// EnsureAccount makes sure an account exists, creating one with the
// starting grant if needed. Returns the account and whether it was
// newly created. Display name changes are folded in on the way.
func (s *WalletService) EnsureAccount(ctx context.Context, userID int64, displayName string) (*model.Account, bool, error) {
	account, created, err := s.accounts.GetOrCreate(ctx, userID, displayName)
	if err != nil {
		return nil, false, fmt.Errorf("failed to ensure account: %w", err)
	}

	if !created && displayName != "" && account.DisplayName != displayName {
		if err := s.accounts.UpdateDisplayName(ctx, userID, displayName); err != nil {
			log.Warn().Err(err).Int64("user_id", userID).Msg("Failed to update display name")
		}
		account.DisplayName = displayName
	}

	return account, created, nil
}

// GetBalance returns the user's spendable balance, creating the account
// with the starting grant if this is the first time the user is seen.
func (s *WalletService) GetBalance(ctx context.Context, userID int64, displayName string) (int64, error) {
	account, _, err := s.EnsureAccount(ctx, userID, displayName)
	if err != nil {
		return 0, err
	}
	return account.Balance, nil
}

// GetLifetimeEarned returns the user's gross lifetime earnings with the
// same lazy-creation contract as GetBalance.
func (s *WalletService) GetLifetimeEarned(ctx context.Context, userID int64, displayName string) (int64, error) {
	account, _, err := s.EnsureAccount(ctx, userID, displayName)
	if err != nil {
		return 0, err
	}
	return account.LifetimeEarned, nil
}

// Credit adds amount to balance and lifetime earnings. Zero or negative
// amounts are a caller error.
func (s *WalletService) Credit(ctx context.Context, userID int64, displayName string, amount int64) (*model.Account, error) {
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}
	if _, _, err := s.EnsureAccount(ctx, userID, displayName); err != nil {
		return nil, err
	}
	return s.accounts.Credit(ctx, userID, amount)
}

// DebitCapped removes up to amount from balance, flooring at zero.
// Lifetime earnings are unaffected.
func (s *WalletService) DebitCapped(ctx context.Context, userID int64, displayName string, amount int64) (*model.Account, error) {
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}
	if _, _, err := s.EnsureAccount(ctx, userID, displayName); err != nil {
		return nil, err
	}
	return s.accounts.DebitCapped(ctx, userID, amount)
}

// TrySpend spends amount if the balance covers it. The check and the
// deduction are a single store operation, so concurrent spends cannot
// take the same coins twice.
func (s *WalletService) TrySpend(ctx context.Context, userID int64, displayName string, amount int64) (bool, error) {
	if amount <= 0 {
		return false, ErrInvalidAmount
	}
	if _, _, err := s.EnsureAccount(ctx, userID, displayName); err != nil {
		return false, err
	}
	return s.accounts.TrySpend(ctx, userID, amount)
}

// Refund returns amount to balance after a purchase's follow-on action
// failed. Lifetime earnings are unaffected.
func (s *WalletService) Refund(ctx context.Context, userID int64, displayName string, amount int64) (*model.Account, error) {
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}
	if _, _, err := s.EnsureAccount(ctx, userID, displayName); err != nil {
		return nil, err
	}
	return s.accounts.Refund(ctx, userID, amount)
}

// Leaderboard returns the top n accounts by lifetime earnings.
func (s *WalletService) Leaderboard(ctx context.Context, n int) ([]*model.Account, error) {
	return s.accounts.Leaderboard(ctx, n)
}

// ApplyMultiplier scales a reward by a subscriber-tier multiplier,
// truncating to whole coins. Multipliers below 1 never shrink a reward.
// The epsilon keeps products like 125*1.2 from truncating one coin low
// due to float representation.
func ApplyMultiplier(amount int64, multiplier float64) int64 {
	if multiplier <= 1 {
		return amount
	}
	return int64(float64(amount)*multiplier + 1e-9)
}
