package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"telegram-community-bot/internal/model"
	"telegram-community-bot/internal/pkg/lock"
	"telegram-community-bot/internal/repository"
)

// ErrAlreadyClaimed is returned when a once-per-day reward was already
// taken during the current UTC day.
var ErrAlreadyClaimed = errors.New("already claimed today")

// RewardService hands out the once-per-UTC-day rewards: the explicit
// check-in and the silent first-message bonus. Both share the same
// eligibility gate keyed by (user, category).
type RewardService struct {
	wallet        *WalletService
	eligibility   *repository.EligibilityRepository
	userLock      *lock.UserLock
	checkinReward int64
	messageReward int64
}

// NewRewardService creates a new RewardService instance.
func NewRewardService(
	wallet *WalletService,
	eligibility *repository.EligibilityRepository,
	userLock *lock.UserLock,
	checkinReward, messageReward int64,
) *RewardService {
	return &RewardService{
		wallet:        wallet,
		eligibility:   eligibility,
		userLock:      userLock,
		checkinReward: checkinReward,
		messageReward: messageReward,
	}
}

// UTCDay truncates a time to its calendar date in UTC. All daily gates
// compare these values, so the day boundary is midnight UTC everywhere.
func UTCDay(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Eligible reports whether a record permits an award on the given day.
// No record at all means eligible.
func Eligible(rec *model.EligibilityRecord, day time.Time) bool {
	if rec == nil {
		return true
	}
	return rec.LastAwardedDate.Before(day)
}

// IsEligible reports whether the user can still take the category's
// reward today, without claiming it.
func (s *RewardService) IsEligible(ctx context.Context, userID int64, category string) (bool, error) {
	rec, err := s.eligibility.Get(ctx, userID, category)
	if err != nil {
		return false, err
	}
	return Eligible(rec, UTCDay(time.Now())), nil
}

// ClaimCheckin awards the daily check-in reward scaled by the caller's
// subscriber multiplier. Returns ErrAlreadyClaimed if today's reward is
// gone. The check-then-award runs under the user's lock so two rapid
// commands cannot both pass the gate.
func (s *RewardService) ClaimCheckin(ctx context.Context, userID int64, displayName string, multiplier float64) (*model.Account, int64, error) {
	s.userLock.Lock(userID)
	defer s.userLock.Unlock(userID)

	today := UTCDay(time.Now())

	rec, err := s.eligibility.Get(ctx, userID, model.CategoryCheckin)
	if err != nil {
		return nil, 0, err
	}
	if !Eligible(rec, today) {
		return nil, 0, ErrAlreadyClaimed
	}

	reward := ApplyMultiplier(s.checkinReward, multiplier)
	account, err := s.wallet.Credit(ctx, userID, displayName, reward)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to credit check-in reward: %w", err)
	}

	if err := s.eligibility.RecordAward(ctx, userID, model.CategoryCheckin, today); err != nil {
		return nil, 0, fmt.Errorf("failed to record check-in award: %w", err)
	}

	return account, reward, nil
}

// FirstMessageBonus awards the silent first-message-of-the-day bonus.
// Returns 0 with nil error when the bonus was already taken today; the
// caller posts nothing in that case.
func (s *RewardService) FirstMessageBonus(ctx context.Context, userID int64, displayName string, multiplier float64) (int64, error) {
	s.userLock.Lock(userID)
	defer s.userLock.Unlock(userID)

	today := UTCDay(time.Now())

	rec, err := s.eligibility.Get(ctx, userID, model.CategoryMessage)
	if err != nil {
		return 0, err
	}
	if !Eligible(rec, today) {
		return 0, nil
	}

	reward := ApplyMultiplier(s.messageReward, multiplier)
	if _, err := s.wallet.Credit(ctx, userID, displayName, reward); err != nil {
		return 0, fmt.Errorf("failed to credit message bonus: %w", err)
	}

	if err := s.eligibility.RecordAward(ctx, userID, model.CategoryMessage, today); err != nil {
		return 0, fmt.Errorf("failed to record message bonus: %w", err)
	}

	return reward, nil
}
