package service

import (
	"context"
	"fmt"
	"time"

	"telegram-community-bot/internal/model"
	"telegram-community-bot/internal/pkg/lock"
	"telegram-community-bot/internal/repository"
)

// StreakService tracks the daily snap streak. One claim per UTC day;
// claiming on consecutive days grows the streak, a missed day resets it
// to one.
type StreakService struct {
	wallet     *WalletService
	streaks    *repository.StreakRepository
	userLock   *lock.UserLock
	rewardUnit int64
	rewardCap  int64
}

// NewStreakService creates a new StreakService instance.
func NewStreakService(
	wallet *WalletService,
	streaks *repository.StreakRepository,
	userLock *lock.UserLock,
	rewardUnit, rewardCap int64,
) *StreakService {
	return &StreakService{
		wallet:     wallet,
		streaks:    streaks,
		userLock:   userLock,
		rewardUnit: rewardUnit,
		rewardCap:  rewardCap,
	}
}

// StreakAdvance is the outcome of applying one claim attempt to a
// streak record.
type StreakAdvance struct {
	Eligible bool
	Length   int
	Reward   int64
}

// AdvanceStreak computes the next streak state for a claim on the given
// day. It is pure: same inputs, same outcome.
//
//   - already claimed today: not eligible, length unchanged, no reward
//   - claimed yesterday: streak extends by one
//   - anything older (or no record): streak restarts at zero
//
// The reward grows linearly with the new length and caps out so a long
// streak cannot mint unbounded coins.
func AdvanceStreak(rec *model.StreakRecord, day time.Time, unit, cap int64) StreakAdvance {
	length := 0
	if rec != nil {
		if !rec.LastActivityDate.Before(day) {
			return StreakAdvance{Eligible: false, Length: rec.StreakLength}
		}
		if rec.LastActivityDate.Equal(day.AddDate(0, 0, -1)) {
			length = rec.StreakLength + 1
		}
	}

	reward := unit * int64(length+1)
	if reward > cap {
		reward = cap
	}
	return StreakAdvance{Eligible: true, Length: length, Reward: reward}
}

// Claim advances the user's streak and pays the streak reward scaled by
// the subscriber multiplier. Returns ErrAlreadyClaimed when today's
// claim is gone.
func (s *StreakService) Claim(ctx context.Context, userID int64, displayName string, multiplier float64) (*model.Account, StreakAdvance, error) {
	s.userLock.Lock(userID)
	defer s.userLock.Unlock(userID)

	today := UTCDay(time.Now())

	rec, err := s.streaks.Get(ctx, userID)
	if err != nil {
		return nil, StreakAdvance{}, err
	}

	advance := AdvanceStreak(rec, today, s.rewardUnit, s.rewardCap)
	if !advance.Eligible {
		return nil, advance, ErrAlreadyClaimed
	}

	reward := ApplyMultiplier(advance.Reward, multiplier)
	account, err := s.wallet.Credit(ctx, userID, displayName, reward)
	if err != nil {
		return nil, StreakAdvance{}, fmt.Errorf("failed to credit streak reward: %w", err)
	}
	advance.Reward = reward

	if err := s.streaks.Upsert(ctx, userID, today, advance.Length); err != nil {
		return nil, StreakAdvance{}, fmt.Errorf("failed to persist streak: %w", err)
	}

	return account, advance, nil
}

// Current returns the user's streak length without claiming. A streak
// whose last claim is older than yesterday reads as zero.
func (s *StreakService) Current(ctx context.Context, userID int64) (int, error) {
	rec, err := s.streaks.Get(ctx, userID)
	if err != nil {
		return 0, err
	}
	if rec == nil {
		return 0, nil
	}

	today := UTCDay(time.Now())
	if rec.LastActivityDate.Before(today.AddDate(0, 0, -1)) {
		return 0, nil
	}
	return rec.StreakLength, nil
}
