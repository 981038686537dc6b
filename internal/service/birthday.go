package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"telegram-community-bot/internal/model"
	"telegram-community-bot/internal/repository"
)

// Errors for birthday operations.
var (
	ErrInvalidDate     = errors.New("that date does not exist")
	ErrInvalidTimezone = errors.New("unknown timezone")
	ErrNoBirthday      = errors.New("no birthday on record")
)

// BirthdayService manages birthday records. Setting a birthday for the
// first time pays a one-off reward; the annual payout is driven by the
// scheduler's per-timezone midnight jobs.
type BirthdayService struct {
	wallet         *WalletService
	birthdays      *repository.BirthdayRepository
	annualReward   int64
	firstSetReward int64

	// OnNewTimezone is called after a set so the scheduler can register
	// a midnight job for a timezone it has not seen yet. May be nil.
	OnNewTimezone func(tz string)
}

// NewBirthdayService creates a new BirthdayService instance.
func NewBirthdayService(
	wallet *WalletService,
	birthdays *repository.BirthdayRepository,
	annualReward, firstSetReward int64,
) *BirthdayService {
	return &BirthdayService{
		wallet:         wallet,
		birthdays:      birthdays,
		annualReward:   annualReward,
		firstSetReward: firstSetReward,
	}
}

// ValidateDate checks that month/day name a real calendar date. Feb 29
// is accepted; the annual check simply never matches it off leap years
// unless the record carries a year.
func ValidateDate(month, day int) bool {
	if month < 1 || month > 12 || day < 1 {
		return false
	}
	// time.Date normalizes overflow (Apr 31 -> May 1), so a changed
	// month means the day was out of range. Use a leap year so Feb 29
	// survives.
	d := time.Date(2024, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	return int(d.Month()) == month && d.Day() == day
}

// Set validates and stores a user's birthday. Returns the stored
// record, whether this was the user's first ever set, and the first-set
// reward paid (zero on re-sets).
func (s *BirthdayService) Set(ctx context.Context, userID int64, displayName string, month, day int, year *int, tz string) (*model.Birthday, bool, int64, error) {
	if !ValidateDate(month, day) {
		return nil, false, 0, ErrInvalidDate
	}
	if year != nil && (*year < 1900 || *year > time.Now().UTC().Year()) {
		return nil, false, 0, ErrInvalidDate
	}
	if _, err := time.LoadLocation(tz); err != nil {
		return nil, false, 0, ErrInvalidTimezone
	}

	b := &model.Birthday{UserID: userID, Month: month, Day: day, Year: year, Timezone: tz}
	first, err := s.birthdays.Set(ctx, b)
	if err != nil {
		return nil, false, 0, err
	}

	var reward int64
	if first && s.firstSetReward > 0 {
		reward = s.firstSetReward
		if _, err := s.wallet.Credit(ctx, userID, displayName, reward); err != nil {
			return nil, false, 0, fmt.Errorf("failed to pay first-set reward: %w", err)
		}
	}

	if s.OnNewTimezone != nil {
		s.OnNewTimezone(tz)
	}

	return b, first, reward, nil
}

// Get returns the user's birthday, or ErrNoBirthday.
func (s *BirthdayService) Get(ctx context.Context, userID int64) (*model.Birthday, error) {
	b, err := s.birthdays.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	if b == nil {
		return nil, ErrNoBirthday
	}
	return b, nil
}

// Remove soft-deletes the user's birthday, or returns ErrNoBirthday.
func (s *BirthdayService) Remove(ctx context.Context, userID int64) error {
	removed, err := s.birthdays.Remove(ctx, userID)
	if err != nil {
		return err
	}
	if !removed {
		return ErrNoBirthday
	}
	return nil
}

// DueForTimezone returns the active birthdays in tz matching the given
// local date.
func (s *BirthdayService) DueForTimezone(ctx context.Context, tz string, localToday time.Time) ([]*model.Birthday, error) {
	records, err := s.birthdays.ListActiveForTimezone(ctx, tz)
	if err != nil {
		return nil, err
	}

	var due []*model.Birthday
	for _, b := range records {
		if b.Month == int(localToday.Month()) && b.Day == localToday.Day() {
			due = append(due, b)
		}
	}
	return due, nil
}

// Timezones returns every timezone present among active records.
func (s *BirthdayService) Timezones(ctx context.Context) ([]string, error) {
	return s.birthdays.DistinctTimezones(ctx)
}

// Celebrate pays the annual birthday reward.
func (s *BirthdayService) Celebrate(ctx context.Context, userID int64) (int64, error) {
	if _, err := s.wallet.Credit(ctx, userID, "", s.annualReward); err != nil {
		return 0, fmt.Errorf("failed to pay birthday reward: %w", err)
	}
	return s.annualReward, nil
}

// Age returns how old the user turns on the given local date, or nil if
// no birth year was supplied.
func Age(b *model.Birthday, localToday time.Time) *int {
	if b.Year == nil {
		return nil
	}
	age := localToday.Year() - *b.Year
	return &age
}
