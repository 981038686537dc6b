package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"pgregory.net/rapid"

	"telegram-community-bot/internal/model"
)

func TestValidateDate(t *testing.T) {
	assert.True(t, ValidateDate(3, 14))
	assert.True(t, ValidateDate(12, 31))
	assert.True(t, ValidateDate(2, 29), "Feb 29 is a real date")

	assert.False(t, ValidateDate(2, 30))
	assert.False(t, ValidateDate(4, 31))
	assert.False(t, ValidateDate(13, 1))
	assert.False(t, ValidateDate(0, 1))
	assert.False(t, ValidateDate(6, 0))
	assert.False(t, ValidateDate(6, -5))
}

// TestValidateDateMatchesCalendar cross-checks the validator against
// the calendar itself.
func TestValidateDateMatchesCalendar(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		month := rapid.IntRange(1, 12).Draw(t, "month")
		day := rapid.IntRange(1, 31).Draw(t, "day")

		// 2024 is a leap year, so every real month/day pair exists.
		d := time.Date(2024, time.Month(month), day, 0, 0, 0, 0, time.UTC)
		real := int(d.Month()) == month && d.Day() == day

		if got := ValidateDate(month, day); got != real {
			t.Fatalf("ValidateDate(%d, %d) = %v, calendar says %v", month, day, got, real)
		}
	})
}

func TestAge(t *testing.T) {
	today := time.Date(2026, 8, 28, 0, 0, 0, 0, time.UTC)

	year := 1998
	b := &model.Birthday{UserID: 1, Month: 8, Day: 28, Year: &year, Timezone: "UTC"}
	age := Age(b, today)
	assert.NotNil(t, age)
	assert.Equal(t, 28, *age)

	noYear := &model.Birthday{UserID: 2, Month: 8, Day: 28, Timezone: "UTC"}
	assert.Nil(t, Age(noYear, today))
}
