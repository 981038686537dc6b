package star

import (
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

var testPhrases = []string{"inertia", "bubbly", "object", "slime", "ithaca", "betty"}

func TestGeneratePlan(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		seed := rapid.Int64().Draw(t, "seed")
		chatCount := rapid.IntRange(1, 5).Draw(t, "chats")
		count := rapid.IntRange(1, len(testPhrases)).Draw(t, "count")

		chats := make([]int64, chatCount)
		for i := range chats {
			chats[i] = int64(-100 - i)
		}

		day := time.Date(2026, 8, 28, 0, 0, 0, 0, time.UTC)
		events := GeneratePlan(day, chats, testPhrases, count, rand.New(rand.NewSource(seed)))
		require.Len(t, events, count)

		hours := make(map[int]bool)
		phrases := make(map[string]bool)
		chatSet := make(map[int64]bool)
		for _, c := range chats {
			chatSet[c] = true
		}

		for i, ev := range events {
			assert.Equal(t, i, ev.Slot)
			assert.Equal(t, day, ev.PlanDate)
			assert.False(t, ev.Completed)
			assert.True(t, chatSet[ev.ChatID], "chat must come from the pool")

			assert.False(t, ev.FireAt.Before(day))
			assert.True(t, ev.FireAt.Before(day.AddDate(0, 0, 1)))

			assert.False(t, hours[ev.FireAt.Hour()], "hours must be distinct")
			hours[ev.FireAt.Hour()] = true

			assert.False(t, phrases[ev.Phrase], "phrases must be distinct")
			phrases[ev.Phrase] = true

			if i > 0 {
				assert.True(t, events[i-1].FireAt.Before(ev.FireAt), "events must be ordered")
			}
		}
	})
}

func TestGeneratePlanClampsToPhrasePool(t *testing.T) {
	day := time.Date(2026, 8, 28, 0, 0, 0, 0, time.UTC)
	events := GeneratePlan(day, []int64{-1}, []string{"inertia", "bubbly"}, 6, rand.New(rand.NewSource(1)))
	assert.Len(t, events, 2)
}

func TestGeneratePlanEmptyInputs(t *testing.T) {
	day := time.Date(2026, 8, 28, 0, 0, 0, 0, time.UTC)
	rng := rand.New(rand.NewSource(1))

	assert.Nil(t, GeneratePlan(day, nil, testPhrases, 6, rng))
	assert.Nil(t, GeneratePlan(day, []int64{-1}, nil, 6, rng))
	assert.Nil(t, GeneratePlan(day, []int64{-1}, testPhrases, 0, rng))
}
