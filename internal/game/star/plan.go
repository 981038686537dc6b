package star

import (
	"math/rand"
	"sort"
	"time"

	"telegram-community-bot/internal/model"
)

// GeneratePlan builds one day's event plan: count events at distinct
// random hours of the plan date (UTC), each with a random minute, a
// chat drawn from the configured pool and a phrase from the word pool.
// Phrases are shuffled before assignment so each is used at most once
// per day; count is clamped to the phrase pool size. Chats repeat in
// shuffled order when there are more events than chats.
func GeneratePlan(planDate time.Time, chats []int64, phrases []string, count int, rng *rand.Rand) []model.StarEvent {
	if len(chats) == 0 || len(phrases) == 0 || count <= 0 {
		return nil
	}
	if count > len(phrases) {
		count = len(phrases)
	}
	if count > 24 {
		count = 24
	}

	hours := rng.Perm(24)[:count]
	sort.Ints(hours)

	shuffledPhrases := append([]string(nil), phrases...)
	rng.Shuffle(len(shuffledPhrases), func(i, j int) {
		shuffledPhrases[i], shuffledPhrases[j] = shuffledPhrases[j], shuffledPhrases[i]
	})

	shuffledChats := append([]int64(nil), chats...)
	rng.Shuffle(len(shuffledChats), func(i, j int) {
		shuffledChats[i], shuffledChats[j] = shuffledChats[j], shuffledChats[i]
	})

	y, m, d := planDate.UTC().Date()
	events := make([]model.StarEvent, 0, count)
	for i, hour := range hours {
		events = append(events, model.StarEvent{
			PlanDate:  time.Date(y, m, d, 0, 0, 0, 0, time.UTC),
			Slot:      i,
			FireAt:    time.Date(y, m, d, hour, rng.Intn(60), 0, 0, time.UTC),
			ChatID:    shuffledChats[i%len(shuffledChats)],
			Phrase:    shuffledPhrases[i],
			Completed: false,
		})
	}
	return events
}
