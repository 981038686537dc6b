// Package scheduler runs the unattended timers: the minute tick that
// fires shooting-star events, per-timezone midnight birthday jobs, and
// the daily song post. A failure inside any single firing is logged and
// never stops the recurring job.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"

	"telegram-community-bot/internal/config"
	"telegram-community-bot/internal/game/star"
	"telegram-community-bot/internal/repository"
	"telegram-community-bot/internal/service"
)

// Poster sends scheduler-driven announcements. The bot layer implements
// it; the engine never formats or sends platform messages itself.
type Poster interface {
	PostStar(chatID int64, phrase string) (star.MessageRef, error)
	DeleteStar(ref star.MessageRef) error
	PostBirthday(chatID, userID int64, age *int) error
	PostSong(chatID int64, song *service.FeaturedSong) error
}

// tzState tracks which users were already paid during the timezone's
// current local date. Kept per timezone so a job firing twice around a
// DST transition cannot double-pay, and reset on local-date rollover.
type tzState struct {
	localDate string
	paid      map[int64]bool
}

// Engine owns all background timers.
type Engine struct {
	cfg       *config.Config
	plans     *repository.PlanRepository
	machine   *star.Machine
	songs     *service.SongService
	birthdays *service.BirthdayService
	poster    Poster
	rng       *rand.Rand

	mu       sync.Mutex
	cron     *cron.Cron
	tzJobs   map[string]cron.EntryID
	tzStates map[string]*tzState

	stop chan struct{}
	wg   sync.WaitGroup
}

// NewEngine creates the scheduler engine.
func NewEngine(
	cfg *config.Config,
	plans *repository.PlanRepository,
	machine *star.Machine,
	songs *service.SongService,
	birthdays *service.BirthdayService,
	poster Poster,
) *Engine {
	return &Engine{
		cfg:       cfg,
		plans:     plans,
		machine:   machine,
		songs:     songs,
		birthdays: birthdays,
		poster:    poster,
		rng:       rand.New(rand.NewSource(time.Now().UnixNano())),
		cron:      cron.New(),
		tzJobs:    make(map[string]cron.EntryID),
		tzStates:  make(map[string]*tzState),
		stop:      make(chan struct{}),
	}
}

// Start launches all timers. Midnight jobs are registered for every
// timezone already present among birthday records; new timezones are
// added lazily through EnsureTimezoneJob as users set birthdays.
func (e *Engine) Start(ctx context.Context) error {
	zones, err := e.birthdays.Timezones(ctx)
	if err != nil {
		return fmt.Errorf("failed to load birthday timezones: %w", err)
	}
	for _, tz := range zones {
		e.EnsureTimezoneJob(tz)
	}
	e.cron.Start()

	e.wg.Add(2)
	go e.runStarTicker()
	go e.runSongTimer()

	log.Info().Int("timezones", len(zones)).Msg("Scheduler engine started")
	return nil
}

// Stop cancels all timers and waits for in-flight firings.
func (e *Engine) Stop() {
	close(e.stop)
	<-e.cron.Stop().Done()
	e.machine.Disarm()
	e.wg.Wait()
	log.Info().Msg("Scheduler engine stopped")
}

// EnsureTimezoneJob registers a local-midnight birthday job for tz if
// none exists yet. Unknown timezone names are logged and skipped; the
// birthday service validates them before they are stored, so this only
// triggers on records predating a tzdata change.
func (e *Engine) EnsureTimezoneJob(tz string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, ok := e.tzJobs[tz]; ok {
		return
	}

	id, err := e.cron.AddFunc(fmt.Sprintf("CRON_TZ=%s 0 0 * * *", tz), func() {
		e.runGuarded("birthday", func() { e.fireBirthdays(tz) })
	})
	if err != nil {
		log.Error().Err(err).Str("timezone", tz).Msg("Failed to register midnight job")
		return
	}
	e.tzJobs[tz] = id
	log.Info().Str("timezone", tz).Msg("Registered midnight birthday job")
}

// runGuarded isolates one firing: a panic or error inside it is logged
// and does not reach the timer loop.
func (e *Engine) runGuarded(job string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Str("job", job).Msg("Scheduled firing panicked")
		}
	}()
	fn()
}

// --- shooting stars ---

func (e *Engine) runStarTicker() {
	defer e.wg.Done()

	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-e.stop:
			return
		case <-ticker.C:
			e.runGuarded("star", e.starTick)
		}
	}
}

// starTick ensures today's plan exists and fires the earliest due
// event. The claim persists the completed flag before any send, so a
// crash mid-fire skips the event instead of double-firing it.
func (e *Engine) starTick() {
	if len(e.cfg.Channels.StarPool) == 0 {
		log.Debug().Msg("No star channel pool configured, skipping tick")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	now := time.Now()
	today := service.UTCDay(now)

	count, err := e.plans.CountForDate(ctx, today)
	if err != nil {
		log.Error().Err(err).Msg("Failed to check star plan")
		return
	}
	if count == 0 {
		events := star.GeneratePlan(today, e.cfg.Channels.StarPool, e.cfg.Star.Phrases, e.cfg.Star.EventsPerDay, e.rng)
		if err := e.plans.InsertEvents(ctx, events); err != nil {
			log.Error().Err(err).Msg("Failed to store star plan")
			return
		}
		log.Info().Int("events", len(events)).Time("date", today).Msg("Generated star plan")
	}

	event, err := e.plans.ClaimDueEvent(ctx, today, now)
	if err != nil {
		log.Error().Err(err).Msg("Failed to claim due star event")
		return
	}
	if event == nil {
		return
	}

	if e.machine.Armed() {
		log.Warn().Int("slot", event.Slot).Msg("Round already armed, skipping star event")
		return
	}

	ref, err := e.poster.PostStar(event.ChatID, event.Phrase)
	if err != nil {
		log.Error().Err(err).Int64("chat_id", event.ChatID).Msg("Failed to post star announcement")
		return
	}
	e.machine.Arm(event.ChatID, event.Phrase, ref)
	log.Info().Int("slot", event.Slot).Int64("chat_id", event.ChatID).Msg("Star round armed")
}

// OnRoundExpired is wired as the machine's expiry callback; it retracts
// the unclaimed announcement.
func (e *Engine) OnRoundExpired(round star.Round) {
	if err := e.poster.DeleteStar(round.Announcement); err != nil {
		log.Warn().Err(err).Int64("chat_id", round.ChatID).Msg("Failed to delete expired star announcement")
	}
	log.Info().Int64("chat_id", round.ChatID).Msg("Star round expired unclaimed")
}

// --- birthdays ---

func (e *Engine) fireBirthdays(tz string) {
	if e.cfg.Channels.Birthday == 0 {
		log.Debug().Msg("No birthday channel configured, skipping firing")
		return
	}

	loc, err := time.LoadLocation(tz)
	if err != nil {
		log.Error().Err(err).Str("timezone", tz).Msg("Failed to load timezone")
		return
	}
	localToday := time.Now().In(loc)

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	due, err := e.birthdays.DueForTimezone(ctx, tz, localToday)
	if err != nil {
		log.Error().Err(err).Str("timezone", tz).Msg("Failed to scan birthdays")
		return
	}

	state := e.timezoneState(tz, localToday)
	for _, b := range due {
		if state.paid[b.UserID] {
			continue
		}

		if _, err := e.birthdays.Celebrate(ctx, b.UserID); err != nil {
			log.Error().Err(err).Int64("user_id", b.UserID).Msg("Failed to pay birthday reward")
			continue
		}
		state.paid[b.UserID] = true

		if err := e.poster.PostBirthday(e.cfg.Channels.Birthday, b.UserID, service.Age(b, localToday)); err != nil {
			log.Warn().Err(err).Int64("user_id", b.UserID).Msg("Failed to post birthday announcement")
		}
	}
}

// timezoneState returns the per-timezone paid set, resetting it when
// the timezone's local date has rolled over since the last firing.
func (e *Engine) timezoneState(tz string, localNow time.Time) *tzState {
	e.mu.Lock()
	defer e.mu.Unlock()

	localDate := localNow.Format("2006-01-02")
	state, ok := e.tzStates[tz]
	if !ok || state.localDate != localDate {
		state = &tzState{localDate: localDate, paid: make(map[int64]bool)}
		e.tzStates[tz] = state
	}
	return state
}

// --- song of the day ---

// runSongTimer sleeps until the next UTC midnight after startup, then
// free-runs every 24 hours. A restart re-anchors to the next midnight
// rather than continuing the prior period.
func (e *Engine) runSongTimer() {
	defer e.wg.Done()

	now := time.Now().UTC()
	firstFire := service.UTCDay(now).AddDate(0, 0, 1)
	timer := time.NewTimer(firstFire.Sub(now))
	defer timer.Stop()

	select {
	case <-e.stop:
		return
	case <-timer.C:
	}

	ticker := time.NewTicker(24 * time.Hour)
	defer ticker.Stop()

	for {
		e.runGuarded("song", e.fireSong)
		select {
		case <-e.stop:
			return
		case <-ticker.C:
		}
	}
}

func (e *Engine) fireSong() {
	if e.cfg.Channels.SongOfDay == 0 {
		log.Debug().Msg("No song channel configured, skipping firing")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	featured, err := e.songs.PickDaily(ctx)
	if err != nil {
		if errors.Is(err, service.ErrCatalogEmpty) {
			log.Info().Msg("Song catalog has no unfeatured entries")
			return
		}
		log.Error().Err(err).Msg("Failed to pick song of the day")
		return
	}

	if err := e.poster.PostSong(e.cfg.Channels.SongOfDay, featured); err != nil {
		log.Error().Err(err).Int64("entry_id", featured.Entry.ID).Msg("Failed to post song of the day")
		return
	}
	log.Info().Int64("entry_id", featured.Entry.ID).Str("title", featured.Entry.Title).Msg("Posted song of the day")
}
