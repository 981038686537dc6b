// Package repository provides data access layer implementations.
// Tests use testcontainers-go to spin up a PostgreSQL container.
package repository

import (
	"context"
	"os/exec"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"telegram-community-bot/internal/model"
)

// checkDockerAvailable checks if Docker is available and running
func checkDockerAvailable() bool {
	cmd := exec.Command("docker", "info")
	err := cmd.Run()
	return err == nil
}

// setupTestDB creates a PostgreSQL container and returns a connection pool.
// Skips the test if Docker is not available.
func setupTestDB(t *testing.T) (*pgxpool.Pool, func()) {
	if !checkDockerAvailable() {
		t.Skip("Docker is not available, skipping integration test")
	}

	ctx := context.Background()

	pgContainer, err := postgres.Run(ctx,
		"postgres:15-alpine",
		postgres.WithDatabase("testdb"),
		postgres.WithUsername("testuser"),
		postgres.WithPassword("testpass"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	require.NoError(t, err)

	connStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	pool, err := pgxpool.New(ctx, connStr)
	require.NoError(t, err)

	err = runTestMigrations(ctx, pool)
	require.NoError(t, err)

	cleanup := func() {
		pool.Close()
		_ = pgContainer.Terminate(ctx)
	}

	return pool, cleanup
}

// runTestMigrations applies the database schema.
func runTestMigrations(ctx context.Context, pool *pgxpool.Pool) error {
	_, err := pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS accounts (
			user_id BIGINT PRIMARY KEY,
			display_name VARCHAR(255) NOT NULL DEFAULT '',
			balance BIGINT NOT NULL,
			lifetime_earned BIGINT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
		CREATE TABLE IF NOT EXISTS eligibility (
			user_id BIGINT NOT NULL,
			category VARCHAR(50) NOT NULL,
			last_awarded_date DATE NOT NULL,
			PRIMARY KEY (user_id, category)
		);
		CREATE TABLE IF NOT EXISTS streaks (
			user_id BIGINT PRIMARY KEY,
			last_activity_date DATE NOT NULL,
			streak_length INT NOT NULL
		);
		CREATE TABLE IF NOT EXISTS star_events (
			plan_date DATE NOT NULL,
			slot INT NOT NULL,
			fire_at TIMESTAMPTZ NOT NULL,
			chat_id BIGINT NOT NULL,
			phrase VARCHAR(100) NOT NULL,
			completed BOOLEAN NOT NULL DEFAULT FALSE,
			PRIMARY KEY (plan_date, slot)
		);
		CREATE TABLE IF NOT EXISTS custom_roles (
			user_id BIGINT PRIMARY KEY,
			role_ref VARCHAR(255) NOT NULL,
			name VARCHAR(64) NOT NULL,
			color INT NOT NULL
		);
		CREATE TABLE IF NOT EXISTS catalog_entries (
			id BIGSERIAL PRIMARY KEY,
			contributor_id BIGINT NOT NULL,
			title VARCHAR(500) NOT NULL,
			artist VARCHAR(500) NOT NULL,
			art_url TEXT NOT NULL DEFAULT '',
			source_url TEXT NOT NULL,
			used BOOLEAN NOT NULL DEFAULT FALSE,
			date_added TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
		CREATE TABLE IF NOT EXISTS birthdays (
			user_id BIGINT PRIMARY KEY,
			month INT NOT NULL,
			day INT NOT NULL,
			year INT,
			timezone VARCHAR(64) NOT NULL,
			removed BOOLEAN NOT NULL DEFAULT FALSE
		);
	`)
	return err
}

const testStartingGrant = int64(1000)

// ============================================================================
// AccountRepository Tests
// ============================================================================

func TestAccountRepository_GetOrCreate(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	repo := NewAccountRepository(pool, testStartingGrant)
	ctx := context.Background()

	// First touch creates the account with the starting grant.
	account, created, err := repo.GetOrCreate(ctx, 12345, "alice")
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, int64(12345), account.UserID)
	assert.Equal(t, "alice", account.DisplayName)
	assert.Equal(t, testStartingGrant, account.Balance)
	assert.Equal(t, testStartingGrant, account.LifetimeEarned)
	assert.False(t, account.CreatedAt.IsZero())

	// Second touch reads the existing row.
	account, created, err = repo.GetOrCreate(ctx, 12345, "alice")
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, testStartingGrant, account.Balance)
}

func TestAccountRepository_GetByID(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	repo := NewAccountRepository(pool, testStartingGrant)
	ctx := context.Background()

	_, err := repo.GetByID(ctx, 99999)
	assert.ErrorIs(t, err, ErrAccountNotFound)

	_, _, err = repo.GetOrCreate(ctx, 12345, "alice")
	require.NoError(t, err)

	account, err := repo.GetByID(ctx, 12345)
	require.NoError(t, err)
	assert.Equal(t, "alice", account.DisplayName)
}

func TestAccountRepository_Credit(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	repo := NewAccountRepository(pool, testStartingGrant)
	ctx := context.Background()

	_, _, err := repo.GetOrCreate(ctx, 12345, "alice")
	require.NoError(t, err)

	account, err := repo.Credit(ctx, 12345, 200)
	require.NoError(t, err)
	assert.Equal(t, int64(1200), account.Balance)
	assert.Equal(t, int64(1200), account.LifetimeEarned)

	_, err = repo.Credit(ctx, 99999, 200)
	assert.ErrorIs(t, err, ErrAccountNotFound)
}

func TestAccountRepository_TrySpend(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	repo := NewAccountRepository(pool, testStartingGrant)
	ctx := context.Background()

	_, _, err := repo.GetOrCreate(ctx, 12345, "alice")
	require.NoError(t, err)

	// Spend the full starting grant.
	ok, err := repo.TrySpend(ctx, 12345, testStartingGrant)
	require.NoError(t, err)
	assert.True(t, ok)

	account, err := repo.GetByID(ctx, 12345)
	require.NoError(t, err)
	assert.Equal(t, int64(0), account.Balance)

	// Even one more coin is refused and the balance stays at zero.
	ok, err = repo.TrySpend(ctx, 12345, 1)
	require.NoError(t, err)
	assert.False(t, ok)

	account, err = repo.GetByID(ctx, 12345)
	require.NoError(t, err)
	assert.Equal(t, int64(0), account.Balance)

	// Spending never touches lifetime earnings.
	assert.Equal(t, testStartingGrant, account.LifetimeEarned)
}

func TestAccountRepository_TrySpendConcurrent(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	repo := NewAccountRepository(pool, testStartingGrant)
	ctx := context.Background()

	_, _, err := repo.GetOrCreate(ctx, 12345, "alice")
	require.NoError(t, err)

	// Ten goroutines race to spend the full balance; exactly one wins.
	var wg sync.WaitGroup
	wins := make(chan bool, 10)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := repo.TrySpend(ctx, 12345, testStartingGrant)
			if err == nil && ok {
				wins <- true
			}
		}()
	}
	wg.Wait()
	close(wins)

	won := 0
	for range wins {
		won++
	}
	assert.Equal(t, 1, won)

	account, err := repo.GetByID(ctx, 12345)
	require.NoError(t, err)
	assert.Equal(t, int64(0), account.Balance)
}

func TestAccountRepository_DebitCappedAndRefund(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	repo := NewAccountRepository(pool, testStartingGrant)
	ctx := context.Background()

	_, _, err := repo.GetOrCreate(ctx, 12345, "alice")
	require.NoError(t, err)

	// Debit more than the balance floors at zero.
	account, err := repo.DebitCapped(ctx, 12345, 5000)
	require.NoError(t, err)
	assert.Equal(t, int64(0), account.Balance)
	assert.Equal(t, testStartingGrant, account.LifetimeEarned)

	// Refund restores balance without touching lifetime earnings.
	account, err = repo.Refund(ctx, 12345, 300)
	require.NoError(t, err)
	assert.Equal(t, int64(300), account.Balance)
	assert.Equal(t, testStartingGrant, account.LifetimeEarned)
}

func TestAccountRepository_Leaderboard(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	repo := NewAccountRepository(pool, testStartingGrant)
	ctx := context.Background()

	_, _, _ = repo.GetOrCreate(ctx, 1, "alice")
	_, _, _ = repo.GetOrCreate(ctx, 2, "bob")
	_, _, _ = repo.GetOrCreate(ctx, 3, "carol")

	_, _ = repo.Credit(ctx, 2, 500)
	_, _ = repo.Credit(ctx, 3, 2000)

	// Spending does not change the ranking.
	_, _ = repo.TrySpend(ctx, 3, 2500)

	accounts, err := repo.Leaderboard(ctx, 10)
	require.NoError(t, err)
	require.Len(t, accounts, 3)

	assert.Equal(t, int64(3), accounts[0].UserID) // 3000 lifetime
	assert.Equal(t, int64(2), accounts[1].UserID) // 1500
	assert.Equal(t, int64(1), accounts[2].UserID) // 1000
}

func TestAccountRepository_LeaderboardTieBreak(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	repo := NewAccountRepository(pool, testStartingGrant)
	ctx := context.Background()

	_, _, _ = repo.GetOrCreate(ctx, 20, "bob")
	_, _, _ = repo.GetOrCreate(ctx, 10, "alice")

	accounts, err := repo.Leaderboard(ctx, 10)
	require.NoError(t, err)
	require.Len(t, accounts, 2)

	// Equal lifetime earnings order by ascending user id.
	assert.Equal(t, int64(10), accounts[0].UserID)
	assert.Equal(t, int64(20), accounts[1].UserID)
}

// ============================================================================
// EligibilityRepository Tests
// ============================================================================

func TestEligibilityRepository(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	repo := NewEligibilityRepository(pool)
	ctx := context.Background()

	// No record reads as nil.
	rec, err := repo.Get(ctx, 12345, model.CategoryCheckin)
	require.NoError(t, err)
	assert.Nil(t, rec)

	today := time.Date(2026, 8, 28, 0, 0, 0, 0, time.UTC)
	err = repo.RecordAward(ctx, 12345, model.CategoryCheckin, today)
	require.NoError(t, err)

	rec, err = repo.Get(ctx, 12345, model.CategoryCheckin)
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, today, rec.LastAwardedDate.UTC())

	// Categories are independent.
	rec, err = repo.Get(ctx, 12345, model.CategoryMessage)
	require.NoError(t, err)
	assert.Nil(t, rec)

	// Re-recording overwrites the stored date.
	tomorrow := today.AddDate(0, 0, 1)
	err = repo.RecordAward(ctx, 12345, model.CategoryCheckin, tomorrow)
	require.NoError(t, err)

	rec, err = repo.Get(ctx, 12345, model.CategoryCheckin)
	require.NoError(t, err)
	assert.Equal(t, tomorrow, rec.LastAwardedDate.UTC())
}

// ============================================================================
// StreakRepository Tests
// ============================================================================

func TestStreakRepository(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	repo := NewStreakRepository(pool)
	ctx := context.Background()

	rec, err := repo.Get(ctx, 12345)
	require.NoError(t, err)
	assert.Nil(t, rec)

	day := time.Date(2026, 8, 28, 0, 0, 0, 0, time.UTC)
	err = repo.Upsert(ctx, 12345, day, 3)
	require.NoError(t, err)

	rec, err = repo.Get(ctx, 12345)
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, 3, rec.StreakLength)
	assert.Equal(t, day, rec.LastActivityDate.UTC())

	err = repo.Upsert(ctx, 12345, day.AddDate(0, 0, 1), 4)
	require.NoError(t, err)

	rec, err = repo.Get(ctx, 12345)
	require.NoError(t, err)
	assert.Equal(t, 4, rec.StreakLength)
}

// ============================================================================
// PlanRepository Tests
// ============================================================================

func TestPlanRepository_InsertAndList(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	repo := NewPlanRepository(pool)
	ctx := context.Background()

	day := time.Date(2026, 8, 28, 0, 0, 0, 0, time.UTC)

	count, err := repo.CountForDate(ctx, day)
	require.NoError(t, err)
	assert.Equal(t, 0, count)

	events := []model.StarEvent{
		{PlanDate: day, Slot: 0, FireAt: day.Add(3 * time.Hour), ChatID: -100, Phrase: "slime"},
		{PlanDate: day, Slot: 1, FireAt: day.Add(9 * time.Hour), ChatID: -100, Phrase: "bubbly"},
	}
	require.NoError(t, repo.InsertEvents(ctx, events))

	// Re-inserting the same slots is a no-op.
	require.NoError(t, repo.InsertEvents(ctx, events))

	count, err = repo.CountForDate(ctx, day)
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	listed, err := repo.ListForDate(ctx, day)
	require.NoError(t, err)
	require.Len(t, listed, 2)
	assert.Equal(t, "slime", listed[0].Phrase)
	assert.False(t, listed[0].Completed)
}

func TestPlanRepository_ClaimDueEvent(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	repo := NewPlanRepository(pool)
	ctx := context.Background()

	day := time.Date(2026, 8, 28, 0, 0, 0, 0, time.UTC)
	events := []model.StarEvent{
		{PlanDate: day, Slot: 0, FireAt: day.Add(3 * time.Hour), ChatID: -100, Phrase: "slime"},
		{PlanDate: day, Slot: 1, FireAt: day.Add(9 * time.Hour), ChatID: -100, Phrase: "bubbly"},
	}
	require.NoError(t, repo.InsertEvents(ctx, events))

	// Nothing is due before the first firing time.
	ev, err := repo.ClaimDueEvent(ctx, day, day.Add(2*time.Hour))
	require.NoError(t, err)
	assert.Nil(t, ev)

	// At 10:00 both are due; the earliest one is claimed first.
	ev, err = repo.ClaimDueEvent(ctx, day, day.Add(10*time.Hour))
	require.NoError(t, err)
	require.NotNil(t, ev)
	assert.Equal(t, 0, ev.Slot)
	assert.True(t, ev.Completed)

	ev, err = repo.ClaimDueEvent(ctx, day, day.Add(10*time.Hour))
	require.NoError(t, err)
	require.NotNil(t, ev)
	assert.Equal(t, 1, ev.Slot)

	// Every event is claimed at most once.
	ev, err = repo.ClaimDueEvent(ctx, day, day.Add(10*time.Hour))
	require.NoError(t, err)
	assert.Nil(t, ev)
}

// ============================================================================
// CatalogRepository Tests
// ============================================================================

func TestCatalogRepository_AddAndDuplicateCheck(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	repo := NewCatalogRepository(pool)
	ctx := context.Background()

	entry, err := repo.Add(ctx, 1, "Karma Police", "Radiohead", "http://art", "http://src")
	require.NoError(t, err)
	assert.False(t, entry.Used)

	// Duplicate detection is case-insensitive.
	exists, err := repo.HasUnusedByTitleArtist(ctx, "KARMA POLICE", "radiohead")
	require.NoError(t, err)
	assert.True(t, exists)

	exists, err = repo.HasUnusedByTitleArtist(ctx, "Creep", "Radiohead")
	require.NoError(t, err)
	assert.False(t, exists)

	// A featured song no longer blocks re-adding.
	require.NoError(t, repo.MarkUsed(ctx, entry.ID))
	exists, err = repo.HasUnusedByTitleArtist(ctx, "Karma Police", "Radiohead")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestCatalogRepository_PickRandomUnused(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	repo := NewCatalogRepository(pool)
	ctx := context.Background()

	// Empty catalog yields no pick.
	entry, err := repo.PickRandomUnused(ctx)
	require.NoError(t, err)
	assert.Nil(t, entry)

	e1, err := repo.Add(ctx, 1, "Song A", "Artist A", "", "http://a")
	require.NoError(t, err)
	e2, err := repo.Add(ctx, 2, "Song B", "Artist B", "", "http://b")
	require.NoError(t, err)

	// Draining the catalog picks each entry exactly once.
	seen := make(map[int64]bool)
	for i := 0; i < 2; i++ {
		entry, err = repo.PickRandomUnused(ctx)
		require.NoError(t, err)
		require.NotNil(t, entry)
		assert.False(t, seen[entry.ID])
		seen[entry.ID] = true
		require.NoError(t, repo.MarkUsed(ctx, entry.ID))
	}
	assert.True(t, seen[e1.ID])
	assert.True(t, seen[e2.ID])

	entry, err = repo.PickRandomUnused(ctx)
	require.NoError(t, err)
	assert.Nil(t, entry)
}

// ============================================================================
// BirthdayRepository Tests
// ============================================================================

func TestBirthdayRepository_SetGetRemove(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	repo := NewBirthdayRepository(pool)
	ctx := context.Background()

	b, err := repo.Get(ctx, 12345)
	require.NoError(t, err)
	assert.Nil(t, b)

	year := 1998
	first, err := repo.Set(ctx, &model.Birthday{
		UserID: 12345, Month: 3, Day: 14, Year: &year, Timezone: "Europe/Berlin",
	})
	require.NoError(t, err)
	assert.True(t, first)

	// Re-setting is not a first set.
	first, err = repo.Set(ctx, &model.Birthday{
		UserID: 12345, Month: 5, Day: 1, Timezone: "Europe/Berlin",
	})
	require.NoError(t, err)
	assert.False(t, first)

	b, err = repo.Get(ctx, 12345)
	require.NoError(t, err)
	require.NotNil(t, b)
	assert.Equal(t, 5, b.Month)
	assert.Nil(t, b.Year)

	removed, err := repo.Remove(ctx, 12345)
	require.NoError(t, err)
	assert.True(t, removed)

	b, err = repo.Get(ctx, 12345)
	require.NoError(t, err)
	assert.Nil(t, b)

	// Removing twice reports nothing to remove.
	removed, err = repo.Remove(ctx, 12345)
	require.NoError(t, err)
	assert.False(t, removed)

	// Setting again revives the soft-deleted row, but it is not a
	// first set anymore: the first-time reward stays one-shot.
	first, err = repo.Set(ctx, &model.Birthday{
		UserID: 12345, Month: 7, Day: 20, Timezone: "Asia/Tokyo",
	})
	require.NoError(t, err)
	assert.False(t, first)
}

func TestBirthdayRepository_Timezones(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	repo := NewBirthdayRepository(pool)
	ctx := context.Background()

	_, _ = repo.Set(ctx, &model.Birthday{UserID: 1, Month: 1, Day: 1, Timezone: "Europe/Berlin"})
	_, _ = repo.Set(ctx, &model.Birthday{UserID: 2, Month: 2, Day: 2, Timezone: "Europe/Berlin"})
	_, _ = repo.Set(ctx, &model.Birthday{UserID: 3, Month: 3, Day: 3, Timezone: "Asia/Tokyo"})
	_, _ = repo.Remove(ctx, 3)

	zones, err := repo.DistinctTimezones(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"Europe/Berlin"}, zones)

	records, err := repo.ListActiveForTimezone(ctx, "Europe/Berlin")
	require.NoError(t, err)
	assert.Len(t, records, 2)
}

// ============================================================================
// CustomRoleRepository Tests
// ============================================================================

func TestCustomRoleRepository(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	repo := NewCustomRoleRepository(pool)
	ctx := context.Background()

	role, err := repo.Get(ctx, 12345)
	require.NoError(t, err)
	assert.Nil(t, role)

	err = repo.Set(ctx, &model.CustomRole{UserID: 12345, RoleRef: "Chaos Gremlin", Name: "Chaos Gremlin", Color: 0xff0000})
	require.NoError(t, err)

	// Buying again replaces the stored role.
	err = repo.Set(ctx, &model.CustomRole{UserID: 12345, RoleRef: "Night Mayor", Name: "Night Mayor", Color: 0x0000ff})
	require.NoError(t, err)

	role, err = repo.Get(ctx, 12345)
	require.NoError(t, err)
	require.NotNil(t, role)
	assert.Equal(t, "Night Mayor", role.Name)
	assert.Equal(t, 0x0000ff, role.Color)

	require.NoError(t, repo.Delete(ctx, 12345))

	role, err = repo.Get(ctx, 12345)
	require.NoError(t, err)
	assert.Nil(t, role)
}
