// Package main is the entry point for the community coin bot.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"telegram-community-bot/internal/bot"
	"telegram-community-bot/internal/config"
	"telegram-community-bot/internal/game/star"
	"telegram-community-bot/internal/pkg/ai"
	"telegram-community-bot/internal/pkg/db"
	"telegram-community-bot/internal/pkg/lock"
	"telegram-community-bot/internal/pkg/songlink"
	"telegram-community-bot/internal/repository"
	"telegram-community-bot/internal/scheduler"
	"telegram-community-bot/internal/service"
)

func main() {
	// Configure zerolog
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	// Load configuration
	cfg, err := config.Load("config")
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	log.Info().Msg("Configuration loaded successfully")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize database connection pool
	dbPool, err := db.NewPool(ctx, &cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer dbPool.Close()

	// Run database migrations
	if err := runMigrations(ctx, dbPool); err != nil {
		log.Fatal().Err(err).Msg("Failed to run database migrations")
	}

	// Initialize repositories
	accountRepo := repository.NewAccountRepository(dbPool.Pool, cfg.Rewards.StartingGrant)
	eligibilityRepo := repository.NewEligibilityRepository(dbPool.Pool)
	streakRepo := repository.NewStreakRepository(dbPool.Pool)
	planRepo := repository.NewPlanRepository(dbPool.Pool)
	catalogRepo := repository.NewCatalogRepository(dbPool.Pool)
	birthdayRepo := repository.NewBirthdayRepository(dbPool.Pool)
	roleRepo := repository.NewCustomRoleRepository(dbPool.Pool)

	// Initialize user lock and external clients
	userLock := lock.NewUserLock()
	songlinkClient := songlink.NewClient()
	aiClient := ai.NewClient(cfg.AI.APIKey, cfg.AI.BaseURL, cfg.AI.Model, cfg.AI.SystemPrompt)

	// Initialize services
	walletService := service.NewWalletService(accountRepo)
	rewardService := service.NewRewardService(walletService, eligibilityRepo, userLock, cfg.Rewards.Checkin, cfg.Rewards.Message)
	streakService := service.NewStreakService(walletService, streakRepo, userLock, cfg.Rewards.StreakUnit, cfg.Rewards.StreakCap)
	songService := service.NewSongService(catalogRepo, songlinkClient)
	birthdayService := service.NewBirthdayService(walletService, birthdayRepo, cfg.Rewards.Birthday, cfg.Rewards.BirthdayFirstSet)
	photoService := service.NewPhotoService(walletService, userLock, cfg.Photos.Dir, cfg.Prices.Photo)
	askService := service.NewAskService(walletService, aiClient, userLock, cfg.Prices.Ask)

	// The round machine's expiry callback reaches the engine, which is
	// built after the machine; the closure resolves at fire time.
	var engine *scheduler.Engine
	machine := star.NewMachine(cfg.Star.CatchWindow, func(round star.Round) {
		engine.OnRoundExpired(round)
	})

	// Initialize bot (also the platform adapter for roles and posts)
	deps := &bot.Dependencies{
		Config:    cfg,
		Wallet:    walletService,
		Rewards:   rewardService,
		Streaks:   streakService,
		Songs:     songService,
		Birthdays: birthdayService,
		Photos:    photoService,
		Ask:       askService,
		Machine:   machine,
	}

	telegramBot, err := bot.New(deps)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create bot")
	}

	roleService := service.NewRoleShopService(walletService, roleRepo, telegramBot, userLock, cfg.Prices.CustomRole)
	telegramBot.SetRoleService(roleService)

	engine = scheduler.NewEngine(cfg, planRepo, machine, songService, birthdayService, telegramBot)
	birthdayService.OnNewTimezone = engine.EnsureTimezoneJob

	if err := engine.Start(ctx); err != nil {
		log.Fatal().Err(err).Msg("Failed to start scheduler engine")
	}

	// Setup graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		log.Info().Msg("Bot is starting...")
		telegramBot.Start()
	}()

	sig := <-sigChan
	log.Info().Str("signal", sig.String()).Msg("Received shutdown signal")

	engine.Stop()
	telegramBot.Stop()
	log.Info().Msg("Bot stopped gracefully")
}

// runMigrations executes database migrations.
func runMigrations(ctx context.Context, pool *db.Pool) error {
	log.Info().Msg("Running database migrations...")

	// Migration 1: accounts
	_, err := pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS accounts (
			user_id BIGINT PRIMARY KEY,
			display_name VARCHAR(255) NOT NULL DEFAULT '',
			balance BIGINT NOT NULL,
			lifetime_earned BIGINT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
		CREATE INDEX IF NOT EXISTS idx_accounts_lifetime ON accounts(lifetime_earned DESC);
	`)
	if err != nil {
		return err
	}
	log.Info().Msg("Migration 1: accounts table created")

	// Migration 2: eligibility gate
	_, err = pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS eligibility (
			user_id BIGINT NOT NULL,
			category VARCHAR(50) NOT NULL,
			last_awarded_date DATE NOT NULL,
			PRIMARY KEY (user_id, category)
		);
	`)
	if err != nil {
		return err
	}
	log.Info().Msg("Migration 2: eligibility table created")

	// Migration 3: streaks
	_, err = pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS streaks (
			user_id BIGINT PRIMARY KEY,
			last_activity_date DATE NOT NULL,
			streak_length INT NOT NULL
		);
	`)
	if err != nil {
		return err
	}
	log.Info().Msg("Migration 3: streaks table created")

	// Migration 4: shooting-star event plan
	_, err = pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS star_events (
			plan_date DATE NOT NULL,
			slot INT NOT NULL,
			fire_at TIMESTAMPTZ NOT NULL,
			chat_id BIGINT NOT NULL,
			phrase VARCHAR(100) NOT NULL,
			completed BOOLEAN NOT NULL DEFAULT FALSE,
			PRIMARY KEY (plan_date, slot)
		);
		CREATE INDEX IF NOT EXISTS idx_star_events_due ON star_events(plan_date, completed, fire_at);
	`)
	if err != nil {
		return err
	}
	log.Info().Msg("Migration 4: star_events table created")

	// Migration 5: custom roles
	_, err = pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS custom_roles (
			user_id BIGINT PRIMARY KEY,
			role_ref VARCHAR(255) NOT NULL,
			name VARCHAR(64) NOT NULL,
			color INT NOT NULL
		);
	`)
	if err != nil {
		return err
	}
	log.Info().Msg("Migration 5: custom_roles table created")

	// Migration 6: song catalog
	_, err = pool.Exec(ctx, `
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
		CREATE INDEX IF NOT EXISTS idx_catalog_unused ON catalog_entries(contributor_id) WHERE used = FALSE;
	`)
	if err != nil {
		return err
	}
	log.Info().Msg("Migration 6: catalog_entries table created")

	// Migration 7: birthdays
	_, err = pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS birthdays (
			user_id BIGINT PRIMARY KEY,
			month INT NOT NULL,
			day INT NOT NULL,
			year INT,
			timezone VARCHAR(64) NOT NULL,
			removed BOOLEAN NOT NULL DEFAULT FALSE
		);
		CREATE INDEX IF NOT EXISTS idx_birthdays_timezone ON birthdays(timezone) WHERE removed = FALSE;
	`)
	if err != nil {
		return err
	}
	log.Info().Msg("Migration 7: birthdays table created")

	log.Info().Msg("All migrations completed successfully")
	return nil
}
