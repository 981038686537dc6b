// Package config provides configuration management using viper.
// It supports loading from YAML files and environment variable overrides.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Bot       BotConfig       `mapstructure:"bot"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Whitelist WhitelistConfig `mapstructure:"whitelist"`
	Channels  ChannelsConfig  `mapstructure:"channels"`
	Rewards   RewardsConfig   `mapstructure:"rewards"`
	Prices    PricesConfig    `mapstructure:"prices"`
	Tiers     []TierConfig    `mapstructure:"tiers"`
	Star      StarConfig      `mapstructure:"star"`
	AI        AIConfig        `mapstructure:"ai"`
	Photos    PhotosConfig    `mapstructure:"photos"`
}

// BotConfig holds Telegram bot configuration.
type BotConfig struct {
	Token   string `mapstructure:"token"`
	OwnerID int64  `mapstructure:"owner_id"`
}

// DatabaseConfig holds PostgreSQL connection configuration.
type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	Name            string        `mapstructure:"name"`
	PoolSize        int           `mapstructure:"pool_size"`
	ConnectTimeout  time.Duration `mapstructure:"connect_timeout"`
	MaxConnLifetime time.Duration `mapstructure:"max_conn_lifetime"`
	MaxConnIdleTime time.Duration `mapstructure:"max_conn_idle_time"`
}

// WhitelistConfig holds chat whitelist configuration.
type WhitelistConfig struct {
	Chats []int64 `mapstructure:"chats"`
}

// ChannelsConfig holds per-feature target chat IDs. A zero or empty value
// disables the dependent feature; nothing here is required for startup.
type ChannelsConfig struct {
	StarPool  []int64 `mapstructure:"star_pool"`
	Birthday  int64   `mapstructure:"birthday"`
	SongOfDay int64   `mapstructure:"song_of_day"`
	Snap      int64   `mapstructure:"snap"`
}

// RewardsConfig holds earning amounts.
type RewardsConfig struct {
	StartingGrant    int64 `mapstructure:"starting_grant"`
	Checkin          int64 `mapstructure:"checkin"`
	Message          int64 `mapstructure:"message"`
	StarCatch        int64 `mapstructure:"star_catch"`
	Birthday         int64 `mapstructure:"birthday"`
	BirthdayFirstSet int64 `mapstructure:"birthday_first_set"`
	StreakUnit       int64 `mapstructure:"streak_unit"`
	StreakCap        int64 `mapstructure:"streak_cap"`
}

// PricesConfig holds spending amounts.
type PricesConfig struct {
	CustomRole int64 `mapstructure:"custom_role"`
	Photo      int64 `mapstructure:"photo"`
	Ask        int64 `mapstructure:"ask"`
}

// TierConfig binds a subscriber chat to a reward multiplier. Membership in
// the chat grants the multiplier; the highest matching tier wins.
type TierConfig struct {
	ChatID     int64   `mapstructure:"chat_id"`
	Multiplier float64 `mapstructure:"multiplier"`
}

// StarConfig holds shooting-star mini-game configuration.
type StarConfig struct {
	Phrases      []string      `mapstructure:"phrases"`
	EventsPerDay int           `mapstructure:"events_per_day"`
	CatchWindow  time.Duration `mapstructure:"catch_window"`
}

// AIConfig holds the OpenAI-compatible completion endpoint configuration.
// An empty APIKey disables the /ask feature.
type AIConfig struct {
	APIKey       string `mapstructure:"api_key"`
	BaseURL      string `mapstructure:"base_url"`
	Model        string `mapstructure:"model"`
	SystemPrompt string `mapstructure:"system_prompt"`
}

// PhotosConfig holds the photo drop configuration. An empty Dir disables
// the /photo feature.
type PhotosConfig struct {
	Dir string `mapstructure:"dir"`
}

// DSN returns the PostgreSQL connection string.
func (d *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=disable",
		d.User, d.Password, d.Host, d.Port, d.Name,
	)
}

// Load reads configuration from file and environment variables.
// It looks for config.yaml in the config directory.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(configPath)
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	// Environment variables use underscore separator and uppercase,
	// e.g. BOT_TOKEN, DATABASE_HOST, CHANNELS_BIRTHDAY
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Config file not found is OK - env vars can provide all config
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets default configuration values.
func setDefaults(v *viper.Viper) {
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "coinbot")
	v.SetDefault("database.name", "coinbot")
	v.SetDefault("database.pool_size", 20)
	v.SetDefault("database.connect_timeout", "10s")
	v.SetDefault("database.max_conn_lifetime", "1h")
	v.SetDefault("database.max_conn_idle_time", "30m")

	v.SetDefault("rewards.starting_grant", 1000)
	v.SetDefault("rewards.checkin", 200)
	v.SetDefault("rewards.message", 200)
	v.SetDefault("rewards.star_catch", 100)
	v.SetDefault("rewards.birthday", 5000)
	v.SetDefault("rewards.birthday_first_set", 1000)
	v.SetDefault("rewards.streak_unit", 25)
	v.SetDefault("rewards.streak_cap", 500)

	v.SetDefault("prices.custom_role", 2500)
	v.SetDefault("prices.photo", 1000)
	v.SetDefault("prices.ask", 100)

	v.SetDefault("star.phrases", []string{"inertia", "bubbly", "object", "slime", "ithaca", "betty"})
	v.SetDefault("star.events_per_day", 6)
	v.SetDefault("star.catch_window", "60s")

	v.SetDefault("ai.base_url", "https://api.deepseek.com")
	v.SetDefault("ai.model", "deepseek-chat")
}

// IsOwner checks if a user ID is the configured bot owner.
func (c *Config) IsOwner(userID int64) bool {
	return c.Bot.OwnerID != 0 && c.Bot.OwnerID == userID
}

// IsChatAllowed checks if a chat ID is in the whitelist.
func (c *Config) IsChatAllowed(chatID int64) bool {
	// Empty whitelist means all chats are allowed
	if len(c.Whitelist.Chats) == 0 {
		return true
	}
	for _, id := range c.Whitelist.Chats {
		if id == chatID {
			return true
		}
	}
	return false
}
