// Package model defines the data models for the community coin bot.
package model

import "time"

// Account is a user's ledger entry. Balance is spendable and never drops
// below zero; LifetimeEarned only grows and is untouched by spending.
type Account struct {
	UserID         int64     `db:"user_id"`
	DisplayName    string    `db:"display_name"`
	Balance        int64     `db:"balance"`
	LifetimeEarned int64     `db:"lifetime_earned"`
	CreatedAt      time.Time `db:"created_at"`
	UpdatedAt      time.Time `db:"updated_at"`
}

// EligibilityRecord marks the last UTC calendar day a user was awarded
// in a given category. At most one award per category per UTC day.
type EligibilityRecord struct {
	UserID          int64     `db:"user_id"`
	Category        string    `db:"category"`
	LastAwardedDate time.Time `db:"last_awarded_date"`
}

// StreakRecord tracks the snap photo streak. StreakLength counts
// consecutive qualifying days prior to LastActivityDate's day.
type StreakRecord struct {
	UserID           int64     `db:"user_id"`
	LastActivityDate time.Time `db:"last_activity_date"`
	StreakLength     int       `db:"streak_length"`
}

// StarEvent is one slot of the daily shooting-star plan. Events are
// generated once per day and flipped to completed right before firing.
type StarEvent struct {
	PlanDate  time.Time `db:"plan_date"`
	Slot      int       `db:"slot"`
	FireAt    time.Time `db:"fire_at"`
	ChatID    int64     `db:"chat_id"`
	Phrase    string    `db:"phrase"`
	Completed bool      `db:"completed"`
}

// CustomRole is the one-row-per-user purchased cosmetic role.
type CustomRole struct {
	UserID  int64  `db:"user_id"`
	RoleRef string `db:"role_ref"`
	Name    string `db:"name"`
	Color   int    `db:"color"`
}

// CatalogEntry is a community-submitted song awaiting its feature day.
type CatalogEntry struct {
	ID            int64     `db:"id"`
	ContributorID int64     `db:"contributor_id"`
	Title         string    `db:"title"`
	Artist        string    `db:"artist"`
	ArtURL        string    `db:"art_url"`
	SourceURL     string    `db:"source_url"`
	Used          bool      `db:"used"`
	DateAdded     time.Time `db:"date_added"`
}

// Birthday is a soft-deletable birthday record. Year is optional.
type Birthday struct {
	UserID   int64  `db:"user_id"`
	Month    int    `db:"month"`
	Day      int    `db:"day"`
	Year     *int   `db:"year"`
	Timezone string `db:"timezone"`
}

// Reward categories gated once per UTC calendar day. The gate itself is
// category-parametric; these are the categories currently in use.
const (
	CategoryCheckin = "checkin"
	CategoryMessage = "message"
)
