// Package bot provides the Telegram bot initialization and handler
// registration, plus the platform-facing adapters the services and
// scheduler talk through.
package bot

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	tele "gopkg.in/telebot.v3"

	"telegram-community-bot/internal/config"
	"telegram-community-bot/internal/game/star"
	"telegram-community-bot/internal/handler"
	"telegram-community-bot/internal/service"
)

// Bot wraps the telebot instance with application dependencies.
type Bot struct {
	bot *tele.Bot
	cfg *config.Config

	wallet    *service.WalletService
	rewards   *service.RewardService
	streaks   *service.StreakService
	songs     *service.SongService
	birthdays *service.BirthdayService
	roles     *service.RoleShopService
	photos    *service.PhotoService
	ask       *service.AskService
	machine   *star.Machine

	coinsHandler    *handler.CoinsHandler
	messageHandler  *handler.MessageHandler
	snapHandler     *handler.SnapHandler
	birthdayHandler *handler.BirthdayHandler
	songHandler     *handler.SongHandler
	roleHandler     *handler.RoleHandler
	askHandler      *handler.AskHandler
	photoHandler    *handler.PhotoHandler

	tierMu    sync.Mutex
	tierCache map[int64]tierEntry
}

// Dependencies holds everything the bot handlers need. The role shop
// is attached afterwards via SetRoleService since it needs the bot as
// its platform adapter.
type Dependencies struct {
	Config    *config.Config
	Wallet    *service.WalletService
	Rewards   *service.RewardService
	Streaks   *service.StreakService
	Songs     *service.SongService
	Birthdays *service.BirthdayService
	Photos    *service.PhotoService
	Ask       *service.AskService
	Machine   *star.Machine
}

// New creates a new Bot instance with the given dependencies.
func New(deps *Dependencies) (*Bot, error) {
	if deps.Config.Bot.Token == "" {
		return nil, fmt.Errorf("bot token is required")
	}

	pref := tele.Settings{
		Token:  deps.Config.Bot.Token,
		Poller: &tele.LongPoller{Timeout: 10 * time.Second},
	}

	teleBot, err := tele.NewBot(pref)
	if err != nil {
		return nil, fmt.Errorf("failed to create bot: %w", err)
	}

	b := &Bot{
		bot:       teleBot,
		cfg:       deps.Config,
		wallet:    deps.Wallet,
		rewards:   deps.Rewards,
		streaks:   deps.Streaks,
		songs:     deps.Songs,
		birthdays: deps.Birthdays,
		photos:    deps.Photos,
		ask:       deps.Ask,
		machine:   deps.Machine,
		tierCache: make(map[int64]tierEntry),
	}

	b.coinsHandler = handler.NewCoinsHandler(deps.Wallet, deps.Rewards, b)
	b.messageHandler = handler.NewMessageHandler(deps.Wallet, deps.Rewards, deps.Machine, b, deps.Config.Rewards.StarCatch)
	b.snapHandler = handler.NewSnapHandler(deps.Streaks, b, deps.Config.Channels.Snap)
	b.birthdayHandler = handler.NewBirthdayHandler(deps.Birthdays)
	b.songHandler = handler.NewSongHandler(deps.Songs)
	b.askHandler = handler.NewAskHandler(deps.Ask)
	b.photoHandler = handler.NewPhotoHandler(deps.Photos)

	b.registerMiddleware()
	b.registerHandlers()

	return b, nil
}

// registerMiddleware registers all middleware.
func (b *Bot) registerMiddleware() {
	b.bot.Use(RecoveryMiddleware())
	b.bot.Use(WhitelistMiddleware(b.cfg))
	b.bot.Use(LoggingMiddleware())
}

// registerHandlers registers all command handlers.
func (b *Bot) registerHandlers() {
	b.bot.Handle("/coins", b.coinsHandler.HandleCoins)
	b.bot.Handle("/daily", b.coinsHandler.HandleDaily)
	b.bot.Handle("/leaderboard", b.coinsHandler.HandleLeaderboard)

	b.bot.Handle("/snap", b.snapHandler.HandleSnap)

	b.bot.Handle("/birthday", b.birthdayHandler.HandleGet)
	b.bot.Handle("/birthday_get", b.birthdayHandler.HandleGet)
	b.bot.Handle("/birthday_set", b.birthdayHandler.HandleSet)
	b.bot.Handle("/birthday_remove", b.birthdayHandler.HandleRemove)

	b.bot.Handle("/sotd", b.songHandler.HandleAdd)

	b.bot.Handle("/ask", b.askHandler.HandleAsk)
	b.bot.Handle("/photo", b.photoHandler.HandlePhoto)

	// Every plain message feeds the first-message bonus and the star
	// catch. Photo messages route by caption so /snap with an attached
	// photo still reaches the snap handler.
	b.bot.Handle(tele.OnText, b.messageHandler.HandleText)
	b.bot.Handle(tele.OnPhoto, b.handlePhotoMessage)
}

// handlePhotoMessage routes photos captioned /snap to the snap handler.
func (b *Bot) handlePhotoMessage(c tele.Context) error {
	msg := c.Message()
	if msg == nil {
		return nil
	}
	if strings.HasPrefix(strings.TrimSpace(msg.Caption), "/snap") {
		return b.snapHandler.HandleSnap(c)
	}
	return nil
}

// SetRoleService attaches the role shop and registers its commands.
// Must be called before Start; the shop needs the bot as its platform
// adapter, so it cannot be built before the bot exists.
func (b *Bot) SetRoleService(roles *service.RoleShopService) {
	b.roles = roles
	b.roleHandler = handler.NewRoleHandler(roles, b.cfg)
	b.bot.Handle("/customrole", b.roleHandler.HandleBuy)
	b.bot.Handle("/removerole", b.roleHandler.HandleRemove)
}

// Start starts the bot polling.
func (b *Bot) Start() {
	log.Info().Msg("Starting bot...")
	b.bot.Start()
}

// Stop stops the bot gracefully.
func (b *Bot) Stop() {
	log.Info().Msg("Stopping bot...")
	b.bot.Stop()
}

// GetBot returns the underlying telebot instance.
func (b *Bot) GetBot() *tele.Bot {
	return b.bot
}

// --- scheduler.Poster ---

// PostStar announces an armed round and returns a handle for deleting
// the announcement if the round expires.
func (b *Bot) PostStar(chatID int64, phrase string) (star.MessageRef, error) {
	msg, err := b.bot.Send(tele.ChatID(chatID), fmt.Sprintf(
		"🌠 A shooting star streaks across the sky!\n\nFirst to type \"%s\" catches it!",
		phrase,
	))
	if err != nil {
		return star.MessageRef{}, fmt.Errorf("failed to send star announcement: %w", err)
	}
	return star.MessageRef{ChatID: chatID, MessageID: msg.ID}, nil
}

// DeleteStar retracts an expired round's announcement.
func (b *Bot) DeleteStar(ref star.MessageRef) error {
	return b.bot.Delete(&tele.StoredMessage{
		MessageID: strconv.Itoa(ref.MessageID),
		ChatID:    ref.ChatID,
	})
}

// PostBirthday announces a birthday in the configured channel.
func (b *Bot) PostBirthday(chatID, userID int64, age *int) error {
	mention := fmt.Sprintf("[this wonderful human](tg://user?id=%d)", userID)
	text := fmt.Sprintf("🎂 It's %s's birthday today! 🎉", mention)
	if age != nil {
		text = fmt.Sprintf("🎂 %s turns %d today! 🎉", mention, *age)
	}
	text += fmt.Sprintf("\n\nA birthday gift of %d coins is on its way. Go wish them well!", b.cfg.Rewards.Birthday)

	_, err := b.bot.Send(tele.ChatID(chatID), text, tele.ModeMarkdown)
	if err != nil {
		return fmt.Errorf("failed to send birthday announcement: %w", err)
	}
	return nil
}

// PostSong posts the song of the day card.
func (b *Bot) PostSong(chatID int64, featured *service.FeaturedSong) error {
	entry := featured.Entry

	text := fmt.Sprintf("🎵 *Song of the day*\n\n*%s*\n%s", escapeMarkdown(entry.Title), escapeMarkdown(entry.Artist))
	if featured.Spotify != "" {
		text += fmt.Sprintf("\n\n[Spotify](%s)", featured.Spotify)
	}
	if featured.AppleMusic != "" {
		text += fmt.Sprintf(" · [Apple Music](%s)", featured.AppleMusic)
	}
	if featured.YouTube != "" {
		text += fmt.Sprintf(" · [YouTube](%s)", featured.YouTube)
	}
	if featured.Spotify == "" && featured.AppleMusic == "" && featured.YouTube == "" {
		text += fmt.Sprintf("\n\n%s", entry.SourceURL)
	}
	text += fmt.Sprintf("\n\nSubmitted by [a community member](tg://user?id=%d) 💿", entry.ContributorID)

	var payload interface{} = text
	if entry.ArtURL != "" {
		payload = &tele.Photo{File: tele.FromURL(entry.ArtURL), Caption: text}
	}

	_, err := b.bot.Send(tele.ChatID(chatID), payload, tele.ModeMarkdown)
	if err != nil {
		return fmt.Errorf("failed to send song of the day: %w", err)
	}
	return nil
}

// --- service.RoleGranter ---

// Grant promotes the user with a minimal right so Telegram accepts a
// custom admin title, then applies the purchased name. The title
// doubles as the role reference; Telegram has no role colors, so the
// stored color only shows up in the purchase receipt.
func (b *Bot) Grant(ctx context.Context, chatID, userID int64, name string, color int) (string, error) {
	chat := &tele.Chat{ID: chatID}
	member := &tele.ChatMember{
		User:   &tele.User{ID: userID},
		Rights: tele.Rights{CanInviteUsers: true},
	}

	if err := b.bot.Promote(chat, member); err != nil {
		return "", fmt.Errorf("failed to promote user: %w", err)
	}
	if err := b.bot.SetAdminTitle(chat, &tele.User{ID: userID}, name); err != nil {
		return "", fmt.Errorf("failed to set admin title: %w", err)
	}
	return name, nil
}

// Revoke demotes the user, clearing their custom title with the
// promotion.
func (b *Bot) Revoke(ctx context.Context, chatID, userID int64, roleRef string) error {
	chat := &tele.Chat{ID: chatID}
	member := &tele.ChatMember{
		User:   &tele.User{ID: userID},
		Rights: tele.Rights{},
	}

	if err := b.bot.Promote(chat, member); err != nil {
		return fmt.Errorf("failed to demote user: %w", err)
	}
	return nil
}

// --- handler.TierResolver ---

type tierEntry struct {
	multiplier float64
	expires    time.Time
}

const tierCacheTTL = 10 * time.Minute

// Multiplier returns the highest reward multiplier among the tier chats
// the user belongs to, 1.0 when none. Lookups hit the platform, so
// results are cached briefly; a lapsed subscription keeps its perk for
// at most the cache window.
func (b *Bot) Multiplier(userID int64) float64 {
	b.tierMu.Lock()
	if entry, ok := b.tierCache[userID]; ok && time.Now().Before(entry.expires) {
		b.tierMu.Unlock()
		return entry.multiplier
	}
	b.tierMu.Unlock()

	multiplier := 1.0
	for _, tier := range b.cfg.Tiers {
		member, err := b.bot.ChatMemberOf(tele.ChatID(tier.ChatID), &tele.User{ID: userID})
		if err != nil {
			log.Debug().Err(err).Int64("user_id", userID).Int64("chat_id", tier.ChatID).Msg("Tier membership lookup failed")
			continue
		}
		switch member.Role {
		case tele.Member, tele.Administrator, tele.Creator:
			if tier.Multiplier > multiplier {
				multiplier = tier.Multiplier
			}
		}
	}

	b.tierMu.Lock()
	b.tierCache[userID] = tierEntry{multiplier: multiplier, expires: time.Now().Add(tierCacheTTL)}
	b.tierMu.Unlock()

	return multiplier
}

var markdownEscaper = strings.NewReplacer("_", "\\_", "*", "\\*", "[", "\\[", "`", "\\`")

func escapeMarkdown(s string) string {
	return markdownEscaper.Replace(s)
}
