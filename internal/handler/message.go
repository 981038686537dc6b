package handler

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
	tele "gopkg.in/telebot.v3"

	"telegram-community-bot/internal/game/star"
	"telegram-community-bot/internal/model"
	"telegram-community-bot/internal/service"
)

// Crediter is the one wallet operation a star catch needs.
// *service.WalletService implements it.
type Crediter interface {
	Credit(ctx context.Context, userID int64, displayName string, amount int64) (*model.Account, error)
}

// MessageHandler watches ordinary group messages for the silent
// first-message-of-the-day bonus and for shooting-star catches.
type MessageHandler struct {
	wallet      Crediter
	rewards     *service.RewardService
	machine     *star.Machine
	tiers       TierResolver
	catchReward int64
}

// NewMessageHandler creates a new MessageHandler.
func NewMessageHandler(
	wallet Crediter,
	rewards *service.RewardService,
	machine *star.Machine,
	tiers TierResolver,
	catchReward int64,
) *MessageHandler {
	return &MessageHandler{
		wallet:      wallet,
		rewards:     rewards,
		machine:     machine,
		tiers:       tiers,
		catchReward: catchReward,
	}
}

// HandleText runs on every plain text message in a whitelisted chat.
// The star catch is checked before the message bonus so a winning
// answer resolves the round as early as possible.
func (h *MessageHandler) HandleText(c tele.Context) error {
	sender := c.Sender()
	if sender == nil || sender.IsBot {
		return nil
	}
	ctx := context.Background()

	if round, won := h.machine.Claim(c.Chat().ID, c.Text()); won {
		if err := h.announceWin(ctx, c, round); err != nil {
			log.Error().Err(err).Int64("user_id", sender.ID).Msg("Failed to announce star win")
		}
	}

	reward, err := h.rewards.FirstMessageBonus(ctx, sender.ID, displayName(sender), h.tiers.Multiplier(sender.ID))
	if err != nil {
		log.Error().Err(err).Int64("user_id", sender.ID).Msg("Failed to process message bonus")
		return nil
	}
	if reward > 0 {
		log.Info().Int64("user_id", sender.ID).Int64("reward", reward).Msg("First message bonus paid")
	}
	return nil
}

// announceWin pays the flat catch reward. Tier multipliers apply to the
// daily earning flows only, never to the star catch.
func (h *MessageHandler) announceWin(ctx context.Context, c tele.Context, round star.Round) error {
	sender := c.Sender()

	reward := h.catchReward
	account, err := h.wallet.Credit(ctx, sender.ID, displayName(sender), reward)
	if err != nil {
		return fmt.Errorf("failed to credit star catch: %w", err)
	}

	return c.Reply(fmt.Sprintf(
		"🌠 %s caught the shooting star with \"%s\"! +%d coins — balance %d",
		account.DisplayName, round.Phrase, reward, account.Balance,
	))
}
