package handler

import (
	"context"
	"errors"
	"fmt"

	tele "gopkg.in/telebot.v3"

	"telegram-community-bot/internal/service"
)

// CoinsHandler handles the wallet commands.
type CoinsHandler struct {
	wallet  *service.WalletService
	rewards *service.RewardService
	tiers   TierResolver
}

// NewCoinsHandler creates a new CoinsHandler.
func NewCoinsHandler(wallet *service.WalletService, rewards *service.RewardService, tiers TierResolver) *CoinsHandler {
	return &CoinsHandler{wallet: wallet, rewards: rewards, tiers: tiers}
}

// HandleCoins handles the /coins command. First contact creates the
// account with the starting grant.
func (h *CoinsHandler) HandleCoins(c tele.Context) error {
	ctx := context.Background()
	sender := c.Sender()
	if sender == nil {
		return nil
	}

	account, created, err := h.wallet.EnsureAccount(ctx, sender.ID, displayName(sender))
	if err != nil {
		return c.Reply("❌ Could not look up your wallet, try again later")
	}

	if created {
		return c.Reply(fmt.Sprintf(
			"🎉 Welcome, %s! Your wallet is open with %d coins to get you started.",
			account.DisplayName, account.Balance,
		))
	}

	return c.Reply(fmt.Sprintf(
		"💰 %s, you have %d coins (%d earned all-time)",
		account.DisplayName, account.Balance, account.LifetimeEarned,
	))
}

// HandleDaily handles the /daily check-in command.
func (h *CoinsHandler) HandleDaily(c tele.Context) error {
	ctx := context.Background()
	sender := c.Sender()
	if sender == nil {
		return nil
	}

	account, reward, err := h.rewards.ClaimCheckin(ctx, sender.ID, displayName(sender), h.tiers.Multiplier(sender.ID))
	if err != nil {
		if errors.Is(err, service.ErrAlreadyClaimed) {
			return c.Reply("⏰ You already checked in today. Come back after midnight UTC!")
		}
		return c.Reply("❌ Check-in failed, try again later")
	}

	return c.Reply(fmt.Sprintf(
		"✅ Checked in! +%d coins — balance %d",
		reward, account.Balance,
	))
}

// HandleLeaderboard handles the /leaderboard command, ranked by
// lifetime earnings rather than spendable balance.
func (h *CoinsHandler) HandleLeaderboard(c tele.Context) error {
	ctx := context.Background()

	accounts, err := h.wallet.Leaderboard(ctx, 10)
	if err != nil {
		return c.Reply("❌ Could not load the leaderboard, try again later")
	}
	if len(accounts) == 0 {
		return c.Reply("📊 Nobody has earned any coins yet")
	}

	msg := "🏆 Top earners\n"
	msg += "━━━━━━━━━━━━━━━\n"

	medals := []string{"🥇", "🥈", "🥉"}
	for i, account := range accounts {
		rank := fmt.Sprintf("%d.", i+1)
		if i < len(medals) {
			rank = medals[i]
		}

		name := account.DisplayName
		if name == "" {
			name = fmt.Sprintf("User%d", account.UserID)
		}
		msg += fmt.Sprintf("%s %s: %d\n", rank, name, account.LifetimeEarned)
	}
	msg += "━━━━━━━━━━━━━━━"

	return c.Reply(msg)
}
