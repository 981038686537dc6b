package handler

import (
	"context"
	"errors"
	"fmt"
	"strings"

	tele "gopkg.in/telebot.v3"

	"telegram-community-bot/internal/config"
	"telegram-community-bot/internal/service"
)

// RoleHandler handles the custom role shop commands.
type RoleHandler struct {
	roles *service.RoleShopService
	cfg   *config.Config
}

// NewRoleHandler creates a new RoleHandler.
func NewRoleHandler(roles *service.RoleShopService, cfg *config.Config) *RoleHandler {
	return &RoleHandler{roles: roles, cfg: cfg}
}

// HandleBuy handles /customrole <name> | <color>. Everything before the
// pipe is the role name, so multi-word names need no quoting; the part
// after it is the optional color.
func (h *RoleHandler) HandleBuy(c tele.Context) error {
	ctx := context.Background()
	sender := c.Sender()
	if sender == nil {
		return nil
	}

	args := c.Args()
	if len(args) == 0 {
		return c.Reply(fmt.Sprintf(
			"Usage: /customrole <name> | <color>\nA custom title costs %d coins. Colors: red, blue, gold, #ff00ff...",
			h.roles.Price(),
		))
	}

	name, color := splitRoleArgs(strings.Join(args, " "))

	role, err := h.roles.Purchase(ctx, c.Chat().ID, sender.ID, displayName(sender), name, color)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidRoleName):
			return c.Reply("❌ Role names are 1-32 letters, digits, spaces or basic punctuation")
		case errors.Is(err, service.ErrInsufficientBalance):
			return c.Reply(fmt.Sprintf("💸 A custom role costs %d coins and you don't have that", h.roles.Price()))
		default:
			return c.Reply("❌ The purchase failed and your coins were returned. Try again later")
		}
	}

	return c.Reply(fmt.Sprintf("👑 You now wear \"%s\" (#%06x). Enjoy!", role.Name, role.Color))
}

// splitRoleArgs separates the role name from the color on the pipe.
// Without a pipe the whole input is the name and the color stays
// default.
func splitRoleArgs(raw string) (name, color string) {
	if before, after, found := strings.Cut(raw, "|"); found {
		return strings.TrimSpace(before), strings.TrimSpace(after)
	}
	return strings.TrimSpace(raw), ""
}

// HandleRemove handles /removerole, the owner-only cleanup that revokes
// a role and refunds its price. Target by replying to the user.
func (h *RoleHandler) HandleRemove(c tele.Context) error {
	ctx := context.Background()
	sender := c.Sender()
	if sender == nil {
		return nil
	}

	if !h.cfg.IsOwner(sender.ID) {
		return c.Reply("🚫 Only the bot owner can remove roles")
	}

	msg := c.Message()
	if msg == nil || msg.ReplyTo == nil || msg.ReplyTo.Sender == nil {
		return c.Reply("Usage: reply to a message from the role holder with /removerole")
	}
	target := msg.ReplyTo.Sender

	role, err := h.roles.AdminRemove(ctx, c.Chat().ID, target.ID)
	if err != nil {
		if errors.Is(err, service.ErrNoCustomRole) {
			return c.Reply("🤷 That user has no custom role")
		}
		return c.Reply("❌ Could not remove the role, try again later")
	}

	return c.Reply(fmt.Sprintf("🗑 Removed \"%s\" and refunded the purchase", role.Name))
}
