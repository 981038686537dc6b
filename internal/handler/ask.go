package handler

import (
	"context"
	"errors"
	"fmt"
	"strings"

	tele "gopkg.in/telebot.v3"

	"telegram-community-bot/internal/service"
)

// AskHandler handles the paid AI question command.
type AskHandler struct {
	ask *service.AskService
}

// NewAskHandler creates a new AskHandler.
func NewAskHandler(ask *service.AskService) *AskHandler {
	return &AskHandler{ask: ask}
}

// HandleAsk handles /ask <question>.
func (h *AskHandler) HandleAsk(c tele.Context) error {
	ctx := context.Background()
	sender := c.Sender()
	if sender == nil {
		return nil
	}

	if !h.ask.Enabled() {
		return c.Reply("🔌 The oracle is unplugged right now")
	}

	question := strings.TrimSpace(strings.TrimPrefix(c.Text(), "/ask"))
	if question == "" {
		return c.Reply(fmt.Sprintf("Usage: /ask <question> — costs %d coins", h.ask.Price()))
	}

	answer, err := h.ask.Ask(ctx, sender.ID, displayName(sender), question)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrQuestionTooLong):
			return c.Reply("❌ That question is too long, keep it under 1000 characters")
		case errors.Is(err, service.ErrInsufficientBalance):
			return c.Reply(fmt.Sprintf("💸 A question costs %d coins and you don't have that", h.ask.Price()))
		default:
			return c.Reply("❌ The oracle choked and your coins were returned. Try again later")
		}
	}

	return c.Reply(fmt.Sprintf("🔮 %s", answer))
}
