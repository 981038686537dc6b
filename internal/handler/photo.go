package handler

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"
	tele "gopkg.in/telebot.v3"

	"telegram-community-bot/internal/service"
)

// PhotoHandler handles the paid photo drop command.
type PhotoHandler struct {
	photos *service.PhotoService
}

// NewPhotoHandler creates a new PhotoHandler.
func NewPhotoHandler(photos *service.PhotoService) *PhotoHandler {
	return &PhotoHandler{photos: photos}
}

// HandlePhoto handles /photo. The spend happens before the send; a
// failed send refunds the purchase.
func (h *PhotoHandler) HandlePhoto(c tele.Context) error {
	ctx := context.Background()
	sender := c.Sender()
	if sender == nil {
		return nil
	}

	if !h.photos.Enabled() {
		return c.Reply("🔌 The photo box is empty right now")
	}

	path, err := h.photos.Purchase(ctx, sender.ID, displayName(sender))
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInsufficientBalance):
			return c.Reply(fmt.Sprintf("💸 A photo costs %d coins and you don't have that", h.photos.Price()))
		case errors.Is(err, service.ErrNoPhotos):
			return c.Reply("📭 The photo box is empty, your coins were returned")
		default:
			return c.Reply("❌ Could not fetch a photo, try again later")
		}
	}

	if err := c.Reply(&tele.Photo{File: tele.FromDisk(path)}); err != nil {
		log.Error().Err(err).Int64("user_id", sender.ID).Msg("Failed to deliver photo, refunding")
		if refundErr := h.photos.Refund(ctx, sender.ID, displayName(sender)); refundErr != nil {
			log.Error().Err(refundErr).Int64("user_id", sender.ID).Msg("Failed to refund photo delivery")
		}
		return c.Reply("❌ The photo got lost on the way and your coins were returned")
	}
	return nil
}
