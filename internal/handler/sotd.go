package handler

import (
	"context"
	"errors"
	"fmt"
	"strings"

	tele "gopkg.in/telebot.v3"

	"telegram-community-bot/internal/service"
)

// SongHandler handles the community song catalog commands.
type SongHandler struct {
	songs *service.SongService
}

// NewSongHandler creates a new SongHandler.
func NewSongHandler(songs *service.SongService) *SongHandler {
	return &SongHandler{songs: songs}
}

// HandleAdd handles /sotd <track url>, adding a song to the catalog of
// candidates for the daily post.
func (h *SongHandler) HandleAdd(c tele.Context) error {
	ctx := context.Background()
	sender := c.Sender()
	if sender == nil {
		return nil
	}

	args := c.Args()
	if len(args) != 1 || !strings.HasPrefix(args[0], "http") {
		return c.Reply("Usage: /sotd <track link>\nAny platform works — Spotify, Apple Music, YouTube...")
	}

	entry, err := h.songs.Add(ctx, sender.ID, args[0])
	if err != nil {
		switch {
		case errors.Is(err, service.ErrSongNotResolved):
			return c.Reply("❌ I couldn't resolve that link to a track. Is it a direct song link?")
		case errors.Is(err, service.ErrDuplicateSong):
			return c.Reply("🔁 That song is already waiting in the catalog")
		default:
			return c.Reply("❌ Could not add the song, try again later")
		}
	}

	return c.Reply(fmt.Sprintf(
		"🎵 Added \"%s\" by %s to the catalog. It'll show up as a song of the day eventually!",
		entry.Title, entry.Artist,
	))
}
