package handler

import (
	"context"
	"errors"
	"fmt"
	"time"

	tele "gopkg.in/telebot.v3"

	"telegram-community-bot/internal/service"
)

// SnapHandler handles the daily photo streak. A photo captioned /snap
// (or a /snap command replying to a photo) claims today's streak.
type SnapHandler struct {
	streaks  *service.StreakService
	tiers    TierResolver
	snapChat int64
}

// NewSnapHandler creates a new SnapHandler. snapChat of zero allows
// snaps in any whitelisted chat.
func NewSnapHandler(streaks *service.StreakService, tiers TierResolver, snapChat int64) *SnapHandler {
	return &SnapHandler{streaks: streaks, tiers: tiers, snapChat: snapChat}
}

// HandleSnap claims today's streak. It must arrive with a photo
// attached, either directly or on the replied-to message.
func (h *SnapHandler) HandleSnap(c tele.Context) error {
	ctx := context.Background()
	sender := c.Sender()
	if sender == nil {
		return nil
	}

	if h.snapChat != 0 && c.Chat().ID != h.snapChat {
		return nil
	}
	if !hasPhoto(c.Message()) {
		return c.Reply("📷 Attach a photo to claim your snap streak")
	}

	account, advance, err := h.streaks.Claim(ctx, sender.ID, displayName(sender), h.tiers.Multiplier(sender.ID))
	if err != nil {
		if errors.Is(err, service.ErrAlreadyClaimed) {
			return c.Reply(fmt.Sprintf(
				"⏰ Today's snap is already in (streak: %d days). The next one opens in %s, at midnight UTC.",
				advance.Length+1, untilNextUTCMidnight(time.Now()),
			))
		}
		return c.Reply("❌ Could not record your snap, try again later")
	}

	return c.Reply(fmt.Sprintf(
		"📸 Snap streak day %d! +%d coins — balance %d",
		advance.Length+1, advance.Reward, account.Balance,
	))
}

// untilNextUTCMidnight formats the wait before the daily gates reset.
func untilNextUTCMidnight(now time.Time) string {
	now = now.UTC()
	next := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC).AddDate(0, 0, 1)
	d := next.Sub(now).Round(time.Minute)
	return fmt.Sprintf("%dh%02dm", int(d.Hours()), int(d.Minutes())%60)
}

func hasPhoto(msg *tele.Message) bool {
	if msg == nil {
		return false
	}
	if msg.Photo != nil {
		return true
	}
	return msg.ReplyTo != nil && msg.ReplyTo.Photo != nil
}
