package handler

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	tele "gopkg.in/telebot.v3"

	"telegram-community-bot/internal/model"
	"telegram-community-bot/internal/service"
)

// BirthdayHandler handles the birthday commands.
type BirthdayHandler struct {
	birthdays *service.BirthdayService
}

// NewBirthdayHandler creates a new BirthdayHandler.
func NewBirthdayHandler(birthdays *service.BirthdayService) *BirthdayHandler {
	return &BirthdayHandler{birthdays: birthdays}
}

var monthNames = map[string]int{
	"january": 1, "february": 2, "march": 3, "april": 4,
	"may": 5, "june": 6, "july": 7, "august": 8,
	"september": 9, "october": 10, "november": 11, "december": 12,
	"jan": 1, "feb": 2, "mar": 3, "apr": 4, "jun": 6,
	"jul": 7, "aug": 8, "sep": 9, "oct": 10, "nov": 11, "dec": 12,
}

// parseMonth accepts month names, common abbreviations and numbers.
func parseMonth(s string) (int, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	if m, ok := monthNames[s]; ok {
		return m, true
	}
	if n, err := strconv.Atoi(s); err == nil && n >= 1 && n <= 12 {
		return n, true
	}
	return 0, false
}

const birthdaySetUsage = "Usage: /birthday_set <month> <day> [year] <timezone>\n" +
	"Example: /birthday_set March 14 1998 Europe/Berlin"

// HandleSet handles /birthday_set <month> <day> [year] <timezone>.
func (h *BirthdayHandler) HandleSet(c tele.Context) error {
	ctx := context.Background()
	sender := c.Sender()
	if sender == nil {
		return nil
	}

	args := c.Args()
	if len(args) < 3 || len(args) > 4 {
		return c.Reply(birthdaySetUsage)
	}

	month, ok := parseMonth(args[0])
	if !ok {
		return c.Reply("❌ I don't recognize that month\n\n" + birthdaySetUsage)
	}
	day, err := strconv.Atoi(args[1])
	if err != nil {
		return c.Reply("❌ The day must be a number\n\n" + birthdaySetUsage)
	}

	var year *int
	tz := args[2]
	if len(args) == 4 {
		y, err := strconv.Atoi(args[2])
		if err != nil {
			return c.Reply("❌ The year must be a number\n\n" + birthdaySetUsage)
		}
		year = &y
		tz = args[3]
	}

	_, first, reward, err := h.birthdays.Set(ctx, sender.ID, displayName(sender), month, day, year, tz)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidDate):
			return c.Reply("❌ That date doesn't exist on any calendar I know")
		case errors.Is(err, service.ErrInvalidTimezone):
			return c.Reply("❌ Unknown timezone — use an IANA name like Europe/Berlin or America/New_York")
		default:
			return c.Reply("❌ Could not save your birthday, try again later")
		}
	}

	if first {
		return c.Reply(fmt.Sprintf(
			"🎂 Birthday saved! Here's +%d coins for telling us. See you at midnight on the big day!",
			reward,
		))
	}
	return c.Reply("🎂 Birthday updated!")
}

// HandleGet handles /birthday, showing the caller's stored record.
func (h *BirthdayHandler) HandleGet(c tele.Context) error {
	ctx := context.Background()
	sender := c.Sender()
	if sender == nil {
		return nil
	}

	b, err := h.birthdays.Get(ctx, sender.ID)
	if err != nil {
		if errors.Is(err, service.ErrNoBirthday) {
			return c.Reply("🤷 No birthday on record. Set one with /birthday_set")
		}
		return c.Reply("❌ Could not look up your birthday, try again later")
	}

	return c.Reply(fmt.Sprintf("🎂 Your birthday is on record: %s (%s)", formatBirthday(b), b.Timezone))
}

// HandleRemove handles /birthday_remove.
func (h *BirthdayHandler) HandleRemove(c tele.Context) error {
	ctx := context.Background()
	sender := c.Sender()
	if sender == nil {
		return nil
	}

	if err := h.birthdays.Remove(ctx, sender.ID); err != nil {
		if errors.Is(err, service.ErrNoBirthday) {
			return c.Reply("🤷 There was no birthday on record")
		}
		return c.Reply("❌ Could not remove your birthday, try again later")
	}
	return c.Reply("🗑 Birthday removed. No more midnight surprises.")
}

func formatBirthday(b *model.Birthday) string {
	months := []string{
		"January", "February", "March", "April", "May", "June",
		"July", "August", "September", "October", "November", "December",
	}
	s := fmt.Sprintf("%s %d", months[b.Month-1], b.Day)
	if b.Year != nil {
		s += fmt.Sprintf(", %d", *b.Year)
	}
	return s
}
