// Package handler provides Telegram bot command handlers.
package handler

import (
	tele "gopkg.in/telebot.v3"
)

// TierResolver reports the subscriber-tier reward multiplier for a
// user. The bot layer implements it by checking membership in the
// configured tier chats; 1.0 means no tier.
type TierResolver interface {
	Multiplier(userID int64) float64
}

// displayName picks the best human-readable name for a sender.
func displayName(sender *tele.User) string {
	if sender == nil {
		return ""
	}
	if sender.Username != "" {
		return sender.Username
	}
	return sender.FirstName
}
