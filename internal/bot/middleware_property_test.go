// Package bot provides middleware for the Telegram bot.
// Property-based tests for the access checks backing the middleware.
package bot

import (
	"testing"

	"pgregory.net/rapid"

	"telegram-community-bot/internal/config"
)

// TestWhitelistEnforcementProperty verifies a chat is allowed exactly
// when its ID is in the whitelist.
func TestWhitelistEnforcementProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		numChats := rapid.IntRange(1, 10).Draw(t, "numChats")
		chatIDs := make([]int64, numChats)
		chatSet := make(map[int64]bool)
		for i := 0; i < numChats; i++ {
			// Group chat IDs are typically negative
			chatIDs[i] = -rapid.Int64Range(1, 1000000000).Draw(t, "chatID")
			chatSet[chatIDs[i]] = true
		}

		cfg := &config.Config{
			Whitelist: config.WhitelistConfig{Chats: chatIDs},
		}

		testChatID := -rapid.Int64Range(1, 1000000000).Draw(t, "testChatID")

		if got := cfg.IsChatAllowed(testChatID); got != chatSet[testChatID] {
			t.Fatalf("Whitelist check mismatch: chatID=%d, whitelisted=%v, expected=%v, got=%v",
				testChatID, chatIDs, chatSet[testChatID], got)
		}
	})
}

// TestEmptyWhitelistAllowsAllChatsProperty verifies the open-by-default
// special case.
func TestEmptyWhitelistAllowsAllChatsProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		cfg := &config.Config{
			Whitelist: config.WhitelistConfig{Chats: []int64{}},
		}

		chatID := -rapid.Int64Range(1, 1000000000).Draw(t, "chatID")

		if !cfg.IsChatAllowed(chatID) {
			t.Fatalf("With empty whitelist, chat ID %d should be allowed", chatID)
		}
	})
}

// TestOwnerCheckProperty verifies only the configured owner passes the
// owner check, and that an unset owner matches nobody.
func TestOwnerCheckProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		ownerID := rapid.Int64Range(1, 1000000000).Draw(t, "ownerID")
		userID := rapid.Int64Range(1, 1000000000).Draw(t, "userID")

		cfg := &config.Config{Bot: config.BotConfig{OwnerID: ownerID}}

		if got := cfg.IsOwner(userID); got != (userID == ownerID) {
			t.Fatalf("Owner check mismatch: ownerID=%d, userID=%d, got=%v", ownerID, userID, got)
		}

		unset := &config.Config{}
		if unset.IsOwner(userID) {
			t.Fatalf("With no owner configured, user %d should not pass the owner check", userID)
		}
	})
}

// TestPrivateUserCacheProperty verifies the cache round-trip that lets
// group members talk to the bot in private.
func TestPrivateUserCacheProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		userID := rapid.Int64Range(1, 1000000000).Draw(t, "userID")

		AllowPrivateUser(userID)

		if !IsPrivateUserAllowed(userID) {
			t.Fatalf("User %d should be allowed after being added to private user cache", userID)
		}
	})
}
