package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"unicode"

	"github.com/rs/zerolog/log"

	"telegram-community-bot/internal/model"
	"telegram-community-bot/internal/pkg/lock"
	"telegram-community-bot/internal/repository"
)

// Errors for role shop operations.
var (
	ErrInvalidRoleName = errors.New("role name must be 1-32 letters, digits, spaces or basic punctuation")
	ErrNoCustomRole    = errors.New("no custom role on record")
)

const defaultRoleColor = 0x00ff00

// RoleGranter applies role changes on the chat platform. The bot layer
// implements it; the service never talks to the platform directly.
type RoleGranter interface {
	Grant(ctx context.Context, chatID, userID int64, name string, color int) (roleRef string, err error)
	Revoke(ctx context.Context, chatID, userID int64, roleRef string) error
}

// RoleShopService sells custom roles. A purchase spends first, then
// applies the role; a platform failure refunds the spend. Each user
// holds at most one custom role; buying again replaces it.
type RoleShopService struct {
	wallet   *WalletService
	roles    *repository.CustomRoleRepository
	granter  RoleGranter
	userLock *lock.UserLock
	price    int64
}

// NewRoleShopService creates a new RoleShopService instance.
func NewRoleShopService(
	wallet *WalletService,
	roles *repository.CustomRoleRepository,
	granter RoleGranter,
	userLock *lock.UserLock,
	price int64,
) *RoleShopService {
	return &RoleShopService{
		wallet:   wallet,
		roles:    roles,
		granter:  granter,
		userLock: userLock,
		price:    price,
	}
}

var namedColors = map[string]int{
	"red":    0xff0000,
	"orange": 0xffa500,
	"yellow": 0xffff00,
	"green":  0x00ff00,
	"blue":   0x0000ff,
	"purple": 0x800080,
	"pink":   0xffc0cb,
	"black":  0x000000,
	"white":  0xffffff,
	"gold":   0xffd700,
	"teal":   0x008080,
}

// ParseColor turns a color word or hex string into an RGB value.
// Unknown words fall back to the default green rather than failing the
// purchase.
func ParseColor(s string) int {
	s = strings.TrimSpace(strings.ToLower(s))
	if s == "" {
		return defaultRoleColor
	}

	hex := strings.TrimPrefix(strings.TrimPrefix(s, "#"), "0x")
	if len(hex) == 6 {
		if v, err := strconv.ParseUint(hex, 16, 32); err == nil && v <= 0xffffff {
			return int(v)
		}
	}

	if v, ok := namedColors[s]; ok {
		return v
	}
	return defaultRoleColor
}

// ValidateRoleName enforces the 1-32 character limit and a conservative
// charset.
func ValidateRoleName(name string) bool {
	name = strings.TrimSpace(name)
	if name == "" || len([]rune(name)) > 32 {
		return false
	}
	for _, r := range name {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) && !strings.ContainsRune(" -_'.!", r) {
			return false
		}
	}
	return true
}

// Purchase buys a custom role. Spend and grant run under the user's
// lock; a failed grant refunds the purchase.
func (s *RoleShopService) Purchase(ctx context.Context, chatID, userID int64, displayName, roleName, colorStr string) (*model.CustomRole, error) {
	roleName = strings.TrimSpace(roleName)
	if !ValidateRoleName(roleName) {
		return nil, ErrInvalidRoleName
	}
	color := ParseColor(colorStr)

	s.userLock.Lock(userID)
	defer s.userLock.Unlock(userID)

	ok, err := s.wallet.TrySpend(ctx, userID, displayName, s.price)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrInsufficientBalance
	}

	// Replace any prior role before granting the new one. A failed
	// revoke is logged but does not block the purchase.
	if old, err := s.roles.Get(ctx, userID); err == nil && old != nil {
		if err := s.granter.Revoke(ctx, chatID, userID, old.RoleRef); err != nil {
			log.Warn().Err(err).Int64("user_id", userID).Msg("Failed to revoke old custom role")
		}
	}

	roleRef, err := s.granter.Grant(ctx, chatID, userID, roleName, color)
	if err != nil {
		if _, refundErr := s.wallet.Refund(ctx, userID, displayName, s.price); refundErr != nil {
			log.Error().Err(refundErr).Int64("user_id", userID).Msg("Failed to refund role purchase")
		}
		return nil, fmt.Errorf("failed to grant role: %w", err)
	}

	role := &model.CustomRole{UserID: userID, RoleRef: roleRef, Name: roleName, Color: color}
	if err := s.roles.Set(ctx, role); err != nil {
		return nil, err
	}
	return role, nil
}

// Price returns the purchase price for display.
func (s *RoleShopService) Price() int64 {
	return s.price
}

// Get returns a user's custom role, or ErrNoCustomRole.
func (s *RoleShopService) Get(ctx context.Context, userID int64) (*model.CustomRole, error) {
	role, err := s.roles.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	if role == nil {
		return nil, ErrNoCustomRole
	}
	return role, nil
}

// AdminRemove revokes a user's custom role and refunds the price. Used
// by the owner to clean up inappropriate names.
func (s *RoleShopService) AdminRemove(ctx context.Context, chatID, targetID int64) (*model.CustomRole, error) {
	s.userLock.Lock(targetID)
	defer s.userLock.Unlock(targetID)

	role, err := s.roles.Get(ctx, targetID)
	if err != nil {
		return nil, err
	}
	if role == nil {
		return nil, ErrNoCustomRole
	}

	if err := s.granter.Revoke(ctx, chatID, targetID, role.RoleRef); err != nil {
		log.Warn().Err(err).Int64("user_id", targetID).Msg("Failed to revoke custom role on platform")
	}
	if err := s.roles.Delete(ctx, targetID); err != nil {
		return nil, err
	}
	if _, err := s.wallet.Refund(ctx, targetID, "", s.price); err != nil {
		return nil, fmt.Errorf("failed to refund removed role: %w", err)
	}

	return role, nil
}
