package service

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog/log"

	"telegram-community-bot/internal/pkg/lock"
)

// ErrNoPhotos is returned when the photo directory has nothing to sell.
var ErrNoPhotos = errors.New("no photos available")

// PhotoService sells a random image from a local directory. The spend
// happens first; if no photo can be picked the spend is refunded.
// Delivery failures are refunded by the caller via Refund.
type PhotoService struct {
	wallet   *WalletService
	userLock *lock.UserLock
	dir      string
	price    int64
}

// NewPhotoService creates a new PhotoService instance.
func NewPhotoService(wallet *WalletService, userLock *lock.UserLock, dir string, price int64) *PhotoService {
	return &PhotoService{wallet: wallet, userLock: userLock, dir: dir, price: price}
}

// Enabled reports whether a photo directory is configured.
func (s *PhotoService) Enabled() bool {
	return s.dir != ""
}

// Price returns the purchase price for display.
func (s *PhotoService) Price() int64 {
	return s.price
}

var photoExtensions = map[string]bool{
	".jpg": true, ".jpeg": true, ".png": true, ".gif": true, ".webp": true,
}

// Purchase spends the price and returns the path of a randomly chosen
// image. An empty or unreadable directory refunds the spend.
func (s *PhotoService) Purchase(ctx context.Context, userID int64, displayName string) (string, error) {
	s.userLock.Lock(userID)
	defer s.userLock.Unlock(userID)

	ok, err := s.wallet.TrySpend(ctx, userID, displayName, s.price)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", ErrInsufficientBalance
	}

	path, err := s.pickRandom()
	if err != nil {
		if _, refundErr := s.wallet.Refund(ctx, userID, displayName, s.price); refundErr != nil {
			log.Error().Err(refundErr).Int64("user_id", userID).Msg("Failed to refund photo purchase")
		}
		return "", err
	}
	return path, nil
}

// Refund returns the price after a failed delivery.
func (s *PhotoService) Refund(ctx context.Context, userID int64, displayName string) error {
	_, err := s.wallet.Refund(ctx, userID, displayName, s.price)
	return err
}

func (s *PhotoService) pickRandom() (string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return "", fmt.Errorf("failed to read photo directory: %w", err)
	}

	var photos []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if photoExtensions[strings.ToLower(filepath.Ext(entry.Name()))] {
			photos = append(photos, filepath.Join(s.dir, entry.Name()))
		}
	}
	if len(photos) == 0 {
		return "", ErrNoPhotos
	}
	return photos[rand.Intn(len(photos))], nil
}
