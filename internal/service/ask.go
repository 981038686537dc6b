package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"

	"telegram-community-bot/internal/pkg/ai"
	"telegram-community-bot/internal/pkg/lock"
)

// Errors for the paid question feature.
var (
	ErrQuestionEmpty   = errors.New("question is empty")
	ErrQuestionTooLong = errors.New("question is too long")
	ErrAskUnavailable  = errors.New("the oracle is not configured")
)

const maxQuestionLength = 1000

// AskService sells AI completions. Spend first, then call out; a failed
// call refunds the spend.
type AskService struct {
	wallet   *WalletService
	ai       *ai.Client
	userLock *lock.UserLock
	price    int64
}

// NewAskService creates a new AskService instance.
func NewAskService(wallet *WalletService, aiClient *ai.Client, userLock *lock.UserLock, price int64) *AskService {
	return &AskService{wallet: wallet, ai: aiClient, userLock: userLock, price: price}
}

// Enabled reports whether the completion backend is configured.
func (s *AskService) Enabled() bool {
	return s.ai.Enabled()
}

// Price returns the per-question price for display.
func (s *AskService) Price() int64 {
	return s.price
}

// Ask charges the price and returns the model's answer. The completion
// call runs outside the user lock so a slow backend cannot serialize
// the user's other operations behind it.
func (s *AskService) Ask(ctx context.Context, userID int64, displayName, question string) (string, error) {
	if !s.Enabled() {
		return "", ErrAskUnavailable
	}

	question = strings.TrimSpace(question)
	if question == "" {
		return "", ErrQuestionEmpty
	}
	if len([]rune(question)) > maxQuestionLength {
		return "", ErrQuestionTooLong
	}

	s.userLock.Lock(userID)
	ok, err := s.wallet.TrySpend(ctx, userID, displayName, s.price)
	s.userLock.Unlock(userID)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", ErrInsufficientBalance
	}

	answer, err := s.ai.Complete(ctx, question)
	if err != nil {
		if _, refundErr := s.wallet.Refund(ctx, userID, displayName, s.price); refundErr != nil {
			log.Error().Err(refundErr).Int64("user_id", userID).Msg("Failed to refund question")
		}
		return "", fmt.Errorf("completion failed: %w", err)
	}
	return answer, nil
}
