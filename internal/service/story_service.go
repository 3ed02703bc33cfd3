package service

import (
	"context"

	"github.com/sefazor/storycredits/pkg/generation"
	"go.uber.org/zap"
)

const storyGenerationReason = "story_generation"

type StoryResult struct {
	Story         *generation.Story `json:"story"`
	TransactionID string            `json:"transaction_id"`
	CreditsUsed   int64             `json:"credits_used"`
	BalanceAfter  int64             `json:"balance_after"`
}

type StoryService interface {
	Generate(ctx context.Context, userID string, req generation.StoryRequest, apiKey string) (*StoryResult, error)
}

type storyService struct {
	spend     SpendService
	generator generation.Generator
	cost      int64
	log       *zap.Logger
}

func NewStoryService(spend SpendService, generator generation.Generator, cost int64, log *zap.Logger) StoryService {
	if cost <= 0 {
		cost = 1
	}
	return &storyService{spend: spend, generator: generator, cost: cost, log: log}
}

// Generate charges the story cost up front and refunds it when the
// generation call fails or does not answer in time.
func (s *storyService) Generate(ctx context.Context, userID string, req generation.StoryRequest, apiKey string) (*StoryResult, error) {
	var story *generation.Story
	debit, err := s.spend.Spend(ctx, userID, s.cost, storyGenerationReason, func(ctx context.Context) error {
		var genErr error
		story, genErr = s.generator.GenerateStory(ctx, req, apiKey)
		return genErr
	})
	if err != nil {
		if ErrorCode(err) != "" {
			return nil, err
		}
		return nil, providerFailure("story generation", err)
	}

	s.log.Info("Story generated",
		zap.String("user_id", userID),
		zap.String("transaction_id", debit.ID),
	)
	return &StoryResult{
		Story:         story,
		TransactionID: debit.ID,
		CreditsUsed:   s.cost,
		BalanceAfter:  debit.BalanceAfter,
	}, nil
}
