package controller

import (
	"context"

	"github.com/sefazor/storycredits/internal/models"
	"github.com/sefazor/storycredits/internal/service"
	"github.com/sefazor/storycredits/pkg/generation"
)

type CreditController struct {
	accountService service.AccountService
	storyService   service.StoryService
}

func NewCreditController(accountService service.AccountService, storyService service.StoryService) *CreditController {
	return &CreditController{
		accountService: accountService,
		storyService:   storyService,
	}
}

func (c *CreditController) GetBalance(ctx context.Context, userID string) (*models.BalanceResponse, error) {
	balance, err := c.accountService.GetBalance(ctx, userID)
	if err != nil {
		return nil, err
	}
	recent, err := c.accountService.History(ctx, userID, service.DefaultHistoryLimit)
	if err != nil {
		return nil, err
	}
	return &models.BalanceResponse{UserID: userID, Balance: balance, Transactions: recent}, nil
}

func (c *CreditController) GetTransactions(ctx context.Context, userID string, limit int) ([]models.CreditTransaction, error) {
	return c.accountService.History(ctx, userID, limit)
}

func (c *CreditController) GenerateStory(ctx context.Context, userID string, req generation.StoryRequest, apiKey string) (*service.StoryResult, error) {
	return c.storyService.Generate(ctx, userID, req, apiKey)
}
