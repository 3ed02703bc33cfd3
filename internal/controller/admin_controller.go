package controller

import (
	"context"

	"github.com/sefazor/storycredits/internal/models"
	"github.com/sefazor/storycredits/internal/service"
)

type AdminController struct {
	deadLetters    service.DeadLetterService
	accountService service.AccountService
	resolver       service.CustomerResolver
	payments       *PaymentController
}

func NewAdminController(
	deadLetters service.DeadLetterService,
	accountService service.AccountService,
	resolver service.CustomerResolver,
	payments *PaymentController,
) *AdminController {
	return &AdminController{
		deadLetters:    deadLetters,
		accountService: accountService,
		resolver:       resolver,
		payments:       payments,
	}
}

func (c *AdminController) ListDeadLetters(ctx context.Context, status models.DeadLetterStatus, limit int) ([]models.DeadLetter, error) {
	return c.deadLetters.List(ctx, status, limit)
}

func (c *AdminController) GetDeadLetter(ctx context.Context, id uint) (*models.DeadLetter, error) {
	return c.deadLetters.Get(ctx, id)
}

func (c *AdminController) ResolveDeadLetter(ctx context.Context, id uint, note string) (*models.DeadLetter, error) {
	return c.deadLetters.Resolve(ctx, id, note)
}

func (c *AdminController) ReplayDeadLetter(ctx context.Context, id uint) (*WebhookResult, error) {
	return c.payments.ReplayDeadLetter(ctx, id)
}

func (c *AdminController) Adjust(ctx context.Context, req models.AdjustmentRequest) (*models.CreditTransaction, error) {
	return c.accountService.Adjust(ctx, req.UserID, req.Amount, req.Reason)
}

func (c *AdminController) Audit(ctx context.Context, userID string) (*models.AuditReport, error) {
	return c.accountService.Audit(ctx, userID)
}

func (c *AdminController) LinkCustomer(ctx context.Context, req models.CustomerLinkRequest) (*models.CustomerLink, error) {
	return c.resolver.Link(ctx, req.CustomerRef, req.UserID)
}

func (c *AdminController) RetireAccount(ctx context.Context, userID string) error {
	return c.accountService.Retire(ctx, userID)
}
