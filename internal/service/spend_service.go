package service

import (
	"context"
	"time"

	"github.com/sefazor/storycredits/internal/models"
	"github.com/sefazor/storycredits/internal/repository"
	"github.com/sefazor/storycredits/pkg/timeout"
	"go.uber.org/zap"
)

// SpendService charges credits for an action that runs outside the ledger.
type SpendService interface {
	Spend(ctx context.Context, userID string, cost int64, reason string, action func(ctx context.Context) error) (*models.CreditTransaction, error)
}

type spendService struct {
	accounts AccountService
	pending  repository.PendingCompensationRepository
	timeout  time.Duration
	log      *zap.Logger
}

func NewSpendService(accounts AccountService, pending repository.PendingCompensationRepository, actionTimeout time.Duration, log *zap.Logger) SpendService {
	return &spendService{accounts: accounts, pending: pending, timeout: actionTimeout, log: log}
}

// Spend debits first and only then runs action. If the action fails or times
// out the debit is compensated. A timed-out action may still finish on the
// remote side; the user keeps their credits in that case. A compensation the
// ledger rejects is queued and retried by the relay.
func (s *spendService) Spend(ctx context.Context, userID string, cost int64, reason string, action func(ctx context.Context) error) (*models.CreditTransaction, error) {
	debit, err := s.accounts.Debit(ctx, userID, cost, reason)
	if err != nil {
		return nil, err
	}

	actionErr := timeout.Run(ctx, reason, s.timeout, action)
	if actionErr == nil {
		return debit, nil
	}

	s.log.Warn("Paid action failed, compensating",
		zap.String("user_id", userID),
		zap.String("reason", reason),
		zap.String("debit_id", debit.ID),
		zap.Bool("timeout", timeout.IsTimeout(actionErr)),
		zap.Error(actionErr),
	)

	reason = "compensation: " + reason
	if _, err := s.accounts.Compensate(context.WithoutCancel(ctx), debit.ID, reason); err != nil {
		s.queueCompensation(context.WithoutCancel(ctx), userID, debit.ID, reason, err)
	}
	return nil, actionErr
}

func (s *spendService) queueCompensation(ctx context.Context, userID, debitID, reason string, cause error) {
	s.log.Warn("Compensation failed, queueing retry",
		zap.String("debit_id", debitID),
		zap.Error(cause),
	)

	err := s.pending.CreateIfNotExists(ctx, &models.PendingCompensation{
		ConsumptionID: debitID,
		UserID:        userID,
		Reason:        reason,
		Status:        models.CompensationStatusPending,
		LastError:     cause.Error(),
	})
	if err != nil {
		s.log.Error("error queue compensation",
			zap.String("debit_id", debitID),
			zap.String("user_id", userID),
			zap.NamedError("compensate_error", cause),
			zap.Error(err),
		)
	}
}
