package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/sefazor/storycredits/internal/constants"
	"github.com/sefazor/storycredits/internal/models"
	"github.com/sefazor/storycredits/internal/repository"
	"go.uber.org/zap"
	"gorm.io/datatypes"
)

type Outcome string

const (
	OutcomeApplied        Outcome = "applied"
	OutcomeAlreadyApplied Outcome = "already_applied"
	OutcomeIgnored        Outcome = "ignored"
)

type LedgerResult struct {
	Outcome     Outcome
	Transaction *models.CreditTransaction
}

type LedgerService interface {
	Apply(ctx context.Context, event *models.PaymentEvent) (*LedgerResult, error)
}

type LedgerOptions struct {
	Retry RetryPolicy
	Topic string
}

type ledgerService struct {
	writer       *entryWriter
	transactions repository.CreditTransactionRepository
	accounts     repository.AccountRepository
	resolver     CustomerResolver
	retry        RetryPolicy
	log          *zap.Logger
}

func NewLedgerService(
	txManager repository.TxManager,
	accounts repository.AccountRepository,
	transactions repository.CreditTransactionRepository,
	outbox repository.OutboxRepository,
	resolver CustomerResolver,
	log *zap.Logger,
	opts LedgerOptions,
) LedgerService {
	return &ledgerService{
		writer: &entryWriter{
			txManager:    txManager,
			accounts:     accounts,
			transactions: transactions,
			outbox:       outbox,
			topic:        opts.Topic,
		},
		transactions: transactions,
		accounts:     accounts,
		resolver:     resolver,
		retry:        opts.Retry,
		log:          log,
	}
}

// Apply records the credit effect of event exactly once. Redelivery of an
// event that already has a ledger row returns that row as AlreadyApplied.
// Transient failures are retried; when the budget runs out the error code is
// UNAVAILABLE and the delivery must not be acknowledged.
func (s *ledgerService) Apply(ctx context.Context, event *models.PaymentEvent) (*LedgerResult, error) {
	switch event.Kind {
	case models.EventKindUnknown, models.EventKindCheckoutExpired:
		s.log.Debug("Ignoring payment event",
			zap.String("event_id", event.EventID),
			zap.String("kind", string(event.Kind)),
		)
		return &LedgerResult{Outcome: OutcomeIgnored}, nil
	case models.EventKindCheckoutCompleted, models.EventKindRefundIssued:
	default:
		return nil, fmt.Errorf("unhandled payment event kind %q", event.Kind)
	}

	if existing, err := s.transactions.GetBySourceEventID(ctx, event.EventID); err == nil {
		return s.alreadyApplied(event, existing), nil
	}

	var entry *models.CreditTransaction
	err := s.retry.run(ctx, s.log, "apply "+event.EventID, func(ctx context.Context) error {
		var (
			accountID uint
			err       error
		)
		if event.Kind == models.EventKindRefundIssued {
			entry, accountID, err = s.prepareRefund(ctx, event)
		} else {
			entry, accountID, err = s.preparePurchase(ctx, event)
		}
		if err != nil {
			return err
		}
		_, err = s.writer.write(ctx, accountID, entry, writeOptions{})
		return err
	})

	switch {
	case err == nil:
		s.log.Info("Payment event applied",
			zap.String("event_id", event.EventID),
			zap.String("kind", string(event.Kind)),
			zap.String("transaction_id", entry.ID),
			zap.Int64("amount", entry.Amount),
			zap.Int64("balance_after", entry.BalanceAfter),
		)
		return &LedgerResult{Outcome: OutcomeApplied, Transaction: entry}, nil

	case errors.Is(err, repository.ErrTransactionExists):
		existing, getErr := s.transactions.GetBySourceEventID(ctx, event.EventID)
		if getErr != nil {
			s.log.Error("error get transaction by source event id", zap.Error(getErr))
			return nil, NewServiceError(constants.ErrCodeUnavailable, getErr)
		}
		return s.alreadyApplied(event, existing), nil

	case errors.Is(err, errRetriesExhausted):
		s.log.Error("Ledger unavailable",
			zap.String("event_id", event.EventID),
			zap.Error(err),
		)
		return nil, NewServiceError(constants.ErrCodeUnavailable, err)

	default:
		s.log.Warn("Payment event rejected",
			zap.String("event_id", event.EventID),
			zap.String("code", ErrorCode(err)),
			zap.Error(err),
		)
		if ErrorCode(err) == "" {
			return nil, NewServiceError(constants.ErrCodeUnavailable, err)
		}
		return nil, err
	}
}

func (s *ledgerService) alreadyApplied(event *models.PaymentEvent, existing *models.CreditTransaction) *LedgerResult {
	s.log.Info("Idempotent delivery, payment event already applied",
		zap.String("event_id", event.EventID),
		zap.String("transaction_id", existing.ID),
	)
	return &LedgerResult{Outcome: OutcomeAlreadyApplied, Transaction: existing}
}

func (s *ledgerService) preparePurchase(ctx context.Context, event *models.PaymentEvent) (*models.CreditTransaction, uint, error) {
	credits := event.Credits()
	if credits <= 0 {
		return nil, 0, NewServiceError(constants.ErrCodeInvalidAmount,
			fmt.Errorf("event %s grants no credits", event.EventID))
	}

	userID, err := s.resolver.ResolveUser(ctx, event.CustomerRef)
	if err != nil {
		return nil, 0, err
	}

	account, err := s.accounts.GetOrCreate(ctx, userID)
	if err != nil {
		return nil, 0, err
	}

	return s.newEntry(event, models.TransactionTypePurchase, credits), account.ID, nil
}

// prepareRefund reverses the credits of the purchase paid by the refunded
// payment. Partial refunds are not converted into credits automatically.
func (s *ledgerService) prepareRefund(ctx context.Context, event *models.PaymentEvent) (*models.CreditTransaction, uint, error) {
	if !event.FullRefund {
		return nil, 0, NewServiceError(constants.ErrCodePartialRefund,
			fmt.Errorf("partial refund for payment %s", event.PaymentRef))
	}

	purchase, err := s.transactions.GetPurchaseByPaymentRef(ctx, event.PaymentRef)
	if err == nil {
		return s.newEntry(event, models.TransactionTypeRefund, -purchase.Amount), purchase.AccountID, nil
	}
	if !errors.Is(err, repository.ErrTransactionNotFound) {
		return nil, 0, err
	}

	credits := event.Credits()
	if credits <= 0 || event.CustomerRef == "" {
		return nil, 0, NewServiceError(constants.ErrCodeUnmatchedRefund,
			fmt.Errorf("no purchase recorded for payment %s", event.PaymentRef))
	}

	userID, err := s.resolver.ResolveUser(ctx, event.CustomerRef)
	if err != nil {
		return nil, 0, err
	}
	account, err := s.accounts.GetByUserID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrAccountNotFound) {
			return nil, 0, NewServiceError(constants.ErrCodeUnmatchedRefund, err)
		}
		return nil, 0, err
	}

	return s.newEntry(event, models.TransactionTypeRefund, -credits), account.ID, nil
}

func (s *ledgerService) newEntry(event *models.PaymentEvent, typ models.TransactionType, amount int64) *models.CreditTransaction {
	eventID := event.EventID
	meta, _ := json.Marshal(map[string]interface{}{
		"event_type":   event.EventType,
		"customer_ref": event.CustomerRef,
		"line_items":   event.LineItems,
		"amount_total": event.AmountTotal,
		"currency":     event.Currency,
		"occurred_at":  event.OccurredAt,
	})

	return &models.CreditTransaction{
		Amount:        amount,
		Type:          typ,
		SourceEventID: &eventID,
		PaymentRef:    event.PaymentRef,
		Reason:        event.EventType,
		Metadata:      datatypes.JSON(meta),
	}
}
