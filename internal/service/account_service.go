package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sefazor/storycredits/internal/constants"
	"github.com/sefazor/storycredits/internal/models"
	"github.com/sefazor/storycredits/internal/repository"
	"go.uber.org/zap"
)

const (
	DefaultHistoryLimit = 10
	MaxHistoryLimit     = 100
)

// AccountService is what the rest of the product uses to read and spend
// credits. Purchases and refunds never go through here; they arrive through
// LedgerService.
type AccountService interface {
	Open(ctx context.Context, userID string) (*models.CreditAccount, error)
	GetBalance(ctx context.Context, userID string) (int64, error)
	History(ctx context.Context, userID string, limit int) ([]models.CreditTransaction, error)
	Debit(ctx context.Context, userID string, amount int64, reason string) (*models.CreditTransaction, error)
	Compensate(ctx context.Context, consumptionID, reason string) (*models.CreditTransaction, error)
	Adjust(ctx context.Context, userID string, amount int64, reason string) (*models.CreditTransaction, error)
	Retire(ctx context.Context, userID string) error
	Audit(ctx context.Context, userID string) (*models.AuditReport, error)
}

type accountService struct {
	writer       *entryWriter
	accounts     repository.AccountRepository
	transactions repository.CreditTransactionRepository
	retry        RetryPolicy
	log          *zap.Logger
}

func NewAccountService(
	txManager repository.TxManager,
	accounts repository.AccountRepository,
	transactions repository.CreditTransactionRepository,
	outbox repository.OutboxRepository,
	log *zap.Logger,
	opts LedgerOptions,
) AccountService {
	return &accountService{
		writer: &entryWriter{
			txManager:    txManager,
			accounts:     accounts,
			transactions: transactions,
			outbox:       outbox,
			topic:        opts.Topic,
		},
		accounts:     accounts,
		transactions: transactions,
		retry:        opts.Retry,
		log:          log,
	}
}

func (s *accountService) Open(ctx context.Context, userID string) (*models.CreditAccount, error) {
	if userID == "" {
		return nil, NewServiceError(constants.ErrCodeValidationFailed, errors.New("user id is required"))
	}
	account, err := s.accounts.GetOrCreate(ctx, userID)
	if err != nil {
		s.log.Error("error open credit account", zap.String("user_id", userID), zap.Error(err))
		return nil, NewServiceError(constants.ErrCodeOperationFailed, err)
	}
	return account, nil
}

// GetBalance has no side effects: a user without an account has zero credits.
func (s *accountService) GetBalance(ctx context.Context, userID string) (int64, error) {
	account, err := s.accounts.GetByUserID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrAccountNotFound) {
			return 0, nil
		}
		return 0, NewServiceError(constants.ErrCodeOperationFailed, err)
	}
	return account.Balance, nil
}

func (s *accountService) History(ctx context.Context, userID string, limit int) ([]models.CreditTransaction, error) {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	if limit > MaxHistoryLimit {
		limit = MaxHistoryLimit
	}

	account, err := s.accounts.GetByUserID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrAccountNotFound) {
			return []models.CreditTransaction{}, nil
		}
		return nil, NewServiceError(constants.ErrCodeOperationFailed, err)
	}

	txns, err := s.transactions.ListByAccount(ctx, account.ID, limit)
	if err != nil {
		return nil, NewServiceError(constants.ErrCodeOperationFailed, err)
	}
	return txns, nil
}

// Debit takes amount credits or fails with INSUFFICIENT_BALANCE. The balance
// check is repeated inside the committing transaction, and the write only
// lands if the account version is still the one that was read.
func (s *accountService) Debit(ctx context.Context, userID string, amount int64, reason string) (*models.CreditTransaction, error) {
	if amount <= 0 {
		return nil, NewServiceError(constants.ErrCodeInvalidAmount, fmt.Errorf("debit amount %d", amount))
	}

	account, err := s.accounts.GetByUserID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrAccountNotFound) {
			return nil, NewServiceError(constants.ErrCodeInsufficientBalance, err)
		}
		return nil, NewServiceError(constants.ErrCodeOperationFailed, err)
	}

	var entry *models.CreditTransaction
	err = s.retry.run(ctx, s.log, "debit "+userID, func(ctx context.Context) error {
		entry = &models.CreditTransaction{
			Amount: -amount,
			Type:   models.TransactionTypeConsumption,
			Reason: reason,
		}
		_, err := s.writer.write(ctx, account.ID, entry, writeOptions{rejectRetired: true})
		return err
	})
	if err != nil {
		return nil, s.wrap("debit", userID, err)
	}

	s.log.Info("Credits debited",
		zap.String("user_id", userID),
		zap.Int64("amount", amount),
		zap.String("reason", reason),
		zap.String("transaction_id", entry.ID),
		zap.Int64("balance_after", entry.BalanceAfter),
	)
	return entry, nil
}

// Compensate gives back the credits of a consumption whose paid-for action
// failed. Calling it twice for the same consumption returns the first
// compensation.
func (s *accountService) Compensate(ctx context.Context, consumptionID, reason string) (*models.CreditTransaction, error) {
	consumption, err := s.transactions.GetByID(ctx, consumptionID)
	if err != nil {
		if errors.Is(err, repository.ErrTransactionNotFound) {
			return nil, NewServiceError(constants.ErrCodeTransactionNotFound, err)
		}
		return nil, NewServiceError(constants.ErrCodeOperationFailed, err)
	}
	if consumption.Type != models.TransactionTypeConsumption {
		return nil, NewServiceError(constants.ErrCodeInvalidAmount,
			fmt.Errorf("transaction %s is a %s, not a consumption", consumption.ID, consumption.Type))
	}

	var entry *models.CreditTransaction
	err = s.retry.run(ctx, s.log, "compensate "+consumptionID, func(ctx context.Context) error {
		id := consumption.ID
		entry = &models.CreditTransaction{
			Amount:        -consumption.Amount,
			Type:          models.TransactionTypeAdjustment,
			CompensatesID: &id,
			Reason:        reason,
		}
		_, err := s.writer.write(ctx, consumption.AccountID, entry, writeOptions{})
		return err
	})

	if errors.Is(err, repository.ErrTransactionExists) {
		existing, getErr := s.transactions.GetByCompensatesID(ctx, consumption.ID)
		if getErr != nil {
			return nil, NewServiceError(constants.ErrCodeOperationFailed, getErr)
		}
		return existing, nil
	}
	if err != nil {
		return nil, s.wrap("compensate", consumptionID, err)
	}

	s.log.Info("Consumption compensated",
		zap.String("consumption_id", consumption.ID),
		zap.String("transaction_id", entry.ID),
		zap.Int64("amount", entry.Amount),
	)
	return entry, nil
}

// Adjust applies a manual correction. It may create the account but never
// drives the balance negative.
func (s *accountService) Adjust(ctx context.Context, userID string, amount int64, reason string) (*models.CreditTransaction, error) {
	if amount == 0 {
		return nil, NewServiceError(constants.ErrCodeInvalidAmount, errors.New("adjustment of zero credits"))
	}
	if reason == "" {
		return nil, NewServiceError(constants.ErrCodeValidationFailed, errors.New("adjustment reason is required"))
	}

	account, err := s.Open(ctx, userID)
	if err != nil {
		return nil, err
	}

	var entry *models.CreditTransaction
	err = s.retry.run(ctx, s.log, "adjust "+userID, func(ctx context.Context) error {
		entry = &models.CreditTransaction{
			Amount: amount,
			Type:   models.TransactionTypeAdjustment,
			Reason: reason,
		}
		_, err := s.writer.write(ctx, account.ID, entry, writeOptions{})
		return err
	})
	if err != nil {
		return nil, s.wrap("adjust", userID, err)
	}

	s.log.Info("Credits adjusted",
		zap.String("user_id", userID),
		zap.Int64("amount", amount),
		zap.String("reason", reason),
	)
	return entry, nil
}

func (s *accountService) Retire(ctx context.Context, userID string) error {
	if err := s.accounts.Retire(ctx, userID, time.Now()); err != nil {
		if errors.Is(err, repository.ErrAccountNotFound) {
			return NewServiceError(constants.ErrCodeAccountNotFound, err)
		}
		return NewServiceError(constants.ErrCodeOperationFailed, err)
	}
	s.log.Info("Credit account retired", zap.String("user_id", userID))
	return nil
}

// Audit compares the stored balance with the sum of the account's ledger.
func (s *accountService) Audit(ctx context.Context, userID string) (*models.AuditReport, error) {
	account, err := s.accounts.GetByUserID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrAccountNotFound) {
			return nil, NewServiceError(constants.ErrCodeAccountNotFound, err)
		}
		return nil, NewServiceError(constants.ErrCodeOperationFailed, err)
	}

	sum, count, err := s.transactions.SumByAccount(ctx, account.ID)
	if err != nil {
		return nil, NewServiceError(constants.ErrCodeOperationFailed, err)
	}

	report := &models.AuditReport{
		UserID:           account.UserID,
		AccountID:        account.ID,
		Balance:          account.Balance,
		TransactionSum:   sum,
		TransactionCount: count,
		Consistent:       sum == account.Balance,
	}
	if !report.Consistent {
		s.log.Error("Ledger does not add up",
			zap.String("user_id", userID),
			zap.Int64("balance", account.Balance),
			zap.Int64("transaction_sum", sum),
		)
	}
	return report, nil
}

func (s *accountService) wrap(op, subject string, err error) error {
	if ErrorCode(err) != "" {
		return err
	}
	s.log.Error("error "+op, zap.String("subject", subject), zap.Error(err))
	if errors.Is(err, errRetriesExhausted) {
		return NewServiceError(constants.ErrCodeUnavailable, err)
	}
	return NewServiceError(constants.ErrCodeOperationFailed, err)
}
