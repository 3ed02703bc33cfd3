package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/sefazor/storycredits/internal/constants"
	"github.com/sefazor/storycredits/internal/models"
	"github.com/sefazor/storycredits/internal/repository"
)

// entryWriter is the single place that changes a balance. Every mutation is
// one transaction: read the account, append the ledger row, compare-and-swap
// the balance on the version that was read, queue the change notification.
type entryWriter struct {
	txManager    repository.TxManager
	accounts     repository.AccountRepository
	transactions repository.CreditTransactionRepository
	outbox       repository.OutboxRepository
	topic        string
}

type writeOptions struct {
	rejectRetired bool
}

func (w *entryWriter) write(ctx context.Context, accountID uint, entry *models.CreditTransaction, opts writeOptions) (*models.CreditAccount, error) {
	var committed models.CreditAccount

	err := w.txManager.WithTx(ctx, func(ctx context.Context) error {
		account, err := w.accounts.GetByID(ctx, accountID)
		if err != nil {
			return err
		}
		if opts.rejectRetired && account.IsRetired() {
			return NewServiceError(constants.ErrCodeAccountRetired, fmt.Errorf("account %d retired", account.ID))
		}

		newBalance := account.Balance + entry.Amount
		entry.AccountID = account.ID
		entry.BalanceAfter = newBalance

		// The insert goes first: for webhook entries the unique source event
		// id decides the single winner before any balance rule is applied.
		if err := w.transactions.Create(ctx, entry); err != nil {
			return err
		}

		if newBalance < 0 {
			return NewServiceError(constants.ErrCodeInsufficientBalance,
				fmt.Errorf("balance %d cannot cover %d credits", account.Balance, -entry.Amount))
		}

		if err := w.accounts.CompareAndSwapBalance(ctx, account.ID, account.Version, newBalance); err != nil {
			return err
		}

		if err := w.enqueue(ctx, account, entry); err != nil {
			return err
		}

		committed = *account
		committed.Balance = newBalance
		committed.Version = account.Version + 1
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &committed, nil
}

func (w *entryWriter) enqueue(ctx context.Context, account *models.CreditAccount, entry *models.CreditTransaction) error {
	if w.topic == "" || w.outbox == nil {
		return nil
	}

	change := models.LedgerChange{
		TransactionID: entry.ID,
		UserID:        account.UserID,
		AccountID:     account.ID,
		Type:          entry.Type,
		Amount:        entry.Amount,
		BalanceAfter:  entry.BalanceAfter,
		OccurredAt:    time.Now().UTC(),
	}
	if entry.SourceEventID != nil {
		change.SourceEventID = *entry.SourceEventID
	}

	payload, err := json.Marshal(change)
	if err != nil {
		return err
	}

	return w.outbox.Create(ctx, &models.OutboxMessage{
		Topic:      w.topic,
		MessageKey: account.UserID,
		Payload:    string(payload),
		Status:     models.OutboxStatusPending,
	})
}
