package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/sefazor/storycredits/internal/models"
	"github.com/sefazor/storycredits/internal/repository"
	"github.com/sefazor/storycredits/internal/service"
	"github.com/sefazor/storycredits/internal/testutil"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const testTopic = "credit-ledger"

type fixture struct {
	db           *gorm.DB
	txManager    repository.TxManager
	accounts     repository.AccountRepository
	transactions repository.CreditTransactionRepository
	outbox       repository.OutboxRepository
	links        repository.CustomerLinkRepository
	pending      repository.PendingCompensationRepository
	resolver     service.CustomerResolver
	ledger       service.LedgerService
	accountSvc   service.AccountService
	opts         service.LedgerOptions
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	db := testutil.NewDB(t)
	f := &fixture{
		db:           db,
		txManager:    repository.NewTransactionManager(db),
		accounts:     repository.NewAccountRepository(db),
		transactions: repository.NewCreditTransactionRepository(db),
		outbox:       repository.NewOutboxRepository(db),
		links:        repository.NewCustomerLinkRepository(db),
		pending:      repository.NewPendingCompensationRepository(db),
		opts: service.LedgerOptions{
			Retry: service.RetryPolicy{MaxAttempts: 8, BaseDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond},
			Topic: testTopic,
		},
	}
	f.resolver = service.NewCustomerResolver(f.links, f.accounts)
	f.ledger = service.NewLedgerService(f.txManager, f.accounts, f.transactions, f.outbox, f.resolver, zap.NewNop(), f.opts)
	f.accountSvc = service.NewAccountService(f.txManager, f.accounts, f.transactions, f.outbox, zap.NewNop(), f.opts)
	return f
}

func (f *fixture) openAccount(t *testing.T, userID string) *models.CreditAccount {
	t.Helper()
	account, err := f.accountSvc.Open(context.Background(), userID)
	require.NoError(t, err)
	return account
}

func (f *fixture) balance(t *testing.T, userID string) int64 {
	t.Helper()
	b, err := f.accountSvc.GetBalance(context.Background(), userID)
	require.NoError(t, err)
	return b
}

func (f *fixture) assertConsistent(t *testing.T, userID string) {
	t.Helper()
	report, err := f.accountSvc.Audit(context.Background(), userID)
	require.NoError(t, err)
	require.True(t, report.Consistent, "balance %d != sum %d", report.Balance, report.TransactionSum)
	require.GreaterOrEqual(t, report.Balance, int64(0))
}

func (f *fixture) countBySource(t *testing.T, eventID string) int64 {
	t.Helper()
	var n int64
	require.NoError(t, f.db.Model(&models.CreditTransaction{}).Where("source_event_id = ?", eventID).Count(&n).Error)
	return n
}

func purchaseEvent(eventID, customerRef, paymentRef string, items ...models.LineItem) *models.PaymentEvent {
	return &models.PaymentEvent{
		EventID:     eventID,
		EventType:   "checkout.session.completed",
		Kind:        models.EventKindCheckoutCompleted,
		CustomerRef: customerRef,
		PaymentRef:  paymentRef,
		LineItems:   items,
		AmountTotal: 499,
		Currency:    "usd",
		OccurredAt:  time.Now(),
	}
}

func refundEvent(eventID, paymentRef string, full bool) *models.PaymentEvent {
	return &models.PaymentEvent{
		EventID:    eventID,
		EventType:  "charge.refunded",
		Kind:       models.EventKindRefundIssued,
		PaymentRef: paymentRef,
		FullRefund: full,
		OccurredAt: time.Now(),
	}
}

var threeCredits = models.LineItem{SKU: "3-credit-bundle", PriceID: "price_3", Quantity: 1, CreditValue: 3}
