package service_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/sefazor/storycredits/internal/constants"
	"github.com/sefazor/storycredits/internal/mocks"
	"github.com/sefazor/storycredits/internal/models"
	"github.com/sefazor/storycredits/internal/repository"
	"github.com/sefazor/storycredits/internal/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestLedger_PurchaseAppliedOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.openAccount(t, "user_1")

	first, err := f.ledger.Apply(ctx, purchaseEvent("evt_1", "user_1", "pi_1", threeCredits))
	require.NoError(t, err)
	assert.Equal(t, service.OutcomeApplied, first.Outcome)
	require.NotNil(t, first.Transaction)
	assert.Equal(t, models.TransactionTypePurchase, first.Transaction.Type)
	assert.EqualValues(t, 3, first.Transaction.Amount)
	assert.EqualValues(t, 3, first.Transaction.BalanceAfter)
	assert.EqualValues(t, 3, f.balance(t, "user_1"))

	t.Run("redelivery returns the same transaction", func(t *testing.T) {
		again, err := f.ledger.Apply(ctx, purchaseEvent("evt_1", "user_1", "pi_1", threeCredits))
		require.NoError(t, err)
		assert.Equal(t, service.OutcomeAlreadyApplied, again.Outcome)
		assert.Equal(t, first.Transaction.ID, again.Transaction.ID)
		assert.EqualValues(t, 3, f.balance(t, "user_1"))
		assert.EqualValues(t, 1, f.countBySource(t, "evt_1"))
	})

	t.Run("version advanced once", func(t *testing.T) {
		account, err := f.accounts.GetByUserID(ctx, "user_1")
		require.NoError(t, err)
		assert.EqualValues(t, 1, account.Version)
	})

	f.assertConsistent(t, "user_1")
}

func TestLedger_ConcurrentDuplicateDeliveries(t *testing.T) {
	f := newFixture(t)
	f.openAccount(t, "user_1")

	const deliveries = 12
	event := purchaseEvent("evt_race", "user_1", "pi_race",
		models.LineItem{SKU: "5-credit-bundle", PriceID: "price_5", Quantity: 2, CreditValue: 5})

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		outcomes = map[service.Outcome]int{}
		txIDs    = map[string]struct{}{}
	)
	for i := 0; i < deliveries; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ev := *event
			res, err := f.ledger.Apply(context.Background(), &ev)
			if !assert.NoError(t, err) {
				return
			}
			mu.Lock()
			outcomes[res.Outcome]++
			txIDs[res.Transaction.ID] = struct{}{}
			mu.Unlock()
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, outcomes[service.OutcomeApplied])
	assert.Equal(t, deliveries-1, outcomes[service.OutcomeAlreadyApplied])
	assert.Len(t, txIDs, 1)
	assert.EqualValues(t, 10, f.balance(t, "user_1"))
	assert.EqualValues(t, 1, f.countBySource(t, "evt_race"))
	f.assertConsistent(t, "user_1")
}

func TestLedger_IgnoredKinds(t *testing.T) {
	f := newFixture(t)

	for _, kind := range []models.EventKind{models.EventKindUnknown, models.EventKindCheckoutExpired} {
		ev := purchaseEvent("evt_"+string(kind), "user_1", "pi_1", threeCredits)
		ev.Kind = kind

		res, err := f.ledger.Apply(context.Background(), ev)
		require.NoError(t, err)
		assert.Equal(t, service.OutcomeIgnored, res.Outcome)
		assert.Nil(t, res.Transaction)
	}

	_, err := f.accounts.GetByUserID(context.Background(), "user_1")
	assert.ErrorIs(t, err, repository.ErrAccountNotFound)
}

func TestLedger_CustomerResolution(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	t.Run("unknown customer is rejected", func(t *testing.T) {
		_, err := f.ledger.Apply(ctx, purchaseEvent("evt_c1", "cus_nobody", "pi_c1", threeCredits))
		assert.True(t, service.IsCode(err, constants.ErrCodeUnknownCustomer))
		assert.EqualValues(t, 0, f.countBySource(t, "evt_c1"))
	})

	t.Run("linked customer credits the linked user", func(t *testing.T) {
		_, err := f.resolver.Link(ctx, "cus_42", "user_7")
		require.NoError(t, err)

		res, err := f.ledger.Apply(ctx, purchaseEvent("evt_c2", "cus_42", "pi_c2", threeCredits))
		require.NoError(t, err)
		assert.Equal(t, service.OutcomeApplied, res.Outcome)
		assert.EqualValues(t, 3, f.balance(t, "user_7"))
	})
}

func TestLedger_Refunds(t *testing.T) {
	ctx := context.Background()

	t.Run("full refund reverses the purchase once", func(t *testing.T) {
		f := newFixture(t)
		f.openAccount(t, "user_1")
		_, err := f.ledger.Apply(ctx, purchaseEvent("evt_p", "user_1", "pi_1", threeCredits))
		require.NoError(t, err)

		res, err := f.ledger.Apply(ctx, refundEvent("evt_r", "pi_1", true))
		require.NoError(t, err)
		assert.Equal(t, service.OutcomeApplied, res.Outcome)
		assert.Equal(t, models.TransactionTypeRefund, res.Transaction.Type)
		assert.EqualValues(t, -3, res.Transaction.Amount)
		assert.EqualValues(t, 0, f.balance(t, "user_1"))

		again, err := f.ledger.Apply(ctx, refundEvent("evt_r", "pi_1", true))
		require.NoError(t, err)
		assert.Equal(t, service.OutcomeAlreadyApplied, again.Outcome)
		assert.EqualValues(t, 0, f.balance(t, "user_1"))
		f.assertConsistent(t, "user_1")
	})

	t.Run("refund larger than the balance is rejected", func(t *testing.T) {
		f := newFixture(t)
		f.openAccount(t, "user_1")
		_, err := f.ledger.Apply(ctx, purchaseEvent("evt_p", "user_1", "pi_1", threeCredits))
		require.NoError(t, err)
		_, err = f.accountSvc.Debit(ctx, "user_1", 2, "storyline")
		require.NoError(t, err)
		require.EqualValues(t, 1, f.balance(t, "user_1"))

		_, err = f.ledger.Apply(ctx, refundEvent("evt_r", "pi_1", true))
		require.Error(t, err)
		assert.True(t, service.IsCode(err, constants.ErrCodeInsufficientBalance))
		assert.EqualValues(t, 1, f.balance(t, "user_1"))
		assert.EqualValues(t, 0, f.countBySource(t, "evt_r"))
		f.assertConsistent(t, "user_1")
	})

	t.Run("partial refund needs manual work", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.ledger.Apply(ctx, refundEvent("evt_r", "pi_1", false))
		assert.True(t, service.IsCode(err, constants.ErrCodePartialRefund))
	})

	t.Run("refund without a matching purchase", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.ledger.Apply(ctx, refundEvent("evt_r", "pi_unknown", true))
		assert.True(t, service.IsCode(err, constants.ErrCodeUnmatchedRefund))
	})

	t.Run("refund carrying line items falls back to the customer", func(t *testing.T) {
		f := newFixture(t)
		f.openAccount(t, "user_1")
		_, err := f.accountSvc.Adjust(ctx, "user_1", 5, "migrated balance")
		require.NoError(t, err)

		ev := refundEvent("evt_r", "pi_legacy", true)
		ev.CustomerRef = "user_1"
		ev.LineItems = []models.LineItem{threeCredits}

		res, err := f.ledger.Apply(ctx, ev)
		require.NoError(t, err)
		assert.EqualValues(t, -3, res.Transaction.Amount)
		assert.EqualValues(t, 2, f.balance(t, "user_1"))
	})
}

func TestLedger_WritesOutboxMessage(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.openAccount(t, "user_1")

	res, err := f.ledger.Apply(ctx, purchaseEvent("evt_1", "user_1", "pi_1", threeCredits))
	require.NoError(t, err)

	msgs, err := f.outbox.GetPendingMessages(ctx, 10)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, testTopic, msgs[0].Topic)
	assert.Equal(t, "user_1", msgs[0].MessageKey)
	assert.Contains(t, msgs[0].Payload, res.Transaction.ID)
	assert.Contains(t, msgs[0].Payload, `"source_event_id":"evt_1"`)
}

func TestLedger_UnavailableAfterRetries(t *testing.T) {
	f := newFixture(t)
	f.openAccount(t, "user_1")

	txRepo := &mocks.CreditTransactionRepository{}
	txRepo.On("GetBySourceEventID", mock.Anything, "evt_1").
		Return((*models.CreditTransaction)(nil), repository.ErrTransactionNotFound)
	txRepo.On("Create", mock.Anything, mock.AnythingOfType("*models.CreditTransaction")).
		Return(errors.New("driver: bad connection"))

	opts := f.opts
	opts.Retry.MaxAttempts = 3
	ledger := service.NewLedgerService(f.txManager, f.accounts, txRepo, f.outbox, f.resolver, zap.NewNop(), opts)

	_, err := ledger.Apply(context.Background(), purchaseEvent("evt_1", "user_1", "pi_1", threeCredits))
	require.Error(t, err)
	assert.True(t, service.IsCode(err, constants.ErrCodeUnavailable))
	txRepo.AssertNumberOfCalls(t, "Create", 3)
	assert.EqualValues(t, 0, f.balance(t, "user_1"))
}

func TestLedger_ConservationAcrossMixedOperations(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.openAccount(t, "user_1")

	steps := []func() error{
		func() error {
			_, err := f.ledger.Apply(ctx, purchaseEvent("evt_a", "user_1", "pi_a", threeCredits))
			return err
		},
		func() error {
			_, err := f.accountSvc.Debit(ctx, "user_1", 1, "storyline")
			return err
		},
		func() error {
			_, err := f.ledger.Apply(ctx, purchaseEvent("evt_b", "user_1", "pi_b",
				models.LineItem{SKU: "10-credit-bundle", Quantity: 1, CreditValue: 10}))
			return err
		},
		func() error {
			_, err := f.ledger.Apply(ctx, purchaseEvent("evt_a", "user_1", "pi_a", threeCredits))
			return err
		},
		func() error {
			_, err := f.accountSvc.Debit(ctx, "user_1", 2, "illustration")
			return err
		},
		func() error {
			_, err := f.ledger.Apply(ctx, refundEvent("evt_rb", "pi_b", true))
			return err
		},
		func() error {
			_, err := f.ledger.Apply(ctx, purchaseEvent("evt_c", "user_1", "pi_c",
				models.LineItem{SKU: "5-credit-bundle", Quantity: 1, CreditValue: 5}))
			return err
		},
	}
	for i, step := range steps {
		require.NoError(t, step(), "step %d", i)
		f.assertConsistent(t, "user_1")
	}

	assert.EqualValues(t, 3-1+10-2-10+5, f.balance(t, "user_1"))
}
