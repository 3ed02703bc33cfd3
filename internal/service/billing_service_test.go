package service_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sefazor/storycredits/internal/config"
	"github.com/sefazor/storycredits/internal/constants"
	"github.com/sefazor/storycredits/internal/mocks"
	"github.com/sefazor/storycredits/internal/models"
	"github.com/sefazor/storycredits/internal/service"
	"github.com/sefazor/storycredits/pkg/payment"
	"github.com/sefazor/storycredits/pkg/timeout"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v74"
	"go.uber.org/zap"
)

func newBilling(t *testing.T) (*fixture, *mocks.PaymentProvider, service.BillingService) {
	t.Helper()
	f := newFixture(t)
	prices, err := config.NewPriceTable(
		config.PriceEntry{PriceID: "price_3", SKU: "3-credit-bundle", Credits: 3},
		config.PriceEntry{PriceID: "price_10", SKU: "10-credit-bundle", Credits: 10},
	)
	require.NoError(t, err)

	provider := &mocks.PaymentProvider{}
	billing := service.NewBillingService(provider, prices, f.accountSvc, f.links, service.BillingOptions{
		SuccessURL: "https://app.example.com/credits?ok=1",
		CancelURL:  "https://app.example.com/credits",
	}, zap.NewNop())
	return f, provider, billing
}

func TestBilling_PortalSession(t *testing.T) {
	ctx := context.Background()
	req := models.PortalSessionRequest{CustomerID: "cus_1", ReturnURL: "https://app.example.com/account"}

	t.Run("returns the provider url", func(t *testing.T) {
		_, provider, billing := newBilling(t)
		provider.On("CreatePortalSession", mock.Anything, "cus_1", req.ReturnURL, mock.AnythingOfType("string")).
			Return(&stripe.BillingPortalSession{URL: "https://billing.stripe.com/p/session_1"}, nil).Once()

		sess, err := billing.CreatePortalSession(ctx, "user_1", req)
		require.NoError(t, err)
		assert.Equal(t, "https://billing.stripe.com/p/session_1", sess.URL)
		provider.AssertExpectations(t)
	})

	t.Run("customer linked to someone else", func(t *testing.T) {
		f, provider, billing := newBilling(t)
		_, err := f.resolver.Link(ctx, "cus_1", "user_2")
		require.NoError(t, err)

		_, err = billing.CreatePortalSession(ctx, "user_1", req)
		assert.True(t, service.IsCode(err, constants.ErrCodeCustomerMismatch))
		provider.AssertNotCalled(t, "CreatePortalSession", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("provider timeout is reported as unknown outcome", func(t *testing.T) {
		_, provider, billing := newBilling(t)
		provider.On("CreatePortalSession", mock.Anything, "cus_1", req.ReturnURL, mock.AnythingOfType("string")).
			Return((*stripe.BillingPortalSession)(nil), &timeout.Error{Op: "billing portal", After: time.Second})

		_, err := billing.CreatePortalSession(ctx, "user_1", req)
		assert.True(t, service.IsCode(err, constants.ErrCodeProviderTimeout))
	})

	t.Run("provider failure", func(t *testing.T) {
		_, provider, billing := newBilling(t)
		provider.On("CreatePortalSession", mock.Anything, "cus_1", req.ReturnURL, mock.AnythingOfType("string")).
			Return((*stripe.BillingPortalSession)(nil), errors.New("no such customer"))

		_, err := billing.CreatePortalSession(ctx, "user_1", req)
		assert.True(t, service.IsCode(err, constants.ErrCodeProviderFailed))
	})
}

func TestBilling_CheckoutSession(t *testing.T) {
	ctx := context.Background()

	t.Run("creates a session and opens the account", func(t *testing.T) {
		f, provider, billing := newBilling(t)

		var sent payment.CheckoutRequest
		provider.On("CreateCheckoutSession", mock.Anything, mock.AnythingOfType("payment.CheckoutRequest")).
			Run(func(args mock.Arguments) { sent = args.Get(1).(payment.CheckoutRequest) }).
			Return(&stripe.CheckoutSession{ID: "cs_1", URL: "https://checkout.stripe.com/c/cs_1"}, nil)

		sess, err := billing.CreateCheckoutSession(ctx, "user_1",
			models.CreateCheckoutSessionRequest{PriceID: "price_3"}, "client-key")
		require.NoError(t, err)
		assert.Equal(t, "cs_1", sess.ID)

		assert.Equal(t, "user_1", sent.UserRef)
		assert.Equal(t, "price_3", sent.PriceID)
		assert.EqualValues(t, 1, sent.Quantity)
		assert.NotEmpty(t, sent.IdempotencyKey)

		_, err = f.accounts.GetByUserID(ctx, "user_1")
		assert.NoError(t, err)
	})

	t.Run("same client key maps to the same provider key", func(t *testing.T) {
		_, provider, billing := newBilling(t)
		var keys []string
		provider.On("CreateCheckoutSession", mock.Anything, mock.AnythingOfType("payment.CheckoutRequest")).
			Run(func(args mock.Arguments) { keys = append(keys, args.Get(1).(payment.CheckoutRequest).IdempotencyKey) }).
			Return(&stripe.CheckoutSession{ID: "cs_1"}, nil)

		for i := 0; i < 2; i++ {
			_, err := billing.CreateCheckoutSession(ctx, "user_1",
				models.CreateCheckoutSessionRequest{PriceID: "price_10", Quantity: 2}, "retry-me")
			require.NoError(t, err)
		}
		require.Len(t, keys, 2)
		assert.Equal(t, keys[0], keys[1])
	})

	t.Run("unknown price", func(t *testing.T) {
		_, provider, billing := newBilling(t)
		_, err := billing.CreateCheckoutSession(ctx, "user_1",
			models.CreateCheckoutSessionRequest{PriceID: "price_404"}, "")
		assert.True(t, service.IsCode(err, constants.ErrCodeUnknownPrice))
		provider.AssertNotCalled(t, "CreateCheckoutSession", mock.Anything, mock.Anything)
	})

	t.Run("catalog is sorted by credits", func(t *testing.T) {
		_, _, billing := newBilling(t)
		catalog := billing.Catalog()
		require.Len(t, catalog, 2)
		assert.Equal(t, "price_3", catalog[0].PriceID)
	})
}
