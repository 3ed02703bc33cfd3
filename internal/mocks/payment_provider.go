package mocks

import (
	"context"

	"github.com/sefazor/storycredits/pkg/payment"
	"github.com/stretchr/testify/mock"
	"github.com/stripe/stripe-go/v74"
)

type PaymentProvider struct {
	mock.Mock
}

func (p *PaymentProvider) CreateCheckoutSession(ctx context.Context, req payment.CheckoutRequest) (*stripe.CheckoutSession, error) {
	args := p.Called(ctx, req)
	return args.Get(0).(*stripe.CheckoutSession), args.Error(1)
}

func (p *PaymentProvider) CreatePortalSession(ctx context.Context, customerID, returnURL, idempotencyKey string) (*stripe.BillingPortalSession, error) {
	args := p.Called(ctx, customerID, returnURL, idempotencyKey)
	return args.Get(0).(*stripe.BillingPortalSession), args.Error(1)
}
