package payment

import (
	"context"
	"fmt"
	"time"

	"github.com/sefazor/storycredits/pkg/timeout"
	"github.com/stripe/stripe-go/v74"
	"github.com/stripe/stripe-go/v74/client"
)

type CheckoutRequest struct {
	UserRef        string
	PriceID        string
	Quantity       int64
	SuccessURL     string
	CancelURL      string
	IdempotencyKey string
}

// StripeService owns its API client; nothing here touches stripe.Key.
type StripeService struct {
	api     *client.API
	timeout time.Duration
}

func NewStripeService(secretKey string, callTimeout time.Duration) *StripeService {
	api := &client.API{}
	api.Init(secretKey, nil)
	return &StripeService{api: api, timeout: callTimeout}
}

func (s *StripeService) CreateCheckoutSession(ctx context.Context, req CheckoutRequest) (*stripe.CheckoutSession, error) {
	params := &stripe.CheckoutSessionParams{
		ClientReferenceID: stripe.String(req.UserRef),
		Mode:              stripe.String(string(stripe.CheckoutSessionModePayment)),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				Price:    stripe.String(req.PriceID),
				Quantity: stripe.Int64(req.Quantity),
			},
		},
		SuccessURL: stripe.String(req.SuccessURL),
		CancelURL:  stripe.String(req.CancelURL),
		PaymentIntentData: &stripe.CheckoutSessionPaymentIntentDataParams{
			Metadata: map[string]string{
				"user_ref": req.UserRef,
				"price_id": req.PriceID,
				"quantity": fmt.Sprint(req.Quantity),
			},
		},
	}
	params.AddMetadata("user_ref", req.UserRef)
	params.AddMetadata("price_id", req.PriceID)
	params.SetIdempotencyKey(req.IdempotencyKey)

	return timeout.Do(ctx, "stripe checkout session create", s.timeout, func(ctx context.Context) (*stripe.CheckoutSession, error) {
		params.Context = ctx
		return s.api.CheckoutSessions.New(params)
	})
}

func (s *StripeService) CreatePortalSession(ctx context.Context, customerID, returnURL, idempotencyKey string) (*stripe.BillingPortalSession, error) {
	params := &stripe.BillingPortalSessionParams{
		Customer:  stripe.String(customerID),
		ReturnURL: stripe.String(returnURL),
	}
	params.SetIdempotencyKey(idempotencyKey)

	return timeout.Do(ctx, "stripe billing portal session create", s.timeout, func(ctx context.Context) (*stripe.BillingPortalSession, error) {
		params.Context = ctx
		return s.api.BillingPortalSessions.New(params)
	})
}

// SessionLineItems lists every line item of a checkout session, with prices.
func (s *StripeService) SessionLineItems(ctx context.Context, sessionID string) ([]*stripe.LineItem, error) {
	return timeout.Do(ctx, "stripe list line items", s.timeout, func(ctx context.Context) ([]*stripe.LineItem, error) {
		params := &stripe.CheckoutSessionListLineItemsParams{
			Session: stripe.String(sessionID),
		}
		params.Context = ctx
		params.Limit = stripe.Int64(100)

		var items []*stripe.LineItem
		iter := s.api.CheckoutSessions.ListLineItems(params)
		for iter.Next() {
			items = append(items, iter.LineItem())
		}
		if err := iter.Err(); err != nil {
			return nil, err
		}
		return items, nil
	})
}
