package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sefazor/storycredits/internal/config"
	"github.com/sefazor/storycredits/internal/constants"
	"github.com/sefazor/storycredits/internal/models"
	"github.com/sefazor/storycredits/internal/repository"
	"github.com/sefazor/storycredits/pkg/payment"
	"github.com/sefazor/storycredits/pkg/timeout"
	"github.com/stripe/stripe-go/v74"
	"go.uber.org/zap"
)

// PaymentProvider is the slice of the Stripe API the billing flows use.
type PaymentProvider interface {
	CreateCheckoutSession(ctx context.Context, req payment.CheckoutRequest) (*stripe.CheckoutSession, error)
	CreatePortalSession(ctx context.Context, customerID, returnURL, idempotencyKey string) (*stripe.BillingPortalSession, error)
}

type PriceCatalog interface {
	Lookup(priceID string) (config.PriceEntry, bool)
	Entries() []config.PriceEntry
}

type BillingOptions struct {
	SuccessURL string
	CancelURL  string
}

type BillingService interface {
	CreatePortalSession(ctx context.Context, userID string, req models.PortalSessionRequest) (*models.PortalSession, error)
	CreateCheckoutSession(ctx context.Context, userID string, req models.CreateCheckoutSessionRequest, idempotencyKey string) (*models.CheckoutSession, error)
	Catalog() []config.PriceEntry
}

type billingService struct {
	provider PaymentProvider
	prices   PriceCatalog
	accounts AccountService
	links    repository.CustomerLinkRepository
	opts     BillingOptions
	now      func() time.Time
	log      *zap.Logger
}

func NewBillingService(provider PaymentProvider, prices PriceCatalog, accounts AccountService, links repository.CustomerLinkRepository, opts BillingOptions, log *zap.Logger) BillingService {
	return &billingService{
		provider: provider,
		prices:   prices,
		accounts: accounts,
		links:    links,
		opts:     opts,
		now:      time.Now,
		log:      log,
	}
}

// CreatePortalSession opens a provider-hosted billing portal. Nothing is
// stored locally. When the customer is linked to a different user the
// request is refused.
func (s *billingService) CreatePortalSession(ctx context.Context, userID string, req models.PortalSessionRequest) (*models.PortalSession, error) {
	link, err := s.links.GetByCustomerRef(ctx, req.CustomerID)
	switch {
	case err == nil && link.UserID != userID:
		return nil, NewServiceError(constants.ErrCodeCustomerMismatch,
			fmt.Errorf("customer %s is linked to another user", req.CustomerID))
	case err != nil && !errors.Is(err, repository.ErrCustomerLinkNotFound):
		return nil, NewServiceError(constants.ErrCodeOperationFailed, err)
	}

	// Same user, customer and return URL within one minute reuse the same
	// provider request.
	bucket := s.now().UTC().Truncate(time.Minute).Unix()
	key := idempotencyKey("portal", userID, req.CustomerID, req.ReturnURL, fmt.Sprint(bucket))

	sess, err := s.provider.CreatePortalSession(ctx, req.CustomerID, req.ReturnURL, key)
	if err != nil {
		return nil, s.providerError("billing portal", err)
	}
	return &models.PortalSession{URL: sess.URL}, nil
}

func (s *billingService) CreateCheckoutSession(ctx context.Context, userID string, req models.CreateCheckoutSessionRequest, key string) (*models.CheckoutSession, error) {
	entry, ok := s.prices.Lookup(req.PriceID)
	if !ok {
		return nil, NewServiceError(constants.ErrCodeUnknownPrice, fmt.Errorf("price %s", req.PriceID))
	}
	qty := req.Quantity
	if qty <= 0 {
		qty = 1
	}

	// the webhook resolves client_reference_id against existing accounts
	if _, err := s.accounts.Open(ctx, userID); err != nil {
		return nil, err
	}

	if key == "" {
		key = uuid.NewString()
	}

	sess, err := s.provider.CreateCheckoutSession(ctx, payment.CheckoutRequest{
		UserRef:        userID,
		PriceID:        entry.PriceID,
		Quantity:       qty,
		SuccessURL:     s.opts.SuccessURL,
		CancelURL:      s.opts.CancelURL,
		IdempotencyKey: idempotencyKey("checkout", userID, key),
	})
	if err != nil {
		return nil, s.providerError("checkout", err)
	}

	s.log.Info("Checkout session created",
		zap.String("user_id", userID),
		zap.String("session_id", sess.ID),
		zap.String("price_id", entry.PriceID),
		zap.Int64("quantity", qty),
	)
	return &models.CheckoutSession{ID: sess.ID, URL: sess.URL}, nil
}

func (s *billingService) Catalog() []config.PriceEntry {
	return s.prices.Entries()
}

func (s *billingService) providerError(op string, err error) error {
	if timeout.IsTimeout(err) {
		s.log.Warn("Payment provider timed out, outcome unknown", zap.String("op", op), zap.Error(err))
	} else {
		s.log.Error("Payment provider request failed", zap.String("op", op), zap.Error(err))
	}
	return providerFailure(op, err)
}

// providerFailure keeps timeouts distinguishable: the remote side may still
// have completed the call.
func providerFailure(op string, err error) error {
	if timeout.IsTimeout(err) {
		return NewServiceError(constants.ErrCodeProviderTimeout, fmt.Errorf("%s: %w", op, err))
	}
	return NewServiceError(constants.ErrCodeProviderFailed, fmt.Errorf("%s: %w", op, err))
}

func idempotencyKey(parts ...string) string {
	h := sha256.New()
	for _, p := range parts {
		h.Write([]byte(p))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))[:40]
}
