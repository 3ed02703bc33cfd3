package controller

import (
	"context"
	"errors"
	"fmt"

	"github.com/sefazor/storycredits/internal/config"
	"github.com/sefazor/storycredits/internal/constants"
	"github.com/sefazor/storycredits/internal/models"
	"github.com/sefazor/storycredits/internal/service"
	"github.com/sefazor/storycredits/internal/webhook"
	"go.uber.org/zap"
)

// OutcomeDeadLettered is reported for events that were acknowledged and
// parked instead of applied.
const OutcomeDeadLettered service.Outcome = "dead_lettered"

type SignatureVerifier interface {
	Verify(payload []byte, header, secret string) error
}

type EventNormalizer interface {
	Normalize(ctx context.Context, payload []byte) (*models.PaymentEvent, error)
}

type WebhookResult struct {
	EventID       string          `json:"event_id,omitempty"`
	EventType     string          `json:"event_type,omitempty"`
	Outcome       service.Outcome `json:"outcome"`
	TransactionID string          `json:"transaction_id,omitempty"`
	DeadLetterID  uint            `json:"dead_letter_id,omitempty"`
	Reason        string          `json:"reason,omitempty"`
}

// ledger outcomes that are final for this payload and go to the dead letter
// queue instead of being retried by the provider
var deadLetterReasons = map[string]string{
	constants.ErrCodeInsufficientBalance: models.DeadLetterReasonInsufficientBalance,
	constants.ErrCodeUnknownCustomer:     models.DeadLetterReasonUnknownCustomer,
	constants.ErrCodeUnmatchedRefund:     models.DeadLetterReasonUnmatchedRefund,
	constants.ErrCodePartialRefund:       models.DeadLetterReasonPartialRefund,
	constants.ErrCodeInvalidAmount:       models.DeadLetterReasonMalformedEvent,
}

type PaymentController struct {
	verifier      SignatureVerifier
	normalizer    EventNormalizer
	ledger        service.LedgerService
	deadLetters   service.DeadLetterService
	billing       service.BillingService
	webhookSecret string
	log           *zap.Logger
}

func NewPaymentController(
	verifier SignatureVerifier,
	normalizer EventNormalizer,
	ledger service.LedgerService,
	deadLetters service.DeadLetterService,
	billing service.BillingService,
	webhookSecret string,
	log *zap.Logger,
) *PaymentController {
	return &PaymentController{
		verifier:      verifier,
		normalizer:    normalizer,
		ledger:        ledger,
		deadLetters:   deadLetters,
		billing:       billing,
		webhookSecret: webhookSecret,
		log:           log,
	}
}

// HandleWebhook authenticates and applies one provider delivery. A nil error
// means the delivery may be acknowledged: the event is applied, was already
// applied, is ignored, or is durably parked. Any returned error means the
// provider has to redeliver.
func (c *PaymentController) HandleWebhook(ctx context.Context, payload []byte, signature string) (*WebhookResult, error) {
	if err := c.verifier.Verify(payload, signature, c.webhookSecret); err != nil {
		c.log.Warn("Rejected webhook signature", zap.Error(err))
		return nil, err
	}

	event, err := c.normalizer.Normalize(ctx, payload)
	if err != nil {
		var parseErr *webhook.ParseError
		if errors.As(err, &parseErr) {
			return c.park(ctx, service.ParkRequest{
				EventID:   parseErr.EventID,
				EventType: parseErr.EventType,
				Reason:    parseErr.DeadLetterReason(),
				Detail:    parseErr.Detail,
				Payload:   payload,
			})
		}
		c.log.Warn("Could not normalize webhook", zap.Error(err))
		return nil, err
	}

	res, err := c.ledger.Apply(ctx, event)
	if err != nil {
		reason, ok := deadLetterReasons[service.ErrorCode(err)]
		if !ok {
			return nil, err
		}
		return c.park(ctx, service.ParkRequest{
			EventID:   event.EventID,
			EventType: event.EventType,
			Reason:    reason,
			Detail:    err.Error(),
			Payload:   payload,
		})
	}

	return ledgerResult(event, res), nil
}

// ReplayDeadLetter feeds a parked payload through the ledger again, usually
// after the price table or a customer link was fixed. The signature is not
// checked a second time.
func (c *PaymentController) ReplayDeadLetter(ctx context.Context, id uint) (*WebhookResult, error) {
	letter, err := c.deadLetters.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if letter.Status != models.DeadLetterStatusOpen {
		return nil, service.NewServiceError(constants.ErrCodeDeadLetterClosed,
			fmt.Errorf("dead letter %d is %s", id, letter.Status))
	}

	event, err := c.normalizer.Normalize(ctx, letter.Payload)
	if err != nil {
		var parseErr *webhook.ParseError
		if errors.As(err, &parseErr) {
			if recErr := c.deadLetters.RecordAttempt(ctx, id, parseErr.DeadLetterReason(), parseErr.Detail); recErr != nil {
				return nil, recErr
			}
			return &WebhookResult{
				EventID:      letter.EventID,
				EventType:    letter.EventType,
				Outcome:      OutcomeDeadLettered,
				DeadLetterID: id,
				Reason:       parseErr.DeadLetterReason(),
			}, nil
		}
		return nil, err
	}

	res, err := c.ledger.Apply(ctx, event)
	if err != nil {
		reason, ok := deadLetterReasons[service.ErrorCode(err)]
		if !ok {
			return nil, err
		}
		if recErr := c.deadLetters.RecordAttempt(ctx, id, reason, err.Error()); recErr != nil {
			return nil, recErr
		}
		return &WebhookResult{
			EventID:      event.EventID,
			EventType:    event.EventType,
			Outcome:      OutcomeDeadLettered,
			DeadLetterID: id,
			Reason:       reason,
		}, nil
	}

	note := fmt.Sprintf("replay %s", res.Outcome)
	if res.Transaction != nil {
		note += " as " + res.Transaction.ID
	}
	if err := c.deadLetters.MarkReplayed(ctx, id, note); err != nil {
		return nil, err
	}

	c.log.Info("Dead letter replayed",
		zap.Uint("dead_letter_id", id),
		zap.String("event_id", event.EventID),
		zap.String("outcome", string(res.Outcome)),
	)
	out := ledgerResult(event, res)
	out.DeadLetterID = id
	return out, nil
}

func (c *PaymentController) CreateCheckoutSession(ctx context.Context, userID string, req models.CreateCheckoutSessionRequest, idempotencyKey string) (*models.CheckoutSession, error) {
	return c.billing.CreateCheckoutSession(ctx, userID, req, idempotencyKey)
}

func (c *PaymentController) CreatePortalSession(ctx context.Context, userID string, req models.PortalSessionRequest) (*models.PortalSession, error) {
	return c.billing.CreatePortalSession(ctx, userID, req)
}

func (c *PaymentController) GetCreditPackages() []config.PriceEntry {
	return c.billing.Catalog()
}

func (c *PaymentController) park(ctx context.Context, req service.ParkRequest) (*WebhookResult, error) {
	letter, err := c.deadLetters.Park(ctx, req)
	if err != nil {
		return nil, err
	}
	return &WebhookResult{
		EventID:      req.EventID,
		EventType:    req.EventType,
		Outcome:      OutcomeDeadLettered,
		DeadLetterID: letter.ID,
		Reason:       letter.Reason,
	}, nil
}

func ledgerResult(event *models.PaymentEvent, res *service.LedgerResult) *WebhookResult {
	out := &WebhookResult{
		EventID:   event.EventID,
		EventType: event.EventType,
		Outcome:   res.Outcome,
	}
	if res.Transaction != nil {
		out.TransactionID = res.Transaction.ID
	}
	return out
}
