package webhook

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/sefazor/storycredits/internal/config"
	"github.com/sefazor/storycredits/internal/models"
	"github.com/stripe/stripe-go/v74"
)

const (
	EventCheckoutCompleted    = "checkout.session.completed"
	EventCheckoutAsyncSuccess = "checkout.session.async_payment_succeeded"
	EventCheckoutExpired      = "checkout.session.expired"
	EventChargeRefunded       = "charge.refunded"
)

// Metadata keys set on checkout sessions and their payment intents.
const (
	MetadataUserRef  = "user_ref"
	MetadataPriceID  = "price_id"
	MetadataQuantity = "quantity"
)

type PriceLookup interface {
	Lookup(priceID string) (config.PriceEntry, bool)
}

// LineItemSource fetches a checkout session's line items when the webhook
// payload does not embed them.
type LineItemSource interface {
	SessionLineItems(ctx context.Context, sessionID string) ([]*stripe.LineItem, error)
}

type Normalizer struct {
	prices    PriceLookup
	lineItems LineItemSource
}

func NewNormalizer(prices PriceLookup, lineItems LineItemSource) *Normalizer {
	return &Normalizer{prices: prices, lineItems: lineItems}
}

// Normalize turns a verified provider payload into a PaymentEvent.
func (n *Normalizer) Normalize(ctx context.Context, payload []byte) (*models.PaymentEvent, error) {
	var ev stripe.Event
	if err := json.Unmarshal(payload, &ev); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedEnvelope, err)
	}
	if ev.ID == "" || ev.Type == "" {
		return nil, fmt.Errorf("%w: missing id or type", ErrMalformedEnvelope)
	}

	out := &models.PaymentEvent{
		EventID:    ev.ID,
		EventType:  string(ev.Type),
		Kind:       models.EventKindUnknown,
		OccurredAt: time.Unix(ev.Created, 0).UTC(),
	}

	switch string(ev.Type) {
	case EventCheckoutCompleted, EventCheckoutAsyncSuccess:
		return n.checkoutCompleted(ctx, &ev, out)
	case EventCheckoutExpired:
		return n.checkoutExpired(&ev, out)
	case EventChargeRefunded:
		return n.chargeRefunded(&ev, out)
	default:
		return out, nil
	}
}

func (n *Normalizer) checkoutCompleted(ctx context.Context, ev *stripe.Event, out *models.PaymentEvent) (*models.PaymentEvent, error) {
	var sess stripe.CheckoutSession
	if err := decodeObject(ev, &sess); err != nil {
		return nil, malformed(out, "decode checkout session: %v", err)
	}

	// Async payment methods complete the session before the money arrives;
	// async_payment_succeeded follows once it does.
	if sess.PaymentStatus == stripe.CheckoutSessionPaymentStatusUnpaid {
		return out, nil
	}

	out.Kind = models.EventKindCheckoutCompleted
	out.CustomerRef = sessionCustomerRef(&sess)
	out.AmountTotal = sess.AmountTotal
	out.Currency = string(sess.Currency)
	if sess.PaymentIntent != nil {
		out.PaymentRef = sess.PaymentIntent.ID
	}
	if out.PaymentRef == "" {
		out.PaymentRef = sess.ID
	}

	if out.CustomerRef == "" {
		return nil, malformed(out, "checkout session %s has no customer reference", sess.ID)
	}

	items, err := n.sessionLineItems(ctx, &sess)
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, malformed(out, "checkout session %s has no line items", sess.ID)
	}

	var unknown []string
	for _, li := range items {
		if li.Price == nil || li.Price.ID == "" {
			return nil, malformed(out, "line item %s has no price", li.ID)
		}
		entry, ok := n.prices.Lookup(li.Price.ID)
		if !ok {
			unknown = append(unknown, li.Price.ID)
			continue
		}
		qty := li.Quantity
		if qty <= 0 {
			qty = 1
		}
		out.LineItems = append(out.LineItems, models.LineItem{
			SKU:         entry.SKU,
			PriceID:     entry.PriceID,
			Quantity:    qty,
			CreditValue: entry.Credits,
		})
	}

	if len(unknown) > 0 {
		return nil, &ParseError{
			Kind:      ErrUnknownSKU,
			EventID:   out.EventID,
			EventType: out.EventType,
			Detail:    "no credit value configured for " + strings.Join(unknown, ", "),
		}
	}

	return out, nil
}

func (n *Normalizer) sessionLineItems(ctx context.Context, sess *stripe.CheckoutSession) ([]*stripe.LineItem, error) {
	if sess.LineItems != nil && len(sess.LineItems.Data) > 0 {
		return sess.LineItems.Data, nil
	}
	if n.lineItems == nil {
		return nil, nil
	}

	items, err := n.lineItems.SessionLineItems(ctx, sess.ID)
	if err != nil {
		return nil, fmt.Errorf("%w: session %s: %v", ErrLineItemsUnavailable, sess.ID, err)
	}
	return items, nil
}

func (n *Normalizer) checkoutExpired(ev *stripe.Event, out *models.PaymentEvent) (*models.PaymentEvent, error) {
	var sess stripe.CheckoutSession
	if err := decodeObject(ev, &sess); err != nil {
		return nil, malformed(out, "decode checkout session: %v", err)
	}

	out.Kind = models.EventKindCheckoutExpired
	out.CustomerRef = sessionCustomerRef(&sess)
	out.AmountTotal = sess.AmountTotal
	out.Currency = string(sess.Currency)
	return out, nil
}

func (n *Normalizer) chargeRefunded(ev *stripe.Event, out *models.PaymentEvent) (*models.PaymentEvent, error) {
	var ch stripe.Charge
	if err := decodeObject(ev, &ch); err != nil {
		return nil, malformed(out, "decode charge: %v", err)
	}

	out.Kind = models.EventKindRefundIssued
	out.AmountTotal = ch.AmountRefunded
	out.Currency = string(ch.Currency)
	out.FullRefund = ch.Refunded || (ch.Amount > 0 && ch.AmountRefunded >= ch.Amount)

	if ch.PaymentIntent != nil {
		out.PaymentRef = ch.PaymentIntent.ID
	}
	if out.PaymentRef == "" {
		out.PaymentRef = ch.ID
	}

	out.CustomerRef = ch.Metadata[MetadataUserRef]
	if out.CustomerRef == "" && ch.Customer != nil {
		out.CustomerRef = ch.Customer.ID
	}
	if out.CustomerRef == "" && ch.BillingDetails != nil {
		out.CustomerRef = ch.BillingDetails.Email
	}

	if priceID := ch.Metadata[MetadataPriceID]; priceID != "" {
		entry, ok := n.prices.Lookup(priceID)
		if !ok {
			return nil, &ParseError{
				Kind:      ErrUnknownSKU,
				EventID:   out.EventID,
				EventType: out.EventType,
				Detail:    "no credit value configured for " + priceID,
			}
		}
		qty := int64(1)
		if raw := ch.Metadata[MetadataQuantity]; raw != "" {
			parsed, err := strconv.ParseInt(raw, 10, 64)
			if err != nil || parsed <= 0 {
				return nil, malformed(out, "charge %s has invalid quantity metadata %q", ch.ID, raw)
			}
			qty = parsed
		}
		out.LineItems = []models.LineItem{{
			SKU:         entry.SKU,
			PriceID:     entry.PriceID,
			Quantity:    qty,
			CreditValue: entry.Credits,
		}}
	}

	return out, nil
}

func sessionCustomerRef(sess *stripe.CheckoutSession) string {
	if sess.ClientReferenceID != "" {
		return sess.ClientReferenceID
	}
	if ref := sess.Metadata[MetadataUserRef]; ref != "" {
		return ref
	}
	if sess.Customer != nil && sess.Customer.ID != "" {
		return sess.Customer.ID
	}
	if sess.CustomerDetails != nil && sess.CustomerDetails.Email != "" {
		return sess.CustomerDetails.Email
	}
	return sess.CustomerEmail
}

func decodeObject(ev *stripe.Event, v interface{}) error {
	if ev.Data == nil || len(ev.Data.Raw) == 0 {
		return fmt.Errorf("event has no data.object")
	}
	return json.Unmarshal(ev.Data.Raw, v)
}

func malformed(ev *models.PaymentEvent, format string, args ...interface{}) *ParseError {
	return &ParseError{
		Kind:      ErrMalformedEvent,
		EventID:   ev.EventID,
		EventType: ev.EventType,
		Detail:    fmt.Sprintf(format, args...),
	}
}
