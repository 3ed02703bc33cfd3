package models

import "time"

// EventKind is the provider-agnostic classification of a payment notification.
type EventKind string

const (
	EventKindCheckoutCompleted EventKind = "checkout_completed"
	EventKindCheckoutExpired   EventKind = "checkout_expired"
	EventKindRefundIssued      EventKind = "refund_issued"
	EventKindUnknown           EventKind = "unknown"
)

type LineItem struct {
	SKU         string `json:"sku"`
	PriceID     string `json:"price_id"`
	Quantity    int64  `json:"quantity"`
	CreditValue int64  `json:"credit_value"`
}

// PaymentEvent is one normalized provider notification. EventID is the only
// deduplication key.
type PaymentEvent struct {
	EventID     string     `json:"event_id"`
	EventType   string     `json:"event_type"`
	Kind        EventKind  `json:"kind"`
	CustomerRef string     `json:"customer_ref"`
	PaymentRef  string     `json:"payment_ref"`
	LineItems   []LineItem `json:"line_items"`
	AmountTotal int64      `json:"amount_total"`
	Currency    string     `json:"currency"`
	FullRefund  bool       `json:"full_refund"`
	OccurredAt  time.Time  `json:"occurred_at"`
}

// Credits sums credit_value * quantity. Money amounts are never used here.
func (e *PaymentEvent) Credits() int64 {
	var total int64
	for _, item := range e.LineItems {
		total += item.CreditValue * item.Quantity
	}
	return total
}

type CreateCheckoutSessionRequest struct {
	PriceID  string `json:"price_id" validate:"required,price_id"`
	Quantity int64  `json:"quantity" validate:"omitempty,min=1,max=20"`
}

type CheckoutSession struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

type PortalSessionRequest struct {
	CustomerID string `json:"customerId" validate:"required"`
	ReturnURL  string `json:"returnUrl" validate:"required,url"`
}

type PortalSession struct {
	URL string `json:"url"`
}
