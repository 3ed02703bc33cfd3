package webhook

import (
	"errors"
	"fmt"

	"github.com/sefazor/storycredits/internal/models"
)

var (
	// ErrMalformedEnvelope means the body is not a provider event at all.
	ErrMalformedEnvelope = errors.New("unparsable event envelope")

	ErrUnknownSKU     = errors.New("unknown sku")
	ErrMalformedEvent = errors.New("malformed event")

	// ErrLineItemsUnavailable is transient: the provider should redeliver.
	ErrLineItemsUnavailable = errors.New("line items unavailable")
)

// ParseError is a well-formed event that cannot be turned into a ledger
// mutation. It is acknowledged and parked, never retried automatically.
type ParseError struct {
	Kind      error
	EventID   string
	EventType string
	Detail    string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%v: %s (event %s)", e.Kind, e.Detail, e.EventID)
}

func (e *ParseError) Unwrap() error {
	return e.Kind
}

func (e *ParseError) DeadLetterReason() string {
	if errors.Is(e.Kind, ErrUnknownSKU) {
		return models.DeadLetterReasonUnknownSKU
	}
	return models.DeadLetterReasonMalformedEvent
}
