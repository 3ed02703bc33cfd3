package models

import (
	"time"

	"gorm.io/datatypes"
)

type DeadLetterStatus string

const (
	DeadLetterStatusOpen     DeadLetterStatus = "open"
	DeadLetterStatusResolved DeadLetterStatus = "resolved"
	DeadLetterStatusReplayed DeadLetterStatus = "replayed"
)

const (
	DeadLetterReasonUnknownSKU          = "unknown_sku"
	DeadLetterReasonMalformedEvent      = "malformed_event"
	DeadLetterReasonInsufficientBalance = "insufficient_balance"
	DeadLetterReasonUnknownCustomer     = "unknown_customer"
	DeadLetterReasonUnmatchedRefund     = "unmatched_refund"
	DeadLetterReasonPartialRefund       = "partial_refund"
)

// DeadLetter is a webhook event that was acknowledged to the provider but
// could not be applied to the ledger. It stays open until someone resolves
// or replays it.
type DeadLetter struct {
	ID             uint             `json:"id" gorm:"primaryKey"`
	EventID        string           `json:"event_id" gorm:"type:varchar(255);uniqueIndex;not null"`
	EventType      string           `json:"event_type" gorm:"type:varchar(100)"`
	Reason         string           `json:"reason" gorm:"type:varchar(50);index;not null"`
	Detail         string           `json:"detail" gorm:"type:text"`
	Payload        datatypes.JSON   `json:"payload,omitempty"`
	ArchiveKey     string           `json:"archive_key,omitempty"`
	Status         DeadLetterStatus `json:"status" gorm:"type:varchar(20);index;not null;default:'open'"`
	Attempts       int              `json:"attempts" gorm:"not null;default:1"`
	ResolvedAt     *time.Time       `json:"resolved_at,omitempty"`
	ResolutionNote string           `json:"resolution_note,omitempty"`
	CreatedAt      time.Time        `json:"created_at"`
	UpdatedAt      time.Time        `json:"updated_at"`
}
