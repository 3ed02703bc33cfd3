package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type TransactionType string

const (
	TransactionTypePurchase    TransactionType = "purchase"
	TransactionTypeConsumption TransactionType = "consumption"
	TransactionTypeRefund      TransactionType = "refund"
	TransactionTypeAdjustment  TransactionType = "adjustment"
)

// CreditTransaction is an append-only ledger entry. SourceEventID is only set
// for purchase and refund rows and is unique, which is what makes webhook
// application exactly-once. CompensatesID is unique for the same reason on
// the adjustment that reverses a consumption.
type CreditTransaction struct {
	ID            string          `json:"id" gorm:"type:varchar(36);primaryKey"`
	AccountID     uint            `json:"account_id" gorm:"not null;index"`
	Amount        int64           `json:"amount" gorm:"not null"`
	Type          TransactionType `json:"type" gorm:"type:varchar(20);not null"`
	SourceEventID *string         `json:"source_event_id,omitempty" gorm:"type:varchar(255);uniqueIndex"`
	PaymentRef    string          `json:"payment_ref,omitempty" gorm:"type:varchar(255);index"`
	CompensatesID *string         `json:"compensates_id,omitempty" gorm:"type:varchar(36);uniqueIndex"`
	BalanceAfter  int64           `json:"balance_after" gorm:"not null"`
	Reason        string          `json:"reason"`
	Metadata      datatypes.JSON  `json:"metadata,omitempty"`
	CreatedAt     time.Time       `json:"created_at" gorm:"index"`
}

func (t *CreditTransaction) BeforeCreate(tx *gorm.DB) error {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	return nil
}
