package models

import "time"

const (
	OutboxStatusPending = "PENDING"
	OutboxStatusSent    = "SENT"
	OutboxStatusFailed  = "FAILED"
)

type OutboxMessage struct {
	ID         int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	MessageKey string    `gorm:"type:varchar(128);not null" json:"message_key"`
	Topic      string    `gorm:"type:varchar(64);not null" json:"topic"`
	Payload    string    `gorm:"type:text;not null" json:"payload"`
	Status     string    `gorm:"type:varchar(20);index;not null;default:PENDING" json:"status"`
	RetryCount int       `gorm:"not null;default:0" json:"retry_count"`
	CreatedAt  time.Time `gorm:"autoCreateTime;index" json:"created_at"`
	UpdatedAt  time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// LedgerChange is the payload published for every committed balance mutation.
type LedgerChange struct {
	TransactionID string          `json:"transaction_id"`
	UserID        string          `json:"user_id"`
	AccountID     uint            `json:"account_id"`
	Type          TransactionType `json:"type"`
	Amount        int64           `json:"amount"`
	BalanceAfter  int64           `json:"balance_after"`
	SourceEventID string          `json:"source_event_id,omitempty"`
	OccurredAt    time.Time       `json:"occurred_at"`
}
