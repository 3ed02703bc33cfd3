package models

import "time"

// CreditAccount holds the purchasable credit balance of exactly one user.
// Balance never goes below zero in a committed state and Version is bumped
// on every mutation.
type CreditAccount struct {
	ID        uint       `json:"id" gorm:"primaryKey"`
	UserID    string     `json:"user_id" gorm:"type:varchar(128);uniqueIndex;not null"`
	Balance   int64      `json:"balance" gorm:"not null;default:0"`
	Version   int64      `json:"version" gorm:"not null;default:0"`
	RetiredAt *time.Time `json:"retired_at,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

func (a *CreditAccount) IsRetired() bool {
	return a.RetiredAt != nil
}

type BalanceResponse struct {
	UserID       string              `json:"user_id"`
	Balance      int64               `json:"balance"`
	Transactions []CreditTransaction `json:"transactions"`
}

type AuditReport struct {
	UserID           string `json:"user_id"`
	AccountID        uint   `json:"account_id"`
	Balance          int64  `json:"balance"`
	TransactionSum   int64  `json:"transaction_sum"`
	TransactionCount int64  `json:"transaction_count"`
	Consistent       bool   `json:"consistent"`
}
