package models

import "time"

const (
	CompensationStatusPending = "PENDING"
	CompensationStatusDone    = "DONE"
	CompensationStatusFailed  = "FAILED"
)

// PendingCompensation records a consumption whose compensation could not be
// written when its action failed. The relay retries it until the ledger
// accepts the compensation.
type PendingCompensation struct {
	ID            uint      `gorm:"primaryKey" json:"id"`
	ConsumptionID string    `gorm:"type:varchar(64);uniqueIndex;not null" json:"consumption_id"`
	UserID        string    `gorm:"type:varchar(255);index;not null" json:"user_id"`
	Reason        string    `gorm:"type:varchar(255)" json:"reason"`
	Status        string    `gorm:"type:varchar(20);index;not null;default:PENDING" json:"status"`
	Attempts      int       `gorm:"not null;default:0" json:"attempts"`
	LastError     string    `gorm:"type:text" json:"last_error,omitempty"`
	CreatedAt     time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}
