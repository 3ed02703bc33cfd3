package models

import "time"

// CustomerLink maps a payment provider customer reference (customer id or
// email) to the internal user that owns the credit account.
type CustomerLink struct {
	ID          uint      `json:"id" gorm:"primaryKey"`
	CustomerRef string    `json:"customer_ref" gorm:"type:varchar(255);uniqueIndex;not null"`
	UserID      string    `json:"user_id" gorm:"type:varchar(128);index;not null"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}
