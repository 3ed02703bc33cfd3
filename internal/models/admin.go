package models

type AdjustmentRequest struct {
	UserID string `json:"user_id" validate:"required,max=128"`
	Amount int64  `json:"amount" validate:"required,ne=0"`
	Reason string `json:"reason" validate:"required,max=500"`
}

type CustomerLinkRequest struct {
	CustomerRef string `json:"customer_ref" validate:"required,max=255"`
	UserID      string `json:"user_id" validate:"required,max=128"`
}

type ResolveDeadLetterRequest struct {
	Note string `json:"note" validate:"required,max=1000"`
}
