package repository

import (
	"context"

	"github.com/sefazor/storycredits/internal/models"
	"gorm.io/gorm"
)

type OutboxRepository interface {
	Create(ctx context.Context, msg *models.OutboxMessage) error
	GetPendingMessages(ctx context.Context, limit int) ([]*models.OutboxMessage, error)
	UpdateStatus(ctx context.Context, id int64, status string) error
	IncrementRetryCount(ctx context.Context, id int64) error
	MarkAsFailed(ctx context.Context, id int64) error
}

type outboxRepository struct {
	db *gorm.DB
}

func NewOutboxRepository(db *gorm.DB) OutboxRepository {
	return &outboxRepository{db: db}
}

func (r *outboxRepository) Create(ctx context.Context, msg *models.OutboxMessage) error {
	return GetTx(ctx, r.db).Create(msg).Error
}

func (r *outboxRepository) GetPendingMessages(ctx context.Context, limit int) ([]*models.OutboxMessage, error) {
	var messages []*models.OutboxMessage
	err := GetTx(ctx, r.db).
		Where("status = ?", models.OutboxStatusPending).
		Order("id ASC").
		Limit(limit).
		Find(&messages).Error
	return messages, err
}

func (r *outboxRepository) UpdateStatus(ctx context.Context, id int64, status string) error {
	return GetTx(ctx, r.db).
		Model(&models.OutboxMessage{}).
		Where("id = ?", id).
		Update("status", status).Error
}

func (r *outboxRepository) IncrementRetryCount(ctx context.Context, id int64) error {
	return GetTx(ctx, r.db).
		Model(&models.OutboxMessage{}).
		Where("id = ?", id).
		UpdateColumn("retry_count", gorm.Expr("retry_count + 1")).Error
}

func (r *outboxRepository) MarkAsFailed(ctx context.Context, id int64) error {
	return GetTx(ctx, r.db).
		Model(&models.OutboxMessage{}).
		Where("id = ?", id).
		Update("status", models.OutboxStatusFailed).Error
}
