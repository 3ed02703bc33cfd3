package repository

import (
	"context"

	"github.com/sefazor/storycredits/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type PendingCompensationRepository interface {
	CreateIfNotExists(ctx context.Context, pending *models.PendingCompensation) error
	GetPending(ctx context.Context, limit int) ([]*models.PendingCompensation, error)
	MarkDone(ctx context.Context, id uint) error
	MarkAsFailed(ctx context.Context, id uint, lastError string) error
	RecordAttempt(ctx context.Context, id uint, lastError string) error
}

type pendingCompensationRepository struct {
	db *gorm.DB
}

func NewPendingCompensationRepository(db *gorm.DB) PendingCompensationRepository {
	return &pendingCompensationRepository{db: db}
}

// CreateIfNotExists queues the consumption once; a second failure for the
// same consumption leaves the existing row alone.
func (r *pendingCompensationRepository) CreateIfNotExists(ctx context.Context, pending *models.PendingCompensation) error {
	return GetTx(ctx, r.db).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "consumption_id"}},
			DoNothing: true,
		}).
		Create(pending).Error
}

func (r *pendingCompensationRepository) GetPending(ctx context.Context, limit int) ([]*models.PendingCompensation, error) {
	var pending []*models.PendingCompensation
	err := GetTx(ctx, r.db).
		Where("status = ?", models.CompensationStatusPending).
		Order("id ASC").
		Limit(limit).
		Find(&pending).Error
	return pending, err
}

func (r *pendingCompensationRepository) MarkDone(ctx context.Context, id uint) error {
	return GetTx(ctx, r.db).
		Model(&models.PendingCompensation{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":     models.CompensationStatusDone,
			"attempts":   gorm.Expr("attempts + 1"),
			"last_error": "",
		}).Error
}

func (r *pendingCompensationRepository) MarkAsFailed(ctx context.Context, id uint, lastError string) error {
	return GetTx(ctx, r.db).
		Model(&models.PendingCompensation{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":     models.CompensationStatusFailed,
			"attempts":   gorm.Expr("attempts + 1"),
			"last_error": lastError,
		}).Error
}

func (r *pendingCompensationRepository) RecordAttempt(ctx context.Context, id uint, lastError string) error {
	return GetTx(ctx, r.db).
		Model(&models.PendingCompensation{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"attempts":   gorm.Expr("attempts + 1"),
			"last_error": lastError,
		}).Error
}
