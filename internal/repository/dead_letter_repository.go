package repository

import (
	"context"
	"errors"
	"time"

	"github.com/sefazor/storycredits/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var ErrDeadLetterNotFound = errors.New("dead letter not found")

type DeadLetterRepository interface {
	CreateIfNotExists(ctx context.Context, letter *models.DeadLetter) (bool, *models.DeadLetter, error)
	GetByID(ctx context.Context, id uint) (*models.DeadLetter, error)
	GetByEventID(ctx context.Context, eventID string) (*models.DeadLetter, error)
	List(ctx context.Context, status models.DeadLetterStatus, limit int) ([]models.DeadLetter, error)
	UpdateStatus(ctx context.Context, id uint, status models.DeadLetterStatus, note string) error
	RecordAttempt(ctx context.Context, id uint, reason, detail string) error
	SetArchiveKey(ctx context.Context, id uint, key string) error
}

type deadLetterRepository struct {
	db *gorm.DB
}

func NewDeadLetterRepository(db *gorm.DB) DeadLetterRepository {
	return &deadLetterRepository{db: db}
}

// CreateIfNotExists stores the letter unless one exists for the same event
// id. It reports whether a new row was written and returns the stored row
// either way.
func (r *deadLetterRepository) CreateIfNotExists(ctx context.Context, letter *models.DeadLetter) (bool, *models.DeadLetter, error) {
	res := GetTx(ctx, r.db).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "event_id"}},
			DoNothing: true,
		}).
		Create(letter)
	if res.Error != nil {
		return false, nil, res.Error
	}
	if res.RowsAffected > 0 {
		return true, letter, nil
	}

	existing, err := r.GetByEventID(ctx, letter.EventID)
	if err != nil {
		return false, nil, err
	}
	return false, existing, nil
}

func (r *deadLetterRepository) GetByID(ctx context.Context, id uint) (*models.DeadLetter, error) {
	var letter models.DeadLetter
	err := GetTx(ctx, r.db).First(&letter, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrDeadLetterNotFound
		}
		return nil, err
	}
	return &letter, nil
}

func (r *deadLetterRepository) GetByEventID(ctx context.Context, eventID string) (*models.DeadLetter, error) {
	var letter models.DeadLetter
	err := GetTx(ctx, r.db).Where("event_id = ?", eventID).First(&letter).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrDeadLetterNotFound
		}
		return nil, err
	}
	return &letter, nil
}

func (r *deadLetterRepository) List(ctx context.Context, status models.DeadLetterStatus, limit int) ([]models.DeadLetter, error) {
	var letters []models.DeadLetter
	q := GetTx(ctx, r.db).Order("created_at DESC").Limit(limit)
	if status != "" {
		q = q.Where("status = ?", status)
	}
	err := q.Find(&letters).Error
	return letters, err
}

func (r *deadLetterRepository) UpdateStatus(ctx context.Context, id uint, status models.DeadLetterStatus, note string) error {
	updates := map[string]interface{}{
		"status":          status,
		"resolution_note": note,
	}
	if status != models.DeadLetterStatusOpen {
		updates["resolved_at"] = time.Now()
	}

	res := GetTx(ctx, r.db).Model(&models.DeadLetter{}).Where("id = ?", id).Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrDeadLetterNotFound
	}
	return nil
}

func (r *deadLetterRepository) RecordAttempt(ctx context.Context, id uint, reason, detail string) error {
	return GetTx(ctx, r.db).
		Model(&models.DeadLetter{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"reason":   reason,
			"detail":   detail,
			"attempts": gorm.Expr("attempts + 1"),
		}).Error
}

func (r *deadLetterRepository) SetArchiveKey(ctx context.Context, id uint, key string) error {
	return GetTx(ctx, r.db).
		Model(&models.DeadLetter{}).
		Where("id = ?", id).
		Update("archive_key", key).Error
}
