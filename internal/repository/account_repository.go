package repository

import (
	"context"
	"errors"
	"time"

	"github.com/sefazor/storycredits/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	ErrAccountNotFound = errors.New("credit account not found")
	ErrVersionConflict = errors.New("credit account version conflict")
)

type AccountRepository interface {
	GetOrCreate(ctx context.Context, userID string) (*models.CreditAccount, error)
	GetByUserID(ctx context.Context, userID string) (*models.CreditAccount, error)
	GetByID(ctx context.Context, id uint) (*models.CreditAccount, error)
	CompareAndSwapBalance(ctx context.Context, id uint, expectedVersion, newBalance int64) error
	Retire(ctx context.Context, userID string, at time.Time) error
}

type accountRepository struct {
	db *gorm.DB
}

func NewAccountRepository(db *gorm.DB) AccountRepository {
	return &accountRepository{db: db}
}

func (r *accountRepository) GetOrCreate(ctx context.Context, userID string) (*models.CreditAccount, error) {
	account, err := r.GetByUserID(ctx, userID)
	if err == nil {
		return account, nil
	}
	if !errors.Is(err, ErrAccountNotFound) {
		return nil, err
	}

	newAccount := &models.CreditAccount{UserID: userID}
	err = GetTx(ctx, r.db).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}},
			DoNothing: true,
		}).
		Create(newAccount).Error
	if err != nil {
		return nil, err
	}

	return r.GetByUserID(ctx, userID)
}

func (r *accountRepository) GetByUserID(ctx context.Context, userID string) (*models.CreditAccount, error) {
	var account models.CreditAccount
	err := GetTx(ctx, r.db).Where("user_id = ?", userID).First(&account).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAccountNotFound
		}
		return nil, err
	}
	return &account, nil
}

func (r *accountRepository) GetByID(ctx context.Context, id uint) (*models.CreditAccount, error) {
	var account models.CreditAccount
	err := GetTx(ctx, r.db).First(&account, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAccountNotFound
		}
		return nil, err
	}
	return &account, nil
}

// CompareAndSwapBalance writes newBalance only if the row still carries
// expectedVersion. A zero-row update means someone else committed first.
func (r *accountRepository) CompareAndSwapBalance(ctx context.Context, id uint, expectedVersion, newBalance int64) error {
	if newBalance < 0 {
		return errors.New("refusing to store a negative balance")
	}

	result := GetTx(ctx, r.db).
		Model(&models.CreditAccount{}).
		Where("id = ? AND version = ?", id, expectedVersion).
		Updates(map[string]interface{}{
			"balance":    newBalance,
			"version":    gorm.Expr("version + 1"),
			"updated_at": time.Now(),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrVersionConflict
	}
	return nil
}

func (r *accountRepository) Retire(ctx context.Context, userID string, at time.Time) error {
	result := GetTx(ctx, r.db).
		Model(&models.CreditAccount{}).
		Where("user_id = ? AND retired_at IS NULL", userID).
		Updates(map[string]interface{}{
			"retired_at": at,
			"version":    gorm.Expr("version + 1"),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		if _, err := r.GetByUserID(ctx, userID); err != nil {
			return err
		}
	}
	return nil
}
