package repository

import (
	"context"
	"errors"

	"github.com/sefazor/storycredits/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var ErrCustomerLinkNotFound = errors.New("customer link not found")

type CustomerLinkRepository interface {
	GetByCustomerRef(ctx context.Context, customerRef string) (*models.CustomerLink, error)
	Upsert(ctx context.Context, link *models.CustomerLink) error
}

type customerLinkRepository struct {
	db *gorm.DB
}

func NewCustomerLinkRepository(db *gorm.DB) CustomerLinkRepository {
	return &customerLinkRepository{db: db}
}

func (r *customerLinkRepository) GetByCustomerRef(ctx context.Context, customerRef string) (*models.CustomerLink, error) {
	var link models.CustomerLink
	err := GetTx(ctx, r.db).Where("customer_ref = ?", customerRef).First(&link).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrCustomerLinkNotFound
		}
		return nil, err
	}
	return &link, nil
}

func (r *customerLinkRepository) Upsert(ctx context.Context, link *models.CustomerLink) error {
	if err := GetTx(ctx, r.db).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "customer_ref"}},
		DoUpdates: clause.AssignmentColumns([]string{"user_id", "updated_at"}),
	}).Create(link).Error; err != nil {
		return err
	}

	return GetTx(ctx, r.db).Where("customer_ref = ?", link.CustomerRef).First(link).Error
}
