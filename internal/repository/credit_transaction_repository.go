package repository

import (
	"context"
	"errors"

	"github.com/sefazor/storycredits/internal/models"
	"gorm.io/gorm"
)

var (
	ErrTransactionExists   = errors.New("credit transaction already exists")
	ErrTransactionNotFound = errors.New("credit transaction not found")
)

type CreditTransactionRepository interface {
	Create(ctx context.Context, txn *models.CreditTransaction) error
	GetByID(ctx context.Context, id string) (*models.CreditTransaction, error)
	GetBySourceEventID(ctx context.Context, eventID string) (*models.CreditTransaction, error)
	GetByCompensatesID(ctx context.Context, consumptionID string) (*models.CreditTransaction, error)
	GetPurchaseByPaymentRef(ctx context.Context, paymentRef string) (*models.CreditTransaction, error)
	ListByAccount(ctx context.Context, accountID uint, limit int) ([]models.CreditTransaction, error)
	SumByAccount(ctx context.Context, accountID uint) (sum int64, count int64, err error)
}

type creditTransactionRepository struct {
	db *gorm.DB
}

func NewCreditTransactionRepository(db *gorm.DB) CreditTransactionRepository {
	return &creditTransactionRepository{db: db}
}

// Create inserts one ledger row. Unique violations on source_event_id or
// compensates_id come back as ErrTransactionExists; the database needs
// TranslateError enabled for that.
func (r *creditTransactionRepository) Create(ctx context.Context, txn *models.CreditTransaction) error {
	err := GetTx(ctx, r.db).Create(txn).Error
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return ErrTransactionExists
	}
	return err
}

func (r *creditTransactionRepository) GetByID(ctx context.Context, id string) (*models.CreditTransaction, error) {
	return r.first(ctx, "id = ?", id)
}

func (r *creditTransactionRepository) GetBySourceEventID(ctx context.Context, eventID string) (*models.CreditTransaction, error) {
	return r.first(ctx, "source_event_id = ?", eventID)
}

func (r *creditTransactionRepository) GetByCompensatesID(ctx context.Context, consumptionID string) (*models.CreditTransaction, error) {
	return r.first(ctx, "compensates_id = ?", consumptionID)
}

func (r *creditTransactionRepository) GetPurchaseByPaymentRef(ctx context.Context, paymentRef string) (*models.CreditTransaction, error) {
	return r.first(ctx, "payment_ref = ? AND type = ?", paymentRef, models.TransactionTypePurchase)
}

func (r *creditTransactionRepository) ListByAccount(ctx context.Context, accountID uint, limit int) ([]models.CreditTransaction, error) {
	var txns []models.CreditTransaction
	err := GetTx(ctx, r.db).
		Where("account_id = ?", accountID).
		Order("created_at DESC").
		Limit(limit).
		Find(&txns).Error
	return txns, err
}

func (r *creditTransactionRepository) SumByAccount(ctx context.Context, accountID uint) (int64, int64, error) {
	var row struct {
		Total int64
		Count int64
	}
	err := GetTx(ctx, r.db).
		Model(&models.CreditTransaction{}).
		Select("COALESCE(SUM(amount), 0) AS total, COUNT(*) AS count").
		Where("account_id = ?", accountID).
		Scan(&row).Error
	return row.Total, row.Count, err
}

func (r *creditTransactionRepository) first(ctx context.Context, query string, args ...interface{}) (*models.CreditTransaction, error) {
	var txn models.CreditTransaction
	err := GetTx(ctx, r.db).Where(query, args...).First(&txn).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTransactionNotFound
		}
		return nil, err
	}
	return &txn, nil
}
