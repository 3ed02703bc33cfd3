package mocks

import (
	"context"

	"github.com/sefazor/storycredits/internal/models"
	"github.com/stretchr/testify/mock"
)

type CreditTransactionRepository struct {
	mock.Mock
}

func (r *CreditTransactionRepository) Create(ctx context.Context, txn *models.CreditTransaction) error {
	args := r.Called(ctx, txn)
	return args.Error(0)
}

func (r *CreditTransactionRepository) GetByID(ctx context.Context, id string) (*models.CreditTransaction, error) {
	args := r.Called(ctx, id)
	return args.Get(0).(*models.CreditTransaction), args.Error(1)
}

func (r *CreditTransactionRepository) GetBySourceEventID(ctx context.Context, eventID string) (*models.CreditTransaction, error) {
	args := r.Called(ctx, eventID)
	return args.Get(0).(*models.CreditTransaction), args.Error(1)
}

func (r *CreditTransactionRepository) GetByCompensatesID(ctx context.Context, consumptionID string) (*models.CreditTransaction, error) {
	args := r.Called(ctx, consumptionID)
	return args.Get(0).(*models.CreditTransaction), args.Error(1)
}

func (r *CreditTransactionRepository) GetPurchaseByPaymentRef(ctx context.Context, paymentRef string) (*models.CreditTransaction, error) {
	args := r.Called(ctx, paymentRef)
	return args.Get(0).(*models.CreditTransaction), args.Error(1)
}

func (r *CreditTransactionRepository) ListByAccount(ctx context.Context, accountID uint, limit int) ([]models.CreditTransaction, error) {
	args := r.Called(ctx, accountID, limit)
	return args.Get(0).([]models.CreditTransaction), args.Error(1)
}

func (r *CreditTransactionRepository) SumByAccount(ctx context.Context, accountID uint) (int64, int64, error) {
	args := r.Called(ctx, accountID)
	return args.Get(0).(int64), args.Get(1).(int64), args.Error(2)
}
