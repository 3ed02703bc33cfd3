package repository

import (
	"context"

	"gorm.io/gorm"
)

type txKey struct{}

type TxManager interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
}

type TransactionManager struct {
	db *gorm.DB
}

func NewTransactionManager(db *gorm.DB) TxManager {
	return &TransactionManager{db: db}
}

// WithTx runs fn inside one database transaction. Repositories called with the
// returned context pick the transaction up through GetTx, so everything fn
// does commits or rolls back together.
func (tm *TransactionManager) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return tm.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(context.WithValue(ctx, txKey{}, tx))
	})
}

func GetTx(ctx context.Context, db *gorm.DB) *gorm.DB {
	tx, ok := ctx.Value(txKey{}).(*gorm.DB)
	if !ok {
		return db.WithContext(ctx)
	}
	return tx
}
