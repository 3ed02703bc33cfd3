// Package testutil opens throwaway ledger databases for tests.
package testutil

import (
	"testing"

	"github.com/sefazor/storycredits/pkg/database"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// NewDB returns a migrated in-memory SQLite database. A single connection
// keeps the in-memory database alive and serializes writers the way row
// locks would.
func NewDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := database.Open(sqlite.Open(":memory:"), zap.NewNop())
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)
	sqlDB.SetConnMaxLifetime(0)

	require.NoError(t, database.Migrate(db))

	t.Cleanup(func() { _ = sqlDB.Close() })
	return db
}
