package database

import (
	"fmt"
	"time"

	"github.com/sefazor/storycredits/internal/models"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"
)

type Config struct {
	URL             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// NewDatabase connects to Postgres and migrates the ledger schema.
func NewDatabase(cfg Config, logger *zap.Logger) (*gorm.DB, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("DATABASE_URL is not set")
	}

	db, err := Open(postgres.Open(cfg.URL), logger)
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		logger.Error("Failed to get underlying DB", zap.Error(err))
		return nil, fmt.Errorf("failed to get sql.DB: %w", err)
	}

	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	if err := sqlDB.Ping(); err != nil {
		logger.Error("Database ping failed", zap.Error(err))
		return nil, fmt.Errorf("database ping failed: %w", err)
	}

	if err := Migrate(db); err != nil {
		return nil, err
	}

	logger.Info("Connected to Postgres", zap.Int("max_open_conns", cfg.MaxOpenConns))
	return db, nil
}

// Open wraps gorm.Open with the settings every ledger connection needs.
// TranslateError must stay on: duplicate deliveries are detected through
// gorm.ErrDuplicatedKey.
func Open(dialector gorm.Dialector, logger *zap.Logger) (*gorm.DB, error) {
	gl := gormLogger.New(&zapWriter{logger: logger},
		gormLogger.Config{
			SlowThreshold:             200 * time.Millisecond,
			LogLevel:                  gormLogger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		})

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger:         gl,
		TranslateError: true,
	})
	if err != nil {
		logger.Error("Failed to connect to database", zap.Error(err))
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return db, nil
}

func Migrate(db *gorm.DB) error {
	err := db.AutoMigrate(
		&models.CreditAccount{},
		&models.CreditTransaction{},
		&models.DeadLetter{},
		&models.CustomerLink{},
		&models.OutboxMessage{},
		&models.PendingCompensation{},
	)
	if err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}
	return nil
}

type zapWriter struct {
	logger *zap.Logger
}

func (z *zapWriter) Printf(format string, args ...interface{}) {
	z.logger.Warn(fmt.Sprintf(format, args...))
}
