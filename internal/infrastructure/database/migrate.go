package database

import (
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/clearsats/paymentd/internal/domain/model"
)

// Migrate runs database migrations
func Migrate(db *gorm.DB, logger *zap.Logger) error {
	logger.Info("Running database migrations...")

	if err := createExtensions(db); err != nil {
		logger.Error("Failed to create extensions", zap.Error(err))
		return err
	}

	// Custom types must exist BEFORE auto-migrate references them.
	if err := createCustomTypes(db); err != nil {
		logger.Error("Failed to create custom types", zap.Error(err))
		return err
	}

	err := db.AutoMigrate(
		&model.Payment{},
		&model.CreditTransaction{},
		&model.UserCreditBalance{},
	)
	if err != nil {
		logger.Error("Failed to run migrations", zap.Error(err))
		return err
	}

	if err := createCustomIndexes(db); err != nil {
		logger.Error("Failed to create custom indexes", zap.Error(err))
		return err
	}

	logger.Info("Database migrations completed successfully")
	return nil
}

// createExtensions creates required PostgreSQL extensions
func createExtensions(db *gorm.DB) error {
	return db.Exec(`CREATE EXTENSION IF NOT EXISTS "uuid-ossp"`).Error
}

// createCustomTypes creates the enum types backing the status columns
func createCustomTypes(db *gorm.DB) error {
	if err := db.Exec(`DO $$ BEGIN
		CREATE TYPE payment_status AS ENUM ('pending', 'confirming', 'confirmed', 'credited', 'forwarded', 'expired', 'failed');
	EXCEPTION WHEN duplicate_object THEN NULL;
	END $$`).Error; err != nil {
		return err
	}

	return db.Exec(`DO $$ BEGIN
		CREATE TYPE credit_transaction_type AS ENUM ('allocation', 'usage', 'adjustment');
	EXCEPTION WHEN duplicate_object THEN NULL;
	END $$`).Error
}

// createCustomIndexes creates custom indexes that GORM doesn't handle automatically
func createCustomIndexes(db *gorm.DB) error {
	// The scheduler lists non-terminal payments every tick; a partial index
	// keeps that query off the ever-growing terminal rows.
	if err := db.Exec(`CREATE INDEX IF NOT EXISTS idx_payments_non_terminal ON payments (created_at) WHERE status NOT IN ('forwarded', 'expired', 'failed')`).Error; err != nil {
		return err
	}

	if err := db.Exec(`CREATE INDEX IF NOT EXISTS idx_payments_user_created ON payments (user_id, created_at DESC)`).Error; err != nil {
		return err
	}

	return db.Exec(`CREATE UNIQUE INDEX IF NOT EXISTS idx_credit_transactions_reference ON credit_transactions (reference_id) WHERE reference_id IS NOT NULL`).Error
}
