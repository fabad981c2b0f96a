package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/clearsats/paymentd/internal/domain/model"
	domainRepo "github.com/clearsats/paymentd/internal/domain/repository"
)

// creditRepository implements the CreditRepository interface
type creditRepository struct {
	db     *gorm.DB
	logger *zap.Logger
}

// NewCreditRepository creates a new credit repository instance
func NewCreditRepository(db *gorm.DB, logger *zap.Logger) domainRepo.CreditRepository {
	return &creditRepository{
		db:     db,
		logger: logger,
	}
}

func (r *creditRepository) GetBalance(ctx context.Context, userID uuid.UUID) (*model.UserCreditBalance, error) {
	var balance model.UserCreditBalance

	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		First(&balance).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			// Users without transactions simply have a zero balance.
			return &model.UserCreditBalance{UserID: userID}, nil
		}
		r.logger.Error("Failed to get credit balance",
			zap.String("user_id", userID.String()),
			zap.Error(err))
		return nil, fmt.Errorf("failed to get credit balance: %w", err)
	}

	return &balance, nil
}

// Apply adds credits to a user's balance atomically and exactly once per
// referenceID. The increment is a `credits = credits + ?` expression executed
// inside a transaction that also inserts the journal row; the unique index on
// reference_id is the idempotency backstop.
func (r *creditRepository) Apply(ctx context.Context, userID uuid.UUID, amount int64, referenceID uuid.UUID, description string) (*model.UserCreditBalance, *model.CreditTransaction, error) {
	var balance *model.UserCreditBalance
	var transaction *model.CreditTransaction

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// Idempotency: a journal row with this reference means the credit
		// has already been applied.
		var existingTx model.CreditTransaction
		err := tx.Where("reference_id = ?", referenceID).First(&existingTx).Error
		if err == nil {
			transaction = &existingTx

			var currentBalance model.UserCreditBalance
			if err := tx.Where("user_id = ?", userID).First(&currentBalance).Error; err == nil {
				balance = &currentBalance
			}

			r.logger.Info("Credit application already processed (idempotency)",
				zap.String("reference_id", referenceID.String()),
				zap.String("user_id", userID.String()))
			return nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("failed to check existing transaction: %w", err)
		}

		// Lock the user's balance row for update, creating it on first use.
		var currentBalance model.UserCreditBalance
		err = tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("user_id = ?", userID).
			FirstOrCreate(&currentBalance, model.UserCreditBalance{UserID: userID}).Error
		if err != nil {
			return fmt.Errorf("failed to lock balance: %w", err)
		}

		ref := referenceID
		transaction = &model.CreditTransaction{
			UserID:          userID,
			TransactionType: model.CreditTransactionTypeAllocation,
			Amount:          amount,
			BalanceAfter:    currentBalance.Credits + amount,
			Description:     description,
			ReferenceID:     &ref,
		}
		if err := tx.Create(transaction).Error; err != nil {
			return fmt.Errorf("failed to create credit transaction: %w", err)
		}

		// The increment is expressed in SQL so concurrent applications for
		// different payments to the same user compose correctly.
		err = tx.Model(&model.UserCreditBalance{}).
			Where("user_id = ?", userID).
			Updates(map[string]interface{}{
				"credits":             gorm.Expr("credits + ?", amount),
				"last_transaction_at": transaction.CreatedAt,
			}).Error
		if err != nil {
			return fmt.Errorf("failed to update balance: %w", err)
		}

		var updated model.UserCreditBalance
		if err := tx.Where("user_id = ?", userID).First(&updated).Error; err != nil {
			return fmt.Errorf("failed to reload balance: %w", err)
		}
		balance = &updated
		return nil
	})
	if err != nil {
		r.logger.Error("Failed to apply credits",
			zap.String("user_id", userID.String()),
			zap.Int64("amount", amount),
			zap.String("reference_id", referenceID.String()),
			zap.Error(err))
		return nil, nil, fmt.Errorf("failed to apply credits: %w", err)
	}

	r.logger.Info("Credits applied",
		zap.String("user_id", userID.String()),
		zap.Int64("amount", amount),
		zap.Int64("new_balance", balance.Credits),
		zap.String("reference_id", referenceID.String()))

	return balance, transaction, nil
}

func (r *creditRepository) ListTransactions(ctx context.Context, userID uuid.UUID, limit, offset int) ([]model.CreditTransaction, error) {
	if limit < 1 {
		limit = 20
	}
	var transactions []model.CreditTransaction
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&transactions).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list credit transactions: %w", err)
	}
	return transactions, nil
}
