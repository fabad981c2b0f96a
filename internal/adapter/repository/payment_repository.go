package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	domainErrors "github.com/clearsats/paymentd/internal/domain/errors"
	"github.com/clearsats/paymentd/internal/domain/model"
	domainRepo "github.com/clearsats/paymentd/internal/domain/repository"
)

// paymentRepository implements the PaymentRepository interface
type paymentRepository struct {
	db     *gorm.DB
	logger *zap.Logger
}

// NewPaymentRepository creates a new payment repository instance
func NewPaymentRepository(db *gorm.DB, logger *zap.Logger) domainRepo.PaymentRepository {
	return &paymentRepository{
		db:     db,
		logger: logger,
	}
}

func (r *paymentRepository) Create(ctx context.Context, payment *model.Payment) error {
	if err := r.db.WithContext(ctx).Create(payment).Error; err != nil {
		r.logger.Error("Failed to create payment",
			zap.String("payment_id", payment.ID.String()),
			zap.Error(err))
		return fmt.Errorf("failed to create payment: %w", err)
	}
	return nil
}

func (r *paymentRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Payment, error) {
	var payment model.Payment
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&payment).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domainErrors.ErrPaymentNotFound
		}
		return nil, fmt.Errorf("failed to get payment: %w", err)
	}
	return &payment, nil
}

func (r *paymentRepository) GetByAddress(ctx context.Context, address string) (*model.Payment, error) {
	var payment model.Payment
	err := r.db.WithContext(ctx).Where("address = ?", address).First(&payment).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domainErrors.ErrPaymentNotFound
		}
		return nil, fmt.Errorf("failed to get payment by address: %w", err)
	}
	return &payment, nil
}

func (r *paymentRepository) ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]model.Payment, error) {
	if limit < 1 {
		limit = 20
	}
	var payments []model.Payment
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&payments).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list payments: %w", err)
	}
	return payments, nil
}

func (r *paymentRepository) ListNonTerminal(ctx context.Context) ([]model.Payment, error) {
	var payments []model.Payment
	err := r.db.WithContext(ctx).
		Where("status NOT IN ?", model.TerminalStatuses).
		Order("created_at ASC").
		Find(&payments).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list non-terminal payments: %w", err)
	}
	return payments, nil
}

// TransitionStatus is the compare-and-swap every state advance goes through:
// a single conditional UPDATE whose WHERE clause pins the expected prior
// status. RowsAffected tells the caller whether it won the transition.
func (r *paymentRepository) TransitionStatus(ctx context.Context, id uuid.UUID, from, to model.PaymentStatus, changes domainRepo.PaymentChanges) (bool, error) {
	updates := map[string]interface{}{"status": to}
	for column, value := range changes {
		updates[column] = value
	}

	res := r.db.WithContext(ctx).
		Model(&model.Payment{}).
		Where("id = ? AND status = ?", id, from).
		Updates(updates)
	if res.Error != nil {
		r.logger.Error("Status transition failed",
			zap.String("payment_id", id.String()),
			zap.String("from", string(from)),
			zap.String("to", string(to)),
			zap.Error(res.Error))
		return false, fmt.Errorf("failed to transition payment status: %w", res.Error)
	}

	if res.RowsAffected == 0 {
		// Lost the race or the payment moved on. Not an error.
		return false, nil
	}

	r.logger.Info("Payment status advanced",
		zap.String("payment_id", id.String()),
		zap.String("from", string(from)),
		zap.String("to", string(to)))
	return true, nil
}

// UpdateConfirmations only ever raises the stored count; the WHERE clause
// drops lower readings caused by indexer inconsistency.
func (r *paymentRepository) UpdateConfirmations(ctx context.Context, id uuid.UUID, count int64) error {
	err := r.db.WithContext(ctx).
		Model(&model.Payment{}).
		Where("id = ? AND confirmations < ?", id, count).
		UpdateColumn("confirmations", count).Error
	if err != nil {
		return fmt.Errorf("failed to update confirmations: %w", err)
	}
	return nil
}

func (r *paymentRepository) MarkFailed(ctx context.Context, id uuid.UUID, message string) error {
	res := r.db.WithContext(ctx).
		Model(&model.Payment{}).
		Where("id = ? AND status NOT IN ?", id, model.TerminalStatuses).
		Updates(map[string]interface{}{
			"status":        model.PaymentStatusFailed,
			"error_message": message,
		})
	if res.Error != nil {
		return fmt.Errorf("failed to mark payment failed: %w", res.Error)
	}
	if res.RowsAffected > 0 {
		r.logger.Error("Payment marked failed",
			zap.String("payment_id", id.String()),
			zap.String("reason", message))
	}
	return nil
}

func (r *paymentRepository) RecordSweepError(ctx context.Context, id uuid.UUID, message string) error {
	err := r.db.WithContext(ctx).
		Model(&model.Payment{}).
		Where("id = ?", id).
		UpdateColumn("error_message", message).Error
	if err != nil {
		return fmt.Errorf("failed to record sweep error: %w", err)
	}
	return nil
}
