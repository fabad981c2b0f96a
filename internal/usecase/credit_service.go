package usecase

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/clearsats/paymentd/internal/domain/model"
	domainRepo "github.com/clearsats/paymentd/internal/domain/repository"
)

// CreditService handles credit-related business logic
type CreditService struct {
	creditRepo domainRepo.CreditRepository
	logger     *zap.Logger
}

// NewCreditService creates a new credit service instance
func NewCreditService(creditRepo domainRepo.CreditRepository, logger *zap.Logger) *CreditService {
	return &CreditService{
		creditRepo: creditRepo,
		logger:     logger,
	}
}

// ApplyForPayment adds the payment's credits to the user's balance. The
// payment id doubles as the idempotency key, so a replay of the same payment
// increments the balance once no matter how often it is called. Returns the
// balance after application.
func (s *CreditService) ApplyForPayment(ctx context.Context, userID uuid.UUID, credits int64, paymentID uuid.UUID) (int64, error) {
	description := fmt.Sprintf("Credit allocation for payment %s", paymentID)

	balance, transaction, err := s.creditRepo.Apply(ctx, userID, credits, paymentID, description)
	if err != nil {
		s.logger.Error("Credit application failed",
			zap.String("user_id", userID.String()),
			zap.String("payment_id", paymentID.String()),
			zap.Int64("credits", credits),
			zap.Error(err))
		return 0, fmt.Errorf("failed to apply credits: %w", err)
	}

	s.logger.Info("Credits allocated for payment",
		zap.String("user_id", userID.String()),
		zap.String("payment_id", paymentID.String()),
		zap.Int64("credits", credits),
		zap.Int64("balance_after", balance.Credits),
		zap.Int64("transaction_id", transaction.ID))

	return balance.Credits, nil
}

// GetBalance retrieves the current credit balance for a user
func (s *CreditService) GetBalance(ctx context.Context, userID uuid.UUID) (*model.UserCreditBalance, error) {
	balance, err := s.creditRepo.GetBalance(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get balance: %w", err)
	}
	return balance, nil
}

// ListTransactions returns the user's credit journal, newest first.
func (s *CreditService) ListTransactions(ctx context.Context, userID uuid.UUID, limit, offset int) ([]model.CreditTransaction, error) {
	transactions, err := s.creditRepo.ListTransactions(ctx, userID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list transactions: %w", err)
	}
	return transactions, nil
}
