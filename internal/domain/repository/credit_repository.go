package repository

import (
	"context"

	"github.com/google/uuid"

	"github.com/clearsats/paymentd/internal/domain/model"
)

// CreditRepository mutates user balances. The increment is expressed as an
// atomic addition inside a database transaction, never as read-modify-write
// in application code.
type CreditRepository interface {
	// Apply adds `amount` credits to the user's balance exactly once per
	// referenceID. A repeated call with the same referenceID returns the
	// already-recorded transaction and leaves the balance untouched.
	Apply(ctx context.Context, userID uuid.UUID, amount int64, referenceID uuid.UUID, description string) (*model.UserCreditBalance, *model.CreditTransaction, error)

	GetBalance(ctx context.Context, userID uuid.UUID) (*model.UserCreditBalance, error)
	ListTransactions(ctx context.Context, userID uuid.UUID, limit, offset int) ([]model.CreditTransaction, error)
}
