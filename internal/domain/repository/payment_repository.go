package repository

import (
	"context"

	"github.com/google/uuid"

	"github.com/clearsats/paymentd/internal/domain/model"
)

// PaymentChanges carries the column updates applied together with a status
// transition. Keys are column names.
type PaymentChanges map[string]interface{}

// PaymentRepository is the durable store of payment records. Status only ever
// moves through TransitionStatus so every advance is a conditional write.
type PaymentRepository interface {
	Create(ctx context.Context, payment *model.Payment) error
	GetByID(ctx context.Context, id uuid.UUID) (*model.Payment, error)
	GetByAddress(ctx context.Context, address string) (*model.Payment, error)
	ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]model.Payment, error)

	// ListNonTerminal returns every payment the reconciliation loop still
	// needs to drive, oldest first.
	ListNonTerminal(ctx context.Context) ([]model.Payment, error)

	// TransitionStatus performs a compare-and-swap: the row is updated to
	// status `to` together with `changes` only if its stored status is
	// exactly `from`. Returns false when the row was not in `from`, which
	// is how a concurrent invocation that lost the race finds out.
	TransitionStatus(ctx context.Context, id uuid.UUID, from, to model.PaymentStatus, changes PaymentChanges) (bool, error)

	// UpdateConfirmations raises the stored confirmation count to `count`.
	// A lower reading is ignored so indexer inconsistencies can never make
	// the count regress.
	UpdateConfirmations(ctx context.Context, id uuid.UUID, count int64) error

	// MarkFailed moves any non-terminal payment to failed with the given
	// message. Terminal rows are left untouched.
	MarkFailed(ctx context.Context, id uuid.UUID, message string) error

	// RecordSweepError stores the error from a failed sweep attempt without
	// touching status; the payment stays credited and is retried.
	RecordSweepError(ctx context.Context, id uuid.UUID, message string) error
}
