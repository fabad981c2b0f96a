package usecase_test

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"

	domainErrors "github.com/clearsats/paymentd/internal/domain/errors"
	"github.com/clearsats/paymentd/internal/domain/gateway"
	"github.com/clearsats/paymentd/internal/domain/model"
	domainRepo "github.com/clearsats/paymentd/internal/domain/repository"
)

// fakePaymentRepo is an in-memory payment store with the same conditional
// update semantics as the gorm implementation. The mutex makes each
// TransitionStatus a genuine compare-and-swap, which is what the concurrency
// tests depend on.
type fakePaymentRepo struct {
	mu       sync.Mutex
	payments map[uuid.UUID]*model.Payment
}

func newFakePaymentRepo(payments ...*model.Payment) *fakePaymentRepo {
	repo := &fakePaymentRepo{payments: make(map[uuid.UUID]*model.Payment)}
	for _, p := range payments {
		clone := *p
		repo.payments[p.ID] = &clone
	}
	return repo
}

func (r *fakePaymentRepo) Create(ctx context.Context, payment *model.Payment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	clone := *payment
	r.payments[payment.ID] = &clone
	return nil
}

func (r *fakePaymentRepo) GetByID(ctx context.Context, id uuid.UUID) (*model.Payment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	payment, ok := r.payments[id]
	if !ok {
		return nil, domainErrors.ErrPaymentNotFound
	}
	clone := *payment
	return &clone, nil
}

func (r *fakePaymentRepo) GetByAddress(ctx context.Context, address string) (*model.Payment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, payment := range r.payments {
		if payment.Address == address {
			clone := *payment
			return &clone, nil
		}
	}
	return nil, domainErrors.ErrPaymentNotFound
}

func (r *fakePaymentRepo) ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]model.Payment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.Payment
	for _, payment := range r.payments {
		if payment.UserID == userID {
			out = append(out, *payment)
		}
	}
	return out, nil
}

func (r *fakePaymentRepo) ListNonTerminal(ctx context.Context) ([]model.Payment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.Payment
	for _, payment := range r.payments {
		if !payment.Status.IsTerminal() {
			out = append(out, *payment)
		}
	}
	return out, nil
}

func (r *fakePaymentRepo) TransitionStatus(ctx context.Context, id uuid.UUID, from, to model.PaymentStatus, changes domainRepo.PaymentChanges) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	payment, ok := r.payments[id]
	if !ok || payment.Status != from {
		return false, nil
	}
	payment.Status = to
	applyChanges(payment, changes)
	return true, nil
}

func (r *fakePaymentRepo) UpdateConfirmations(ctx context.Context, id uuid.UUID, count int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if payment, ok := r.payments[id]; ok && payment.Confirmations < count {
		payment.Confirmations = count
	}
	return nil
}

func (r *fakePaymentRepo) MarkFailed(ctx context.Context, id uuid.UUID, message string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if payment, ok := r.payments[id]; ok && !payment.Status.IsTerminal() {
		payment.Status = model.PaymentStatusFailed
		payment.ErrorMessage = &message
	}
	return nil
}

func (r *fakePaymentRepo) RecordSweepError(ctx context.Context, id uuid.UUID, message string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if payment, ok := r.payments[id]; ok {
		payment.ErrorMessage = &message
	}
	return nil
}

func applyChanges(payment *model.Payment, changes domainRepo.PaymentChanges) {
	for column, value := range changes {
		switch column {
		case "tx_hash":
			s := value.(string)
			payment.TxHash = &s
		case "forwarding_tx_hash":
			s := value.(string)
			payment.ForwardingTxHash = &s
		case "confirmed_at":
			t := value.(time.Time)
			payment.ConfirmedAt = &t
		case "credited_at":
			t := value.(time.Time)
			payment.CreditedAt = &t
		case "completed_at":
			t := value.(time.Time)
			payment.CompletedAt = &t
		case "error_message":
			s := value.(string)
			payment.ErrorMessage = &s
		}
	}
}

// fakeCreditRepo applies credits idempotently per reference id and counts
// how many applications actually hit the balance.
type fakeCreditRepo struct {
	mu           sync.Mutex
	balances     map[uuid.UUID]int64
	applied      map[uuid.UUID]*model.CreditTransaction
	applications int
}

func newFakeCreditRepo() *fakeCreditRepo {
	return &fakeCreditRepo{
		balances: make(map[uuid.UUID]int64),
		applied:  make(map[uuid.UUID]*model.CreditTransaction),
	}
}

func (r *fakeCreditRepo) Apply(ctx context.Context, userID uuid.UUID, amount int64, referenceID uuid.UUID, description string) (*model.UserCreditBalance, *model.CreditTransaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.applied[referenceID]; ok {
		return &model.UserCreditBalance{UserID: userID, Credits: r.balances[userID]}, existing, nil
	}
	r.applications++
	r.balances[userID] += amount
	ref := referenceID
	tx := &model.CreditTransaction{
		ID:              int64(r.applications),
		UserID:          userID,
		TransactionType: model.CreditTransactionTypeAllocation,
		Amount:          amount,
		BalanceAfter:    r.balances[userID],
		Description:     description,
		ReferenceID:     &ref,
		CreatedAt:       time.Now(),
	}
	r.applied[referenceID] = tx
	return &model.UserCreditBalance{UserID: userID, Credits: r.balances[userID]}, tx, nil
}

func (r *fakeCreditRepo) GetBalance(ctx context.Context, userID uuid.UUID) (*model.UserCreditBalance, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return &model.UserCreditBalance{UserID: userID, Credits: r.balances[userID]}, nil
}

func (r *fakeCreditRepo) ListTransactions(ctx context.Context, userID uuid.UUID, limit, offset int) ([]model.CreditTransaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.CreditTransaction
	for _, tx := range r.applied {
		if tx.UserID == userID {
			out = append(out, *tx)
		}
	}
	return out, nil
}

func (r *fakeCreditRepo) applicationCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.applications
}

// MockChainObserver is a mock implementation of gateway.ChainObserver
type MockChainObserver struct {
	mock.Mock
}

func (m *MockChainObserver) ObserveAddress(ctx context.Context, address string) (*gateway.AddressObservation, error) {
	args := m.Called(ctx, address)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*gateway.AddressObservation), args.Error(1)
}

// MockKeyVault is a mock implementation of gateway.KeyVault
type MockKeyVault struct {
	mock.Mock
}

func (m *MockKeyVault) Encrypt(plaintext string) (string, error) {
	args := m.Called(plaintext)
	return args.String(0), args.Error(1)
}

func (m *MockKeyVault) Decrypt(ciphertext string) (string, error) {
	args := m.Called(ciphertext)
	return args.String(0), args.Error(1)
}

// MockSweeper is a mock implementation of gateway.Sweeper
type MockSweeper struct {
	mock.Mock
}

func (m *MockSweeper) Sweep(ctx context.Context, privateKeyWIF, fromAddress, toAddress string) (string, error) {
	args := m.Called(ctx, privateKeyWIF, fromAddress, toAddress)
	return args.String(0), args.Error(1)
}

// MockAddressGenerator is a mock implementation of gateway.AddressGenerator
type MockAddressGenerator struct {
	mock.Mock
}

func (m *MockAddressGenerator) Generate() (string, string, error) {
	args := m.Called()
	return args.String(0), args.String(1), args.Error(2)
}

// MockRateOracle is a mock implementation of gateway.RateOracle
type MockRateOracle struct {
	mock.Mock
}

func (m *MockRateOracle) BTCPrice(ctx context.Context, currency string) (decimal.Decimal, error) {
	args := m.Called(ctx, currency)
	return args.Get(0).(decimal.Decimal), args.Error(1)
}
