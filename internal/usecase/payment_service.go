package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	domainErrors "github.com/clearsats/paymentd/internal/domain/errors"
	"github.com/clearsats/paymentd/internal/domain/gateway"
	"github.com/clearsats/paymentd/internal/domain/model"
	domainRepo "github.com/clearsats/paymentd/internal/domain/repository"
)

// Package is a purchasable credit bundle with a fixed fiat price.
type Package struct {
	ID         string
	Credits    int64
	FiatAmount decimal.Decimal
}

// PaymentPolicy is the injected business policy around payment creation.
type PaymentPolicy struct {
	Expiry                time.Duration
	FiatCurrency          string
	RequiredConfirmations int64
}

// InitiateResult is returned to the caller who created a payment.
type InitiateResult struct {
	PaymentID         uuid.UUID       `json:"payment_id"`
	Address           string          `json:"address"`
	ExpectedBTCAmount decimal.Decimal `json:"expected_btc_amount"`
	CreditsToGrant    int64           `json:"credits_to_grant"`
	ExpiresAt         time.Time       `json:"expires_at"`
}

// PaymentStatusView is the progress snapshot served to polling callers.
type PaymentStatusView struct {
	PaymentID             uuid.UUID       `json:"payment_id"`
	Status                string          `json:"status"`
	Address               string          `json:"address"`
	ExpectedBTCAmount     decimal.Decimal `json:"expected_btc_amount"`
	Confirmations         int64           `json:"confirmations"`
	ConfirmationsRequired int64           `json:"confirmations_required"`
	TxHash                *string         `json:"tx_hash,omitempty"`
	ExpiresAt             time.Time       `json:"expires_at"`
}

// PaymentService owns payment creation and the user-facing status check.
// Creation fixes the expected BTC amount from the rate oracle and stores the
// encrypted key material atomically with the address; everything after that
// is the processor's job.
type PaymentService struct {
	payments  domainRepo.PaymentRepository
	generator gateway.AddressGenerator
	vault     gateway.KeyVault
	rates     gateway.RateOracle
	processor *Processor
	packages  map[string]Package
	policy    PaymentPolicy
	logger    *zap.Logger
	now       func() time.Time
}

func NewPaymentService(
	payments domainRepo.PaymentRepository,
	generator gateway.AddressGenerator,
	vault gateway.KeyVault,
	rates gateway.RateOracle,
	processor *Processor,
	packages []Package,
	policy PaymentPolicy,
	logger *zap.Logger,
) *PaymentService {
	index := make(map[string]Package, len(packages))
	for _, pkg := range packages {
		index[pkg.ID] = pkg
	}
	return &PaymentService{
		payments:  payments,
		generator: generator,
		vault:     vault,
		rates:     rates,
		processor: processor,
		packages:  index,
		policy:    policy,
		logger:    logger,
		now:       time.Now,
	}
}

// Initiate creates a payment for the given credit package: a fresh one-time
// address, its key sealed in the vault, and the expected BTC amount fixed
// from the current exchange rate.
func (s *PaymentService) Initiate(ctx context.Context, userID uuid.UUID, packageID string) (*InitiateResult, error) {
	pkg, ok := s.packages[packageID]
	if !ok {
		return nil, domainErrors.ErrUnknownPackage
	}

	price, err := s.rates.BTCPrice(ctx, s.policy.FiatCurrency)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch exchange rate: %w", err)
	}

	btcAmount := pkg.FiatAmount.DivRound(price, 8)

	address, privateKeyWIF, err := s.generator.Generate()
	if err != nil {
		return nil, fmt.Errorf("failed to generate receiving address: %w", err)
	}

	sealed, err := s.vault.Encrypt(privateKeyWIF)
	if err != nil {
		return nil, fmt.Errorf("failed to seal private key: %w", err)
	}

	now := s.now()
	payment := &model.Payment{
		ID:                  uuid.New(),
		UserID:              userID,
		Address:             address,
		EncryptedPrivateKey: sealed,
		ExpectedBTCAmount:   btcAmount,
		ExpectedFiatAmount:  pkg.FiatAmount,
		FiatCurrency:        s.policy.FiatCurrency,
		CreditsToGrant:      pkg.Credits,
		Status:              model.PaymentStatusPending,
		CreatedAt:           now,
		ExpiresAt:           now.Add(s.policy.Expiry),
	}

	if err := s.payments.Create(ctx, payment); err != nil {
		return nil, err
	}

	s.logger.Info("Payment initiated",
		zap.String("payment_id", payment.ID.String()),
		zap.String("user_id", userID.String()),
		zap.String("package", packageID),
		zap.String("address", address),
		zap.String("expected_btc", btcAmount.String()),
		zap.Time("expires_at", payment.ExpiresAt))

	return &InitiateResult{
		PaymentID:         payment.ID,
		Address:           payment.Address,
		ExpectedBTCAmount: payment.ExpectedBTCAmount,
		CreditsToGrant:    payment.CreditsToGrant,
		ExpiresAt:         payment.ExpiresAt,
	}, nil
}

// Check runs the pipeline for the payment synchronously and returns its
// current status. A transient failure inside the pipeline is not surfaced:
// the caller gets the last persisted status and the scheduler's next tick
// makes progress regardless.
func (s *PaymentService) Check(ctx context.Context, userID, paymentID uuid.UUID) (*PaymentStatusView, error) {
	payment, err := s.payments.GetByID(ctx, paymentID)
	if err != nil {
		return nil, err
	}
	if payment.UserID != userID {
		return nil, domainErrors.ErrNotPaymentOwner
	}

	if !payment.Status.IsTerminal() {
		if err := s.processor.Process(ctx, paymentID); err != nil {
			s.logger.Warn("Check-now processing failed, returning last known status",
				zap.String("payment_id", paymentID.String()),
				zap.Error(err))
		}
		if refreshed, err := s.payments.GetByID(ctx, paymentID); err == nil {
			payment = refreshed
		}
	}

	return s.view(payment), nil
}

// List returns the user's payment history, newest first.
func (s *PaymentService) List(ctx context.Context, userID uuid.UUID, limit, offset int) ([]PaymentStatusView, error) {
	payments, err := s.payments.ListByUser(ctx, userID, limit, offset)
	if err != nil {
		return nil, err
	}

	views := make([]PaymentStatusView, 0, len(payments))
	for i := range payments {
		views = append(views, *s.view(&payments[i]))
	}
	return views, nil
}

func (s *PaymentService) view(payment *model.Payment) *PaymentStatusView {
	return &PaymentStatusView{
		PaymentID:             payment.ID,
		Status:                string(payment.Status),
		Address:               payment.Address,
		ExpectedBTCAmount:     payment.ExpectedBTCAmount,
		Confirmations:         payment.Confirmations,
		ConfirmationsRequired: s.policy.RequiredConfirmations,
		TxHash:                payment.TxHash,
		ExpiresAt:             payment.ExpiresAt,
	}
}
