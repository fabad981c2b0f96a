package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	domainErrors "github.com/clearsats/paymentd/internal/domain/errors"
	"github.com/clearsats/paymentd/internal/domain/gateway"
	"github.com/clearsats/paymentd/internal/domain/model"
	domainRepo "github.com/clearsats/paymentd/internal/domain/repository"
)

// ProcessorConfig is the injected reconciliation policy.
type ProcessorConfig struct {
	RequiredConfirmations int64
	OperatorAddress       string
	ChainQueryTimeout     time.Duration
}

// Processor drives a payment through its state machine. It is invoked from
// two independent call sites, the reconciliation scheduler and the
// user-facing check, possibly concurrently against the same payment. Every
// state advance goes through the payment repository's compare-and-swap, so
// concurrent invocations are safe: each transition is applied by exactly one
// winner and losing an expected-status check is a silent no-op.
type Processor struct {
	payments domainRepo.PaymentRepository
	credits  *CreditService
	chain    gateway.ChainObserver
	vault    gateway.KeyVault
	sweeper  gateway.Sweeper
	cfg      ProcessorConfig
	logger   *zap.Logger
	now      func() time.Time
}

func NewProcessor(
	payments domainRepo.PaymentRepository,
	credits *CreditService,
	chain gateway.ChainObserver,
	vault gateway.KeyVault,
	sweeper gateway.Sweeper,
	cfg ProcessorConfig,
	logger *zap.Logger,
) *Processor {
	return &Processor{
		payments: payments,
		credits:  credits,
		chain:    chain,
		vault:    vault,
		sweeper:  sweeper,
		cfg:      cfg,
		logger:   logger,
		now:      time.Now,
	}
}

// Process advances a single payment as far as its current on-chain situation
// allows. Safe to call repeatedly and concurrently. No lock is held across
// network I/O: the method reads state, performs the chain query or sweep,
// then attempts a narrow conditional write.
func (p *Processor) Process(ctx context.Context, id uuid.UUID) error {
	payment, err := p.payments.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if payment.Status.IsTerminal() {
		return nil
	}

	now := p.now()

	// Expiry cancels unpaid invoices only. A payment that has a transaction
	// in flight (confirming or later) stays alive past its deadline.
	if payment.Status == model.PaymentStatusPending && now.After(payment.ExpiresAt) {
		_, err := p.payments.TransitionStatus(ctx, id,
			model.PaymentStatusPending, model.PaymentStatusExpired,
			domainRepo.PaymentChanges{"completed_at": now})
		return err
	}

	if payment.Status == model.PaymentStatusPending || payment.Status == model.PaymentStatusConfirming {
		advanced, err := p.observeChain(ctx, payment)
		if err != nil {
			return err
		}
		if !advanced {
			return nil
		}
	}

	if payment.Status == model.PaymentStatusConfirmed {
		won, err := p.applyCredit(ctx, payment)
		if err != nil {
			return err
		}
		if !won {
			// Another invocation credited this payment; it will also sweep.
			return nil
		}
	}

	if payment.Status == model.PaymentStatusCredited {
		return p.sweep(ctx, payment)
	}

	return nil
}

// observeChain queries the indexer and applies the pending→confirming and
// confirming→confirmed transitions. Returns false when the payment cannot
// move past the chain-watch stage yet.
func (p *Processor) observeChain(ctx context.Context, payment *model.Payment) (bool, error) {
	queryCtx, cancel := context.WithTimeout(ctx, p.cfg.ChainQueryTimeout)
	defer cancel()

	obs, err := p.chain.ObserveAddress(queryCtx, payment.Address)
	if err != nil {
		// Transient by definition: no state change, retried next tick.
		return false, fmt.Errorf("chain query for payment %s: %w", payment.ID, err)
	}

	if !obs.Found {
		return false, nil
	}

	if payment.Status == model.PaymentStatusPending {
		_, err := p.payments.TransitionStatus(ctx, payment.ID,
			model.PaymentStatusPending, model.PaymentStatusConfirming,
			domainRepo.PaymentChanges{"tx_hash": obs.TxHash})
		if err != nil {
			return false, err
		}
		// Harmless if a concurrent caller won: the transition is idempotent.
		payment.Status = model.PaymentStatusConfirming
		payment.TxHash = &obs.TxHash
	}

	if obs.Confirmations > payment.Confirmations {
		if err := p.payments.UpdateConfirmations(ctx, payment.ID, obs.Confirmations); err != nil {
			return false, err
		}
		payment.Confirmations = obs.Confirmations
	}

	if payment.Status == model.PaymentStatusConfirming && payment.Confirmations >= p.cfg.RequiredConfirmations {
		won, err := p.payments.TransitionStatus(ctx, payment.ID,
			model.PaymentStatusConfirming, model.PaymentStatusConfirmed,
			domainRepo.PaymentChanges{"confirmed_at": p.now()})
		if err != nil {
			return false, err
		}
		if won {
			payment.Status = model.PaymentStatusConfirmed
		}
	}

	return payment.Status == model.PaymentStatusConfirmed, nil
}

// applyCredit performs the race-critical step. The confirmed→credited
// compare-and-swap is the sole permission to touch the user's balance: only
// the invocation that wins it calls the credit ledger, so two concurrent
// pipelines can never double-credit. The ledger call itself is also
// idempotent on the payment id.
func (p *Processor) applyCredit(ctx context.Context, payment *model.Payment) (bool, error) {
	now := p.now()
	won, err := p.payments.TransitionStatus(ctx, payment.ID,
		model.PaymentStatusConfirmed, model.PaymentStatusCredited,
		domainRepo.PaymentChanges{"credited_at": now})
	if err != nil {
		return false, err
	}
	if !won {
		return false, nil
	}

	if _, err := p.credits.ApplyForPayment(ctx, payment.UserID, payment.CreditsToGrant, payment.ID); err != nil {
		// The CAS already advanced the status; the ledger write itself
		// failing is unrecoverable without investigation.
		if markErr := p.payments.MarkFailed(ctx, payment.ID, fmt.Sprintf("credit ledger: %v", err)); markErr != nil {
			p.logger.Error("Failed to mark payment failed after credit error",
				zap.String("payment_id", payment.ID.String()),
				zap.Error(markErr))
		}
		return false, err
	}

	payment.Status = model.PaymentStatusCredited
	credited := now
	payment.CreditedAt = &credited
	return true, nil
}

// sweep forwards the received funds to the operator wallet. The user has
// already been credited, so nothing here is allowed to fail the payment:
// every sweep error leaves the status at credited for the next tick to retry
// (or for the operator, when funds cannot cover the fee).
func (p *Processor) sweep(ctx context.Context, payment *model.Payment) error {
	privateKey, err := p.vault.Decrypt(payment.EncryptedPrivateKey)
	if err != nil {
		msg := fmt.Sprintf("key vault: %v", err)
		if markErr := p.payments.MarkFailed(ctx, payment.ID, msg); markErr != nil {
			p.logger.Error("Failed to mark payment failed",
				zap.String("payment_id", payment.ID.String()),
				zap.Error(markErr))
		}
		return fmt.Errorf("decrypt key for payment %s: %w", payment.ID, err)
	}

	txHash, err := p.sweeper.Sweep(ctx, privateKey, payment.Address, p.cfg.OperatorAddress)
	if err != nil {
		switch {
		case domainErrors.IsInsufficientFunds(err):
			p.logger.Error("Sweep cannot cover network fee, operator attention required",
				zap.String("payment_id", payment.ID.String()),
				zap.String("address", payment.Address),
				zap.Error(err))
		case domainErrors.IsBroadcastRejected(err):
			p.logger.Error("Sweep broadcast rejected",
				zap.String("payment_id", payment.ID.String()),
				zap.Error(err))
		default:
			p.logger.Warn("Transient sweep failure, will retry",
				zap.String("payment_id", payment.ID.String()),
				zap.Error(err))
		}
		if recErr := p.payments.RecordSweepError(ctx, payment.ID, err.Error()); recErr != nil {
			p.logger.Error("Failed to record sweep error",
				zap.String("payment_id", payment.ID.String()),
				zap.Error(recErr))
		}
		return nil
	}

	_, err = p.payments.TransitionStatus(ctx, payment.ID,
		model.PaymentStatusCredited, model.PaymentStatusForwarded,
		domainRepo.PaymentChanges{
			"forwarding_tx_hash": txHash,
			"completed_at":       p.now(),
		})
	return err
}
