package usecase

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	domainRepo "github.com/clearsats/paymentd/internal/domain/repository"
)

// Scheduler runs the reconciliation loop: every interval it lists all
// non-terminal payments and drives each through the processor. Payments are
// processed independently and in parallel; a single payment's failure (or
// panic) never blocks the rest of the queue or stops the loop.
type Scheduler struct {
	interval  time.Duration
	payments  domainRepo.PaymentRepository
	processor *Processor
	logger    *zap.Logger

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewScheduler(interval time.Duration, payments domainRepo.PaymentRepository, processor *Processor, logger *zap.Logger) *Scheduler {
	return &Scheduler{
		interval:  interval,
		payments:  payments,
		processor: processor,
		logger:    logger,
	}
}

// Start launches the loop in the background. Stop waits for the in-flight
// tick before returning.
func (s *Scheduler) Start(ctx context.Context) {
	ctx, s.cancel = context.WithCancel(ctx)
	s.wg.Add(1)
	go s.run(ctx)
	s.logger.Info("Reconciliation scheduler started", zap.Duration("interval", s.interval))
}

func (s *Scheduler) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
	s.logger.Info("Reconciliation scheduler stopped")
}

func (s *Scheduler) run(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Tick(ctx)
		}
	}
}

// Tick reconciles every non-terminal payment once. Exported so the check-now
// path and tests can trigger a pass without waiting for the ticker.
func (s *Scheduler) Tick(ctx context.Context) {
	payments, err := s.payments.ListNonTerminal(ctx)
	if err != nil {
		s.logger.Error("Failed to list payments for reconciliation", zap.Error(err))
		return
	}
	if len(payments) == 0 {
		return
	}

	s.logger.Debug("Reconciliation tick", zap.Int("payments", len(payments)))

	var wg sync.WaitGroup
	for _, payment := range payments {
		wg.Add(1)
		go func(id uuid.UUID) {
			defer wg.Done()
			defer func() {
				if r := recover(); r != nil {
					s.logger.Error("Panic while processing payment",
						zap.String("payment_id", id.String()),
						zap.Any("panic", r))
				}
			}()
			if err := s.processor.Process(ctx, id); err != nil {
				s.logger.Error("Payment reconciliation failed",
					zap.String("payment_id", id.String()),
					zap.Error(err))
			}
		}(payment.ID)
	}
	wg.Wait()
}
