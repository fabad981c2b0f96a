package database

import (
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/clearsats/paymentd/internal/adapter/repository"
	domainRepo "github.com/clearsats/paymentd/internal/domain/repository"
)

// Repositories bundles the gorm-backed repository implementations.
type Repositories struct {
	Payment domainRepo.PaymentRepository
	Credit  domainRepo.CreditRepository
}

// NewRepositories creates all repository instances
func NewRepositories(db *gorm.DB, logger *zap.Logger) *Repositories {
	return &Repositories{
		Payment: repository.NewPaymentRepository(db, logger),
		Credit:  repository.NewCreditRepository(db, logger),
	}
}
