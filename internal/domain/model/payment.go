package model

import (
	"database/sql/driver"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PaymentStatus represents the lifecycle state of a payment
type PaymentStatus string

const (
	PaymentStatusPending    PaymentStatus = "pending"
	PaymentStatusConfirming PaymentStatus = "confirming"
	PaymentStatusConfirmed  PaymentStatus = "confirmed"
	PaymentStatusCredited   PaymentStatus = "credited"
	PaymentStatusForwarded  PaymentStatus = "forwarded"
	PaymentStatusExpired    PaymentStatus = "expired"
	PaymentStatusFailed     PaymentStatus = "failed"
)

// Scan implements sql.Scanner interface
func (s *PaymentStatus) Scan(src interface{}) error {
	switch v := src.(type) {
	case string:
		*s = PaymentStatus(v)
	case []byte:
		*s = PaymentStatus(v)
	default:
		*s = PaymentStatusPending
	}
	return nil
}

// Value implements driver.Valuer interface
func (s PaymentStatus) Value() (driver.Value, error) {
	return string(s), nil
}

// IsTerminal reports whether no further transition is possible from s.
func (s PaymentStatus) IsTerminal() bool {
	switch s {
	case PaymentStatusForwarded, PaymentStatusExpired, PaymentStatusFailed:
		return true
	}
	return false
}

// TerminalStatuses lists the statuses the reconciliation loop skips.
var TerminalStatuses = []PaymentStatus{
	PaymentStatusForwarded,
	PaymentStatusExpired,
	PaymentStatusFailed,
}

// Payment represents a single payment attempt against a one-time address.
// Rows are never deleted; terminal payments form the audit trail.
type Payment struct {
	ID                  uuid.UUID       `gorm:"type:uuid;primaryKey" json:"id"`
	UserID              uuid.UUID       `gorm:"type:uuid;not null;index" json:"user_id"`
	Address             string          `gorm:"uniqueIndex;size:100;not null" json:"address"`
	EncryptedPrivateKey string          `gorm:"not null" json:"-"`
	ExpectedBTCAmount   decimal.Decimal `gorm:"type:decimal(16,8);not null" json:"expected_btc_amount"`
	ExpectedFiatAmount  decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"expected_fiat_amount"`
	FiatCurrency        string          `gorm:"size:3;not null" json:"fiat_currency"`
	CreditsToGrant      int64           `gorm:"not null" json:"credits_to_grant"`
	Status              PaymentStatus   `gorm:"type:payment_status;not null;index" json:"status"`
	Confirmations       int64           `gorm:"not null;default:0" json:"confirmations"`
	TxHash              *string         `gorm:"size:100" json:"tx_hash,omitempty"`
	ForwardingTxHash    *string         `gorm:"size:100" json:"forwarding_tx_hash,omitempty"`
	ErrorMessage        *string         `json:"error_message,omitempty"`
	CreatedAt           time.Time       `gorm:"default:now()" json:"created_at"`
	ExpiresAt           time.Time       `gorm:"not null" json:"expires_at"`
	ConfirmedAt         *time.Time      `json:"confirmed_at,omitempty"`
	CreditedAt          *time.Time      `json:"credited_at,omitempty"`
	CompletedAt         *time.Time      `json:"completed_at,omitempty"`
	UpdatedAt           time.Time       `gorm:"default:now()" json:"updated_at"`
}

// TableName specifies the table name for GORM
func (Payment) TableName() string {
	return "payments"
}
