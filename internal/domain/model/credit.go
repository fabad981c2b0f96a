package model

import (
	"database/sql/driver"
	"time"

	"github.com/google/uuid"
)

// CreditTransactionType represents the type of credit transaction
type CreditTransactionType string

const (
	CreditTransactionTypeAllocation CreditTransactionType = "allocation"
	CreditTransactionTypeUsage      CreditTransactionType = "usage"
	CreditTransactionTypeAdjustment CreditTransactionType = "adjustment"
)

// Scan implements sql.Scanner interface
func (t *CreditTransactionType) Scan(src interface{}) error {
	switch v := src.(type) {
	case string:
		*t = CreditTransactionType(v)
	case []byte:
		*t = CreditTransactionType(v)
	}
	return nil
}

// Value implements driver.Valuer interface
func (t CreditTransactionType) Value() (driver.Value, error) {
	return string(t), nil
}

// CreditTransaction is the append-only journal entry behind every balance
// change. ReferenceID carries the idempotency key (the payment id for
// allocations); its unique index is what makes Apply exactly-once.
type CreditTransaction struct {
	ID              int64                 `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID          uuid.UUID             `gorm:"type:uuid;not null;index:idx_credit_transactions_user_created" json:"user_id"`
	TransactionType CreditTransactionType `gorm:"type:credit_transaction_type;not null" json:"transaction_type"`
	Amount          int64                 `gorm:"not null" json:"amount"`
	BalanceAfter    int64                 `gorm:"not null" json:"balance_after"`
	Description     string                `gorm:"not null" json:"description"`
	ReferenceID     *uuid.UUID            `gorm:"type:uuid;unique" json:"reference_id,omitempty"`
	CreatedAt       time.Time             `gorm:"default:now();index:idx_credit_transactions_user_created" json:"created_at"`
}

// TableName specifies the table name for GORM
func (CreditTransaction) TableName() string {
	return "credit_transactions"
}

// UserCreditBalance represents the current credit balance for a user
type UserCreditBalance struct {
	UserID            uuid.UUID `gorm:"type:uuid;primaryKey" json:"user_id"`
	Credits           int64     `gorm:"not null;default:0" json:"credits"`
	LastTransactionAt time.Time `json:"last_transaction_at"`
}

// TableName specifies the table name for GORM
func (UserCreditBalance) TableName() string {
	return "user_credit_balances"
}
