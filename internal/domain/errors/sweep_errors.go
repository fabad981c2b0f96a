package errors

import (
	"errors"
	"fmt"
)

// InsufficientFundsError is returned when the received balance cannot cover
// the network fee of the sweep transaction. The payment stays credited and
// needs operator follow-up.
type InsufficientFundsError struct {
	AvailableSats int64
	FeeSats       int64
}

func (e *InsufficientFundsError) Error() string {
	return fmt.Sprintf("insufficient funds to sweep: available %d sats, fee %d sats", e.AvailableSats, e.FeeSats)
}

// NewInsufficientFundsError creates a new InsufficientFundsError
func NewInsufficientFundsError(available, fee int64) *InsufficientFundsError {
	return &InsufficientFundsError{
		AvailableSats: available,
		FeeSats:       fee,
	}
}

// BroadcastRejectedError is returned when the indexer accepted the request
// but rejected the transaction itself (bad fee, non-standard script, double
// spend). Retrying without changing the transaction will not help.
type BroadcastRejectedError struct {
	Reason string
}

func (e *BroadcastRejectedError) Error() string {
	return fmt.Sprintf("transaction broadcast rejected: %s", e.Reason)
}

// IsInsufficientFunds reports whether err is an InsufficientFundsError.
func IsInsufficientFunds(err error) bool {
	var target *InsufficientFundsError
	return errors.As(err, &target)
}

// IsBroadcastRejected reports whether err is a BroadcastRejectedError.
func IsBroadcastRejected(err error) bool {
	var target *BroadcastRejectedError
	return errors.As(err, &target)
}
