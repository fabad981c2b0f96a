package errors

import "errors"

var (
	// ErrPaymentNotFound is returned when no payment exists for the id.
	ErrPaymentNotFound = errors.New("payment not found")

	// ErrNotPaymentOwner is returned when a caller asks about a payment
	// belonging to a different user.
	ErrNotPaymentOwner = errors.New("payment belongs to another user")

	// ErrUnknownPackage is returned when initiation names a credit package
	// that is not configured.
	ErrUnknownPackage = errors.New("unknown credit package")
)
