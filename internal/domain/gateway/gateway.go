package gateway

import (
	"context"

	"github.com/shopspring/decimal"
)

// AddressObservation is the result of asking the blockchain indexer about a
// receiving address. Found=false with a nil error means the address simply
// has no transactions yet; indexer/network failures are returned as errors
// and must not advance any payment state.
type AddressObservation struct {
	Found         bool
	TxHash        string
	Confirmations int64
	ReceivedSats  int64
}

// ChainObserver queries an external blockchain indexer.
type ChainObserver interface {
	ObserveAddress(ctx context.Context, address string) (*AddressObservation, error)
}

// KeyVault encrypts and decrypts per-payment private keys with a server-held
// secret. Plaintext keys exist only within the calling stack.
type KeyVault interface {
	Encrypt(plaintext string) (string, error)
	Decrypt(ciphertext string) (string, error)
}

// AddressGenerator derives a fresh single-use keypair and receiving address.
type AddressGenerator interface {
	Generate() (address string, privateKeyWIF string, err error)
}

// Sweeper moves the confirmed balance of a one-time address to the operator
// wallet, net of network fee. Failure kinds are distinguished through the
// typed errors in domain/errors.
type Sweeper interface {
	Sweep(ctx context.Context, privateKeyWIF, fromAddress, toAddress string) (txHash string, err error)
}

// RateOracle returns the current fiat price of one BTC. Used only at payment
// creation to fix the expected amount.
type RateOracle interface {
	BTCPrice(ctx context.Context, currency string) (decimal.Decimal, error)
}
