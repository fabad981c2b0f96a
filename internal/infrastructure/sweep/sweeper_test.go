package sweep

import (
	"bytes"
	"context"
	"encoding/hex"
	"testing"

	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/wire"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	domainErrors "github.com/clearsats/paymentd/internal/domain/errors"
	"github.com/clearsats/paymentd/internal/infrastructure/chain"
	"github.com/clearsats/paymentd/internal/infrastructure/wallet"
)

type fakeBackend struct {
	utxos        []chain.UTXO
	utxoErr      error
	broadcastErr error
	broadcastRaw string
}

func (f *fakeBackend) ListUTXOs(ctx context.Context, address string) ([]chain.UTXO, error) {
	return f.utxos, f.utxoErr
}

func (f *fakeBackend) BroadcastTx(ctx context.Context, rawTxHex string) (string, error) {
	if f.broadcastErr != nil {
		return "", f.broadcastErr
	}
	f.broadcastRaw = rawTxHex
	return "sweep-tx-hash", nil
}

const utxoTxID = "5df6e0e2761359d30a8275058e299fcc0381534545f55cf43e41983f5d4c9456"

func TestSweeper_EstimateFee(t *testing.T) {
	s := NewSweeper(&fakeBackend{}, &chaincfg.RegressionNetParams, 10, zap.NewNop())

	// 11 + 68 + 31 = 110 vbytes at 10 sat/vB
	assert.Equal(t, int64(1100), s.EstimateFee(1))
	assert.Equal(t, int64(1780), s.EstimateFee(2))
}

func TestSweeper_Sweep(t *testing.T) {
	params := &chaincfg.RegressionNetParams
	gen := wallet.NewGenerator(params)

	fromAddr, wif, err := gen.Generate()
	require.NoError(t, err)
	operatorAddr, _, err := gen.Generate()
	require.NoError(t, err)

	t.Run("builds, signs and broadcasts", func(t *testing.T) {
		backend := &fakeBackend{
			utxos: []chain.UTXO{
				{TxID: utxoTxID, Vout: 0, Value: 150000},
			},
		}
		s := NewSweeper(backend, params, 10, zap.NewNop())

		txHash, err := s.Sweep(context.Background(), wif, fromAddr, operatorAddr)
		require.NoError(t, err)
		assert.Equal(t, "sweep-tx-hash", txHash)

		// The broadcast payload must be a decodable transaction spending
		// the utxo with a witness and paying total minus fee.
		raw, err := hex.DecodeString(backend.broadcastRaw)
		require.NoError(t, err)

		var tx wire.MsgTx
		require.NoError(t, tx.Deserialize(bytes.NewReader(raw)))
		require.Len(t, tx.TxIn, 1)
		require.Len(t, tx.TxOut, 1)
		assert.NotEmpty(t, tx.TxIn[0].Witness)
		assert.Equal(t, int64(150000-1100), tx.TxOut[0].Value)
	})

	t.Run("no utxos means insufficient funds", func(t *testing.T) {
		s := NewSweeper(&fakeBackend{}, params, 10, zap.NewNop())

		_, err := s.Sweep(context.Background(), wif, fromAddr, operatorAddr)
		require.Error(t, err)
		assert.True(t, domainErrors.IsInsufficientFunds(err))
	})

	t.Run("balance below fee is insufficient funds", func(t *testing.T) {
		backend := &fakeBackend{
			utxos: []chain.UTXO{{TxID: utxoTxID, Vout: 0, Value: 900}},
		}
		s := NewSweeper(backend, params, 10, zap.NewNop())

		_, err := s.Sweep(context.Background(), wif, fromAddr, operatorAddr)
		require.Error(t, err)

		var insufficient *domainErrors.InsufficientFundsError
		require.ErrorAs(t, err, &insufficient)
		assert.Equal(t, int64(900), insufficient.AvailableSats)
		assert.Equal(t, int64(1100), insufficient.FeeSats)
	})

	t.Run("broadcast rejection propagates typed", func(t *testing.T) {
		backend := &fakeBackend{
			utxos:        []chain.UTXO{{TxID: utxoTxID, Vout: 0, Value: 150000}},
			broadcastErr: &domainErrors.BroadcastRejectedError{Reason: "txn-mempool-conflict"},
		}
		s := NewSweeper(backend, params, 10, zap.NewNop())

		_, err := s.Sweep(context.Background(), wif, fromAddr, operatorAddr)
		require.Error(t, err)
		assert.True(t, domainErrors.IsBroadcastRejected(err))
	})

	t.Run("garbage private key", func(t *testing.T) {
		s := NewSweeper(&fakeBackend{}, params, 10, zap.NewNop())
		_, err := s.Sweep(context.Background(), "not-a-wif", fromAddr, operatorAddr)
		assert.Error(t, err)
	})
}
