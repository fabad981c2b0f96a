package sweep

import (
	"bytes"
	"context"
	"encoding/hex"
	"fmt"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
	"go.uber.org/zap"

	domainErrors "github.com/clearsats/paymentd/internal/domain/errors"
	"github.com/clearsats/paymentd/internal/infrastructure/chain"
)

// ChainBackend is the slice of the indexer client the sweeper needs.
type ChainBackend interface {
	ListUTXOs(ctx context.Context, address string) ([]chain.UTXO, error)
	BroadcastTx(ctx context.Context, rawTxHex string) (string, error)
}

// Sweeper drains the full balance of a one-time receiving address into the
// operator wallet with a single P2WPKH transaction, net of network fee.
type Sweeper struct {
	backend   ChainBackend
	params    *chaincfg.Params
	feeRateVB int64
	logger    *zap.Logger
}

// Weight units per P2WPKH input/output, rounded up to whole vbytes.
const (
	txOverheadVBytes = 11
	inputVBytes      = 68
	outputVBytes     = 31
)

func NewSweeper(backend ChainBackend, params *chaincfg.Params, feeRateSatPerVB int64, logger *zap.Logger) *Sweeper {
	return &Sweeper{
		backend:   backend,
		params:    params,
		feeRateVB: feeRateSatPerVB,
		logger:    logger,
	}
}

// EstimateFee returns the fee in satoshis for a sweep spending `inputs`
// UTXOs into one output.
func (s *Sweeper) EstimateFee(inputs int) int64 {
	vsize := int64(txOverheadVBytes + inputs*inputVBytes + outputVBytes)
	return vsize * s.feeRateVB
}

// Sweep implements gateway.Sweeper.
func (s *Sweeper) Sweep(ctx context.Context, privateKeyWIF, fromAddress, toAddress string) (string, error) {
	wif, err := btcutil.DecodeWIF(privateKeyWIF)
	if err != nil {
		return "", fmt.Errorf("failed to decode private key: %w", err)
	}

	utxos, err := s.backend.ListUTXOs(ctx, fromAddress)
	if err != nil {
		return "", fmt.Errorf("failed to list utxos for %s: %w", fromAddress, err)
	}

	var total int64
	for _, u := range utxos {
		total += u.Value
	}

	fee := s.EstimateFee(len(utxos))
	if len(utxos) == 0 || total <= fee {
		return "", domainErrors.NewInsufficientFundsError(total, fee)
	}

	fromScript, err := payToAddrScript(fromAddress, s.params)
	if err != nil {
		return "", err
	}
	toScript, err := payToAddrScript(toAddress, s.params)
	if err != nil {
		return "", err
	}

	tx := wire.NewMsgTx(wire.TxVersion)
	fetcher := txscript.NewMultiPrevOutFetcher(nil)

	for _, u := range utxos {
		hash, err := chainhash.NewHashFromStr(u.TxID)
		if err != nil {
			return "", fmt.Errorf("bad utxo txid %s: %w", u.TxID, err)
		}
		outpoint := wire.NewOutPoint(hash, u.Vout)
		tx.AddTxIn(wire.NewTxIn(outpoint, nil, nil))
		fetcher.AddPrevOut(*outpoint, wire.NewTxOut(u.Value, fromScript))
	}

	tx.AddTxOut(wire.NewTxOut(total-fee, toScript))

	sigHashes := txscript.NewTxSigHashes(tx, fetcher)
	for i, u := range utxos {
		witness, err := txscript.WitnessSignature(tx, sigHashes, i, u.Value, fromScript, txscript.SigHashAll, wif.PrivKey, true)
		if err != nil {
			return "", fmt.Errorf("failed to sign input %d: %w", i, err)
		}
		tx.TxIn[i].Witness = witness
	}

	var buf bytes.Buffer
	if err := tx.Serialize(&buf); err != nil {
		return "", fmt.Errorf("failed to serialize sweep transaction: %w", err)
	}

	txHash, err := s.backend.BroadcastTx(ctx, hex.EncodeToString(buf.Bytes()))
	if err != nil {
		return "", err
	}

	s.logger.Info("Sweep transaction broadcast",
		zap.String("from", fromAddress),
		zap.String("to", toAddress),
		zap.Int64("amount_sats", total-fee),
		zap.Int64("fee_sats", fee),
		zap.String("tx_hash", txHash))

	return txHash, nil
}

func payToAddrScript(address string, params *chaincfg.Params) ([]byte, error) {
	addr, err := btcutil.DecodeAddress(address, params)
	if err != nil {
		return nil, fmt.Errorf("failed to decode address %s: %w", address, err)
	}
	script, err := txscript.PayToAddrScript(addr)
	if err != nil {
		return nil, fmt.Errorf("failed to build script for %s: %w", address, err)
	}
	return script, nil
}
