package wallet

import (
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
)

// Generator derives a fresh secp256k1 keypair and native SegWit (P2WPKH)
// receiving address per call. Addresses are never reused: every payment gets
// its own keypair and the private key leaves this package only as WIF, to be
// sealed by the key vault.
type Generator struct {
	params *chaincfg.Params
}

func NewGenerator(params *chaincfg.Params) *Generator {
	return &Generator{params: params}
}

func (g *Generator) Generate() (string, string, error) {
	priv, err := btcec.NewPrivateKey()
	if err != nil {
		return "", "", fmt.Errorf("failed to generate private key: %w", err)
	}

	wif, err := btcutil.NewWIF(priv, g.params, true)
	if err != nil {
		return "", "", fmt.Errorf("failed to encode WIF: %w", err)
	}

	witnessProg := btcutil.Hash160(priv.PubKey().SerializeCompressed())
	addr, err := btcutil.NewAddressWitnessPubKeyHash(witnessProg, g.params)
	if err != nil {
		return "", "", fmt.Errorf("failed to create address: %w", err)
	}

	return addr.EncodeAddress(), wif.String(), nil
}

// ParseNetwork maps a config network name to chain parameters.
func ParseNetwork(name string) (*chaincfg.Params, error) {
	switch name {
	case "mainnet":
		return &chaincfg.MainNetParams, nil
	case "testnet":
		return &chaincfg.TestNet3Params, nil
	case "regtest":
		return &chaincfg.RegressionNetParams, nil
	default:
		return nil, fmt.Errorf("unknown bitcoin network: %s", name)
	}
}
