package config

import "time"

// BitcoinConfig holds the chain-side knobs: which network the addresses
// belong to, where the indexer lives, and the confirmation/fee policy.
type BitcoinConfig struct {
	Network               string        `yaml:"network"` // mainnet, testnet or regtest
	IndexerURL            string        `yaml:"indexer_url"`
	RequiredConfirmations int64         `yaml:"required_confirmations"`
	QueryTimeout          time.Duration `yaml:"query_timeout"`
	FeeRateSatVB          int64         `yaml:"fee_rate_sat_vb"`
}

// PaymentConfig holds the payment lifecycle policy and the purchasable
// credit packages.
type PaymentConfig struct {
	Expiry            time.Duration   `yaml:"expiry"`
	ReconcileInterval time.Duration   `yaml:"reconcile_interval"`
	Packages          []PackageConfig `yaml:"packages"`
}

type PackageConfig struct {
	ID         string `yaml:"id"`
	Credits    int64  `yaml:"credits"`
	FiatAmount string `yaml:"fiat_amount"`
}

// RatesConfig holds the exchange-rate source and its cache policy.
type RatesConfig struct {
	SourceURL string        `yaml:"source_url"`
	CacheTTL  time.Duration `yaml:"cache_ttl"`
	Currency  string        `yaml:"currency"`
}
