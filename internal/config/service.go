package config

type ServiceConfig struct {
	Name        string `yaml:"name"`
	Environment string `yaml:"environment"`
	Version     string `yaml:"version"`
	ClientURL   string `yaml:"client_url"`

	// OperatorAddress is the wallet every completed payment is swept to.
	OperatorAddress string `yaml:"operator_address"`
	// EncryptionKey is the hex-encoded 256-bit key vault secret.
	EncryptionKey string `yaml:"encryption_key"`
}
