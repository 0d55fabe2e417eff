// common/kafka/security.go
package kafka

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"os"
)

// SASLMechanismPlain is the only SASL mechanism supported by the clients.
const SASLMechanismPlain = "PLAIN"

// SASLConfig enables SASL/PLAIN authentication.
type SASLConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Mechanism string `mapstructure:"mechanism"`
	Username  string `mapstructure:"username"`
	Password  string `mapstructure:"password" json:"-"`
}

// Validate checks an enabled SASL block.
func (c SASLConfig) Validate() error {
	if !c.Enabled {
		return nil
	}
	if c.Mechanism != "" && c.Mechanism != SASLMechanismPlain {
		return fmt.Errorf("kafka: unsupported SASL mechanism %q", c.Mechanism)
	}
	if c.Username == "" {
		return fmt.Errorf("kafka: SASL username required")
	}
	return nil
}

// TLSConfig enables TLS towards the brokers.
type TLSConfig struct {
	Enabled            bool   `mapstructure:"enabled"`
	CAFile             string `mapstructure:"ca_file"`
	InsecureSkipVerify bool   `mapstructure:"insecure_skip_verify"`
}

// Build returns the *tls.Config for an enabled block, nil otherwise.
func (c TLSConfig) Build() (*tls.Config, error) {
	if !c.Enabled {
		return nil, nil
	}
	tlsCfg := &tls.Config{
		MinVersion:         tls.VersionTLS12,
		InsecureSkipVerify: c.InsecureSkipVerify, //nolint:gosec
	}
	if c.CAFile == "" {
		return tlsCfg, nil
	}
	pem, err := os.ReadFile(c.CAFile)
	if err != nil {
		return nil, fmt.Errorf("kafka: read CA file: %w", err)
	}
	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(pem) {
		return nil, fmt.Errorf("kafka: no certificates in %q", c.CAFile)
	}
	tlsCfg.RootCAs = pool
	return tlsCfg, nil
}
