// common/kafka/producer/config.go
package producer

import (
	"fmt"
	"strings"
	"time"

	"github.com/IBM/sarama"

	"github.com/ntulenev/KafkaSnapshot-sub000/common/backoff"
	commonkafka "github.com/ntulenev/KafkaSnapshot-sub000/common/kafka"
)

// Config groups all tunables for a Kafka sync producer.
//
// Zero values are replaced with defaults by applyDefaults().
type Config struct {
	Brokers  []string
	ClientID string
	Version  string

	// RequiredAcks: "all" (default) | "leader" | "none".
	RequiredAcks string

	// Timeout bounds the wait for acks from the cluster.
	Timeout time.Duration

	// Compression: "none" (default), "gzip", "snappy", "lz4", "zstd".
	Compression string

	// FlushFrequency and FlushMessages tune batching; zero disables.
	FlushFrequency time.Duration
	FlushMessages  int

	SASL commonkafka.SASLConfig
	TLS  commonkafka.TLSConfig

	// Backoff drives both connect and publish retries.
	Backoff backoff.Config
}

func (c *Config) applyDefaults() {
	if c.Timeout <= 0 {
		c.Timeout = 5 * time.Second
	}
	if c.RequiredAcks == "" {
		c.RequiredAcks = "all"
	}
	if c.Compression == "" {
		c.Compression = "none"
	}
	if c.Version == "" {
		c.Version = "2.8.0"
	}
	if c.ClientID == "" {
		c.ClientID = "kafka-snapshot-exporter"
	}
	if c.SASL.Enabled && c.SASL.Mechanism == "" {
		c.SASL.Mechanism = commonkafka.SASLMechanismPlain
	}
}

func (c Config) validate() error {
	if len(c.Brokers) == 0 {
		return fmt.Errorf("kafka producer: brokers required")
	}
	if err := c.SASL.Validate(); err != nil {
		return fmt.Errorf("kafka producer: %w", err)
	}
	return nil
}

func buildSaramaConfig(c Config) (*sarama.Config, error) {
	version, err := sarama.ParseKafkaVersion(c.Version)
	if err != nil {
		return nil, fmt.Errorf("kafka producer: invalid Version %q: %w", c.Version, err)
	}

	sc := sarama.NewConfig()
	sc.Version = version
	sc.ClientID = c.ClientID

	switch strings.ToLower(c.RequiredAcks) {
	case "all":
		sc.Producer.RequiredAcks = sarama.WaitForAll
	case "leader":
		sc.Producer.RequiredAcks = sarama.WaitForLocal
	case "none":
		sc.Producer.RequiredAcks = sarama.NoResponse
	default:
		return nil, fmt.Errorf("kafka producer: invalid RequiredAcks %q", c.RequiredAcks)
	}

	sc.Producer.Return.Successes = true
	sc.Producer.Return.Errors = true
	sc.Producer.Timeout = c.Timeout
	// Idempotence requires acks=all.
	if sc.Producer.RequiredAcks == sarama.WaitForAll {
		sc.Producer.Idempotent = true
		sc.Net.MaxOpenRequests = 1
	}

	if c.FlushFrequency > 0 {
		sc.Producer.Flush.Frequency = c.FlushFrequency
	}
	if c.FlushMessages > 0 {
		sc.Producer.Flush.Messages = c.FlushMessages
	}

	switch strings.ToLower(c.Compression) {
	case "none":
		sc.Producer.Compression = sarama.CompressionNone
	case "gzip":
		sc.Producer.Compression = sarama.CompressionGZIP
	case "snappy":
		sc.Producer.Compression = sarama.CompressionSnappy
	case "lz4":
		sc.Producer.Compression = sarama.CompressionLZ4
	case "zstd":
		sc.Producer.Compression = sarama.CompressionZSTD
	default:
		return nil, fmt.Errorf("kafka producer: invalid Compression %q", c.Compression)
	}

	if c.SASL.Enabled {
		sc.Net.SASL.Enable = true
		sc.Net.SASL.Mechanism = sarama.SASLMechanism(c.SASL.Mechanism)
		sc.Net.SASL.User = c.SASL.Username
		sc.Net.SASL.Password = c.SASL.Password
	}
	if c.TLS.Enabled {
		tlsCfg, err := c.TLS.Build()
		if err != nil {
			return nil, fmt.Errorf("kafka producer: %w", err)
		}
		sc.Net.TLS.Enable = true
		sc.Net.TLS.Config = tlsCfg
	}

	if err := sc.Validate(); err != nil {
		return nil, fmt.Errorf("kafka producer: sarama config: %w", err)
	}
	return sc, nil
}
