// common/kafka/consumer/config.go
package consumer

import (
	"fmt"
	"strings"
	"time"

	"github.com/IBM/sarama"

	"github.com/ntulenev/KafkaSnapshot-sub000/common/backoff"
	commonkafka "github.com/ntulenev/KafkaSnapshot-sub000/common/kafka"
)

// Config describes how snapshot connections reach the cluster.
//
// Brokers      : bootstrap addresses.
// ClientID     : client id reported to the brokers.
// Version      : Kafka protocol version string (e.g. "2.8.0").
// InitialOffset: "oldest" | "newest", where Assign starts reading.
// Backoff      : retry policy for dialing a new connection.
type Config struct {
	Brokers       []string
	ClientID      string
	Version       string
	InitialOffset string
	DialTimeout   time.Duration
	ReadTimeout   time.Duration
	SASL          commonkafka.SASLConfig
	TLS           commonkafka.TLSConfig
	Backoff       backoff.Config
}

func (c *Config) applyDefaults() {
	if c.Version == "" {
		c.Version = "2.8.0"
	}
	if c.ClientID == "" {
		c.ClientID = "kafka-snapshot"
	}
	if c.InitialOffset == "" {
		c.InitialOffset = "oldest"
	}
	if c.DialTimeout <= 0 {
		c.DialTimeout = 10 * time.Second
	}
	if c.ReadTimeout <= 0 {
		c.ReadTimeout = 30 * time.Second
	}
	if c.SASL.Enabled && c.SASL.Mechanism == "" {
		c.SASL.Mechanism = commonkafka.SASLMechanismPlain
	}
}

func (c Config) validate() error {
	if len(c.Brokers) == 0 {
		return fmt.Errorf("kafka consumer: brokers required")
	}
	if c.Version == "" {
		return fmt.Errorf("kafka consumer: Version required")
	}
	switch strings.ToLower(c.InitialOffset) {
	case "oldest", "newest":
	default:
		return fmt.Errorf("kafka consumer: InitialOffset must be one of [oldest, newest], got %q", c.InitialOffset)
	}
	if err := c.SASL.Validate(); err != nil {
		return fmt.Errorf("kafka consumer: %w", err)
	}
	return nil
}

func buildSaramaConfig(c Config) (*sarama.Config, error) {
	version, err := sarama.ParseKafkaVersion(c.Version)
	if err != nil {
		return nil, fmt.Errorf("kafka consumer: invalid Version %q: %w", c.Version, err)
	}

	sc := sarama.NewConfig()
	sc.Version = version
	sc.ClientID = c.ClientID
	sc.Net.DialTimeout = c.DialTimeout
	sc.Net.ReadTimeout = c.ReadTimeout
	sc.Consumer.Return.Errors = true

	switch strings.ToLower(c.InitialOffset) {
	case "oldest":
		sc.Consumer.Offsets.Initial = sarama.OffsetOldest
	case "newest":
		sc.Consumer.Offsets.Initial = sarama.OffsetNewest
	default:
		return nil, fmt.Errorf("kafka consumer: invalid InitialOffset %q", c.InitialOffset)
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
			return nil, fmt.Errorf("kafka consumer: %w", err)
		}
		sc.Net.TLS.Enable = true
		sc.Net.TLS.Config = tlsCfg
	}

	if err := sc.Validate(); err != nil {
		return nil, fmt.Errorf("kafka consumer: sarama config: %w", err)
	}
	return sc, nil
}
