// internal/export/config.go
package export

import (
	"context"
	"fmt"
	"strings"

	"github.com/ntulenev/KafkaSnapshot-sub000/common/backoff"
	commonkafka "github.com/ntulenev/KafkaSnapshot-sub000/common/kafka"
	"github.com/ntulenev/KafkaSnapshot-sub000/common/logger"
	"github.com/ntulenev/KafkaSnapshot-sub000/internal/sorting"
)

// Sink kinds.
const (
	KindFile     = "file"
	KindRedis    = "redis"
	KindS3       = "s3"
	KindPostgres = "postgres"
	KindKafka    = "kafka"
)

// Config is the export section.
type Config struct {
	Sink     string         `mapstructure:"sink"`
	Sort     sorting.Config `mapstructure:"sort"`
	Backoff  backoff.Config `mapstructure:"backoff"`
	File     FileConfig     `mapstructure:"file"`
	Redis    RedisConfig    `mapstructure:"redis"`
	S3       S3Config       `mapstructure:"s3"`
	Postgres PostgresConfig `mapstructure:"postgres"`
	Kafka    KafkaConfig    `mapstructure:"kafka"`
}

// Validate checks the selected sink only.
func (c Config) Validate() error {
	if _, err := sorting.New(c.Sort); err != nil {
		return fmt.Errorf("export: %w", err)
	}
	if err := c.Backoff.Validate(); err != nil {
		return fmt.Errorf("export: %w", err)
	}
	switch strings.ToLower(c.Sink) {
	case KindFile:
	case KindRedis:
		return c.Redis.Validate()
	case KindS3:
		return c.S3.Validate()
	case KindPostgres:
		return c.Postgres.Validate()
	case KindKafka:
	default:
		return fmt.Errorf("export: unknown sink %q", c.Sink)
	}
	return nil
}

// ProducerFactory opens the producer used by the kafka sink.
type ProducerFactory func(ctx context.Context) (commonkafka.Producer, error)

// Open builds the configured sink.
func Open(ctx context.Context, cfg Config, newProducer ProducerFactory, log *logger.Logger) (Sink, error) {
	switch strings.ToLower(cfg.Sink) {
	case KindFile:
		return NewFileSink(cfg.File)
	case KindRedis:
		return OpenRedis(ctx, cfg.Redis, log)
	case KindS3:
		return OpenS3(ctx, cfg.S3)
	case KindPostgres:
		return OpenPostgres(ctx, cfg.Postgres, log)
	case KindKafka:
		if newProducer == nil {
			return nil, fmt.Errorf("export: kafka sink requires a producer")
		}
		p, err := newProducer(ctx)
		if err != nil {
			return nil, fmt.Errorf("export: kafka sink: %w", err)
		}
		return NewKafkaSink(p, cfg.Kafka), nil
	default:
		return nil, fmt.Errorf("export: unknown sink %q", cfg.Sink)
	}
}
