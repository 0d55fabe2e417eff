// internal/export/redis.go
package export

import (
	"context"
	"fmt"
	"time"

	"github.com/ntulenev/KafkaSnapshot-sub000/common/logger"
	commonredis "github.com/ntulenev/KafkaSnapshot-sub000/common/redis"
)

// RedisConfig is the export.redis block.
type RedisConfig struct {
	commonredis.Config `mapstructure:",squash"`

	KeyPrefix string        `mapstructure:"key_prefix"`
	TTL       time.Duration `mapstructure:"ttl"`
}

type hashStore interface {
	ReplaceHash(ctx context.Context, key string, fields map[string]any, ttl time.Duration) error
	Close() error
}

// RedisSink stores one hash per export: field = rendered key, value = record JSON.
// Records with a null key are stored under their partition/offset.
type RedisSink struct {
	store  hashStore
	prefix string
	ttl    time.Duration
}

// OpenRedis connects to Redis and returns a sink over it.
func OpenRedis(ctx context.Context, cfg RedisConfig, log *logger.Logger) (*RedisSink, error) {
	client, err := commonredis.New(ctx, cfg.Config, log)
	if err != nil {
		return nil, err
	}
	return NewRedisSink(client, cfg), nil
}

// NewRedisSink wraps an existing store.
func NewRedisSink(store hashStore, cfg RedisConfig) *RedisSink {
	prefix := cfg.KeyPrefix
	if prefix == "" {
		prefix = "kafka-snapshot"
	}
	return &RedisSink{store: store, prefix: prefix, ttl: cfg.TTL}
}

func (s *RedisSink) Name() string { return "redis" }

// HashKey is the Redis key a document is stored under.
func (s *RedisSink) HashKey(doc *Document) string {
	return s.prefix + ":" + doc.ExportName
}

func (s *RedisSink) Write(ctx context.Context, doc *Document) error {
	fields := make(map[string]any, len(doc.Records))
	for _, rec := range doc.Records {
		field, ok := rec.KeyText()
		if !ok {
			field = fmt.Sprintf("@%d:%d", rec.Meta.Partition, rec.Meta.Offset)
		}
		data, err := json.Marshal(rec)
		if err != nil {
			return fmt.Errorf("redis sink: marshal %q: %w", field, err)
		}
		fields[field] = string(data)
	}
	if err := s.store.ReplaceHash(ctx, s.HashKey(doc), fields, s.ttl); err != nil {
		return fmt.Errorf("redis sink: %w", err)
	}
	return nil
}

func (s *RedisSink) Close() error { return s.store.Close() }
