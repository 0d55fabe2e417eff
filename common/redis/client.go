// common/redis/client.go
package redis

import (
	"context"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/ntulenev/KafkaSnapshot-sub000/common/backoff"
	"github.com/ntulenev/KafkaSnapshot-sub000/common/logger"
)

var tracer = otel.Tracer("common/redis")

// Client wraps go-redis with the operations used by the exporters.
type Client struct {
	rdb *goredis.Client
	log *logger.Logger
}

// New connects and pings Redis, retrying with back-off.
func New(ctx context.Context, cfg Config, log *logger.Logger) (*Client, error) {
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	log = log.Named("redis")

	rdb := goredis.NewClient(&goredis.Options{
		Addr:        cfg.Addr,
		Username:    cfg.Username,
		Password:    cfg.Password,
		DB:          cfg.DB,
		DialTimeout: cfg.DialTimeout,
	})
	ping := func(ctx context.Context) error { return rdb.Ping(ctx).Err() }
	if err := backoff.Execute(ctx, "redis_ping", cfg.Backoff, log, ping); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis: ping %s: %w", cfg.Addr, err)
	}
	log.Info("redis connected", zap.String("addr", cfg.Addr), zap.Int("db", cfg.DB))
	return &Client{rdb: rdb, log: log}, nil
}

// Ping checks the connection.
func (c *Client) Ping(ctx context.Context) error { return c.rdb.Ping(ctx).Err() }

// ReplaceHash atomically replaces the hash at key with fields. The new hash
// is built under a temporary key and renamed over key in one transaction.
// An empty fields map deletes key.
func (c *Client) ReplaceHash(ctx context.Context, key string, fields map[string]any, ttl time.Duration) error {
	ctx, span := tracer.Start(ctx, "Redis.ReplaceHash", trace.WithAttributes(
		attribute.String("key", key),
		attribute.Int("fields", len(fields)),
	))
	defer span.End()

	if len(fields) == 0 {
		if err := c.rdb.Del(ctx, key).Err(); err != nil {
			span.RecordError(err)
			return fmt.Errorf("redis: del %q: %w", key, err)
		}
		return nil
	}

	tmp := fmt.Sprintf("%s:tmp:%d", key, time.Now().UnixNano())
	_, err := c.rdb.TxPipelined(ctx, func(p goredis.Pipeliner) error {
		p.Del(ctx, tmp)
		p.HSet(ctx, tmp, fields)
		if ttl > 0 {
			p.Expire(ctx, tmp, ttl)
		}
		p.Rename(ctx, tmp, key)
		return nil
	})
	if err != nil {
		span.RecordError(err)
		c.log.WithContext(ctx).Error("redis replace hash failed", zap.String("key", key), zap.Error(err))
		return fmt.Errorf("redis: replace hash %q: %w", key, err)
	}
	return nil
}

// Close releases the connection pool.
func (c *Client) Close() error { return c.rdb.Close() }
