// internal/snapshot/resolver.go
package snapshot

import (
	"context"
	"slices"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/ntulenev/KafkaSnapshot-sub000/common/kafka"
	"github.com/ntulenev/KafkaSnapshot-sub000/common/logger"
)

var tracer = otel.Tracer("kafka-snapshot/snapshot")

// Resolver finds the partitions of a topic and their current watermarks.
type Resolver struct {
	timeout time.Duration
	log     *logger.Logger
}

// NewResolver returns a Resolver whose broker queries are each bounded by
// timeout.
func NewResolver(timeout time.Duration, log *logger.Logger) (*Resolver, error) {
	if timeout <= 0 {
		return nil, &ConfigurationError{Field: "metadata timeout", Reason: "must be positive"}
	}
	if log == nil {
		log = logger.NewNop()
	}
	return &Resolver{timeout: timeout, log: log.Named("resolver")}, nil
}

// Timeout returns the per-query timeout.
func (r *Resolver) Timeout() time.Duration { return r.timeout }

// Resolve returns the readable partition boundaries of topic. One connection
// serves the metadata query and all offset queries; it is closed on return.
func (r *Resolver) Resolve(ctx context.Context, topic string, connect kafka.ConnFactory) (*TopicBoundaries, error) {
	if err := ValidateTopicName(topic); err != nil {
		return nil, err
	}
	if connect == nil {
		return nil, &ArgumentError{Name: "connection factory"}
	}

	ctx, span := tracer.Start(ctx, "Resolve", trace.WithAttributes(attribute.String("topic", topic)))
	defer span.End()

	conn, err := connect(ctx)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	defer func() {
		if err := conn.Close(); err != nil {
			r.log.WithContext(ctx).Warn("close metadata connection", zap.String("topic", topic), zap.Error(err))
		}
	}()

	var ids []int32
	err = boundedCall(ctx, r.timeout, "list partitions", topic, -1, func(ctx context.Context) error {
		var err error
		ids, err = conn.Partitions(ctx, topic)
		return err
	})
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	all := make([]Boundary, len(ids))
	g, gctx := errgroup.WithContext(ctx)
	for i, id := range ids {
		g.Go(func() error {
			return boundedCall(gctx, r.timeout, "query offsets", topic, id, func(ctx context.Context) error {
				low, high, err := conn.OffsetBounds(ctx, topic, id)
				if err != nil {
					return err
				}
				all[i] = Boundary{Topic: topic, Partition: id, Low: low, High: high}
				return nil
			})
		})
	}
	if err := g.Wait(); err != nil {
		span.RecordError(err)
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, err
	}

	readable := make([]Boundary, 0, len(all))
	for _, b := range all {
		if b.IsReadable() {
			readable = append(readable, b)
		}
	}
	slices.SortFunc(readable, func(a, b Boundary) int { return int(a.Partition) - int(b.Partition) })

	r.log.WithContext(ctx).Debug("watermarks resolved",
		zap.String("topic", topic),
		zap.Int("partitions", len(ids)),
		zap.Int("readable", len(readable)),
	)
	span.SetAttributes(attribute.Int("partitions.readable", len(readable)))
	return &TopicBoundaries{Topic: topic, Partitions: readable}, nil
}
