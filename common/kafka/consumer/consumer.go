// common/kafka/consumer/consumer.go
package consumer

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/IBM/sarama"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/ntulenev/KafkaSnapshot-sub000/common/backoff"
	commonkafka "github.com/ntulenev/KafkaSnapshot-sub000/common/kafka"
	"github.com/ntulenev/KafkaSnapshot-sub000/common/logger"
)

// -----------------------------------------------------------------------------
// Service label (set by common.InitServiceName)
// -----------------------------------------------------------------------------

var serviceLabel = "unknown"

// SetServiceLabel sets the service name used as metric label.
// Called once from common.InitServiceName().
func SetServiceLabel(name string) { serviceLabel = name }

// -----------------------------------------------------------------------------
// Prometheus metrics
// -----------------------------------------------------------------------------

var consumerMetrics = struct {
	ConnectAttempts *prometheus.CounterVec
	ConnectErrors   *prometheus.CounterVec
	OpenConns       *prometheus.GaugeVec
	MessagesRead    *prometheus.CounterVec
	ReadErrors      *prometheus.CounterVec
}{
	ConnectAttempts: promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "common", Subsystem: "kafka_consumer", Name: "connect_attempts_total",
			Help: "Kafka connection dial attempts",
		},
		[]string{"service"},
	),
	ConnectErrors: promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "common", Subsystem: "kafka_consumer", Name: "connect_errors_total",
			Help: "Kafka connection dial errors",
		},
		[]string{"service"},
	),
	OpenConns: promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "common", Subsystem: "kafka_consumer", Name: "open_connections",
			Help: "Kafka connections currently open",
		},
		[]string{"service"},
	),
	MessagesRead: promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "common", Subsystem: "kafka_consumer", Name: "messages_read_total",
			Help: "Messages read from partitions",
		},
		[]string{"service"},
	),
	ReadErrors: promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "common", Subsystem: "kafka_consumer", Name: "read_errors_total",
			Help: "Errors returned by partition reads",
		},
		[]string{"service"},
	),
}

// -----------------------------------------------------------------------------
// Tracing
// -----------------------------------------------------------------------------

var tracer = otel.Tracer("kafka-consumer")

// -----------------------------------------------------------------------------
// Factory
// -----------------------------------------------------------------------------

// metadataClient is the part of sarama.Client used for offset queries.
type metadataClient interface {
	Partitions(topic string) ([]int32, error)
	GetOffset(topic string, partitionID int32, time int64) (int64, error)
	Close() error
}

// NewFactory validates cfg once and returns a ConnFactory; every call dials
// a dedicated sarama client with back-off.
func NewFactory(cfg Config, log *logger.Logger) (commonkafka.ConnFactory, error) {
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	sc, err := buildSaramaConfig(cfg)
	if err != nil {
		return nil, err
	}
	log = log.Named("kafka-conn")

	return func(ctx context.Context) (commonkafka.Conn, error) {
		return dial(ctx, cfg, sc, log)
	}, nil
}

func dial(ctx context.Context, cfg Config, sc *sarama.Config, log *logger.Logger) (commonkafka.Conn, error) {
	var client sarama.Client
	connectOp := func(ctx context.Context) error {
		consumerMetrics.ConnectAttempts.WithLabelValues(serviceLabel).Inc()
		c, err := sarama.NewClient(cfg.Brokers, sc)
		if err != nil {
			consumerMetrics.ConnectErrors.WithLabelValues(serviceLabel).Inc()
			return err
		}
		client = c
		return nil
	}

	ctxConn, span := tracer.Start(ctx, "Dial",
		trace.WithAttributes(attribute.StringSlice("brokers", cfg.Brokers)))
	defer span.End()
	if err := backoff.Execute(ctxConn, "kafka_dial", cfg.Backoff, log, connectOp); err != nil {
		span.RecordError(err)
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, &commonkafka.ConnectionError{Op: "dial", Partition: -1, Err: err}
	}

	log.Debug("kafka connection opened", zap.Strings("brokers", cfg.Brokers))
	newConsumer := func() (sarama.Consumer, error) { return sarama.NewConsumerFromClient(client) }
	return newConn(client, newConsumer, sc.Consumer.Offsets.Initial, log), nil
}

// -----------------------------------------------------------------------------
// Connection implementation
// -----------------------------------------------------------------------------

type conn struct {
	meta          metadataClient
	newConsumer   func() (sarama.Consumer, error)
	initialOffset int64
	log           *logger.Logger

	consumer  sarama.Consumer
	pc        sarama.PartitionConsumer
	topic     string
	partition int32

	closeOnce sync.Once
	closeErr  error
}

func newConn(meta metadataClient, newConsumer func() (sarama.Consumer, error), initialOffset int64, log *logger.Logger) *conn {
	consumerMetrics.OpenConns.WithLabelValues(serviceLabel).Inc()
	return &conn{
		meta:          meta,
		newConsumer:   newConsumer,
		initialOffset: initialOffset,
		log:           log,
		partition:     -1,
	}
}

// callCtx runs a blocking sarama call so that the caller observes ctx.
// The call itself keeps running until sarama's own network timeouts fire.
func callCtx[T any](ctx context.Context, fn func() (T, error)) (T, error) {
	type result struct {
		v   T
		err error
	}
	ch := make(chan result, 1)
	go func() {
		v, err := fn()
		ch <- result{v: v, err: err}
	}()
	select {
	case r := <-ch:
		return r.v, r.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

func (c *conn) Partitions(ctx context.Context, topic string) ([]int32, error) {
	ctx, span := tracer.Start(ctx, "Partitions", trace.WithAttributes(attribute.String("topic", topic)))
	defer span.End()

	ids, err := callCtx(ctx, func() ([]int32, error) { return c.meta.Partitions(topic) })
	if err != nil {
		span.RecordError(err)
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, &commonkafka.ConnectionError{Op: "partitions", Topic: topic, Partition: -1, Err: err}
	}
	return ids, nil
}

func (c *conn) OffsetBounds(ctx context.Context, topic string, partition int32) (int64, int64, error) {
	ctx, span := tracer.Start(ctx, "OffsetBounds", trace.WithAttributes(
		attribute.String("topic", topic),
		attribute.Int("partition", int(partition)),
	))
	defer span.End()

	type bounds struct{ low, high int64 }
	b, err := callCtx(ctx, func() (bounds, error) {
		low, err := c.meta.GetOffset(topic, partition, sarama.OffsetOldest)
		if err != nil {
			return bounds{}, err
		}
		high, err := c.meta.GetOffset(topic, partition, sarama.OffsetNewest)
		if err != nil {
			return bounds{}, err
		}
		return bounds{low: low, high: high}, nil
	})
	if err != nil {
		span.RecordError(err)
		if ctx.Err() != nil {
			return 0, 0, ctx.Err()
		}
		return 0, 0, &commonkafka.ConnectionError{Op: "offsets", Topic: topic, Partition: partition, Err: err}
	}
	return b.low, b.high, nil
}

func (c *conn) OffsetForTime(ctx context.Context, topic string, partition int32, ts time.Time) (int64, bool, error) {
	ctx, span := tracer.Start(ctx, "OffsetForTime", trace.WithAttributes(
		attribute.String("topic", topic),
		attribute.Int("partition", int(partition)),
		attribute.String("ts", ts.UTC().Format(time.RFC3339)),
	))
	defer span.End()

	offset, err := callCtx(ctx, func() (int64, error) {
		return c.meta.GetOffset(topic, partition, ts.UnixMilli())
	})
	if err != nil {
		span.RecordError(err)
		if ctx.Err() != nil {
			return 0, false, ctx.Err()
		}
		return 0, false, &commonkafka.ConnectionError{Op: "offsets", Topic: topic, Partition: partition, Err: err}
	}
	// The broker answers -1 when no message has a timestamp at or after ts.
	if offset < 0 {
		return 0, false, nil
	}
	return offset, true, nil
}

func (c *conn) Assign(topic string, partition int32) error {
	return c.AssignAt(topic, partition, c.initialOffset)
}

func (c *conn) AssignAt(topic string, partition int32, offset int64) error {
	if c.pc != nil {
		return &commonkafka.ConnectionError{
			Op: "assign", Topic: topic, Partition: partition,
			Err: fmt.Errorf("connection already assigned to %s/%d", c.topic, c.partition),
		}
	}
	if c.consumer == nil {
		cons, err := c.newConsumer()
		if err != nil {
			return &commonkafka.ConnectionError{Op: "assign", Topic: topic, Partition: partition, Err: err}
		}
		c.consumer = cons
	}
	pc, err := c.consumer.ConsumePartition(topic, partition, offset)
	if err != nil {
		return &commonkafka.ConnectionError{Op: "assign", Topic: topic, Partition: partition, Err: err}
	}
	c.pc = pc
	c.topic = topic
	c.partition = partition
	c.log.Debug("partition assigned",
		zap.String("topic", topic),
		zap.Int32("partition", partition),
		zap.Int64("offset", offset),
	)
	return nil
}

var errNotAssigned = errors.New("connection has no assigned partition")

func (c *conn) Read(ctx context.Context) (*commonkafka.Message, error) {
	if c.pc == nil {
		return nil, &commonkafka.ConnectionError{Op: "read", Partition: -1, Err: errNotAssigned}
	}
	select {
	case m, ok := <-c.pc.Messages():
		if !ok {
			consumerMetrics.ReadErrors.WithLabelValues(serviceLabel).Inc()
			return nil, &commonkafka.ConnectionError{
				Op: "read", Topic: c.topic, Partition: c.partition,
				Err: errors.New("partition consumer closed"),
			}
		}
		consumerMetrics.MessagesRead.WithLabelValues(serviceLabel).Inc()
		return convertMessage(m), nil
	case cerr, ok := <-c.pc.Errors():
		consumerMetrics.ReadErrors.WithLabelValues(serviceLabel).Inc()
		err := errors.New("partition consumer closed")
		if ok && cerr != nil {
			err = cerr.Err
		}
		return nil, &commonkafka.ConnectionError{Op: "read", Topic: c.topic, Partition: c.partition, Err: err}
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Close releases the partition consumer, the consumer and the client.
// It is safe to call more than once.
func (c *conn) Close() error {
	c.closeOnce.Do(func() {
		var errs []error
		if c.pc != nil {
			if err := c.pc.Close(); err != nil {
				errs = append(errs, err)
			}
		}
		if c.consumer != nil {
			if err := c.consumer.Close(); err != nil {
				errs = append(errs, err)
			}
		}
		if err := c.meta.Close(); err != nil {
			errs = append(errs, err)
		}
		consumerMetrics.OpenConns.WithLabelValues(serviceLabel).Dec()
		if len(errs) > 0 {
			c.closeErr = &commonkafka.ConnectionError{
				Op: "close", Topic: c.topic, Partition: c.partition, Err: errors.Join(errs...),
			}
		}
	})
	return c.closeErr
}

func convertMessage(m *sarama.ConsumerMessage) *commonkafka.Message {
	headers := make(map[string][]byte, len(m.Headers))
	for _, hdr := range m.Headers {
		if hdr != nil && hdr.Key != nil {
			headers[string(hdr.Key)] = hdr.Value
		}
	}
	return &commonkafka.Message{
		Key:       m.Key,
		Value:     m.Value,
		Topic:     m.Topic,
		Partition: m.Partition,
		Offset:    m.Offset,
		Timestamp: m.Timestamp,
		Headers:   headers,
	}
}
