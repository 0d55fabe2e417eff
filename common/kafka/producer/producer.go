// common/kafka/producer/producer.go
package producer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/IBM/sarama"
	"github.com/dnwe/otelsarama"
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

// SetServiceLabel is called once from common.InitServiceName(..) at startup.
func SetServiceLabel(name string) { serviceLabel = name }

// -----------------------------------------------------------------------------
// Prometheus metrics
// -----------------------------------------------------------------------------

var producerMetrics = struct {
	ConnectAttempts *prometheus.CounterVec
	ConnectErrors   *prometheus.CounterVec
	PublishSuccess  *prometheus.CounterVec
	PublishErrors   *prometheus.CounterVec
	PublishLatency  *prometheus.HistogramVec
	PingSuccess     *prometheus.CounterVec
	PingErrors      *prometheus.CounterVec
}{
	ConnectAttempts: promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "common", Subsystem: "kafka_producer", Name: "connect_attempts_total",
			Help: "Kafka producer connect attempts",
		},
		[]string{"service"},
	),
	ConnectErrors: promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "common", Subsystem: "kafka_producer", Name: "connect_errors_total",
			Help: "Kafka producer connect errors",
		},
		[]string{"service"},
	),
	PublishSuccess: promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "common", Subsystem: "kafka_producer", Name: "publish_success_total",
			Help: "Successful publishes",
		},
		[]string{"service"},
	),
	PublishErrors: promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "common", Subsystem: "kafka_producer", Name: "publish_errors_total",
			Help: "Publish errors",
		},
		[]string{"service"},
	),
	PublishLatency: promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "common", Subsystem: "kafka_producer", Name: "publish_latency_seconds",
			Help:    "Publish latency (seconds)",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"service"},
	),
	PingSuccess: promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "common", Subsystem: "kafka_producer", Name: "ping_success_total",
			Help: "Successful pings",
		},
		[]string{"service"},
	),
	PingErrors: promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "common", Subsystem: "kafka_producer", Name: "ping_errors_total",
			Help: "Ping errors",
		},
		[]string{"service"},
	),
}

// -----------------------------------------------------------------------------
// Tracing
// -----------------------------------------------------------------------------

var tracer = otel.Tracer("kafka-producer")

// -----------------------------------------------------------------------------
// Producer implementation
// -----------------------------------------------------------------------------

// metadataRefresher is the part of sarama.Client used by Ping and Close.
type metadataRefresher interface {
	RefreshMetadata(topics ...string) error
	Close() error
}

type kafkaProducer struct {
	prod       sarama.SyncProducer
	client     metadataRefresher
	logger     *logger.Logger
	backoffCfg backoff.Config
}

// New creates a SyncProducer, retrying the connection with back-off.
func New(ctx context.Context, cfg Config, log *logger.Logger) (commonkafka.Producer, error) {
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	log = log.Named("kafka-producer")

	sc, err := buildSaramaConfig(cfg)
	if err != nil {
		return nil, err
	}

	var (
		client   sarama.Client
		syncProd sarama.SyncProducer
	)
	connect := func(ctx context.Context) error {
		producerMetrics.ConnectAttempts.WithLabelValues(serviceLabel).Inc()
		if client == nil {
			c, err := sarama.NewClient(cfg.Brokers, sc)
			if err != nil {
				producerMetrics.ConnectErrors.WithLabelValues(serviceLabel).Inc()
				return err
			}
			client = c
		}
		p, err := sarama.NewSyncProducerFromClient(client)
		if err != nil {
			producerMetrics.ConnectErrors.WithLabelValues(serviceLabel).Inc()
			return err
		}
		syncProd = p
		return nil
	}

	ctxConn, span := tracer.Start(ctx, "Connect",
		trace.WithAttributes(attribute.StringSlice("brokers", cfg.Brokers)))
	if err := backoff.Execute(ctxConn, "kafka_producer_connect", cfg.Backoff, log, connect); err != nil {
		span.RecordError(err)
		span.End()
		if client != nil {
			_ = client.Close()
		}
		log.Error("kafka producer connect failed", zap.Error(err))
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, &commonkafka.ConnectionError{Op: "dial", Partition: -1, Err: err}
	}
	span.End()

	log.Info("kafka producer ready", zap.Strings("brokers", cfg.Brokers))
	return newProducer(otelsarama.WrapSyncProducer(sc, syncProd), client, cfg.Backoff, log), nil
}

func newProducer(prod sarama.SyncProducer, client metadataRefresher, bo backoff.Config, log *logger.Logger) *kafkaProducer {
	return &kafkaProducer{prod: prod, client: client, logger: log, backoffCfg: bo}
}

// Publish sends one message, retrying transient failures.
func (k *kafkaProducer) Publish(ctx context.Context, topic string, key, value []byte) error {
	ctxPub, span := tracer.Start(ctx, "Publish", trace.WithAttributes(attribute.String("topic", topic)))
	defer span.End()
	start := time.Now()

	send := func(ctx context.Context) error {
		msg := &sarama.ProducerMessage{
			Topic: topic,
			Value: sarama.ByteEncoder(value),
		}
		if key != nil {
			msg.Key = sarama.ByteEncoder(key)
		}
		_, _, err := k.prod.SendMessage(msg)
		if errors.Is(err, sarama.ErrMessageSizeTooLarge) || errors.Is(err, sarama.ErrInvalidTopic) {
			return backoff.Permanent(err)
		}
		return err
	}

	err := backoff.Execute(ctxPub, "kafka_publish", k.backoffCfg, k.logger, send)
	latency := time.Since(start)
	producerMetrics.PublishLatency.WithLabelValues(serviceLabel).Observe(latency.Seconds())

	if err != nil {
		producerMetrics.PublishErrors.WithLabelValues(serviceLabel).Inc()
		span.RecordError(err)
		k.logger.Error("publish failed", zap.String("topic", topic), zap.Error(err))
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("kafka producer: publish to %q: %w", topic, err)
	}

	producerMetrics.PublishSuccess.WithLabelValues(serviceLabel).Inc()
	k.logger.Debug("publish succeeded",
		zap.String("topic", topic),
		zap.Float64("latency_s", latency.Seconds()),
	)
	return nil
}

// Ping refreshes client metadata to check the cluster is reachable.
func (k *kafkaProducer) Ping(ctx context.Context) error {
	_, span := tracer.Start(ctx, "Ping")
	defer span.End()
	err := k.client.RefreshMetadata()
	if err != nil {
		producerMetrics.PingErrors.WithLabelValues(serviceLabel).Inc()
		span.RecordError(err)
		return err
	}
	producerMetrics.PingSuccess.WithLabelValues(serviceLabel).Inc()
	return nil
}

// Close shuts the producer down, then the client.
func (k *kafkaProducer) Close() error {
	var errs []error
	if err := k.prod.Close(); err != nil {
		k.logger.Error("producer close failed", zap.Error(err))
		errs = append(errs, err)
	}
	if err := k.client.Close(); err != nil && !errors.Is(err, sarama.ErrClosedClient) {
		k.logger.Error("client close failed", zap.Error(err))
		errs = append(errs, err)
	}
	k.logger.Info("kafka producer closed")
	return errors.Join(errs...)
}
