// internal/export/kafka.go
package export

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	commonkafka "github.com/ntulenev/KafkaSnapshot-sub000/common/kafka"
)

// KafkaConfig is the export.kafka block. Broker settings come from the
// kafka section; only the target naming and delivery knobs live here.
type KafkaConfig struct {
	TargetPrefix string `mapstructure:"target_prefix"`
	RequiredAcks string `mapstructure:"required_acks"`
	Compression  string `mapstructure:"compression"`
}

// KafkaSink republishes every record to <target_prefix><topic>.
// Null keys are published without a key.
type KafkaSink struct {
	producer commonkafka.Producer
	prefix   string
}

// NewKafkaSink takes ownership of producer.
func NewKafkaSink(producer commonkafka.Producer, cfg KafkaConfig) *KafkaSink {
	return &KafkaSink{producer: producer, prefix: cfg.TargetPrefix}
}

func (s *KafkaSink) Name() string { return "kafka" }

// TargetTopic is the topic a document is published to.
func (s *KafkaSink) TargetTopic(doc *Document) string { return s.prefix + doc.Topic }

func (s *KafkaSink) Write(ctx context.Context, doc *Document) error {
	topic := s.TargetTopic(doc)
	ctx, span := tracer.Start(ctx, "KafkaSink.Write", trace.WithAttributes(
		attribute.String("topic", topic),
		attribute.Int("records", len(doc.Records)),
	))
	defer span.End()

	for _, rec := range doc.Records {
		var key []byte
		if text, ok := rec.KeyText(); ok {
			key = []byte(text)
		}
		value, err := json.Marshal(rec)
		if err != nil {
			return fmt.Errorf("kafka-sink: marshal: %w", err)
		}
		if err := s.producer.Publish(ctx, topic, key, value); err != nil {
			span.RecordError(err)
			return fmt.Errorf("kafka-sink: publish: %w", err)
		}
	}
	return nil
}

func (s *KafkaSink) Close() error { return s.producer.Close() }
