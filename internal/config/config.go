// internal/config/config.go
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/ntulenev/KafkaSnapshot-sub000/common/backoff"
	"github.com/ntulenev/KafkaSnapshot-sub000/common/configloader"
	"github.com/ntulenev/KafkaSnapshot-sub000/common/httpserver"
	commonkafka "github.com/ntulenev/KafkaSnapshot-sub000/common/kafka"
	"github.com/ntulenev/KafkaSnapshot-sub000/common/kafka/consumer"
	"github.com/ntulenev/KafkaSnapshot-sub000/common/kafka/producer"
	"github.com/ntulenev/KafkaSnapshot-sub000/common/logger"
	"github.com/ntulenev/KafkaSnapshot-sub000/common/telemetry"
	"github.com/ntulenev/KafkaSnapshot-sub000/internal/export"
	"github.com/ntulenev/KafkaSnapshot-sub000/internal/filter"
	"github.com/ntulenev/KafkaSnapshot-sub000/internal/keys"
	"github.com/ntulenev/KafkaSnapshot-sub000/internal/snapshot"
)

// EnvPrefix prefixes every environment override: kafka.brokers → KAFKA_SNAPSHOT_KAFKA_BROKERS.
const EnvPrefix = "KAFKA_SNAPSHOT"

// -----------------------------------------------------------------------------
// Structures
// -----------------------------------------------------------------------------

type Config struct {
	ServiceName    string `mapstructure:"service_name"`
	ServiceVersion string `mapstructure:"service_version"`

	Logging   logger.Config   `mapstructure:"logging"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
	HTTP      HTTPConfig      `mapstructure:"http"`
	Kafka     KafkaConfig     `mapstructure:"kafka"`
	Loader    LoaderConfig    `mapstructure:"loader"`
	Export    export.Config   `mapstructure:"export"`
	Topics    []TopicConfig   `mapstructure:"topics"`
}

type TelemetryConfig struct {
	Enabled      bool    `mapstructure:"enabled"`
	OTLPEndpoint string  `mapstructure:"otel_endpoint"`
	Insecure     bool    `mapstructure:"insecure"`
	SamplerRatio float64 `mapstructure:"sampler_ratio"`
}

// HTTPConfig enables the metrics/probe server for the duration of a run.
type HTTPConfig struct {
	Enabled         bool          `mapstructure:"enabled"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	MetricsPath     string        `mapstructure:"metrics_path"`
	HealthzPath     string        `mapstructure:"healthz_path"`
	ReadyzPath      string        `mapstructure:"readyz_path"`
}

type KafkaConfig struct {
	Brokers           []string               `mapstructure:"brokers"`
	ClientID          string                 `mapstructure:"client_id"`
	Version           string                 `mapstructure:"version"`
	DialTimeout       time.Duration          `mapstructure:"dial_timeout"`
	ReadTimeout       time.Duration          `mapstructure:"read_timeout"`
	MetadataTimeout   time.Duration          `mapstructure:"metadata_timeout"`
	DateOffsetTimeout time.Duration          `mapstructure:"date_offset_timeout"`
	SASL              commonkafka.SASLConfig `mapstructure:"sasl"`
	TLS               commonkafka.TLSConfig  `mapstructure:"tls"`
	Backoff           backoff.Config         `mapstructure:"backoff"`
}

type LoaderConfig struct {
	MaxConcurrentTopics     int `mapstructure:"max_concurrent_topics"`
	MaxConcurrentPartitions int `mapstructure:"max_concurrent_partitions"`
}

// TopicConfig is one entry of the topics list.
type TopicConfig struct {
	Name             string        `mapstructure:"name"`
	ExportName       string        `mapstructure:"export_name"`
	KeyType          string        `mapstructure:"key_type"`
	Compacting       bool          `mapstructure:"compacting"`
	ExportRawMessage bool          `mapstructure:"export_raw_message"`
	Filter           filter.Config `mapstructure:"filter"`
	Partitions       []int32       `mapstructure:"partitions"`
	StartDate        *time.Time    `mapstructure:"start_date"`
	EndDate          *time.Time    `mapstructure:"end_date"`
}

// -----------------------------------------------------------------------------
// Load
// -----------------------------------------------------------------------------

func init() {
	defaults := map[string]any{
		"service_name":    "kafka-snapshot",
		"service_version": "v1.0.0",

		"logging.level":    "info",
		"logging.dev_mode": false,

		"telemetry.enabled":       false,
		"telemetry.otel_endpoint": "otel-collector:4317",
		"telemetry.insecure":      true,
		"telemetry.sampler_ratio": 1.0,

		"http.enabled":          false,
		"http.port":             8095,
		"http.read_timeout":     "10s",
		"http.write_timeout":    "15s",
		"http.idle_timeout":     "60s",
		"http.shutdown_timeout": "5s",
		"http.metrics_path":     "/metrics",
		"http.healthz_path":     "/healthz",
		"http.readyz_path":      "/readyz",

		"kafka.client_id":                "kafka-snapshot",
		"kafka.version":                  "2.8.0",
		"kafka.dial_timeout":             "10s",
		"kafka.read_timeout":             "30s",
		"kafka.metadata_timeout":         "10s",
		"kafka.date_offset_timeout":      "10s",
		"kafka.backoff.max_elapsed_time": "1m",

		"loader.max_concurrent_topics":     4,
		"loader.max_concurrent_partitions": 0,

		"export.sink":                     "file",
		"export.file.dir":                 "./snapshots",
		"export.backoff.max_elapsed_time": "1m",
		"export.redis.key_prefix":         "kafka-snapshot",
		"export.postgres.table":           "snapshot_records",
		"export.postgres.batch_size":      500,
		"export.kafka.required_acks":      "all",
		"export.kafka.compression":        "none",
	}
	for k, v := range defaults {
		configloader.RegisterDefaults(k, v)
	}
}

// Load reads the YAML file at path (optional), applies KAFKA_SNAPSHOT_*
// environment overrides and validates the result.
func Load(path string) (*Config, error) {
	var cfg Config
	if err := configloader.Load(path, EnvPrefix, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// -----------------------------------------------------------------------------
// Validation
// -----------------------------------------------------------------------------

func (c *Config) Validate() error {
	if c.ServiceName == "" {
		return fmt.Errorf("service_name is required")
	}
	if c.ServiceVersion == "" {
		return fmt.Errorf("service_version is required")
	}

	switch strings.ToLower(c.Logging.Level) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be one of [debug, info, warn, error]")
	}

	if c.Telemetry.Enabled && c.Telemetry.OTLPEndpoint == "" {
		return fmt.Errorf("telemetry.otel_endpoint is required when telemetry is enabled")
	}
	if c.HTTP.Enabled {
		if err := validateHTTP(&c.HTTP); err != nil {
			return err
		}
	}

	if err := c.Kafka.validate(); err != nil {
		return err
	}
	if c.Loader.MaxConcurrentTopics < 0 || c.Loader.MaxConcurrentPartitions < 0 {
		return fmt.Errorf("loader concurrency limits must not be negative")
	}
	if err := c.Export.Validate(); err != nil {
		return err
	}

	if len(c.Topics) == 0 {
		return fmt.Errorf("topics must contain at least one entry")
	}
	exportNames := make(map[string]string, len(c.Topics))
	for i, t := range c.Topics {
		if _, err := t.Build(); err != nil {
			return fmt.Errorf("topics[%d] (%s): %w", i, t.Name, err)
		}
		name := t.exportName()
		if prev, dup := exportNames[name]; dup {
			return fmt.Errorf("topics[%d] (%s): export_name %q already used by %s", i, t.Name, name, prev)
		}
		exportNames[name] = t.Name
	}
	return nil
}

func (k KafkaConfig) validate() error {
	if len(k.Brokers) == 0 {
		return fmt.Errorf("kafka.brokers is required")
	}
	durations := map[string]time.Duration{
		"kafka.metadata_timeout":    k.MetadataTimeout,
		"kafka.date_offset_timeout": k.DateOffsetTimeout,
	}
	for name, d := range durations {
		if d <= 0 {
			return fmt.Errorf("%s must be > 0", name)
		}
	}
	if err := k.SASL.Validate(); err != nil {
		return fmt.Errorf("kafka.sasl: %w", err)
	}
	if err := k.Backoff.Validate(); err != nil {
		return fmt.Errorf("kafka.backoff: %w", err)
	}
	return nil
}

func validateHTTP(h *HTTPConfig) error {
	if h.Port <= 0 || h.Port > 65535 {
		return fmt.Errorf("http.port must be between 1 and 65535")
	}
	durations := map[string]time.Duration{
		"http.read_timeout":     h.ReadTimeout,
		"http.write_timeout":    h.WriteTimeout,
		"http.idle_timeout":     h.IdleTimeout,
		"http.shutdown_timeout": h.ShutdownTimeout,
	}
	for k, d := range durations {
		if d <= 0 {
			return fmt.Errorf("%s must be > 0", k)
		}
	}
	paths := map[string]string{
		"http.metrics_path": h.MetricsPath,
		"http.healthz_path": h.HealthzPath,
		"http.readyz_path":  h.ReadyzPath,
	}
	for k, p := range paths {
		if !strings.HasPrefix(p, "/") {
			return fmt.Errorf("%s must start with '/'", k)
		}
	}
	return nil
}

// -----------------------------------------------------------------------------
// Topics
// -----------------------------------------------------------------------------

// Topic is a validated topic entry ready for loading and export.
type Topic struct {
	Snapshot *snapshot.Topic
	Keys     keys.Strategy
	Filter   filter.Filter
	Target   export.Target
}

func (t TopicConfig) exportName() string {
	if t.ExportName != "" {
		return t.ExportName
	}
	return t.Name + ".json"
}

// Build validates the entry and constructs its runtime pieces.
func (t TopicConfig) Build() (Topic, error) {
	keyType := t.KeyType
	if keyType == "" {
		keyType = string(keys.String)
	}
	kt, err := keys.ParseType(keyType)
	if err != nil {
		return Topic{}, err
	}
	if t.Compacting && kt == keys.Ignored {
		return Topic{}, &snapshot.ConfigurationError{
			Field:  "compacting",
			Reason: "cannot compact a topic whose keys are ignored",
		}
	}
	strategy, err := keys.StrategyFor(kt)
	if err != nil {
		return Topic{}, err
	}
	f, err := filter.New(kt, t.Filter)
	if err != nil {
		return Topic{}, err
	}
	st, err := snapshot.NewTopic(snapshot.TopicParams{
		Name:       t.Name,
		Compacting: t.Compacting,
		StartDate:  t.StartDate,
		EndDate:    t.EndDate,
		Partitions: t.Partitions,
	})
	if err != nil {
		return Topic{}, err
	}
	target := export.Target{ExportName: t.exportName(), RawValues: t.ExportRawMessage}
	if err := export.ValidateExportName(target.ExportName); err != nil {
		return Topic{}, err
	}
	return Topic{Snapshot: st, Keys: strategy, Filter: f, Target: target}, nil
}

// BuildTopics builds every topic, keeping only the names in only when it is
// non-empty. A name in only that is not configured is an error.
func (c *Config) BuildTopics(only []string) ([]Topic, error) {
	wanted := make(map[string]bool, len(only))
	for _, name := range only {
		wanted[name] = true
	}
	out := make([]Topic, 0, len(c.Topics))
	for _, tc := range c.Topics {
		if len(wanted) > 0 && !wanted[tc.Name] {
			continue
		}
		delete(wanted, tc.Name)
		t, err := tc.Build()
		if err != nil {
			return nil, fmt.Errorf("topic %s: %w", tc.Name, err)
		}
		out = append(out, t)
	}
	for _, name := range only {
		if wanted[name] {
			return nil, fmt.Errorf("topic %q is not configured", name)
		}
	}
	return out, nil
}

// -----------------------------------------------------------------------------
// Conversions
// -----------------------------------------------------------------------------

// Consumer returns the connection settings for snapshot reads.
func (c *Config) Consumer() consumer.Config {
	return consumer.Config{
		Brokers:     c.Kafka.Brokers,
		ClientID:    c.Kafka.ClientID,
		Version:     c.Kafka.Version,
		DialTimeout: c.Kafka.DialTimeout,
		ReadTimeout: c.Kafka.ReadTimeout,
		SASL:        c.Kafka.SASL,
		TLS:         c.Kafka.TLS,
		Backoff:     c.Kafka.Backoff,
	}
}

// Producer returns the settings of the kafka export sink.
func (c *Config) Producer() producer.Config {
	return producer.Config{
		Brokers:      c.Kafka.Brokers,
		ClientID:     c.Kafka.ClientID + "-exporter",
		Version:      c.Kafka.Version,
		RequiredAcks: c.Export.Kafka.RequiredAcks,
		Compression:  c.Export.Kafka.Compression,
		SASL:         c.Kafka.SASL,
		TLS:          c.Kafka.TLS,
		Backoff:      c.Export.Backoff,
	}
}

func (c *Config) HTTPServer() httpserver.Config {
	return httpserver.Config{
		Addr:            fmt.Sprintf(":%d", c.HTTP.Port),
		ReadTimeout:     c.HTTP.ReadTimeout,
		WriteTimeout:    c.HTTP.WriteTimeout,
		IdleTimeout:     c.HTTP.IdleTimeout,
		ShutdownTimeout: c.HTTP.ShutdownTimeout,
		MetricsPath:     c.HTTP.MetricsPath,
		HealthzPath:     c.HTTP.HealthzPath,
		ReadyzPath:      c.HTTP.ReadyzPath,
	}
}

func (c *Config) Tracing() telemetry.Config {
	return telemetry.Config{
		Enabled:        c.Telemetry.Enabled,
		Endpoint:       c.Telemetry.OTLPEndpoint,
		ServiceName:    c.ServiceName,
		ServiceVersion: c.ServiceVersion,
		Insecure:       c.Telemetry.Insecure,
		SamplerRatio:   c.Telemetry.SamplerRatio,
	}
}

// LoaderOptions returns the per-topic loader tuning.
func (c *Config) LoaderOptions() snapshot.LoaderOptions {
	return snapshot.LoaderOptions{
		MaxConcurrentPartitions: c.Loader.MaxConcurrentPartitions,
		DateOffsetTimeout:       c.Kafka.DateOffsetTimeout,
	}
}
