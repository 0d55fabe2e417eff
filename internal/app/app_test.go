// internal/app/app_test.go
package app

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ntulenev/KafkaSnapshot-sub000/common/backoff"
	commonkafka "github.com/ntulenev/KafkaSnapshot-sub000/common/kafka"
	"github.com/ntulenev/KafkaSnapshot-sub000/common/logger"
	"github.com/ntulenev/KafkaSnapshot-sub000/common/safe"
	"github.com/ntulenev/KafkaSnapshot-sub000/internal/config"
	"github.com/ntulenev/KafkaSnapshot-sub000/internal/export"
)

var baseTime = time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)

type memRecord struct {
	key, value string
}

// memBroker serves fixed partitions; offsets start at zero.
type memBroker struct {
	topics map[string][][]memRecord
}

func (b *memBroker) connect(ctx context.Context) (commonkafka.Conn, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return &memConn{b: b}, nil
}

type memConn struct {
	b     *memBroker
	topic string
	part  int32
	pos   int64
}

func (c *memConn) partitions(topic string) ([][]memRecord, error) {
	parts, ok := c.b.topics[topic]
	if !ok {
		return nil, &commonkafka.ConnectionError{Op: "partitions", Topic: topic, Partition: -1, Err: errors.New("unknown topic")}
	}
	return parts, nil
}

func (c *memConn) Partitions(ctx context.Context, topic string) ([]int32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	parts, err := c.partitions(topic)
	if err != nil {
		return nil, err
	}
	ids := make([]int32, len(parts))
	for i := range parts {
		ids[i] = int32(i)
	}
	return ids, nil
}

func (c *memConn) OffsetBounds(ctx context.Context, topic string, partition int32) (int64, int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, 0, err
	}
	parts, err := c.partitions(topic)
	if err != nil {
		return 0, 0, err
	}
	return 0, int64(len(parts[partition])), nil
}

func (c *memConn) OffsetForTime(ctx context.Context, topic string, partition int32, ts time.Time) (int64, bool, error) {
	parts, err := c.partitions(topic)
	if err != nil {
		return 0, false, err
	}
	for off := range parts[partition] {
		if !baseTime.Add(time.Duration(off) * time.Minute).Before(ts) {
			return int64(off), true, nil
		}
	}
	return 0, false, nil
}

func (c *memConn) Assign(topic string, partition int32) error {
	return c.AssignAt(topic, partition, 0)
}

func (c *memConn) AssignAt(topic string, partition int32, offset int64) error {
	c.topic, c.part, c.pos = topic, partition, offset
	return nil
}

func (c *memConn) Read(ctx context.Context) (*commonkafka.Message, error) {
	recs := c.b.topics[c.topic][c.part]
	if c.pos >= int64(len(recs)) {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	r := recs[c.pos]
	msg := &commonkafka.Message{
		Key:       []byte(r.key),
		Value:     []byte(r.value),
		Topic:     c.topic,
		Partition: c.part,
		Offset:    c.pos,
		Timestamp: baseTime.Add(time.Duration(c.pos) * time.Minute),
	}
	c.pos++
	return msg, nil
}

func (c *memConn) Close() error { return nil }

type memSink struct {
	mu    sync.Mutex
	docs  map[string]*export.Document
	panic bool
	err   error
}

func (s *memSink) Name() string { return "mem" }

func (s *memSink) Write(_ context.Context, doc *export.Document) error {
	if s.panic {
		panic("sink exploded")
	}
	if s.err != nil {
		return backoff.Permanent(s.err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.docs == nil {
		s.docs = make(map[string]*export.Document)
	}
	s.docs[doc.Topic] = doc
	return nil
}

func (s *memSink) Close() error { return nil }

func testConfig(topics ...config.TopicConfig) *config.Config {
	return &config.Config{
		ServiceName:    "kafka-snapshot-test",
		ServiceVersion: "test",
		Kafka: config.KafkaConfig{
			Brokers:           []string{"mem:9092"},
			MetadataTimeout:   time.Second,
			DateOffsetTimeout: time.Second,
		},
		Loader: config.LoaderConfig{MaxConcurrentTopics: 2},
		Export: export.Config{
			Sink:    "file",
			Backoff: backoff.Config{InitialInterval: time.Millisecond, MaxElapsedTime: 100 * time.Millisecond},
		},
		Topics: topics,
	}
}

func testBroker() *memBroker {
	return &memBroker{topics: map[string][][]memRecord{
		"orders": {
			{{"a", "1"}, {"b", "1"}, {"a", "2"}},
			{{"c", "1"}},
		},
		"users": {
			{{"u1", "alice"}, {"u2", "bob"}},
		},
	}}
}

func TestRun_LoadsAndExportsAllTopics(t *testing.T) {
	sink := &memSink{}
	cfg := testConfig(
		config.TopicConfig{Name: "orders", Compacting: true},
		config.TopicConfig{Name: "users"},
	)

	report, err := Run(context.Background(), cfg, Options{Connect: testBroker().connect, Sink: sink}, logger.NewNop())
	require.NoError(t, err)
	require.True(t, report.OK(), "unexpected failures: %v", report.Err())
	require.Len(t, report.Loaded, 2)
	assert.NotEmpty(t, report.RunID)
	assert.Equal(t, "orders", report.Loaded[0].Topic)
	assert.Equal(t, 3, report.Loaded[0].Entries, "compaction keeps one entry per key")
	assert.Equal(t, int64(4), report.Loaded[0].Stats.Read)

	orders := sink.docs["orders"]
	require.NotNil(t, orders)
	assert.Equal(t, "orders.json", orders.ExportName)
	assert.Equal(t, report.RunID, orders.RunID)
	assert.Len(t, sink.docs["users"].Records, 2)
}

func TestRun_FailingTopicDoesNotStopOthers(t *testing.T) {
	sink := &memSink{}
	cfg := testConfig(
		config.TopicConfig{Name: "missing"},
		config.TopicConfig{Name: "users"},
	)

	report, err := Run(context.Background(), cfg, Options{Connect: testBroker().connect, Sink: sink}, logger.NewNop())
	require.NoError(t, err)
	assert.False(t, report.OK())
	require.Len(t, report.Failed, 1)
	assert.Equal(t, "missing", report.Failed[0].Topic)
	require.Len(t, report.Loaded, 1)
	assert.Equal(t, "users", report.Loaded[0].Topic)

	var ce *commonkafka.ConnectionError
	assert.ErrorAs(t, report.Err(), &ce)
}

func TestRun_ExportFailureFailsTopic(t *testing.T) {
	sink := &memSink{err: errors.New("disk full")}
	cfg := testConfig(config.TopicConfig{Name: "users"})

	report, err := Run(context.Background(), cfg, Options{Connect: testBroker().connect, Sink: sink}, logger.NewNop())
	require.NoError(t, err)
	require.Len(t, report.Failed, 1)
	assert.ErrorContains(t, report.Err(), "disk full")
}

func TestRun_PanicIsIsolated(t *testing.T) {
	sink := &memSink{panic: true}
	cfg := testConfig(config.TopicConfig{Name: "users"})

	report, err := Run(context.Background(), cfg, Options{Connect: testBroker().connect, Sink: sink}, logger.NewNop())
	require.NoError(t, err)
	require.Len(t, report.Failed, 1)
	var pe *safe.PanicError
	assert.ErrorAs(t, report.Failed[0].Err, &pe)
}

func TestRun_CanceledTopicsAreAbandoned(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	cfg := testConfig(config.TopicConfig{Name: "orders"}, config.TopicConfig{Name: "users"})

	report, err := Run(ctx, cfg, Options{Connect: testBroker().connect, Sink: &memSink{}}, logger.NewNop())
	require.NoError(t, err)
	assert.True(t, report.OK(), "cancellation is not a failure")
	assert.Len(t, report.Abandoned, 2)
	assert.Empty(t, report.Loaded)
}

func TestRun_TopicSelection(t *testing.T) {
	sink := &memSink{}
	cfg := testConfig(config.TopicConfig{Name: "orders"}, config.TopicConfig{Name: "users"})

	report, err := Run(context.Background(), cfg, Options{Topics: []string{"users"}, Connect: testBroker().connect, Sink: sink}, logger.NewNop())
	require.NoError(t, err)
	require.Len(t, report.Loaded, 1)
	assert.Equal(t, "users", report.Loaded[0].Topic)
	assert.NotContains(t, sink.docs, "orders")

	_, err = Run(context.Background(), cfg, Options{Topics: []string{"nope"}, Connect: testBroker().connect, Sink: sink}, logger.NewNop())
	assert.Error(t, err)
}

func TestRun_EndDateAndPartitionSubset(t *testing.T) {
	sink := &memSink{}
	end := baseTime.Add(90 * time.Second)
	cfg := testConfig(config.TopicConfig{
		Name:       "orders",
		Partitions: []int32{0},
		EndDate:    &end,
	})

	report, err := Run(context.Background(), cfg, Options{Connect: testBroker().connect, Sink: sink}, logger.NewNop())
	require.NoError(t, err)
	require.Len(t, report.Loaded, 1)
	// partition 0 only, messages at +0m and +1m; the one at +2m is past the end date
	assert.Len(t, sink.docs["orders"].Records, 2)
}
