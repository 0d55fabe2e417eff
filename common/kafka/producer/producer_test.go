// common/kafka/producer/producer_test.go
package producer

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/IBM/sarama"
	"github.com/IBM/sarama/mocks"

	"github.com/ntulenev/KafkaSnapshot-sub000/common/backoff"
	"github.com/ntulenev/KafkaSnapshot-sub000/common/logger"
)

type fakeClient struct {
	refreshErr error
	closed     int
}

func (f *fakeClient) RefreshMetadata(...string) error { return f.refreshErr }
func (f *fakeClient) Close() error                    { f.closed++; return nil }

var fastBackoff = backoff.Config{
	InitialInterval: time.Millisecond,
	Multiplier:      1,
	MaxInterval:     time.Millisecond,
	MaxElapsedTime:  50 * time.Millisecond,
}

func TestConfigDefaultsAndValidate(t *testing.T) {
	var cfg Config
	cfg.applyDefaults()
	if cfg.RequiredAcks != "all" || cfg.Compression != "none" || cfg.Timeout != 5*time.Second {
		t.Errorf("unexpected defaults: %+v", cfg)
	}
	if err := cfg.validate(); err == nil {
		t.Error("expected error without brokers")
	}
	cfg.Brokers = []string{"b:9092"}
	if err := cfg.validate(); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestBuildSaramaConfig(t *testing.T) {
	cfg := Config{Brokers: []string{"b:9092"}, RequiredAcks: "leader", Compression: "zstd"}
	cfg.applyDefaults()
	sc, err := buildSaramaConfig(cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sc.Producer.RequiredAcks != sarama.WaitForLocal {
		t.Errorf("expected WaitForLocal, got %v", sc.Producer.RequiredAcks)
	}
	if sc.Producer.Idempotent {
		t.Error("idempotence must be off unless acks=all")
	}
	if sc.Producer.Compression != sarama.CompressionZSTD {
		t.Errorf("expected zstd, got %v", sc.Producer.Compression)
	}

	for _, bad := range []Config{
		{Brokers: []string{"b"}, RequiredAcks: "some", Compression: "none", Version: "2.8.0"},
		{Brokers: []string{"b"}, RequiredAcks: "all", Compression: "brotli", Version: "2.8.0"},
		{Brokers: []string{"b"}, RequiredAcks: "all", Compression: "none", Version: "x"},
	} {
		if _, err := buildSaramaConfig(bad); err == nil {
			t.Errorf("expected error for %+v", bad)
		}
	}
}

func TestPublish_Success(t *testing.T) {
	sp := mocks.NewSyncProducer(t, mocks.NewTestConfig())
	sp.ExpectSendMessageWithCheckerFunctionAndSucceed(func(val []byte) error {
		if string(val) != "payload" {
			return errors.New("unexpected value " + string(val))
		}
		return nil
	})
	client := &fakeClient{}
	p := newProducer(sp, client, fastBackoff, logger.NewNop())

	if err := p.Publish(context.Background(), "snap.orders", []byte("k"), []byte("payload")); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if err := p.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if client.closed != 1 {
		t.Errorf("expected client closed once, got %d", client.closed)
	}
}

func TestPublish_RetriesTransientError(t *testing.T) {
	sp := mocks.NewSyncProducer(t, mocks.NewTestConfig())
	sp.ExpectSendMessageAndFail(sarama.ErrNotLeaderForPartition)
	sp.ExpectSendMessageAndSucceed()
	p := newProducer(sp, &fakeClient{}, fastBackoff, logger.NewNop())

	if err := p.Publish(context.Background(), "snap.orders", nil, []byte("v")); err != nil {
		t.Fatalf("expected retry to succeed, got %v", err)
	}
	_ = p.Close()
}

func TestPublish_PermanentError(t *testing.T) {
	sp := mocks.NewSyncProducer(t, mocks.NewTestConfig())
	sp.ExpectSendMessageAndFail(sarama.ErrMessageSizeTooLarge)
	p := newProducer(sp, &fakeClient{}, fastBackoff, logger.NewNop())

	err := p.Publish(context.Background(), "snap.orders", nil, []byte("v"))
	if !errors.Is(err, sarama.ErrMessageSizeTooLarge) {
		t.Fatalf("expected ErrMessageSizeTooLarge, got %v", err)
	}
	_ = p.Close()
}

func TestPing(t *testing.T) {
	sp := mocks.NewSyncProducer(t, mocks.NewTestConfig())
	client := &fakeClient{}
	p := newProducer(sp, client, fastBackoff, logger.NewNop())

	if err := p.Ping(context.Background()); err != nil {
		t.Errorf("Ping: %v", err)
	}
	client.refreshErr = sarama.ErrOutOfBrokers
	if err := p.Ping(context.Background()); !errors.Is(err, sarama.ErrOutOfBrokers) {
		t.Errorf("expected ErrOutOfBrokers, got %v", err)
	}
	_ = p.Close()
}
