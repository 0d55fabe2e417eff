// common/logger/logger_test.go
package logger_test

import (
	"context"
	"testing"

	"github.com/ntulenev/KafkaSnapshot-sub000/common/logger"
)

func TestNew_InvalidLevel(t *testing.T) {
	_, err := logger.New(logger.Config{Level: "invalid", DevMode: false})
	if err == nil {
		t.Error("expected error for invalid level, got nil")
	}
}

func TestNew_ValidLevels(t *testing.T) {
	levels := []string{"debug", "info", "warn", "error"}
	for _, lvl := range levels {
		_, err := logger.New(logger.Config{Level: lvl, DevMode: true})
		if err != nil {
			t.Errorf("expected no error for level %s, got %v", lvl, err)
		}
	}
}

func TestNew_DefaultLevel(t *testing.T) {
	if _, err := logger.New(logger.Config{}); err != nil {
		t.Fatalf("expected empty level to default to info, got %v", err)
	}
}

func TestWithContext_RunAndTopic(t *testing.T) {
	raw, _ := logger.New(logger.Config{Level: "info", DevMode: true})
	ctx := context.Background()
	ctx = logger.ContextWithRunID(ctx, "run-123")
	ctx = logger.ContextWithTopic(ctx, "orders")
	enh := raw.WithContext(ctx)
	if enh == raw {
		t.Fatal("expected a derived logger when context carries fields")
	}
	enh.Info("test message")
}

func TestWithContext_EmptyReturnsSame(t *testing.T) {
	raw := logger.NewNop()
	if got := raw.WithContext(context.Background()); got != raw {
		t.Fatal("expected the same logger for an empty context")
	}
}

func TestSync_NoPanic(t *testing.T) {
	l, _ := logger.New(logger.Config{Level: "info", DevMode: true})
	l.Sync()
}
