// common/redis/config_test.go
package redis

import (
	"context"
	"testing"

	"github.com/ntulenev/KafkaSnapshot-sub000/common/backoff"
	"github.com/ntulenev/KafkaSnapshot-sub000/common/logger"
)

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"missing addr", Config{}, true},
		{"negative db", Config{Addr: "localhost:6379", DB: -1}, true},
		{"bad backoff", Config{Addr: "localhost:6379", Backoff: backoff.Config{RandomizationFactor: 2}}, true},
		{"ok", Config{Addr: "localhost:6379", DB: 2}, false},
	}
	for _, tc := range tests {
		err := tc.cfg.Validate()
		if tc.wantErr != (err != nil) {
			t.Errorf("%s: wantErr=%v, got %v", tc.name, tc.wantErr, err)
		}
	}
}

func TestNew_InvalidConfig(t *testing.T) {
	if _, err := New(context.Background(), Config{}, logger.NewNop()); err == nil {
		t.Fatal("expected error for empty addr")
	}
}
