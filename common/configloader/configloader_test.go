package configloader

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

type sample struct {
	Name    string        `mapstructure:"name"`
	Timeout time.Duration `mapstructure:"timeout"`
	Brokers []string      `mapstructure:"brokers"`
	Debug   bool          `mapstructure:"debug"`
	Since   *time.Time    `mapstructure:"since"`
	Secret  string        `mapstructure:"secret" json:"-"`
}

func (s *sample) Validate() error {
	if s.Name == "" {
		return errors.New("name is required")
	}
	return nil
}

func writeFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoad_FileAndHooks(t *testing.T) {
	path := writeFile(t, `
name: snap
timeout: 15s
brokers: "b1:9092,b2:9092"
debug: "true"
since: "2024-01-02T03:04:05Z"
`)
	var cfg sample
	if err := Load(path, "CLTEST", &cfg); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Name != "snap" || cfg.Timeout != 15*time.Second || !cfg.Debug {
		t.Fatalf("unexpected config: %+v", cfg)
	}
	if len(cfg.Brokers) != 2 || cfg.Brokers[1] != "b2:9092" {
		t.Fatalf("brokers = %v", cfg.Brokers)
	}
	if cfg.Since == nil || !cfg.Since.Equal(time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)) {
		t.Fatalf("since = %v", cfg.Since)
	}
}

func TestLoad_DefaultsAndEnv(t *testing.T) {
	RegisterDefaults("name", "from-default")
	RegisterDefaults("timeout", "3s")
	t.Setenv("CLTEST2_TIMEOUT", "7s")

	var cfg sample
	if err := Load("", "CLTEST2", &cfg); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Name != "from-default" {
		t.Errorf("Name = %q; want from-default", cfg.Name)
	}
	if cfg.Timeout != 7*time.Second {
		t.Errorf("Timeout = %v; want env override 7s", cfg.Timeout)
	}
}

func TestLoad_ValidationError(t *testing.T) {
	path := writeFile(t, "name: \"\"\n")
	RegisterDefaults("name", "")
	var cfg sample
	err := Load(path, "CLTEST3", &cfg)
	if err == nil || !strings.Contains(err.Error(), "validation failed") {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	var cfg sample
	if err := Load(filepath.Join(t.TempDir(), "nope.yaml"), "CLTEST4", &cfg); err == nil {
		t.Fatal("expected error for a missing file")
	}
}

func TestPrintConfig_HidesSecrets(t *testing.T) {
	var buf bytes.Buffer
	if err := PrintConfig(&buf, sample{Name: "x", Secret: "hunter2"}); err != nil {
		t.Fatalf("PrintConfig: %v", err)
	}
	if strings.Contains(buf.String(), "hunter2") {
		t.Fatalf("secret leaked: %s", buf.String())
	}
}
