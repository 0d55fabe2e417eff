// internal/export/file.go
package export

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/ntulenev/KafkaSnapshot-sub000/common/backoff"
)

// FileConfig is the export.file block.
type FileConfig struct {
	Dir    string `mapstructure:"dir"`
	Indent bool   `mapstructure:"indent"`
}

// FileSink writes each document to <dir>/<export_name> as a JSON array.
type FileSink struct {
	dir    string
	indent bool
}

// NewFileSink creates dir when missing.
func NewFileSink(cfg FileConfig) (*FileSink, error) {
	dir := cfg.Dir
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("file sink: create dir: %w", err)
	}
	return &FileSink{dir: dir, indent: cfg.Indent}, nil
}

func (s *FileSink) Name() string { return "file" }

// Write replaces the target file atomically.
func (s *FileSink) Write(ctx context.Context, doc *Document) error {
	if err := ValidateExportName(doc.ExportName); err != nil {
		return backoff.Permanent(err)
	}
	var (
		data []byte
		err  error
	)
	if s.indent {
		data, err = json.MarshalIndent(doc.Records, "", "  ")
	} else {
		data, err = doc.MarshalRecords()
	}
	if err != nil {
		return backoff.Permanent(fmt.Errorf("file sink: marshal: %w", err))
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(s.dir, "."+doc.ExportName+".*.tmp")
	if err != nil {
		return fmt.Errorf("file sink: create temp: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("file sink: write: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("file sink: sync: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("file sink: close: %w", err)
	}
	if err := os.Rename(tmp.Name(), filepath.Join(s.dir, doc.ExportName)); err != nil {
		return fmt.Errorf("file sink: rename: %w", err)
	}
	return nil
}

func (s *FileSink) Close() error { return nil }
