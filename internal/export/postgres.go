// internal/export/postgres.go
package export

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres" // dialect registration
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/jackc/pgx/v5/stdlib" // pgx driver for database/sql
	"github.com/pressly/goose/v3"
	"go.uber.org/zap"

	"github.com/ntulenev/KafkaSnapshot-sub000/common/backoff"
	"github.com/ntulenev/KafkaSnapshot-sub000/common/logger"
)

const (
	dialectPostgres = "postgres"
	defaultTable    = "snapshot_records"
	migrationsDir   = "migrations"
)

//go:embed migrations/*.sql
var migrations embed.FS

// Column names of the export table.
const (
	colRunID      = "run_id"
	colTopic      = "topic"
	colExportName = "export_name"
	colKey        = "record_key"
	colValue      = "value"
	colPartition  = "partition"
	colOffset     = "record_offset"
	colTimestamp  = "ts"
	colExportedAt = "exported_at"
)

var tableNameRe = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*(\.[a-zA-Z_][a-zA-Z0-9_]*)?$`)

// PostgresConfig is the export.postgres block.
type PostgresConfig struct {
	DSN         string        `mapstructure:"dsn" json:"-"`
	Table       string        `mapstructure:"table"`
	BatchSize   int           `mapstructure:"batch_size"`
	Migrate     bool          `mapstructure:"migrate"`
	Replace     bool          `mapstructure:"replace"`
	ConnTimeout time.Duration `mapstructure:"conn_timeout"`
}

func (c *PostgresConfig) applyDefaults() {
	if c.Table == "" {
		c.Table = defaultTable
	}
	if c.BatchSize <= 0 {
		c.BatchSize = 500
	}
	if c.ConnTimeout <= 0 {
		c.ConnTimeout = 5 * time.Second
	}
}

// Validate checks the connection string and the table name.
func (c PostgresConfig) Validate() error {
	if c.DSN == "" {
		return errors.New("postgres sink: dsn required")
	}
	if c.Table != "" && !tableNameRe.MatchString(c.Table) {
		return fmt.Errorf("postgres sink: invalid table name %q", c.Table)
	}
	if c.Migrate && c.Table != "" && c.Table != defaultTable {
		return fmt.Errorf("postgres sink: migrations only manage table %q", defaultTable)
	}
	return nil
}

type statement struct {
	sql  string
	args []any
}

// txRunner executes statements in a single transaction.
type txRunner interface {
	RunInTx(ctx context.Context, stmts []statement) error
	Close()
}

type poolRunner struct{ pool *pgxpool.Pool }

func (r poolRunner) RunInTx(ctx context.Context, stmts []statement) error {
	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		for _, s := range stmts {
			if _, err := tx.Exec(ctx, s.sql, s.args...); err != nil {
				return err
			}
		}
		return nil
	})
}

func (r poolRunner) Close() { r.pool.Close() }

// PostgresSink inserts one row per record, tagged with the run id.
type PostgresSink struct {
	db        txRunner
	table     string
	batchSize int
	replace   bool
	now       func() time.Time
}

// OpenPostgres applies the schema migrations when enabled and connects a pool.
func OpenPostgres(ctx context.Context, cfg PostgresConfig, log *logger.Logger) (*PostgresSink, error) {
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	log = log.Named("postgres")
	if cfg.Migrate {
		if err := migrate(ctx, cfg.DSN); err != nil {
			return nil, err
		}
		log.Info("postgres sink: migrations applied")
	}

	pgxCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("postgres sink: parse dsn: %w", err)
	}

	cctx, cancel := context.WithTimeout(ctx, cfg.ConnTimeout)
	defer cancel()
	pool, err := pgxpool.NewWithConfig(cctx, pgxCfg)
	if err != nil {
		return nil, fmt.Errorf("postgres sink: connect: %w", err)
	}
	if err := pool.Ping(cctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres sink: ping failed: %w", err)
	}

	log.Info("postgres sink ready", zap.String("table", cfg.Table))
	return newPostgresSink(poolRunner{pool: pool}, cfg), nil
}

func migrate(ctx context.Context, dsn string) error {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return fmt.Errorf("postgres migrate: open DB: %w", err)
	}
	defer db.Close()

	goose.SetBaseFS(migrations)
	if err := goose.SetDialect(dialectPostgres); err != nil {
		return fmt.Errorf("postgres migrate: set dialect: %w", err)
	}
	if err := goose.UpContext(ctx, db, migrationsDir); err != nil {
		return fmt.Errorf("postgres migrate: up: %w", err)
	}
	return nil
}

func newPostgresSink(db txRunner, cfg PostgresConfig) *PostgresSink {
	cfg.applyDefaults()
	return &PostgresSink{
		db:        db,
		table:     cfg.Table,
		batchSize: cfg.BatchSize,
		replace:   cfg.Replace,
		now:       time.Now,
	}
}

func (s *PostgresSink) Name() string { return "postgres" }

func (s *PostgresSink) Write(ctx context.Context, doc *Document) error {
	stmts, err := s.statements(doc)
	if err != nil {
		return backoff.Permanent(err)
	}
	if len(stmts) == 0 {
		return nil
	}
	if err := s.db.RunInTx(ctx, stmts); err != nil {
		return fmt.Errorf("postgres sink: %s: %w", s.table, err)
	}
	return nil
}

func (s *PostgresSink) statements(doc *Document) ([]statement, error) {
	builder := goqu.Dialect(dialectPostgres)
	table := goqu.I(s.table)
	var stmts []statement

	if s.replace {
		q, args, err := builder.Delete(table).
			Where(goqu.C(colExportName).Eq(doc.ExportName)).
			Prepared(true).ToSQL()
		if err != nil {
			return nil, fmt.Errorf("postgres sink: build delete: %w", err)
		}
		stmts = append(stmts, statement{sql: q, args: args})
	}

	exportedAt := s.now().UTC()
	for start := 0; start < len(doc.Records); start += s.batchSize {
		end := min(start+s.batchSize, len(doc.Records))
		rows := make([]any, 0, end-start)
		for _, rec := range doc.Records[start:end] {
			value, err := json.Marshal(rec.Value)
			if err != nil {
				return nil, fmt.Errorf("postgres sink: marshal value: %w", err)
			}
			var key any
			if text, ok := rec.KeyText(); ok {
				key = text
			}
			rows = append(rows, goqu.Record{
				colRunID:      doc.RunID,
				colTopic:      doc.Topic,
				colExportName: doc.ExportName,
				colKey:        key,
				colValue:      string(value),
				colPartition:  rec.Meta.Partition,
				colOffset:     rec.Meta.Offset,
				colTimestamp:  rec.Meta.Timestamp,
				colExportedAt: exportedAt,
			})
		}
		q, args, err := builder.Insert(table).Rows(rows...).Prepared(true).ToSQL()
		if err != nil {
			return nil, fmt.Errorf("postgres sink: build insert: %w", err)
		}
		stmts = append(stmts, statement{sql: q, args: args})
	}
	return stmts, nil
}

func (s *PostgresSink) Close() error {
	s.db.Close()
	return nil
}
