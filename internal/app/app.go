// internal/app/app.go
package app

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/ntulenev/KafkaSnapshot-sub000/common"
	"github.com/ntulenev/KafkaSnapshot-sub000/common/httpserver"
	commonkafka "github.com/ntulenev/KafkaSnapshot-sub000/common/kafka"
	"github.com/ntulenev/KafkaSnapshot-sub000/common/kafka/consumer"
	"github.com/ntulenev/KafkaSnapshot-sub000/common/kafka/producer"
	"github.com/ntulenev/KafkaSnapshot-sub000/common/logger"
	"github.com/ntulenev/KafkaSnapshot-sub000/common/safe"
	"github.com/ntulenev/KafkaSnapshot-sub000/common/shutdown"
	"github.com/ntulenev/KafkaSnapshot-sub000/common/telemetry"
	"github.com/ntulenev/KafkaSnapshot-sub000/internal/config"
	"github.com/ntulenev/KafkaSnapshot-sub000/internal/export"
	"github.com/ntulenev/KafkaSnapshot-sub000/internal/metrics"
	"github.com/ntulenev/KafkaSnapshot-sub000/internal/snapshot"
	"github.com/ntulenev/KafkaSnapshot-sub000/internal/sorting"
)

// Options overrides parts of the wiring. Zero values build the real
// components from the configuration.
type Options struct {
	// Topics restricts the run to these configured topic names.
	Topics  []string
	Connect commonkafka.ConnFactory
	Sink    export.Sink
}

// Run loads and exports every selected topic. Per-topic failures are
// recorded in the report and do not stop the other topics; the returned
// error covers wiring failures only.
func Run(ctx context.Context, cfg *config.Config, opts Options, log *logger.Logger) (*Report, error) {
	// -------------------------------------------------------------------------
	// 0) Service label for all subsystems
	// -------------------------------------------------------------------------
	common.InitServiceName(cfg.ServiceName)

	// -------------------------------------------------------------------------
	// 1) Prometheus metrics
	// -------------------------------------------------------------------------
	metrics.Register(nil)

	// -------------------------------------------------------------------------
	// 2) OpenTelemetry
	// -------------------------------------------------------------------------
	shutdownTracer, err := telemetry.InitTracer(ctx, cfg.Tracing(), log)
	if err != nil {
		return nil, fmt.Errorf("telemetry init: %w", err)
	}
	defer shutdown.Graceful("tracer", 5*time.Second, shutdownTracer, log)

	// -------------------------------------------------------------------------
	// 3) Topics
	// -------------------------------------------------------------------------
	topics, err := cfg.BuildTopics(opts.Topics)
	if err != nil {
		return nil, fmt.Errorf("topics: %w", err)
	}

	// -------------------------------------------------------------------------
	// 4) Kafka connections
	// -------------------------------------------------------------------------
	connect := opts.Connect
	if connect == nil {
		if connect, err = consumer.NewFactory(cfg.Consumer(), log); err != nil {
			return nil, fmt.Errorf("kafka connection factory: %w", err)
		}
	}
	resolver, err := snapshot.NewResolver(cfg.Kafka.MetadataTimeout, log)
	if err != nil {
		return nil, fmt.Errorf("resolver: %w", err)
	}

	// -------------------------------------------------------------------------
	// 5) Export sink
	// -------------------------------------------------------------------------
	sink := opts.Sink
	if sink == nil {
		newProducer := func(ctx context.Context) (commonkafka.Producer, error) {
			return producer.New(ctx, cfg.Producer(), log)
		}
		if sink, err = export.Open(ctx, cfg.Export, newProducer, log); err != nil {
			return nil, fmt.Errorf("export sink init: %w", err)
		}
	}
	sorter, err := sorting.New(cfg.Export.Sort)
	if err != nil {
		_ = sink.Close()
		return nil, err
	}
	exporter, err := export.NewExporter(sink, sorter, cfg.Export.Backoff, log)
	if err != nil {
		_ = sink.Close()
		return nil, err
	}
	defer shutdown.Close("export sink", exporter.Close, log)

	// -------------------------------------------------------------------------
	// 6) HTTP server (metrics and probes while the run lasts)
	// -------------------------------------------------------------------------
	if cfg.HTTP.Enabled {
		srv, err := httpserver.New(cfg.HTTPServer(), nil, log)
		if err != nil {
			return nil, fmt.Errorf("http server init: %w", err)
		}
		srvCtx, stopSrv := context.WithCancel(context.Background())
		done := make(chan struct{})
		go func() {
			defer close(done)
			if err := srv.Start(srvCtx); err != nil {
				log.Error("http server failed", zap.Error(err))
			}
		}()
		defer func() {
			stopSrv()
			<-done
		}()
	}

	// -------------------------------------------------------------------------
	// 7) Load and export
	// -------------------------------------------------------------------------
	r := &runner{
		cfg:      cfg,
		resolver: resolver,
		connect:  connect,
		exporter: exporter,
		log:      log,
		runID:    export.NewRunID(),
	}
	return r.run(ctx, topics), nil
}

type runner struct {
	cfg      *config.Config
	resolver *snapshot.Resolver
	connect  commonkafka.ConnFactory
	exporter *export.Exporter
	log      *logger.Logger
	runID    string
}

func (r *runner) run(ctx context.Context, topics []config.Topic) *Report {
	ctx = logger.ContextWithRunID(ctx, r.runID)
	log := r.log.WithContext(ctx)
	log.Info("snapshot run started", zap.Int("topics", len(topics)))
	start := time.Now()

	report := &Report{RunID: r.runID}
	var mu sync.Mutex

	// Topic failures are collected, never returned, so one topic cannot
	// cancel the others.
	var g errgroup.Group
	if n := r.cfg.Loader.MaxConcurrentTopics; n > 0 {
		g.SetLimit(n)
	}
	for _, t := range topics {
		g.Go(func() error {
			res := r.topic(ctx, t)
			mu.Lock()
			report.add(res)
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	report.Duration = time.Since(start)
	report.sort()
	log.Info("snapshot run finished",
		zap.Int("loaded", len(report.Loaded)),
		zap.Int("failed", len(report.Failed)),
		zap.Int("abandoned", len(report.Abandoned)),
		zap.Duration("elapsed", report.Duration),
	)
	return report
}

// topic loads and exports one topic, turning panics into failures.
func (r *runner) topic(ctx context.Context, t config.Topic) TopicResult {
	name := t.Snapshot.Name()
	ctx = logger.ContextWithTopic(ctx, name)
	log := r.log.WithContext(ctx)
	res := TopicResult{Topic: name, ExportName: t.Target.ExportName}
	start := time.Now()

	err := safe.Call(func() error {
		loader, err := snapshot.NewLoader(r.resolver, t.Keys, r.cfg.LoaderOptions(), r.log)
		if err != nil {
			return err
		}
		snap, err := loader.Load(ctx, t.Snapshot, t.Filter, r.connect)
		if err != nil {
			return err
		}
		res.Entries = snap.Len()
		res.Stats = snap.Stats
		return r.exporter.Export(ctx, r.runID, snap, t.Target)
	})
	res.Duration = time.Since(start)

	var panicErr *safe.PanicError
	switch {
	case err == nil:
		res.Status = StatusLoaded
		metrics.TopicsLoaded.Inc()
		log.Info("topic snapshot done",
			zap.Int("entries", res.Entries),
			zap.Int64("read", res.Stats.Read),
			zap.Duration("elapsed", res.Duration),
		)
	case snapshot.IsCanceled(err) || (ctx.Err() != nil && errors.Is(err, ctx.Err())):
		res.Status = StatusAbandoned
		res.Err = err
		metrics.TopicsCanceled.Inc()
		log.Info("topic snapshot abandoned", zap.String("reason", err.Error()))
	case errors.As(err, &panicErr):
		res.Status = StatusFailed
		res.Err = err
		metrics.TopicsFailed.Inc()
		log.Error("topic snapshot panicked", zap.Any("panic", panicErr.Value), zap.ByteString("stack", panicErr.Stack))
	default:
		res.Status = StatusFailed
		res.Err = err
		metrics.TopicsFailed.Inc()
		log.Error("topic snapshot failed", zap.Error(err))
	}
	return res
}
