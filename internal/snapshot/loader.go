// internal/snapshot/loader.go
package snapshot

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/ntulenev/KafkaSnapshot-sub000/common/kafka"
	"github.com/ntulenev/KafkaSnapshot-sub000/common/logger"
	"github.com/ntulenev/KafkaSnapshot-sub000/internal/keys"
	"github.com/ntulenev/KafkaSnapshot-sub000/internal/metrics"
)

// KeyFilter selects the records kept in a snapshot.
type KeyFilter interface {
	IsMatch(k keys.Key) bool
}

// KeyDecoder turns raw record keys into keys.Key.
type KeyDecoder interface {
	Decode(raw []byte) (keys.Key, error)
}

// LoaderOptions tunes a Loader.
type LoaderOptions struct {
	// MaxConcurrentPartitions bounds the partition readers of one load;
	// zero starts one reader per partition.
	MaxConcurrentPartitions int
	// DateOffsetTimeout bounds the timestamp lookup; zero uses the
	// resolver timeout.
	DateOffsetTimeout time.Duration
}

// Loader reads a topic up to its watermarks.
type Loader struct {
	resolver *Resolver
	decoder  KeyDecoder
	opts     LoaderOptions
	log      *logger.Logger
}

// NewLoader returns a Loader using resolver for watermarks and decoder for
// record keys.
func NewLoader(resolver *Resolver, decoder KeyDecoder, opts LoaderOptions, log *logger.Logger) (*Loader, error) {
	if resolver == nil {
		return nil, &ArgumentError{Name: "resolver"}
	}
	if decoder == nil {
		return nil, &ArgumentError{Name: "key decoder"}
	}
	if opts.MaxConcurrentPartitions < 0 {
		return nil, &ConfigurationError{Field: "max concurrent partitions", Reason: "must not be negative"}
	}
	if opts.DateOffsetTimeout < 0 {
		return nil, &ConfigurationError{Field: "date offset timeout", Reason: "must be positive"}
	}
	if opts.DateOffsetTimeout == 0 {
		opts.DateOffsetTimeout = resolver.Timeout()
	}
	if log == nil {
		log = logger.NewNop()
	}
	return &Loader{resolver: resolver, decoder: decoder, opts: opts, log: log.Named("loader")}, nil
}

// partitionResult is written by exactly one reader goroutine.
type partitionResult struct {
	entries []Entry
	read    int64
}

// Load reads every readable partition of topic concurrently, each reader on
// its own connection, and merges the results. The first reader error
// cancels the others and fails the load.
func (l *Loader) Load(ctx context.Context, topic *Topic, filter KeyFilter, connect kafka.ConnFactory) (*Snapshot, error) {
	switch {
	case topic == nil:
		return nil, &ArgumentError{Name: "topic"}
	case filter == nil:
		return nil, &ArgumentError{Name: "key filter"}
	case connect == nil:
		return nil, &ArgumentError{Name: "connection factory"}
	}

	ctx, span := tracer.Start(ctx, "Load", trace.WithAttributes(
		attribute.String("topic", topic.Name()),
		attribute.Bool("compacting", topic.Compacting()),
	))
	defer span.End()
	log := l.log.WithContext(ctx).With(zap.String("topic", topic.Name()))

	tb, err := l.resolver.Resolve(ctx, topic.Name(), connect)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	bounds := make([]Boundary, 0, len(tb.Partitions))
	for _, b := range tb.Partitions {
		if topic.includes(b.Partition) {
			bounds = append(bounds, b)
		}
	}
	log.Debug("reading partitions", zap.Int("count", len(bounds)))

	results := make([]partitionResult, len(bounds))
	g, gctx := errgroup.WithContext(ctx)
	if l.opts.MaxConcurrentPartitions > 0 {
		g.SetLimit(l.opts.MaxConcurrentPartitions)
	}
	for i, b := range bounds {
		g.Go(func() error {
			res, err := l.readPartition(gctx, topic, b, filter, connect)
			results[i] = res
			return err
		})
	}
	if err := g.Wait(); err != nil {
		span.RecordError(err)
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, err
	}

	snap := &Snapshot{Topic: topic.Name(), Compacted: topic.Compacting()}
	snap.Stats.Partitions = len(bounds)
	for _, r := range results {
		snap.Entries = append(snap.Entries, r.entries...)
		snap.Stats.Read += r.read
		snap.Stats.Emitted += int64(len(r.entries))
	}
	if topic.Compacting() {
		snap.Entries = compact(snap.Entries)
	}

	metrics.SnapshotEntries.WithLabelValues(topic.Name()).Set(float64(len(snap.Entries)))
	span.SetAttributes(attribute.Int("entries", len(snap.Entries)))
	log.Info("topic loaded",
		zap.Int("partitions", snap.Stats.Partitions),
		zap.Int64("read", snap.Stats.Read),
		zap.Int("entries", len(snap.Entries)),
	)
	return snap, nil
}

func (l *Loader) readPartition(ctx context.Context, topic *Topic, b Boundary, filter KeyFilter, connect kafka.ConnFactory) (res partitionResult, err error) {
	ctx, span := tracer.Start(ctx, "ReadPartition", trace.WithAttributes(
		attribute.String("topic", b.Topic),
		attribute.Int("partition", int(b.Partition)),
		attribute.Int64("low", b.Low),
		attribute.Int64("high", b.High),
	))
	defer func() {
		if err != nil {
			span.RecordError(err)
		}
		span.End()
	}()
	start := time.Now()

	conn, err := connect(ctx)
	if err != nil {
		return res, err
	}
	defer func() {
		if cerr := conn.Close(); cerr != nil {
			l.log.WithContext(ctx).Warn("close partition connection",
				zap.String("topic", b.Topic), zap.Int32("partition", b.Partition), zap.Error(cerr))
		}
	}()

	if from, ok := topic.StartDate(); ok {
		positioned, err := b.PositionAt(ctx, conn, from, l.opts.DateOffsetTimeout)
		if err != nil {
			return res, err
		}
		if !positioned {
			l.log.WithContext(ctx).Debug("no messages after start date",
				zap.String("topic", b.Topic), zap.Int32("partition", b.Partition))
			return res, nil
		}
	} else if err := b.Position(conn); err != nil {
		return res, err
	}

	end, hasEnd := topic.EndDate()
	for {
		msg, err := conn.Read(ctx)
		if err != nil {
			return res, err
		}
		// A record at High-1 that is never delivered (a transaction marker)
		// leaves the next delivery beyond the watermark.
		if msg.Offset >= b.High {
			break
		}
		res.read++
		metrics.MessagesRead.WithLabelValues(b.Topic).Inc()

		if hasEnd && msg.Timestamp.After(end) {
			break
		}

		key, err := l.decoder.Decode(msg.Key)
		if err != nil {
			return res, fmt.Errorf("snapshot: %s/%d offset %d: %w", b.Topic, b.Partition, msg.Offset, err)
		}
		if filter.IsMatch(key) {
			res.entries = append(res.entries, Entry{
				Key:       key,
				Value:     DatedValue{Value: msg.Value, Timestamp: msg.Timestamp},
				Partition: msg.Partition,
				Offset:    msg.Offset,
			})
			metrics.MessagesEmitted.WithLabelValues(b.Topic).Inc()
		}
		if b.IsBoundaryReached(msg.Offset) {
			break
		}
	}

	metrics.PartitionRead.WithLabelValues(b.Topic).Observe(time.Since(start).Seconds())
	return res, nil
}
