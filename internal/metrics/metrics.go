// internal/metrics/metrics.go
package metrics

import (
	"errors"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	TopicsLoaded    prometheus.Counter
	TopicsFailed    prometheus.Counter
	TopicsCanceled  prometheus.Counter
	MessagesRead    *prometheus.CounterVec
	MessagesEmitted *prometheus.CounterVec
	PartitionRead   *prometheus.HistogramVec
	SnapshotEntries *prometheus.GaugeVec
	ExportErrors    *prometheus.CounterVec
	ExportLatency   *prometheus.HistogramVec
)

func init() { newCollectors() }

func newCollectors() {
	TopicsLoaded = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "kafka_snapshot", Subsystem: "loader", Name: "topics_loaded_total",
		Help: "Topics loaded successfully",
	})
	TopicsFailed = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "kafka_snapshot", Subsystem: "loader", Name: "topics_failed_total",
		Help: "Topics whose load or export failed",
	})
	TopicsCanceled = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "kafka_snapshot", Subsystem: "loader", Name: "topics_canceled_total",
		Help: "Topics abandoned because the run was canceled",
	})
	MessagesRead = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "kafka_snapshot", Subsystem: "loader", Name: "messages_read_total",
		Help: "Messages read from partitions",
	}, []string{"topic"})
	MessagesEmitted = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "kafka_snapshot", Subsystem: "loader", Name: "messages_emitted_total",
		Help: "Messages that passed the key filter",
	}, []string{"topic"})
	PartitionRead = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "kafka_snapshot", Subsystem: "loader", Name: "partition_read_seconds",
		Help:    "Time to read one partition up to its watermark",
		Buckets: prometheus.ExponentialBuckets(0.01, 2, 14),
	}, []string{"topic"})
	SnapshotEntries = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "kafka_snapshot", Subsystem: "loader", Name: "snapshot_entries",
		Help: "Entries in the last snapshot of a topic",
	}, []string{"topic"})
	ExportErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "kafka_snapshot", Subsystem: "export", Name: "errors_total",
		Help: "Failed snapshot exports",
	}, []string{"sink"})
	ExportLatency = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "kafka_snapshot", Subsystem: "export", Name: "latency_seconds",
		Help:    "Snapshot export latency",
		Buckets: prometheus.DefBuckets,
	}, []string{"sink"})
}

// Register registers all collectors exactly once.
// If r == nil, prometheus.DefaultRegisterer is used; duplicates are ignored.
func Register(r prometheus.Registerer) {
	once.Do(func() {
		if r == nil {
			r = prometheus.DefaultRegisterer
		}
		collectors := []prometheus.Collector{
			TopicsLoaded,
			TopicsFailed,
			TopicsCanceled,
			MessagesRead,
			MessagesEmitted,
			PartitionRead,
			SnapshotEntries,
			ExportErrors,
			ExportLatency,
		}
		for _, c := range collectors {
			if err := r.Register(c); err != nil {
				var are prometheus.AlreadyRegisteredError
				if !errors.As(err, &are) {
					panic(err)
				}
			}
		}
	})
}
