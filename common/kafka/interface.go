// common/kafka/interface.go
//
// Package kafka defines the minimal broker contracts used by the snapshot
// loader and the exporters. It does not import Sarama; implementations live
// in the consumer and producer subpackages.
package kafka

import (
	"context"
	"fmt"
	"time"
)

// Message is a record read from a partition.
type Message struct {
	Key       []byte // nil when the record has no key
	Value     []byte
	Topic     string
	Partition int32
	Offset    int64
	Timestamp time.Time
	Headers   map[string][]byte
}

// Conn is one broker connection. A Conn is owned by a single goroutine
// except for the metadata methods (Partitions, OffsetBounds,
// OffsetForTime), which are safe for concurrent use.
//
// Every blocking call observes ctx; a deadline on ctx bounds the call.
type Conn interface {
	// Partitions lists the partition ids of topic.
	Partitions(ctx context.Context, topic string) ([]int32, error)

	// OffsetBounds returns the [low, high) offsets currently visible.
	OffsetBounds(ctx context.Context, topic string, partition int32) (low, high int64, err error)

	// OffsetForTime returns the offset of the first message whose timestamp
	// is at or after ts. found is false when no such message exists.
	OffsetForTime(ctx context.Context, topic string, partition int32, ts time.Time) (offset int64, found bool, err error)

	// Assign starts reading partition from the connection default offset.
	Assign(topic string, partition int32) error

	// AssignAt starts reading partition at offset.
	AssignAt(topic string, partition int32, offset int64) error

	// Read blocks until the next message of the assigned partition
	// arrives, ctx is done, or the connection fails.
	Read(ctx context.Context) (*Message, error)

	// Close releases the connection.
	Close() error
}

// ConnFactory opens a new, unshared connection.
type ConnFactory func(ctx context.Context) (Conn, error)

// Producer publishes messages to Kafka.
type Producer interface {
	// Publish sends one message and waits for the configured acks;
	// transient failures are retried with back-off.
	Publish(ctx context.Context, topic string, key, value []byte) error
	// Ping refreshes metadata to check that the cluster is reachable.
	Ping(ctx context.Context) error
	Close() error
}

// ConnectionError reports a failed broker interaction on a connection.
type ConnectionError struct {
	Op        string // "dial", "partitions", "offsets", "assign", "read", "close"
	Topic     string
	Partition int32 // -1 when not partition specific
	Err       error
}

func (e *ConnectionError) Error() string {
	if e.Partition < 0 {
		return fmt.Sprintf("kafka: %s %q: %v", e.Op, e.Topic, e.Err)
	}
	return fmt.Sprintf("kafka: %s %s/%d: %v", e.Op, e.Topic, e.Partition, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }
