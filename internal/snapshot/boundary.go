// internal/snapshot/boundary.go
package snapshot

import (
	"context"
	"time"

	"github.com/ntulenev/KafkaSnapshot-sub000/common/kafka"
)

// Boundary is the [Low, High) offset range of one partition at resolve time.
type Boundary struct {
	Topic     string
	Partition int32
	Low       int64
	High      int64 // exclusive
}

// TopicBoundaries holds the readable boundaries of a topic, ordered by
// partition id.
type TopicBoundaries struct {
	Topic      string
	Partitions []Boundary
}

// IsReadable reports whether the partition holds at least one message.
func (b Boundary) IsReadable() bool { return b.High > b.Low }

// IsBoundaryReached reports whether lastOffset is the last offset in range,
// or past it. Readers stop once it returns true.
func (b Boundary) IsBoundaryReached(lastOffset int64) bool {
	return lastOffset >= b.High-1
}

// Position assigns conn to the partition at the connection default offset.
func (b Boundary) Position(conn kafka.Conn) error {
	if conn == nil {
		return &ArgumentError{Name: "connection"}
	}
	return conn.Assign(b.Topic, b.Partition)
}

// PositionAt assigns conn to the first message at or after from. It returns
// false without assigning when no such message exists below High.
func (b Boundary) PositionAt(ctx context.Context, conn kafka.Conn, from time.Time, timeout time.Duration) (bool, error) {
	if conn == nil {
		return false, &ArgumentError{Name: "connection"}
	}
	if timeout <= 0 {
		return false, &ConfigurationError{Field: "date offset timeout", Reason: "must be positive"}
	}

	var (
		offset int64
		found  bool
	)
	err := boundedCall(ctx, timeout, "offset for time", b.Topic, b.Partition, func(ctx context.Context) error {
		var err error
		offset, found, err = conn.OffsetForTime(ctx, b.Topic, b.Partition, from)
		return err
	})
	if err != nil {
		return false, err
	}
	// Messages appended after resolve time are not part of this snapshot.
	if !found || offset >= b.High {
		return false, nil
	}
	if offset < b.Low {
		offset = b.Low
	}
	if err := conn.AssignAt(b.Topic, b.Partition, offset); err != nil {
		return false, err
	}
	return true, nil
}
