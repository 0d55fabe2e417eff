package snapshot

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ntulenev/KafkaSnapshot-sub000/common/kafka"
)

var errReadPastEnd = errors.New("fake: read past the last message")

type fakePartition struct {
	low  int64
	msgs []kafka.Message
	// extraHigh reports a high watermark above the stored messages, so
	// readers block at the end as they would on a live partition.
	extraHigh int64
	// highOverride, when set, is reported as the high watermark as is.
	highOverride int64
	readErr      error
}

func (p *fakePartition) high() int64 {
	if p.highOverride > 0 {
		return p.highOverride
	}
	return p.low + int64(len(p.msgs)) + p.extraHigh
}

// fakeBroker is an in-memory kafka.Conn backend for one topic.
type fakeBroker struct {
	mu            sync.Mutex
	topic         string
	partitions    map[int32]*fakePartition
	blockMetadata bool
	blockOffsets  map[int32]bool
	dialErr       error

	opened int
	closed int
	reads  map[int32]int
}

func newFakeBroker(topic string) *fakeBroker {
	return &fakeBroker{topic: topic, partitions: map[int32]*fakePartition{}, reads: map[int32]int{}}
}

type rec struct {
	key   *string
	value string
	ts    time.Time
}

func k(s string) *string { return &s }

var baseTime = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

// add appends records to partition id starting at low.
func (b *fakeBroker) add(id int32, low int64, recs ...rec) *fakePartition {
	p := &fakePartition{low: low}
	for i, r := range recs {
		m := kafka.Message{
			Topic:     b.topic,
			Partition: id,
			Offset:    low + int64(i),
			Value:     []byte(r.value),
			Timestamp: r.ts,
		}
		if r.key != nil {
			m.Key = []byte(*r.key)
		}
		if m.Timestamp.IsZero() {
			m.Timestamp = baseTime.Add(time.Duration(i) * time.Minute)
		}
		p.msgs = append(p.msgs, m)
	}
	b.partitions[id] = p
	return p
}

func (b *fakeBroker) factory() kafka.ConnFactory {
	return func(ctx context.Context) (kafka.Conn, error) {
		if b.dialErr != nil {
			return nil, b.dialErr
		}
		b.mu.Lock()
		defer b.mu.Unlock()
		b.opened++
		return &fakeConn{b: b, partition: -1}, nil
	}
}

func (b *fakeBroker) counts() (opened, closed int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.opened, b.closed
}

func (b *fakeBroker) readsOf(id int32) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.reads[id]
}

type fakeConn struct {
	b         *fakeBroker
	partition int32
	next      int64
	closed    bool
}

func (c *fakeConn) lookup(topic string, id int32) (*fakePartition, error) {
	if topic != c.b.topic {
		return nil, &kafka.ConnectionError{Op: "metadata", Topic: topic, Partition: id, Err: errors.New("unknown topic")}
	}
	p, ok := c.b.partitions[id]
	if !ok {
		return nil, &kafka.ConnectionError{Op: "metadata", Topic: topic, Partition: id, Err: errors.New("unknown partition")}
	}
	return p, nil
}

func (c *fakeConn) Partitions(ctx context.Context, topic string) ([]int32, error) {
	if c.b.blockMetadata {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if topic != c.b.topic {
		return nil, &kafka.ConnectionError{Op: "partitions", Topic: topic, Partition: -1, Err: errors.New("unknown topic")}
	}
	ids := make([]int32, 0, len(c.b.partitions))
	for id := range c.b.partitions {
		ids = append(ids, id)
	}
	return ids, nil
}

func (c *fakeConn) OffsetBounds(ctx context.Context, topic string, id int32) (int64, int64, error) {
	if c.b.blockOffsets[id] {
		<-ctx.Done()
		return 0, 0, ctx.Err()
	}
	p, err := c.lookup(topic, id)
	if err != nil {
		return 0, 0, err
	}
	return p.low, p.high(), nil
}

func (c *fakeConn) OffsetForTime(_ context.Context, topic string, id int32, ts time.Time) (int64, bool, error) {
	p, err := c.lookup(topic, id)
	if err != nil {
		return 0, false, err
	}
	for _, m := range p.msgs {
		if !m.Timestamp.Before(ts) {
			return m.Offset, true, nil
		}
	}
	return 0, false, nil
}

func (c *fakeConn) Assign(topic string, id int32) error {
	p, err := c.lookup(topic, id)
	if err != nil {
		return err
	}
	return c.AssignAt(topic, id, p.low)
}

func (c *fakeConn) AssignAt(topic string, id int32, offset int64) error {
	if c.partition >= 0 {
		return fmt.Errorf("fake: already assigned to %d", c.partition)
	}
	if _, err := c.lookup(topic, id); err != nil {
		return err
	}
	c.partition = id
	c.next = offset
	return nil
}

func (c *fakeConn) Read(ctx context.Context) (*kafka.Message, error) {
	if c.partition < 0 {
		return nil, errors.New("fake: not assigned")
	}
	p := c.b.partitions[c.partition]
	if p.readErr != nil {
		return nil, p.readErr
	}
	// Offsets may have gaps: deliver the first stored message at or after next.
	idx := -1
	for i := range p.msgs {
		if p.msgs[i].Offset >= c.next {
			idx = i
			break
		}
	}
	if idx < 0 {
		if p.extraHigh > 0 {
			<-ctx.Done()
			return nil, ctx.Err()
		}
		return nil, errReadPastEnd
	}
	c.b.mu.Lock()
	c.b.reads[c.partition]++
	c.b.mu.Unlock()
	m := p.msgs[idx]
	c.next = m.Offset + 1
	return &m, nil
}

func (c *fakeConn) Close() error {
	c.b.mu.Lock()
	defer c.b.mu.Unlock()
	if !c.closed {
		c.closed = true
		c.b.closed++
	}
	return nil
}
