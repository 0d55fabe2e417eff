// internal/snapshot/snapshot.go
package snapshot

import (
	"time"

	"github.com/ntulenev/KafkaSnapshot-sub000/internal/keys"
)

// DatedValue is a message payload and its broker timestamp.
type DatedValue struct {
	Value     []byte
	Timestamp time.Time
}

// Entry is one record of a snapshot.
type Entry struct {
	Key       keys.Key
	Value     DatedValue
	Partition int32
	Offset    int64
}

// Snapshot is the result of loading one topic. When Compacted, every
// non-null key appears once; otherwise Entries keeps every matching
// message in partition-local order.
type Snapshot struct {
	Topic     string
	Compacted bool
	Entries   []Entry
	Stats     Stats
}

// Stats summarizes a load.
type Stats struct {
	Partitions int   // partitions read
	Read       int64 // messages read from the broker
	Emitted    int64 // messages that passed the filter, before compaction
}

// Len returns the number of entries.
func (s *Snapshot) Len() int { return len(s.Entries) }

// Lookup returns the value stored for key. On a raw snapshot it returns
// the last matching entry.
func (s *Snapshot) Lookup(key keys.Key) (DatedValue, bool) {
	if key.IsNull() {
		return DatedValue{}, false
	}
	for i := len(s.Entries) - 1; i >= 0; i-- {
		e := s.Entries[i]
		if !e.Key.IsNull() && e.Key.Identity() == key.Identity() {
			return e.Value, true
		}
	}
	return DatedValue{}, false
}

// compact keeps the last entry per key in first-seen key order and drops
// null keys. Entries arrive grouped per partition, so "last" is the
// highest offset only when each key lives in one partition.
func compact(entries []Entry) []Entry {
	index := make(map[string]int, len(entries))
	out := make([]Entry, 0, len(entries))
	for _, e := range entries {
		if e.Key.IsNull() {
			continue
		}
		id := e.Key.Identity()
		if i, ok := index[id]; ok {
			out[i] = e
			continue
		}
		index[id] = len(out)
		out = append(out, e)
	}
	return out
}
