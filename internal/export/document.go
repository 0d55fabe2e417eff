// internal/export/document.go
package export

import (
	"time"

	"github.com/google/uuid"
	jsoniter "github.com/json-iterator/go"

	"github.com/ntulenev/KafkaSnapshot-sub000/internal/snapshot"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// NewRunID returns a fresh identifier shared by all exports of one run.
func NewRunID() string { return uuid.NewString() }

// Target names the exported artifact of one topic.
type Target struct {
	ExportName string
	// RawValues embeds values that are valid JSON as JSON instead of strings.
	RawValues bool
}

// Meta is the per-record broker metadata.
type Meta struct {
	Timestamp time.Time `json:"timestamp"`
	Partition int32     `json:"partition"`
	Offset    int64     `json:"offset"`
}

// Record is one exported entry.
type Record struct {
	Key   any  `json:"key,omitempty"`
	Value any  `json:"value"`
	Meta  Meta `json:"meta"`

	keyText string // rendered key, "" for null keys
}

// KeyText is the key rendered as text; ok is false for null keys.
func (r Record) KeyText() (string, bool) { return r.keyText, r.Key != nil }

// Document is a snapshot prepared for a sink.
type Document struct {
	RunID      string
	Topic      string
	ExportName string
	Compacted  bool
	CreatedAt  time.Time
	Records    []Record
}

// NewDocument renders entries in their current order.
func NewDocument(runID string, snap *snapshot.Snapshot, target Target, now time.Time) *Document {
	doc := &Document{
		RunID:      runID,
		Topic:      snap.Topic,
		ExportName: target.ExportName,
		Compacted:  snap.Compacted,
		CreatedAt:  now.UTC(),
		Records:    make([]Record, 0, len(snap.Entries)),
	}
	for _, e := range snap.Entries {
		rec := Record{
			Key:   e.Key.Render(),
			Value: renderValue(e.Value.Value, target.RawValues),
			Meta: Meta{
				Timestamp: e.Value.Timestamp.UTC(),
				Partition: e.Partition,
				Offset:    e.Offset,
			},
		}
		if !e.Key.IsNull() {
			rec.keyText = e.Key.String()
		}
		doc.Records = append(doc.Records, rec)
	}
	return doc
}

func renderValue(v []byte, raw bool) any {
	if v == nil {
		return nil
	}
	if raw && json.Valid(v) {
		return jsoniter.RawMessage(v)
	}
	return string(v)
}

// MarshalRecords encodes the records as a JSON array.
func (d *Document) MarshalRecords() ([]byte, error) {
	return json.Marshal(d.Records)
}
