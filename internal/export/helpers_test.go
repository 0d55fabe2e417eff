// internal/export/helpers_test.go
package export

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ntulenev/KafkaSnapshot-sub000/internal/keys"
	"github.com/ntulenev/KafkaSnapshot-sub000/internal/snapshot"
)

var baseTime = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func strKey(t *testing.T, s string) keys.Key {
	t.Helper()
	st, err := keys.StrategyFor(keys.String)
	require.NoError(t, err)
	k, err := st.Decode([]byte(s))
	require.NoError(t, err)
	return k
}

func entry(k keys.Key, value string, p int32, off int64) snapshot.Entry {
	var v []byte
	if value != "" {
		v = []byte(value)
	}
	return snapshot.Entry{
		Key:       k,
		Value:     snapshot.DatedValue{Value: v, Timestamp: baseTime.Add(time.Duration(off) * time.Second)},
		Partition: p,
		Offset:    off,
	}
}

func sampleSnapshot(t *testing.T) *snapshot.Snapshot {
	return &snapshot.Snapshot{
		Topic: "orders",
		Entries: []snapshot.Entry{
			entry(strKey(t, "b"), `{"n":1}`, 1, 5),
			entry(strKey(t, "a"), "plain", 0, 2),
			entry(keys.Null(keys.String), "", 0, 3),
		},
	}
}

func sampleDocument(t *testing.T) *Document {
	return NewDocument("run-1", sampleSnapshot(t), Target{ExportName: "orders.json"}, baseTime)
}
