// internal/export/document_test.go
package export

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ntulenev/KafkaSnapshot-sub000/internal/keys"
	"github.com/ntulenev/KafkaSnapshot-sub000/internal/snapshot"
)

func TestNewDocument_RendersRecords(t *testing.T) {
	doc := sampleDocument(t)
	require.Len(t, doc.Records, 3)
	assert.Equal(t, "run-1", doc.RunID)
	assert.Equal(t, "orders", doc.Topic)
	assert.Equal(t, "orders.json", doc.ExportName)

	first := doc.Records[0]
	assert.Equal(t, "b", first.Key)
	assert.Equal(t, `{"n":1}`, first.Value, "values stay strings unless raw export is on")
	assert.Equal(t, int32(1), first.Meta.Partition)
	assert.Equal(t, int64(5), first.Meta.Offset)

	text, ok := first.KeyText()
	assert.True(t, ok)
	assert.Equal(t, "b", text)

	tomb := doc.Records[2]
	assert.Nil(t, tomb.Key)
	assert.Nil(t, tomb.Value)
	_, ok = tomb.KeyText()
	assert.False(t, ok)
}

func TestNewDocument_RawValues(t *testing.T) {
	doc := NewDocument("run-1", sampleSnapshot(t), Target{ExportName: "x", RawValues: true}, baseTime)

	data, err := doc.MarshalRecords()
	require.NoError(t, err)
	s := string(data)
	assert.Contains(t, s, `"value":{"n":1}`)
	assert.Contains(t, s, `"value":"plain"`)
	assert.Contains(t, s, `"value":null`)
}

func TestNewDocument_LongKeysRenderAsNumbers(t *testing.T) {
	st, err := keys.StrategyFor(keys.Long)
	require.NoError(t, err)
	k, err := st.Parse("42")
	require.NoError(t, err)

	snap := &snapshot.Snapshot{Topic: "t", Entries: []snapshot.Entry{entry(k, "v", 0, 0)}}
	data, err := NewDocument("r", snap, Target{ExportName: "t"}, baseTime).MarshalRecords()
	require.NoError(t, err)
	assert.Contains(t, string(data), `"key":42`)
}

func TestNewRunID_Unique(t *testing.T) {
	assert.NotEqual(t, NewRunID(), NewRunID())
}

func TestValidateExportName(t *testing.T) {
	for _, name := range []string{"", ".", "..", "a/b", `a\b`, "../x"} {
		assert.Error(t, ValidateExportName(name), name)
	}
	assert.NoError(t, ValidateExportName("orders.json"))
}
