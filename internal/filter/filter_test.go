package filter_test

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ntulenev/KafkaSnapshot-sub000/internal/filter"
	"github.com/ntulenev/KafkaSnapshot-sub000/internal/keys"
)

func decode(t *testing.T, typ keys.Type, raw []byte) keys.Key {
	t.Helper()
	s, err := keys.StrategyFor(typ)
	require.NoError(t, err)
	k, err := s.Decode(raw)
	require.NoError(t, err)
	return k
}

func TestNew_Compatibility(t *testing.T) {
	tests := []struct {
		keyType keys.Type
		kind    string
		ok      bool
	}{
		{keys.String, "", true},
		{keys.String, "contains", true},
		{keys.String, "prefix", true},
		{keys.String, "regex", true},
		{keys.Long, "equals", true},
		{keys.Long, "contains", false},
		{keys.Long, "regex", false},
		{keys.JSON, "equals", true},
		{keys.JSON, "prefix", false},
		{keys.Ignored, "none", true},
		{keys.Ignored, "equals", false},
	}
	for _, tc := range tests {
		value := "1"
		_, err := filter.New(tc.keyType, filter.Config{Type: tc.kind, Value: value})
		if tc.ok {
			assert.NoError(t, err, "%s/%s", tc.keyType, tc.kind)
			continue
		}
		var ie *filter.IncompatibleError
		assert.ErrorAs(t, err, &ie, "%s/%s", tc.keyType, tc.kind)
	}
}

func TestNew_BadValues(t *testing.T) {
	_, err := filter.New(keys.Long, filter.Config{Type: "equals", Value: "abc"})
	assert.Error(t, err)

	_, err = filter.New(keys.String, filter.Config{Type: "regex", Value: "("})
	assert.Error(t, err)

	_, err = filter.New(keys.String, filter.Config{Type: "fuzzy"})
	assert.Error(t, err)
}

func TestStringFilters(t *testing.T) {
	key := decode(t, keys.String, []byte("order-1234"))
	null := decode(t, keys.String, nil)

	cases := map[filter.Config]bool{
		{Type: "none"}:                        true,
		{Type: "equals", Value: "order-1234"}: true,
		{Type: "equals", Value: "order"}:      false,
		{Type: "contains", Value: "12"}:       true,
		{Type: "prefix", Value: "order-"}:     true,
		{Type: "prefix", Value: "user-"}:      false,
		{Type: "regex", Value: `^order-\d+$`}: true,
	}
	for cfg, want := range cases {
		f, err := filter.New(keys.String, cfg)
		require.NoError(t, err)
		assert.Equal(t, want, f.IsMatch(key), "%+v", cfg)
		if cfg.Type != "none" {
			assert.False(t, f.IsMatch(null), "null key must not match %+v", cfg)
		}
	}
}

func TestLongEquals(t *testing.T) {
	raw := make([]byte, 8)
	binary.BigEndian.PutUint64(raw, 7)

	f, err := filter.New(keys.Long, filter.Config{Type: "equals", Value: "7"})
	require.NoError(t, err)
	assert.True(t, f.IsMatch(decode(t, keys.Long, raw)))

	binary.BigEndian.PutUint64(raw, 8)
	assert.False(t, f.IsMatch(decode(t, keys.Long, raw)))
}

func TestJSONEqualsIgnoresLayout(t *testing.T) {
	f, err := filter.New(keys.JSON, filter.Config{Type: "equals", Value: `{"id": 1, "region": "eu"}`})
	require.NoError(t, err)
	assert.True(t, f.IsMatch(decode(t, keys.JSON, []byte(`{"region":"eu","id":1}`))))
	assert.False(t, f.IsMatch(decode(t, keys.JSON, []byte(`{"region":"us","id":1}`))))
}
