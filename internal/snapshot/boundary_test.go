package snapshot

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBoundary_IsReadable(t *testing.T) {
	assert.True(t, Boundary{Low: 0, High: 1}.IsReadable())
	assert.False(t, Boundary{Low: 1, High: 0}.IsReadable())
	assert.False(t, Boundary{Low: 5, High: 5}.IsReadable())
	assert.True(t, Boundary{Low: 10, High: 42}.IsReadable())
}

func TestBoundary_IsBoundaryReached(t *testing.T) {
	b := Boundary{Low: 0, High: 3}
	assert.False(t, b.IsBoundaryReached(0))
	assert.False(t, b.IsBoundaryReached(1))
	assert.True(t, b.IsBoundaryReached(2))
	assert.True(t, b.IsBoundaryReached(7), "offsets past the watermark also stop the reader")
}

func TestBoundary_NilConnection(t *testing.T) {
	b := Boundary{Topic: "orders", Partition: 0, Low: 0, High: 3}
	var ae *ArgumentError

	require.ErrorAs(t, b.Position(nil), &ae)

	_, err := b.PositionAt(context.Background(), nil, baseTime, time.Second)
	require.ErrorAs(t, err, &ae)
}

func TestBoundary_PositionAt(t *testing.T) {
	fb := newFakeBroker("orders")
	fb.add(0, 10, rec{key: k("a")}, rec{key: k("b")}, rec{key: k("c")})
	b := Boundary{Topic: "orders", Partition: 0, Low: 10, High: 13}
	ctx := context.Background()

	t.Run("resolved offset", func(t *testing.T) {
		conn := &fakeConn{b: fb, partition: -1}
		ok, err := b.PositionAt(ctx, conn, baseTime.Add(90*time.Second), time.Second)
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, int32(0), conn.partition)
		assert.Equal(t, int64(12), conn.next)
	})

	t.Run("beyond end", func(t *testing.T) {
		conn := &fakeConn{b: fb, partition: -1}
		ok, err := b.PositionAt(ctx, conn, baseTime.Add(time.Hour), time.Second)
		require.NoError(t, err)
		assert.False(t, ok)
		assert.Equal(t, int32(-1), conn.partition, "reader must not be assigned")
	})

	t.Run("resolved past watermark", func(t *testing.T) {
		stale := Boundary{Topic: "orders", Partition: 0, Low: 10, High: 12}
		conn := &fakeConn{b: fb, partition: -1}
		ok, err := stale.PositionAt(ctx, conn, baseTime.Add(90*time.Second), time.Second)
		require.NoError(t, err)
		assert.False(t, ok)
		assert.Equal(t, int32(-1), conn.partition)
	})

	t.Run("non-positive timeout", func(t *testing.T) {
		conn := &fakeConn{b: fb, partition: -1}
		_, err := b.PositionAt(ctx, conn, baseTime, 0)
		var ce *ConfigurationError
		assert.ErrorAs(t, err, &ce)
	})
}

func TestBoundary_PositionAtTimeout(t *testing.T) {
	conn := &slowOffsetConn{fakeConn: &fakeConn{b: newFakeBroker("orders"), partition: -1}}
	b := Boundary{Topic: "orders", Partition: 3, Low: 0, High: 3}

	_, err := b.PositionAt(context.Background(), conn, baseTime, 10*time.Millisecond)
	var te *BrokerTimeoutError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, int32(3), te.Partition)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
}

type slowOffsetConn struct{ *fakeConn }

func (c *slowOffsetConn) OffsetForTime(ctx context.Context, _ string, _ int32, _ time.Time) (int64, bool, error) {
	<-ctx.Done()
	return 0, false, ctx.Err()
}
