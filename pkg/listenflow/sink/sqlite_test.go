package sink

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/listenflow/listenflow/pkg/listenflow/derive"
	"github.com/listenflow/listenflow/pkg/listenflow/window"
)

func newTestSQLite(t *testing.T) *SQLite {
	t.Helper()
	s, err := NewSQLite(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSQLiteRowsIdempotent(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()

	require.NoError(t, s.WriteRows(ctx, []derive.Row{testRow("evt-1"), testRow("evt-2")}))
	require.NoError(t, s.WriteRows(ctx, []derive.Row{testRow("evt-1")}))

	n, err := s.RowCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n, "replayed event_id must overwrite, not duplicate")
}

func TestSQLiteAggregateUpsert(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()

	require.NoError(t, s.WriteAggregates(ctx, []window.Aggregate{
		testAggregate("play", 1),
		testAggregate("like", 2),
	}))
	// Re-emission of the play aggregate with more data.
	require.NoError(t, s.WriteAggregates(ctx, []window.Aggregate{testAggregate("play", 4)}))

	aggs, err := s.Aggregates(ctx)
	require.NoError(t, err)
	require.Len(t, aggs, 2)

	// Ordered by window start, dimension, key: like before play.
	assert.Equal(t, "like", aggs[0].Key)
	assert.Equal(t, int64(2), aggs[0].Count)
	assert.Equal(t, "play", aggs[1].Key)
	assert.Equal(t, int64(4), aggs[1].Count, "upsert must keep the latest version")
}

func TestSQLiteAggregateRoundTrip(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()

	want := testAggregate("play", 3)
	want.MeanEngagement = 0.625
	want.CategoryRatio = 1.0 / 3.0
	require.NoError(t, s.WriteAggregates(ctx, []window.Aggregate{want}))

	aggs, err := s.Aggregates(ctx)
	require.NoError(t, err)
	require.Len(t, aggs, 1)

	got := aggs[0]
	assert.True(t, got.WindowStart.Equal(want.WindowStart))
	assert.True(t, got.WindowEnd.Equal(want.WindowEnd))
	assert.Equal(t, want.Dimension, got.Dimension)
	assert.Equal(t, want.Count, got.Count)
	assert.InDelta(t, want.MeanEngagement, got.MeanEngagement, 1e-12)
	assert.InDelta(t, want.CategoryRatio, got.CategoryRatio, 1e-12)
}

func TestSQLiteEmptyBatches(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()

	require.NoError(t, s.WriteRows(ctx, nil))
	require.NoError(t, s.WriteAggregates(ctx, nil))
}

func TestSQLiteClosed(t *testing.T) {
	s := newTestSQLite(t)
	require.NoError(t, s.Close())
	require.NoError(t, s.Close(), "double close is a no-op")

	assert.ErrorIs(t, s.WriteRows(context.Background(), []derive.Row{testRow("evt-1")}), ErrSinkClosed)
	_, err := s.RowCount(context.Background())
	assert.ErrorIs(t, err, ErrSinkClosed)
}
