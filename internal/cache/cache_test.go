package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/rankboard/internal/model"
)

func newTestCache(t *testing.T) *SnapshotCache {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewWithClient(client, time.Minute)
}

func sampleEntries() []model.SnapshotEntry {
	return []model.SnapshotEntry{
		{ConfigID: "excellent", PeriodDate: "2026-09-01", Position: 1, AppID: "a", AppName: "应用A", Score: 91.5, Tag: model.TagRecommended},
		{ConfigID: "excellent", PeriodDate: "2026-09-01", Position: 2, AppID: "b", AppName: "应用B", Score: 80},
	}
}

func TestGetSetRoundTrip(t *testing.T) {
	c := newTestCache(t)
	ctx := context.Background()

	_, ok := c.GetLatest(ctx, "excellent")
	assert.False(t, ok)

	c.SetLatest(ctx, "excellent", sampleEntries())
	got, ok := c.GetLatest(ctx, "excellent")
	require.True(t, ok)
	require.Len(t, got, 2)
	assert.Equal(t, "a", got[0].AppID)
	assert.Equal(t, model.TagRecommended, got[0].Tag)
	assert.Equal(t, 91.5, got[0].Score)
}

func TestInvalidateDropsEntry(t *testing.T) {
	c := newTestCache(t)
	ctx := context.Background()

	c.SetLatest(ctx, "excellent", sampleEntries())
	c.Invalidate(ctx, "excellent")
	_, ok := c.GetLatest(ctx, "excellent")
	assert.False(t, ok)
}

func TestNilCacheIsNoOp(t *testing.T) {
	var c *SnapshotCache
	ctx := context.Background()

	_, ok := c.GetLatest(ctx, "excellent")
	assert.False(t, ok)
	c.SetLatest(ctx, "excellent", sampleEntries())
	c.Invalidate(ctx, "excellent")
	assert.NoError(t, c.Close())
}

func TestCorruptEntryDegradesToMiss(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	c := NewWithClient(client, time.Minute)

	require.NoError(t, mr.Set("rankboard:snapshot:excellent", "{not json"))
	_, ok := c.GetLatest(context.Background(), "excellent")
	assert.False(t, ok)
}
