package history

import (
	"context"
	"sync"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/g-uva/kube-carbon-scheduler/models/fairness"
)

func newStore(t *testing.T) (*RedisHistory, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client, err := Connect(mr.Addr())
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })
	return NewRedisHistory(client, ""), mr
}

func TestRedisHistory_IncrementAndCounts(t *testing.T) {
	h, mr := newStore(t)
	ctx := context.Background()

	require.NoError(t, h.Ping(ctx))
	require.NoError(t, h.Increment(ctx, "eu-north"))
	require.NoError(t, h.Increment(ctx, "eu-north"))
	require.NoError(t, h.Increment(ctx, "us-east"))

	counts, err := h.Counts(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]int64{"eu-north": 2, "us-east": 1}, counts)
	assert.Equal(t, "2", mr.HGet(DefaultKey, "eu-north"))

	require.NoError(t, h.Reset(ctx))
	counts, err = h.Counts(ctx)
	require.NoError(t, err)
	assert.Empty(t, counts)
}

func TestRedisHistory_SkipsGarbage(t *testing.T) {
	h, mr := newStore(t)
	mr.HSet(DefaultKey, "eu-west", "not-a-number")
	mr.HSet(DefaultKey, "eu-north", "4")

	counts, err := h.Counts(context.Background())
	require.NoError(t, err)
	assert.Equal(t, map[string]int64{"eu-north": 4}, counts)
}

func TestRedisHistory_ServerDown(t *testing.T) {
	h, mr := newStore(t)
	mr.Close()

	assert.Error(t, h.Increment(context.Background(), "eu-north"))
	_, err := h.Counts(context.Background())
	assert.Error(t, err)
}

func TestRedisHistory_ConcurrentIncrements(t *testing.T) {
	h, _ := newStore(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, h.Increment(ctx, "eu-north"))
		}()
	}
	wg.Wait()

	counts, err := h.Counts(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(50), counts["eu-north"])
}

func TestRedisHistory_DrivesFairness(t *testing.T) {
	h, _ := newStore(t)
	ctx := context.Background()
	adj := fairness.NewAdjuster(0, h)

	for i := 0; i < 9; i++ {
		require.NoError(t, adj.Record(ctx, "eu-north"))
	}
	snap, err := adj.Snapshot(ctx)
	require.NoError(t, err)
	assert.Less(t, snap.Adjust(1, "eu-north"), snap.Adjust(1, "eu-south"))
}

func TestConnect_URL(t *testing.T) {
	c, err := Connect("redis://localhost:6379/2")
	require.NoError(t, err)
	assert.Equal(t, 2, c.Options().DB)

	_, err = Connect("redis://%zz")
	assert.Error(t, err)
}
