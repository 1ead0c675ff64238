package fairness

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAdjust_AlphaOneIsIdentity(t *testing.T) {
	s := NewSnapshot(1, map[string]int64{"eu-west": 40})
	assert.Equal(t, 0.73, s.Adjust(0.73, "eu-west"))
}

func TestAdjust_EmptyHistory(t *testing.T) {
	s := NewSnapshot(0, nil)
	// ratio is 1/1 so the full 10% penalty applies.
	assert.InDelta(t, 0.9, s.Adjust(1.0, "eu-west"), 1e-12)
}

func TestAdjust_FrequentRegionPenalisedMore(t *testing.T) {
	s := NewSnapshot(0.5, map[string]int64{"eu-west": 9, "eu-north": 1})

	busy := s.Adjust(0.8, "eu-west")
	quiet := s.Adjust(0.8, "eu-north")
	unseen := s.Adjust(0.8, "us-east")

	assert.Less(t, busy, quiet)
	assert.Less(t, quiet, unseen)
	assert.GreaterOrEqual(t, busy, 0.8*(1-MaxPenalty))
}

func TestAdjust_NonIncreasingInRatio(t *testing.T) {
	for _, alpha := range []float64{0, 0.25, 0.5, 0.9, 1} {
		prev := AdjustRatio(0.7, 0.01, alpha)
		for r := 0.02; r <= 1.0; r += 0.01 {
			cur := AdjustRatio(0.7, r, alpha)
			assert.LessOrEqual(t, cur, prev+1e-15, "alpha=%v ratio=%v", alpha, r)
			prev = cur
		}
	}
}

func TestClampAlpha(t *testing.T) {
	assert.Equal(t, 0.0, ClampAlpha(-3))
	assert.Equal(t, 1.0, ClampAlpha(7))
	assert.Equal(t, 0.4, ClampAlpha(0.4))
	assert.Equal(t, 0.0, NewAdjuster(-1, nil).Alpha())
}

func TestAdjuster_RecordAndSnapshot(t *testing.T) {
	ctx := context.Background()
	a := NewAdjuster(0, NewMemoryHistory())

	require.NoError(t, a.Record(ctx, "eu-west"))
	require.NoError(t, a.Record(ctx, "eu-west"))
	require.NoError(t, a.Record(ctx, "eu-north"))

	s, err := a.Snapshot(ctx)
	require.NoError(t, err)
	assert.InDelta(t, 3.0/4.0, s.SelectionRatio("eu-west"), 1e-12)
	assert.InDelta(t, 2.0/4.0, s.SelectionRatio("eu-north"), 1e-12)
	assert.InDelta(t, 1.0/4.0, s.SelectionRatio("us-east"), 1e-12)
}

func TestMemoryHistory_ConcurrentIncrement(t *testing.T) {
	ctx := context.Background()
	h := NewMemoryHistory()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = h.Increment(ctx, "eu-west")
		}()
	}
	wg.Wait()

	counts, err := h.Counts(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(50), counts["eu-west"])

	counts["eu-west"] = 0
	again, _ := h.Counts(ctx)
	assert.Equal(t, int64(50), again["eu-west"], "Counts returns a copy")
}
