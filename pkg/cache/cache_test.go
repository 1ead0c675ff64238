package cache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	clocktesting "k8s.io/utils/clock/testing"
)

func TestGet_CachesUntilExpiry(t *testing.T) {
	clk := clocktesting.NewFakeClock(time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC))
	c := New(clk)
	ctx := context.Background()

	calls := 0
	fetch := func(context.Context) (float64, error) {
		calls++
		return float64(calls * 100), nil
	}

	v, hit, err := Get(ctx, c, "eu-west", 5*time.Minute, fetch)
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, 100.0, v)

	v, hit, err = Get(ctx, c, "eu-west", 5*time.Minute, fetch)
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, 100.0, v)

	clk.Step(6 * time.Minute)
	v, hit, err = Get(ctx, c, "eu-west", 5*time.Minute, fetch)
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, 200.0, v)
	assert.Equal(t, 2, calls)
}

func TestGet_ErrorsAreNotCached(t *testing.T) {
	c := New(nil)
	ctx := context.Background()

	_, _, err := Get(ctx, c, "k", time.Minute, func(context.Context) (int, error) {
		return 0, errors.New("upstream down")
	})
	require.Error(t, err)
	assert.Zero(t, c.Len())

	v, hit, err := Get(ctx, c, "k", time.Minute, func(context.Context) (int, error) { return 7, nil })
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, 7, v)
}

func TestGet_ZeroTTLBypasses(t *testing.T) {
	c := New(nil)
	calls := 0
	for i := 0; i < 3; i++ {
		_, _, err := Get(context.Background(), c, "k", 0, func(context.Context) (int, error) {
			calls++
			return calls, nil
		})
		require.NoError(t, err)
	}
	assert.Equal(t, 3, calls)
}

func TestGet_TypeMismatchRefetches(t *testing.T) {
	c := New(nil)
	ctx := context.Background()
	_, _, err := Get(ctx, c, "k", time.Minute, func(context.Context) (int, error) { return 1, nil })
	require.NoError(t, err)

	v, hit, err := Get(ctx, c, "k", time.Minute, func(context.Context) (string, error) { return "x", nil })
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, "x", v)

	c.Invalidate("k")
	assert.Zero(t, c.Len())
}

func TestGet_ConcurrentMissesShareFetch(t *testing.T) {
	c := New(nil)
	var calls int32
	release := make(chan struct{})

	var wg sync.WaitGroup
	results := make([]int, 8)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			v, _, err := Get(context.Background(), c, "shared", time.Minute, func(context.Context) (int, error) {
				atomic.AddInt32(&calls, 1)
				<-release
				return 42, nil
			})
			assert.NoError(t, err)
			results[i] = v
		}(i)
	}
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	for _, v := range results {
		assert.Equal(t, 42, v)
	}
	assert.LessOrEqual(t, atomic.LoadInt32(&calls), int32(8))
	assert.GreaterOrEqual(t, atomic.LoadInt32(&calls), int32(1))
}

func TestGet_CancelledCallerDoesNotCancelSharedFetch(t *testing.T) {
	c := New(nil)
	started := make(chan struct{})
	release := make(chan struct{})
	fetchErr := make(chan error, 2)
	var once sync.Once
	fetch := func(ctx context.Context) (int, error) {
		once.Do(func() { close(started) })
		<-release
		fetchErr <- ctx.Err()
		return 42, nil
	}

	ctxA, cancelA := context.WithCancel(context.Background())
	errA := make(chan error, 1)
	go func() {
		_, _, err := Get(ctxA, c, "shared", time.Minute, fetch)
		errA <- err
	}()
	<-started

	type result struct {
		v   int
		err error
	}
	resB := make(chan result, 1)
	go func() {
		v, _, err := Get(context.Background(), c, "shared", time.Minute, fetch)
		resB <- result{v, err}
	}()

	cancelA()
	select {
	case err := <-errA:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("cancelled caller kept waiting for the fetch")
	}

	close(release)
	require.NoError(t, <-fetchErr, "fetch context must survive the cancelled caller")
	r := <-resB
	require.NoError(t, r.err)
	assert.Equal(t, 42, r.v)
}

func TestGet_PanickingFetchIsAnError(t *testing.T) {
	c := New(nil)
	_, _, err := Get(context.Background(), c, "k", time.Minute, func(context.Context) ([]int, error) {
		var s []int
		return s[:1], nil
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "panicked")
	assert.Zero(t, c.Len())
}
