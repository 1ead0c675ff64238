package engine

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	clocktesting "k8s.io/utils/clock/testing"

	"github.com/g-uva/kube-carbon-scheduler/models/fairness"
	"github.com/g-uva/kube-carbon-scheduler/pkg/core"
	"github.com/g-uva/kube-carbon-scheduler/pkg/datasource"
)

var now = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func at(hours, intensity float64) core.ForecastPoint {
	from := now.Add(time.Duration(hours * float64(time.Hour)))
	return core.ForecastPoint{TimeFrom: from, TimeTo: from.Add(30 * time.Minute), RawIntensity: intensity}
}

func grid(readings map[string]float64) []core.GridReading {
	out := make([]core.GridReading, 0, len(readings))
	for id, v := range readings {
		out = append(out, core.GridReading{RegionID: id, GridIntensity: v})
	}
	return out
}

// countingSource wraps a Static source and counts calls.
type countingSource struct {
	*datasource.Static
	current, forecast, regions int32
	err                        error
}

func (c *countingSource) CurrentIntensity(ctx context.Context, region string) (datasource.Reading, error) {
	atomic.AddInt32(&c.current, 1)
	if c.err != nil {
		return datasource.Reading{}, c.err
	}
	return c.Static.CurrentIntensity(ctx, region)
}

func (c *countingSource) Forecast(ctx context.Context, hours int) ([]core.ForecastPoint, error) {
	atomic.AddInt32(&c.forecast, 1)
	if c.err != nil {
		return nil, c.err
	}
	return c.Static.Forecast(ctx, hours)
}

func (c *countingSource) Regions(ctx context.Context) ([]core.GridReading, error) {
	atomic.AddInt32(&c.regions, 1)
	if c.err != nil {
		return nil, c.err
	}
	return c.Static.Regions(ctx)
}

// brokenSource panics on every call, like a provider indexing an empty
// response.
type brokenSource struct{}

func (brokenSource) Name() string { return "broken" }

func (brokenSource) Forecast(context.Context, int) ([]core.ForecastPoint, error) {
	var pts []core.ForecastPoint
	return pts[:1], nil
}

func (brokenSource) Regions(context.Context) ([]core.GridReading, error) {
	var rs []core.GridReading
	return []core.GridReading{rs[0]}, nil
}

// countingHistory records how often the history is read.
type countingHistory struct {
	*fairness.MemoryHistory
	reads int32
}

func (h *countingHistory) Counts(ctx context.Context) (map[string]int64, error) {
	atomic.AddInt32(&h.reads, 1)
	return h.MemoryHistory.Counts(ctx)
}

func newCounting(label string, readings map[string]float64, forecast []core.ForecastPoint) *countingSource {
	return &countingSource{Static: datasource.NewStatic(label, grid(readings), forecast)}
}

func sourcesOf(s *countingSource) Sources {
	return Sources{
		Intensity: []datasource.IntensitySource{s},
		Forecast:  []datasource.ForecastSource{s},
		Regions:   []datasource.RegionSource{s},
	}
}

func testOptions() Options {
	o := DefaultOptions()
	o.CacheTTL = 0
	o.RetryDelay = time.Millisecond
	return o
}

func newEngine(t *testing.T, opts Options, src Sources, extra ...Option) *Engine {
	t.Helper()
	extra = append([]Option{WithClock(clocktesting.NewFakeClock(now))}, extra...)
	e, err := New(opts, src, extra...)
	require.NoError(t, err)
	return e
}

func optionFor(d core.SchedulingDecision, kind core.StrategyKind) (core.StrategyOption, bool) {
	for _, o := range d.Options {
		if o.Strategy == kind {
			return o, true
		}
	}
	return core.StrategyOption{}, false
}

func TestDecide_ExcellentShortCircuit(t *testing.T) {
	src := newCounting("grid", map[string]float64{"eu-west": 30, "eu-north": 5}, []core.ForecastPoint{at(2, 1)})
	e := newEngine(t, testOptions(), sourcesOf(src))

	d := e.Decide(context.Background(), "etl", "eu-west", core.Normal)
	assert.Equal(t, core.RunNow, d.Strategy)
	assert.Equal(t, "eu-west", d.TargetRegion)
	assert.Nil(t, d.ScheduledTime)
	assert.Len(t, d.Options, 1)
	assert.Equal(t, []string{"grid"}, d.DataSources)
	assert.Contains(t, d.Rationale, "excellent")
	assert.Zero(t, atomic.LoadInt32(&src.forecast), "forecast must not be fetched")
	assert.Zero(t, atomic.LoadInt32(&src.regions), "regions must not be fetched")

	counts, err := e.Fairness(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), counts["eu-west"])
}

func TestDecide_ForcedTimeShift(t *testing.T) {
	src := newCounting("grid", map[string]float64{"eu-west": 300}, []core.ForecastPoint{at(2, 100)})
	opts := testOptions()
	opts.EnableSpaceShift = false
	opts.EnableHybrid = false
	e := newEngine(t, opts, sourcesOf(src))

	d := e.Decide(context.Background(), "batch", "eu-west", core.Normal)
	require.False(t, d.Failed())
	assert.Equal(t, core.TimeShift, d.Strategy)
	assert.InDelta(t, 2.0, d.WaitHours, 0.01)
	assert.InDelta(t, 66.67, d.SavingsPercent, 0.01)
	require.NotNil(t, d.ScheduledTime)
	assert.Equal(t, now.Add(2*time.Hour), *d.ScheduledTime)

	runNow, ok := optionFor(d, core.RunNow)
	require.True(t, ok)
	ts, _ := optionFor(d, core.TimeShift)
	assert.Greater(t, ts.Score, runNow.Score)
}

func TestDecide_NoViableAlternative(t *testing.T) {
	src := newCounting("grid",
		map[string]float64{"eu-west": 300, "eu-north": 310, "us-east": 420},
		[]core.ForecastPoint{at(1, 300), at(2, 305), at(6, 298)})
	e := newEngine(t, testOptions(), sourcesOf(src))

	d := e.Decide(context.Background(), "web", "eu-west", core.Normal)
	require.False(t, d.Failed())
	assert.Equal(t, core.RunNow, d.Strategy)
	assert.Equal(t, "eu-west", d.TargetRegion)
	assert.Zero(t, d.SavingsPercent)
	assert.Len(t, d.Options, 1)
	assert.Equal(t, []string{"grid"}, d.DataSources)
}

func TestDecide_SpaceShiftToCleanerRegion(t *testing.T) {
	src := newCounting("grid", map[string]float64{"eu-west": 400, "eu-north": 40}, nil)
	e := newEngine(t, testOptions(), sourcesOf(src))

	d := e.Decide(context.Background(), "train", "eu-west", core.Low)
	assert.Equal(t, core.SpaceShift, d.Strategy)
	assert.Equal(t, "eu-north", d.TargetRegion)
	assert.InDelta(t, 90, d.SavingsPercent, 1e-9)

	counts, err := e.Fairness(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), counts["eu-north"])
}

func TestDecide_CriticalStaysPut(t *testing.T) {
	src := newCounting("grid", map[string]float64{"eu-west": 400, "eu-north": 40}, []core.ForecastPoint{at(1, 50)})
	e := newEngine(t, testOptions(), sourcesOf(src))

	d := e.Decide(context.Background(), "payments", "eu-west", core.Critical)
	assert.Equal(t, core.RunNow, d.Strategy)
	assert.Equal(t, "eu-west", d.TargetRegion)
}

func TestDecide_ProfilesAdjustIntensity(t *testing.T) {
	src := newCounting("grid", map[string]float64{"eu-west": 400, "eu-north": 100}, nil)
	opts := testOptions()
	opts.Profiles = core.NewProfiles([]core.RegionProfile{
		{ID: "eu-west", ZoneID: "FR", OverheadFactor: 1.5},
		{ID: "eu-north", ZoneID: "SE", RenewableFraction: 0.5, OverheadFactor: 1.1},
	})
	e := newEngine(t, opts, sourcesOf(src))

	d := e.Decide(context.Background(), "job", "eu-west", core.Normal)
	assert.Equal(t, core.SpaceShift, d.Strategy)
	assert.InDelta(t, 600, d.CurrentIntensity, 1e-9)
	assert.InDelta(t, 55, d.TargetIntensity, 1e-9)
}

func TestDecide_AllSourcesFail(t *testing.T) {
	primary := newCounting("primary", nil, nil)
	primary.err = errors.New("connection refused")
	secondary := newCounting("secondary", nil, nil)
	secondary.err = errors.New("timeout")

	e := newEngine(t, testOptions(), Sources{
		Intensity: []datasource.IntensitySource{primary, secondary},
	})

	var d core.SchedulingDecision
	require.NotPanics(t, func() { d = e.Decide(context.Background(), "job", "eu-west", core.High) })
	assert.True(t, d.Failed())
	assert.Contains(t, d.Error, "all sources failed")
	assert.Equal(t, core.RunNow, d.Strategy)
	assert.Equal(t, "eu-west", d.TargetRegion)
	assert.Zero(t, d.CurrentIntensity)
	assert.Zero(t, d.TargetIntensity)
	assert.NotEmpty(t, d.Rationale)
	require.Len(t, d.Options, 1)
	assert.Equal(t, core.RunNow, d.Options[0].Strategy)

	counts, err := e.Fairness(context.Background())
	require.NoError(t, err)
	assert.Empty(t, counts, "failed decisions are not recorded")
}

func TestDecide_FallsBackToSecondary(t *testing.T) {
	primary := newCounting("primary", nil, nil)
	primary.err = errors.New("503")
	secondary := newCounting("secondary", map[string]float64{"eu-west": 300}, nil)

	opts := testOptions()
	opts.FetchAttempts = 3
	e := newEngine(t, opts, Sources{
		Intensity: []datasource.IntensitySource{primary, secondary},
		Regions:   []datasource.RegionSource{secondary},
	})

	d := e.Decide(context.Background(), "job", "eu-west", core.Normal)
	require.False(t, d.Failed())
	assert.Equal(t, []string{"secondary"}, d.DataSources)
	assert.InDelta(t, 300, d.CurrentIntensity, 1e-9)
	assert.Equal(t, int32(3), atomic.LoadInt32(&primary.current), "primary retried before falling back")
}

func TestDecide_NoDataIsNotRetried(t *testing.T) {
	src := newCounting("grid", map[string]float64{"eu-north": 100}, nil)
	opts := testOptions()
	opts.FetchAttempts = 4
	e := newEngine(t, opts, sourcesOf(src))

	d := e.Decide(context.Background(), "job", "unknown", core.Normal)
	assert.True(t, d.Failed())
	assert.Equal(t, int32(1), atomic.LoadInt32(&src.current))
}

func TestDecide_DegradesWithoutForecastAndRegions(t *testing.T) {
	src := newCounting("grid", map[string]float64{"eu-west": 300}, nil)
	broken := newCounting("broken", nil, nil)
	broken.err = errors.New("down")

	e := newEngine(t, testOptions(), Sources{
		Intensity: []datasource.IntensitySource{src},
		Forecast:  []datasource.ForecastSource{broken},
		Regions:   []datasource.RegionSource{broken},
	})

	d := e.Decide(context.Background(), "job", "eu-west", core.Low)
	require.False(t, d.Failed())
	assert.Equal(t, core.RunNow, d.Strategy)
	assert.Len(t, d.Options, 1)
}

func TestDecide_PanickingProvidersDegrade(t *testing.T) {
	src := newCounting("grid", map[string]float64{"eu-west": 300}, nil)
	e := newEngine(t, testOptions(), Sources{
		Intensity: []datasource.IntensitySource{src},
		Forecast:  []datasource.ForecastSource{brokenSource{}},
		Regions:   []datasource.RegionSource{brokenSource{}},
	})

	var d core.SchedulingDecision
	require.NotPanics(t, func() { d = e.Decide(context.Background(), "job", "eu-west", core.Normal) })
	require.False(t, d.Failed())
	assert.Equal(t, core.RunNow, d.Strategy)
	assert.Equal(t, []string{"grid"}, d.DataSources)
	assert.Len(t, d.Options, 1)
}

func TestDecide_PanickingProviderFallsBack(t *testing.T) {
	src := newCounting("grid", map[string]float64{"eu-west": 300}, []core.ForecastPoint{at(2, 100)})
	opts := testOptions()
	opts.EnableSpaceShift = false
	opts.EnableHybrid = false
	e := newEngine(t, opts, Sources{
		Intensity: []datasource.IntensitySource{src},
		Forecast:  []datasource.ForecastSource{brokenSource{}, src},
	})

	d := e.Decide(context.Background(), "batch", "eu-west", core.Normal)
	require.False(t, d.Failed())
	assert.Equal(t, core.TimeShift, d.Strategy)
	assert.Equal(t, int32(1), atomic.LoadInt32(&src.forecast))
}

func TestRecoverFetch(t *testing.T) {
	assert.NotPanics(t, func() {
		defer recoverFetch(zerolog.Nop(), "forecast")
		var pts []core.ForecastPoint
		_ = pts[:1]
	})
}

func TestBest_TiesFollowPriority(t *testing.T) {
	kinds := []core.StrategyKind{core.RunNow, core.TimeShift, core.SpaceShift, core.Hybrid}
	for i, first := range kinds {
		for _, second := range kinds[i+1:] {
			a := core.StrategyOption{Strategy: first, Score: 0.5}
			b := core.StrategyOption{Strategy: second, Score: 0.5}
			name := string(first) + "/" + string(second)
			t.Run(name, func(t *testing.T) {
				assert.Equal(t, first, best([]core.StrategyOption{a, b}).Strategy)
				assert.Equal(t, first, best([]core.StrategyOption{b, a}).Strategy)
			})
		}
	}
}

func TestBest_HigherScoreWins(t *testing.T) {
	options := []core.StrategyOption{
		{Strategy: core.RunNow, Score: 0.4},
		{Strategy: core.TimeShift, Score: 0.6},
		{Strategy: core.SpaceShift, Score: 0.6},
		{Strategy: core.Hybrid, Score: 0.7},
	}
	assert.Equal(t, core.Hybrid, best(options).Strategy)
	assert.Equal(t, core.TimeShift, best(options[:3]).Strategy)
	assert.Equal(t, core.RunNow, best(options[:1]).Strategy)
}

func TestDecide_ExcellentSkipsHistoryRead(t *testing.T) {
	h := &countingHistory{MemoryHistory: fairness.NewMemoryHistory()}
	src := newCounting("grid", map[string]float64{"eu-west": 30}, nil)
	e := newEngine(t, testOptions(), sourcesOf(src), WithHistory(h))

	d := e.Decide(context.Background(), "etl", "eu-west", core.Normal)
	assert.Equal(t, core.RunNow, d.Strategy)
	assert.Zero(t, atomic.LoadInt32(&h.reads))

	counts, err := h.MemoryHistory.Counts(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), counts["eu-west"])

	src.Static = datasource.NewStatic("grid", grid(map[string]float64{"eu-west": 300}), nil)
	e.Decide(context.Background(), "etl", "eu-west", core.Normal)
	assert.Equal(t, int32(1), atomic.LoadInt32(&h.reads))
}

func TestDecide_FairnessAlternation(t *testing.T) {
	src := newCounting("grid", map[string]float64{"eu-west": 400, "eu-north": 100, "eu-south": 105}, nil)
	opts := testOptions()
	opts.Alpha = 0
	e := newEngine(t, opts, sourcesOf(src))

	picked := map[string]int{}
	for i := 0; i < 100; i++ {
		d := e.Decide(context.Background(), "batch", "eu-west", core.Normal)
		require.Equal(t, core.SpaceShift, d.Strategy)
		picked[d.TargetRegion]++
	}
	assert.GreaterOrEqual(t, picked["eu-south"], 10, "the slightly dirtier region still gets work")
	assert.Greater(t, picked["eu-north"], picked["eu-south"], "the cleaner region stays preferred")
	assert.Equal(t, 100, picked["eu-north"]+picked["eu-south"])
}

func TestDecide_NoFairnessWithAlphaOne(t *testing.T) {
	src := newCounting("grid", map[string]float64{"eu-west": 400, "eu-north": 100, "eu-south": 105}, nil)
	opts := testOptions()
	opts.Alpha = 1
	e := newEngine(t, opts, sourcesOf(src))

	for i := 0; i < 20; i++ {
		d := e.Decide(context.Background(), "batch", "eu-west", core.Normal)
		require.Equal(t, "eu-north", d.TargetRegion)
	}
}

func TestDecide_UsesCache(t *testing.T) {
	src := newCounting("grid", map[string]float64{"eu-west": 300, "eu-north": 100}, []core.ForecastPoint{at(2, 200)})
	opts := testOptions()
	opts.CacheTTL = 5 * time.Minute
	clk := clocktesting.NewFakeClock(now)
	e := newEngine(t, opts, sourcesOf(src), WithClock(clk))

	e.Decide(context.Background(), "a", "eu-west", core.Normal)
	e.Decide(context.Background(), "b", "eu-west", core.Normal)
	assert.Equal(t, int32(1), atomic.LoadInt32(&src.current))
	assert.Equal(t, int32(1), atomic.LoadInt32(&src.forecast))
	assert.Equal(t, int32(1), atomic.LoadInt32(&src.regions))

	clk.Step(6 * time.Minute)
	e.Decide(context.Background(), "c", "eu-west", core.Normal)
	assert.Equal(t, int32(2), atomic.LoadInt32(&src.current))
}

func TestDecide_SharedHistory(t *testing.T) {
	h := fairness.NewMemoryHistory()
	src := newCounting("grid", map[string]float64{"eu-west": 400, "eu-north": 40}, nil)
	e := newEngine(t, testOptions(), sourcesOf(src), WithHistory(h), WithIDGenerator(func() string { return "fixed" }))

	d := e.Decide(context.Background(), "job", "eu-west", core.Normal)
	assert.Equal(t, "fixed", d.ID)
	assert.Equal(t, now, d.DecidedAt)

	counts, err := h.Counts(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), counts["eu-north"])
}

func TestNew_RejectsBadOptions(t *testing.T) {
	cases := map[string]func(*Options){
		"negative threshold": func(o *Options) { o.ExcellentThreshold = -1 },
		"savings over 100":   func(o *Options) { o.MinSavingsPercent = 150 },
		"zero timeout":       func(o *Options) { o.FetchTimeout = 0 },
		"zero horizon":       func(o *Options) { o.ForecastHours = 0 },
		"bad profile": func(o *Options) {
			o.Profiles = core.NewProfiles([]core.RegionProfile{{ID: "x", OverheadFactor: 0.5}})
		},
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			o := DefaultOptions()
			mutate(&o)
			_, err := New(o, Sources{})
			assert.Error(t, err)
		})
	}
}

func TestNew_ClampsAlpha(t *testing.T) {
	o := DefaultOptions()
	o.Alpha = 3
	e, err := New(o, Sources{})
	require.NoError(t, err)
	assert.Equal(t, 1.0, e.Options().Alpha)
}
