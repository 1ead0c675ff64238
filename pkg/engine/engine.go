// Package engine turns grid data into one scheduling decision per workload:
// run now, later, elsewhere, or both.
package engine

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
	"k8s.io/utils/clock"

	"github.com/g-uva/kube-carbon-scheduler/models/fairness"
	"github.com/g-uva/kube-carbon-scheduler/models/maizx"
	"github.com/g-uva/kube-carbon-scheduler/models/strategies"
	"github.com/g-uva/kube-carbon-scheduler/pkg/cache"
	"github.com/g-uva/kube-carbon-scheduler/pkg/core"
	"github.com/g-uva/kube-carbon-scheduler/pkg/datasource"
	"github.com/g-uva/kube-carbon-scheduler/pkg/metrics"
)

// Sources lists the providers per kind of data, in fallback order.
type Sources struct {
	Intensity []datasource.IntensitySource
	Forecast  []datasource.ForecastSource
	Regions   []datasource.RegionSource
}

type Engine struct {
	opts       Options
	model      maizx.Model
	evaluators []strategies.Evaluator
	fairness   *fairness.Adjuster
	history    fairness.HistoryStore
	chain      *datasource.Chain
	cache      *cache.Cache
	clock      clock.Clock
	log        zerolog.Logger
	newID      func() string
}

func New(opts Options, src Sources, extra ...Option) (*Engine, error) {
	if err := opts.Validate(); err != nil {
		return nil, fmt.Errorf("engine options: %w", err)
	}
	if opts.Profiles == nil {
		opts.Profiles = core.Profiles{}
	}

	e := &Engine{
		opts:  opts,
		clock: clock.RealClock{},
		log:   zerolog.Nop(),
		newID: uuid.NewString,
	}
	for _, o := range extra {
		o(e)
	}
	if clamped := fairness.ClampAlpha(opts.Alpha); clamped != opts.Alpha {
		e.log.Warn().Float64("alpha", opts.Alpha).Float64("clamped", clamped).Msg("fairness alpha out of range")
		e.opts.Alpha = clamped
	}
	if e.cache == nil {
		e.cache = cache.New(e.clock)
	}
	e.fairness = fairness.NewAdjuster(e.opts.Alpha, e.history)
	e.history = e.fairness.Store()

	e.model = maizx.New(opts.Weights)
	e.evaluators = strategies.Evaluators(strategies.Config{
		Model:             e.model,
		MinSavingsPercent: opts.MinSavingsPercent,
		TimeShift:         opts.EnableTimeShift,
		SpaceShift:        opts.EnableSpaceShift,
		Hybrid:            opts.EnableHybrid,
		DynamicSlack:      opts.DynamicSlack,
	})

	chain := &datasource.Chain{Log: e.log, OnFailure: metrics.FetchFailed}
	for _, s := range src.Intensity {
		chain.Intensity = append(chain.Intensity, retryingIntensity{IntensitySource: s, e: e})
	}
	for _, s := range src.Forecast {
		chain.Forecasts = append(chain.Forecasts, retryingForecast{ForecastSource: s, e: e})
	}
	for _, s := range src.Regions {
		chain.Regional = append(chain.Regional, retryingRegions{RegionSource: s, e: e})
	}
	e.chain = chain
	return e, nil
}

func (e *Engine) Options() Options { return e.opts }

// Fairness returns the current selection counts.
func (e *Engine) Fairness(ctx context.Context) (map[string]int64, error) {
	return e.history.Counts(ctx)
}

// Decide picks a strategy for one workload currently placed in region. It
// never returns an error: when no current intensity can be obtained the
// decision is RUN_NOW with Error set.
func (e *Engine) Decide(ctx context.Context, workload, region string, crit core.Criticality) (d core.SchedulingDecision) {
	start := e.clock.Now()
	d = core.SchedulingDecision{
		ID:            e.newID(),
		WorkloadName:  workload,
		Criticality:   crit,
		CurrentRegion: region,
		DecidedAt:     start,
	}
	log := e.log.With().Str("workload", workload).Str("region", region).Stringer("criticality", crit).Logger()

	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Msg("decision aborted")
			d = failed(d, fmt.Errorf("internal error: %v", r))
		}
		metrics.ObserveDecision(d, e.clock.Since(start))
		if d.Failed() {
			log.Warn().Str("err", d.Error).Msg("decision without data")
			return
		}
		log.Info().Str("strategy", string(d.Strategy)).Str("target", d.TargetRegion).
			Float64("savings_pct", d.SavingsPercent).Float64("wait_h", d.WaitHours).Msg("decision")
	}()

	policy := crit.Policy()
	profile := e.opts.Profiles.Get(region)

	reading, err := e.currentIntensity(ctx, region)
	if err != nil {
		return failed(d, err)
	}
	d.DataSources = appendSource(d.DataSources, reading.Provenance)

	if reading.Value < e.opts.ExcellentThreshold {
		in := strategies.NewInput(start, region, profile, policy, reading.Value, nil, nil, fairness.NewSnapshot(e.opts.Alpha, nil))
		opt, _ := strategies.RunNowEvaluator{Model: e.model}.Evaluate(in)
		opt.Rationale = fmt.Sprintf("grid intensity %.0f gCO2/kWh is below the excellent threshold %.0f; run now in %s",
			reading.Value, e.opts.ExcellentThreshold, region)
		return e.finish(ctx, log, d, opt, []core.StrategyOption{opt})
	}

	var (
		fc  forecastResult
		rgs regionsResult
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer recoverFetch(log, "forecast")
		res, err := e.forecast(gctx)
		if err != nil {
			log.Warn().Err(err).Msg("no forecast, time-based strategies skipped")
			return nil
		}
		fc = res
		return nil
	})
	g.Go(func() error {
		defer recoverFetch(log, "regions")
		res, err := e.regions(gctx)
		if err != nil {
			log.Warn().Err(err).Msg("no regional data, region-based strategies skipped")
			return nil
		}
		rgs = res
		return nil
	})
	_ = g.Wait()

	if len(fc.points) > 0 {
		d.DataSources = appendSource(d.DataSources, fc.source)
	}
	snapshots := make(map[string]core.RegionSnapshot, len(rgs.readings))
	for _, r := range rgs.readings {
		if r.RegionID == "" {
			continue
		}
		snapshots[r.RegionID] = core.NewRegionSnapshot(r, e.opts.Profiles.Get(r.RegionID))
	}
	if len(snapshots) > 0 {
		d.DataSources = appendSource(d.DataSources, rgs.source)
	}

	fair := e.fairnessSnapshot(ctx, log)
	in := strategies.NewInput(start, region, profile, policy, reading.Value, fc.points, snapshots, fair)
	options := make([]core.StrategyOption, 0, len(e.evaluators))
	for _, ev := range e.evaluators {
		if opt, ok := ev.Evaluate(in); ok {
			options = append(options, opt)
		}
	}

	return e.finish(ctx, log, d, best(options), options)
}

// priority breaks score ties: staying put beats moving, and a single move
// beats a combined one.
var priority = map[core.StrategyKind]int{
	core.RunNow:     0,
	core.TimeShift:  1,
	core.SpaceShift: 2,
	core.Hybrid:     3,
}

// best returns the highest scoring option. Equal scores go to the kind with
// the lower priority value regardless of input order.
func best(options []core.StrategyOption) core.StrategyOption {
	b := options[0]
	for _, o := range options[1:] {
		if o.Score > b.Score || (o.Score == b.Score && priority[o.Strategy] < priority[b.Strategy]) {
			b = o
		}
	}
	return b
}

// recoverFetch turns a panicking provider into a missing data set. It must be
// deferred directly by the goroutine that fetches.
func recoverFetch(log zerolog.Logger, what string) {
	if r := recover(); r != nil {
		log.Error().Interface("panic", r).Str("fetch", what).Msg("provider panicked, treating as no data")
	}
}

func (e *Engine) fairnessSnapshot(ctx context.Context, log zerolog.Logger) fairness.Snapshot {
	snap, err := e.fairness.Snapshot(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("selection history unavailable, fairness disabled for this decision")
		return fairness.NewSnapshot(e.opts.Alpha, nil)
	}
	return snap
}

func (e *Engine) finish(ctx context.Context, log zerolog.Logger, d core.SchedulingDecision, best core.StrategyOption, options []core.StrategyOption) core.SchedulingDecision {
	d.Strategy = best.Strategy
	d.TargetRegion = best.TargetRegion
	d.ScheduledTime = best.ScheduledTime
	d.WaitHours = best.WaitHours
	d.CurrentIntensity = best.CurrentIntensity
	d.TargetIntensity = best.TargetIntensity
	d.SavingsPercent = best.SavingsPercent
	d.Rationale = best.Rationale
	d.Options = options

	if err := e.fairness.Record(ctx, best.TargetRegion); err != nil {
		log.Warn().Err(err).Str("target", best.TargetRegion).Msg("failed to record selection")
	}
	return d
}

func failed(d core.SchedulingDecision, err error) core.SchedulingDecision {
	d.Strategy = core.RunNow
	d.TargetRegion = d.CurrentRegion
	d.ScheduledTime = nil
	d.WaitHours = 0
	d.CurrentIntensity = 0
	d.TargetIntensity = 0
	d.SavingsPercent = 0
	d.Error = err.Error()
	d.Rationale = "no carbon intensity data available; defaulting to run now without optimisation"
	d.Options = []core.StrategyOption{{
		Strategy:     core.RunNow,
		TargetRegion: d.CurrentRegion,
		Rationale:    d.Rationale,
	}}
	return d
}

func appendSource(list []string, name string) []string {
	if name == "" {
		return list
	}
	for _, s := range list {
		if s == name {
			return list
		}
	}
	return append(list, name)
}
