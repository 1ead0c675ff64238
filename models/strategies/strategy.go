// Package strategies holds the four evaluators that each propose at most one
// scheduling option per decision cycle.
package strategies

import (
	"time"

	"k8s.io/apimachinery/pkg/util/sets"

	"github.com/g-uva/kube-carbon-scheduler/models/fairness"
	"github.com/g-uva/kube-carbon-scheduler/models/maizx"
	"github.com/g-uva/kube-carbon-scheduler/models/slack"
	"github.com/g-uva/kube-carbon-scheduler/pkg/core"
)

const (
	// MinShiftHours is the earliest a time shift may start.
	MinShiftHours = 0.5
	// TimeShiftImprovement is the share of the current raw intensity a
	// forecast point must stay below to count as a time-shift candidate.
	TimeShiftImprovement = 0.9
	// ForecastAverageWindow is how many leading points feed the footprint score.
	ForecastAverageWindow = 12
	// SwitchCostWeight scales a criticality's region-switch cost into score units.
	SwitchCostWeight = 0.02
	// HybridWaitWeight scales the per-hour wait penalty into score units.
	HybridWaitWeight = 0.01
	// HybridSavingsFactor tightens the savings threshold for hybrid plans.
	HybridSavingsFactor = 1.5
)

// Evaluator proposes one option, or none when its strategy does not apply.
type Evaluator interface {
	Kind() core.StrategyKind
	Evaluate(in Input) (core.StrategyOption, bool)
}

// Input is the shared, read-only view of one decision cycle.
type Input struct {
	Now             time.Time
	Region          string
	Profile         core.RegionProfile
	Policy          core.CriticalityPolicy
	CurrentRaw      float64
	CurrentAdjusted float64

	// Forecast holds raw grid values; Adjusted is the same curve converted
	// with the current region's profile.
	Forecast    []core.ForecastPoint
	Adjusted    []core.AdjustedPoint
	ForecastAvg float64

	Regions  map[string]core.RegionSnapshot
	Fairness fairness.Snapshot
}

// NewInput derives the adjusted forecast and its trailing average.
func NewInput(now time.Time, region string, profile core.RegionProfile, policy core.CriticalityPolicy,
	currentRaw float64, forecast []core.ForecastPoint, regions map[string]core.RegionSnapshot, fair fairness.Snapshot) Input {
	adjusted := core.AdjustForecast(forecast, profile)
	return Input{
		Now:             now,
		Region:          region,
		Profile:         profile,
		Policy:          policy,
		CurrentRaw:      currentRaw,
		CurrentAdjusted: profile.Adjust(currentRaw),
		Forecast:        forecast,
		Adjusted:        adjusted,
		ForecastAvg:     core.TrailingAverage(adjusted, ForecastAverageWindow),
		Regions:         regions,
		Fairness:        fair,
	}
}

// candidateRegions lists every known region except the current one, sorted
// so ties resolve the same way on every run.
func (in Input) candidateRegions() []string {
	ids := sets.KeySet(in.Regions)
	ids.Delete(in.Region)
	return sets.List(ids)
}

// Config toggles and tunes the evaluators.
type Config struct {
	Model             maizx.Model
	MinSavingsPercent float64
	TimeShift         bool
	SpaceShift        bool
	Hybrid            bool
	DynamicSlack      bool
}

// Evaluators returns the evaluators in tie-break order.
func Evaluators(cfg Config) []Evaluator {
	return []Evaluator{
		RunNowEvaluator{Model: cfg.Model},
		TimeShiftEvaluator{
			Model:             cfg.Model,
			Enabled:           cfg.TimeShift,
			MinSavingsPercent: cfg.MinSavingsPercent,
			Slack:             slack.Expander{Enabled: cfg.DynamicSlack},
		},
		SpaceShiftEvaluator{Model: cfg.Model, Enabled: cfg.SpaceShift, MinSavingsPercent: cfg.MinSavingsPercent},
		HybridEvaluator{Model: cfg.Model, Enabled: cfg.Hybrid, MinSavingsPercent: cfg.MinSavingsPercent},
	}
}

func timePtr(t time.Time) *time.Time { return &t }
