package strategies

import (
	"fmt"
	"math"

	"github.com/g-uva/kube-carbon-scheduler/models/maizx"
	"github.com/g-uva/kube-carbon-scheduler/pkg/core"
)

// HybridEvaluator moves the workload and delays it.
//
// The reference forecast only covers the current region, so a candidate
// region's future intensity is estimated by scaling its present adjusted
// intensity with the reference curve's relative change. This assumes the two
// grids trend together.
type HybridEvaluator struct {
	Model             maizx.Model
	Enabled           bool
	MinSavingsPercent float64
}

func (HybridEvaluator) Kind() core.StrategyKind { return core.Hybrid }

func (e HybridEvaluator) Evaluate(in Input) (core.StrategyOption, bool) {
	if !e.Enabled || !in.Policy.AllowRegionSwitch || len(in.Forecast) == 0 || len(in.Regions) == 0 {
		return core.StrategyOption{}, false
	}
	if !(in.CurrentRaw > 0) {
		return core.StrategyOption{}, false
	}

	threshold := e.MinSavingsPercent * HybridSavingsFactor
	maxWait := in.Policy.MaxWaitHours
	switchPenalty := in.Policy.RegionSwitchCost * SwitchCostWeight

	var best core.StrategyOption
	bestScore := math.Inf(-1)
	found := false

	for _, id := range in.candidateRegions() {
		snap := in.Regions[id]
		for _, p := range in.Forecast {
			h := p.HoursFrom(in.Now)
			if h < MinShiftHours || h > maxWait {
				continue
			}
			target := snap.WorkloadAdjustedIntensity * (p.RawIntensity / in.CurrentRaw)
			savings := core.SavingsPercent(in.CurrentAdjusted, target)
			if savings <= 0 || savings < threshold {
				continue
			}

			sc := e.Model.Score(maizx.Input{
				CurrentIntensity:     in.CurrentAdjusted,
				TargetIntensity:      target,
				ForecastAvgIntensity: target,
				RenewablePercent:     snap.RenewablePercent(),
				WaitHours:            h,
				MaxWaitHours:         maxWait,
			})
			penalty := switchPenalty + in.Policy.WaitPenaltyPerHour*h*HybridWaitWeight
			adjusted := in.Fairness.Adjust(sc.Total, id) - penalty
			if adjusted > bestScore {
				bestScore = adjusted
				found = true
				best = core.StrategyOption{
					Strategy:         core.Hybrid,
					TargetRegion:     id,
					ScheduledTime:    timePtr(p.TimeFrom),
					WaitHours:        h,
					CurrentIntensity: in.CurrentAdjusted,
					TargetIntensity:  target,
					SavingsPercent:   savings,
					Breakdown:        sc,
					Score:            adjusted,
					Rationale: fmt.Sprintf("move %s -> %s and delay %.1fh: %.0f -> ~%.0f gCO2/kWh (%.1f%% lower, trend-scaled estimate)",
						in.Region, id, h, in.CurrentAdjusted, target, savings),
				}
			}
		}
	}
	return best, found
}
