package strategies

import (
	"fmt"
	"math"

	"github.com/g-uva/kube-carbon-scheduler/models/maizx"
	"github.com/g-uva/kube-carbon-scheduler/pkg/core"
)

// SpaceShiftEvaluator moves the workload to the best other region right now.
type SpaceShiftEvaluator struct {
	Model             maizx.Model
	Enabled           bool
	MinSavingsPercent float64
}

func (SpaceShiftEvaluator) Kind() core.StrategyKind { return core.SpaceShift }

func (e SpaceShiftEvaluator) Evaluate(in Input) (core.StrategyOption, bool) {
	if !e.Enabled || !in.Policy.AllowRegionSwitch || len(in.Regions) == 0 {
		return core.StrategyOption{}, false
	}

	switchPenalty := in.Policy.RegionSwitchCost * SwitchCostWeight
	var best core.StrategyOption
	bestScore := math.Inf(-1)
	found := false

	for _, id := range in.candidateRegions() {
		snap := in.Regions[id]
		target := snap.WorkloadAdjustedIntensity
		savings := core.SavingsPercent(in.CurrentAdjusted, target)
		if savings <= 0 || savings < e.MinSavingsPercent {
			continue
		}

		sc := e.Model.Score(maizx.Input{
			CurrentIntensity:     in.CurrentAdjusted,
			TargetIntensity:      target,
			ForecastAvgIntensity: target,
			RenewablePercent:     snap.RenewablePercent(),
			WaitHours:            0,
			MaxWaitHours:         in.Policy.MaxWaitHours,
		})
		adjusted := in.Fairness.Adjust(sc.Total, id) - switchPenalty
		if adjusted > bestScore {
			bestScore = adjusted
			found = true
			best = core.StrategyOption{
				Strategy:         core.SpaceShift,
				TargetRegion:     id,
				CurrentIntensity: in.CurrentAdjusted,
				TargetIntensity:  target,
				SavingsPercent:   savings,
				Breakdown:        sc,
				Score:            adjusted,
				Rationale: fmt.Sprintf("move %s -> %s now: %.0f -> %.0f gCO2/kWh (%.1f%% lower)",
					in.Region, id, in.CurrentAdjusted, target, savings),
			}
		}
	}
	return best, found
}
