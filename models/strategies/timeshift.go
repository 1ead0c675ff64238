package strategies

import (
	"fmt"
	"math"

	"github.com/g-uva/kube-carbon-scheduler/models/maizx"
	"github.com/g-uva/kube-carbon-scheduler/models/slack"
	"github.com/g-uva/kube-carbon-scheduler/pkg/core"
)

// TimeShiftEvaluator delays the workload in its current region.
type TimeShiftEvaluator struct {
	Model             maizx.Model
	Enabled           bool
	MinSavingsPercent float64
	Slack             slack.Expander
}

func (TimeShiftEvaluator) Kind() core.StrategyKind { return core.TimeShift }

func (e TimeShiftEvaluator) Evaluate(in Input) (core.StrategyOption, bool) {
	if !e.Enabled || len(in.Adjusted) == 0 {
		return core.StrategyOption{}, false
	}

	window := e.Slack.Expand(in.Adjusted, in.Now, in.CurrentAdjusted, in.Policy.MaxWaitHours)

	bestIdx := -1
	bestHours := 0.0
	bestPenalized := math.Inf(1)
	for i, p := range in.Adjusted {
		h := p.HoursFrom(in.Now)
		if h < MinShiftHours || h > window.EffectiveHours {
			continue
		}
		if !(p.RawIntensity < in.CurrentRaw*TimeShiftImprovement) {
			continue
		}
		penalized := p.Intensity * (1 + in.Policy.WaitPenaltyPerHour*h)
		if penalized < bestPenalized {
			bestIdx, bestHours, bestPenalized = i, h, penalized
		}
	}
	if bestIdx < 0 {
		return core.StrategyOption{}, false
	}

	best := in.Adjusted[bestIdx]
	savings := core.SavingsPercent(in.CurrentAdjusted, best.Intensity)
	if savings <= 0 || savings < e.MinSavingsPercent {
		return core.StrategyOption{}, false
	}

	sc := e.Model.Score(maizx.Input{
		CurrentIntensity:     in.CurrentAdjusted,
		TargetIntensity:      best.Intensity,
		ForecastAvgIntensity: in.ForecastAvg,
		RenewablePercent:     in.Profile.RenewablePercent(),
		WaitHours:            bestHours,
		MaxWaitHours:         window.EffectiveHours,
	})
	return core.StrategyOption{
		Strategy:         core.TimeShift,
		TargetRegion:     in.Region,
		ScheduledTime:    timePtr(best.TimeFrom),
		WaitHours:        bestHours,
		CurrentIntensity: in.CurrentAdjusted,
		TargetIntensity:  best.Intensity,
		SavingsPercent:   savings,
		Breakdown:        sc,
		Score:            sc.Total,
		Rationale: fmt.Sprintf("delay %.1fh in %s: %.0f -> %.0f gCO2/kWh (%.1f%% lower); window %s",
			bestHours, in.Region, in.CurrentAdjusted, best.Intensity, savings, window.Reason),
	}, true
}
