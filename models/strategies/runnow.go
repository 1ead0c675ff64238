package strategies

import (
	"fmt"

	"github.com/g-uva/kube-carbon-scheduler/models/maizx"
	"github.com/g-uva/kube-carbon-scheduler/pkg/core"
)

// RunNowEvaluator is the baseline: start immediately where the workload is.
type RunNowEvaluator struct {
	Model maizx.Model
}

func (RunNowEvaluator) Kind() core.StrategyKind { return core.RunNow }

func (e RunNowEvaluator) Evaluate(in Input) (core.StrategyOption, bool) {
	sc := e.Model.Score(maizx.Input{
		CurrentIntensity:     in.CurrentAdjusted,
		TargetIntensity:      in.CurrentAdjusted,
		ForecastAvgIntensity: in.ForecastAvg,
		RenewablePercent:     in.Profile.RenewablePercent(),
		WaitHours:            0,
		MaxWaitHours:         in.Policy.MaxWaitHours,
	})
	return core.StrategyOption{
		Strategy:         core.RunNow,
		TargetRegion:     in.Region,
		CurrentIntensity: in.CurrentAdjusted,
		TargetIntensity:  in.CurrentAdjusted,
		Breakdown:        sc,
		Score:            sc.Total,
		Rationale:        fmt.Sprintf("run now in %s at %.0f gCO2/kWh", in.Region, in.CurrentAdjusted),
	}, true
}
