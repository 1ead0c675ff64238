package maizx

import "math"

// FootprintCeiling is the intensity (gCO₂/kWh) treated as a very dirty grid;
// forecasts at or above it get a zero footprint score.
const FootprintCeiling = 200.0

// Weights for the four score terms (all terms are 0..1 before weighting).
type Weights struct {
	CarbonSavings       float64 `yaml:"carbon_savings" json:"carbon_savings"`
	ForecastedFootprint float64 `yaml:"forecasted_footprint" json:"forecasted_footprint"`
	Efficiency          float64 `yaml:"efficiency" json:"efficiency"`
	Urgency             float64 `yaml:"urgency" json:"urgency"`
}

func DefaultWeights() Weights {
	return Weights{CarbonSavings: 0.30, ForecastedFootprint: 0.30, Efficiency: 0.20, Urgency: 0.20}
}

func (w Weights) Sum() float64 {
	return w.CarbonSavings + w.ForecastedFootprint + w.Efficiency + w.Urgency
}

// Normalized rescales the weights so they sum to 1. Negative weights are
// dropped to zero; an all-zero set falls back to DefaultWeights.
func (w Weights) Normalized() Weights {
	w.CarbonSavings = math.Max(0, w.CarbonSavings)
	w.ForecastedFootprint = math.Max(0, w.ForecastedFootprint)
	w.Efficiency = math.Max(0, w.Efficiency)
	w.Urgency = math.Max(0, w.Urgency)

	sum := w.Sum()
	if sum <= 0 || math.IsNaN(sum) || math.IsInf(sum, 0) {
		return DefaultWeights()
	}
	if math.Abs(sum-1) < 1e-9 {
		return w
	}
	return Weights{
		CarbonSavings:       w.CarbonSavings / sum,
		ForecastedFootprint: w.ForecastedFootprint / sum,
		Efficiency:          w.Efficiency / sum,
		Urgency:             w.Urgency / sum,
	}
}

// Input is everything the model needs to rate one candidate plan.
type Input struct {
	CurrentIntensity     float64
	TargetIntensity      float64
	ForecastAvgIntensity float64
	RenewablePercent     float64
	WaitHours            float64
	MaxWaitHours         float64
}
