// Package maizx implements the MAIZX composite score used to rank
// scheduling options. Every function here is pure.
package maizx

import (
	"math"

	"github.com/g-uva/kube-carbon-scheduler/pkg/core"
)

// Model holds the weights; build it with New so they are normalised.
type Model struct {
	W Weights
}

func New(w Weights) Model { return Model{W: w.Normalized()} }

func (m Model) Name() string { return "maizx" }

// Score rates one option. Higher totals are better.
func (m Model) Score(in Input) core.CompositeScore {
	sc := core.CompositeScore{
		CarbonSavingsPotential: CarbonSavings(in.CurrentIntensity, in.TargetIntensity),
		ForecastedFootprint:    ForecastedFootprint(in.ForecastAvgIntensity),
		Efficiency:             Efficiency(in.RenewablePercent),
		Urgency:                Urgency(in.WaitHours, in.MaxWaitHours),
	}
	sc.Total = m.W.CarbonSavings*sc.CarbonSavingsPotential +
		m.W.ForecastedFootprint*sc.ForecastedFootprint +
		m.W.Efficiency*sc.Efficiency +
		m.W.Urgency*sc.Urgency
	return sc
}

// CarbonSavings maps "no savings" to 0.5 and full savings to 1.0.
func CarbonSavings(current, target float64) float64 {
	if !(current > 0) {
		return 0.5
	}
	rel := (current - target) / current
	if math.IsNaN(rel) {
		return 0.5
	}
	return 0.5 + 0.5*clamp(rel, 0, 1)
}

// ForecastedFootprint is 1 for a clean forecast and 0 at FootprintCeiling.
// A missing forecast is neutral.
func ForecastedFootprint(avg float64) float64 {
	if !(avg > 0) {
		return 0.5
	}
	return 1 - math.Min(avg/FootprintCeiling, 1.0)
}

// Efficiency rewards renewable coverage; missing telemetry is neutral.
func Efficiency(renewablePct float64) float64 {
	if !(renewablePct > 0) {
		return 0.5
	}
	return math.Min(renewablePct/100, 1.0)
}

// Urgency decays linearly with the share of the wait budget consumed.
func Urgency(waitHours, maxWaitHours float64) float64 {
	if !(maxWaitHours > 0) {
		return 1.0
	}
	return clamp(1-waitHours/maxWaitHours, 0, 1)
}

func clamp(x, lo, hi float64) float64 {
	if x < lo {
		return lo
	}
	if x > hi {
		return hi
	}
	return x
}
