package core

import "time"

// StrategyKind names the way a decision shifts a workload.
type StrategyKind string

const (
	RunNow     StrategyKind = "RUN_NOW"
	TimeShift  StrategyKind = "TIME_SHIFT"
	SpaceShift StrategyKind = "SPACE_SHIFT"
	Hybrid     StrategyKind = "HYBRID"
)

// CompositeScore is the MAIZX breakdown of an option. Higher is better.
type CompositeScore struct {
	CarbonSavingsPotential float64 `json:"carbon_savings_potential"`
	ForecastedFootprint    float64 `json:"forecasted_footprint"`
	Efficiency             float64 `json:"efficiency"`
	Urgency                float64 `json:"urgency"`
	Total                  float64 `json:"total"`
}

// StrategyOption is one candidate plan produced by an evaluator.
type StrategyOption struct {
	Strategy         StrategyKind   `json:"strategy"`
	TargetRegion     string         `json:"target_region"`
	ScheduledTime    *time.Time     `json:"scheduled_time"`
	WaitHours        float64        `json:"wait_hours"`
	CurrentIntensity float64        `json:"current_intensity"`
	TargetIntensity  float64        `json:"target_intensity"`
	SavingsPercent   float64        `json:"savings_percent"`
	Breakdown        CompositeScore `json:"score_breakdown"`
	// Score is the value used for ranking: Breakdown.Total after fairness
	// and switch-cost adjustments.
	Score     float64 `json:"score"`
	Rationale string  `json:"rationale"`
}

// SchedulingDecision is the outcome of one Decide call.
type SchedulingDecision struct {
	ID               string           `json:"id"`
	WorkloadName     string           `json:"workload_name"`
	Criticality      Criticality      `json:"criticality"`
	CurrentRegion    string           `json:"current_region"`
	Strategy         StrategyKind     `json:"strategy"`
	TargetRegion     string           `json:"target_region"`
	ScheduledTime    *time.Time       `json:"scheduled_time"`
	WaitHours        float64          `json:"wait_hours"`
	CurrentIntensity float64          `json:"current_intensity"`
	TargetIntensity  float64          `json:"target_intensity"`
	SavingsPercent   float64          `json:"savings_percent"`
	Options          []StrategyOption `json:"options"`
	DataSources      []string         `json:"data_sources"`
	Rationale        string           `json:"rationale"`
	Error            string           `json:"error,omitempty"`
	DecidedAt        time.Time        `json:"decided_at"`
}

// Failed reports whether the decision was produced without any current
// intensity data.
func (d SchedulingDecision) Failed() bool { return d.Error != "" }

// SavingsPercent returns the relative improvement of target over current.
func SavingsPercent(current, target float64) float64 {
	if current <= 0 {
		return 0
	}
	return (current - target) / current * 100
}

// EmissionsGrams converts energy in kWh at an intensity in gCO2/kWh to grams.
func EmissionsGrams(energyKWh, intensity float64) float64 {
	if energyKWh <= 0 || intensity <= 0 {
		return 0
	}
	return energyKWh * intensity
}

// AvoidedGrams estimates the emissions the decision avoids for a workload
// drawing energyKWh.
func (d SchedulingDecision) AvoidedGrams(energyKWh float64) float64 {
	return EmissionsGrams(energyKWh, d.CurrentIntensity) - EmissionsGrams(energyKWh, d.TargetIntensity)
}
