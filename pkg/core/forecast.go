package core

import "time"

// ForecastPoint is one interval of a grid intensity forecast. RawIntensity is
// the grid value before any facility adjustment.
type ForecastPoint struct {
	TimeFrom      time.Time          `json:"from"`
	TimeTo        time.Time          `json:"to"`
	RawIntensity  float64            `json:"intensity"`
	Index         string             `json:"index,omitempty"`
	GenerationMix map[string]float64 `json:"generation_mix,omitempty"`
}

// HoursFrom returns the number of hours between now and the start of the point.
func (p ForecastPoint) HoursFrom(now time.Time) float64 {
	return p.TimeFrom.Sub(now).Hours()
}

// AdjustedPoint pairs a forecast point with its workload-adjusted intensity.
type AdjustedPoint struct {
	ForecastPoint
	Intensity float64
}

// AdjustForecast converts a raw forecast into workload-adjusted intensities
// for the given facility profile.
func AdjustForecast(points []ForecastPoint, p RegionProfile) []AdjustedPoint {
	out := make([]AdjustedPoint, 0, len(points))
	for _, fp := range points {
		out = append(out, AdjustedPoint{ForecastPoint: fp, Intensity: p.Adjust(fp.RawIntensity)})
	}
	return out
}

// TrailingAverage averages the adjusted intensity of the first n points.
// It returns 0 when there is nothing to average.
func TrailingAverage(points []AdjustedPoint, n int) float64 {
	if n > len(points) {
		n = len(points)
	}
	if n <= 0 {
		return 0
	}
	sum := 0.0
	for _, p := range points[:n] {
		sum += p.Intensity
	}
	return sum / float64(n)
}
