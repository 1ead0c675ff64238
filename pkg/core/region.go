package core

import (
	"fmt"
	"time"
)

// RegionProfile describes the facility a workload runs in for one grid region.
// OverheadFactor plays the role of the site PUE; RenewableFraction is the share
// of the facility's draw covered by on-site or contracted renewables.
type RegionProfile struct {
	ID                string  `yaml:"id" json:"id"`
	ZoneID            string  `yaml:"zone" json:"zone"`
	RenewableFraction float64 `yaml:"renewable_fraction" json:"renewable_fraction"`
	OverheadFactor    float64 `yaml:"overhead_factor" json:"overhead_factor"`
}

// DefaultProfile is used for regions with no configured profile:
// no renewables and no facility overhead.
func DefaultProfile(id string) RegionProfile {
	return RegionProfile{ID: id, ZoneID: id, OverheadFactor: 1.0}
}

func (p RegionProfile) Validate() error {
	if p.ID == "" {
		return fmt.Errorf("region profile: id cannot be empty")
	}
	if p.RenewableFraction < 0 || p.RenewableFraction > 1 {
		return fmt.Errorf("region %q: renewable_fraction %.3f outside [0,1]", p.ID, p.RenewableFraction)
	}
	if p.OverheadFactor < 1.0 {
		return fmt.Errorf("region %q: overhead_factor %.3f must be >= 1.0", p.ID, p.OverheadFactor)
	}
	return nil
}

// Adjust converts a raw grid intensity into the workload-adjusted intensity
// for this facility.
func (p RegionProfile) Adjust(grid float64) float64 {
	return WorkloadAdjustedIntensity(grid, p.RenewableFraction, p.OverheadFactor)
}

// RenewablePercent is the renewable fraction expressed in percent.
func (p RegionProfile) RenewablePercent() float64 { return p.RenewableFraction * 100 }

// WorkloadAdjustedIntensity computes grid × (1 − renewable) × overhead.
// Out-of-range parameters are clamped so the result is never negative.
func WorkloadAdjustedIntensity(grid, renewableFraction, overheadFactor float64) float64 {
	if grid < 0 {
		grid = 0
	}
	renewableFraction = clamp(renewableFraction, 0, 1)
	if overheadFactor < 1.0 {
		overheadFactor = 1.0
	}
	return grid * (1 - renewableFraction) * overheadFactor
}

// GridReading is a raw regional measurement as delivered by a data source.
type GridReading struct {
	RegionID      string
	ZoneID        string
	GridIntensity float64
	Index         string
	GenerationMix map[string]float64
	UpdatedAt     time.Time
}

// RegionSnapshot is the per-decision view of one region. Build it with
// NewRegionSnapshot so WorkloadAdjustedIntensity always follows the profile.
type RegionSnapshot struct {
	RegionID                  string    `json:"region_id"`
	ZoneID                    string    `json:"zone_id"`
	GridIntensity             float64   `json:"grid_intensity"`
	WorkloadAdjustedIntensity float64   `json:"workload_adjusted_intensity"`
	RenewableFraction         float64   `json:"renewable_fraction"`
	UpdatedAt                 time.Time `json:"updated_at"`
}

func NewRegionSnapshot(r GridReading, p RegionProfile) RegionSnapshot {
	zone := r.ZoneID
	if zone == "" {
		zone = p.ZoneID
	}
	return RegionSnapshot{
		RegionID:                  r.RegionID,
		ZoneID:                    zone,
		GridIntensity:             r.GridIntensity,
		WorkloadAdjustedIntensity: p.Adjust(r.GridIntensity),
		RenewableFraction:         clamp(p.RenewableFraction, 0, 1),
		UpdatedAt:                 r.UpdatedAt,
	}
}

func (s RegionSnapshot) RenewablePercent() float64 { return s.RenewableFraction * 100 }

// Profiles indexes region profiles by id, falling back to DefaultProfile.
type Profiles map[string]RegionProfile

func NewProfiles(list []RegionProfile) Profiles {
	out := make(Profiles, len(list))
	for _, p := range list {
		out[p.ID] = p
	}
	return out
}

func (ps Profiles) Get(id string) RegionProfile {
	if p, ok := ps[id]; ok {
		return p
	}
	return DefaultProfile(id)
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
