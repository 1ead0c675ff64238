package core

import (
	"fmt"
	"strings"
	"time"
)

// Criticality classifies how much wait or relocation a workload tolerates.
type Criticality int

const (
	Critical Criticality = iota
	High
	Normal
	Low
)

func (c Criticality) String() string {
	switch c {
	case Critical:
		return "CRITICAL"
	case High:
		return "HIGH"
	case Normal:
		return "NORMAL"
	case Low:
		return "LOW"
	default:
		return "UNKNOWN"
	}
}

func ParseCriticality(s string) (Criticality, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "CRITICAL":
		return Critical, nil
	case "HIGH":
		return High, nil
	case "NORMAL", "":
		return Normal, nil
	case "LOW":
		return Low, nil
	}
	return Normal, fmt.Errorf("unknown criticality %q", s)
}

func (c Criticality) MarshalText() ([]byte, error) { return []byte(c.String()), nil }

func (c *Criticality) UnmarshalText(b []byte) error {
	v, err := ParseCriticality(string(b))
	if err != nil {
		return err
	}
	*c = v
	return nil
}

// CriticalityPolicy is the wait and relocation budget granted to a criticality.
type CriticalityPolicy struct {
	MaxWaitHours       float64
	WaitPenaltyPerHour float64
	AllowRegionSwitch  bool
	RegionSwitchCost   float64
}

var criticalityPolicies = map[Criticality]CriticalityPolicy{
	Critical: {MaxWaitHours: 0, WaitPenaltyPerHour: 1.0, AllowRegionSwitch: false, RegionSwitchCost: 1.0},
	High:     {MaxWaitHours: 2, WaitPenaltyPerHour: 0.10, AllowRegionSwitch: true, RegionSwitchCost: 0.5},
	Normal:   {MaxWaitHours: 12, WaitPenaltyPerHour: 0.02, AllowRegionSwitch: true, RegionSwitchCost: 0.3},
	Low:      {MaxWaitHours: 24, WaitPenaltyPerHour: 0.01, AllowRegionSwitch: true, RegionSwitchCost: 0.1},
}

// Policy resolves the fixed policy table. Unknown values get the NORMAL policy.
func (c Criticality) Policy() CriticalityPolicy {
	if p, ok := criticalityPolicies[c]; ok {
		return p
	}
	return criticalityPolicies[Normal]
}

// Request asks for a decision for one workload.
type Request struct {
	Workload    string      `json:"workload"`
	Region      string      `json:"region"`
	Criticality Criticality `json:"criticality"`
	SubmitTime  time.Time   `json:"submit_time,omitempty"`
}

func (r Request) Validate() error {
	if r.Workload == "" {
		return fmt.Errorf("workload name cannot be empty")
	}
	if r.Region == "" {
		return fmt.Errorf("workload %q: region cannot be empty", r.Workload)
	}
	return nil
}
