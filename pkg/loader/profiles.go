package loader

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/g-uva/kube-carbon-scheduler/pkg/core"
)

// LoadProfiles parses a CSV of:
//
//	id,overhead_factor,renewable_fraction,zone
//
// Every profile is validated.
func LoadProfiles(path string) (core.Profiles, error) {
	profiles := core.Profiles{}
	err := readAll(path, 3, func(_ int, rec []string) error {
		id := strings.TrimSpace(rec[0])
		overhead, err := strconv.ParseFloat(strings.TrimSpace(rec[1]), 64)
		if err != nil {
			return fmt.Errorf("overhead_factor: %w", err)
		}
		renewable, err := strconv.ParseFloat(strings.TrimSpace(rec[2]), 64)
		if err != nil {
			return fmt.Errorf("renewable_fraction: %w", err)
		}
		p := core.RegionProfile{ID: id, ZoneID: id, OverheadFactor: overhead, RenewableFraction: renewable}
		if len(rec) > 3 && strings.TrimSpace(rec[3]) != "" {
			p.ZoneID = strings.TrimSpace(rec[3])
		}
		if err := p.Validate(); err != nil {
			return err
		}
		profiles[id] = p
		return nil
	})
	if err != nil {
		return nil, err
	}
	return profiles, nil
}

// AttachZones fills in missing reading zones from the profiles.
func AttachZones(readings []core.GridReading, profiles core.Profiles) {
	for i := range readings {
		if readings[i].ZoneID != "" {
			continue
		}
		if p, ok := profiles[readings[i].RegionID]; ok {
			readings[i].ZoneID = p.ZoneID
		}
	}
}
