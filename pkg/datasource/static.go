package datasource

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/g-uva/kube-carbon-scheduler/pkg/core"
)

// Static serves fixed readings. It backs offline runs and simulations and
// implements all three source interfaces.
type Static struct {
	Label string

	mu       sync.RWMutex
	current  map[string]float64
	forecast []core.ForecastPoint
	regions  []core.GridReading
}

func NewStatic(label string, regions []core.GridReading, forecast []core.ForecastPoint) *Static {
	s := &Static{Label: label, current: make(map[string]float64)}
	s.Set(regions, forecast)
	return s
}

// Set replaces the served data.
func (s *Static) Set(regions []core.GridReading, forecast []core.ForecastPoint) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.regions = append([]core.GridReading(nil), regions...)
	s.forecast = append([]core.ForecastPoint(nil), forecast...)
	s.current = make(map[string]float64, len(regions))
	for _, r := range regions {
		s.current[r.RegionID] = r.GridIntensity
	}
}

func (s *Static) Name() string {
	if s.Label == "" {
		return "static"
	}
	return s.Label
}

func (s *Static) CurrentIntensity(_ context.Context, region string) (Reading, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.current[region]
	if !ok {
		return Reading{}, fmt.Errorf("%s: region %q: %w", s.Name(), region, ErrNoData)
	}
	return Reading{Region: region, Value: v, Index: QualitativeIndex(v), Provenance: s.Name()}, nil
}

// Forecast returns the points that start within hours of the first point.
func (s *Static) Forecast(_ context.Context, hours int) ([]core.ForecastPoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.forecast) == 0 {
		return nil, fmt.Errorf("%s: forecast: %w", s.Name(), ErrNoData)
	}
	if hours <= 0 {
		return append([]core.ForecastPoint(nil), s.forecast...), nil
	}
	horizon := s.forecast[0].TimeFrom.Add(time.Duration(hours) * time.Hour)
	out := make([]core.ForecastPoint, 0, len(s.forecast))
	for _, p := range s.forecast {
		if p.TimeFrom.After(horizon) {
			break
		}
		out = append(out, p)
	}
	return out, nil
}

func (s *Static) Regions(_ context.Context) ([]core.GridReading, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.regions) == 0 {
		return nil, fmt.Errorf("%s: regions: %w", s.Name(), ErrNoData)
	}
	return append([]core.GridReading(nil), s.regions...), nil
}
