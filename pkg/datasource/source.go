// Package datasource defines what the decision engine consumes from grid
// data providers, plus adapters for the providers it knows about.
package datasource

import (
	"context"
	"errors"
	"time"

	"github.com/g-uva/kube-carbon-scheduler/pkg/core"
)

var (
	// ErrNoData means the provider answered but had nothing usable.
	ErrNoData = errors.New("datasource: no data")
	// ErrAllSourcesFailed means every source in a fallback chain failed.
	ErrAllSourcesFailed = errors.New("datasource: all sources failed")
)

// Reading is a current grid intensity for one region.
type Reading struct {
	Region     string
	Value      float64
	Index      string
	Provenance string
	At         time.Time
}

type IntensitySource interface {
	Name() string
	CurrentIntensity(ctx context.Context, region string) (Reading, error)
}

type ForecastSource interface {
	Name() string
	Forecast(ctx context.Context, hours int) ([]core.ForecastPoint, error)
}

// RegionSource lists the current grid reading of every region it knows.
// A partial list is a valid answer.
type RegionSource interface {
	Name() string
	Regions(ctx context.Context) ([]core.GridReading, error)
}

// Provider serves all three kinds of data.
type Provider interface {
	IntensitySource
	ForecastSource
	RegionSource
}

var (
	_ Provider = (*Static)(nil)
	_ Provider = (*CarbonIntensityClient)(nil)
	_ Provider = (*ElectricityMapsClient)(nil)
	_ Provider = (*Chain)(nil)
)

// QualitativeIndex buckets an intensity the same way the UK grid operator
// labels its forecasts.
func QualitativeIndex(v float64) string {
	switch {
	case v < 40:
		return "very low"
	case v < 120:
		return "low"
	case v < 200:
		return "moderate"
	case v < 290:
		return "high"
	default:
		return "very high"
	}
}
