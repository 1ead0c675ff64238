package datasource

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/g-uva/kube-carbon-scheduler/pkg/core"
)

// Chain tries sources in order and returns the first success. Each field may
// be left empty when the deployment has no source for that kind of data.
type Chain struct {
	Intensity []IntensitySource
	Forecasts []ForecastSource
	Regional  []RegionSource
	Log       zerolog.Logger
	// OnFailure is called for every source that fails.
	OnFailure func(source string, err error)
}

type named interface{ Name() string }

func firstOf[S named, T any](c *Chain, what string, sources []S, call func(S) (T, error)) (T, string, error) {
	var (
		zero T
		errs []error
	)
	for _, s := range sources {
		v, err := call(s)
		if err == nil {
			return v, s.Name(), nil
		}
		c.Log.Warn().Err(err).Str("source", s.Name()).Str("kind", what).Msg("source failed, trying next")
		if c.OnFailure != nil {
			c.OnFailure(s.Name(), err)
		}
		errs = append(errs, err)
	}
	if len(errs) == 0 {
		return zero, "", fmt.Errorf("%s: no sources configured: %w", what, ErrAllSourcesFailed)
	}
	return zero, "", fmt.Errorf("%s: %w: %w", what, ErrAllSourcesFailed, errors.Join(errs...))
}

func (c *Chain) Name() string {
	names := make([]string, 0, len(c.Intensity))
	for _, s := range c.Intensity {
		names = append(names, s.Name())
	}
	return "chain(" + strings.Join(names, ",") + ")"
}

func (c *Chain) CurrentIntensity(ctx context.Context, region string) (Reading, error) {
	r, name, err := firstOf(c, "current intensity", c.Intensity, func(s IntensitySource) (Reading, error) {
		return s.CurrentIntensity(ctx, region)
	})
	if err == nil && r.Provenance == "" {
		r.Provenance = name
	}
	return r, err
}

// ForecastFrom is Forecast plus the name of the source that answered.
func (c *Chain) ForecastFrom(ctx context.Context, hours int) ([]core.ForecastPoint, string, error) {
	return firstOf(c, "forecast", c.Forecasts, func(s ForecastSource) ([]core.ForecastPoint, error) {
		return s.Forecast(ctx, hours)
	})
}

func (c *Chain) Forecast(ctx context.Context, hours int) ([]core.ForecastPoint, error) {
	pts, _, err := c.ForecastFrom(ctx, hours)
	return pts, err
}

// RegionsFrom is Regions plus the name of the source that answered.
func (c *Chain) RegionsFrom(ctx context.Context) ([]core.GridReading, string, error) {
	return firstOf(c, "regions", c.Regional, func(s RegionSource) ([]core.GridReading, error) {
		return s.Regions(ctx)
	})
}

func (c *Chain) Regions(ctx context.Context) ([]core.GridReading, error) {
	rs, _, err := c.RegionsFrom(ctx)
	return rs, err
}
