package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"k8s.io/apimachinery/pkg/util/wait"

	"github.com/g-uva/kube-carbon-scheduler/pkg/cache"
	"github.com/g-uva/kube-carbon-scheduler/pkg/core"
	"github.com/g-uva/kube-carbon-scheduler/pkg/datasource"
)

type forecastResult struct {
	points []core.ForecastPoint
	source string
}

type regionsResult struct {
	readings []core.GridReading
	source   string
}

func (e *Engine) backoff() wait.Backoff {
	steps := e.opts.FetchAttempts
	if steps < 1 {
		steps = 1
	}
	return wait.Backoff{Duration: e.opts.RetryDelay, Factor: 2, Jitter: 0.1, Steps: steps}
}

// retry calls fn until it succeeds or the backoff runs out. ErrNoData is
// final: asking again will not produce data.
func retry[T any](ctx context.Context, b wait.Backoff, fn func(context.Context) (T, error)) (T, error) {
	var (
		out     T
		lastErr error
	)
	err := wait.ExponentialBackoffWithContext(ctx, b, func(ctx context.Context) (bool, error) {
		v, err := fn(ctx)
		if err != nil {
			if errors.Is(err, datasource.ErrNoData) {
				return false, err
			}
			lastErr = err
			return false, nil
		}
		out = v
		return true, nil
	})
	if err != nil {
		if lastErr != nil && !errors.Is(err, datasource.ErrNoData) {
			return out, lastErr
		}
		return out, err
	}
	return out, nil
}

// withTimeout bounds one provider call. A panicking provider fails the call
// like any other error so the chain can move on.
func withTimeout[T any](ctx context.Context, d time.Duration, fn func(context.Context) (T, error)) (out T, err error) {
	ctx, cancel := context.WithTimeout(ctx, d)
	defer cancel()
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("provider panicked: %v", r)
		}
	}()
	return fn(ctx)
}

type retryingIntensity struct {
	datasource.IntensitySource
	e *Engine
}

func (r retryingIntensity) CurrentIntensity(ctx context.Context, region string) (datasource.Reading, error) {
	return retry(ctx, r.e.backoff(), func(ctx context.Context) (datasource.Reading, error) {
		return withTimeout(ctx, r.e.opts.FetchTimeout, func(ctx context.Context) (datasource.Reading, error) {
			return r.IntensitySource.CurrentIntensity(ctx, region)
		})
	})
}

type retryingForecast struct {
	datasource.ForecastSource
	e *Engine
}

func (r retryingForecast) Forecast(ctx context.Context, hours int) ([]core.ForecastPoint, error) {
	return retry(ctx, r.e.backoff(), func(ctx context.Context) ([]core.ForecastPoint, error) {
		return withTimeout(ctx, r.e.opts.FetchTimeout, func(ctx context.Context) ([]core.ForecastPoint, error) {
			return r.ForecastSource.Forecast(ctx, hours)
		})
	})
}

type retryingRegions struct {
	datasource.RegionSource
	e *Engine
}

func (r retryingRegions) Regions(ctx context.Context) ([]core.GridReading, error) {
	return retry(ctx, r.e.backoff(), func(ctx context.Context) ([]core.GridReading, error) {
		return withTimeout(ctx, r.e.opts.FetchTimeout, func(ctx context.Context) ([]core.GridReading, error) {
			return r.RegionSource.Regions(ctx)
		})
	})
}

func (e *Engine) currentIntensity(ctx context.Context, region string) (datasource.Reading, error) {
	r, _, err := cache.Get(ctx, e.cache, "current:"+region, e.opts.CacheTTL, func(ctx context.Context) (datasource.Reading, error) {
		return e.chain.CurrentIntensity(ctx, region)
	})
	return r, err
}

func (e *Engine) forecast(ctx context.Context) (forecastResult, error) {
	res, _, err := cache.Get(ctx, e.cache, "forecast", e.opts.CacheTTL, func(ctx context.Context) (forecastResult, error) {
		pts, src, err := e.chain.ForecastFrom(ctx, e.opts.ForecastHours)
		return forecastResult{points: pts, source: src}, err
	})
	return res, err
}

func (e *Engine) regions(ctx context.Context) (regionsResult, error) {
	res, _, err := cache.Get(ctx, e.cache, "regions", e.opts.CacheTTL, func(ctx context.Context) (regionsResult, error) {
		rs, src, err := e.chain.RegionsFrom(ctx)
		return regionsResult{readings: rs, source: src}, err
	})
	return res, err
}
