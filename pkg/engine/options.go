package engine

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"k8s.io/utils/clock"

	"github.com/g-uva/kube-carbon-scheduler/models/fairness"
	"github.com/g-uva/kube-carbon-scheduler/models/maizx"
	"github.com/g-uva/kube-carbon-scheduler/pkg/cache"
	"github.com/g-uva/kube-carbon-scheduler/pkg/core"
)

// Options are the engine tunables.
type Options struct {
	// ExcellentThreshold short-circuits to RUN_NOW when the current raw grid
	// intensity is below it.
	ExcellentThreshold float64
	MinSavingsPercent  float64

	EnableTimeShift  bool
	EnableSpaceShift bool
	EnableHybrid     bool
	DynamicSlack     bool

	Alpha   float64
	Weights maizx.Weights

	ForecastHours int
	CacheTTL      time.Duration
	FetchTimeout  time.Duration
	// FetchAttempts is how many times one source is tried before the chain
	// moves to the next.
	FetchAttempts int
	RetryDelay    time.Duration

	Profiles core.Profiles
}

func DefaultOptions() Options {
	return Options{
		ExcellentThreshold: 50,
		MinSavingsPercent:  10,
		EnableTimeShift:    true,
		EnableSpaceShift:   true,
		EnableHybrid:       true,
		DynamicSlack:       false,
		Alpha:              0.5,
		Weights:            maizx.DefaultWeights(),
		ForecastHours:      48,
		CacheTTL:           5 * time.Minute,
		FetchTimeout:       10 * time.Second,
		FetchAttempts:      1,
		RetryDelay:         200 * time.Millisecond,
		Profiles:           core.Profiles{},
	}
}

// Validate rejects settings the engine cannot work with. Alpha and weights
// are not checked here: the engine clamps and renormalises them.
func (o Options) Validate() error {
	if o.ExcellentThreshold < 0 {
		return fmt.Errorf("excellent threshold %.2f cannot be negative", o.ExcellentThreshold)
	}
	if o.MinSavingsPercent < 0 || o.MinSavingsPercent > 100 {
		return fmt.Errorf("min savings %.2f%% outside [0,100]", o.MinSavingsPercent)
	}
	if o.ForecastHours <= 0 {
		return fmt.Errorf("forecast hours must be positive, got %d", o.ForecastHours)
	}
	if o.FetchTimeout <= 0 {
		return fmt.Errorf("fetch timeout must be positive, got %s", o.FetchTimeout)
	}
	if o.CacheTTL < 0 {
		return fmt.Errorf("cache ttl cannot be negative, got %s", o.CacheTTL)
	}
	for id, p := range o.Profiles {
		if err := p.Validate(); err != nil {
			return fmt.Errorf("profile %s: %w", id, err)
		}
	}
	return nil
}

// Option customises an Engine at construction.
type Option func(*Engine)

func WithLogger(l zerolog.Logger) Option {
	return func(e *Engine) { e.log = l }
}

// WithClock sets the time source for decisions and the cache.
func WithClock(c clock.Clock) Option {
	return func(e *Engine) { e.clock = c }
}

// WithHistory replaces the process-local selection history.
func WithHistory(h fairness.HistoryStore) Option {
	return func(e *Engine) { e.history = h }
}

func WithCache(c *cache.Cache) Option {
	return func(e *Engine) { e.cache = c }
}

// WithIDGenerator overrides how decision IDs are minted.
func WithIDGenerator(f func() string) Option {
	return func(e *Engine) { e.newID = f }
}
