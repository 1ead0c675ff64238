// Package slack decides whether a workload's wait budget should stretch to
// reach a markedly cleaner forecast interval just past its deadline.
package slack

import (
	"fmt"
	"math"
	"time"

	"github.com/g-uva/kube-carbon-scheduler/pkg/core"
)

const (
	// MaxWindowHours caps any extended window.
	MaxWindowHours = 48.0
	// ExtensionFactor bounds how far past the base deadline the scan looks.
	ExtensionFactor = 1.5
	// ImprovementRatio is how much cleaner (as a fraction of the best
	// in-window intensity) a point beyond the window must be to extend.
	ImprovementRatio = 0.8
	// Margin is added after the best point so the workload can start inside it.
	Margin = 0.5
)

const (
	ReasonStatic  = "static (no forecast)"
	ReasonOptimal = "optimal within window"
)

// Window is the result of an expansion.
type Window struct {
	BaseHours           float64
	EffectiveHours      float64
	Extended            bool
	ExtraSavingsPercent float64
	Reason              string
}

// Expander performs a greedy single-step lookahead past the base deadline.
type Expander struct {
	Enabled bool
}

// ExtendedLimit is the furthest an expansion may reach for the given base.
// It never drops below the base itself.
func ExtendedLimit(base float64) float64 {
	return math.Max(base, math.Min(base*ExtensionFactor, MaxWindowHours))
}

// Expand inspects the adjusted forecast once and returns the wait budget to use.
func (e Expander) Expand(forecast []core.AdjustedPoint, now time.Time, current, base float64) Window {
	if base < 0 {
		base = 0
	}
	w := Window{BaseHours: base, EffectiveHours: base}
	if !e.Enabled || len(forecast) == 0 {
		w.Reason = ReasonStatic
		return w
	}

	limit := ExtendedLimit(base)
	bestIn := current
	bestBeyond := current
	bestBeyondAt := -1.0

	for _, p := range forecast {
		h := p.HoursFrom(now)
		if h < 0 || math.IsNaN(p.Intensity) {
			continue
		}
		switch {
		case h <= base:
			if p.Intensity < bestIn {
				bestIn = p.Intensity
			}
		case h <= limit:
			if p.Intensity < bestBeyond {
				bestBeyond = p.Intensity
				bestBeyondAt = h
			}
		}
	}

	if bestBeyondAt >= 0 && bestBeyond < bestIn*ImprovementRatio {
		w.EffectiveHours = math.Min(bestBeyondAt+Margin, limit)
		w.Extended = w.EffectiveHours > base
		if bestIn > 0 {
			w.ExtraSavingsPercent = (bestIn - bestBeyond) / bestIn * 100
		}
		w.Reason = fmt.Sprintf("extended to %.1fh for %.0f%% extra savings", w.EffectiveHours, w.ExtraSavingsPercent)
		return w
	}

	w.Reason = ReasonOptimal
	return w
}
