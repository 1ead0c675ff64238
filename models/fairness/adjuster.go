// Package fairness applies α-fair allocation to region scores so one region
// is not picked every time it is marginally the best.
package fairness

import (
	"context"
	"math"
)

// MaxPenalty is the largest share of a score fairness can take away.
const MaxPenalty = 0.1

// Adjuster pairs the fairness exponent with the selection history.
type Adjuster struct {
	alpha float64
	store HistoryStore
}

// NewAdjuster clamps alpha into [0,1]; 1 disables the adjustment and values
// towards 0 push harder for equal selection.
func NewAdjuster(alpha float64, store HistoryStore) *Adjuster {
	if store == nil {
		store = NewMemoryHistory()
	}
	return &Adjuster{alpha: ClampAlpha(alpha), store: store}
}

func ClampAlpha(alpha float64) float64 {
	if math.IsNaN(alpha) {
		return 1
	}
	return math.Max(0, math.Min(1, alpha))
}

func (a *Adjuster) Alpha() float64 { return a.alpha }
func (a *Adjuster) Store() HistoryStore { return a.store }

// Snapshot reads the history once so a whole decision cycle scores against
// the same counts.
func (a *Adjuster) Snapshot(ctx context.Context) (Snapshot, error) {
	counts, err := a.store.Counts(ctx)
	if err != nil {
		return Snapshot{alpha: a.alpha}, err
	}
	return NewSnapshot(a.alpha, counts), nil
}

// Record notes that region won a decision. Call it once per completed
// decision, for the chosen region only.
func (a *Adjuster) Record(ctx context.Context, region string) error {
	return a.store.Increment(ctx, region)
}

// Snapshot is an immutable view of the history at one point in time.
type Snapshot struct {
	alpha  float64
	counts map[string]int64
	total  int64
}

func NewSnapshot(alpha float64, counts map[string]int64) Snapshot {
	s := Snapshot{alpha: ClampAlpha(alpha), counts: counts}
	for _, c := range counts {
		if c > 0 {
			s.total += c
		}
	}
	return s
}

// SelectionRatio is the Laplace-smoothed share of decisions won by region.
func (s Snapshot) SelectionRatio(region string) float64 {
	n := s.counts[region]
	if n < 0 {
		n = 0
	}
	return float64(n+1) / float64(s.total+1)
}

// Penalty is ratio^(1-α), in [0,1].
func (s Snapshot) Penalty(region string) float64 {
	return math.Pow(s.SelectionRatio(region), 1-s.alpha)
}

// Adjust shrinks base by at most MaxPenalty of its value.
func (s Snapshot) Adjust(base float64, region string) float64 {
	if s.alpha >= 1 {
		return base
	}
	return AdjustRatio(base, s.SelectionRatio(region), s.alpha)
}

// AdjustRatio is the closed form used by Snapshot.Adjust.
func AdjustRatio(base, ratio, alpha float64) float64 {
	alpha = ClampAlpha(alpha)
	if alpha >= 1 {
		return base
	}
	penalty := math.Pow(ratio, 1-alpha)
	return base * (1 - penalty*MaxPenalty)
}
