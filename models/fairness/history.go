package fairness

import (
	"context"
	"sync"
)

// HistoryStore keeps how often each region has been chosen.
// Implementations must be safe for concurrent use.
type HistoryStore interface {
	Increment(ctx context.Context, region string) error
	Counts(ctx context.Context) (map[string]int64, error)
}

// MemoryHistory is the process-local store. Counts are lost on restart.
type MemoryHistory struct {
	mu     sync.Mutex
	counts map[string]int64
}

func NewMemoryHistory() *MemoryHistory {
	return &MemoryHistory{counts: make(map[string]int64)}
}

func (h *MemoryHistory) Increment(_ context.Context, region string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.counts[region]++
	return nil
}

func (h *MemoryHistory) Counts(_ context.Context) (map[string]int64, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make(map[string]int64, len(h.counts))
	for k, v := range h.counts {
		out[k] = v
	}
	return out, nil
}
